package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
)

const (
	serviceName = "user-service"
	pageSize    = 100
)

// Doer executes HTTP requests; *httpclient.CircuitBreakerClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// TokenSource returns a bearer token that authenticates as accountID.
type TokenSource func(accountID string) (string, error)

// WishlistStore implements repository.WishlistStore against the user
// service's /api/v1/users/wishlist endpoints.
type WishlistStore struct {
	client  Doer
	baseURL string
	tokens  TokenSource
}

// NewWishlistStore creates a store talking to the user service at baseURL.
func NewWishlistStore(client Doer, baseURL string, tokens TokenSource) *WishlistStore {
	return &WishlistStore{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
	}
}

type wishlistPage struct {
	Data struct {
		Items []struct {
			ProductID domain.ProductID `json:"product_id"`
		} `json:"items"`
		Total int `json:"total"`
	} `json:"data"`
}

// FetchMembership pages through the account's wishlist. A 404 from the
// user service means the wishlist is not provisioned and reads as empty.
func (s *WishlistStore) FetchMembership(ctx context.Context, accountID string) ([]domain.ProductID, error) {
	ids := []domain.ProductID{}
	for page := 1; ; page++ {
		endpoint := fmt.Sprintf("%s/api/v1/users/wishlist?page=%d&per_page=%d", s.baseURL, page, pageSize)
		resp, err := s.do(ctx, http.MethodGet, endpoint, accountID)
		if err != nil {
			return nil, fmt.Errorf("fetch wishlist: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			err := httpclient.ParseResponseError(resp, serviceName)
			if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrSchemaMissing) {
				return []domain.ProductID{}, nil
			}
			return nil, fmt.Errorf("fetch wishlist: %w", err)
		}

		var body wishlistPage
		err = json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode wishlist page: %w", err)
		}

		for _, item := range body.Data.Items {
			if item.ProductID != "" {
				ids = append(ids, item.ProductID)
			}
		}
		if len(body.Data.Items) < pageSize || len(ids) >= body.Data.Total {
			return ids, nil
		}
	}
}

// InsertMembership adds one product. A 409 means it was already there.
func (s *WishlistStore) InsertMembership(ctx context.Context, accountID string, id domain.ProductID) error {
	err := s.mutate(ctx, http.MethodPost, accountID, id)
	if errors.Is(err, apperrors.ErrAlreadyExists) || errors.Is(err, apperrors.ErrConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("add to wishlist: %w", err)
	}
	return nil
}

// DeleteMembership removes one product. A 404 means it was already gone.
func (s *WishlistStore) DeleteMembership(ctx context.Context, accountID string, id domain.ProductID) error {
	err := s.mutate(ctx, http.MethodDelete, accountID, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("remove from wishlist: %w", err)
	}
	return nil
}

// BulkUpsertMembership inserts ids one by one; the user service has no
// batch endpoint. A 4xx rejection yields (false, nil), anything else that
// fails yields (false, err).
func (s *WishlistStore) BulkUpsertMembership(ctx context.Context, accountID string, ids []domain.ProductID) (bool, error) {
	for _, id := range ids {
		err := s.InsertMembership(ctx, accountID, id)
		if err == nil {
			continue
		}
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Status >= 400 && appErr.Status < 500 {
			return false, nil
		}
		return false, fmt.Errorf("bulk upsert wishlist: %w", err)
	}
	return true, nil
}

func (s *WishlistStore) mutate(ctx context.Context, method, accountID string, id domain.ProductID) error {
	endpoint := s.baseURL + "/api/v1/users/wishlist/" + url.PathEscape(string(id))
	resp, err := s.do(ctx, method, endpoint, accountID)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return httpclient.ParseResponseError(resp, serviceName)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (s *WishlistStore) do(ctx context.Context, method, endpoint, accountID string) (*http.Response, error) {
	token, err := s.tokens(accountID)
	if err != nil {
		return nil, fmt.Errorf("issue token for %s: %w", accountID, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	return s.client.Do(ctx, req)
}
