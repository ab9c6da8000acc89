package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// WishlistStore implements repository.WishlistStore on the wishlists table.
type WishlistStore struct {
	db     database.DBTX
	logger *slog.Logger
}

// NewWishlistStore creates a new PostgreSQL-backed wishlist store.
func NewWishlistStore(db database.DBTX, logger *slog.Logger) *WishlistStore {
	return &WishlistStore{db: db, logger: logger}
}

// FetchMembership lists the account's product ids, oldest first. A missing
// wishlists relation is reported as an empty membership.
func (s *WishlistStore) FetchMembership(ctx context.Context, accountID string) (ids []domain.ProductID, err error) {
	query := `
		SELECT product_id
		FROM wishlists
		WHERE user_id = $1
		ORDER BY created_at, product_id`

	ctx, end := database.TraceQuery(ctx, "FetchMembership", query)
	defer func() { end(err) }()

	rows, err := s.db.Query(ctx, query, accountID)
	if err != nil {
		if database.IsUndefinedTable(err) {
			s.logger.WarnContext(ctx, "wishlists relation missing, treating as empty",
				slog.String("account_id", accountID),
			)
			return []domain.ProductID{}, nil
		}
		return nil, fmt.Errorf("fetch wishlist: %w", err)
	}
	defer rows.Close()

	ids = []domain.ProductID{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan wishlist item: %w", err)
		}
		ids = append(ids, domain.ProductID(id))
	}
	if err := rows.Err(); err != nil {
		if database.IsUndefinedTable(err) {
			return []domain.ProductID{}, nil
		}
		return nil, fmt.Errorf("iterate wishlist rows: %w", err)
	}

	return ids, nil
}

// InsertMembership adds one product. Already wishlisted is success.
func (s *WishlistStore) InsertMembership(ctx context.Context, accountID string, id domain.ProductID) (err error) {
	query := `
		INSERT INTO wishlists (user_id, product_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, product_id) DO NOTHING`

	ctx, end := database.TraceQuery(ctx, "InsertMembership", query)
	defer func() { end(err) }()

	if _, err = s.db.Exec(ctx, query, accountID, string(id)); err != nil {
		switch {
		case database.IsUniqueViolation(err):
			return nil
		case database.IsUndefinedTable(err):
			return fmt.Errorf("add to wishlist: %w", apperrors.SchemaMissing("wishlists"))
		}
		return fmt.Errorf("add to wishlist: %w", err)
	}
	return nil
}

// DeleteMembership removes one product. Removing an absent product is a no-op.
func (s *WishlistStore) DeleteMembership(ctx context.Context, accountID string, id domain.ProductID) (err error) {
	query := `DELETE FROM wishlists WHERE user_id = $1 AND product_id = $2`

	ctx, end := database.TraceQuery(ctx, "DeleteMembership", query)
	defer func() { end(err) }()

	if _, err = s.db.Exec(ctx, query, accountID, string(id)); err != nil {
		if database.IsUndefinedTable(err) {
			return fmt.Errorf("remove from wishlist: %w", apperrors.SchemaMissing("wishlists"))
		}
		return fmt.Errorf("remove from wishlist: %w", err)
	}
	return nil
}

// BulkUpsertMembership inserts every id in one statement. Rows already
// present are skipped. A missing relation or a constraint violation yields
// (false, nil); connection failures yield (false, err).
func (s *WishlistStore) BulkUpsertMembership(ctx context.Context, accountID string, ids []domain.ProductID) (ok bool, err error) {
	if len(ids) == 0 {
		return true, nil
	}

	query := `
		INSERT INTO wishlists (user_id, product_id)
		SELECT $1, p FROM unnest($2::text[]) AS p
		ON CONFLICT (user_id, product_id) DO NOTHING`

	ctx, end := database.TraceQuery(ctx, "BulkUpsertMembership", query)
	defer func() { end(err) }()

	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}

	if _, err := s.db.Exec(ctx, query, accountID, raw); err != nil {
		if database.IsUndefinedTable(err) || database.IsConstraintViolation(err) {
			s.logger.WarnContext(ctx, "wishlist bulk upsert rejected",
				slog.String("account_id", accountID),
				slog.Int("items", len(ids)),
				slog.String("error", err.Error()),
			)
			return false, nil
		}
		return false, fmt.Errorf("bulk upsert wishlist: %w", err)
	}
	return true, nil
}
