package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/internal/repository/memory"
	"github.com/utafrali/storefront/internal/repository/postgres"
	"github.com/utafrali/storefront/internal/repository/remote"
	"github.com/utafrali/storefront/internal/repository/sqlite"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/logger"
)

// profileSessionID names the single session a profile holds.
const profileSessionID = "shopctl"

// shopper is one open profile: the session plus everything it was built
// from.
type shopper struct {
	session *service.Session
	catalog *Catalog
	out     *Output
	logger  *slog.Logger
	backend string
	closers []func() error
}

func openShopper(ctx context.Context, cmd *cobra.Command, opts *RootOptions) (*shopper, error) {
	log := logger.NewWithWriter("shopctl", opts.LogLevel, cmd.ErrOrStderr())
	s := &shopper{
		out:     &Output{Format: opts.Format, Writer: cmd.OutOrStdout()},
		logger:  log,
		backend: opts.WishlistBackend,
	}

	if opts.Catalog != "" {
		catalog, err := LoadCatalog(opts.Catalog)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load catalog", err)
		}
		s.catalog = catalog
	}

	cache, err := sqlite.Open(opts.Profile)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open profile", err)
	}
	s.closers = append(s.closers, cache.Close)

	store, err := s.wishlistStore(ctx, opts)
	if err != nil {
		_ = s.close()
		return nil, WrapExitError(ExitCommandError, "failed to reach wishlist store", err)
	}

	s.session = service.NewSession(ctx, profileSessionID, cache, service.Dependencies{
		Wishlists: store,
		Logger:    log,
	})

	if opts.Account != "" {
		if err := s.signIn(ctx, opts.Account); err != nil {
			_ = s.close()
			return nil, err
		}
	}
	return s, nil
}

func (s *shopper) wishlistStore(ctx context.Context, opts *RootOptions) (repository.WishlistStore, error) {
	switch opts.WishlistBackend {
	case config.WishlistPostgres:
		pool, err := database.NewPostgresPoolFromURL(ctx, opts.DatabaseURL, s.logger)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() error { pool.Close(); return nil })
		return postgres.NewWishlistStore(pool, s.logger), nil

	case config.WishlistHTTP:
		client := httpclient.NewCircuitBreakerClient(
			httpclient.New(httpclient.DefaultConfig()),
			httpclient.DefaultCircuitBreakerConfig("user-service"),
			s.logger,
		)
		token := opts.Token
		return remote.NewWishlistStore(client, opts.UserServiceURL, func(string) (string, error) {
			if token == "" {
				return "", apperrors.Unauthorized("no user service token; pass --token or set SHOPCTL_TOKEN")
			}
			return token, nil
		}), nil

	default:
		return memory.NewWishlistStore(), nil
	}
}

func (s *shopper) signIn(ctx context.Context, account string) error {
	if s.backend == config.WishlistMemory {
		return apperrors.InvalidInput("signing in needs --wishlist-backend postgres or http; the memory store does not outlive the process")
	}
	return s.session.SignIn(ctx, account)
}

// respond lets pending remote writes settle, then writes data together
// with any notices they produced.
func (s *shopper) respond(data any, text func(io.Writer)) error {
	s.session.Wait()
	return s.out.Success(data, s.session.Notices(), text)
}

func (s *shopper) close() error {
	if s.session != nil {
		s.session.Wait()
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
