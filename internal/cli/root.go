package cli

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/utafrali/storefront/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Profile         string
	Catalog         string
	WishlistBackend string
	DatabaseURL     string
	UserServiceURL  string
	Token           string
	Account         string
	LogLevel        string
	Format          string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// ValidWishlistBackends defines the Remote Wishlist Stores shopctl can reach.
var ValidWishlistBackends = []string{config.WishlistMemory, config.WishlistPostgres, config.WishlistHTTP}

// NewRootCommand creates the root command for shopctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "shopctl",
		Short: "Drive a storefront shopper session from the terminal",
		Long: `shopctl runs one shopper's cart, wishlist, compare set and recently viewed
list against a SQLite profile, so the cart and guest wishlist survive between
invocations. Products are looked up in a YAML catalog.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.validate()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.Profile, "profile", "shopctl.db", "path to the SQLite shopper profile")
	flags.StringVar(&opts.Catalog, "catalog", "", "path to the YAML product catalog")
	flags.StringVar(&opts.WishlistBackend, "wishlist-backend", config.WishlistMemory, "remote wishlist store (memory|postgres|http)")
	flags.StringVar(&opts.DatabaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL URL for --wishlist-backend postgres")
	flags.StringVar(&opts.UserServiceURL, "user-service-url", "http://localhost:8006", "user service base URL for --wishlist-backend http")
	flags.StringVar(&opts.Token, "token", os.Getenv("SHOPCTL_TOKEN"), "bearer token for the user service")
	flags.StringVar(&opts.Account, "account", "", "sign in as this account before running the command")
	flags.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug|info|warn|error)")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")

	for _, sub := range actionCommands(opts) {
		cmd.AddCommand(sub)
	}
	cmd.AddCommand(NewShellCommand(opts))

	return cmd
}

func (o *RootOptions) validate() error {
	if !slices.Contains(ValidFormats, o.Format) {
		return WrapExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats), nil)
	}
	if !slices.Contains(ValidWishlistBackends, o.WishlistBackend) {
		return WrapExitError(ExitCommandError, fmt.Sprintf("invalid wishlist backend %q: must be one of %v", o.WishlistBackend, ValidWishlistBackends), nil)
	}
	if o.WishlistBackend == config.WishlistPostgres && o.DatabaseURL == "" {
		return WrapExitError(ExitCommandError, "--database-url is required for the postgres wishlist backend", nil)
	}
	if o.WishlistBackend == config.WishlistHTTP && o.UserServiceURL == "" {
		return WrapExitError(ExitCommandError, "--user-service-url is required for the http wishlist backend", nil)
	}
	if o.Profile == "" {
		return WrapExitError(ExitCommandError, "--profile must not be empty", nil)
	}
	return nil
}
