package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// action is one shopper operation, reachable as a subcommand, from the
// shell, or both.
type action struct {
	name  string // space separated path, e.g. "cart add"
	args  []string
	short string
	// shellOnly actions touch state that lives only as long as the
	// process (compare set, recently viewed).
	shellOnly bool
	run       func(ctx context.Context, s *shopper, args []string) error
}

// WishlistToggleResult reports the membership after a toggle.
type WishlistToggleResult struct {
	ProductID  domain.ProductID `json:"productId"`
	Wishlisted bool             `json:"wishlisted"`
}

// SignInResult reports the account and its resolved wishlist.
type SignInResult struct {
	AccountID string             `json:"accountId"`
	Wishlist  []domain.ProductID `json:"wishlist"`
}

var actions = []action{
	{name: "cart add", args: []string{"product-id"}, short: "Add one unit of a catalog product to the cart", run: cartAdd},
	{name: "cart remove", args: []string{"product-id"}, short: "Remove a line from the cart", run: cartRemove},
	{name: "cart qty", args: []string{"product-id", "delta"}, short: "Change a line's quantity by delta", run: cartQty},
	{name: "cart clear", short: "Empty the cart", run: cartClear},
	{name: "cart show", short: "Show the cart", run: cartShow},
	{name: "wishlist toggle", args: []string{"product-id"}, short: "Add or remove a product from the wishlist", run: wishlistToggle},
	{name: "wishlist show", short: "List the wishlist", run: wishlistShow},
	{name: "signin", args: []string{"account"}, short: "Sign in and merge the guest wishlist into the account", run: signIn},
	{name: "signout", short: "Sign out and fall back to the guest wishlist", shellOnly: true, run: signOut},
	{name: "catalog", short: "List the catalog", run: catalogList},
	{name: "show", short: "Show the whole session", run: show},
	{name: "compare add", args: []string{"product-id"}, short: "Add a product to the compare set", shellOnly: true, run: compareAdd},
	{name: "compare remove", args: []string{"product-id"}, short: "Remove a product from the compare set", shellOnly: true, run: compareRemove},
	{name: "compare clear", short: "Empty the compare set", shellOnly: true, run: compareClear},
	{name: "compare show", short: "Show the compare set", shellOnly: true, run: compareShow},
	{name: "compare submit", short: "Submit the compare set for comparison", shellOnly: true, run: compareSubmit},
	{name: "view", args: []string{"product-id"}, short: "Record a product view", shellOnly: true, run: view},
	{name: "recent", short: "List recently viewed products", shellOnly: true, run: recent},
}

func (a action) usage() string {
	parts := []string{a.name}
	for _, arg := range a.args {
		parts = append(parts, "<"+arg+">")
	}
	return strings.Join(parts, " ")
}

// actionCommands turns the non-shell actions into a cobra command tree.
func actionCommands(opts *RootOptions) []*cobra.Command {
	var top []*cobra.Command
	groups := make(map[string]*cobra.Command)

	for _, a := range actions {
		if a.shellOnly {
			continue
		}
		path := strings.Fields(a.name)
		use := a.usage()
		if len(path) > 1 {
			use = strings.TrimPrefix(use, path[0]+" ")
		}
		leaf := &cobra.Command{
			Use:           use,
			Short:         a.short,
			Args:          cobra.ExactArgs(len(a.args)),
			SilenceUsage:  true,
			SilenceErrors: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runAction(cmd, opts, a, args)
			},
		}
		if len(path) == 1 {
			top = append(top, leaf)
			continue
		}

		group, ok := groups[path[0]]
		if !ok {
			group = &cobra.Command{Use: path[0], Short: "Manage the " + path[0]}
			groups[path[0]] = group
			top = append(top, group)
		}
		group.AddCommand(leaf)
	}
	return top
}

func runAction(cmd *cobra.Command, opts *RootOptions, a action, args []string) error {
	ctx := commandContext(cmd)
	s, err := openShopper(ctx, cmd, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.close(); cerr != nil {
			s.logger.Error("failed to close profile", slog.String("error", cerr.Error()))
		}
	}()

	if err := a.run(ctx, s, args); err != nil {
		_ = s.out.Error(err)
		return WrapExitError(ExitFailure, a.name+" failed", err)
	}
	return nil
}

func parseID(raw string) (domain.ProductID, error) {
	return domain.ParseProductID(raw)
}

// --- Cart ---

func cartAdd(ctx context.Context, s *shopper, args []string) error {
	p, err := s.catalog.Lookup(args[0])
	if err != nil {
		return err
	}
	if err := s.session.AddItem(ctx, p); err != nil {
		return err
	}
	return cartShow(ctx, s, nil)
}

func cartRemove(ctx context.Context, s *shopper, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	s.session.RemoveItem(ctx, id)
	return cartShow(ctx, s, nil)
}

func cartQty(ctx context.Context, s *shopper, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	delta, err := strconv.Atoi(args[1])
	if err != nil {
		return apperrors.InvalidInput(fmt.Sprintf("delta %q is not an integer", args[1]))
	}
	s.session.UpdateQuantity(ctx, id, delta)
	return cartShow(ctx, s, nil)
}

func cartClear(ctx context.Context, s *shopper, _ []string) error {
	s.session.ClearCart(ctx)
	return cartShow(ctx, s, nil)
}

func cartShow(_ context.Context, s *shopper, _ []string) error {
	view := s.session.Cart()
	return s.respond(view, func(w io.Writer) { writeCart(w, view) })
}

// --- Wishlist ---

func wishlistToggle(ctx context.Context, s *shopper, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	wishlisted, err := s.session.ToggleWishlist(ctx, id)
	if err != nil {
		return err
	}
	res := WishlistToggleResult{ProductID: id, Wishlisted: wishlisted}
	return s.respond(res, func(w io.Writer) {
		if wishlisted {
			fmt.Fprintf(w, "added %s to the wishlist\n", id)
		} else {
			fmt.Fprintf(w, "removed %s from the wishlist\n", id)
		}
	})
}

func wishlistShow(_ context.Context, s *shopper, _ []string) error {
	ids := s.session.WishlistMembership()
	return s.respond(ids, func(w io.Writer) { writeIDs(w, "wishlist is empty", ids) })
}

func signIn(ctx context.Context, s *shopper, args []string) error {
	if err := s.signIn(ctx, args[0]); err != nil {
		return err
	}
	res := SignInResult{AccountID: s.session.AccountID(), Wishlist: s.session.WishlistMembership()}
	return s.respond(res, func(w io.Writer) {
		fmt.Fprintf(w, "signed in as %s, %d wishlisted\n", res.AccountID, len(res.Wishlist))
	})
}

func signOut(ctx context.Context, s *shopper, _ []string) error {
	s.session.SignOut(ctx)
	return wishlistShow(ctx, s, nil)
}

// --- Browsing ---

func catalogList(_ context.Context, s *shopper, _ []string) error {
	products := s.catalog.Products()
	return s.respond(products, func(w io.Writer) { writeProducts(w, "catalog is empty", products) })
}

func show(_ context.Context, s *shopper, _ []string) error {
	snap := s.session.Snapshot()
	return s.respond(snap, func(w io.Writer) {
		if snap.Authenticated {
			fmt.Fprintf(w, "account: %s\n", snap.AccountID)
		} else {
			fmt.Fprintln(w, "account: guest")
		}
		writeCart(w, snap.Cart)
		fmt.Fprintf(w, "wishlist: %d, compare: %d, recent: %d\n", len(snap.Wishlist), len(snap.Compare), len(snap.Recent))
	})
}

func compareAdd(ctx context.Context, s *shopper, args []string) error {
	p, err := s.catalog.Lookup(args[0])
	if err != nil {
		return err
	}
	if err := s.session.AddToCompare(p); err != nil {
		return err
	}
	return compareShow(ctx, s, nil)
}

func compareRemove(ctx context.Context, s *shopper, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	s.session.RemoveFromCompare(id)
	return compareShow(ctx, s, nil)
}

func compareClear(ctx context.Context, s *shopper, _ []string) error {
	s.session.ClearCompare()
	return compareShow(ctx, s, nil)
}

func compareShow(_ context.Context, s *shopper, _ []string) error {
	set := s.session.CompareSet()
	return s.respond(set, func(w io.Writer) { writeProducts(w, "compare set is empty", set) })
}

func compareSubmit(_ context.Context, s *shopper, _ []string) error {
	submitted := s.session.SubmitCompare()
	return s.respond(submitted, func(w io.Writer) {
		fmt.Fprintf(w, "comparing %d product(s)\n", len(submitted))
		writeProducts(w, "nothing to compare", submitted)
	})
}

func view(ctx context.Context, s *shopper, args []string) error {
	p, err := s.catalog.Lookup(args[0])
	if err != nil {
		return err
	}
	if err := s.session.RecordView(p); err != nil {
		return err
	}
	return recent(ctx, s, nil)
}

func recent(_ context.Context, s *shopper, _ []string) error {
	items := s.session.RecentlyViewed()
	return s.respond(items, func(w io.Writer) { writeProducts(w, "nothing viewed yet", items) })
}
