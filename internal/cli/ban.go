package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"access-gate/middleware/accessctl/application"
	"access-gate/middleware/accessctl/domain"
)

func newBanCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ban",
		Short: "Inspect and change account bans (bans.backend=sql)",
	}

	show := &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show the ban state, lifting it first if it already expired",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBans(cmd.Context(), func(ctx context.Context, repo accountStore) error {
				gate := application.BanGate{Repo: repo, OnLift: func(id string) {
					a.log.Info("expired ban lifted", zap.String("user_id", id))
				}}
				dec, err := gate.Check(ctx, args[0])
				if err != nil {
					return err
				}
				acc, err := repo.Get(ctx, args[0])
				if err != nil {
					return err
				}
				printAccount(cmd.OutOrStdout(), acc, dec.Status)
				return nil
			})
		},
	}

	var (
		duration string
		reason   string
		actor    string
	)
	set := &cobra.Command{
		Use:   "set <user-id>",
		Short: "Ban an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.applyBan(cmd, actor, args[0], application.BanRequest{Banned: true, Duration: duration, Reason: reason})
		},
	}
	set.Flags().StringVar(&duration, "duration", "permanent", "24h, 3d, 7d or permanent")
	set.Flags().StringVar(&reason, "reason", "", "reason shown to the user (max 500 chars)")
	set.Flags().StringVar(&actor, "actor", "cli", "id recorded as the acting admin")

	lift := &cobra.Command{
		Use:   "lift <user-id>",
		Short: "Remove a ban",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.applyBan(cmd, actor, args[0], application.BanRequest{Banned: false})
		},
	}
	lift.Flags().StringVar(&actor, "actor", "cli", "id recorded as the acting admin")

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List banned accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBans(cmd.Context(), func(ctx context.Context, repo accountStore) error {
				lister, ok := repo.(interface {
					ListBanned(ctx context.Context, limit int) ([]domain.Account, error)
				})
				if !ok {
					return errNeedsSQL
				}
				accs, err := lister.ListBanned(ctx, limit)
				if err != nil {
					return err
				}
				now := time.Now()
				for _, acc := range accs {
					dec, _ := application.Reconcile(&acc.Ban, now)
					printAccount(cmd.OutOrStdout(), acc, dec.Status)
				}
				return nil
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 100, "max rows")

	cmd.AddCommand(show, set, lift, list)
	return cmd
}

func newAccountCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts known to the ban store",
	}

	var role string
	add := &cobra.Command{
		Use:   "add <user-id>",
		Short: "Create an account row (dev and tests; production rows belong to the app)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !application.ValidAccountID(args[0]) {
				return fmt.Errorf("invalid account id %q", args[0])
			}
			return a.withBans(cmd.Context(), func(ctx context.Context, repo accountStore) error {
				if err := repo.CreateAccount(ctx, args[0], role); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "account %s created (role=%s)\n", args[0], role)
				return err
			})
		},
	}
	add.Flags().StringVar(&role, "role", "user", "account role (user or admin)")

	cmd.AddCommand(add)
	return cmd
}

func (a *app) withBans(ctx context.Context, fn func(ctx context.Context, repo accountStore) error) error {
	if a.cfg.Bans.Backend != "sql" {
		return errNeedsSQL
	}
	repo, closeFn, err := openBans(ctx, a.cfg.Bans, a.log)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()
	return fn(ctx, repo)
}

func (a *app) applyBan(cmd *cobra.Command, actor, target string, req application.BanRequest) error {
	return a.withBans(cmd.Context(), func(ctx context.Context, repo accountStore) error {
		acc, err := application.BanService{Repo: repo}.Apply(ctx, actor, target, req)
		if err != nil {
			return err
		}
		a.log.Info("account ban updated",
			zap.String("actor", actor),
			zap.String("user_id", target),
			zap.Bool("banned", acc.Ban.IsBanned))

		dec, _ := application.Reconcile(&acc.Ban, time.Now())
		printAccount(cmd.OutOrStdout(), acc, dec.Status)
		return nil
	})
}

func printAccount(w io.Writer, acc domain.Account, status domain.BanStatus) {
	expires := "-"
	if acc.Ban.ExpiresAt != nil {
		expires = acc.Ban.ExpiresAt.UTC().Format(time.RFC3339)
	}
	reason := "-"
	if acc.Ban.Reason != nil {
		reason = *acc.Ban.Reason
	}
	_, _ = fmt.Fprintf(w, "%s\trole=%s\tstatus=%s\texpires=%s\treason=%s\n", acc.ID, acc.Role, status, expires, reason)
}
