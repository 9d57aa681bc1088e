package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"access-gate/middleware/accessctl/application"
	"access-gate/middleware/accessctl/infra"
)

func newQuotaCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Inspect and clear quota windows (quota.backend=redis)",
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Print live quota entries per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withQuotas(cmd.Context(), func(ctx context.Context, svc *application.QuotaService) error {
				rep, err := svc.Report(ctx)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			})
		},
	}

	var category string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear every quota window, or only one category with --category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withQuotas(cmd.Context(), func(ctx context.Context, svc *application.QuotaService) error {
				var (
					n   int
					err error
				)
				if cmd.Flags().Changed("category") {
					n, err = svc.ClearCategory(ctx, category)
				} else {
					n, err = svc.ClearAll(ctx)
				}
				if err != nil {
					return err
				}
				a.log.Info("quotas cleared", zap.String("category", category), zap.Int("cleared", n))
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "cleared %d\n", n)
				return err
			})
		},
	}
	clearCmd.Flags().StringVar(&category, "category", "", "only this category (e.g. login)")

	cmd.AddCommand(stats, clearCmd)
	return cmd
}

func (a *app) withQuotas(ctx context.Context, fn func(ctx context.Context, svc *application.QuotaService) error) error {
	if a.cfg.Quota.Backend != "redis" {
		return errNeedsRedis
	}
	rdb, err := openRedis(ctx, a.cfg.Redis)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	limits, err := a.cfg.Quota.Policy()
	if err != nil {
		return err
	}
	svc := &application.QuotaService{
		Store:  infra.NewRedisQuotaStore(rdb),
		Limits: limits,
	}
	return fn(ctx, svc)
}
