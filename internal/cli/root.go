// Package cli define os comandos do binário gateway (cobra).
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"access-gate/internal/config"
	"access-gate/internal/logging"
)

// app guarda o estado carregado no PersistentPreRunE e compartilhado pelos subcomandos.
type app struct {
	cfgFile  string
	logLevel string

	cfg config.Config
	log *zap.Logger
}

// NewRootCommand monta a árvore de comandos.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "gateway",
		Short:         "Access-control gateway: quotas, policy toggles and bans in front of an upstream app",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "overrides logging.level")

	root.AddCommand(
		newServeCommand(a),
		newBanCommand(a),
		newAccountCommand(a),
		newQuotaCommand(a),
	)
	return root
}

// Execute é chamado pelo main.
func Execute() error {
	return NewRootCommand().Execute()
}

func (a *app) load(cmd *cobra.Command) error {
	v, err := config.NewViper(a.cfgFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		v.Set("logging.level", a.logLevel)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log.With(zap.String("command", cmd.Name()))
	return nil
}
