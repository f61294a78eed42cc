// Package ctl implements horasctl, the command-line client of the hours
// ledger. Commands run directly against the configured backend.
package ctl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"horas/internal/backend"
	"horas/internal/cli"
	"horas/internal/config"
	applog "horas/internal/log"
	"horas/internal/services"
)

// Env is what ledger commands run against.
type Env struct {
	Ledger *services.LedgerService
	Close  func() error
}

type Options struct {
	// Open builds the ledger; the default opens the configured backend.
	Open func(ctx context.Context) (*Env, error)
	// Secret returns the JWT signing secret used by the token command.
	Secret func() string
	Now    func() time.Time
}

type app struct {
	opts   Options
	user   string
	asJSON bool
	env    *Env
}

// NewRootCommand builds the horasctl command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Open == nil {
		opts.Open = openConfigured
	}
	if opts.Secret == nil {
		opts.Secret = func() string {
			cli.LoadEnvFile()
			return config.Load().JWTSecret
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	a := &app{opts: opts}

	root := &cobra.Command{
		Use:   "horasctl",
		Short: "Record and reconcile worked hours",
		Long: `horasctl records a day's clocked total, distributes it across
projects, stages and tasks, and reports how much is still unallocated.`,
		SilenceUsage: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().StringVarP(&a.user, "user", "u", os.Getenv("HORAS_USER"), "user whose ledger to use (default $HORAS_USER)")
	root.PersistentFlags().BoolVar(&a.asJSON, "json", false, "print JSON instead of text")

	root.AddCommand(a.newParseCommand())
	root.AddCommand(a.newDayCommand())
	root.AddCommand(a.newCalendarCommand())
	root.AddCommand(a.newReportCommand())
	root.AddCommand(a.newSearchCommand())
	root.AddCommand(a.newTokenCommand())
	return root
}

// Execute is the entry point called from main.
func Execute() {
	if err := NewRootCommand(Options{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) ledger(ctx context.Context) (*services.LedgerService, error) {
	if a.env == nil {
		env, err := a.opts.Open(ctx)
		if err != nil {
			return nil, err
		}
		a.env = env
	}
	return a.env.Ledger, nil
}

func (a *app) close() error {
	if a.env == nil || a.env.Close == nil {
		return nil
	}
	err := a.env.Close()
	a.env = nil
	return err
}

func openConfigured(ctx context.Context) (*Env, error) {
	cli.LoadEnvFile()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := applog.New(applog.Config{
		Component: applog.ComponentApp,
		Handler:   slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}),
	})
	applog.SetDefault(logger)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, errors.Join(errors.New("open backend"), err)
	}
	return &Env{
		Ledger: services.NewLedgerService(res.Gateway, services.WithWeekStart(cfg.WeekStart())),
		Close:  res.Close,
	}, nil
}
