// Package cmd provides the costctl commands.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"orderfinance/internal/config"
	"orderfinance/internal/costing"
	"orderfinance/internal/database"
	"orderfinance/internal/logging"
	"orderfinance/internal/progress"
	"orderfinance/internal/repository"
	"orderfinance/internal/service"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	tenantID string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "costctl",
	Short: "Operate the order cost engine",
	Long: `costctl runs tenant-wide cost jobs outside the API.

Examples:
  costctl recalculate --tenant 6f1c...
  costctl relink --tenant 6f1c... --method PIX --rule 9a2e...
  costctl progress --tenant 6f1c...`,
	SilenceUsage: true,
}

// Execute runs the CLI; an interrupt cancels the running job between orders.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "configs/config.yaml", "config file")
	rootCmd.PersistentFlags().StringVarP(&tenantID, "tenant", "t", "", "tenant id [REQUIRED]")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	_ = rootCmd.MarkPersistentFlagRequired("tenant")

	rootCmd.AddCommand(recalculateCmd)
	rootCmd.AddCommand(relinkCmd)
	rootCmd.AddCommand(progressCmd)
}

// app holds the services a command needs.
type app struct {
	tenant uuid.UUID
	costs  service.CostService
	links  service.PaymentFeeLinkService
}

func loadConfig() (*config.Config, uuid.UUID, error) {
	tenant, err := uuid.Parse(tenantID)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("invalid --tenant %q: %w", tenantID, err)
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, uuid.Nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	cfg.Logging.Output = "stderr"
	if err := logging.Initialize(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
	}
	return cfg, tenant, nil
}

func openStore(cfg *config.Config) progress.Store {
	if cfg.Redis.Addr == "" {
		return progress.NewMemoryStore(cfg.Progress.CompletedGrace)
	}
	return progress.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Progress.CompletedGrace)
}

// newApp wires the database-backed services; progress lines go to out.
func newApp(out io.Writer) (*app, error) {
	cfg, tenant, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.Logger

	db, err := database.NewConnection(cfg.Database.DSN(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	engineCfg, err := cfg.Engine.Costing()
	if err != nil {
		return nil, err
	}
	engine := costing.NewEngine(engineCfg)

	tracker := progress.NewTracker(openStore(cfg), printer{out: out}, logger)
	orders := repository.NewOrderRepository(db)
	rules := repository.NewFeeRuleRepository(db)
	audit := service.NewAuditService(repository.NewAuditRepository(db), logger)

	return &app{
		tenant: tenant,
		costs:  service.NewCostService(engine, orders, rules, repository.NewProductRepository(db), tracker, audit, logger),
		links:  service.NewPaymentFeeLinkService(engine, orders, rules, tracker, audit, logger),
	}, nil
}

// printer renders tracker updates as progress lines.
type printer struct {
	out io.Writer
}

func (p printer) Notify(pr progress.Progress) {
	fmt.Fprintf(p.out, "\r%-22s %-10s %d/%d (%d failed) %.2f%%", pr.Kind, pr.Status, pr.Processed, pr.Total, pr.Failed, pr.Percentage)
	if pr.Status == progress.StatusCompleted {
		fmt.Fprintln(p.out)
	}
}
