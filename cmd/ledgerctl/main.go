package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/obelousov/sntledger/internal/config"
	"github.com/obelousov/sntledger/internal/logger"
	"github.com/obelousov/sntledger/internal/postgres"
	"github.com/obelousov/sntledger/internal/services"
	"github.com/obelousov/sntledger/internal/store"
)

// ledgerctl is the board's operational CLI: batch assessment at the start
// of the fiscal year and audit trail verification. It talks straight to the
// database, so it only works with the postgres backend.

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operational tooling for the dues ledger",
	}
	rootCmd.AddCommand(assessCmd())
	rootCmd.AddCommand(auditCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// connect builds the service layer against the configured PostgreSQL
// database.
func connect(ctx context.Context) (*postgres.Database, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Store.Backend != config.StorePostgres {
		return nil, nil, fmt.Errorf("ledgerctl requires STORE_BACKEND=postgres, got %q", cfg.Store.Backend)
	}

	log := logger.New(cfg.Server.Env)
	db, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("applying schema: %w", err)
	}
	return db, log, nil
}

func assessCmd() *cobra.Command {
	var year int
	var amount int64

	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Assess the yearly due for every active parcel",
		Long: "Creates a not_paid due record for every active parcel that has no " +
			"record for the year yet. Parcels already assessed are skipped. " +
			"The amount is in minor currency units (kopecks).",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, log, err := connect(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			audit := services.NewAuditService(postgres.NewAuditStore(db), log)
			dues := services.NewDuesService(
				postgres.NewParcelStore(db), postgres.NewDueStore(db),
				store.NewParcelLocks(), audit, nil, log)

			created, err := dues.AssessYear(ctx, year, amount)
			if err != nil {
				return fmt.Errorf("assessing year %d: %w", year, err)
			}
			fmt.Printf("assessed %d parcels for %d\n", created, year)
			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "fiscal year to assess")
	cmd.Flags().Int64Var(&amount, "amount", 0, "due amount in minor currency units")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit trail tooling",
	}

	verify := &cobra.Command{
		Use:   "verify",
		Short: "Reconcile audit statistics against a full trail scan",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, log, err := connect(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			audit := services.NewAuditService(postgres.NewAuditStore(db), log)
			stats, consistent, err := audit.VerifyStatistics(ctx)
			if err != nil {
				return fmt.Errorf("verifying statistics: %w", err)
			}

			fmt.Printf("total entries: %d\n", stats.TotalEntries)
			fmt.Printf("last 24h:      %d\n", stats.Last24h)
			for action, count := range stats.ByAction {
				fmt.Printf("  %-20s %d\n", action, count)
			}
			if !consistent {
				fmt.Println("cache was out of sync and has been resynchronized")
			}
			return nil
		},
	}
	cmd.AddCommand(verify)
	return cmd
}
