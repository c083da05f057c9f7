package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/clinic-finance/config"
	"github.com/jwalitptl/clinic-finance/internal/model"
	"github.com/jwalitptl/clinic-finance/internal/repository/postgres"
	"github.com/jwalitptl/clinic-finance/internal/service/audit"
	"github.com/jwalitptl/clinic-finance/internal/service/billing"
	"github.com/jwalitptl/clinic-finance/pkg/logger"
	"github.com/jwalitptl/clinic-finance/pkg/metrics"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "billingctl",
		Short:         "Inspect treatment plan balances and invoices",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.yml")

	rootCmd.AddCommand(balanceCmd(&configPath))
	rootCmd.AddCommand(overdueCmd(&configPath))
	rootCmd.AddCommand(planCostCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// open connects to the database and builds a billing service that can
// compute balances and previews. It never renders or mails.
func open(configPath string) (*billing.Service, *sqlx.DB, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	log := logger.NewLogger(&logger.Config{Level: logger.ParseLevel("warn"), Output: os.Stderr})
	svc := billing.NewService(cfg.BillingConfig(), billing.Deps{
		Patients: postgres.NewPatientRepository(db),
		Plans:    postgres.NewPlanRepository(db),
		Payments: postgres.NewPaymentRepository(db),
		Outbox:   postgres.NewOutboxRepository(db),
		Auditor:  audit.NewService(postgres.NewAuditRepository(db), log),
		Metrics:  metrics.NewMetrics("billingctl", prometheus.NewRegistry()),
		Logger:   log,
	})
	return svc, db, nil
}

func balanceCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <patient-id>",
		Short: "Show a patient's authorized total, payments and outstanding balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid patient id: %w", err)
			}
			svc, db, err := open(*configPath)
			if err != nil {
				return err
			}
			defer db.Close()

			summary, err := svc.PatientBalance(context.Background(), id)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
}

func overdueCmd(configPath *string) *cobra.Command {
	var (
		status          string
		onlyOutstanding bool
		asJSON          bool
	)
	cmd := &cobra.Command{
		Use:   "overdue",
		Short: "List outstanding balances per patient",
		RunE: func(cmd *cobra.Command, args []string) error {
			filters := &model.OverdueReportFilters{
				Status:          model.PatientStatus(status),
				OnlyOutstanding: onlyOutstanding,
			}
			if status != "" && !filters.Status.Valid() {
				return fmt.Errorf("unknown patient status %q", status)
			}

			svc, db, err := open(*configPath)
			if err != nil {
				return err
			}
			defer db.Close()

			report, err := svc.OverdueReport(context.Background(), filters)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			return writeReport(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "patient status filter (active|completed)")
	cmd.Flags().BoolVar(&onlyOutstanding, "only-outstanding", false, "hide settled and credit balances")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func planCostCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "plan-cost <plan-id>",
		Short: "Show a plan's nominal cost, authorized amount and adjusted invoice lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid plan id: %w", err)
			}
			svc, db, err := open(*configPath)
			if err != nil {
				return err
			}
			defer db.Close()

			preview, err := svc.Preview(context.Background(), id)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), preview)
		},
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeReport(w io.Writer, report *model.OverdueReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATIENT\tSTATUS\tAUTHORIZED\tPAID\tOUTSTANDING")
	for _, row := range report.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			row.PatientName,
			row.PatientStatus,
			row.AuthorizedTotal.StringFixed(2),
			row.PaidTotal.StringFixed(2),
			row.Outstanding.StringFixed(2),
		)
	}
	fmt.Fprintf(tw, "\t\t\tTOTAL DUE\t%s\n", report.TotalOutstanding.StringFixed(2))
	return tw.Flush()
}
