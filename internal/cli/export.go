package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"driftexport/internal/export"
	"driftexport/pkg/drift"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	sinkCSV      = "csv"
	sinkPostgres = "postgres"
)

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export UserStats accounts",
	}
	cmd.AddCommand(newExportUserStatsCmd(a), newExportFuelCmd(a))
	return cmd
}

func newExportUserStatsCmd(a *app) *cobra.Command {
	var (
		output   string
		sink     string
		createDB bool
	)

	cmd := &cobra.Command{
		Use:   "userstats",
		Short: "Export every UserStats account with all fields",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if sink != sinkCSV && sink != sinkPostgres {
				return usageErrorf("unknown sink %q, want %s or %s", sink, sinkCSV, sinkPostgres)
			}

			snap, err := a.loadUserStats(cmd.Context())
			if err != nil {
				return err
			}
			accs := snap.Payload.Accounts

			if sink == sinkPostgres {
				return a.saveToPostgres(cmd.Context(), snap.CapturedAt, accs, createDB)
			}

			return a.writeCSV(cmd.OutOrStdout(), output, "full", func(w io.Writer) (export.Result, error) {
				return export.WriteUserStatsCSV(w, accs, a.log)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output CSV path (default: timestamped file in export.output_dir)")
	cmd.Flags().StringVar(&sink, "sink", sinkCSV, "destination: csv or postgres")
	cmd.Flags().BoolVar(&createDB, "create-db", false, "create the postgres database when missing")
	return cmd
}

func newExportFuelCmd(a *app) *cobra.Command {
	var (
		output   string
		skipZero bool
		scale    int32
	)

	cmd := &cobra.Command{
		Use:   "fuel",
		Short: "Export FUEL counters of every UserStats account",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if scale < 0 {
				return usageErrorf("--scale must be >= 0, got %d", scale)
			}

			snap, err := a.loadUserStats(cmd.Context())
			if err != nil {
				return err
			}

			opts := export.FuelOptions{SkipZero: skipZero, Scale: scale}
			return a.writeCSV(cmd.OutOrStdout(), output, "fuel", func(w io.Writer) (export.Result, error) {
				return export.WriteFuelCSV(w, snap.Payload.Accounts, opts, a.log)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output CSV path (default: timestamped file in export.output_dir)")
	cmd.Flags().BoolVar(&skipZero, "skip-zero", false, "omit accounts without any FUEL")
	cmd.Flags().Int32Var(&scale, "scale", 0, fmt.Sprintf("divide counters by 10^scale (e.g. %d)", drift.QuoteDecimals))
	return cmd
}

// writeCSV creates the output file and reports where it went.
func (a *app) writeCSV(stdout io.Writer, output, kind string, write func(io.Writer) (export.Result, error)) error {
	if output == "" {
		output = filepath.Join(a.cfg.Export.OutputDir, export.DefaultFilename(kind, a.now(), a.cfg.Export.FilenameTimeFormat))
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	res, err := write(f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close output: %w", cerr)
	}
	if err != nil {
		return err
	}

	a.log.Info("export complete",
		zap.String("file", output),
		zap.Int("exported", res.Exported),
		zap.Int("skipped", res.Skipped),
	)
	fmt.Fprintf(stdout, "Exported %d accounts to %s\n", res.Exported, output)
	return nil
}

func (a *app) saveToPostgres(ctx context.Context, capturedAt time.Time, accs []drift.UserStats, createDB bool) error {
	db, err := a.openDB(a.cfg, createDB)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.SaveUserStats(ctx, capturedAt, accs)
	if err != nil {
		return err
	}
	a.log.Info("saved user stats to postgres",
		zap.Int64("inserted", n),
		zap.Int("accounts", len(accs)),
		zap.Time("captured_at", capturedAt),
	)
	return nil
}
