package cli

import (
	"context"
	"fmt"
	"time"

	"driftexport/config"
	"driftexport/internal/report"
	"driftexport/pkg/drift"
	"driftexport/pkg/storage/postgres"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// statsDB is the recorded UserStats history in postgres.
type statsDB interface {
	SaveUserStats(ctx context.Context, capturedAt time.Time, accounts []drift.UserStats) (int64, error)
	GetUserStatsHistory(ctx context.Context, authority string, limit int) ([]postgres.UserStatsRecord, error)
	DeleteUserStatsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

func openPostgres(cfg *config.Config, createDB bool) (statsDB, error) {
	db, err := postgres.InitializeAndMigrateUserStats(cfg.Postgres, cfg.Env, createDB)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <authority>",
		Short: "Show recorded FUEL totals of one authority from postgres",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return usageErrorf("--limit must be >= 0, got %d", limit)
			}
			authority, err := parseKey(args[0])
			if err != nil {
				return err
			}

			db, err := a.openDB(a.cfg, false)
			if err != nil {
				return err
			}
			defer db.Close()

			records, err := db.GetUserStatsHistory(cmd.Context(), authority.String(), limit)
			if err != nil {
				return err
			}
			points := make([]report.FuelPoint, 0, len(records))
			for _, r := range records {
				points = append(points, report.FuelPoint{
					At:    r.CapturedAt,
					Taker: r.FuelTaker,
					Maker: r.FuelMaker,
					Total: r.TotalFuel,
				})
			}
			report.RenderFuelHistory(a.printer(cmd.OutOrStdout()), authority.String(), points)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "show at most this many of the oldest states (0 for all)")

	cmd.AddCommand(newHistoryPruneCmd(a))
	return cmd
}

func newHistoryPruneCmd(a *app) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete recorded states captured before now minus --older-than",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return usageErrorf("--older-than must be > 0, got %s", olderThan)
			}

			db, err := a.openDB(a.cfg, false)
			if err != nil {
				return err
			}
			defer db.Close()

			cutoff := a.now().UTC().Add(-olderThan)
			n, err := db.DeleteUserStatsBefore(cmd.Context(), cutoff)
			if err != nil {
				return err
			}
			a.log.Info("pruned user stats history", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d recorded states captured before %s\n", n, cutoff.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "keep states captured within this window")
	return cmd
}
