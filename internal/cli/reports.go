package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"driftexport/internal/accounts"
	"driftexport/internal/report"
	"driftexport/pkg/drift"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newPositionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "positions [authority]",
		Short: "Aggregate open perp and spot positions, or list those of one authority",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			var authority string
			if len(args) == 1 {
				key, err := parseKey(args[0])
				if err != nil {
					return err
				}
				authority = key.String()
			}

			snap, err := a.loadUsers(cmd.Context())
			if err != nil {
				return err
			}
			meta := report.SnapshotMeta{
				CapturedAt: snap.CapturedAt,
				Slot:       snap.Payload.Slot,
				Cached:     snap.Hit,
			}

			if authority == "" {
				rep := report.AggregatePositions(snap.Payload.Accounts)
				report.RenderPositions(a.printer(cmd.OutOrStdout()), rep, meta)
				return nil
			}

			users := accounts.NewStoreFromSets(nil, &snap.Payload).UsersOf(authority)
			if len(users) == 0 {
				return fmt.Errorf("no User accounts found for authority %s", authority)
			}
			report.RenderUserPositions(a.printer(cmd.OutOrStdout()), authority, users, meta)
			return nil
		},
	}
}

func newFuelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fuel <authority>",
		Short: "Show the FUEL breakdown of one authority",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			authority, err := parseKey(args[0])
			if err != nil {
				return err
			}

			client, err := a.dial(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			address, err := drift.UserStatsAddress(client.ProgramID(), authority)
			if err != nil {
				return err
			}

			acc, slot, err := client.GetAccount(cmd.Context(), address)
			if errors.Is(err, drift.ErrAccountNotFound) {
				return fmt.Errorf("no UserStats account for %s (%s): %w", authority, address, err)
			}
			if err != nil {
				return err
			}

			stats, err := drift.DecodeUserStats(address.String(), acc.Data)
			if err != nil {
				return err
			}
			report.RenderUserFuel(a.printer(cmd.OutOrStdout()), stats, slot)
			return nil
		},
	}
}

func newTiersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tiers <csv>",
		Short: "Bucket accounts of a FUEL or full export into FUEL tiers",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			rep, err := report.AnalyzeFuelTiers(f, a.log)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			report.RenderTiers(a.printer(cmd.OutOrStdout()), filepath.Base(args[0]), rep)
			return nil
		},
	}
}

func newCompareCmd(a *app) *cobra.Command {
	var (
		output string
		opts   report.CompareOptions
	)

	cmd := &cobra.Command{
		Use:   "compare <first.csv> <second.csv>",
		Short: "Compare total FUEL per authority between two exports",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			first, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer first.Close()

			second, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[1], err)
			}
			defer second.Close()

			cmp, err := report.Compare(first, second, opts, a.log)
			if err != nil {
				return err
			}
			report.RenderComparison(a.printer(cmd.OutOrStdout()), filepath.Base(args[0]), filepath.Base(args[1]), cmp)

			if output == "" {
				return nil
			}
			out, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			if err := report.WriteComparisonCSV(out, cmp); err != nil {
				_ = out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return fmt.Errorf("close output: %w", err)
			}
			a.log.Info("comparison written", zap.String("file", output), zap.Int("rows", len(cmp.Rows)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the merged comparison to this CSV")
	cmd.Flags().BoolVar(&opts.Exclude, "exclude", false, "drop non-Drift users and vault participants flagged in the first file")
	cmd.Flags().StringVar(&opts.KeyColumn, "key-column", "", "authority column name (default: authority or authority_address)")
	cmd.Flags().StringVar(&opts.TotalColumn, "total-column", "", "total column name (default: totalFuel or total_fuel)")
	return cmd
}
