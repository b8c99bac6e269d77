package cli

import (
	"fmt"
	"time"

	"driftexport/internal/accounts"
	"driftexport/internal/snapshot"

	"github.com/spf13/cobra"
)

var datasets = []string{accounts.DatasetUserStats, accounts.DatasetUsers}

func newSnapshotsCmd(a *app) *cobra.Command {
	var dataset string

	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Inspect and prune the snapshot cache",
	}
	cmd.PersistentFlags().StringVar(&dataset, "dataset", "", "limit to one dataset (userstats or users)")

	selected := func() ([]string, error) {
		if dataset == "" {
			return datasets, nil
		}
		for _, d := range datasets {
			if d == dataset {
				return []string{d}, nil
			}
		}
		return nil, usageErrorf("unknown dataset %q", dataset)
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List cached snapshots, newest first",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := selected()
			if err != nil {
				return err
			}
			p := a.printer(cmd.OutOrStdout())
			now := a.now()
			for _, name := range names {
				// Listing never decodes payloads.
				cache, err := snapshot.New[struct{}](a.cfg.Cache.Dir, name, a.log)
				if err != nil {
					return err
				}
				infos, err := cache.List()
				if err != nil {
					return err
				}

				p.Section(fmt.Sprintf("%s (%s)", name, p.Count(len(infos))))
				if len(infos) == 0 {
					p.Note("no snapshots")
					continue
				}
				for _, info := range infos {
					age := info.Age(now).Truncate(time.Second)
					state := "stale"
					if age <= a.cfg.Cache.MaxAge {
						state = "fresh"
					}
					p.Linef("  %s  %s  age %s  %s", info.DirName, info.CapturedAt.Format(time.RFC3339), age, state)
				}
			}
			return nil
		},
	}

	var keep int
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Remove all but the newest --keep snapshots",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if keep < 0 {
				return usageErrorf("--keep must be >= 0, got %d", keep)
			}
			names, err := selected()
			if err != nil {
				return err
			}
			for _, name := range names {
				cache, err := snapshot.New[struct{}](a.cfg.Cache.Dir, name, a.log)
				if err != nil {
					return err
				}
				removed, err := cache.Prune(keep)
				for _, dir := range removed {
					fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", dir)
				}
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
	prune.Flags().IntVar(&keep, "keep", 1, "number of snapshots to keep per dataset")

	cmd.AddCommand(list, prune)
	return cmd
}
