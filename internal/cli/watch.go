package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"driftexport/internal/accounts"
	"driftexport/internal/watch"
	"driftexport/pkg/drift"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		record   bool
		createDB bool
		resync   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <authority>",
		Short: "Follow the UserStats account of an authority and log FUEL changes",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			authority, err := parseKey(args[0])
			if err != nil {
				return err
			}
			programID, err := a.programID()
			if err != nil {
				return err
			}
			address, err := drift.UserStatsAddress(programID, authority)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			wsURL := a.cfg.Drift.WSURL
			if wsURL == "" {
				rpcURL, err := a.cfg.Drift.ResolveRPCURL(ctx, a.cfg.Env)
				if err != nil {
					return err
				}
				if wsURL, err = drift.WSURLFromRPC(rpcURL); err != nil {
					return err
				}
			}

			var recorder watch.Recorder
			if record {
				db, err := a.openDB(a.cfg, createDB)
				if err != nil {
					return err
				}
				defer db.Close()
				recorder = db
			}

			client, err := a.dial(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			store := accounts.NewStore()
			w := &watch.Watcher{
				Address: address,
				Source:  client,
				Stream:  drift.NewWSClient(wsURL, address, a.cfg.Drift.Commitment, a.log),
				Handler: watch.MakeUpdateHandler(a.log, store, address.String(), recorder),
				Resync:  resync,
				Logger:  a.log,
			}

			a.log.Info("watching user stats",
				zap.String("authority", authority.String()),
				zap.String("address", address.String()),
			)

			err = w.Run(ctx)
			if errors.Is(err, context.Canceled) {
				a.log.Info("watch stopped")
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&record, "record", false, "record every observed state to postgres")
	cmd.Flags().DurationVar(&resync, "resync", time.Minute, "re-read the account over RPC at this interval (0 disables)")
	cmd.Flags().BoolVar(&createDB, "create-db", false, "create the postgres database when missing")
	return cmd
}
