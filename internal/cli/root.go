// Package cli wires the driftexport commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"driftexport/config"
	"driftexport/internal/accounts"
	"driftexport/internal/report"
	"driftexport/internal/snapshot"
	"driftexport/logger"
	"driftexport/pkg/drift"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// Exit codes.
const (
	ExitSuccess      = 0
	ExitUsageError   = 2
	ExitRuntimeError = 1
)

// rpcClient is what commands need from the Solana RPC node.
type rpcClient interface {
	accounts.Client
	GetAccount(ctx context.Context, key solana.PublicKey) (*drift.RawAccount, uint64, error)
	ProgramID() solana.PublicKey
	Close() error
}

type app struct {
	version string

	configPath   string
	rpcURL       string
	cacheDir     string
	maxAge       time.Duration
	verbose      bool
	forceRefresh bool

	cfg *config.Config
	log *zap.Logger

	// dial and openDB are replaced in tests.
	dial   func(ctx context.Context, cfg *config.Config) (rpcClient, error)
	openDB func(cfg *config.Config, createDB bool) (statsDB, error)
	now    func() time.Time
}

func newApp(version string) *app {
	return &app{
		version: version,
		dial:    dialRPC,
		openDB:  openPostgres,
		now:     time.Now,
	}
}

// Execute runs the CLI and returns the process exit code.
func Execute(version string) int {
	return execute(NewRootCmd(version))
}

func execute(cmd *cobra.Command) int {
	return exitCode(cmd.Execute())
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var usage *usageError
	if errors.As(err, &usage) {
		return ExitUsageError
	}
	return ExitRuntimeError
}

// NewRootCmd builds the driftexport command tree.
func NewRootCmd(version string) *cobra.Command {
	return newRootCmd(newApp(version))
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "driftexport",
		Short:         "Export Drift protocol accounts to CSV, Postgres and console reports",
		Version:       a.version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{msg: err.Error()}
	})

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file or directory containing config.yaml")
	flags.StringVar(&a.rpcURL, "rpc-url", "", "Solana RPC endpoint (overrides config and RPC_URL)")
	flags.StringVar(&a.cacheDir, "cache-dir", "", "snapshot cache directory")
	flags.DurationVar(&a.maxAge, "max-age", 0, "reuse snapshots younger than this (e.g. 30m)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&a.forceRefresh, "force-refresh", false, "always fetch a new snapshot")

	cmd.AddCommand(
		newExportCmd(a),
		newPositionsCmd(a),
		newFuelCmd(a),
		newTiersCmd(a),
		newCompareCmd(a),
		newDeriveCmd(a),
		newSnapshotsCmd(a),
		newHistoryCmd(a),
		newWatchCmd(a),
		newVersionCmd(a),
	)
	return cmd
}

// setup loads config and builds the logger. Flags win over config.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("rpc-url") {
		cfg.Drift.RPCURL = a.rpcURL
		cfg.Drift.RPCURLParameter = ""
	}
	if flags.Changed("cache-dir") {
		cfg.Cache.Dir = a.cacheDir
	}
	if flags.Changed("max-age") {
		if a.maxAge < 0 {
			return usageErrorf("--max-age must be >= 0, got %s", a.maxAge)
		}
		cfg.Cache.MaxAge = a.maxAge
	}
	if flags.Changed("force-refresh") {
		cfg.Cache.ForceRefresh = a.forceRefresh
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.NewWithWriter(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	a.cfg = cfg
	a.log = log
	return nil
}

func dialRPC(ctx context.Context, cfg *config.Config) (rpcClient, error) {
	programID, err := drift.ParseProgramID(cfg.Drift.ProgramID)
	if err != nil {
		return nil, err
	}
	endpoint, err := cfg.Drift.ResolveRPCURL(ctx, cfg.Env)
	if err != nil {
		return nil, err
	}
	return drift.NewRPCClient(endpoint, programID, cfg.Drift.Commitment, cfg.Drift.RequestTimeout), nil
}

func (a *app) query() snapshot.Query {
	return snapshot.Query{MaxAge: a.cfg.Cache.MaxAge, ForceRefresh: a.cfg.Cache.ForceRefresh}
}

func (a *app) batchOptions() accounts.Options {
	return accounts.Options{ChunkSize: a.cfg.Drift.ChunkSize, Concurrency: a.cfg.Drift.Concurrency}
}

// loadUserStats returns a UserStats snapshot, fetching one when the cache has nothing fresh.
func (a *app) loadUserStats(ctx context.Context) (*snapshot.Snapshot[accounts.UserStatsSet], error) {
	return loadDataset(ctx, a, accounts.DatasetUserStats, func(c rpcClient) snapshot.Fetcher[accounts.UserStatsSet] {
		return &accounts.UserStatsFetcher{Client: c, Options: a.batchOptions(), Logger: a.log}
	})
}

func (a *app) loadUsers(ctx context.Context) (*snapshot.Snapshot[accounts.UserSet], error) {
	return loadDataset(ctx, a, accounts.DatasetUsers, func(c rpcClient) snapshot.Fetcher[accounts.UserSet] {
		return &accounts.UserFetcher{Client: c, Options: a.batchOptions(), Logger: a.log}
	})
}

// loadDataset dials the RPC node only on a cache miss. A snapshot that was
// fetched but could not be written is still returned; the failure is logged.
func loadDataset[T any](ctx context.Context, a *app, prefix string, newFetcher func(rpcClient) snapshot.Fetcher[T]) (*snapshot.Snapshot[T], error) {
	cache, err := snapshot.New[T](a.cfg.Cache.Dir, prefix, a.log)
	if err != nil {
		return nil, err
	}
	cache.Now = a.now

	var client rpcClient
	defer func() {
		if client != nil {
			_ = client.Close()
		}
	}()

	fetcher := snapshot.FetcherFunc[T](func(ctx context.Context) (T, error) {
		c, err := a.dial(ctx, a.cfg)
		if err != nil {
			var zero T
			return zero, err
		}
		client = c
		return newFetcher(c).Fetch(ctx)
	})

	snap, err := cache.GetOrFetch(ctx, a.query(), fetcher)
	var perr *snapshot.PersistenceError
	if errors.As(err, &perr) && snap != nil {
		a.log.Warn("snapshot fetched but not saved", zap.String("dir", perr.DirName), zap.Error(perr.Err))
		return snap, nil
	}
	return snap, err
}

// printer styles output only when stdout is a terminal.
func (a *app) printer(w io.Writer) *report.Printer {
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}
	return report.NewPrinter(w, styled)
}

type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usageErrorf(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// usageArgs marks argument count failures as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return &usageError{msg: err.Error()}
		}
		return nil
	}
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print driftexport version",
		Args:  usageArgs(cobra.NoArgs),
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "driftexport version %s\n", a.version)
		},
	}
}
