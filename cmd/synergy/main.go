package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/synergy/pkg/config"
	"github.com/ajitpratap0/synergy/pkg/logger"
	"github.com/ajitpratap0/synergy/pkg/observability"
	"github.com/ajitpratap0/synergy/pkg/store"
)

var version = "0.1.0"

// app holds the state shared by every command: the loaded configuration
// snapshot, the logger built from it and the optional tracer shutdown hook.
type app struct {
	configFile string
	envFile    string
	logLevel   string
	trace      bool

	snap          config.Snapshot
	log           *zap.Logger
	shutdownTrace func(context.Context) error
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "synergy",
		Short: "Synergy - cross-domain configuration and state store",
		Long: `Synergy loads the cross-domain synergy configuration from the environment
and persists domain state to MongoDB, falling back to an in-memory store when
no backend is configured or reachable.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown(cmd.Context())
		},
	}

	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "Path to a YAML file of overrides (optional)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Path to a .env file loaded before reading overrides")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level, overrides LOG_LEVEL (debug, info, warning, error)")
	root.PersistentFlags().BoolVar(&a.trace, "trace", false, "Print store operation spans to stderr")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Synergy v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(a.configCommand())
	root.AddCommand(a.storeCommand())
	root.AddCommand(a.dataCommand())

	return root
}

// setup loads the configuration and installs the process-wide logger.
// Validation is left to the commands so that "config check" can report it.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	opts := []config.LoadOption{config.WithDotEnv(a.envFile)}
	if a.configFile != "" {
		opts = append(opts, config.WithFile(a.configFile))
	}
	snap, err := config.Load(opts...)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		snap.LogLevel = a.logLevel
	}
	a.snap = snap

	logCfg := snap.LoggerConfig()
	logCfg.Encoding = "console"
	logCfg.OutputPaths = []string{"stderr"}
	a.log, err = logger.Init(logCfg)
	if err != nil {
		return err
	}
	a.log = a.log.With(zap.String("component", "synergy-cli"))

	if a.trace {
		a.shutdownTrace, err = observability.InitTracing(observability.TracingConfig{
			ServiceName:    "synergy",
			ServiceVersion: version,
			Environment:    "cli",
			SamplingRate:   1,
			ExporterType:   "stdout",
			Writer:         cmd.ErrOrStderr(),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	if a.shutdownTrace != nil {
		if err := a.shutdownTrace(ctx); err != nil {
			a.log.Warn("failed to flush traces", zap.Error(err))
		}
	}
	_ = logger.Sync()
	return nil
}

// openStore validates the snapshot and returns an initialized manager. The
// caller closes it.
func (a *app) openStore(ctx context.Context) (*store.Manager, error) {
	mgr := store.NewManager(a.log, store.WithDialer(store.NewMongoDialer(a.log)))
	if err := mgr.InitializeFromSnapshot(ctx, a.snap); err != nil {
		return nil, err
	}
	a.log.Debug("store ready", zap.Stringer("mode", mgr.State()))
	return mgr, nil
}

func (a *app) closeStore(ctx context.Context, mgr *store.Manager) {
	if err := mgr.Close(ctx); err != nil {
		a.log.Warn("failed to close store", zap.Error(err))
	}
}
