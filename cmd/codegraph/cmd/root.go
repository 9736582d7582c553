// Package cmd provides the CLI commands for CodeGraph.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codegraph-dev/codegraph/internal/logging"
	"github.com/codegraph-dev/codegraph/internal/preflight"
	"github.com/codegraph-dev/codegraph/internal/profiling"
	"github.com/codegraph-dev/codegraph/pkg/version"
)

// Profiling flags.
var (
	profileCPU   string
	profileMem   string
	profileTrace string
	profiler     = profiling.NewProfiler()
	cpuCleanup   func()
	traceCleanup func()
)

// Debug logging flag.
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the codegraph CLI.
func NewRootCmd() *cobra.Command {
	var offline bool
	var reindex bool
	var skipCheck bool

	cmd := &cobra.Command{
		Use:   "codegraph",
		Short: "Local-first hybrid code search and graph index for AI agents",
		Long: `CodeGraph indexes a codebase into a hybrid graph+vector store and
serves it over MCP so coding agents can search and analyze it directly.

It runs entirely locally with zero configuration required.

Just run 'codegraph' in your project directory to get started.`,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return cmd.Help()
			}
			return runSmartDefault(cmd.Context(), cmd, offline, reindex, skipCheck)
		},
	}

	cmd.SetVersionTemplate("codegraph version {{.Version}}\n")

	cmd.Flags().BoolVar(&offline, "offline", false, "Use static embeddings (skip model download)")
	cmd.Flags().BoolVar(&reindex, "reindex", false, "Force reindex even if index exists")
	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "Skip pre-flight system checks")

	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.codegraph/logs/")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newAnalyzeCmd())
	cmd.AddCommand(newSetupCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging starts CPU/trace profiling and debug logging if flags are set.
func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error

	if debugMode {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	}

	if profileCPU != "" {
		cpuCleanup, err = profiler.StartCPU(profileCPU)
		if err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
	}

	if profileTrace != "" {
		traceCleanup, err = profiler.StartTrace(profileTrace)
		if err != nil {
			if cpuCleanup != nil {
				cpuCleanup()
			}
			return fmt.Errorf("failed to start trace: %w", err)
		}
	}

	return nil
}

// stopProfilingAndLogging stops profiling and logging, writes memory profile if requested.
func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if cpuCleanup != nil {
		cpuCleanup()
		cpuCleanup = nil
	}
	if traceCleanup != nil {
		traceCleanup()
		traceCleanup = nil
	}
	if profileMem != "" {
		if err := profiler.WriteHeap(profileMem); err != nil {
			return fmt.Errorf("failed to write memory profile: %w", err)
		}
	}
	if loggingCleanup != nil {
		slog.Info("debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// runSmartDefault implements the "It Just Works" flow: find the project,
// index it if needed, and start the MCP server over stdio. stdout is
// reserved exclusively for JSON-RPC once the server starts, so every
// status message up to that point goes through slog (stderr, or the log
// file with --debug), not stdout.
func runSmartDefault(ctx context.Context, cmd *cobra.Command, offline, reindex, skipCheck bool) error {
	root := resolveRoot()
	dataDir := dataDirFor(root)

	if !skipCheck && preflight.NeedsCheck(dataDir) {
		checker := preflight.New(
			preflight.WithOffline(offline),
			preflight.WithOutput(io.Discard),
		)
		results := checker.RunAll(ctx, root)

		if checker.HasCriticalFailures(results) {
			slog.Error("system check failed - run 'codegraph doctor' for diagnostics")
			return fmt.Errorf("system check failed")
		}
		if err := preflight.MarkPassed(dataDir); err != nil {
			slog.Debug("failed to mark preflight as passed", slog.String("error", err.Error()))
		}
	}

	needsIndex := reindex || !hasIndex(dataDir)
	if needsIndex {
		slog.Info("index not found, building index", slog.String("root", root))
		if _, err := runIndex(ctx, root, offline); err != nil {
			slog.Error("indexing failed", slog.String("error", err.Error()))
			return fmt.Errorf("indexing failed: %w", err)
		}
		slog.Info("index complete")
	} else {
		slog.Debug("index found", slog.String("data_dir", dataDir))
	}

	return runServe(ctx, cmd, "stdio")
}

func hasIndex(dataDir string) bool {
	_, err := os.Stat(filepath.Join(dataDir, indexMarkerFile))
	return err == nil
}
