package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codegraph-dev/codegraph/internal/orchestrator"
	"github.com/codegraph-dev/codegraph/internal/storage"
	"github.com/codegraph-dev/codegraph/internal/watch"
)

func newWatchCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a project and keep its index up to date",
		Long: `Watch runs in the foreground, monitoring the project tree for file
changes and incrementally re-indexing edited files through the normal
write pipeline. Use Ctrl-C to stop.

The project must already be indexed (run 'codegraph index' first).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, path)
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "Project directory")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, path string) error {
	root := resolveRootFrom(path)
	dataDir := dataDirFor(root)

	if !hasIndex(dataDir) {
		return fmt.Errorf("project is not indexed yet; run 'codegraph index' first")
	}

	cfg := loadProjectConfig(root)
	embedder, closeEmbedder, err := buildEmbedder(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = closeEmbedder() }()

	engine := storage.NewEngine(dataDir)
	o := buildOrchestrator(engine, embedder)

	indexerCfg := orchestrator.IndexerConfig{
		IncludeGlobs:     cfg.Paths.Include,
		ExcludeGlobs:     cfg.Paths.Exclude,
		ParseConcurrency: cfg.Performance.IndexWorkers,
		EmbedBatchSize:   cfg.Embeddings.BatchSize,
	}
	fileIndexer := orchestrator.NewFileIndexer(o, projectID(root), root, indexerCfg)

	rawWatcher := watch.NewFSWatcher(cfg.Paths.Exclude...)
	daemon := watch.New(root, rawWatcher, fileIndexer, watch.DefaultConfig())

	if err := daemon.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	slog.Info("watching for changes", slog.String("root", root))
	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for changes (Ctrl-C to stop)...\n", root)

	<-ctx.Done()
	daemon.Wait()
	return nil
}
