package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codegraph-dev/codegraph/internal/orchestrator"
	"github.com/codegraph-dev/codegraph/internal/output"
	"github.com/codegraph-dev/codegraph/internal/storage"
)

// indexMarkerFile records that an index run has completed at least once
// for this project, since the Storage Engine (C9) doesn't expose its
// on-disk layout for a CLI-side existence check.
const indexMarkerFile = ".indexed"

func newIndexCmd() *cobra.Command {
	var (
		force   bool
		backend string
	)

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a directory into the graph and vector store",
		Long: `Index a directory so it can be searched and analyzed.

This walks the tree, parses and chunks source files, builds the code
graph, generates embeddings, and writes everything into the hybrid
graph+vector store.

Backend Selection:
  (default)          Auto-detect: Ollama on all platforms (MLX is opt-in)
  --backend=mlx      Use MLX (Apple Silicon)
  --backend=ollama   Use Ollama (cross-platform)
  --backend=static   Use deterministic static embeddings (no network)

Use --force to clear the existing index and rebuild from scratch.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			if backend != "" {
				os.Setenv("AMANMCP_EMBEDDER", backend)
			}

			return runIndexCmd(ctx, cmd, path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Clear existing index and rebuild from scratch")
	cmd.Flags().StringVar(&backend, "backend", "", "Embedding backend: auto-detect (default), mlx, ollama, or static")
	cmd.Flags().Bool("offline", false, "Use static embeddings (skip model download)")

	return cmd
}

func runIndexCmd(ctx context.Context, cmd *cobra.Command, path string, force bool) error {
	offline, _ := cmd.Flags().GetBool("offline")
	out := output.New(cmd.OutOrStdout())

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("failed to access path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", absPath)
	}

	root := resolveRootFrom(absPath)
	dataDir := dataDirFor(root)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	if force {
		if err := os.RemoveAll(dataDir); err != nil {
			return fmt.Errorf("failed to clear index data: %w", err)
		}
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return fmt.Errorf("failed to recreate data directory: %w", err)
		}
		out.Status("", "Cleared existing index data, starting fresh...")
	}

	out.Statusf("🔍", "Indexing %s...", root)
	stats, err := runIndex(ctx, root, offline)
	if err != nil {
		return err
	}

	out.Newline()
	out.Success("Index complete")
	out.Status("", fmt.Sprintf("  Files scanned: %d", stats.FilesScanned))
	out.Status("", fmt.Sprintf("  Parsed:        %d", stats.ParsedFiles))
	out.Status("", fmt.Sprintf("  Failed:        %d", stats.FailedFiles))
	out.Status("", fmt.Sprintf("  Nodes added:   %d", stats.NodesAdded))
	out.Status("", fmt.Sprintf("  Edges added:   %d", stats.EdgesAdded))
	out.Status("", fmt.Sprintf("  Symbols:       %d", stats.Symbols))
	out.Status("", fmt.Sprintf("  Parse time:    %.2fs", stats.ParseSeconds))
	return nil
}

// runIndex runs a full index over root and, on success, writes the marker
// file hasIndex checks for. It is shared by the smart-default flow
// (root.go) and the explicit index command.
func runIndex(ctx context.Context, root string, offline bool) (orchestrator.IndexStats, error) {
	cfg := loadProjectConfig(root)
	dataDir := dataDirFor(root)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return orchestrator.IndexStats{}, fmt.Errorf("failed to create data directory: %w", err)
	}

	embedder, closeEmbedder, err := buildEmbedder(ctx, cfg, offline)
	if err != nil {
		return orchestrator.IndexStats{}, err
	}
	defer func() { _ = closeEmbedder() }()

	engine := storage.NewEngine(dataDir)
	o := buildOrchestrator(engine, embedder)

	start := time.Now()
	stats, err := o.Index(ctx, projectID(root), root, orchestrator.IndexerConfig{
		IncludeGlobs:     cfg.Paths.Include,
		ExcludeGlobs:     cfg.Paths.Exclude,
		ParseConcurrency: cfg.Performance.IndexWorkers,
		EmbedBatchSize:   cfg.Embeddings.BatchSize,
	})
	if err != nil {
		return stats, fmt.Errorf("index failed: %w", err)
	}
	slog.Info("index run complete", slog.String("root", root), slog.Duration("elapsed", time.Since(start)))

	if err := os.WriteFile(filepath.Join(dataDir, indexMarkerFile), []byte(time.Now().Format(time.RFC3339)), 0644); err != nil {
		return stats, fmt.Errorf("failed to write index marker: %w", err)
	}

	return stats, nil
}
