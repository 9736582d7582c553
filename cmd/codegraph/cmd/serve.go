package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codegraph-dev/codegraph/internal/mcp"
	"github.com/codegraph-dev/codegraph/internal/storage"
)

func newServeCmd() *cobra.Command {
	var (
		transport string
		addr      string
		offline   bool
	)

	cmd := &cobra.Command{
		Use:   "serve [path]",
		Short: "Serve a project over MCP",
		Long: `Serve starts the MCP server, exposing search/analyze/node tools to
an agent over the given transport. stdio is the default transport and is
what editors and agent harnesses expect; http is available for remote or
shared setups.

The project must already be indexed (run 'codegraph index' first, or let
'codegraph' with no subcommand index and serve in one step).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			root := resolveRootFrom(path)
			return runServeAt(ctx, root, transport, addr, offline)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport: stdio or http")
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8737", "Listen address for http transport")
	cmd.Flags().BoolVar(&offline, "offline", false, "Use static embeddings (skip model download)")

	return cmd
}

// runServe is the entry point the smart-default flow (root.go) calls once
// indexing has completed, always over stdio.
func runServe(ctx context.Context, cmd *cobra.Command, transport string) error {
	root := resolveRoot()
	offline, _ := cmd.Flags().GetBool("offline")
	return runServeAt(ctx, root, transport, "127.0.0.1:8737", offline)
}

func runServeAt(ctx context.Context, root, transport, addr string, offline bool) error {
	cfg := loadProjectConfig(root)
	dataDir := dataDirFor(root)

	if !hasIndex(dataDir) {
		return fmt.Errorf("project is not indexed yet; run 'codegraph index' first")
	}

	embedder, closeEmbedder, err := buildEmbedder(ctx, cfg, offline)
	if err != nil {
		return err
	}
	defer func() { _ = closeEmbedder() }()

	engine := storage.NewEngine(dataDir)
	o := buildOrchestrator(engine, embedder)

	server, err := mcp.NewServer(o, projectID(root), root)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	slog.Info("starting MCP server", slog.String("transport", transport), slog.String("root", root))
	if err := server.Serve(ctx, transport, addr); err != nil {
		return fmt.Errorf("serve failed: %w", err)
	}
	return nil
}
