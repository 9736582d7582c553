package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/codegraph-dev/codegraph/internal/config"
	"github.com/codegraph-dev/codegraph/internal/core"
	"github.com/codegraph-dev/codegraph/internal/embed"
	"github.com/codegraph-dev/codegraph/internal/embedding"
	"github.com/codegraph-dev/codegraph/internal/orchestrator"
	"github.com/codegraph-dev/codegraph/internal/rerank"
	"github.com/codegraph-dev/codegraph/internal/storage"
)

const dataDirName = ".codegraph"

// resolveRoot finds the project root starting from the current directory,
// falling back to the working directory when no project markers are found.
func resolveRoot() string {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}
	return root
}

// dataDirFor returns the on-disk directory codegraph stores its index data
// under, rooted at a project directory.
func dataDirFor(root string) string {
	return filepath.Join(root, dataDirName)
}

// resolveRootFrom finds the project root starting from an explicit
// directory (rather than the process cwd), falling back to that
// directory itself when no project markers are found.
func resolveRootFrom(dir string) string {
	root, err := config.FindProjectRoot(dir)
	if err != nil {
		return dir
	}
	return root
}

// projectID turns a project root path into the opaque Project id every
// storage/orchestrator call is scoped by.
func projectID(root string) core.Project {
	return core.Project(root)
}

// buildEmbedder wires a primary provider (MLX/Ollama/static, selected via
// cfg.Embeddings.Provider) behind a Hybrid Pipeline that falls back to a
// StaticEmbedder when the primary is unreachable, matching the "no silent
// degradation past an explicit fallback chain" posture the provider
// factory already documents. offline skips the network-backed provider
// entirely and uses the static embedder as the primary.
func buildEmbedder(ctx context.Context, cfg *config.Config, offline bool) (*embedding.Pipeline, func() error, error) {
	if offline {
		primary := embed.NewStaticEmbedder768()
		return embedding.NewPipeline(primary, embedding.StrategyNone), primary.Close, nil
	}

	embed.SetMLXConfig(embed.MLXServerConfig{
		Endpoint: cfg.Embeddings.MLXEndpoint,
		Model:    cfg.Embeddings.MLXModel,
	})

	provider := embed.ParseProvider(cfg.Embeddings.Provider)
	embedCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	primary, err := embed.NewEmbedder(embedCtx, provider, cfg.Embeddings.Model)
	if err != nil {
		return nil, nil, fmt.Errorf("embedder initialization failed: %w", err)
	}

	fallback := embed.NewStaticEmbedder()
	pipeline := embedding.NewPipeline(primary, embedding.StrategyReliabilityBased).AddFallback(fallback)
	closeFn := func() error {
		_ = fallback.Close()
		return primary.Close()
	}
	return pipeline, closeFn, nil
}

// buildOrchestrator opens the storage engine rooted at a project's data
// directory and wires it together with an embedder into an Orchestrator,
// ready for Index/Search/Analyze calls. The cross-encoder reranker is left
// nil: no CLI command currently needs reranked insights, and an
// Orchestrator built with a nil reranker returns the Retriever's fusion
// scores, as New's doc comment describes.
func buildOrchestrator(engine *storage.Engine, embedder orchestrator.Embedder) *orchestrator.Orchestrator {
	var reranker *rerank.Pipeline
	return orchestrator.New(engine, embedder, reranker)
}

func loadProjectConfig(root string) *config.Config {
	cfg, err := config.Load(root)
	if err != nil {
		cfg = config.NewConfig()
	}
	return cfg
}
