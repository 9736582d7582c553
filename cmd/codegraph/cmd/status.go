package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/codegraph-dev/codegraph/internal/config"
	"github.com/codegraph-dev/codegraph/internal/output"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and status",
		Long: `Display information about the current index including:
  - Whether the project has been indexed, and when
  - Storage size on disk
  - Configured embedder provider and model`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

type statusInfo struct {
	ProjectRoot    string    `json:"project_root"`
	Indexed        bool      `json:"indexed"`
	LastIndexed    time.Time `json:"last_indexed,omitempty"`
	StorageSize    int64     `json:"storage_size_bytes"`
	EmbedderType   string    `json:"embedder_provider"`
	EmbedderModel  string    `json:"embedder_model"`
}

func runStatus(cmd *cobra.Command, jsonOutput bool) error {
	root := resolveRoot()
	dataDir := dataDirFor(root)

	if !hasIndex(dataDir) {
		return fmt.Errorf("no index found in %s\nRun 'codegraph index' to create one", root)
	}

	info := collectStatus(root, dataDir)

	if jsonOutput {
		return printStatusJSON(cmd, info)
	}
	printStatusText(cmd, info)
	return nil
}

func collectStatus(root, dataDir string) statusInfo {
	info := statusInfo{ProjectRoot: root, Indexed: true}

	if markerInfo, err := os.Stat(filepath.Join(dataDir, indexMarkerFile)); err == nil {
		info.LastIndexed = markerInfo.ModTime()
	}
	info.StorageSize = getDirSize(dataDir)

	cfg, err := config.Load(root)
	if err != nil {
		cfg = config.NewConfig()
	}
	info.EmbedderType = cfg.Embeddings.Provider
	info.EmbedderModel = cfg.Embeddings.Model

	return info
}

func printStatusJSON(cmd *cobra.Command, info statusInfo) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

func printStatusText(cmd *cobra.Command, info statusInfo) {
	out := output.New(cmd.OutOrStdout())
	out.Statusf("📁", "Project: %s", info.ProjectRoot)
	if !info.LastIndexed.IsZero() {
		out.Statusf("🕒", "Last indexed: %s", info.LastIndexed.Format(time.RFC3339))
	}
	out.Statusf("💾", "Storage size: %s", formatBytes(info.StorageSize))
	out.Statusf("🧠", "Embedder: %s (%s)", info.EmbedderType, info.EmbedderModel)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for next := n / unit; next >= unit; next /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func getDirSize(path string) int64 {
	var size int64
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}
