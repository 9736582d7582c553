package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codegraph-dev/codegraph/internal/walker"
)

// MaxResourceSize is the maximum file size for resources (1MB).
const MaxResourceSize = 1024 * 1024

// RegisterResources walks the project root and registers every file the
// File Walker (C3) marks as code as an MCP resource (documentation and
// other non-code files are not registered), so a client can
// read source alongside search results without a separate indexed file
// listing.
func (s *Server) RegisterResources(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rootPath == "" {
		return fmt.Errorf("rootPath must be set before registering resources")
	}

	entries, err := walker.Walk(walker.Options{RootDir: s.rootPath})
	if err != nil {
		return fmt.Errorf("walk project root: %w", err)
	}

	registered := 0
	for _, e := range entries {
		if !e.IsCode {
			continue
		}
		s.registerFileResource(e)
		registered++
	}

	s.logger.Info("registered resources", "count", registered)
	return nil
}

// registerFileResource registers a single file as an MCP resource.
func (s *Server) registerFileResource(e walker.Entry) {
	uri := fmt.Sprintf("file://%s", e.Path)
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        filepath.Base(e.Path),
			URI:         uri,
			Description: fmt.Sprintf("%s (%s)", e.Path, humanSize(e.Size)),
			MIMEType:    MimeTypeForPath(e.Path),
		},
		s.makeFileHandler(e.Path),
	)
}

// makeFileHandler creates a read handler for a specific file path.
func (s *Server) makeFileHandler(path string) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return s.handleReadResource(path)
	}
}

// handleReadResource reads file content directly from disk with path
// traversal protection, after confirming the path resolves inside rootPath.
func (s *Server) handleReadResource(relativePath string) (*mcp.ReadResourceResult, error) {
	if !s.isValidPath(relativePath) {
		return nil, NewInvalidParamsError(fmt.Sprintf("invalid path: %s", relativePath))
	}

	fullPath := filepath.Join(s.rootPath, relativePath)

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &MCPError{Code: ErrCodeFileNotFound, Message: fmt.Sprintf("file not found: %s", relativePath)}
		}
		return nil, MapError(err)
	}
	if info.Size() > MaxResourceSize {
		return nil, &MCPError{
			Code:    ErrCodeFileTooLarge,
			Message: fmt.Sprintf("file too large: %d bytes (max %d)", info.Size(), MaxResourceSize),
		}
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, MapError(err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      fmt.Sprintf("file://%s", relativePath),
			MIMEType: MimeTypeForPath(relativePath),
			Text:     string(content),
		}},
	}, nil
}

// isValidPath validates that a path is safe to access: relative, and never
// escaping rootPath via ".." traversal.
func (s *Server) isValidPath(path string) bool {
	if path == "" || filepath.IsAbs(path) {
		return false
	}
	if len(path) >= 2 && path[1] == ':' {
		return false
	}

	cleaned := filepath.Clean(path)
	if strings.HasPrefix(cleaned, "..") {
		return false
	}
	for _, part := range strings.Split(cleaned, string(filepath.Separator)) {
		if part == ".." {
			return false
		}
	}
	return true
}

// humanSize formats bytes as a human-readable string.
func humanSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
