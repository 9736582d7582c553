// Package chunker implements the Chunker (C7): a token-aware semantic
// splitter that turns extracted nodes into a flat sequence of embeddable
// text chunks, plus the post-embedding aggregation step that folds chunk
// vectors back into one vector per node.
package chunker

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/codegraph-dev/codegraph/internal/core"
)

// SanitizeMode controls how aggressively chunk text is normalized before
// splitting (§4.7).
type SanitizeMode int

const (
	// AsciiFastPath skips normalization entirely when the input is ASCII.
	AsciiFastPath SanitizeMode = iota
	// Strict always NFC-normalizes and strips control characters and the
	// common emoji ranges, regardless of whether the input is ASCII.
	Strict
)

// TokenCounter estimates how many tokens a string costs. Callers typically
// supply the real tokenizer used by their embedding provider; tests and
// callers with no tokenizer handy can fall back to CharApproxTokenCounter.
type TokenCounter func(string) int

// CharApproxTokenCounter approximates token count as one token per four
// characters, the same rough heuristic the original falls back to when its
// tokenizer can't encode a string.
func CharApproxTokenCounter(s string) int {
	return (len(s) + 3) / 4
}

// Config configures the chunker (§4.7).
type Config struct {
	MaxTokensPerChunk int
	OverlapTokens     int
	SmartSplit        bool
	SanitizeMode      SanitizeMode
}

// DefaultConfig mirrors the original's ChunkerConfig::new defaults.
func DefaultConfig(maxTokensPerChunk int) Config {
	return Config{
		MaxTokensPerChunk: maxTokensPerChunk,
		OverlapTokens:     64,
		SmartSplit:        true,
		SanitizeMode:      AsciiFastPath,
	}
}

// ChunkMeta carries the index of the node that produced each chunk (§4.7).
type ChunkMeta struct {
	NodeIndex  int
	ChunkIndex int
	Language   *core.Language
	FilePath   string
	NodeName   string
}

// Plan is the chunker's output: a flat chunk sequence with a parallel meta
// slice.
type Plan struct {
	Chunks []string
	Metas  []ChunkMeta
}

// ChunkToNode returns the node index each chunk in the plan belongs to, in
// chunk order — the input aggregate.go expects.
func (p Plan) ChunkToNode() []int {
	out := make([]int, len(p.Metas))
	for i, m := range p.Metas {
		out[i] = m.NodeIndex
	}
	return out
}

// BuildPlan chunks every node's content (falling back to its name when
// content is empty), applying sanitize, optional smart-split, greedy
// token-bounded packing, and tail overlap between consecutive chunks of
// the same node (§4.7). Translated from the original's `build_chunk_plan`.
func BuildPlan(nodes []core.Node, count TokenCounter, cfg Config) Plan {
	if count == nil {
		count = CharApproxTokenCounter
	}
	plan := Plan{
		Chunks: make([]string, 0, len(nodes)*2),
		Metas:  make([]ChunkMeta, 0, len(nodes)*2),
	}

	for nodeIdx, node := range nodes {
		sanitized := sanitize(node, cfg.SanitizeMode)
		if sanitized == "" {
			continue
		}

		var segments []string
		if cfg.SmartSplit {
			segments = smartSplit(sanitized)
		} else {
			segments = []string{sanitized}
		}

		var rawChunks []string
		for _, seg := range segments {
			rawChunks = append(rawChunks, packSegment(seg, cfg.MaxTokensPerChunk, count)...)
		}

		var overlapTail string
		chunkIdx := 0
		for _, text := range rawChunks {
			if overlapTail != "" && cfg.OverlapTokens > 0 {
				candidate := overlapTail + text
				if count(candidate) <= cfg.MaxTokensPerChunk {
					text = candidate
				}
			}

			plan.Chunks = append(plan.Chunks, text)
			plan.Metas = append(plan.Metas, ChunkMeta{
				NodeIndex:  nodeIdx,
				ChunkIndex: chunkIdx,
				Language:   node.Language,
				FilePath:   node.Location.FilePath,
				NodeName:   node.Name,
			})
			chunkIdx++

			if cfg.OverlapTokens > 0 {
				approxChars := cfg.OverlapTokens * 4
				if len(text) > approxChars {
					overlapTail = text[len(text)-approxChars:]
				} else {
					overlapTail = text
				}
			}
		}
	}

	return plan
}

func sanitize(node core.Node, mode SanitizeMode) string {
	source := node.Content
	if source == "" {
		source = node.Name
	}
	if mode == AsciiFastPath && isASCII(source) {
		return source
	}
	return superSanitize(source)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > unicode.MaxASCII {
			return false
		}
	}
	return true
}

func superSanitize(s string) string {
	normalized := norm.NFC.String(s)
	var b strings.Builder
	b.Grow(len(normalized))
	for _, r := range normalized {
		if r == 0 || unicode.IsControl(r) || isEmoji(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F600 && r <= 0x1F64F:
		return true
	case r >= 0x1F300 && r <= 0x1F5FF:
		return true
	case r >= 0x1F680 && r <= 0x1F6FF:
		return true
	case r >= 0x2600 && r <= 0x26FF:
		return true
	default:
		return false
	}
}

// smartSplit pre-splits text on blank lines and structural terminators so
// chunk boundaries tend to land on AST structure rather than mid-statement
// (§4.7), translated from the original's line-boundary heuristic.
func smartSplit(text string) []string {
	var segments []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			segments = append(segments, current.String())
			current.Reset()
		}
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(line)
		if trimmed == "}" || strings.HasSuffix(trimmed, "};") {
			flush()
		}
	}
	flush()

	if len(segments) == 0 {
		segments = append(segments, text)
	}
	return segments
}

// packSegment greedily packs a segment's lines into chunks no larger than
// maxTokens, splitting on whitespace within a line when a single line
// alone exceeds the budget.
func packSegment(segment string, maxTokens int, count TokenCounter) []string {
	if maxTokens <= 0 || count(segment) <= maxTokens {
		return []string{segment}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, line := range strings.Split(segment, "\n") {
		candidate := line
		if current.Len() > 0 {
			candidate = current.String() + "\n" + line
		}
		if count(candidate) <= maxTokens || current.Len() == 0 {
			if count(candidate) > maxTokens && current.Len() == 0 {
				chunks = append(chunks, packOversizedLine(line, maxTokens, count)...)
				continue
			}
			current.Reset()
			current.WriteString(candidate)
			continue
		}
		flush()
		current.WriteString(line)
	}
	flush()

	if len(chunks) == 0 {
		chunks = append(chunks, segment)
	}
	return chunks
}

func packOversizedLine(line string, maxTokens int, count TokenCounter) []string {
	words := strings.Fields(line)
	if len(words) == 0 {
		return []string{line}
	}
	var chunks []string
	var current strings.Builder
	for _, w := range words {
		candidate := w
		if current.Len() > 0 {
			candidate = current.String() + " " + w
		}
		if current.Len() > 0 && count(candidate) > maxTokens {
			chunks = append(chunks, current.String())
			current.Reset()
			current.WriteString(w)
			continue
		}
		current.Reset()
		current.WriteString(candidate)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
