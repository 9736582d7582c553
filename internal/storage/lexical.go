package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"

	"github.com/codegraph-dev/codegraph/internal/core"
)

const (
	identifierTokenizerName = "codegraph_identifier"
	stopWordFilterName      = "codegraph_stopwords"
	identifierAnalyzerName  = "codegraph_identifier_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(identifierTokenizerName, newIdentifierTokenizer)
	_ = registry.RegisterTokenFilter(stopWordFilterName, newStopWordFilter)
}

// LexicalResult is one lexical_search hit.
type LexicalResult struct {
	NodeID       core.NodeId
	Score        float64
	MatchedTerms []string
}

type lexicalDocument struct {
	Content string `json:"content"`
}

// lexicalIndex wraps a Bleve index configured with an identifier-aware
// analyzer, grounded directly on the teacher's BleveBM25Index (§4.9
// "lexical_search... BM25-like analyzer-backed text search").
type lexicalIndex struct {
	mu    sync.RWMutex
	index bleve.Index
}

func newLexicalIndex(path string) (*lexicalIndex, error) {
	indexMapping, err := buildIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("build lexical index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create lexical index directory: %w", err)
		}
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open lexical index: %w", err)
	}

	return &lexicalIndex{index: idx}, nil
}

func buildIndexMapping() (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	if err := m.AddCustomAnalyzer(identifierAnalyzerName, map[string]any{
		"type":      custom.Name,
		"tokenizer": identifierTokenizerName,
		"token_filters": []string{
			lowercase.Name,
			stopWordFilterName,
		},
	}); err != nil {
		return nil, err
	}
	m.DefaultAnalyzer = identifierAnalyzerName
	return m, nil
}

func (l *lexicalIndex) upsert(id core.NodeId, content string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.index.Index(id.String(), lexicalDocument{Content: content})
}

func (l *lexicalIndex) delete(id core.NodeId) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.index.Delete(id.String())
}

func (l *lexicalIndex) search(ctx context.Context, text string, limit int) ([]LexicalResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	q := bleve.NewMatchQuery(text)
	q.SetField("content")

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.IncludeLocations = true

	res, err := l.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}

	out := make([]LexicalResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := parseNodeId(hit.ID)
		if err != nil {
			continue
		}
		terms := make(map[string]struct{})
		for field, locs := range hit.Locations {
			if field != "content" {
				continue
			}
			for term := range locs {
				terms[term] = struct{}{}
			}
		}
		matched := make([]string, 0, len(terms))
		for t := range terms {
			matched = append(matched, t)
		}
		out = append(out, LexicalResult{NodeID: id, Score: hit.Score, MatchedTerms: matched})
	}
	return out, nil
}

func (l *lexicalIndex) close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.index.Close()
}

type identifierTokenizer struct{}

func newIdentifierTokenizer(config map[string]any, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &identifierTokenizer{}, nil
}

func (t *identifierTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := tokenizeSource(text)

	stream := make(analysis.TokenStream, 0, len(tokens))
	offset := 0
	for i, tok := range tokens {
		start := strings.Index(strings.ToLower(text[offset:]), tok)
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(tok)
		stream = append(stream, &analysis.Token{
			Term:     []byte(tok),
			Start:    start,
			End:      end,
			Position: i + 1,
			Type:     analysis.AlphaNumeric,
		})
		if end <= len(text) {
			offset = end
		}
	}
	return stream
}

type stopWordFilter struct {
	stop map[string]struct{}
}

func newStopWordFilter(config map[string]any, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &stopWordFilter{stop: buildStopWordSet(defaultStopWords)}, nil
}

func (f *stopWordFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	kept := make(analysis.TokenStream, 0, len(input))
	for _, tok := range input {
		if _, isStop := f.stop[strings.ToLower(string(tok.Term))]; !isStop {
			kept = append(kept, tok)
		}
	}
	return kept
}
