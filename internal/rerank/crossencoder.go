package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// CrossEncoder scores (query, document) pairs for relevance, the Reranker
// Pipeline's Stage 2 (§4.11), grounded on the teacher's Reranker interface
// (internal/search/reranker.go) — same Rerank-by-documents shape, narrowed
// here to score-only since ordering and top-n slicing are this package's
// job, not the provider's.
type CrossEncoder interface {
	Score(ctx context.Context, query string, documents []string) ([]float64, error)
}

// httpClient is the minimal surface both cross-encoder variants need,
// letting tests substitute a stub instead of a real *http.Client.
type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// APICrossEncoder is the "API-style" variant (§4.11: "single batched
// request, top-n response"), grounded on the original's JinaReranker
// (reranking/jina.rs) and the teacher's MLXReranker HTTP plumbing
// (internal/search/mlx_reranker.go): POST the full query+documents batch
// once, parse a parallel score array back.
type APICrossEncoder struct {
	client  httpClient
	baseURL string
	model   string
	apiKey  string
	timeout time.Duration
}

// NewAPICrossEncoder builds an API-style cross-encoder client.
func NewAPICrossEncoder(baseURL, model, apiKey string, timeout time.Duration) *APICrossEncoder {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &APICrossEncoder{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
		timeout: timeout,
	}
}

type apiRerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type apiRerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Score sends every document in a single batched request and returns
// per-document scores in input order.
func (c *APICrossEncoder) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	reqBody := apiRerankRequest{Model: c.model, Query: query, Documents: documents, TopN: len(documents)}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank failed (status %d): %s", resp.StatusCode, string(body))
	}

	var decoded apiRerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	scores := make([]float64, len(documents))
	for _, r := range decoded.Results {
		if r.Index >= 0 && r.Index < len(scores) {
			scores[r.Index] = r.RelevanceScore
		}
	}
	return scores, nil
}

// ChatCrossEncoder is the "chat-style" variant (§4.11: "per-document prompt
// asking for a score in [0,1]; parse leading number, else map {yes/
// relevant→1.0, maybe/somewhat→0.5, no/irrelevant→0.0}; clamp to [0,1]. On
// parse failure, record 0.5 and warn"), grounded directly on the original's
// OllamaReranker chat-completion prompt and parsing logic
// (reranking/ollama.rs).
type ChatCrossEncoder struct {
	client      httpClient
	baseURL     string
	model       string
	temperature float64
	timeout     time.Duration
	onParseFail func(document string, raw string)
}

// NewChatCrossEncoder builds a chat-style cross-encoder client.
func NewChatCrossEncoder(baseURL, model string, timeout time.Duration) *ChatCrossEncoder {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChatCrossEncoder{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		timeout: timeout,
	}
}

// OnParseFail registers a callback invoked whenever a response couldn't be
// parsed into a score and the 0.5 neutral default was used instead.
func (c *ChatCrossEncoder) OnParseFail(fn func(document string, raw string)) {
	c.onParseFail = fn
}

const relevanceGraderPrompt = `You are an expert relevance grader. Your task is to evaluate if the following document is relevant to the user's query.

Respond with a single number between 0.0 and 1.0:
- 0.0 means completely irrelevant
- 0.5 means somewhat relevant
- 1.0 means highly relevant

Query: %s

Document:
%s

Relevance score:`

type chatRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
}

type chatResponse struct {
	Response string `json:"response"`
}

var leadingNumberRe = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)`)

// Score issues one chat-completion request per document, parsing each
// response into a [0,1] score.
func (c *ChatCrossEncoder) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	scores := make([]float64, len(documents))
	for i, doc := range documents {
		score, err := c.scoreOne(ctx, query, doc)
		if err != nil {
			return nil, err
		}
		scores[i] = score
	}
	return scores, nil
}

func (c *ChatCrossEncoder) scoreOne(ctx context.Context, query, document string) (float64, error) {
	reqBody := chatRequest{
		Model:       c.model,
		Prompt:      fmt.Sprintf(relevanceGraderPrompt, query, document),
		Stream:      false,
		Temperature: c.temperature,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return 0, fmt.Errorf("marshal chat rerank request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build chat rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("chat rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("chat rerank failed (status %d): %s", resp.StatusCode, string(body))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return 0, fmt.Errorf("decode chat rerank response: %w", err)
	}

	return parseChatScore(decoded.Response, document, c.onParseFail), nil
}

// parseChatScore implements the exact fallback chain §4.11 specifies: a
// leading number first, then a yes/no keyword mapping, else 0.5 with a
// warning callback.
func parseChatScore(raw string, document string, onParseFail func(document, raw string)) float64 {
	trimmed := strings.TrimSpace(raw)

	if m := leadingNumberRe.FindStringSubmatch(trimmed); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return clamp01(v)
		}
	}

	// Keyword order follows §4.11 literally: yes/relevant, then
	// maybe/somewhat, then no/irrelevant. "relevant" is checked before
	// "irrelevant" is excluded, matching the original's own ollama.rs
	// fallback (not flagged as buggy source behavior in §9, so reproduced
	// as specified rather than "fixed").
	lower := strings.ToLower(trimmed)
	switch {
	case strings.Contains(lower, "yes") || strings.Contains(lower, "relevant"):
		return 1.0
	case strings.Contains(lower, "maybe") || strings.Contains(lower, "somewhat"):
		return 0.5
	case strings.Contains(lower, "no") || strings.Contains(lower, "irrelevant"):
		return 0.0
	}

	if onParseFail != nil {
		onParseFail(document, raw)
	}
	return 0.5
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
