package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// LLMClient generates free-form text from a prompt, the collaborator
// Stage 3's balanced/deep modes call into (§4.11).
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// OllamaInsightClient is a thin chat-completion client grounded on the same
// Ollama request/response shape as ChatCrossEncoder, reused here for
// summarization instead of scoring.
type OllamaInsightClient struct {
	client  httpClient
	baseURL string
	model   string
	timeout time.Duration
}

// NewOllamaInsightClient builds an LLMClient backed by an Ollama-compatible
// /api/generate endpoint.
func NewOllamaInsightClient(baseURL, model string, timeout time.Duration) *OllamaInsightClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OllamaInsightClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		timeout: timeout,
	}
}

func (c *OllamaInsightClient) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{Model: c.model, Prompt: prompt, Stream: false}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal insight request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build insight request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("insight request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("insight request failed (status %d): %s", resp.StatusCode, string(body))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode insight response: %w", err)
	}
	return decoded.Response, nil
}

// buildContext concatenates candidate snippets into a bounded string,
// used directly by InsightModeContextOnly and as the prompt body for
// InsightModeBalanced/InsightModeDeep (§4.11 "concatenate candidate
// snippets into a bounded context string").
func buildContext(docs []scoredDoc, maxBytes int) string {
	var b strings.Builder
	for _, d := range docs {
		entry := fmt.Sprintf("# %s\n%s\n\n", d.doc.NodeID.String(), d.doc.Content)
		if maxBytes > 0 && b.Len()+len(entry) > maxBytes {
			break
		}
		b.WriteString(entry)
	}
	return b.String()
}

const insightPromptTemplate = `Summarize how the following code candidates relate to the query "%s". Be concise.

%s`

// summarize runs Stage 3 per the selected mode (§4.11).
func summarize(ctx context.Context, llm LLMClient, mode InsightMode, query string, ranked []scoredDoc, topK, contextBytes int) (string, error) {
	switch mode {
	case InsightModeOff, "":
		return "", nil
	case InsightModeContextOnly:
		scope := ranked
		if topK > 0 && len(scope) > topK {
			scope = scope[:topK]
		}
		return buildContext(scope, contextBytes), nil
	case InsightModeBalanced:
		scope := ranked
		if topK > 0 && len(scope) > topK {
			scope = scope[:topK]
		}
		return generateInsight(ctx, llm, query, scope, contextBytes)
	case InsightModeDeep:
		return generateInsight(ctx, llm, query, ranked, contextBytes)
	default:
		return "", fmt.Errorf("unknown insight mode %q", mode)
	}
}

func generateInsight(ctx context.Context, llm LLMClient, query string, docs []scoredDoc, contextBytes int) (string, error) {
	if llm == nil {
		return "", fmt.Errorf("insight mode requires an LLMClient")
	}
	prompt := fmt.Sprintf(insightPromptTemplate, query, buildContext(docs, contextBytes))
	return llm.Generate(ctx, prompt)
}
