// Package rerank implements the Reranker Pipeline (§4.11): three optional,
// independently configurable stages applied to the Hybrid Retriever's
// candidates — an embedding-similarity prefilter, a cross-encoder pass, and
// an optional LLM insights summary — followed by a normalized,
// deterministically ordered final ranking.
package rerank
