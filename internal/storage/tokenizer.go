package storage

import (
	"regexp"
	"strings"
	"unicode"
)

var identifierRe = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// defaultStopWords are filtered out of both indexed content and queries so
// common code/English filler doesn't dominate BM25 scoring.
var defaultStopWords = []string{
	"the", "a", "an", "is", "are", "was", "were", "be", "been", "being",
	"and", "or", "but", "if", "then", "else", "for", "while", "do",
	"this", "that", "these", "those", "it", "its", "of", "to", "in", "on",
	"return", "func", "function", "def", "var", "let", "const",
}

// tokenizeSource splits source or prose text into lowercase identifier
// tokens, breaking camelCase/PascalCase/snake_case compounds apart so
// "getUserById" indexes as "get", "user", "by", "id" (§4.9 "BM25-like
// analyzer-backed" search), grounded on the teacher's TokenizeCode.
func tokenizeSource(text string) []string {
	var tokens []string
	for _, word := range identifierRe.FindAllString(text, -1) {
		for _, part := range splitIdentifier(word) {
			lower := strings.ToLower(part)
			if len(lower) >= 2 {
				tokens = append(tokens, lower)
			}
		}
	}
	return tokens
}

func splitIdentifier(token string) []string {
	if strings.Contains(token, "_") {
		var out []string
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				out = append(out, splitCamel(part)...)
			}
		}
		return out
	}
	return splitCamel(token)
}

// splitCamel breaks camelCase/PascalCase compounds, keeping acronym runs
// together ("HTTPHandler" -> "HTTP", "Handler").
func splitCamel(s string) []string {
	if s == "" {
		return nil
	}
	runes := []rune(s)
	var out []string
	var cur strings.Builder

	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				if cur.Len() > 0 {
					out = append(out, cur.String())
					cur.Reset()
				}
			}
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func buildStopWordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}

func filterStopWords(tokens []string, stop map[string]struct{}) []string {
	out := tokens[:0]
	for _, t := range tokens {
		if _, isStop := stop[t]; !isStop {
			out = append(out, t)
		}
	}
	return out
}
