package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// QueryKeyInput carries the fields a search-cache key is built from. Filters
// is unordered — the key must be stable over filter-order permutations —
// while QueryText/TopK/Threshold/DimensionTag are each semantically
// significant and must change the key if they change (§4.2).
type QueryKeyInput struct {
	QueryText    string
	TopK         int
	Threshold    float64
	DimensionTag int
	Filters      []string
}

// QueryKey builds a stable, content-addressed cache key for a search
// request, grounded on the teacher's CachedEmbedder.cacheKey (SHA-256 over a
// delimited field concatenation), extended with sorted filters so filter
// order never perturbs the key.
func QueryKey(in QueryKeyInput) string {
	filters := append([]string(nil), in.Filters...)
	sort.Strings(filters)

	var b strings.Builder
	b.WriteString(in.QueryText)
	b.WriteByte(0)
	b.WriteString(strconv.Itoa(in.TopK))
	b.WriteByte(0)
	b.WriteString(strconv.FormatFloat(in.Threshold, 'g', -1, 64))
	b.WriteByte(0)
	b.WriteString(strconv.Itoa(in.DimensionTag))
	b.WriteByte(0)
	b.WriteString(strings.Join(filters, "\x01"))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// EmbeddingCacheKey builds the key used to cache a single text's embedding,
// scoped by model name and dimension so a provider/model switch can never
// collide with a stale entry (§B.8 / teacher's BUG-053 embedder-consistency
// fix, generalized).
func EmbeddingCacheKey(text, modelName string, dimension int) string {
	combined := fmt.Sprintf("%s\x00%s\x00%d", text, modelName, dimension)
	sum := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(sum[:])
}
