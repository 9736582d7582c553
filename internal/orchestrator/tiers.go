package orchestrator

// ContextTier buckets the target LLM's advertised context window into one
// of four bands, each with its own result budget and over-retrieve factors
// (§4.14 table, carried over from the original's estimation.rs rather than
// left as scattered constants — see SPEC_FULL.md §C.3).
type ContextTier int

const (
	TierSmall ContextTier = iota
	TierMedium
	TierLarge
	TierMassive
)

func (t ContextTier) String() string {
	switch t {
	case TierSmall:
		return "small"
	case TierMedium:
		return "medium"
	case TierLarge:
		return "large"
	case TierMassive:
		return "massive"
	default:
		return "unknown"
	}
}

// TierBudget is one row of the §4.14 table.
type TierBudget struct {
	Tier                 ContextTier
	WindowTokens         int // upper bound of the window this tier covers, 0 = unbounded
	BaseLimit            int
	LocalOverRetrieve    int
	RerankOverRetrieve   int
	MaxOutputTokens      int
}

// maxOutputTokens is the hard ceiling every tier shares: 52,000 × 0.85 ≈
// 44,200, "to respect downstream MCP envelope limits" (§4.14).
const maxOutputTokens = 44200

var tierBudgets = map[ContextTier]TierBudget{
	TierSmall:   {Tier: TierSmall, WindowTokens: 50_000, BaseLimit: 10, LocalOverRetrieve: 5, RerankOverRetrieve: 3, MaxOutputTokens: maxOutputTokens},
	TierMedium:  {Tier: TierMedium, WindowTokens: 150_000, BaseLimit: 25, LocalOverRetrieve: 8, RerankOverRetrieve: 4, MaxOutputTokens: maxOutputTokens},
	TierLarge:   {Tier: TierLarge, WindowTokens: 500_000, BaseLimit: 50, LocalOverRetrieve: 10, RerankOverRetrieve: 5, MaxOutputTokens: maxOutputTokens},
	TierMassive: {Tier: TierMassive, WindowTokens: 0, BaseLimit: 100, LocalOverRetrieve: 15, RerankOverRetrieve: 8, MaxOutputTokens: maxOutputTokens},
}

// Budget returns the tier's row of the §4.14 table.
func (t ContextTier) Budget() TierBudget {
	b, ok := tierBudgets[t]
	if !ok {
		return tierBudgets[TierSmall]
	}
	return b
}

// TierForWindow resolves a tier from the target LLM's advertised context
// window size, in tokens (§4.14: Small ≤50k, Medium ≤150k, Large ≤500k,
// Massive >500k).
func TierForWindow(windowTokens int) ContextTier {
	switch {
	case windowTokens <= 50_000:
		return TierSmall
	case windowTokens <= 150_000:
		return TierMedium
	case windowTokens <= 500_000:
		return TierLarge
	default:
		return TierMassive
	}
}

// ResolveLimit caps a user-requested limit at the tier's base_limit (§4.14
// "User-requested limit is capped at the tier's base_limit"). A
// non-positive requested limit defers entirely to the tier's base_limit.
func (t ContextTier) ResolveLimit(requested int) int {
	base := t.Budget().BaseLimit
	if requested <= 0 || requested > base {
		return base
	}
	return requested
}
