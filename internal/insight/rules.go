package insight

// verdict is what a matched rule contributes to an insight.
type verdict struct {
	risk   RiskLevel
	text   string
	action string
}

// rule pairs a predicate with the verdict it produces. Rules are kept in
// slices and evaluated top to bottom; the first predicate that holds wins.
type rule[T any] struct {
	name string
	when func(T) bool
	then func(T) verdict
}

func firstMatch[T any](rules []rule[T], in T) (verdict, string, bool) {
	for _, r := range rules {
		if r.when(in) {
			return r.then(in), r.name, true
		}
	}
	return verdict{}, "", false
}
