// Package flow implements the conversation state machine for DocPipe.
//
// Given an execution plan it computes which questions to ask next, tracks
// progress and completion, and validates submitted answers. All functions
// here are pure computations over in-memory plan data; persistence and
// collaborator calls live with the callers.
package flow

// EvaluateCondition reports whether every key in condition is present in
// collected and equals the expected value exactly (case-sensitive). A
// missing key or a JSON type mismatch evaluates to false, never panics.
func EvaluateCondition(collected map[string]any, condition map[string]any) bool {
	for field, want := range condition {
		got, ok := collected[field]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual compares two JSON-decoded values. Only like types compare
// equal; there is no coercion between strings, numbers, and booleans.
func valuesEqual(got, want any) bool {
	switch w := want.(type) {
	case nil:
		return got == nil
	case string:
		g, ok := got.(string)
		return ok && g == w
	case float64:
		g, ok := got.(float64)
		return ok && g == w
	case bool:
		g, ok := got.(bool)
		return ok && g == w
	default:
		// Composite condition values are not supported; treat as unmet.
		return false
	}
}
