// Package budget provides token budget estimation and context trimming for
// the answer-synthesis stage. Because the system supports multiple LLM
// backends with different tokenizers, it uses a conservative character-based
// heuristic: 1 token ≈ 4 characters (English prose). This deliberately
// under-estimates token counts to leave headroom for model-specific overhead.
package budget

import (
	"github.com/peoplesagent/pagent/internal/rag"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English; using 3 would be
	// more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough to fit within 8k-context models while leaving room
	// for the system prompt, the question, and the generated answer.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// TrimFragments drops fragments from the tail of the ranked list until the
// estimated token count of all fragment texts plus reservedTokens (system
// prompt + question) fits within maxTokens. Fragments are ranked most
// relevant first, so the tail is the cheapest to lose.
//
// The first fragment is always retained even when it alone exceeds the
// budget — an answer grounded in one oversized fragment beats an answer
// grounded in nothing.
func TrimFragments(frags []rag.Fragment, reservedTokens, maxTokens int) []rag.Fragment {
	if len(frags) == 0 {
		return frags
	}

	total := reservedTokens
	kept := 0
	for _, f := range frags {
		total += Estimate(f.Text)
		if total > maxTokens && kept > 0 {
			break
		}
		kept++
	}
	return frags[:kept]
}
