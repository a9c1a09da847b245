package budget

import (
	"strings"
	"testing"

	"github.com/peoplesagent/pagent/internal/rag"
)

func TestEstimate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"short rounds up to one", "ab", 1},
		{"exact multiple", strings.Repeat("x", 40), 10},
		{"truncates", strings.Repeat("x", 43), 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Estimate(tt.in); got != tt.want {
				t.Errorf("Estimate(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func frag(text string) rag.Fragment {
	return rag.Fragment{Text: text}
}

func TestTrimFragments(t *testing.T) {
	t.Parallel()

	// Each fragment is 400 chars = 100 tokens.
	text := strings.Repeat("x", 400)
	frags := []rag.Fragment{frag(text), frag(text), frag(text)}

	t.Run("all fit", func(t *testing.T) {
		t.Parallel()
		got := TrimFragments(frags, 0, 1000)
		if len(got) != 3 {
			t.Errorf("kept %d fragments, want 3", len(got))
		}
	})

	t.Run("tail dropped", func(t *testing.T) {
		t.Parallel()
		got := TrimFragments(frags, 0, 250)
		if len(got) != 2 {
			t.Errorf("kept %d fragments, want 2", len(got))
		}
	})

	t.Run("reserved tokens count against budget", func(t *testing.T) {
		t.Parallel()
		got := TrimFragments(frags, 150, 250)
		if len(got) != 1 {
			t.Errorf("kept %d fragments, want 1", len(got))
		}
	})

	t.Run("first fragment always kept", func(t *testing.T) {
		t.Parallel()
		got := TrimFragments(frags, 0, 10)
		if len(got) != 1 {
			t.Errorf("kept %d fragments, want 1", len(got))
		}
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()
		if got := TrimFragments(nil, 0, 100); len(got) != 0 {
			t.Errorf("kept %d fragments, want 0", len(got))
		}
	})
}
