package server

import (
	"strings"
	"testing"
)

func TestGuardQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
		ok    bool
	}{
		{"plain question", "what is the pension age?", true},
		{"mentions table word alone", "where can I find the table of benefit rates?", true},
		{"drop table", "'; DROP TABLE vectors; --", false},
		{"delete from", "DELETE FROM users WHERE 1=1", false},
		{"union select", "x UNION SELECT password FROM accounts", false},
		{"script tag", "<script>alert(1)</script>", false},
		{"javascript url", "see javascript:alert(1)", false},
		{"oversized", strings.Repeat("a", maxGuardQueryBytes+1), false},
		{"empty passes through to engine validation", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reason, ok := guardQuery(tt.query)
			if ok != tt.ok {
				t.Errorf("guardQuery(%q) ok = %v (reason %q), want %v", tt.query, ok, reason, tt.ok)
			}
		})
	}
}
