package server

import (
	"strings"
)

// maxGuardQueryBytes rejects grossly oversized bodies before the engine's
// rune-count validation runs. Generous: the engine's own limit is stricter.
const maxGuardQueryBytes = 64 * 1024

// blockedFragments are query substrings rejected outright. This is a thin
// input guard on the HTTP edge, not a security boundary: queries never reach
// a SQL interpreter or shell, but hostile boilerplate like this is never a
// legitimate policy question and is cheaper to bounce before rate limiting
// and retrieval.
var blockedFragments = []string{
	"drop table",
	"delete from",
	"insert into",
	"update set",
	"exec(",
	"union select",
	"<script",
	"javascript:",
}

// guardQuery pre-validates the raw query text. It returns ok=false with a
// short reason when the query matches a blocked pattern or exceeds the byte
// bound. Semantic validation (empty, rune length) belongs to the engine.
func guardQuery(query string) (reason string, ok bool) {
	if len(query) > maxGuardQueryBytes {
		return "query too large", false
	}
	lower := strings.ToLower(query)
	for _, fragment := range blockedFragments {
		if strings.Contains(lower, fragment) {
			return "disallowed content", false
		}
	}
	return "", true
}
