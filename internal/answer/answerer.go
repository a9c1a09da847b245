// Package answer synthesises natural-language answers from retrieved policy
// fragments using a configurable LLM backend.
package answer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/peoplesagent/pagent/internal/budget"
	"github.com/peoplesagent/pagent/internal/logging"
	"github.com/peoplesagent/pagent/internal/rag"
)

// systemPrompt establishes the assistant's persona and grounding rules. The
// assistant answers questions about government policies and public documents,
// and must ground every claim in the retrieved context rather than its own
// training data.
const systemPrompt = `You are The People's Agent, a public-service assistant that helps citizens
understand government policies, schemes, and official documents.

You answer questions using ONLY the document excerpts provided to you. You hold
yourself to these rules:

- Ground every factual claim in the provided excerpts. If the excerpts do not
  contain the answer, say so plainly rather than guessing.
- Quote eligibility criteria, deadlines, amounts, and procedures exactly as the
  documents state them. Never round, paraphrase, or "improve" official figures.
- Write for an ordinary citizen: plain language, short sentences, no
  bureaucratic jargon unless you explain it.
- Never give legal advice. When a question needs a lawyer or an official
  ruling, say so and point at the relevant document instead.
- If a policy has changed or the excerpts conflict, flag the conflict
  explicitly rather than silently picking one version.`

// Generator produces an answer for a query given its supporting fragments.
// Implementations must be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, query string, frags []rag.Fragment) (string, error)
}

// LLMAnswerer synthesises answers with an eino chat model.
type LLMAnswerer struct {
	model     model.BaseChatModel
	maxTokens int
}

// Option configures an LLMAnswerer.
type Option func(*LLMAnswerer)

// WithMaxContextTokens overrides the context token budget used to trim
// fragments before prompt assembly.
func WithMaxContextTokens(n int) Option {
	return func(a *LLMAnswerer) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

// New creates an LLMAnswerer backed by the given chat model.
func New(m model.BaseChatModel, opts ...Option) (*LLMAnswerer, error) {
	if m == nil {
		return nil, fmt.Errorf("answer: chat model is required")
	}
	a := &LLMAnswerer{
		model:     m,
		maxTokens: budget.DefaultMaxContextTokens,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Generate builds the prompt from the retrieved fragments and asks the model
// for an answer. Fragments that overflow the context budget are dropped from
// the tail of the ranked list.
func (a *LLMAnswerer) Generate(ctx context.Context, query string, frags []rag.Fragment) (string, error) {
	log := logging.FromContext(ctx)

	reserved := budget.Estimate(systemPrompt) + budget.Estimate(query)
	trimmed := budget.TrimFragments(frags, reserved, a.maxTokens)
	if len(trimmed) < len(frags) {
		log.Debug("trimmed context fragments to fit token budget",
			slog.Int("retrieved", len(frags)),
			slog.Int("kept", len(trimmed)))
	}

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
	}
	if len(trimmed) > 0 {
		messages = append(messages, schema.SystemMessage(buildContext(trimmed)))
	}
	messages = append(messages, schema.UserMessage(query))

	resp, err := a.model.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("answer: model generation failed: %w", err)
	}
	if resp == nil || resp.Content == "" {
		return "", fmt.Errorf("answer: model returned an empty response")
	}
	return resp.Content, nil
}

// buildContext formats fragments into a system message giving the model its
// grounding material.
func buildContext(frags []rag.Fragment) string {
	context := "## Relevant Policy Documents\n\n" +
		"The following excerpts were retrieved for the citizen's question. " +
		"Answer using only this material.\n\n"

	for i, f := range frags {
		context += fmt.Sprintf("### Excerpt %d: %s\n%s\n\n", i+1, f.Source, f.Text)
	}

	return context
}
