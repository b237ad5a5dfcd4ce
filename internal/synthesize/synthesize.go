// Package synthesize turns one tier's item list into briefing prose via the
// free-text completion backend, with a templated fallback when generation
// fails. One tier's failure never affects another.
package synthesize

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/civicscope/civicscope/internal/intel"
	"github.com/civicscope/civicscope/internal/llm"
)

const (
	maxItemsInPrompt    = 10
	maxEntitiesInPrompt = 5
	summaryTruncateLen  = 200
)

const systemPrompt = `You are writing one section of a periodic local-intelligence briefing. Write as a well-informed analyst summarizing what happened; be concrete about actors, places, and decisions. Avoid speculation and marketing language.`

const sectionPrompt = `Section: %s (tier %d of 4, where 1 is most urgent)

Items in this section:
%s
%s
Write a cohesive 1-2 paragraph synthesis of this section. Lead with the most consequential development. Respond with plain prose, no headers.`

// Synthesizer generates per-tier section prose.
type Synthesizer struct {
	provider llm.Provider
}

// NewSynthesizer creates a section synthesizer.
func NewSynthesizer(provider llm.Provider) *Synthesizer {
	return &Synthesizer{provider: provider}
}

// Synthesize produces prose for one tier's items, degrading to a templated
// summary naming the item count and leading titles on any failure.
func (s *Synthesizer) Synthesize(ctx context.Context, tier intel.Tier, items []intel.TieredItem, highlights []intel.EntityHighlight) string {
	if len(items) == 0 {
		return ""
	}
	if s.provider == nil {
		return fallbackSynthesis(tier, items)
	}

	prompt := fmt.Sprintf(sectionPrompt,
		tier.Name(), tier,
		formatItems(items),
		formatHighlights(highlights),
	)

	text, err := s.provider.Complete(ctx,
		[]llm.Message{llm.System(systemPrompt), llm.User(prompt)}, 1024)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			log.Printf("section synthesis failed for tier %d: %v", tier, err)
		}
		return fallbackSynthesis(tier, items)
	}
	return strings.TrimSpace(text)
}

func formatItems(items []intel.TieredItem) string {
	if len(items) > maxItemsInPrompt {
		items = items[:maxItemsInPrompt]
	}
	var parts []string
	for i, ti := range items {
		summary := ti.Item.Summary
		if summary == "" {
			summary = ti.Item.Content
		}
		if len(summary) > summaryTruncateLen {
			summary = summary[:summaryTruncateLen] + "..."
		}
		part := fmt.Sprintf("[%d] %s\n  Source: %s (%s)", i+1, ti.Item.Title, ti.Item.SourceName, ti.Item.SourceType)
		if summary != "" {
			part += "\n  Summary: " + summary
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "\n\n")
}

func formatHighlights(highlights []intel.EntityHighlight) string {
	if len(highlights) == 0 {
		return ""
	}
	if len(highlights) > maxEntitiesInPrompt {
		highlights = highlights[:maxEntitiesInPrompt]
	}
	var lines []string
	for _, h := range highlights {
		lines = append(lines, fmt.Sprintf("- %s (%s): %d mentions, %s", h.Name, h.EntityType, h.MentionCount, h.Trend))
	}
	return "\nTracked entity activity:\n" + strings.Join(lines, "\n") + "\n"
}

// fallbackSynthesis is the deterministic stand-in when generation fails.
func fallbackSynthesis(tier intel.Tier, items []intel.TieredItem) string {
	var titles []string
	for i, ti := range items {
		if i >= 3 {
			break
		}
		titles = append(titles, ti.Item.Title)
	}
	return fmt.Sprintf("%d %s items collected this period, including: %s.",
		len(items), strings.ToLower(tier.Name()), strings.Join(titles, "; "))
}
