// Package compose builds the executive summary that opens a briefing,
// combining pattern alerts, per-tier syntheses, and entity highlights.
package compose

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/civicscope/civicscope/internal/intel"
	"github.com/civicscope/civicscope/internal/llm"
)

const (
	maxAlertsInPrompt     = 5
	maxHighlightsInPrompt = 5
	synthesisTruncateLen  = 300
)

const systemPrompt = `You are writing the executive summary of a periodic local-intelligence briefing. Your reader has two minutes: tell them the three or four things that actually matter and why.`

const composePrompt = `%sSection syntheses:
%s
%s
Write a short executive summary (one tight paragraph, max 5 sentences) of this period. Lead with detected patterns if any are significant. Respond with plain prose.`

// Composer builds executive summaries.
type Composer struct {
	provider llm.Provider
}

// NewComposer creates an executive summary composer.
func NewComposer(provider llm.Provider) *Composer {
	return &Composer{provider: provider}
}

// Compose generates the executive summary, degrading to an enumerated
// per-tier count sentence when generation fails.
func (c *Composer) Compose(ctx context.Context, sections []intel.Section, alerts []intel.DetectedPattern, highlights []intel.EntityHighlight) string {
	if c.provider == nil {
		return FallbackSummary(sections)
	}

	prompt := fmt.Sprintf(composePrompt,
		formatAlerts(alerts),
		formatSections(sections),
		formatHighlights(highlights),
	)

	text, err := c.provider.Complete(ctx,
		[]llm.Message{llm.System(systemPrompt), llm.User(prompt)}, 768)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			log.Printf("executive summary generation failed: %v", err)
		}
		return FallbackSummary(sections)
	}
	return strings.TrimSpace(text)
}

func formatAlerts(alerts []intel.DetectedPattern) string {
	if len(alerts) == 0 {
		return ""
	}
	if len(alerts) > maxAlertsInPrompt {
		alerts = alerts[:maxAlertsInPrompt]
	}
	var lines []string
	for _, a := range alerts {
		lines = append(lines, fmt.Sprintf("- [%s/%s] %s", a.PatternType, a.Severity, a.Description))
	}
	return "Detected patterns:\n" + strings.Join(lines, "\n") + "\n\n"
}

func formatSections(sections []intel.Section) string {
	var parts []string
	for _, sec := range sections {
		if sec.Tier > intel.TierBackground {
			continue
		}
		synthesis := sec.Synthesis
		if len(synthesis) > synthesisTruncateLen {
			synthesis = synthesis[:synthesisTruncateLen] + "..."
		}
		parts = append(parts, fmt.Sprintf("%s (%d items): %s", sec.Name, sec.ItemCount, synthesis))
	}
	if len(parts) == 0 {
		return "(no sections)"
	}
	return strings.Join(parts, "\n\n")
}

func formatHighlights(highlights []intel.EntityHighlight) string {
	if len(highlights) == 0 {
		return ""
	}
	if len(highlights) > maxHighlightsInPrompt {
		highlights = highlights[:maxHighlightsInPrompt]
	}
	var lines []string
	for _, h := range highlights {
		lines = append(lines, fmt.Sprintf("- %s: %d mentions (%s)", h.Name, h.MentionCount, h.Trend))
	}
	return "\nEntity highlights:\n" + strings.Join(lines, "\n") + "\n"
}

// FallbackSummary enumerates per-tier item counts. Also used verbatim as
// the stock summary for an empty briefing.
func FallbackSummary(sections []intel.Section) string {
	if len(sections) == 0 {
		return "No items were collected for this period."
	}
	var parts []string
	for _, sec := range sections {
		parts = append(parts, fmt.Sprintf("%d %s", sec.ItemCount, strings.ToLower(sec.Name)))
	}
	return fmt.Sprintf("This period covered %s items.", strings.Join(parts, ", "))
}
