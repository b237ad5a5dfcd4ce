// Package analyze produces "so what" enrichments for high-tier items via a
// structured-completion backend. Analysis is best-effort: any failure
// degrades to a documented fallback object, never an error.
package analyze

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/civicscope/civicscope/internal/intel"
	"github.com/civicscope/civicscope/internal/llm"
)

// TopItemsPerTier is how many items of each eligible tier get analysis.
const TopItemsPerTier = 5

// DefaultTierCutoff limits deep analysis to tiers at or above this rank.
const DefaultTierCutoff = intel.TierPriority

const systemPrompt = `You are an intelligence analyst writing concise "so what" assessments of local-government and news items for a briefing. Be specific and grounded in the item; never invent facts.`

const userPrompt = `Item (tier %d, %s):
Title: %s
Source: %s (%s)
Content:
%s

Tracked entities of interest: %s

Explain what happened, why it matters to someone monitoring this area, and what to watch next. Suggest up to 3 concrete action items. Give a confidence between 0 and 1.`

// analysisSchema is the fixed response shape sent to the structured
// completion backend.
var analysisSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"what_happened":  map[string]any{"type": "string"},
		"why_it_matters": map[string]any{"type": "string"},
		"what_next":      map[string]any{"type": "string"},
		"action_items":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"confidence":     map[string]any{"type": "number"},
	},
	"required": []string{"what_happened", "why_it_matters", "what_next", "action_items"},
}

// Analyzer generates so-what analyses for tiered items.
type Analyzer struct {
	provider   llm.Provider
	tierCutoff intel.Tier
}

// NewAnalyzer creates an analyzer. cutoff <= 0 selects the default
// (tiers 1-2 analyzed).
func NewAnalyzer(provider llm.Provider, cutoff intel.Tier) *Analyzer {
	if cutoff <= 0 {
		cutoff = DefaultTierCutoff
	}
	return &Analyzer{provider: provider, tierCutoff: cutoff}
}

// Eligible reports whether items of this tier receive analysis.
func (a *Analyzer) Eligible(tier intel.Tier) bool {
	return tier <= a.tierCutoff
}

// Analyze requests a structured analysis for one item. It always returns a
// usable analysis: on any backend failure or malformed output it returns
// the fallback object instead of an error.
func (a *Analyzer) Analyze(ctx context.Context, item intel.TieredItem, trackedEntities string) *intel.SoWhatAnalysis {
	if a.provider == nil {
		return fallbackAnalysis()
	}

	content := item.Item.Content
	if content == "" {
		content = item.Item.Summary
	}
	if len(content) > 4000 {
		content = content[:4000] + "..."
	}
	if trackedEntities == "" {
		trackedEntities = "none"
	}

	prompt := fmt.Sprintf(userPrompt,
		item.Tier, item.Tier.Name(),
		item.Item.Title,
		item.Item.SourceName, item.Item.SourceType,
		content,
		trackedEntities,
	)

	parsed, err := a.provider.CompleteStructured(ctx,
		[]llm.Message{llm.System(systemPrompt), llm.User(prompt)},
		analysisSchema, 768)
	if err != nil {
		log.Printf("so-what analysis failed for %q: %v", item.Item.Title, err)
		return fallbackAnalysis()
	}
	if errMsg, ok := parsed["error"]; ok {
		log.Printf("so-what analysis returned error for %q: %v", item.Item.Title, errMsg)
		return fallbackAnalysis()
	}

	analysis := &intel.SoWhatAnalysis{
		WhatHappened: strings.TrimSpace(llm.GetString(parsed, "what_happened", "")),
		WhyItMatters: strings.TrimSpace(llm.GetString(parsed, "why_it_matters", "")),
		WhatNext:     strings.TrimSpace(llm.GetString(parsed, "what_next", "")),
		ActionItems:  llm.GetStrings(parsed, "action_items"),
		Confidence:   llm.GetFloat(parsed, "confidence", 0.5),
	}
	if analysis.WhatHappened == "" {
		return fallbackAnalysis()
	}
	if len(analysis.ActionItems) > 3 {
		analysis.ActionItems = analysis.ActionItems[:3]
	}
	if analysis.Confidence < 0 {
		analysis.Confidence = 0
	} else if analysis.Confidence > 1 {
		analysis.Confidence = 1
	}
	return analysis
}

func fallbackAnalysis() *intel.SoWhatAnalysis {
	return &intel.SoWhatAnalysis{WhatHappened: "Analysis unavailable"}
}
