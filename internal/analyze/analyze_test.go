package analyze

import (
	"context"
	"errors"
	"testing"

	"github.com/civicscope/civicscope/internal/intel"
	"github.com/civicscope/civicscope/internal/llm"
)

type mockProvider struct {
	structured map[string]any
	err        error
	lastPrompt string
}

func (m *mockProvider) Complete(_ context.Context, _ []llm.Message, _ int) (string, error) {
	return "", m.err
}

func (m *mockProvider) CompleteStructured(_ context.Context, messages []llm.Message, _ map[string]any, _ int) (map[string]any, error) {
	if len(messages) > 0 {
		m.lastPrompt = messages[len(messages)-1].Content
	}
	return m.structured, m.err
}

func (m *mockProvider) IsConfigured() bool { return true }

func tieredItem() intel.TieredItem {
	return intel.TieredItem{
		Tier: intel.TierActionable,
		Item: intel.CollectedItem{
			Title:      "Emergency road closure on Route 9",
			SourceName: "County DOT",
			SourceType: "local_gov",
			Content:    "The county announced an emergency closure following a bridge inspection.",
		},
	}
}

func TestAnalyzeSuccess(t *testing.T) {
	mock := &mockProvider{structured: map[string]any{
		"what_happened":  "Route 9 closed after a failed bridge inspection.",
		"why_it_matters": "Main freight corridor for the north side.",
		"what_next":      "Watch for the follow-up inspection report.",
		"action_items":   []any{"Reroute deliveries", "Check Thursday agenda", "Flag to logistics", "extra"},
		"confidence":     0.8,
	}}

	a := NewAnalyzer(mock, 0)
	got := a.Analyze(context.Background(), tieredItem(), "County DOT, Harbor Authority")

	if got.WhatHappened != "Route 9 closed after a failed bridge inspection." {
		t.Errorf("unexpected what_happened: %q", got.WhatHappened)
	}
	if len(got.ActionItems) != 3 {
		t.Errorf("expected action items capped at 3, got %d", len(got.ActionItems))
	}
	if got.Confidence != 0.8 {
		t.Errorf("expected confidence 0.8, got %f", got.Confidence)
	}
	if mock.lastPrompt == "" || !contains(mock.lastPrompt, "Harbor Authority") {
		t.Error("expected tracked entities in the prompt")
	}
}

func TestAnalyzeFallbackOnError(t *testing.T) {
	a := NewAnalyzer(&mockProvider{err: errors.New("backend down")}, 0)
	got := a.Analyze(context.Background(), tieredItem(), "")

	if got == nil {
		t.Fatal("expected fallback analysis, not nil")
	}
	if got.WhatHappened != "Analysis unavailable" {
		t.Errorf("expected fallback text, got %q", got.WhatHappened)
	}
	if got.WhyItMatters != "" || len(got.ActionItems) != 0 {
		t.Error("expected empty remaining fields in fallback")
	}
}

func TestAnalyzeFallbackOnErrorField(t *testing.T) {
	a := NewAnalyzer(&mockProvider{structured: map[string]any{"error": "schema violation"}}, 0)
	got := a.Analyze(context.Background(), tieredItem(), "")
	if got.WhatHappened != "Analysis unavailable" {
		t.Errorf("expected fallback on error field, got %q", got.WhatHappened)
	}
}

func TestAnalyzeFallbackWithoutProvider(t *testing.T) {
	a := NewAnalyzer(nil, 0)
	got := a.Analyze(context.Background(), tieredItem(), "")
	if got.WhatHappened != "Analysis unavailable" {
		t.Errorf("expected fallback without provider, got %q", got.WhatHappened)
	}
}

func TestEligibleTiers(t *testing.T) {
	a := NewAnalyzer(nil, 0)
	if !a.Eligible(intel.TierActionable) || !a.Eligible(intel.TierPriority) {
		t.Error("tiers 1-2 should be eligible by default")
	}
	if a.Eligible(intel.TierBackground) || a.Eligible(intel.TierMonitor) {
		t.Error("tiers 3-4 should not be eligible by default")
	}

	wide := NewAnalyzer(nil, intel.TierBackground)
	if !wide.Eligible(intel.TierBackground) {
		t.Error("custom cutoff should widen eligibility")
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
