// Package intel defines the data model shared by the briefing pipeline:
// collected items, priority tiers, detected patterns, and the assembled
// tiered briefing.
package intel

import "time"

// CollectedItem is one record gathered by a collector. Immutable once
// collected; the pipeline never writes back to it.
type CollectedItem struct {
	ID             int64             `json:"id"`
	SourceType     string            `json:"source_type"`
	SourceName     string            `json:"source_name"`
	Title          string            `json:"title"`
	Content        string            `json:"content"`
	Summary        string            `json:"summary"`
	URL            string            `json:"url"`
	PublishedAt    *time.Time        `json:"published_at,omitempty"`
	CollectedAt    time.Time         `json:"collected_at"`
	RelevanceScore float64           `json:"relevance_score"`
	Categories     []string          `json:"categories,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Timestamp returns the best available time for the item: published_at if
// set, else collected_at. Temporal detectors use this ordering.
func (c CollectedItem) Timestamp() time.Time {
	if c.PublishedAt != nil {
		return *c.PublishedAt
	}
	return c.CollectedAt
}

// TieredItem is a CollectedItem enriched with its assigned tier and,
// for high tiers, a so-what analysis. Created during classification and
// mutated at most once to attach the analysis.
type TieredItem struct {
	Item     CollectedItem   `json:"item"`
	Tier     Tier            `json:"tier"`
	Analysis *SoWhatAnalysis `json:"analysis,omitempty"`
}

// SoWhatAnalysis explains an item's significance and suggested action.
// Absent when generation failed or was skipped.
type SoWhatAnalysis struct {
	WhatHappened string   `json:"what_happened"`
	WhyItMatters string   `json:"why_it_matters"`
	WhatNext     string   `json:"what_next"`
	ActionItems  []string `json:"action_items,omitempty"`
	Confidence   float64  `json:"confidence"`
}

// Pattern types emitted by the detector.
const (
	PatternEscalation         = "escalation"
	PatternNetworkGrowth      = "network_growth"
	PatternSentimentShift     = "sentiment_shift"
	PatternGeographicSpread   = "geographic_spread"
	PatternTemporalClustering = "temporal_clustering"
	PatternEntitySurge        = "entity_surge"
)

// Pattern severities.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// DetectedPattern is a statistically unusual shift found in a batch of
// items. Never persisted on its own; embedded in a briefing.
type DetectedPattern struct {
	PatternType         string             `json:"pattern_type"`
	Severity            string             `json:"severity"`
	Entity              string             `json:"entity,omitempty"`
	Description         string             `json:"description"`
	Evidence            map[string]float64 `json:"evidence,omitempty"`
	DetectionWindowDays int                `json:"detection_window_days"`
	Confidence          float64            `json:"confidence"`
}

// Section is one tier's slice of a briefing. Items holds only the top
// items embedded for display; ItemCount is the untruncated tier size.
type Section struct {
	Tier         Tier         `json:"tier"`
	Name         string       `json:"name"`
	Items        []TieredItem `json:"items"`
	ItemCount    int          `json:"item_count"`
	Synthesis    string       `json:"synthesis"`
	AvgRelevance float64      `json:"avg_relevance"`
	Collapsed    bool         `json:"collapsed"`
}

// EntityHighlight summarizes a tracked entity's activity in the period.
type EntityHighlight struct {
	Name         string   `json:"name"`
	EntityType   string   `json:"entity_type"`
	MentionCount int      `json:"mention_count"`
	Trend        string   `json:"trend"` // rising, falling, stable
	Sources      []string `json:"sources,omitempty"`
}

// Briefing is the complete synthesized report for a time period.
// Immutable after assembly except for a single late AudioPath attachment.
// Invariant: the ItemsByTier counts sum to TotalItemsAnalyzed.
type Briefing struct {
	ID                 string            `json:"id"`
	Owner              string            `json:"owner,omitempty"`
	GeneratedAt        time.Time         `json:"generated_at"`
	PeriodStart        time.Time         `json:"period_start"`
	PeriodEnd          time.Time         `json:"period_end"`
	Title              string            `json:"title"`
	PatternAlerts      []DetectedPattern `json:"pattern_alerts,omitempty"`
	ExecutiveSummary   string            `json:"executive_summary"`
	Sections           []Section         `json:"sections,omitempty"`
	TotalItemsAnalyzed int               `json:"total_items_analyzed"`
	ItemsByTier        map[Tier]int      `json:"items_by_tier"`
	EntityHighlights   []EntityHighlight `json:"entity_highlights,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	AudioPath          string            `json:"audio_path,omitempty"`
}
