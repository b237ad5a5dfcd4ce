// Package briefing assembles the tiered intelligence briefing: it builds
// the period snapshot, classifies items into tiers, runs pattern detection,
// enriches top items, synthesizes sections, and composes the executive
// summary. Every stage degrades to a fallback value on failure; the caller
// always receives a complete briefing.
package briefing

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/civicscope/civicscope/internal/analyze"
	"github.com/civicscope/civicscope/internal/classify"
	"github.com/civicscope/civicscope/internal/compose"
	"github.com/civicscope/civicscope/internal/intel"
	"github.com/civicscope/civicscope/internal/patterns"
	"github.com/civicscope/civicscope/internal/synthesize"
)

// Generation stages, in order. No stage is skipped on partial failure;
// failed stages leave fallback values behind and the pipeline moves on.
const (
	StageBuildingContext      = "building_context"
	StageClassifying          = "classifying"
	StageDetectingPatterns    = "detecting_patterns"
	StageAnalyzing            = "analyzing"
	StageSynthesizingSections = "synthesizing_sections"
	StageComposingSummary     = "composing_summary"
	StageFormattingHighlights = "formatting_highlights"
	StageComplete             = "complete"
)

const (
	maxItemsPerSection = 10
	maxHighlights      = 10
)

// Request describes one briefing generation.
type Request struct {
	Owner        string
	PeriodStart  time.Time
	PeriodEnd    time.Time
	Title        string
	IncludeAudio bool
}

// Generator owns all transient structures while a briefing is built.
// Nothing is shared across concurrent generations; collaborators are
// injected by the composition root.
type Generator struct {
	items      ItemSource
	entities   EntitySource
	detector   *patterns.Detector
	analyzer   *analyze.Analyzer
	synth      *synthesize.Synthesizer
	composer   *compose.Composer
	audio      AudioGenerator
	windowDays int
}

// Options configures a Generator beyond its required sources.
type Options struct {
	Detector   *patterns.Detector
	Analyzer   *analyze.Analyzer
	Synth      *synthesize.Synthesizer
	Composer   *compose.Composer
	Audio      AudioGenerator
	WindowDays int
}

// NewGenerator wires a briefing generator from its collaborators.
func NewGenerator(items ItemSource, entities EntitySource, opts Options) *Generator {
	g := &Generator{
		items:      items,
		entities:   entities,
		detector:   opts.Detector,
		analyzer:   opts.Analyzer,
		synth:      opts.Synth,
		composer:   opts.Composer,
		audio:      opts.Audio,
		windowDays: opts.WindowDays,
	}
	if g.windowDays <= 0 {
		g.windowDays = patterns.DefaultWindowDays
	}
	if g.detector == nil {
		g.detector = patterns.NewDetector(g.windowDays)
	}
	if g.analyzer == nil {
		g.analyzer = analyze.NewAnalyzer(nil, 0)
	}
	if g.synth == nil {
		g.synth = synthesize.NewSynthesizer(nil)
	}
	if g.composer == nil {
		g.composer = compose.NewComposer(nil)
	}
	return g
}

// Generate runs the full pipeline for one request. The only error it
// returns is an unreachable item source; everything downstream degrades.
func (g *Generator) Generate(ctx context.Context, req Request) (*intel.Briefing, error) {
	stages := []string{StageBuildingContext}
	log.Printf("briefing stage: %s", StageBuildingContext)

	snap, err := BuildSnapshot(ctx, g.items, g.entities, req.Owner, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return nil, err
	}

	if len(snap.Items) == 0 {
		log.Printf("no items in window, producing empty briefing")
		return g.emptyBriefing(req), nil
	}

	// Classification and pattern detection consume the same immutable
	// batch and are independent, so they run concurrently.
	var tiered []intel.TieredItem
	var alerts []intel.DetectedPattern

	var eg errgroup.Group
	eg.Go(func() error {
		tiered = make([]intel.TieredItem, len(snap.Items))
		for i, it := range snap.Items {
			tiered[i] = intel.TieredItem{Item: it, Tier: classify.Classify(it)}
		}
		return nil
	})
	eg.Go(func() error {
		alerts = g.detector.Detect(snap.Items, snap.Tracked)
		return nil
	})
	_ = eg.Wait() // both branches only produce fallbackable values
	stages = append(stages, StageClassifying, StageDetectingPatterns)
	log.Printf("briefing stage: %s (%d items)", StageClassifying, len(tiered))
	log.Printf("briefing stage: %s (%d alerts)", StageDetectingPatterns, len(alerts))

	byTier := groupByTier(tiered)

	stages = append(stages, StageAnalyzing)
	log.Printf("briefing stage: %s", StageAnalyzing)
	g.analyzeTopItems(ctx, byTier, snap.Tracked)

	stages = append(stages, StageSynthesizingSections)
	log.Printf("briefing stage: %s", StageSynthesizingSections)
	sections := g.buildSections(ctx, byTier, snap.Entities)

	stages = append(stages, StageComposingSummary)
	log.Printf("briefing stage: %s", StageComposingSummary)
	summary := g.composer.Compose(ctx, sections, alerts, snap.Entities)

	stages = append(stages, StageFormattingHighlights)
	highlights := formatHighlights(snap.Entities)

	stages = append(stages, StageComplete)

	b := &intel.Briefing{
		ID:                 uuid.NewString(),
		Owner:              req.Owner,
		GeneratedAt:        time.Now().UTC(),
		PeriodStart:        req.PeriodStart,
		PeriodEnd:          req.PeriodEnd,
		Title:              briefingTitle(req),
		PatternAlerts:      alerts,
		ExecutiveSummary:   summary,
		Sections:           sections,
		TotalItemsAnalyzed: len(tiered),
		ItemsByTier:        tierCounts(byTier),
		EntityHighlights:   highlights,
		Metadata: map[string]string{
			"window_days": fmt.Sprintf("%d", g.windowDays),
			"stages":      strings.Join(stages, ","),
		},
	}

	if req.IncludeAudio && g.audio != nil {
		g.attachAudio(ctx, b)
	}

	log.Printf("briefing %s assembled: %d items, %d sections, %d alerts",
		b.ID, b.TotalItemsAnalyzed, len(b.Sections), len(b.PatternAlerts))
	return b, nil
}

// emptyBriefing is the documented zero-items result: zero-filled per-tier
// counts and a stock executive summary.
func (g *Generator) emptyBriefing(req Request) *intel.Briefing {
	counts := make(map[intel.Tier]int, len(intel.Tiers))
	for _, t := range intel.Tiers {
		counts[t] = 0
	}
	return &intel.Briefing{
		ID:                 uuid.NewString(),
		Owner:              req.Owner,
		GeneratedAt:        time.Now().UTC(),
		PeriodStart:        req.PeriodStart,
		PeriodEnd:          req.PeriodEnd,
		Title:              briefingTitle(req),
		ExecutiveSummary:   compose.FallbackSummary(nil),
		TotalItemsAnalyzed: 0,
		ItemsByTier:        counts,
		Metadata: map[string]string{
			"stages": strings.Join([]string{StageBuildingContext, StageComplete}, ","),
		},
	}
}

func (g *Generator) analyzeTopItems(ctx context.Context, byTier map[intel.Tier][]intel.TieredItem, tracked []string) {
	trackedStr := strings.Join(tracked, ", ")
	for _, tier := range intel.Tiers {
		if !g.analyzer.Eligible(tier) {
			continue
		}
		items := byTier[tier]
		for i := range items {
			if i >= analyze.TopItemsPerTier {
				break
			}
			items[i].Analysis = g.analyzer.Analyze(ctx, items[i], trackedStr)
		}
	}
}

// buildSections synthesizes one section per non-empty tier, in ascending
// tier order. ItemCount is the untruncated tier size even though only the
// top items are embedded.
func (g *Generator) buildSections(ctx context.Context, byTier map[intel.Tier][]intel.TieredItem, entities []intel.EntityHighlight) []intel.Section {
	var sections []intel.Section
	for _, tier := range intel.Tiers {
		items := byTier[tier]
		if len(items) == 0 {
			continue
		}

		var relSum float64
		for _, ti := range items {
			relSum += ti.Item.RelevanceScore
		}

		display := items
		if len(display) > maxItemsPerSection {
			display = display[:maxItemsPerSection]
		}

		sections = append(sections, intel.Section{
			Tier:         tier,
			Name:         tier.Name(),
			Items:        display,
			ItemCount:    len(items),
			Synthesis:    g.synth.Synthesize(ctx, tier, items, entities),
			AvgRelevance: relSum / float64(len(items)),
			Collapsed:    tier >= intel.TierBackground,
		})
	}
	return sections
}

func (g *Generator) attachAudio(ctx context.Context, b *intel.Briefing) {
	path, err := g.audio.Generate(ctx, RenderMarkdown(b), b.ID)
	if err != nil {
		log.Printf("audio generation failed for briefing %s: %v", b.ID, err)
		return
	}
	b.AudioPath = path
}

func groupByTier(items []intel.TieredItem) map[intel.Tier][]intel.TieredItem {
	byTier := make(map[intel.Tier][]intel.TieredItem)
	for _, ti := range items {
		byTier[ti.Tier] = append(byTier[ti.Tier], ti)
	}
	// most relevant first within each tier, recency as tiebreaker
	for tier := range byTier {
		group := byTier[tier]
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Item.RelevanceScore != group[j].Item.RelevanceScore {
				return group[i].Item.RelevanceScore > group[j].Item.RelevanceScore
			}
			return group[i].Item.Timestamp().After(group[j].Item.Timestamp())
		})
	}
	return byTier
}

func tierCounts(byTier map[intel.Tier][]intel.TieredItem) map[intel.Tier]int {
	counts := make(map[intel.Tier]int, len(intel.Tiers))
	for _, t := range intel.Tiers {
		counts[t] = len(byTier[t])
	}
	return counts
}

func formatHighlights(entities []intel.EntityHighlight) []intel.EntityHighlight {
	out := make([]intel.EntityHighlight, len(entities))
	copy(out, entities)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MentionCount > out[j].MentionCount
	})
	if len(out) > maxHighlights {
		out = out[:maxHighlights]
	}
	return out
}

func briefingTitle(req Request) string {
	if req.Title != "" {
		return req.Title
	}
	return fmt.Sprintf("Intelligence Briefing: %s - %s",
		req.PeriodStart.Format("Jan 02"), req.PeriodEnd.Format("Jan 02, 2006"))
}
