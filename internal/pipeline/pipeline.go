// Package pipeline orchestrates a full briefing run: collect, fetch,
// discover relationships, generate, archive.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/civicscope/civicscope/internal/analyze"
	"github.com/civicscope/civicscope/internal/audio"
	"github.com/civicscope/civicscope/internal/briefing"
	"github.com/civicscope/civicscope/internal/collect"
	"github.com/civicscope/civicscope/internal/compose"
	"github.com/civicscope/civicscope/internal/config"
	"github.com/civicscope/civicscope/internal/database"
	"github.com/civicscope/civicscope/internal/fetch"
	"github.com/civicscope/civicscope/internal/graph"
	"github.com/civicscope/civicscope/internal/intel"
	"github.com/civicscope/civicscope/internal/llm"
	"github.com/civicscope/civicscope/internal/patterns"
	"github.com/civicscope/civicscope/internal/synthesize"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	BriefingID string
	Steps      []StepResult
}

// Pipeline orchestrates the 5-step briefing run.
type Pipeline struct {
	cfg      *config.Config
	db       *database.DB
	provider llm.Provider
	graphs   *graph.Service
}

// New creates a new pipeline.
func New(cfg *config.Config, db *database.DB) *Pipeline {
	provider := llm.CreateProvider(
		cfg.LLM.Provider,
		cfg.LLM.Model,
		cfg.LLM.OllamaURL,
		cfg.LLM.OpenAIModel,
		cfg.LLM.APIKeyEnv,
	)

	return &Pipeline{
		cfg:      cfg,
		db:       db,
		provider: provider,
		graphs:   graph.NewService(db),
	}
}

// Run executes the full 5-step pipeline for the configured window ending now.
func (p *Pipeline) Run(ctx context.Context) *Result {
	r := &Result{}
	end := time.Now()
	start := end.AddDate(0, 0, -p.cfg.Briefing.WindowDays)

	// Step 1: Collect
	step := p.runCollect(ctx)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	// Step 2: Fetch content
	step = p.runFetch(ctx)
	r.Steps = append(r.Steps, step)

	// Step 3: Discover relationships
	step = p.runDiscover(ctx, start, end)
	r.Steps = append(r.Steps, step)

	// Step 4: Generate briefing
	step, b := p.runGenerate(ctx, start, end)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}
	r.BriefingID = b.ID

	// Step 5: Archive
	step = p.runArchive(ctx, b)
	r.Steps = append(r.Steps, step)

	return r
}

// DryRun shows what would be done without executing.
func (p *Pipeline) DryRun(ctx context.Context) *Result {
	r := &Result{}
	end := time.Now()
	start := end.AddDate(0, 0, -p.cfg.Briefing.WindowDays)

	r.Steps = append(r.Steps, StepResult{
		Name:    "Collect",
		Summary: fmt.Sprintf("[dry-run] would poll %d feeds", len(p.cfg.Sources.Feeds)),
	})

	needing, _ := p.db.ItemsNeedingFetch(ctx, p.cfg.Owner)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Fetch",
		Summary: fmt.Sprintf("[dry-run] %d items need content fetching", len(needing)),
	})

	watched, _ := p.db.ActiveWatchedEntities(ctx, p.cfg.Owner)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Discover",
		Summary: fmt.Sprintf("[dry-run] %d watched entities to scan for co-mentions", len(watched)),
	})

	items, _ := p.db.ItemsForPeriod(ctx, p.cfg.Owner, start, end)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Generate",
		Summary: fmt.Sprintf("[dry-run] %d items in the %d-day window", len(items), p.cfg.Briefing.WindowDays),
	})

	latest, _ := p.db.GetLatestBriefing(ctx, p.cfg.Owner)
	if latest != nil {
		r.Steps = append(r.Steps, StepResult{
			Name:    "Archive",
			Summary: fmt.Sprintf("[dry-run] latest archived briefing is %s", latest.ID),
		})
	} else {
		r.Steps = append(r.Steps, StepResult{
			Name:    "Archive",
			Summary: "[dry-run] no briefings archived yet",
		})
	}

	return r
}

func (p *Pipeline) runCollect(ctx context.Context) StepResult {
	log.Println("Step 1/5: Collecting items...")
	collector := collect.NewCollector(p.cfg, p.db, p.cfg.Briefing.WindowDays)
	result := collector.Collect(ctx)
	return StepResult{
		Name:    "Collect",
		Summary: fmt.Sprintf("Found %d new items (%d total, %d duplicates)", result.NewItems, result.TotalFound, result.Duplicates),
	}
}

func (p *Pipeline) runFetch(ctx context.Context) StepResult {
	log.Println("Step 2/5: Fetching item content...")
	fetcher := fetch.NewContentFetcher(p.db, p.cfg.Owner, 15*time.Second)
	result := fetcher.FetchMissingContent(ctx)
	return StepResult{
		Name:    "Fetch",
		Summary: fmt.Sprintf("Fetched %d items, %d failed", result.Fetched, result.Failed),
	}
}

func (p *Pipeline) runDiscover(ctx context.Context, start, end time.Time) StepResult {
	log.Println("Step 3/5: Discovering entity relationships...")

	watched, err := p.db.ActiveWatchedEntities(ctx, p.cfg.Owner)
	if err != nil {
		return StepResult{Name: "Discover", Summary: "Skipped: " + err.Error()}
	}
	if len(watched) < 2 {
		return StepResult{Name: "Discover", Summary: "Skipped: fewer than 2 watched entities"}
	}

	names := make([]string, len(watched))
	for i, w := range watched {
		names[i] = w.Name
	}
	items, err := p.db.ItemsForPeriod(ctx, p.cfg.Owner, start, end)
	if err != nil {
		return StepResult{Name: "Discover", Summary: "Skipped: " + err.Error()}
	}

	n, err := p.graphs.Discover(ctx, p.cfg.Owner, names, items)
	if err != nil {
		return StepResult{Name: "Discover", Err: err}
	}
	return StepResult{
		Name:    "Discover",
		Summary: fmt.Sprintf("Recorded %d co-occurrence relationships", n),
	}
}

func (p *Pipeline) runGenerate(ctx context.Context, start, end time.Time) (StepResult, *intel.Briefing) {
	log.Println("Step 4/5: Generating briefing...")

	var audioGen briefing.AudioGenerator
	if p.cfg.Audio.Enabled {
		if g := audio.NewGenerator(p.cfg.Audio.Command, filepath.Join(p.cfg.GetDataDir(), "audio")); g != nil {
			audioGen = g
		}
	}

	gen := briefing.NewGenerator(p.db, p.db, briefing.Options{
		Detector:   patterns.NewDetector(p.cfg.Briefing.WindowDays),
		Analyzer:   analyze.NewAnalyzer(p.provider, intel.Tier(p.cfg.Briefing.TierCutoff)),
		Synth:      synthesize.NewSynthesizer(p.provider),
		Composer:   compose.NewComposer(p.provider),
		Audio:      audioGen,
		WindowDays: p.cfg.Briefing.WindowDays,
	})

	b, err := gen.Generate(ctx, briefing.Request{
		Owner:        p.cfg.Owner,
		PeriodStart:  start,
		PeriodEnd:    end,
		Title:        p.cfg.Briefing.Title,
		IncludeAudio: audioGen != nil,
	})
	if err != nil {
		return StepResult{Name: "Generate", Err: err}, nil
	}
	return StepResult{
		Name:    "Generate",
		Summary: fmt.Sprintf("Briefing generated: %d items across %d sections", b.TotalItemsAnalyzed, len(b.Sections)),
	}, b
}

func (p *Pipeline) runArchive(ctx context.Context, b *intel.Briefing) StepResult {
	log.Println("Step 5/5: Archiving briefing...")
	if err := p.db.SaveBriefing(ctx, b); err != nil {
		return StepResult{Name: "Archive", Err: err}
	}
	return StepResult{
		Name:    "Archive",
		Summary: fmt.Sprintf("Archived briefing %s", b.ID),
	}
}
