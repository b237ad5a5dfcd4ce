package patterns

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/civicscope/civicscope/internal/intel"
)

var testNow = time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

func newTestDetector(windowDays int) *Detector {
	d := NewDetector(windowDays)
	d.now = func() time.Time { return testNow }
	return d
}

// itemAt builds an item with a timestamp the given number of days before now.
func itemAt(daysAgo float64, cats []string, title string) intel.CollectedItem {
	ts := testNow.Add(-time.Duration(daysAgo * 24 * float64(time.Hour)))
	return intel.CollectedItem{
		SourceType:  "news",
		Title:       title,
		CollectedAt: ts,
		Categories:  cats,
	}
}

func TestEscalationDetection(t *testing.T) {
	var items []intel.CollectedItem
	// previous window: 4 items, current window: 8 items, ratio 2.0
	for i := 0; i < 4; i++ {
		items = append(items, itemAt(8+float64(i)*0.5, []string{"conflict"}, fmt.Sprintf("prev %d", i)))
	}
	for i := 0; i < 8; i++ {
		items = append(items, itemAt(1+float64(i)*0.5, []string{"conflict"}, fmt.Sprintf("cur %d", i)))
	}

	got := newTestDetector(7).Detect(items, nil)
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 pattern, got %d: %+v", len(got), got)
	}
	p := got[0]
	if p.PatternType != intel.PatternEscalation {
		t.Errorf("expected escalation, got %s", p.PatternType)
	}
	if p.Severity != intel.SeverityMedium {
		t.Errorf("expected medium severity at ratio 2.0, got %s", p.Severity)
	}
	if p.DetectionWindowDays != 7 {
		t.Errorf("expected window 7, got %d", p.DetectionWindowDays)
	}
	wantEvidence := map[string]float64{"current_count": 8, "previous_count": 4, "ratio": 2.0}
	if diff := cmp.Diff(wantEvidence, p.Evidence); diff != "" {
		t.Errorf("evidence mismatch (-want +got):\n%s", diff)
	}
}

func TestEscalationSeverityHigh(t *testing.T) {
	var items []intel.CollectedItem
	for i := 0; i < 3; i++ {
		items = append(items, itemAt(8+float64(i)*0.5, []string{"security"}, "prev"))
	}
	for i := 0; i < 9; i++ {
		items = append(items, itemAt(1+float64(i)*0.5, []string{"security"}, "cur"))
	}

	got := newTestDetector(7).Detect(items, nil)
	if len(got) != 1 || got[0].Severity != intel.SeverityHigh {
		t.Fatalf("expected one high-severity escalation at ratio 3.0, got %+v", got)
	}
}

func TestEscalationBelowBaselineFloor(t *testing.T) {
	var items []intel.CollectedItem
	// previous count 2 is below the baseline floor of 3
	for i := 0; i < 2; i++ {
		items = append(items, itemAt(8+float64(i)*0.5, []string{"conflict"}, "prev"))
	}
	for i := 0; i < 3; i++ {
		items = append(items, itemAt(1+float64(i)*0.5, []string{"conflict"}, "cur"))
	}

	got := newTestDetector(7).Detect(items, nil)
	if len(got) != 0 {
		t.Fatalf("expected no patterns below baseline floor, got %+v", got)
	}
}

func TestEntitySurge(t *testing.T) {
	var items []intel.CollectedItem
	for i := 0; i < 2; i++ {
		items = append(items, itemAt(8+float64(i)*0.5, nil, "Harbor Authority notice"))
	}
	for i := 0; i < 10; i++ {
		items = append(items, itemAt(1+float64(i)*0.5, nil, "Harbor Authority announcement"))
	}

	got := newTestDetector(7).Detect(items, []string{"Harbor Authority"})
	var surge *intel.DetectedPattern
	for i := range got {
		if got[i].PatternType == intel.PatternEntitySurge {
			surge = &got[i]
		}
	}
	if surge == nil {
		t.Fatalf("expected an entity_surge pattern, got %+v", got)
	}
	if surge.Severity != intel.SeverityHigh {
		t.Errorf("expected high severity at ratio 5.0, got %s", surge.Severity)
	}
	if surge.Entity != "Harbor Authority" {
		t.Errorf("expected entity name on pattern, got %q", surge.Entity)
	}
}

func TestEntitySurgeSkippedWithoutTrackedEntities(t *testing.T) {
	var items []intel.CollectedItem
	for i := 0; i < 12; i++ {
		items = append(items, itemAt(float64(i), nil, "Harbor Authority"))
	}
	got := newTestDetector(7).Detect(items, nil)
	for _, p := range got {
		if p.PatternType == intel.PatternEntitySurge {
			t.Fatalf("entity_surge must not run without tracked entities")
		}
	}
}

func TestSentimentShiftFromKeywordHeuristic(t *testing.T) {
	var items []intel.CollectedItem
	// first half positive, second half negative, 8 samples
	for i := 0; i < 4; i++ {
		items = append(items, itemAt(10-float64(i), nil, "City Council approved the progress agreement"))
	}
	for i := 0; i < 4; i++ {
		items = append(items, itemAt(4-float64(i), nil, "City Council crisis: protest over violation"))
	}

	got := newTestDetector(7).Detect(items, []string{"City Council"})
	var shift *intel.DetectedPattern
	for i := range got {
		if got[i].PatternType == intel.PatternSentimentShift {
			shift = &got[i]
		}
	}
	if shift == nil {
		t.Fatalf("expected a sentiment_shift pattern, got %+v", got)
	}
	if shift.Severity != intel.SeverityHigh {
		t.Errorf("expected high severity for full polarity flip, got %s", shift.Severity)
	}
	if shift.Evidence["shift"] >= 0 {
		t.Errorf("expected negative shift, got %f", shift.Evidence["shift"])
	}
}

func TestSentimentPrefersExternalTone(t *testing.T) {
	it := intel.CollectedItem{
		Title:    "approved success progress",
		Metadata: map[string]string{"tone": "-0.8"},
	}
	if got := itemSentiment(it); got != -0.8 {
		t.Errorf("expected external tone -0.8 to win, got %f", got)
	}

	// zero tone falls back to the keyword heuristic
	it.Metadata["tone"] = "0"
	if got := itemSentiment(it); got <= 0 {
		t.Errorf("expected positive keyword sentiment on zero tone, got %f", got)
	}
}

func TestSentimentShiftRequiresSixSamples(t *testing.T) {
	var items []intel.CollectedItem
	for i := 0; i < 5; i++ {
		title := "City Council approved agreement"
		if i >= 2 {
			title = "City Council crisis protest"
		}
		items = append(items, itemAt(float64(10-i), nil, title))
	}
	got := newTestDetector(7).Detect(items, []string{"City Council"})
	for _, p := range got {
		if p.PatternType == intel.PatternSentimentShift {
			t.Fatalf("expected no sentiment_shift with 5 samples")
		}
	}
}

func TestGeographicSpread(t *testing.T) {
	mk := func(daysAgo float64, loc string) intel.CollectedItem {
		it := itemAt(daysAgo, []string{"infrastructure"}, "roadworks")
		it.Metadata = map[string]string{"location": loc}
		return it
	}
	items := []intel.CollectedItem{
		mk(9, "northside"),
		mk(8.5, "northside"),
		mk(2, "northside"),
		mk(1.5, "eastferry"),
		mk(1, "milldam"),
	}

	got := newTestDetector(7).Detect(items, nil)
	var spread *intel.DetectedPattern
	for i := range got {
		if got[i].PatternType == intel.PatternGeographicSpread {
			spread = &got[i]
		}
	}
	if spread == nil {
		t.Fatalf("expected geographic_spread with 2 new locations, got %+v", got)
	}
	if spread.Evidence["new_locations"] != 2 {
		t.Errorf("expected 2 new locations, got %f", spread.Evidence["new_locations"])
	}
	if spread.Severity != intel.SeverityMedium {
		t.Errorf("expected medium severity, got %s", spread.Severity)
	}
}

func TestTemporalClustering(t *testing.T) {
	var items []intel.CollectedItem
	// 7 quiet hours with 1 item each, one hour with 12
	for h := 0; h < 7; h++ {
		it := itemAt(0, nil, "quiet")
		ts := testNow.Add(-time.Duration(h+2) * time.Hour)
		it.CollectedAt = ts
		items = append(items, it)
	}
	burst := testNow.Add(-time.Hour)
	for i := 0; i < 12; i++ {
		it := itemAt(0, nil, "burst")
		it.CollectedAt = burst.Add(time.Duration(i) * time.Minute)
		items = append(items, it)
	}

	got := newTestDetector(7).Detect(items, nil)
	var cluster *intel.DetectedPattern
	for i := range got {
		if got[i].PatternType == intel.PatternTemporalClustering {
			cluster = &got[i]
		}
	}
	if cluster == nil {
		t.Fatalf("expected temporal_clustering, got %+v", got)
	}
	if cluster.Evidence["bucket_count"] != 12 {
		t.Errorf("expected burst bucket of 12, got %f", cluster.Evidence["bucket_count"])
	}
}

func TestTemporalClusteringSparseDataGuard(t *testing.T) {
	// A burst of 8 is above mean+2.5*stdev here but below the absolute
	// floor of 10, so it must not be flagged.
	var items []intel.CollectedItem
	for h := 0; h < 7; h++ {
		it := itemAt(0, nil, "quiet")
		it.CollectedAt = testNow.Add(-time.Duration(h+2) * time.Hour)
		items = append(items, it)
	}
	burst := testNow.Add(-time.Hour)
	for i := 0; i < 8; i++ {
		it := itemAt(0, nil, "burst")
		it.CollectedAt = burst.Add(time.Duration(i) * time.Minute)
		items = append(items, it)
	}

	got := newTestDetector(7).Detect(items, nil)
	for _, p := range got {
		if p.PatternType == intel.PatternTemporalClustering {
			t.Fatalf("expected no clustering below the absolute floor")
		}
	}
}

func TestDetectOrdering(t *testing.T) {
	var items []intel.CollectedItem
	// medium escalation in one category
	for i := 0; i < 4; i++ {
		items = append(items, itemAt(8+float64(i)*0.2, []string{"economy"}, "prev"))
	}
	for i := 0; i < 8; i++ {
		items = append(items, itemAt(1+float64(i)*0.2, []string{"economy"}, "cur"))
	}
	// high escalation in another
	for i := 0; i < 3; i++ {
		items = append(items, itemAt(8+float64(i)*0.2, []string{"conflict"}, "prev"))
	}
	for i := 0; i < 9; i++ {
		items = append(items, itemAt(1+float64(i)*0.2, []string{"conflict"}, "cur"))
	}

	got := newTestDetector(7).Detect(items, nil)
	if len(got) < 2 {
		t.Fatalf("expected 2 patterns, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if severityRank(got[i-1].Severity) > severityRank(got[i].Severity) {
			t.Errorf("patterns out of severity order at %d: %s after %s", i, got[i].Severity, got[i-1].Severity)
		}
	}
	if got[0].Severity != intel.SeverityHigh {
		t.Errorf("expected high severity first, got %s", got[0].Severity)
	}
}

func TestDetectorIgnoresZeroTimestamps(t *testing.T) {
	items := []intel.CollectedItem{
		{Title: "no timestamp", Categories: []string{"conflict"}},
	}
	got := newTestDetector(7).Detect(items, nil)
	if len(got) != 0 {
		t.Fatalf("expected no patterns from untimestamped items, got %+v", got)
	}
}
