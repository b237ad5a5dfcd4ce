package classify

import (
	"testing"
	"time"

	"github.com/civicscope/civicscope/internal/intel"
)

func item(mod func(*intel.CollectedItem)) intel.CollectedItem {
	it := intel.CollectedItem{
		ID:          1,
		SourceType:  "news",
		SourceName:  "Harbor Gazette",
		Title:       "Council reviews budget",
		Content:     "The council met on Tuesday.",
		CollectedAt: time.Now(),
	}
	if mod != nil {
		mod(&it)
	}
	return it
}

func TestClassifyRules(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*intel.CollectedItem)
		want intel.Tier
	}{
		{
			name: "escalation keyword forces tier 1",
			mod: func(it *intel.CollectedItem) {
				it.Title = "Airstrike reported near border crossing"
			},
			want: intel.TierActionable,
		},
		{
			name: "escalation keyword in content",
			mod: func(it *intel.CollectedItem) {
				it.Content = "witnesses reported heavy shelling overnight"
			},
			want: intel.TierActionable,
		},
		{
			name: "hobby source type excluded despite escalation keyword",
			mod: func(it *intel.CollectedItem) {
				it.SourceType = "hobby_forum"
				it.Title = "Night strike loadout for the weekend attack scenario"
			},
			want: intel.TierMonitor,
		},
		{
			name: "hobby category excluded despite escalation keyword",
			mod: func(it *intel.CollectedItem) {
				it.Categories = []string{"airsoft"}
				it.Content = "full mobilization of both teams at the field"
			},
			want: intel.TierMonitor,
		},
		{
			name: "hobby keyword in title excludes",
			mod: func(it *intel.CollectedItem) {
				it.Title = "Milsim weekend: assault on the old mill"
			},
			want: intel.TierMonitor,
		},
		{
			name: "category beats source type",
			mod: func(it *intel.CollectedItem) {
				it.SourceType = "financial_filings"
				it.Categories = []string{"zoning"}
			},
			want: intel.TierPriority,
		},
		{
			name: "first matching category wins",
			mod: func(it *intel.CollectedItem) {
				it.Categories = []string{"unknown_topic", "conflict", "culture"}
			},
			want: intel.TierActionable,
		},
		{
			name: "source type fallback geopolitical",
			mod: func(it *intel.CollectedItem) {
				it.SourceType = "geopolitical"
			},
			want: intel.TierActionable,
		},
		{
			name: "source type fallback academic",
			mod: func(it *intel.CollectedItem) {
				it.SourceType = "academic"
			},
			want: intel.TierBackground,
		},
		{
			name: "title keyword fallback",
			mod: func(it *intel.CollectedItem) {
				it.SourceType = "unknown"
				it.Title = "Notes on local government reform"
			},
			want: intel.TierPriority,
		},
		{
			name: "default tier 3",
			mod: func(it *intel.CollectedItem) {
				it.SourceType = "unknown"
				it.Title = "Miscellaneous notes"
			},
			want: intel.TierBackground,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(item(tt.mod))
			if got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	it := item(func(it *intel.CollectedItem) {
		it.SourceType = "unknown"
		it.Title = "Procurement and zoning update for the economy board"
	})
	first := Classify(it)
	for i := 0; i < 50; i++ {
		if got := Classify(it); got != first {
			t.Fatalf("run %d: Classify() = %v, want %v", i, got, first)
		}
	}
}

func TestExclusionPrecedenceIsAbsolute(t *testing.T) {
	// Every exclusion signal combined with every escalation keyword must
	// still land in tier 4.
	for _, kw := range escalationKeywords {
		it := item(func(it *intel.CollectedItem) {
			it.SourceType = "hobby_forum"
			it.Title = "Weekend " + kw + " report"
			it.Content = "The " + kw + " was decisive."
		})
		if got := Classify(it); got != intel.TierMonitor {
			t.Errorf("keyword %q: Classify() = %v, want TierMonitor", kw, got)
		}
	}
}
