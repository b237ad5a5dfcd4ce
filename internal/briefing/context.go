package briefing

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/civicscope/civicscope/internal/intel"
)

// ItemSource supplies collected items for a time window. Implemented by the
// database layer; the generator never knows how items were gathered.
type ItemSource interface {
	ItemsForPeriod(ctx context.Context, owner string, start, end time.Time) ([]intel.CollectedItem, error)
}

// EntitySource supplies tracked-entity state for a time window: mention
// counts, trend, and sources. Never mutated by the generator.
type EntitySource interface {
	EntityState(ctx context.Context, owner string, start, end time.Time) ([]intel.EntityHighlight, error)
}

// AudioGenerator renders a briefing to audio. Optional; failures leave the
// briefing's audio path unset.
type AudioGenerator interface {
	Generate(ctx context.Context, markdown, briefingID string) (string, error)
}

// Snapshot is the in-memory view of one period's raw inputs. Immutable once
// built; classification and pattern detection read it concurrently.
type Snapshot struct {
	Owner       string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Items       []intel.CollectedItem
	Entities    []intel.EntityHighlight
	Tracked     []string
}

// BuildSnapshot pulls items and entity state for the window. An unreachable
// item source is the one fatal condition; entity state degrades to empty.
func BuildSnapshot(ctx context.Context, items ItemSource, entities EntitySource, owner string, start, end time.Time) (*Snapshot, error) {
	collected, err := items.ItemsForPeriod(ctx, owner, start, end)
	if err != nil {
		return nil, fmt.Errorf("loading collected items: %w", err)
	}

	snap := &Snapshot{
		Owner:       owner,
		PeriodStart: start,
		PeriodEnd:   end,
		Items:       collected,
	}

	if entities != nil {
		state, err := entities.EntityState(ctx, owner, start, end)
		if err != nil {
			log.Printf("entity state unavailable, continuing without highlights: %v", err)
		} else {
			snap.Entities = state
			for _, e := range state {
				snap.Tracked = append(snap.Tracked, e.Name)
			}
		}
	}
	return snap, nil
}
