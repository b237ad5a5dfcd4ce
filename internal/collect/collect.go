// Package collect gathers items from configured RSS/Atom feeds and stores
// them for briefing generation.
package collect

import (
	"context"
	"log"

	"github.com/civicscope/civicscope/internal/config"
	"github.com/civicscope/civicscope/internal/database"
)

// Result holds the results of a collection run.
type Result struct {
	TotalFound int
	NewItems   int
	Duplicates int
	Sources    map[string]int
}

// Collector polls the configured feeds and persists new items.
type Collector struct {
	db         *database.DB
	owner      string
	feedParser *FeedParser
	daysBack   int
}

// NewCollector creates a collector for the configured sources.
func NewCollector(cfg *config.Config, db *database.DB, daysBack int) *Collector {
	c := &Collector{
		db:       db,
		owner:    cfg.Owner,
		daysBack: daysBack,
	}

	if len(cfg.Sources.Feeds) > 0 {
		feeds := make([]FeedConfig, len(cfg.Sources.Feeds))
		for i, f := range cfg.Sources.Feeds {
			feeds[i] = FeedConfig{
				URL:        f.URL,
				Name:       f.Name,
				SourceType: f.SourceType,
				Categories: f.Categories,
			}
		}
		c.feedParser = NewFeedParser(feeds)
	}

	return c
}

// Collect polls all configured feeds and stores new items.
func (c *Collector) Collect(ctx context.Context) *Result {
	r := &Result{Sources: make(map[string]int)}
	if c.feedParser == nil {
		log.Println("No feeds configured")
		return r
	}

	log.Println("Collecting from RSS feeds...")
	items := c.feedParser.ParseAll(c.daysBack)
	r.TotalFound = len(items)

	for _, item := range items {
		id, err := c.db.InsertItem(ctx, c.owner, item)
		if err != nil {
			log.Printf("Failed to store item %s: %v", item.URL, err)
			continue
		}
		if id > 0 {
			r.NewItems++
			r.Sources[item.SourceName]++
		} else {
			r.Duplicates++
		}
	}

	log.Printf("Collection complete: %d found, %d new, %d duplicates", r.TotalFound, r.NewItems, r.Duplicates)
	return r
}
