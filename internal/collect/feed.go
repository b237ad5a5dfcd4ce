package collect

import (
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/civicscope/civicscope/internal/intel"
)

const maxPerFeed = 20

// FeedConfig is one feed to poll, with the source type and categories
// stamped onto every item it yields.
type FeedConfig struct {
	URL        string
	Name       string
	SourceType string
	Categories []string
}

// FeedParser parses RSS/Atom feeds into collected items.
type FeedParser struct {
	feeds []FeedConfig
}

// NewFeedParser creates a new FeedParser.
func NewFeedParser(feeds []FeedConfig) *FeedParser {
	return &FeedParser{feeds: feeds}
}

// ParseAll parses all configured feeds and returns items published within
// daysBack. A feed that fails to parse is logged and skipped.
func (fp *FeedParser) ParseAll(daysBack int) []intel.CollectedItem {
	cutoff := time.Now().AddDate(0, 0, -daysBack)
	var all []intel.CollectedItem

	parser := gofeed.NewParser()
	for _, fc := range fp.feeds {
		name := fc.Name
		if name == "" {
			name = extractSourceName(fc.URL)
		}

		items, err := parseFeed(parser, fc, name, cutoff)
		if err != nil {
			log.Printf("Failed to parse feed %s: %v", fc.URL, err)
			continue
		}
		all = append(all, items...)
		log.Printf("Parsed %d items from %s (within %d days)", len(items), name, daysBack)
	}

	return all
}

func parseFeed(parser *gofeed.Parser, fc FeedConfig, sourceName string, cutoff time.Time) ([]intel.CollectedItem, error) {
	feed, err := parser.ParseURL(fc.URL)
	if err != nil {
		return nil, err
	}

	var items []intel.CollectedItem
	for _, raw := range feed.Items {
		if len(items) >= maxPerFeed {
			break
		}

		item := parseItem(raw, fc, sourceName)
		if item == nil {
			continue
		}
		if withinWindow(item.PublishedAt, cutoff) {
			items = append(items, *item)
		}
	}

	return items, nil
}

func parseItem(raw *gofeed.Item, fc FeedConfig, sourceName string) *intel.CollectedItem {
	itemURL := raw.Link
	if itemURL == "" {
		itemURL = raw.GUID
	}
	if itemURL == "" {
		return nil
	}

	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return nil
	}

	var published *time.Time
	if raw.PublishedParsed != nil {
		published = raw.PublishedParsed
	} else if raw.UpdatedParsed != nil {
		published = raw.UpdatedParsed
	}

	var summary string
	if raw.Description != "" {
		summary = stripHTML(raw.Description)
	}
	var content string
	if raw.Content != "" {
		content = stripHTML(raw.Content)
	}

	return &intel.CollectedItem{
		SourceType:     fc.SourceType,
		SourceName:     sourceName,
		Title:          title,
		Content:        content,
		Summary:        summary,
		URL:            itemURL,
		PublishedAt:    published,
		CollectedAt:    time.Now(),
		RelevanceScore: 0.5,
		Categories:     fc.Categories,
	}
}

// withinWindow gives items without a parseable date the benefit of the doubt.
func withinWindow(published *time.Time, cutoff time.Time) bool {
	if published == nil {
		return true
	}
	return !published.Before(cutoff)
}

func stripHTML(text string) string {
	// Simple HTML tag removal
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
			result.WriteRune(' ')
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			result.WriteRune(r)
		}
	}

	s := result.String()
	// Decode common entities
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")

	// Normalize whitespace
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		name := parts[len(parts)-2]
		return strings.ToUpper(name[:1]) + name[1:]
	}
	return strings.ToUpper(host[:1]) + host[1:]
}
