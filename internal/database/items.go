package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/civicscope/civicscope/internal/intel"
)

// timeLayout is the canonical stored timestamp format. RFC 3339 in UTC
// compares correctly as text, which the window queries rely on.
const timeLayout = time.RFC3339

// InsertItem stores a collected item for an owner. Returns the ID on
// success, 0 if the URL was already collected for that owner.
func (db *DB) InsertItem(ctx context.Context, owner string, item intel.CollectedItem) (int64, error) {
	categories, err := marshalNullable(item.Categories)
	if err != nil {
		return 0, err
	}
	metadata, err := marshalNullable(item.Metadata)
	if err != nil {
		return 0, err
	}

	var published *string
	if item.PublishedAt != nil {
		s := item.PublishedAt.UTC().Format(timeLayout)
		published = &s
	}
	collected := item.CollectedAt
	if collected.IsZero() {
		collected = time.Now()
	}

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO items
		(owner, url, title, source_type, source_name, content, summary,
		 published_at, collected_at, relevance_score, categories, metadata, content_fetched)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		owner, item.URL, item.Title, item.SourceType, item.SourceName,
		item.Content, item.Summary, published, collected.UTC().Format(timeLayout),
		item.RelevanceScore, categories, metadata, boolToInt(item.Content != ""),
	)
	if err != nil {
		// Duplicate (owner, url) constraint
		return 0, nil //nolint: nilerr
	}
	return result.LastInsertId()
}

// ItemsForPeriod returns the owner's items whose effective timestamp
// (published_at when set, else collected_at) falls in [start, end).
func (db *DB) ItemsForPeriod(ctx context.Context, owner string, start, end time.Time) ([]intel.CollectedItem, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, source_type, source_name, title, content, summary, url,
		 published_at, collected_at, relevance_score, categories, metadata
		FROM items
		WHERE owner = ?
		  AND COALESCE(published_at, collected_at) >= ?
		  AND COALESCE(published_at, collected_at) < ?
		ORDER BY COALESCE(published_at, collected_at) DESC`,
		owner, start.UTC().Format(timeLayout), end.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

// ItemsNeedingFetch returns the owner's items with empty content that
// haven't had a fetch attempt yet.
func (db *DB) ItemsNeedingFetch(ctx context.Context, owner string) ([]intel.CollectedItem, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, source_type, source_name, title, content, summary, url,
		 published_at, collected_at, relevance_score, categories, metadata
		FROM items
		WHERE owner = ? AND (content IS NULL OR content = '') AND content_fetched = 0
		ORDER BY collected_at DESC`, owner,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

// UpdateItemContent stores fetched content for an item.
func (db *DB) UpdateItemContent(ctx context.Context, itemID int64, content string) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE items SET content = ?, content_fetched = 1 WHERE id = ?",
		content, itemID,
	)
	return err
}

// MarkItemFetchAttempted marks that we tried to fetch content.
func (db *DB) MarkItemFetchAttempted(ctx context.Context, itemID int64) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE items SET content_fetched = 1 WHERE id = ?", itemID,
	)
	return err
}

func scanItems(rows *sql.Rows) ([]intel.CollectedItem, error) {
	var items []intel.CollectedItem
	for rows.Next() {
		var (
			it                            intel.CollectedItem
			sourceName, content, summary  *string
			published, collected          *string
			categories, metadata          *string
		)
		if err := rows.Scan(&it.ID, &it.SourceType, &sourceName, &it.Title,
			&content, &summary, &it.URL, &published, &collected,
			&it.RelevanceScore, &categories, &metadata); err != nil {
			return nil, err
		}
		if sourceName != nil {
			it.SourceName = *sourceName
		}
		if content != nil {
			it.Content = *content
		}
		if summary != nil {
			it.Summary = *summary
		}
		if published != nil {
			if t, err := time.Parse(timeLayout, *published); err == nil {
				it.PublishedAt = &t
			}
		}
		if collected != nil {
			if t, err := time.Parse(timeLayout, *collected); err == nil {
				it.CollectedAt = t
			}
		}
		if categories != nil {
			json.Unmarshal([]byte(*categories), &it.Categories)
		}
		if metadata != nil {
			json.Unmarshal([]byte(*metadata), &it.Metadata)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func marshalNullable(v any) (*string, error) {
	switch x := v.(type) {
	case []string:
		if x == nil {
			return nil, nil
		}
	case map[string]string:
		if x == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
