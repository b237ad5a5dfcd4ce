package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/civicscope/civicscope/internal/intel"
)

// AddWatchedEntity creates a tracked entity for an owner. Returns the ID,
// or 0 when the owner already watches that name.
func (db *DB) AddWatchedEntity(ctx context.Context, owner, name string, entityType *string, keywords []string) (int64, error) {
	var kwJSON *string
	if keywords != nil {
		data, err := json.Marshal(keywords)
		if err != nil {
			return 0, err
		}
		s := string(data)
		kwJSON = &s
	}

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO watched_entities (owner, name, entity_type, keywords) VALUES (?, ?, ?, ?)`,
		owner, name, entityType, kwJSON,
	)
	if err != nil {
		// Duplicate (owner, name) constraint
		return 0, nil //nolint: nilerr
	}
	return result.LastInsertId()
}

// ListWatchedEntities returns all of an owner's tracked entities.
func (db *DB) ListWatchedEntities(ctx context.Context, owner string) ([]WatchedEntity, error) {
	return db.queryWatched(ctx,
		"SELECT id, owner, name, entity_type, keywords, is_active, created_at, updated_at FROM watched_entities WHERE owner = ? ORDER BY name",
		owner)
}

// ActiveWatchedEntities returns only the owner's active tracked entities.
func (db *DB) ActiveWatchedEntities(ctx context.Context, owner string) ([]WatchedEntity, error) {
	return db.queryWatched(ctx,
		"SELECT id, owner, name, entity_type, keywords, is_active, created_at, updated_at FROM watched_entities WHERE owner = ? AND is_active = 1 ORDER BY name",
		owner)
}

// ToggleWatchedEntity flips the active state of a tracked entity.
func (db *DB) ToggleWatchedEntity(ctx context.Context, entityID int64) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE watched_entities SET is_active = NOT is_active, updated_at = datetime('now') WHERE id = ?`,
		entityID,
	)
	return err
}

// RemoveWatchedEntity deletes a tracked entity.
func (db *DB) RemoveWatchedEntity(ctx context.Context, entityID int64) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM watched_entities WHERE id = ?", entityID)
	return err
}

// EntityState returns mention counts, trend, and sources for each of the
// owner's active tracked entities over [start, end). The trend compares
// against the window of the same length immediately before start.
func (db *DB) EntityState(ctx context.Context, owner string, start, end time.Time) ([]intel.EntityHighlight, error) {
	watched, err := db.ActiveWatchedEntities(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(watched) == 0 {
		return nil, nil
	}

	prevStart := start.Add(-end.Sub(start))
	var highlights []intel.EntityHighlight
	for _, w := range watched {
		current, sources, err := db.countMentions(ctx, owner, w.Name, start, end)
		if err != nil {
			return nil, err
		}
		previous, _, err := db.countMentions(ctx, owner, w.Name, prevStart, start)
		if err != nil {
			return nil, err
		}

		h := intel.EntityHighlight{
			Name:         w.Name,
			MentionCount: current,
			Trend:        trend(current, previous),
			Sources:      sources,
		}
		if w.EntityType != nil {
			h.EntityType = *w.EntityType
		}
		highlights = append(highlights, h)
	}
	return highlights, nil
}

// countMentions counts items in the window whose text mentions the entity,
// and collects the distinct source names of those items.
func (db *DB) countMentions(ctx context.Context, owner, name string, start, end time.Time) (int, []string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT COALESCE(source_name, source_type)
		FROM items
		WHERE owner = ?
		  AND COALESCE(published_at, collected_at) >= ?
		  AND COALESCE(published_at, collected_at) < ?
		  AND instr(lower(title || ' ' || COALESCE(content, '') || ' ' || COALESCE(summary, '')), lower(?)) > 0`,
		owner, start.UTC().Format(timeLayout), end.UTC().Format(timeLayout), name,
	)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	count := 0
	seen := make(map[string]bool)
	var sources []string
	for rows.Next() {
		var source string
		if err := rows.Scan(&source); err != nil {
			return 0, nil, err
		}
		count++
		if source != "" && !seen[source] {
			seen[source] = true
			sources = append(sources, source)
		}
	}
	return count, sources, rows.Err()
}

func trend(current, previous int) string {
	switch {
	case current > previous:
		return "rising"
	case current < previous:
		return "falling"
	default:
		return "stable"
	}
}

func (db *DB) queryWatched(ctx context.Context, query string, args ...any) ([]WatchedEntity, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var watched []WatchedEntity
	for rows.Next() {
		w, err := scanWatched(rows)
		if err != nil {
			return nil, err
		}
		watched = append(watched, *w)
	}
	return watched, rows.Err()
}

func scanWatched(rows *sql.Rows) (*WatchedEntity, error) {
	var w WatchedEntity
	var kwJSON *string
	var active int
	if err := rows.Scan(&w.ID, &w.Owner, &w.Name, &w.EntityType, &kwJSON,
		&active, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.IsActive = active != 0
	if kwJSON != nil {
		if err := json.Unmarshal([]byte(*kwJSON), &w.Keywords); err != nil {
			w.Keywords = nil
		}
	}
	return &w, nil
}
