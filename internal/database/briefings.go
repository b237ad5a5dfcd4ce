package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/civicscope/civicscope/internal/intel"
)

// SaveBriefing archives a briefing: the full JSON payload plus indexed
// columns for listing. Saving the same ID replaces the stored copy.
func (db *DB) SaveBriefing(ctx context.Context, b *intel.Briefing) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encoding briefing: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO briefings
		(id, owner, title, period_start, period_end, generated_at, total_items, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Owner, b.Title,
		b.PeriodStart.UTC().Format(timeLayout),
		b.PeriodEnd.UTC().Format(timeLayout),
		b.GeneratedAt.UTC().Format(timeLayout),
		b.TotalItemsAnalyzed, string(payload),
	)
	return err
}

// GetBriefing returns an archived briefing by ID, or nil if not found.
func (db *DB) GetBriefing(ctx context.Context, id string) (*intel.Briefing, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT payload FROM briefings WHERE id = ?", id)
	return decodeBriefing(row)
}

// GetLatestBriefing returns the owner's most recently generated briefing,
// or nil if none exist.
func (db *DB) GetLatestBriefing(ctx context.Context, owner string) (*intel.Briefing, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT payload FROM briefings WHERE owner = ? ORDER BY generated_at DESC LIMIT 1", owner,
	)
	return decodeBriefing(row)
}

// ListBriefings returns the owner's archived briefings, newest first,
// without their payloads.
func (db *DB) ListBriefings(ctx context.Context, owner string) ([]BriefingSummary, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, owner, title, period_start, period_end, generated_at, total_items
		FROM briefings WHERE owner = ? ORDER BY generated_at DESC`, owner,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []BriefingSummary
	for rows.Next() {
		var s BriefingSummary
		if err := rows.Scan(&s.ID, &s.Owner, &s.Title, &s.PeriodStart,
			&s.PeriodEnd, &s.GeneratedAt, &s.TotalItems); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// DeleteBriefing removes an archived briefing.
func (db *DB) DeleteBriefing(ctx context.Context, id string) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM briefings WHERE id = ?", id)
	return err
}

func decodeBriefing(row *sql.Row) (*intel.Briefing, error) {
	var payload string
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	var b intel.Briefing
	if err := json.Unmarshal([]byte(payload), &b); err != nil {
		return nil, fmt.Errorf("decoding briefing: %w", err)
	}
	return &b, nil
}
