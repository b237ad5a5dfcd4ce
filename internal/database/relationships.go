package database

import (
	"context"

	"github.com/civicscope/civicscope/internal/graph"
)

// RelationshipsForOwner returns all stored relationships for an owner.
// Satisfies graph.Store.
func (db *DB) RelationshipsForOwner(ctx context.Context, owner string) ([]graph.Relationship, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT source, target, kind, weight FROM relationships WHERE owner = ? ORDER BY id`,
		owner,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rels []graph.Relationship
	for rows.Next() {
		var r graph.Relationship
		if err := rows.Scan(&r.Source, &r.Target, &r.Kind, &r.Weight); err != nil {
			return nil, err
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

// InsertRelationship stores one relationship for an owner. Satisfies
// graph.Store.
func (db *DB) InsertRelationship(ctx context.Context, owner string, rel graph.Relationship) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO relationships (owner, source, target, kind, weight) VALUES (?, ?, ?, ?, ?)`,
		owner, rel.Source, rel.Target, rel.Kind, rel.Weight,
	)
	return err
}
