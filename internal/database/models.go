package database

// WatchedEntity is a user-tracked entity whose activity feeds entity
// highlights and the relationship graph.
type WatchedEntity struct {
	ID         int64
	Owner      string
	Name       string
	EntityType *string
	Keywords   []string
	IsActive   bool
	CreatedAt  *string
	UpdatedAt  *string
}

// BriefingSummary is the indexed metadata of an archived briefing,
// returned by list queries without the full JSON payload.
type BriefingSummary struct {
	ID          string
	Owner       string
	Title       string
	PeriodStart string
	PeriodEnd   string
	GeneratedAt string
	TotalItems  int
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalItems    int
	SourceTypes   int
	Briefings     int
	TotalWatched  int
	ActiveWatched int
	Relationships int
}
