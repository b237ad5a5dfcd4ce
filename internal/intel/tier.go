package intel

// Tier is a priority bucket assigned to each collected item.
// Rank 1 is the most urgent; 4 is routine monitoring.
type Tier int

const (
	TierActionable Tier = 1
	TierPriority   Tier = 2
	TierBackground Tier = 3
	TierMonitor    Tier = 4
)

// Tiers lists all tiers in display order (most urgent first).
var Tiers = []Tier{TierActionable, TierPriority, TierBackground, TierMonitor}

// Name returns the display name of the tier.
func (t Tier) Name() string {
	switch t {
	case TierActionable:
		return "Actionable"
	case TierPriority:
		return "Priority"
	case TierBackground:
		return "Background"
	case TierMonitor:
		return "Monitor"
	}
	return "Unknown"
}

// Valid reports whether t is one of the four defined tiers.
func (t Tier) Valid() bool {
	return t >= TierActionable && t <= TierMonitor
}
