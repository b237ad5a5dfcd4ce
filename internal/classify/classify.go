// Package classify maps a collected item to a priority tier using a fixed
// rule order. Classification is pure and deterministic: no I/O, no clock.
package classify

import (
	"strings"

	"github.com/civicscope/civicscope/internal/intel"
)

// Words that force tier 1 when they appear in the title or content.
var escalationKeywords = []string{
	"attack", "strike", "casualties", "mobilization", "invasion",
	"airstrike", "offensive", "shelling", "troops deployed", "state of emergency",
	"evacuation order", "armed clash",
}

// Airsoft and milsim coverage reuses military vocabulary ("strike",
// "assault", "loadout") and must never be escalated. Exclusion is checked
// before every other rule and is absolute.
var (
	excludedSourceTypes = map[string]bool{
		"hobby_forum": true,
	}
	excludedCategories = map[string]bool{
		"airsoft":   true,
		"milsim":    true,
		"paintball": true,
	}
	excludedKeywords = []string{
		"airsoft", "milsim", "paintball", "skirmish day", "bb loadout",
		"gel blaster", "speedsoft",
	}
)

// categoryTiers maps known topic categories to tiers. First matching
// category in the item's ordered list wins.
var categoryTiers = map[string]intel.Tier{
	"conflict":         intel.TierActionable,
	"security":         intel.TierActionable,
	"public_safety":    intel.TierActionable,
	"local_government": intel.TierPriority,
	"zoning":           intel.TierPriority,
	"infrastructure":   intel.TierPriority,
	"permits":          intel.TierPriority,
	"economy":          intel.TierBackground,
	"education":        intel.TierBackground,
	"environment":      intel.TierBackground,
	"culture":          intel.TierBackground,
	"filings":          intel.TierMonitor,
	"procurement":      intel.TierMonitor,
}

// topicOrder fixes the scan order for the title keyword fallback so the
// result never depends on map iteration.
var topicOrder = []string{
	"conflict", "security", "public_safety",
	"local_government", "zoning", "infrastructure", "permits",
	"economy", "education", "environment", "culture",
	"filings", "procurement",
}

// sourceTypeTiers is the fallback mapping from collector source type.
var sourceTypeTiers = map[string]intel.Tier{
	"geopolitical":      intel.TierActionable,
	"local_gov":         intel.TierPriority,
	"news":              intel.TierPriority,
	"rss":               intel.TierPriority,
	"academic":          intel.TierBackground,
	"financial_filings": intel.TierMonitor,
}

// Classify assigns a tier to one item. Rule order is load-bearing:
//  1. hard exclusion (hobby domain) forces tier 4 and stops
//  2. escalation keyword in title+content forces tier 1
//  3. first known category's mapped tier
//  4. source-type fallback
//  5. title keyword scan against the category table
//  6. default tier 3
func Classify(item intel.CollectedItem) intel.Tier {
	if isExcluded(item) {
		return intel.TierMonitor
	}

	text := strings.ToLower(item.Title + " " + item.Content)
	for _, kw := range escalationKeywords {
		if strings.Contains(text, kw) {
			return intel.TierActionable
		}
	}

	for _, cat := range item.Categories {
		if tier, ok := categoryTiers[strings.ToLower(cat)]; ok {
			return tier
		}
	}

	if tier, ok := sourceTypeTiers[strings.ToLower(item.SourceType)]; ok {
		return tier
	}

	title := strings.ToLower(item.Title)
	for _, topic := range topicOrder {
		if strings.Contains(title, strings.ReplaceAll(topic, "_", " ")) {
			return categoryTiers[topic]
		}
	}

	return intel.TierBackground
}

func isExcluded(item intel.CollectedItem) bool {
	if excludedSourceTypes[strings.ToLower(item.SourceType)] {
		return true
	}
	for _, cat := range item.Categories {
		if excludedCategories[strings.ToLower(cat)] {
			return true
		}
	}
	haystack := strings.ToLower(item.Title + " " + item.SourceName)
	for _, kw := range excludedKeywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}
