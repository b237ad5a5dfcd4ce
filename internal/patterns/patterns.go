// Package patterns finds statistically unusual shifts in a batch of
// collected items: category escalation, tracked-entity surges, sentiment
// shifts, geographic spread, and temporal clustering. Sub-detectors are
// independent and best-effort; one failing never stops the others.
package patterns

import (
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/civicscope/civicscope/internal/intel"
)

const DefaultWindowDays = 7

// Detector runs all sub-detectors over one immutable item batch.
type Detector struct {
	windowDays int
	now        func() time.Time
}

// NewDetector creates a detector. windowDays <= 0 selects the default.
func NewDetector(windowDays int) *Detector {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	return &Detector{windowDays: windowDays, now: time.Now}
}

// Detect analyzes items (and tracked entities, if any) and returns detected
// patterns ordered by severity (high first) then descending confidence.
func (d *Detector) Detect(items []intel.CollectedItem, tracked []string) []intel.DetectedPattern {
	var out []intel.DetectedPattern

	run := func(name string, fn func() []intel.DetectedPattern) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("pattern detector %s failed: %v", name, r)
			}
		}()
		out = append(out, fn()...)
	}

	run("escalation", func() []intel.DetectedPattern { return d.detectEscalation(items) })
	run("entity_surge", func() []intel.DetectedPattern { return d.detectEntitySurge(items, tracked) })
	run("sentiment_shift", func() []intel.DetectedPattern { return d.detectSentimentShift(items, tracked) })
	run("geographic_spread", func() []intel.DetectedPattern { return d.detectGeographicSpread(items) })
	run("temporal_clustering", func() []intel.DetectedPattern { return d.detectTemporalClustering(items) })
	run("network_growth", func() []intel.DetectedPattern { return d.detectNetworkGrowth(items) })

	sort.SliceStable(out, func(i, j int) bool {
		si, sj := severityRank(out[i].Severity), severityRank(out[j].Severity)
		if si != sj {
			return si < sj
		}
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

func severityRank(s string) int {
	switch s {
	case intel.SeverityHigh:
		return 0
	case intel.SeverityMedium:
		return 1
	default:
		return 2
	}
}

// splitWindows partitions items with usable timestamps into the current
// window [now-w, now] and the previous window [now-2w, now-w). Items whose
// timestamp is zero or outside both windows are dropped.
func (d *Detector) splitWindows(items []intel.CollectedItem) (current, previous []intel.CollectedItem) {
	now := d.now()
	winStart := now.AddDate(0, 0, -d.windowDays)
	prevStart := now.AddDate(0, 0, -2*d.windowDays)

	for _, it := range items {
		ts := it.Timestamp()
		if ts.IsZero() || ts.After(now) {
			continue
		}
		switch {
		case !ts.Before(winStart):
			current = append(current, it)
		case !ts.Before(prevStart):
			previous = append(previous, it)
		}
	}
	return current, previous
}

// --- escalation ---

const (
	escalationBaselineFloor = 3
	escalationMinRatio      = 1.5
)

func (d *Detector) detectEscalation(items []intel.CollectedItem) []intel.DetectedPattern {
	current, previous := d.splitWindows(items)

	curCounts := countByCategory(current)
	prevCounts := countByCategory(previous)

	var found []intel.DetectedPattern
	for _, cat := range sortedKeys(curCounts) {
		cur := curCounts[cat]
		prev := prevCounts[cat]
		if prev < escalationBaselineFloor {
			continue
		}
		ratio := float64(cur) / float64(prev)
		if ratio < escalationMinRatio {
			continue
		}

		severity := intel.SeverityLow
		if ratio >= 2.5 {
			severity = intel.SeverityHigh
		} else if ratio >= 2.0 {
			severity = intel.SeverityMedium
		}

		found = append(found, intel.DetectedPattern{
			PatternType: intel.PatternEscalation,
			Severity:    severity,
			Description: fmt.Sprintf("Activity in %q rose %.1fx week-over-week (%d vs %d items)", cat, ratio, cur, prev),
			Evidence: map[string]float64{
				"current_count":  float64(cur),
				"previous_count": float64(prev),
				"ratio":          ratio,
			},
			DetectionWindowDays: d.windowDays,
			Confidence:          math.Min(0.9, float64(cur)/10.0),
		})
	}
	return found
}

func countByCategory(items []intel.CollectedItem) map[string]int {
	counts := make(map[string]int)
	for _, it := range items {
		for _, cat := range it.Categories {
			counts[strings.ToLower(cat)]++
		}
	}
	return counts
}

// --- entity surge ---

const (
	surgeBaselineFloor = 2
	surgeMinRatio      = 3.0
)

func (d *Detector) detectEntitySurge(items []intel.CollectedItem, tracked []string) []intel.DetectedPattern {
	if len(tracked) == 0 {
		return nil
	}
	current, previous := d.splitWindows(items)

	var found []intel.DetectedPattern
	for _, entity := range tracked {
		cur := countMentions(current, entity)
		prev := countMentions(previous, entity)
		if prev < surgeBaselineFloor {
			continue
		}
		ratio := float64(cur) / float64(prev)
		if ratio < surgeMinRatio {
			continue
		}

		severity := intel.SeverityMedium
		if ratio >= 5.0 {
			severity = intel.SeverityHigh
		}

		found = append(found, intel.DetectedPattern{
			PatternType: intel.PatternEntitySurge,
			Severity:    severity,
			Entity:      entity,
			Description: fmt.Sprintf("Mentions of %s surged %.1fx (%d vs %d)", entity, ratio, cur, prev),
			Evidence: map[string]float64{
				"current_mentions":  float64(cur),
				"previous_mentions": float64(prev),
				"ratio":             ratio,
			},
			DetectionWindowDays: d.windowDays,
			Confidence:          math.Min(0.9, float64(cur)/10.0),
		})
	}
	return found
}

func mentions(it intel.CollectedItem, entity string) bool {
	needle := strings.ToLower(entity)
	return strings.Contains(strings.ToLower(it.Title), needle) ||
		strings.Contains(strings.ToLower(it.Content), needle) ||
		strings.Contains(strings.ToLower(it.Summary), needle)
}

func countMentions(items []intel.CollectedItem, entity string) int {
	n := 0
	for _, it := range items {
		if mentions(it, entity) {
			n++
		}
	}
	return n
}

// --- sentiment shift ---

const (
	sentimentMinSamples = 6
	sentimentMinShift   = 0.3
)

var positiveWords = []string{
	"approve", "approved", "improve", "growth", "success", "agreement",
	"progress", "support", "benefit", "resolved", "stable",
}

var negativeWords = []string{
	"reject", "rejected", "decline", "crisis", "failure", "dispute",
	"protest", "concern", "threat", "delay", "violation", "shortage",
}

func (d *Detector) detectSentimentShift(items []intel.CollectedItem, tracked []string) []intel.DetectedPattern {
	if len(tracked) == 0 {
		return nil
	}

	var found []intel.DetectedPattern
	for _, entity := range tracked {
		var matching []intel.CollectedItem
		for _, it := range items {
			if !it.Timestamp().IsZero() && mentions(it, entity) {
				matching = append(matching, it)
			}
		}
		if len(matching) < sentimentMinSamples {
			continue
		}

		sort.Slice(matching, func(i, j int) bool {
			return matching[i].Timestamp().Before(matching[j].Timestamp())
		})

		half := len(matching) / 2
		firstMean := meanSentiment(matching[:half])
		secondMean := meanSentiment(matching[half:])
		shift := secondMean - firstMean
		if math.Abs(shift) < sentimentMinShift {
			continue
		}

		severity := intel.SeverityMedium
		if math.Abs(shift) >= 0.5 {
			severity = intel.SeverityHigh
		}

		direction := "positive"
		if shift < 0 {
			direction = "negative"
		}

		found = append(found, intel.DetectedPattern{
			PatternType: intel.PatternSentimentShift,
			Severity:    severity,
			Entity:      entity,
			Description: fmt.Sprintf("Sentiment around %s shifted %s by %.2f over the period", entity, direction, math.Abs(shift)),
			Evidence: map[string]float64{
				"first_half_mean":  firstMean,
				"second_half_mean": secondMean,
				"shift":            shift,
				"samples":          float64(len(matching)),
			},
			DetectionWindowDays: d.windowDays,
			Confidence:          math.Min(0.9, 0.4+math.Abs(shift)),
		})
	}
	return found
}

func meanSentiment(items []intel.CollectedItem) float64 {
	if len(items) == 0 {
		return 0
	}
	var sum float64
	for _, it := range items {
		sum += itemSentiment(it)
	}
	return sum / float64(len(items))
}

// itemSentiment prefers an externally supplied tone score when it is
// present and non-zero; otherwise it falls back to a keyword-count
// heuristic normalized to [-1, 1].
func itemSentiment(it intel.CollectedItem) float64 {
	if tone, ok := it.Metadata["tone"]; ok {
		if v, err := strconv.ParseFloat(tone, 64); err == nil && v != 0 {
			return clamp(v, -1, 1)
		}
	}

	text := strings.ToLower(it.Title + " " + it.Content)
	var pos, neg int
	for _, w := range positiveWords {
		pos += strings.Count(text, w)
	}
	for _, w := range negativeWords {
		neg += strings.Count(text, w)
	}
	total := pos + neg
	if total == 0 {
		return 0
	}
	return clamp(float64(pos-neg)/float64(total), -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// --- geographic spread ---

const spreadMinNewLocations = 2

func (d *Detector) detectGeographicSpread(items []intel.CollectedItem) []intel.DetectedPattern {
	current, previous := d.splitWindows(items)

	curLocs := locationsByCategory(current)
	prevLocs := locationsByCategory(previous)

	var found []intel.DetectedPattern
	for _, cat := range sortedKeys(curLocs) {
		newLocs := 0
		for loc := range curLocs[cat] {
			if !prevLocs[cat][loc] {
				newLocs++
			}
		}
		if newLocs < spreadMinNewLocations {
			continue
		}

		severity := intel.SeverityMedium
		if newLocs >= 4 {
			severity = intel.SeverityHigh
		}

		found = append(found, intel.DetectedPattern{
			PatternType: intel.PatternGeographicSpread,
			Severity:    severity,
			Description: fmt.Sprintf("Activity in %q appeared in %d new locations this window", cat, newLocs),
			Evidence: map[string]float64{
				"new_locations":      float64(newLocs),
				"current_locations":  float64(len(curLocs[cat])),
				"previous_locations": float64(len(prevLocs[cat])),
			},
			DetectionWindowDays: d.windowDays,
			Confidence:          math.Min(0.9, 0.4+float64(newLocs)*0.1),
		})
	}
	return found
}

func locationsByCategory(items []intel.CollectedItem) map[string]map[string]bool {
	locs := make(map[string]map[string]bool)
	for _, it := range items {
		loc := it.Metadata["location"]
		if loc == "" {
			loc = it.Metadata["country"]
		}
		if loc == "" {
			continue
		}
		loc = strings.ToLower(loc)
		for _, cat := range it.Categories {
			cat = strings.ToLower(cat)
			if locs[cat] == nil {
				locs[cat] = make(map[string]bool)
			}
			locs[cat][loc] = true
		}
	}
	return locs
}

// --- temporal clustering ---

const (
	clusterMinBuckets  = 6
	clusterMinAbsolute = 10
	clusterStdevFactor = 2.5
)

func (d *Detector) detectTemporalClustering(items []intel.CollectedItem) []intel.DetectedPattern {
	buckets := make(map[time.Time]int)
	for _, it := range items {
		ts := it.Timestamp()
		if ts.IsZero() {
			continue
		}
		buckets[ts.Truncate(time.Hour)]++
	}
	if len(buckets) < clusterMinBuckets {
		return nil
	}

	var sum float64
	for _, n := range buckets {
		sum += float64(n)
	}
	mean := sum / float64(len(buckets))

	var variance float64
	for _, n := range buckets {
		variance += (float64(n) - mean) * (float64(n) - mean)
	}
	stdev := math.Sqrt(variance / float64(len(buckets)))
	threshold := mean + clusterStdevFactor*stdev

	var found []intel.DetectedPattern
	for _, hour := range sortedTimes(buckets) {
		n := buckets[hour]
		if float64(n) <= threshold || n < clusterMinAbsolute {
			continue
		}
		found = append(found, intel.DetectedPattern{
			PatternType: intel.PatternTemporalClustering,
			Severity:    intel.SeverityHigh,
			Description: fmt.Sprintf("Burst of %d items at %s (mean %.1f/hour)", n, hour.Format("2006-01-02 15:00"), mean),
			Evidence: map[string]float64{
				"bucket_count": float64(n),
				"mean":         mean,
				"stdev":        stdev,
			},
			DetectionWindowDays: d.windowDays,
			Confidence:          math.Min(0.9, float64(n)/(threshold+1)),
		})
	}
	return found
}

// --- network growth ---

// detectNetworkGrowth is a reserved extension point. It needs a
// relationship-history store the current data model does not carry, so it
// degrades to an empty result.
func (d *Detector) detectNetworkGrowth(_ []intel.CollectedItem) []intel.DetectedPattern {
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedTimes(m map[time.Time]int) []time.Time {
	keys := make([]time.Time, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}
