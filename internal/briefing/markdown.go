package briefing

import (
	"fmt"
	"strings"

	"github.com/civicscope/civicscope/internal/intel"
)

// RenderMarkdown renders an assembled briefing as a markdown document:
// alerts first, then the executive summary, sections in tier order, and
// entity highlights.
func RenderMarkdown(b *intel.Briefing) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", b.Title)

	if len(b.PatternAlerts) > 0 {
		sb.WriteString("## Pattern Alerts\n\n")
		for _, a := range b.PatternAlerts {
			entity := ""
			if a.Entity != "" {
				entity = " (" + a.Entity + ")"
			}
			fmt.Fprintf(&sb, "- **%s/%s**%s: %s\n", a.PatternType, a.Severity, entity, a.Description)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Executive Summary\n\n")
	sb.WriteString(b.ExecutiveSummary)
	sb.WriteString("\n")

	for _, sec := range b.Sections {
		fmt.Fprintf(&sb, "\n## Tier %d: %s (%d items)\n\n", sec.Tier, sec.Name, sec.ItemCount)
		if sec.Synthesis != "" {
			sb.WriteString(sec.Synthesis)
			sb.WriteString("\n")
		}
		for _, ti := range sec.Items {
			fmt.Fprintf(&sb, "\n- [%s](%s) - %s", ti.Item.Title, ti.Item.URL, ti.Item.SourceName)
			if ti.Analysis != nil && ti.Analysis.WhatHappened != "" && ti.Analysis.WhatHappened != "Analysis unavailable" {
				fmt.Fprintf(&sb, "\n  - So what: %s %s", ti.Analysis.WhyItMatters, ti.Analysis.WhatNext)
				for _, action := range ti.Analysis.ActionItems {
					fmt.Fprintf(&sb, "\n  - Action: %s", action)
				}
			}
		}
		sb.WriteString("\n")
	}

	if len(b.EntityHighlights) > 0 {
		sb.WriteString("\n## Entity Highlights\n\n")
		for _, h := range b.EntityHighlights {
			fmt.Fprintf(&sb, "- %s (%s): %d mentions, %s\n", h.Name, h.EntityType, h.MentionCount, h.Trend)
		}
	}

	fmt.Fprintf(&sb, "\n---\n%d items analyzed for %s to %s.\n",
		b.TotalItemsAnalyzed,
		b.PeriodStart.Format("2006-01-02"),
		b.PeriodEnd.Format("2006-01-02"))

	return sb.String()
}
