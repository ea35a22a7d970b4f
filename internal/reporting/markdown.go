package reporting

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Trendline Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Window length: %s\n\n", time.Duration(r.WindowLengthMs)*time.Millisecond))

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Instruments | %d |\n", r.DataSummary.Instruments))
	sb.WriteString(fmt.Sprintf("| Sessions | %d |\n", r.DataSummary.Sessions))
	sb.WriteString(fmt.Sprintf("| Total Entries | %d |\n", r.DataSummary.TotalEntries))
	sb.WriteString(fmt.Sprintf("| Degenerate Entries | %d |\n", r.DataSummary.DegenerateEntries))
	sb.WriteString(fmt.Sprintf("| Date Range Start (ms) | %d |\n", r.DataSummary.DateRangeStart))
	sb.WriteString(fmt.Sprintf("| Date Range End (ms) | %d |\n", r.DataSummary.DateRangeEnd))
	sb.WriteString("\n")

	// Sessions
	sb.WriteString("## Sessions\n\n")
	if len(r.Sessions) > 0 {
		sb.WriteString("| Instrument | Session | Entries | Degenerate | First (ms) | Last (ms) | Last Price | Fitted | Slope | Half-Window Slope | Mean Slope | Median Slope | P10 | P90 | Max Down Run |\n")
		sb.WriteString("|------------|---------|---------|------------|------------|-----------|------------|--------|-------|-------------------|------------|--------------|-----|-----|--------------|\n")
		for _, s := range r.Sessions {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %d | %d | %s | %s | %s | %s | %s | %s | %s | %s | %d |\n",
				s.Instrument, s.SessionID, s.Entries, s.DegenerateEntries,
				s.FirstTimestampMs, s.LastTimestampMs,
				formatFloat(s.LastPrice), formatFloat(s.LastFittedValue), formatFloat(s.LastSlope),
				formatFloat(s.LastHalfWindowSlope), formatFloat(s.Slope.Mean), formatFloat(s.Slope.Median),
				formatFloat(s.Slope.P10), formatFloat(s.Slope.P90), s.Slope.MaxNegativeRun))
		}
	} else {
		sb.WriteString("No sessions in range.\n")
	}
	sb.WriteString("\n")

	// Verification
	if v := r.Verification; v != nil {
		sb.WriteString("## Replay Verification\n\n")
		sb.WriteString(fmt.Sprintf("Entries: %d | Matched: %d | Divergent: %d\n\n",
			v.TotalEntries, v.MatchedEntries, v.DivergentEntries))
		if v.Match() {
			sb.WriteString("**All entries reproduced.**\n\n")
		} else {
			sb.WriteString("| Session | Seq | Field | Stored | Replayed |\n")
			sb.WriteString("|---------|-----|-------|--------|----------|\n")
			for _, res := range v.Results {
				for _, d := range res.Divergences {
					sb.WriteString(fmt.Sprintf("| %s | %d | %s | %v | %v |\n",
						res.SessionID, res.Seq, d.Field, d.Expected, d.Actual))
				}
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.6g", v)
}
