package reporting

import (
	"fmt"
	"math"
	"strings"

	"trendline-lab/internal/domain"
)

// RenderSessionsCSV renders session rows as CSV string.
func RenderSessionsCSV(rows []SessionRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("instrument,session_id,entries,degenerate_entries,first_timestamp_ms,last_timestamp_ms,window_origin,")
	sb.WriteString("last_price,last_fitted_value,last_slope,last_half_window_slope,")
	sb.WriteString("slope_mean,slope_median,slope_p10,slope_p90,slope_stddev,slope_max_negative_run\n")

	// Rows
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%d,%d,%d,%d,%s,%s,%s,%s,%s,%s,%s,%s,%s,%d\n",
			r.Instrument,
			r.SessionID,
			r.Entries,
			r.DegenerateEntries,
			r.FirstTimestampMs,
			r.LastTimestampMs,
			r.WindowOrigin,
			csvFloat(r.LastPrice),
			csvFloat(r.LastFittedValue),
			csvFloat(r.LastSlope),
			csvFloat(r.LastHalfWindowSlope),
			csvFloat(r.Slope.Mean),
			csvFloat(r.Slope.Median),
			csvFloat(r.Slope.P10),
			csvFloat(r.Slope.P90),
			csvFloat(r.Slope.Stddev),
			r.Slope.MaxNegativeRun,
		))
	}

	return sb.String()
}

// RenderEntriesCSV renders entry records as CSV string. Non-finite values are left empty.
func RenderEntriesCSV(records []*domain.EntryRecord) string {
	var sb strings.Builder

	sb.WriteString("session_id,seq,instrument,timestamp_ms,window_origin,price,")
	sb.WriteString("intercept,slope,fitted_value,absolute_intercept,half_window_slope\n")

	for _, r := range records {
		e := r.Entry
		sb.WriteString(fmt.Sprintf("%s,%d,%s,%d,%d,%s,%s,%s,%s,%s,%s\n",
			r.SessionID,
			r.Seq,
			e.Instrument,
			e.TimestampMs,
			e.WindowOrigin,
			csvFloat(e.Price),
			csvFloat(e.Intercept),
			csvFloat(e.Slope),
			csvFloat(e.FittedValue),
			csvFloat(e.AbsoluteIntercept),
			csvFloat(e.HalfWindowSlope),
		))
	}

	return sb.String()
}

func csvFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return fmt.Sprintf("%.10g", v)
}
