package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// handleErrorHistoryChart renders a quick line chart (HTML) of mean
// registration error over the persisted history using go-echarts.
// Debugging/operator endpoint: lets drift in registration quality be
// spotted without any separate UI.
// Query params:
//   - limit (optional; default 100) number of most recent records
func (s *Server) handleErrorHistoryChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Content-Type", "application/json")
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 10000 {
			limit = v
		}
	}

	records, err := s.db.ListRegistrations(limit)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list registrations: %v", err))
		return
	}
	if len(records) == 0 {
		w.Header().Set("Content-Type", "application/json")
		s.writeJSONError(w, http.StatusNotFound, "no registrations recorded")
		return
	}

	// ListRegistrations returns newest first; plot oldest to newest.
	x := make([]string, 0, len(records))
	y := make([]opts.LineData, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		x = append(x, rec.CreatedAt.Format("01-02 15:04:05"))
		y = append(y, opts.LineData{Value: rec.MeanError, Name: rec.PhantomName})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Registration Error History", Width: "1100px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Mean registration error",
			Subtitle: fmt.Sprintf("last %d registrations, newest right", len(records)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "mean error"}),
	)
	line.SetXAxis(x)
	line.AddSeries("mean error", y, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		w.Header().Set("Content-Type", "application/json")
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
