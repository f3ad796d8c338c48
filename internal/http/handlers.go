package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"powertrust/internal/amqp"
	"powertrust/internal/chart"
	"powertrust/internal/core"
	"powertrust/internal/export"
	"powertrust/internal/log"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			log.FieldComponent, log.ComponentTemplate)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	v, err := ParseViewParam(q)
	if err != nil {
		s.logger.WarnContext(r.Context(), "Unknown view, using default", log.FieldView, q.Get(paramView))
		v = core.AllViews()[0]
	}
	f := s.filtersFrom(r.Context(), q)
	vm := s.viewModel(r.Context(), v, f)

	selected := func(list []string) map[string]bool {
		m := make(map[string]bool, len(list))
		for _, x := range list {
			m[x] = true
		}
		return m
	}
	years := make(map[int]bool, len(f.Years))
	for _, y := range f.Years {
		years[y] = true
	}
	views := make([]viewOption, 0, len(core.AllViews()))
	for _, opt := range core.AllViews() {
		views = append(views, viewOption{Slug: opt.Slug(), Label: opt.Label(), Selected: opt == v})
	}

	data := struct {
		Views              []viewOption
		Options            core.FilterOptions
		SelectedCountries  map[string]bool
		SelectedDevelopers map[string]bool
		SelectedYears      map[int]bool
		View               viewData
		Source             string
		LoadedAt           string
		RawLimit           int
	}{
		Views:              views,
		Options:            s.data.Options(),
		SelectedCountries:  selected(f.Countries),
		SelectedDevelopers: selected(f.Developers),
		SelectedYears:      years,
		View:               buildViewData(vm, s.exports != nil),
		Source:             s.data.Source(),
		LoadedAt:           s.data.LoadedAt().Format(time.RFC3339),
		RawLimit:           s.rawRowsLimit,
	}
	s.render(w, r, "index.html", data)
}

// handleViewPartial renders the KPI row, chart and aggregate table for the
// current selection.
func (s *Server) handleViewPartial(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	v, err := ParseViewParam(q)
	if err != nil {
		s.badView(w, r, err)
		return
	}
	vm := s.viewModel(r.Context(), v, s.filtersFrom(r.Context(), q))
	s.render(w, r, "view.html", buildViewData(vm, s.exports != nil))
}

// handleRawPartial renders the full, unfiltered table up to the row limit.
func (s *Server) handleRawPartial(w http.ResponseWriter, r *http.Request) {
	t := s.data.Table()
	limit := ParseLimit(r.URL.Query(), s.rawRowsLimit, s.rawRowsLimit)
	rows := buildRawRows(t.Records(), limit)
	s.render(w, r, "raw.html", struct {
		Rows  []rawRow
		Shown int
		Total int
	}{Rows: rows, Shown: len(rows), Total: t.Len()})
}

func (s *Server) handleAPIView(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	v, err := ParseViewParam(q)
	if err != nil {
		_ = writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	vm := s.viewModel(r.Context(), v, s.filtersFrom(r.Context(), q))
	if err := writeJSON(w, http.StatusOK, vm); err != nil {
		s.structured.LogError(r.Context(), "Failed to encode view model", err, log.ComponentHTTP, log.OpRender,
			log.NewFields().WithView(v.Slug(), vm.Filters.Key(), vm.Summary.TotalKWh, vm.Summary.Projects))
	}
}

func (s *Server) handleAPIOptions(w http.ResponseWriter, r *http.Request) {
	_ = writeJSON(w, http.StatusOK, s.data.Options())
}

// handleChart serves /charts/{view}.png for the filters in the query string.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	slug, ok := strings.CutSuffix(file, ".png")
	if !ok {
		http.NotFound(w, r)
		return
	}
	v, err := core.ParseView(slug)
	if err != nil {
		s.badView(w, r, err)
		return
	}
	f := s.filtersFrom(r.Context(), r.URL.Query())
	key := v.Slug() + "|" + f.Key()

	png, hit := s.chartCache.Get(key)
	if !hit {
		vm := s.viewModel(r.Context(), v, f)
		var buf bytes.Buffer
		if err := s.charts.Render(&buf, vm); err != nil {
			if errors.Is(err, chart.ErrNoData) {
				http.Error(w, "no data for the selected filters", http.StatusNotFound)
				return
			}
			s.structured.LogError(r.Context(), "Chart render failed", err, log.ComponentChart, log.OpRender,
				log.NewFields().WithView(v.Slug(), f.Key(), vm.Summary.TotalKWh, vm.Summary.Projects))
			http.Error(w, "chart render failed", http.StatusInternalServerError)
			return
		}
		png = buf.Bytes()
		s.chartCache.Set(key, png)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// handleCreateExport queues an export of one view, or all of them, for the
// worker.
func (s *Server) handleCreateExport(w http.ResponseWriter, r *http.Request) {
	if s.exports == nil {
		s.exportResponse(w, r, http.StatusServiceUnavailable, "", "Exports are disabled")
		return
	}
	if err := r.ParseForm(); err != nil {
		s.exportResponse(w, r, http.StatusBadRequest, "", "Invalid request format")
		return
	}

	view := strings.TrimSpace(r.Form.Get(paramView))
	if view == "" {
		view = amqp.AllViews
	}
	if view != amqp.AllViews {
		v, err := core.ParseView(view)
		if err != nil {
			s.exportResponse(w, r, http.StatusBadRequest, "", "Unknown view")
			return
		}
		view = v.Slug()
	}
	f := s.filtersFrom(r.Context(), r.Form)

	req := amqp.NewExportRequest(export.NewID(), view, f)
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.exports.PublishExportRequest(ctx, req); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, amqp.ErrCircuitOpen) {
			status = http.StatusServiceUnavailable
		}
		s.structured.LogError(r.Context(), "Failed to queue export", err, log.ComponentAMQP, log.OpExport,
			log.NewFields().WithView(view, f.Key(), 0, 0))
		s.exportResponse(w, r, status, req.ID, "Could not queue export")
		return
	}

	s.logger.InfoContext(r.Context(), "Export queued",
		"export_id", req.ID,
		log.FieldView, view,
		log.FieldFilters, f.Key())
	s.exportResponse(w, r, http.StatusAccepted, req.ID, "Export queued")
}

func (s *Server) exportResponse(w http.ResponseWriter, r *http.Request, status int, id, msg string) {
	if isHTMX(r) {
		class := "success"
		if status >= 400 {
			class = "error"
		}
		text := msg
		if id != "" {
			text += " (" + id + ")"
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`<div class="` + class + `">` + template.HTMLEscapeString(text) + `</div>`))
		return
	}
	body := map[string]string{"message": msg}
	if id != "" {
		body["id"] = id
	}
	if status >= 400 {
		body["error"] = msg
	}
	_ = writeJSON(w, status, body)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.clientIP.Extract(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	s.exportResponse(w, r, http.StatusTooManyRequests, "", "Rate limit exceeded. Please try again later.")
}

// handleHealth performs basic liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).String(),
	})
}

// handleReady reports ready once templates are parsed and the dataset is loaded.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.data == nil || s.data.Table() == nil {
		checks["dataset"] = "not_loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["dataset"] = map[string]any{
			"source":    s.data.Source(),
			"records":   s.data.Table().Len(),
			"loaded_at": s.data.LoadedAt().Format(time.RFC3339),
		}
	}

	if s.exports != nil {
		checks["exports"] = "enabled"
	} else {
		checks["exports"] = "disabled"
	}

	_ = writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application metrics in plain text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.tracer.Metrics()
	limitStats := s.limiter.Stats()
	views := s.viewCache.Stats()
	charts := s.chartCache.Stats()
	records := 0
	if s.data != nil && s.data.Table() != nil {
		records = s.data.Table().Len()
	}

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_server_errors_total Responses with a 5xx status\n")
	fmt.Fprintf(w, "# TYPE http_server_errors_total counter\n")
	fmt.Fprintf(w, "http_server_errors_total %d\n\n", traceMetrics.ServerErrors)

	fmt.Fprintf(w, "# HELP dataset_records Rows in the loaded dataset\n")
	fmt.Fprintf(w, "# TYPE dataset_records gauge\n")
	fmt.Fprintf(w, "dataset_records %d\n\n", records)

	fmt.Fprintf(w, "# HELP cache_hits_total Total cache hits\n")
	fmt.Fprintf(w, "# TYPE cache_hits_total counter\n")
	fmt.Fprintf(w, "cache_hits_total{type=\"view\"} %d\n", views.Hits)
	fmt.Fprintf(w, "cache_hits_total{type=\"chart\"} %d\n\n", charts.Hits)

	fmt.Fprintf(w, "# HELP cache_misses_total Total cache misses\n")
	fmt.Fprintf(w, "# TYPE cache_misses_total counter\n")
	fmt.Fprintf(w, "cache_misses_total{type=\"view\"} %d\n", views.Misses)
	fmt.Fprintf(w, "cache_misses_total{type=\"chart\"} %d\n\n", charts.Misses)

	fmt.Fprintf(w, "# HELP cache_entries Current cache entries\n")
	fmt.Fprintf(w, "# TYPE cache_entries gauge\n")
	fmt.Fprintf(w, "cache_entries{type=\"view\"} %d\n", views.Size)
	fmt.Fprintf(w, "cache_entries{type=\"chart\"} %d\n\n", charts.Size)

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Requests rejected by the export rate limit\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", limitStats.Rejected)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", limitStats.ActiveClients)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.startedAt).Seconds())
}

// filtersFrom parses the filters and warns about ignored values.
func (s *Server) filtersFrom(ctx context.Context, values url.Values) core.Filters {
	f, invalid := ParseFilters(values)
	if len(invalid) > 0 {
		s.logger.WarnContext(ctx, "Ignoring invalid year filter values", "values", invalid)
	}
	return f
}

func (s *Server) badView(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.WarnContext(r.Context(), "Unknown view requested", log.FieldError, err, log.FieldPath, r.URL.Path)
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed", log.FieldError, err, "template", name)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
