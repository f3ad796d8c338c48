package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"powertrust/internal/amqp"
	"powertrust/internal/core"
	"powertrust/internal/dataset"
	"powertrust/internal/middleware/ratelimit"
)

func record(site, country, dev string, year int, month time.Month, value float64, certified string) core.GenerationRecord {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return core.NewRecord(core.GenerationRecord{
		SiteID:      site,
		Country:     country,
		DevName:     dev,
		SMRStartDt:  start,
		SMREndDt:    start.AddDate(0, 1, -1),
		ValueKWh:    value,
		CapacityKW:  value / 4,
		IsCertified: certified,
	})
}

func testHandle() *dataset.Handle {
	return dataset.NewHandle(core.NewTable([]core.GenerationRecord{
		record("S1", "India", "Dev A", 2022, time.January, 1000, "True"),
		record("S2", "India", "Dev B", 2022, time.March, 2500.5, "False"),
		record("S3", "Kenya", "Dev A", 2023, time.January, 400, "True"),
		record("S1", "India", "Dev A", 2023, time.February, 600, "True"),
	}), "test")
}

type fakeQueue struct {
	mu   sync.Mutex
	reqs []*amqp.ExportRequest
	err  error
}

func (q *fakeQueue) PublishExportRequest(_ context.Context, req *amqp.ExportRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.reqs = append(q.reqs, req)
	return nil
}

func newTestServer(t *testing.T, queue ExportQueue) *Server {
	t.Helper()
	opts := Options{Addr: ":0", Data: testHandle(), RawRowsLimit: 3, ChartWidth: 640, ChartHeight: 400}
	if queue != nil {
		opts.Exports = queue
	}
	srv := NewServer(opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func serve(srv *Server, method, target string, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestIndexAndHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := serve(srv, http.MethodGet, "/", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{
		"Powertrust Dashboard",
		"Select Visualization",
		"Value (KWh) by Country",
		`<option value="Kenya"`,
		"Total Value (KWh)",
		"4,500.50",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Error("security headers not applied")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("request id not echoed")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := serve(srv, http.MethodGet, path, "", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestIndexMarksSelectedFilters(t *testing.T) {
	srv := newTestServer(t, nil)
	rr := serve(srv, http.MethodGet, "/?view=monthly&country=Kenya&year=2023", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `<option value="monthly" selected>`) {
		t.Error("view option not selected")
	}
	if !strings.Contains(body, `<option value="Kenya" selected>`) {
		t.Error("country option not selected")
	}
	if !strings.Contains(body, "400.00") {
		t.Error("KPI for Kenya 2023 not rendered")
	}
}

func TestViewPartial(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := serve(srv, http.MethodGet, "/ui/view?view=country&country=India", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Value (KWh) Energy Generation by Country") {
		t.Error("subheader missing")
	}
	if !strings.Contains(body, "4,100.50") {
		t.Errorf("India total missing: %s", body)
	}
	if strings.Contains(body, "<td>Kenya</td>") {
		t.Error("country filter leaked Kenya into the table")
	}
	if !strings.Contains(body, "/charts/country.png?country=India") {
		t.Error("chart link does not carry the filters")
	}
	if strings.Contains(body, "Export chart") {
		t.Error("export form shown without a queue")
	}
}

func TestViewPartialMonthDeveloperGrid(t *testing.T) {
	srv := newTestServer(t, nil)
	rr := serve(srv, http.MethodGet, "/ui/view?view=month-developer", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	jan := strings.Index(body, "<th>January</th>")
	dec := strings.Index(body, "<th>December</th>")
	if jan < 0 || dec < 0 || jan > dec {
		t.Error("grid rows missing or out of calendar order")
	}
}

func TestViewPartialEmptySelection(t *testing.T) {
	srv := newTestServer(t, nil)
	rr := serve(srv, http.MethodGet, "/ui/view?view=developer&country=Brazil", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "No rows match") {
		t.Error("empty selection placeholder missing")
	}
}

func TestUnknownViewIsBadRequest(t *testing.T) {
	srv := newTestServer(t, nil)
	for _, target := range []string{"/ui/view?view=pie", "/api/view?view=pie", "/charts/pie.png"} {
		rr := serve(srv, http.MethodGet, target, "", nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s status=%d, want 400", target, rr.Code)
		}
	}
}

func TestInvalidYearIsIgnored(t *testing.T) {
	srv := newTestServer(t, nil)
	rr := serve(srv, http.MethodGet, "/api/view?view=country&year=abc", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var vm core.ViewModel
	if err := json.Unmarshal(rr.Body.Bytes(), &vm); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if vm.Summary.Records != 4 {
		t.Errorf("records = %d, want all 4", vm.Summary.Records)
	}
}

func TestAPIView(t *testing.T) {
	srv := newTestServer(t, nil)
	rr := serve(srv, http.MethodGet, "/api/view?view=monthly&developer=Dev+A", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var vm core.ViewModel
	if err := json.Unmarshal(rr.Body.Bytes(), &vm); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if vm.View != core.ViewMonthly {
		t.Errorf("view = %v", vm.View)
	}
	labels := make([]string, len(vm.Monthly))
	for i, m := range vm.Monthly {
		labels[i] = m.Label
	}
	want := "2022-January,2023-January,2023-February"
	if strings.Join(labels, ",") != want {
		t.Errorf("labels = %v, want %s", labels, want)
	}
	if vm.Summary.Projects != 2 {
		t.Errorf("projects = %d, want 2", vm.Summary.Projects)
	}

	// The certification view carries per-row points; must encode.
	rr = serve(srv, http.MethodGet, "/api/view?view=certification", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("certification status=%d", rr.Code)
	}
}

func TestAPIOptions(t *testing.T) {
	srv := newTestServer(t, nil)
	rr := serve(srv, http.MethodGet, "/api/options", "", nil)
	var opts core.FilterOptions
	if err := json.Unmarshal(rr.Body.Bytes(), &opts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if strings.Join(opts.Countries, ",") != "India,Kenya" {
		t.Errorf("countries = %v", opts.Countries)
	}
	if len(opts.Years) != 2 || opts.Years[0] != 2022 {
		t.Errorf("years = %v", opts.Years)
	}
}

func TestRawPartialShowsUnfilteredTable(t *testing.T) {
	srv := newTestServer(t, nil)
	rr := serve(srv, http.MethodGet, "/ui/raw?country=Kenya", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Showing 3 of 4 rows") {
		t.Errorf("row cap not applied: %s", body)
	}
	if !strings.Contains(body, "<td>India</td>") {
		t.Error("raw table was filtered")
	}

	rr = serve(srv, http.MethodGet, "/ui/raw?limit=1", "", nil)
	if !strings.Contains(rr.Body.String(), "Showing 1 of 4 rows") {
		t.Error("limit parameter ignored")
	}
}

func TestChartPNG(t *testing.T) {
	srv := newTestServer(t, nil)
	for _, v := range core.AllViews() {
		rr := serve(srv, http.MethodGet, "/charts/"+v.Slug()+".png", "", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", v.Slug(), rr.Code, rr.Body.String())
		}
		if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("%s content type = %q", v.Slug(), ct)
		}
		if !bytes.HasPrefix(rr.Body.Bytes(), []byte("\x89PNG")) {
			t.Errorf("%s body is not a PNG", v.Slug())
		}
	}

	// Second request is served from the chart cache.
	serve(srv, http.MethodGet, "/charts/country.png", "", nil)
	if srv.chartCache.Stats().Hits == 0 {
		t.Error("chart cache not used")
	}
}

func TestChartSingleMonthSelection(t *testing.T) {
	srv := newTestServer(t, nil)
	for _, target := range []string{
		"/charts/monthly.png?year=2022&developer=Dev+A",
		"/charts/month-developer.png?year=2022&developer=Dev+A",
		"/charts/certification.png?country=Kenya",
	} {
		rr := serve(srv, http.MethodGet, target, "", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", target, rr.Code, rr.Body.String())
		}
		if !bytes.HasPrefix(rr.Body.Bytes(), []byte("\x89PNG")) {
			t.Errorf("%s body is not a PNG", target)
		}
	}
}

func TestChartNoData(t *testing.T) {
	srv := newTestServer(t, nil)
	rr := serve(srv, http.MethodGet, "/charts/country.png?country=Brazil", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status=%d, want 404", rr.Code)
	}
	rr = serve(srv, http.MethodGet, "/charts/country.svg", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("non-png status=%d, want 404", rr.Code)
	}
}

func TestViewModelCache(t *testing.T) {
	srv := newTestServer(t, nil)
	serve(srv, http.MethodGet, "/api/view?view=country&country=India&country=Kenya", "", nil)
	serve(srv, http.MethodGet, "/api/view?view=country&country=Kenya&country=India", "", nil)
	stats := srv.viewCache.Stats()
	if stats.Hits != 1 || stats.Size != 1 {
		t.Errorf("cache stats = %+v, want one entry hit once", stats)
	}
}

func TestCreateExportDisabled(t *testing.T) {
	srv := newTestServer(t, nil)
	rr := serve(srv, http.MethodPost, "/exports", "view=country", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503", rr.Code)
	}
}

func TestCreateExport(t *testing.T) {
	q := &fakeQueue{}
	srv := newTestServer(t, q)

	rr := serve(srv, http.MethodPost, "/exports", "view=monthly&country=India&year=2022", nil)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(q.reqs) != 1 {
		t.Fatalf("queued %d requests, want 1", len(q.reqs))
	}
	got := q.reqs[0]
	if got.ID != resp["id"] || got.View != "monthly" {
		t.Errorf("request = %+v, response = %v", got, resp)
	}
	if len(got.Filters.Countries) != 1 || len(got.Filters.Years) != 1 {
		t.Errorf("filters = %+v", got.Filters)
	}

	rr = serve(srv, http.MethodPost, "/exports", "", map[string]string{"HX-Request": "true"})
	if rr.Code != http.StatusAccepted || !strings.Contains(rr.Body.String(), "Export queued") {
		t.Errorf("htmx export status=%d body=%s", rr.Code, rr.Body.String())
	}
	if q.reqs[1].View != amqp.AllViews {
		t.Errorf("default view = %q, want all", q.reqs[1].View)
	}

	rr = serve(srv, http.MethodPost, "/exports", "view=pie", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown view status=%d", rr.Code)
	}
}

func TestCreateExportQueueFailure(t *testing.T) {
	srv := newTestServer(t, &fakeQueue{err: amqp.ErrCircuitOpen})
	rr := serve(srv, http.MethodPost, "/exports", "view=country", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("circuit open status=%d, want 503", rr.Code)
	}

	srv = newTestServer(t, &fakeQueue{err: errors.New("boom")})
	rr = serve(srv, http.MethodPost, "/exports", "view=country", nil)
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("publish error status=%d, want 500", rr.Code)
	}
}

func TestCreateExportRateLimited(t *testing.T) {
	srv := NewServer(Options{
		Data:      testHandle(),
		Exports:   &fakeQueue{},
		RateLimit: ratelimit.Config{Requests: 1, Window: time.Minute, CleanupInterval: time.Minute},
	})
	defer srv.Shutdown(context.Background())

	if rr := serve(srv, http.MethodPost, "/exports", "view=country", nil); rr.Code != http.StatusAccepted {
		t.Fatalf("first status=%d", rr.Code)
	}
	rr := serve(srv, http.MethodPost, "/exports", "view=country", nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second status=%d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rr.Header().Get("Retry-After"))
	}
	// Reads are not rate limited.
	if rr := serve(srv, http.MethodGet, "/api/options", "", nil); rr.Code != http.StatusOK {
		t.Errorf("options status=%d", rr.Code)
	}
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t, nil)
	serve(srv, http.MethodGet, "/api/view", "", nil)
	rr := serve(srv, http.MethodGet, "/metrics", "", nil)
	body := rr.Body.String()
	for _, want := range []string{"http_requests_total", "dataset_records 4", `cache_entries{type="view"} 1`} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestStaticAssets(t *testing.T) {
	srv := newTestServer(t, nil)
	rr := serve(srv, http.MethodGet, "/static/app.css", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("Cache-Control"), "max-age=3600") {
		t.Errorf("Cache-Control = %q", rr.Header().Get("Cache-Control"))
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, nil)
	rr := serve(srv, http.MethodGet, "/exports", "", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /exports status=%d, want 405", rr.Code)
	}
}
