package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"powertrust/internal/amqp"
	"powertrust/internal/cache"
	"powertrust/internal/chart"
	"powertrust/internal/core"
	"powertrust/internal/log"
	"powertrust/internal/middleware/ratelimit"
	"powertrust/internal/middleware/security"
	"powertrust/internal/middleware/trace"
	appweb "powertrust/web"
)

// ViewSource is the read side of the dataset handle.
type ViewSource interface {
	Render(v core.View, f core.Filters) core.ViewModel
	Options() core.FilterOptions
	Table() *core.Table
	Source() string
	LoadedAt() time.Time
}

// ExportQueue accepts export jobs for the worker.
type ExportQueue interface {
	PublishExportRequest(ctx context.Context, req *amqp.ExportRequest) error
}

// Options configures NewServer. Data is required; a nil Exports disables
// POST /exports.
type Options struct {
	Addr    string
	Data    ViewSource
	Exports ExportQueue
	Logger  *log.Logger

	CacheSize    int
	CacheTTL     time.Duration
	RawRowsLimit int

	ChartWidth  int
	ChartHeight int

	RateLimit ratelimit.Config
}

type Server struct {
	http.Server
	templates *template.Template
	data      ViewSource
	exports   ExportQueue
	charts    chart.Renderer

	logger     *log.Logger
	structured *log.StructuredLogger

	viewCache    *cache.LRUCache[core.ViewModel]
	chartCache   *cache.LRUCache[[]byte]
	cacheManager *cache.Manager

	limiter  *ratelimit.Limiter
	clientIP *security.ClientIP
	tracer   *trace.Middleware

	rawRowsLimit int
	startedAt    time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentHTTP})
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	if opts.RawRowsLimit <= 0 {
		opts.RawRowsLimit = 500
	}
	if opts.RateLimit.Requests <= 0 {
		opts.RateLimit = ratelimit.DefaultConfig()
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		data:         opts.Data,
		exports:      opts.Exports,
		charts:       chart.NewRenderer(opts.ChartWidth, opts.ChartHeight),
		logger:       logger,
		structured:   log.NewStructuredLogger(logger),
		viewCache:    cache.NewLRUCache[core.ViewModel](opts.CacheSize, opts.CacheTTL),
		chartCache:   cache.NewLRUCache[[]byte](opts.CacheSize/4+1, opts.CacheTTL),
		cacheManager: cache.NewManager(),
		limiter:      ratelimit.NewLimiter(opts.RateLimit),
		clientIP:     security.NewClientIP(),
		rawRowsLimit: opts.RawRowsLimit,
		startedAt:    time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.clientIP.Extract)

	s.cacheManager.Register(s.viewCache)
	s.cacheManager.Register(s.chartCache)
	s.cacheManager.StartCleanup(opts.CacheTTL)

	// Parse embedded templates at startup.
	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err)
	} else {
		s.templates = t
	}

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	exportLimit := s.limiter.Middleware(s.clientIP.Extract, s.handleRateLimited)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ui/view", s.handleViewPartial)
	mux.HandleFunc("GET /ui/raw", s.handleRawPartial)
	mux.HandleFunc("GET /api/view", s.handleAPIView)
	mux.HandleFunc("GET /api/options", s.handleAPIOptions)
	mux.HandleFunc("GET /charts/{file}", s.handleChart)
	mux.Handle("POST /exports", exportLimit(http.HandlerFunc(s.handleCreateExport)))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	var h http.Handler = mux
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = log.RequestIDMiddleware(trace.RequestIDFromRequest)(h)
	h = log.Middleware(logger)(h)
	h = s.tracer.Middleware(h)
	s.Handler = h

	return s
}

// Shutdown stops background cleanup and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// viewModel returns the cached model for (v, f), computing it on a miss. The
// table never changes after load so entries only age out.
func (s *Server) viewModel(ctx context.Context, v core.View, f core.Filters) core.ViewModel {
	f = f.Normalize()
	key := v.Slug() + "|" + f.Key()
	vm, hit := s.viewCache.GetOrCompute(key, func() core.ViewModel {
		return s.data.Render(v, f)
	})
	s.structured.LogViewRendered(ctx, v.Slug(), f.Key(), vm.Summary.TotalKWh, vm.Summary.Projects, hit)
	return vm
}
