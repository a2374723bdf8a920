package api

import (
	"net/http"
	"strings"
	"time"

	apperrors "github.com/auddy/backend/internal/errors"
	"github.com/auddy/backend/internal/extraction"
	"github.com/auddy/backend/internal/health"
	"github.com/auddy/backend/internal/logger"
	"github.com/auddy/backend/internal/metrics"
	"github.com/auddy/backend/internal/middleware"
	"github.com/auddy/backend/internal/websocket"
)

const slowRequest = 500 * time.Millisecond

// RouterConfig wires the handlers behind the HTTP surface. Health,
// Metrics and WebSocket are optional.
type RouterConfig struct {
	Extraction *extraction.Service
	Health     *health.Handler
	Metrics    *metrics.Metrics
	WebSocket  *websocket.Handler
	Logger     *logger.Logger

	CORSOrigins     []string
	SubmitRateLimit float64 // per client per minute, 0 disables
	SubmitRateBurst int
}

type Router struct {
	mux     *http.ServeMux
	ws      http.Handler
	handler http.Handler
}

func NewRouter(cfg *RouterConfig) *Router {
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}

	r := &Router{mux: http.NewServeMux()}
	r.setupRoutes(cfg)

	chain := []func(http.Handler) http.Handler{
		apperrors.RequestIDMiddleware,
		logger.Middleware(log),
		logger.Recovery(log),
	}
	if cfg.Metrics != nil {
		chain = append(chain, metrics.MetricsMiddleware(cfg.Metrics))
	}
	chain = append(chain,
		middleware.CORS(cfg.CORSOrigins),
		middleware.Timing(log, slowRequest),
		middleware.Gzip,
		middleware.ETag,
	)
	r.handler = middleware.Chain(r.mux, chain...)

	// websocket upgrades need the raw ResponseWriter to hijack
	if cfg.WebSocket != nil {
		r.ws = middleware.Chain(apperrors.HandleFunc(cfg.WebSocket.ServeWS),
			apperrors.RequestIDMiddleware,
			logger.Recovery(log),
		)
	}
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if r.ws != nil && req.Method == http.MethodGet && strings.HasPrefix(req.URL.Path, "/api/v1/ws/extract/") {
		id := strings.TrimPrefix(req.URL.Path, "/api/v1/ws/extract/")
		if id != "" && !strings.Contains(id, "/") {
			req.SetPathValue("id", id)
			r.ws.ServeHTTP(w, req)
			return
		}
	}
	r.handler.ServeHTTP(w, req)
}

func (r *Router) setupRoutes(cfg *RouterConfig) {
	extractions := NewExtractionHandlers(cfg.Extraction)
	downloads := NewDownloadHandlers(cfg.Extraction)

	if cfg.Health != nil {
		r.mux.HandleFunc("GET /health", cfg.Health.HealthHandler)
		r.mux.HandleFunc("GET /health/live", cfg.Health.LivenessHandler)
		r.mux.HandleFunc("GET /health/ready", cfg.Health.ReadinessHandler)
	}
	if cfg.Metrics != nil {
		r.mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}

	submit := middleware.RateLimit(cfg.SubmitRateLimit, cfg.SubmitRateBurst)
	r.mux.Handle("POST /api/v1/extract", submit(apperrors.HandleFunc(extractions.CreateExtraction)))
	r.mux.HandleFunc("GET /api/v1/extract", apperrors.HandleFunc(extractions.ListExtractions))
	r.mux.HandleFunc("GET /api/v1/extract/formats", apperrors.HandleFunc(extractions.ListFormats))
	r.mux.HandleFunc("GET /api/v1/extract/status/{task_id}", apperrors.HandleFunc(extractions.GetExtractionByTask))
	r.mux.HandleFunc("GET /api/v1/extract/{id}", apperrors.HandleFunc(extractions.GetExtraction))

	r.mux.HandleFunc("GET /api/v1/download/{id}", apperrors.HandleFunc(downloads.DownloadFile))
}
