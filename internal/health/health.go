package health

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	apperrors "github.com/auddy/backend/internal/errors"
	"github.com/auddy/backend/internal/toolexec"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// ComponentHealth represents the health of a single component
type ComponentHealth struct {
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// HealthResponse represents the full health check response
type HealthResponse struct {
	Status     Status                     `json:"status"`
	Timestamp  string                     `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Checker performs health checks on various components. Components left
// nil in the config are not part of this deployment and are not reported.
type Checker struct {
	db           Pinger
	queue        Pinger
	backlog      func(ctx context.Context) (int64, error)
	storage      Pinger
	directory    Pinger
	tools        []toolexec.Requirement
	lookup       func([]toolexec.Requirement) []toolexec.Status
	version      string
	checkTimeout time.Duration
}

// CheckerConfig holds configuration for the health checker
type CheckerConfig struct {
	DB      Pinger
	Queue   Pinger
	Storage Pinger

	// Backlog reports the number of queued tasks alongside the queue check.
	Backlog func(ctx context.Context) (int64, error)

	// Directory checks that extraction output can be written.
	Directory Pinger

	// Tools are the external binaries extraction shells out to.
	Tools   []toolexec.Requirement
	Version string
	Timeout time.Duration
}

// NewChecker creates a new health checker
func NewChecker(cfg *CheckerConfig) *Checker {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		db:           cfg.DB,
		queue:        cfg.Queue,
		backlog:      cfg.Backlog,
		storage:      cfg.Storage,
		directory:    cfg.Directory,
		tools:        cfg.Tools,
		lookup:       toolexec.CheckBinaries,
		version:      cfg.Version,
		checkTimeout: timeout,
	}
}

func (c *Checker) ping(ctx context.Context, p Pinger, what string) ComponentHealth {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		return ComponentHealth{
			Status:   StatusUnhealthy,
			Message:  what + " ping failed",
			Duration: time.Since(start).String(),
		}
	}

	return ComponentHealth{
		Status:   StatusHealthy,
		Duration: time.Since(start).String(),
	}
}

// checkQueue pings the queue and reports its backlog in the message.
func (c *Checker) checkQueue(ctx context.Context) ComponentHealth {
	h := ComponentHealth{Status: StatusHealthy}
	if c.queue != nil {
		if h = c.ping(ctx, c.queue, "queue"); h.Status != StatusHealthy {
			return h
		}
	}
	if c.backlog == nil {
		return h
	}

	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()
	n, err := c.backlog(ctx)
	if err != nil {
		return ComponentHealth{Status: StatusUnhealthy, Message: "queue length unavailable", Duration: h.Duration}
	}
	h.Message = fmt.Sprintf("%d tasks waiting", n)
	return h
}

// DirPinger checks that dir exists, or can be created, and accepts new files.
func DirPinger(dir string) Pinger {
	return PingFunc(func(ctx context.Context) error {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		f, err := os.CreateTemp(dir, ".ready-")
		if err != nil {
			return err
		}
		name := f.Name()
		f.Close()
		return os.Remove(name)
	})
}

// CheckTools reports missing external binaries. A missing binary degrades
// the service: submissions are accepted but the affected sources fail.
func (c *Checker) CheckTools(ctx context.Context) ComponentHealth {
	start := time.Now()

	var missing []string
	for _, st := range c.lookup(c.tools) {
		if !st.Available {
			missing = append(missing, fmt.Sprintf("%s (%s)", st.Name, st.Detail))
		}
	}

	if len(missing) > 0 {
		return ComponentHealth{
			Status:   StatusDegraded,
			Message:  "missing tools: " + strings.Join(missing, ", "),
			Duration: time.Since(start).String(),
		}
	}
	return ComponentHealth{
		Status:   StatusHealthy,
		Duration: time.Since(start).String(),
	}
}

// Check performs a basic health check (liveness)
func (c *Checker) Check(ctx context.Context) *HealthResponse {
	return &HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   c.version,
	}
}

// DeepCheck performs a comprehensive health check (readiness)
func (c *Checker) DeepCheck(ctx context.Context) *HealthResponse {
	response := &HealthResponse{
		Status:     StatusHealthy,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Version:    c.version,
		Components: make(map[string]ComponentHealth),
	}

	checks := make(map[string]func(context.Context) ComponentHealth)
	if c.db != nil {
		checks["database"] = func(ctx context.Context) ComponentHealth { return c.ping(ctx, c.db, "database") }
	}
	if c.queue != nil || c.backlog != nil {
		checks["queue"] = c.checkQueue
	}
	if c.storage != nil {
		checks["storage"] = func(ctx context.Context) ComponentHealth { return c.ping(ctx, c.storage, "storage") }
	}
	if c.directory != nil {
		checks["directory"] = func(ctx context.Context) ComponentHealth { return c.ping(ctx, c.directory, "directory") }
	}
	if len(c.tools) > 0 {
		checks["tools"] = c.CheckTools
	}

	// Run checks in parallel
	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, check := range checks {
		wg.Add(1)
		go func(n string, ch func(context.Context) ComponentHealth) {
			defer wg.Done()
			result := ch(ctx)
			mu.Lock()
			response.Components[n] = result
			mu.Unlock()
		}(name, check)
	}

	wg.Wait()

	// Determine overall status
	for _, comp := range response.Components {
		if comp.Status == StatusUnhealthy {
			response.Status = StatusUnhealthy
			break
		} else if comp.Status == StatusDegraded && response.Status == StatusHealthy {
			response.Status = StatusDegraded
		}
	}

	return response
}

// Handler provides HTTP handlers for health endpoints
type Handler struct {
	checker *Checker
}

// NewHandler creates a new health handler
func NewHandler(checker *Checker) *Handler {
	return &Handler{checker: checker}
}

// LivenessHandler handles liveness probe requests
func (h *Handler) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	response := h.checker.Check(r.Context())
	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, response)
}

// ReadinessHandler handles readiness probe requests. Degraded still
// accepts traffic.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	response := h.checker.DeepCheck(r.Context())

	status := http.StatusOK
	if response.Status == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), status, response)
}

// HealthHandler handles basic health check requests (legacy /health endpoint)
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	// Check if deep check is requested via query param
	if r.URL.Query().Get("deep") == "true" {
		h.ReadinessHandler(w, r)
		return
	}
	h.LivenessHandler(w, r)
}
