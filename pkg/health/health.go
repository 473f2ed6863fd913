// Package health checks the searcher's dependencies for the liveness and
// readiness endpoints. The snapshot is required; Redis and Postgres are
// registered as optional and only degrade the report when they fail.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

const defaultCheckTimeout = 2 * time.Second

// Check tests a single dependency.
type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
	Optional bool   `json:"optional,omitempty"`
	Latency  string `json:"latency,omitempty"`
}

type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

type CheckOption func(*registration)

// Optional turns a failing check into degraded instead of down.
func Optional() CheckOption {
	return func(r *registration) { r.optional = true }
}

// WithTimeout bounds a single check; the default is two seconds.
func WithTimeout(d time.Duration) CheckOption {
	return func(r *registration) { r.timeout = d }
}

type registration struct {
	name     string
	check    Check
	optional bool
	timeout  time.Duration
}

type Checker struct {
	mu      sync.RWMutex
	checks  map[string]registration
	started time.Time
	logger  *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		checks:  make(map[string]registration),
		started: time.Now(),
		logger:  slog.Default().With("component", "health"),
	}
}

// Register adds or replaces the check called name.
func (c *Checker) Register(name string, check Check, opts ...CheckOption) {
	r := registration{name: name, check: check, timeout: defaultCheckTimeout}
	for _, opt := range opts {
		opt(&r)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = r
}

// Run executes every check concurrently. The report carries the worst
// status, where a failing optional check counts as degraded.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	regs := make([]registration, 0, len(c.checks))
	for _, r := range c.checks {
		regs = append(regs, r)
	}
	c.mu.RUnlock()
	sort.Slice(regs, func(i, j int) bool { return regs[i].name < regs[j].name })

	results := make([]ComponentHealth, len(regs))
	var wg sync.WaitGroup
	for i, r := range regs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.runCheck(ctx, r)
		}()
	}
	wg.Wait()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(regs)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	for i, r := range regs {
		res := results[i]
		report.Components[r.name] = res
		switch {
		case res.Status == StatusDown:
			report.Status = StatusDown
		case res.Status == StatusDegraded && report.Status == StatusUp:
			report.Status = StatusDegraded
		}
	}
	return report
}

func (c *Checker) runCheck(ctx context.Context, r registration) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	start := time.Now()
	res := r.check(ctx)
	res.Latency = time.Since(start).Round(time.Millisecond).String()
	res.Optional = r.optional
	if res.Status == StatusDown && r.optional {
		res.Status = StatusDegraded
	}
	if res.Status != StatusUp {
		c.logger.Warn("health check failing", "check", r.name, "status", res.Status, "message", res.Message)
	}
	return res
}

// PingCheck adapts a Ping method such as redis.Client.Ping.
func PingCheck(ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "alive",
			"uptime": time.Since(c.started).Round(time.Second).String(),
		})
	}
}

// ReadyHandler answers 503 only when a required check is down.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		status := http.StatusOK
		if report.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
