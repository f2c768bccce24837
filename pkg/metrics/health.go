package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/hako/durafmt"
	"github.com/prometheus/client_golang/prometheus"
)

// Component names a part of the process that reports health
type Component string

const (
	ComponentStorage  Component = "storage"
	ComponentRegistry Component = "registry"
	ComponentAPI      Component = "api"
)

// CriticalComponents must be reported and healthy before the process is ready
var CriticalComponents = []Component{ComponentStorage, ComponentRegistry, ComponentAPI}

// Status values reported by GetHealth and GetReadiness
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusReady     = "ready"
	StatusNotReady  = "not_ready"
)

// HealthStatus is the body of /health and /ready
type HealthStatus struct {
	Status     string               `json:"status"`
	Timestamp  time.Time            `json:"timestamp"`
	Components map[Component]string `json:"components,omitempty"`
	Message    string               `json:"message,omitempty"`
	Version    string               `json:"version,omitempty"`
	Uptime     string               `json:"uptime,omitempty"`
}

// ComponentHealthy mirrors the health registry as a gauge
var ComponentHealthy = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "herald_component_healthy",
		Help: "Whether a component last reported healthy (1) or not (0)",
	},
	[]string{"component"},
)

type check struct {
	healthy bool
	message string
	updated time.Time
}

type registry struct {
	mu      sync.RWMutex
	checks  map[Component]check
	started time.Time
	version string
}

func newRegistry() *registry {
	return &registry{
		checks:  make(map[Component]check),
		started: time.Now(),
	}
}

var health = newRegistry()

// SetVersion sets the version reported by /health and /ready
func SetVersion(version string) {
	health.mu.Lock()
	defer health.mu.Unlock()
	health.version = version
}

// SetComponent records the health of c
func SetComponent(c Component, healthy bool, message string) {
	health.mu.Lock()
	health.checks[c] = check{healthy: healthy, message: message, updated: time.Now()}
	health.mu.Unlock()

	value := 0.0
	if healthy {
		value = 1
	}
	ComponentHealthy.WithLabelValues(string(c)).Set(value)
}

// SetComponentErr records c as healthy when err is nil, otherwise as
// unhealthy with the error text
func SetComponentErr(c Component, err error) {
	if err != nil {
		SetComponent(c, false, err.Error())
		return
	}
	SetComponent(c, true, "")
}

func uptime(start time.Time) string {
	return durafmt.Parse(time.Since(start)).LimitFirstN(2).String()
}

// status builds a report under the read lock. describe returns the text
// for one component and whether it counts as good.
func (r *registry) status(names []Component, good, bad string, describe func(Component, check, bool) (string, bool)) HealthStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if names == nil {
		for name := range r.checks {
			names = append(names, name)
		}
	}

	out := HealthStatus{
		Status:     good,
		Timestamp:  time.Now(),
		Components: make(map[Component]string, len(names)),
		Version:    r.version,
		Uptime:     uptime(r.started),
	}
	for _, name := range names {
		c, ok := r.checks[name]
		text, fine := describe(name, c, ok)
		out.Components[name] = text
		if !fine {
			out.Status = bad
			if out.Message == "" {
				out.Message = "waiting for " + string(name)
			}
		}
	}
	return out
}

// GetHealth is unhealthy when any reported component is
func GetHealth() HealthStatus {
	st := health.status(nil, StatusHealthy, StatusUnhealthy, func(_ Component, c check, _ bool) (string, bool) {
		if !c.healthy {
			return "unhealthy: " + c.message, false
		}
		return "healthy", true
	})
	// Health has no notion of waiting
	st.Message = ""
	return st
}

// GetReadiness is ready once every critical component reported healthy
func GetReadiness() HealthStatus {
	return health.status(CriticalComponents, StatusReady, StatusNotReady, func(_ Component, c check, ok bool) (string, bool) {
		switch {
		case !ok:
			return "not registered", false
		case !c.healthy:
			return "not ready: " + c.message, false
		default:
			return "ready", true
		}
	})
}

func writeStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusHandler(report func() HealthStatus, good string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := report()
		code := http.StatusOK
		if st.Status != good {
			code = http.StatusServiceUnavailable
		}
		writeStatus(w, code, st)
	}
}

// HealthHandler serves /health
func HealthHandler() http.HandlerFunc {
	return statusHandler(GetHealth, StatusHealthy)
}

// ReadyHandler serves /ready
func ReadyHandler() http.HandlerFunc {
	return statusHandler(GetReadiness, StatusReady)
}

// LivenessHandler serves /live; it answers 200 while the process runs
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "alive",
			"uptime": uptime(health.started),
		})
	}
}
