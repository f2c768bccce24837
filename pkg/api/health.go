package api

import (
	"errors"
	"net/http"

	"github.com/cuemby/herald/pkg/metrics"
)

var errNoRegistry = errors.New("not initialized")

// readyHandler refreshes the storage and registry checks before reporting
// readiness of every critical component
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if s.manager == nil {
		metrics.SetComponentErr(metrics.ComponentRegistry, errNoRegistry)
		metrics.SetComponentErr(metrics.ComponentStorage, errNoRegistry)
	} else {
		metrics.SetComponentErr(metrics.ComponentRegistry, nil)
		metrics.SetComponentErr(metrics.ComponentStorage, s.manager.Ping())
	}

	metrics.ReadyHandler()(w, r)
}
