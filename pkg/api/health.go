package api

import (
	"net/http"
	"time"

	"github.com/chargepal/fleetctl/pkg/controller"
	"github.com/chargepal/fleetctl/pkg/planstore"
)

// HealthResponse is the /health liveness payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse is the /ready readiness payload.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message,omitempty"`
}

// HealthHandler reports liveness: the process is up and able to
// respond. It never touches PlanStore or LiveStore.
func HealthHandler(ctrl *controller.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now(),
		})
	}
}

// ReadyHandler reports readiness: PlanStore and LiveStore are both
// reachable, so the tick loop and the RPC façade can actually serve
// traffic.
func ReadyHandler(ctrl *controller.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]string)
		ready := true
		var message string

		if err := ctrl.PlanStore().View(func(tx *planstore.Tx) error { return nil }); err != nil {
			checks["planstore"] = err.Error()
			ready = false
			message = "planstore not accessible"
		} else {
			checks["planstore"] = "ok"
		}

		if _, err := ctrl.LiveStore().FetchEnvInfos(); err != nil {
			checks["livestore"] = err.Error()
			ready = false
			if message == "" {
				message = "livestore not accessible"
			}
		} else {
			checks["livestore"] = "ok"
		}

		status := "ready"
		statusCode := http.StatusOK
		if !ready {
			status = "not ready"
			statusCode = http.StatusServiceUnavailable
		}

		writeJSON(w, statusCode, ReadyResponse{
			Status:    status,
			Timestamp: time.Now(),
			Checks:    checks,
			Message:   message,
		})
	}
}
