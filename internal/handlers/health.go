// internal/handlers/health.go
package handlers

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/thaasbai/thaasbai/internal/coordinator"
)

// registryProbeTimeout bounds the session-registry responsiveness check.
const registryProbeTimeout = 50 * time.Millisecond

// inflightHighWater is the dispatcher load above which the process reports
// unhealthy.
const inflightHighWater = 1024

// Health is the liveness probe: allocation works by construction of the
// response, the dispatcher is below its high-water mark, and the session
// registry answers a lock probe within its deadline.
func Health(c *coordinator.Coordinator) httprouter.Handle {
	return func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		if c.InFlight() >= inflightHighWater || !c.Sessions.Responsive(registryProbeTimeout) {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
