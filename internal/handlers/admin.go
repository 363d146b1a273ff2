// internal/handlers/admin.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"

	"github.com/thaasbai/thaasbai/internal/auth"
	"github.com/thaasbai/thaasbai/internal/coordinator"
)

// AdminLogin exchanges the shared secret for a signed token.
func AdminLogin(logger *logrus.Logger, adm *auth.Admin) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var body struct {
			Password string `json:"password"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&body); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !adm.Verify(body.Password) {
			logger.WithField("remote", r.RemoteAddr).Warn("admin login rejected")
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		token, err := adm.MintToken()
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
	}
}

// AdminState returns the read-only JSON snapshot of rooms, sessions and
// queues. It accepts either a minted token or the raw shared secret;
// unauthorized requests get a 401 with no body.
func AdminState(adm *auth.Admin, c *coordinator.Coordinator) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if !adminAuthorized(adm, r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(c.Snapshot())
	}
}

func adminAuthorized(adm *auth.Admin, r *http.Request) bool {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if adm.VerifyToken(strings.TrimPrefix(h, "Bearer ")) {
			return true
		}
	}
	if pw := r.Header.Get("X-Admin-Password"); pw != "" && adm.Verify(pw) {
		return true
	}
	return false
}
