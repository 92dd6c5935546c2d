// Package handlers agrupa os handlers HTTP da API.
package handlers

import (
	"context"
	"net/http"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/JeanGrijp/niji-api/internal/adapters/http/response"
)

// Pinger reports whether a backing store is reachable.
type Pinger func(ctx context.Context) error

// HealthHandler responde ao liveness check e serve o favicon.
type HealthHandler struct {
	checks  map[string]Pinger
	favicon []byte
}

func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// LoadFavicon reads the icon once at startup. A missing file leaves the
// route answering 404.
func (h *HealthHandler) LoadFavicon(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("favicon not loaded")
		return
	}
	h.favicon = data
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			response.Logger(r.Context()).WithError(err).WithField("dependency", name).Warn("health check failed")
			deps[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "up"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	response.JSON(w, status, map[string]any{"status": state, "dependencies": deps})
}

func (h *HealthHandler) Favicon(w http.ResponseWriter, r *http.Request) {
	if len(h.favicon) == 0 {
		response.Detail(w, http.StatusNotFound, "favicon not found")
		return
	}
	w.Header().Set("Content-Type", "image/x-icon")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(h.favicon)
}
