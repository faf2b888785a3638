package httpapi

import (
	"context"
	"net/http"
	"time"

	"bptrack/internal/bpcategory"

	"go.uber.org/zap"
)

// Pinger dependency checked by /healthz (database, redis).
type Pinger func(ctx context.Context) error

type MetaHandler struct {
	checks map[string]Pinger
	logger *zap.Logger
}

func NewMetaHandler(checks map[string]Pinger, logger *zap.Logger) *MetaHandler {
	return &MetaHandler{checks: checks, logger: logger}
}

type categoryInfo struct {
	Name     string `json:"name"`
	Severity int    `json:"severity"`
}

// Categories all labels, most severe first.
func (h *MetaHandler) Categories(w http.ResponseWriter, r *http.Request) {
	cats := bpcategory.Categories()
	out := make([]categoryInfo, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryInfo{Name: c.String(), Severity: c.Severity()})
	}
	writeJSON(w, http.StatusOK, Ok(out))
}

func (h *MetaHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	healthy := true
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			status[name] = "down"
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	if !healthy {
		writeJSON(w, http.StatusServiceUnavailable, Result[map[string]string]{
			Code: ResultError, Type: "error", Message: "degraded", Result: status,
		})
		return
	}
	writeJSON(w, http.StatusOK, Ok(status))
}
