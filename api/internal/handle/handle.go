package handle

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"hs-classifier/api/internal/service"
)

type Handle struct {
	svc     *service.ClassifyService
	log     *zap.Logger
	timeout time.Duration
}

// New builds the API handlers. timeout is the default per-request deadline;
// callers may override it with X-Request-Timeout or ?timeoutSec=.
func New(svc *service.ClassifyService, log *zap.Logger, timeout time.Duration) *Handle {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handle{
		svc:     svc,
		log:     log,
		timeout: timeout,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Routes mounts the API endpoints. metrics may be nil.
func (h *Handle) Routes(r chi.Router, metrics http.Handler) {
	r.Get("/", h.Index)
	r.Get("/healthz", h.Healthz)
	r.Post("/classify", h.Classify)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
}
