package handle

import (
	"context"
	"net/http"
	"time"
)

// Index handles GET / with a short service banner.
func (h *Handle) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service":  "Customs AI Classification API",
		"version":  "1.0",
		"status":   "Running",
		"endpoint": "/classify (POST)",
	})
}

// Healthz reports ok when the cache backend answers.
func (h *Handle) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.svc.Ping(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("cache: not ok\n" + err.Error()))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
