package handle

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"hs-classifier/api/internal/hscode"
	"hs-classifier/api/internal/service"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"

	msgMissingJSON        = "Missing JSON in request"
	msgInvalidDescription = "Invalid or missing 'description' field"
	msgSuccess            = "Classification successful"
	msgBodyTooLarge       = "Request body too large"

	maxBodyBytes = 64 << 10
)

type ClassifyRequest struct {
	Description string `json:"description"`
}

type ClassifyResponse struct {
	Status      string              `json:"status"`
	Message     string              `json:"message"`
	Predictions []hscode.Prediction `json:"predictions"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

func (h *Handle) deadline(r *http.Request) time.Duration {
	d := h.timeout
	if ts := r.Header.Get("X-Request-Timeout"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			d = time.Duration(v) * time.Second
		}
	} else if ts := r.URL.Query().Get("timeoutSec"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			d = time.Duration(v) * time.Second
		}
	}
	return d
}

// Classify handles POST /classify.
func (h *Handle) Classify(w http.ResponseWriter, r *http.Request) {
	if !isJSON(r) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msgMissingJSON})
		return
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&raw); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": msgBodyTooLarge})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msgMissingJSON})
		return
	}
	var desc string
	if err := json.Unmarshal(raw["description"], &desc); err != nil || strings.TrimSpace(desc) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msgInvalidDescription})
		return
	}

	ctx := r.Context()
	if d := h.deadline(r); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	res, err := h.svc.Classify(ctx, desc)
	if err != nil {
		h.log.Error("classification failure", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Status:  StatusError,
			Message: service.ErrorMessage(err),
		})
		return
	}

	preds := res.Predictions
	if preds == nil {
		preds = []hscode.Prediction{}
	}
	writeJSON(w, http.StatusOK, ClassifyResponse{
		Status:      StatusSuccess,
		Message:     msgSuccess,
		Predictions: preds,
	})
}
