package handle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hs-classifier/api/internal/classifier"
	"hs-classifier/api/internal/hscode"
	"hs-classifier/api/internal/service"
)

type fakeEngine struct {
	preds    []hscode.Prediction
	err      error
	calls    int
	deadline time.Duration
}

func (f *fakeEngine) Name() string     { return "gpt" }
func (f *fakeEngine) GetModel() string { return "fake" }
func (f *fakeEngine) Classify(ctx context.Context, _ string) ([]hscode.Prediction, error) {
	f.calls++
	if dl, ok := ctx.Deadline(); ok {
		f.deadline = time.Until(dl)
	}
	return f.preds, f.err
}

func newHandle(eng classifier.Engine) *Handle {
	return New(service.NewClassifyService(eng, nil, nil, nil, 3, time.Minute), nil, time.Minute)
}

func post(h *Handle, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/classify", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.Classify(w, req)
	return w
}

func TestClassify_Success(t *testing.T) {
	eng := &fakeEngine{preds: []hscode.Prediction{
		{HSCode: "8473", Description: "Parts", ConfidenceScore: 0.3},
		{HSCode: "8471", Description: "ADP machines", ConfidenceScore: 0.95},
	}}
	w := post(newHandle(eng), "application/json; charset=utf-8", `{"description":"Laptop computer with 16GB RAM"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp ClassifyResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, "Classification successful", resp.Message)
	require.Len(t, resp.Predictions, 2)
	assert.Equal(t, "8471", resp.Predictions[0].HSCode)
	assert.Equal(t, 0.95, resp.Predictions[0].ConfidenceScore)
}

func TestClassify_EmptyPredictionsAreAList(t *testing.T) {
	w := post(newHandle(&fakeEngine{preds: nil}), "application/json", `{"description":"x"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"predictions":[]`)
}

func TestClassify_BadRequests(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantError   string
	}{
		{"no content type", "", `{"description":"x"}`, "Missing JSON in request"},
		{"form encoded", "application/x-www-form-urlencoded", "description=x", "Missing JSON in request"},
		{"broken json", "application/json", `{"description":`, "Missing JSON in request"},
		{"missing field", "application/json", `{"desc":"x"}`, "Invalid or missing 'description' field"},
		{"null field", "application/json", `{"description":null}`, "Invalid or missing 'description' field"},
		{"number field", "application/json", `{"description":42}`, "Invalid or missing 'description' field"},
		{"blank field", "application/json", `{"description":"   "}`, "Invalid or missing 'description' field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &fakeEngine{}
			w := post(newHandle(eng), tt.contentType, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var resp map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.wantError, resp["error"])
			assert.Zero(t, eng.calls)
		})
	}
}

func TestClassify_EngineFailures(t *testing.T) {
	tests := []struct {
		name string
		eng  classifier.Engine
		want string
	}{
		{"provider error", &fakeEngine{err: &classifier.APIError{StatusCode: 401, Message: "bad key"}}, "API Error: 401 - bad key"},
		{"invalid output", &fakeEngine{err: hscode.ErrInvalidOutput}, "AI classification failed due to invalid output format."},
		{"unexpected", &fakeEngine{err: errors.New("dial tcp: refused")}, "An unexpected error occurred: gpt classify: dial tcp: refused"},
		{"no engine", nil, "Classification engine is not initialized. Check API Key."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(newHandle(tt.eng), "application/json", `{"description":"laptop"}`)

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, StatusError, resp.Status)
			assert.Equal(t, tt.want, resp.Message)
		})
	}
}

func TestClassify_TimeoutOverride(t *testing.T) {
	eng := &fakeEngine{preds: []hscode.Prediction{}}
	h := newHandle(eng)

	req := httptest.NewRequest(http.MethodPost, "/classify?timeoutSec=5", strings.NewReader(`{"description":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	h.Classify(httptest.NewRecorder(), req)

	assert.LessOrEqual(t, eng.deadline, 5*time.Second)
	assert.Greater(t, eng.deadline, time.Duration(0))
}

func TestClassify_TimeoutOverrideExtendsDefault(t *testing.T) {
	eng := &fakeEngine{preds: []hscode.Prediction{}}
	h := newHandle(eng)

	req := httptest.NewRequest(http.MethodPost, "/classify", strings.NewReader(`{"description":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Timeout", "300")
	h.Classify(httptest.NewRecorder(), req)

	assert.Greater(t, eng.deadline, 4*time.Minute)
	assert.LessOrEqual(t, eng.deadline, 5*time.Minute)
}

func TestClassify_BodyTooLarge(t *testing.T) {
	eng := &fakeEngine{}
	body := `{"description":"` + strings.Repeat("a", maxBodyBytes) + `"}`

	w := post(newHandle(eng), "application/json", body)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "Request body too large", resp["error"])
	assert.Zero(t, eng.calls)
}

func TestIndexAndHealthz(t *testing.T) {
	h := newHandle(&fakeEngine{})

	w := httptest.NewRecorder()
	h.Index(w, httptest.NewRequest(http.MethodGet, "/", nil))
	var info map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&info))
	assert.Equal(t, "Customs AI Classification API", info["service"])
	assert.Equal(t, "/classify (POST)", info["endpoint"])

	w = httptest.NewRecorder()
	h.Healthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestRoutes(t *testing.T) {
	h := newHandle(&fakeEngine{preds: []hscode.Prediction{}})
	r := chi.NewRouter()
	h.Routes(r, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/classify", strings.NewReader(`{"description":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/classify", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "# metrics", w.Body.String())
}
