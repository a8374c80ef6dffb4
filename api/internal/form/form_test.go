package form

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func apiServer(t *testing.T, status int, body string, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		assert.Equal(t, "/classify", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(func() {
		srv.CloseClientConnections()
		srv.Close()
	})
	return srv
}

func TestSubmit_Success(t *testing.T) {
	srv := apiServer(t, http.StatusOK, `{
		"status":"success","message":"Classification successful",
		"predictions":[
			{"hs_code":"8471","description":"ADP machines","confidence_score":0.923},
			{"hs_code":"8473","description":"Parts","confidence_score":0.6},
			{"hs_code":"8517","description":"Phones","confidence_score":0.5}
		]}`, nil)
	f := New(NewClient(srv.URL+"/", time.Second))

	st, err := f.Submit(context.Background(), "Laptop computer with 16GB RAM")

	require.NoError(t, err)
	assert.Empty(t, st.Error)
	assert.False(t, st.Loading)
	require.Len(t, st.Cards, 3)
	assert.Equal(t, Card{Rank: 1, Code: "8471", Description: "ADP machines", Confidence: 92, Level: LevelHigh}, st.Cards[0])
	assert.Equal(t, LevelMedium, st.Cards[1].Level)
	assert.Equal(t, 50, st.Cards[2].Confidence)
	assert.Equal(t, LevelLow, st.Cards[2].Level)
	assert.Equal(t, st.Cards, st.Display())
}

func TestSubmit_SuccessWithNoPredictions(t *testing.T) {
	srv := apiServer(t, http.StatusOK, `{"status":"success","message":"Classification successful","predictions":[]}`, nil)
	f := New(NewClient(srv.URL, time.Second))

	st, err := f.Submit(context.Background(), "unobtainium widget")

	require.NoError(t, err)
	assert.Empty(t, st.Cards)
	assert.Empty(t, st.Error)
	assert.Equal(t, []Card{Placeholder}, st.Display())
}

func TestSubmit_EmptyDescriptionNeverCallsAPI(t *testing.T) {
	var calls int32
	srv := apiServer(t, http.StatusOK, `{"status":"success","predictions":[{"hs_code":"9503","description":"Toys","confidence_score":0.7}]}`, &calls)
	f := New(NewClient(srv.URL, time.Second))

	st, err := f.Submit(context.Background(), "toy car")
	require.NoError(t, err)
	require.Len(t, st.Cards, 1)

	st, err = f.Submit(context.Background(), "   \n")

	require.NoError(t, err)
	assert.Equal(t, MsgEmptyDescription, st.Error)
	require.Len(t, st.Cards, 1, "previous results stay")
	assert.Equal(t, "9503", st.Cards[0].Code)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestSubmit_ServerErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"error status with message", http.StatusInternalServerError, `{"status":"error","message":"API Error: 401 - bad key"}`, "API Error: 401 - bad key"},
		{"validation error", http.StatusBadRequest, `{"error":"Invalid or missing 'description' field"}`, "Invalid or missing 'description' field"},
		{"no message", http.StatusBadGateway, `{}`, "Classification failed with status 502."},
		{"ok status but not success", http.StatusOK, `{"status":"error","message":"AI classification failed due to invalid output format."}`, "AI classification failed due to invalid output format."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := apiServer(t, tt.status, tt.body, nil)
			f := New(NewClient(srv.URL, time.Second))

			st, err := f.Submit(context.Background(), "laptop")

			require.NoError(t, err)
			assert.Equal(t, tt.want, st.Error)
			assert.Equal(t, []Card{Placeholder}, st.Cards)
			assert.False(t, st.Loading)
		})
	}
}

func TestSubmit_NetworkFailure(t *testing.T) {
	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		f := New(NewClient(url, time.Second))

		st, err := f.Submit(context.Background(), "laptop")

		require.NoError(t, err)
		assert.Equal(t, "Could not connect to the backend API at "+url+". Please ensure the server is running.", st.Error)
		assert.Equal(t, []Card{Placeholder}, st.Cards)
	})

	t.Run("body is not json", func(t *testing.T) {
		srv := apiServer(t, http.StatusOK, `<html>proxy error</html>`, nil)
		f := New(NewClient(srv.URL, time.Second))

		st, err := f.Submit(context.Background(), "laptop")

		require.NoError(t, err)
		assert.Contains(t, st.Error, "Could not connect to the backend API at "+srv.URL)
	})
}

type blockingAPI struct {
	release chan struct{}
	started chan struct{}
	calls   int32
}

func (b *blockingAPI) BaseURL() string { return "http://api.test" }

func (b *blockingAPI) Classify(ctx context.Context, _ string) (*APIResponse, int, error) {
	atomic.AddInt32(&b.calls, 1)
	close(b.started)
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}
	return &APIResponse{Status: "success"}, http.StatusOK, nil
}

func TestSubmit_SingleRequestInFlight(t *testing.T) {
	api := &blockingAPI{release: make(chan struct{}), started: make(chan struct{})}
	f := New(api)

	done := make(chan State)
	go func() {
		st, _ := f.Submit(context.Background(), "first")
		done <- st
	}()
	<-api.started

	during := f.State()
	assert.True(t, during.Loading)
	assert.Empty(t, during.Error)
	assert.Nil(t, during.Cards)
	assert.False(t, during.CanSubmit())

	_, err := f.Submit(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, "first", f.State().Description)

	close(api.release)
	st := <-done
	assert.False(t, st.Loading)
	assert.EqualValues(t, 1, atomic.LoadInt32(&api.calls))
	assert.True(t, st.CanSubmit())
}

func TestPercentAndLevel(t *testing.T) {
	tests := []struct {
		score float64
		pct   int
		level string
	}{
		{0, 0, LevelLow},
		{0.5, 50, LevelLow},
		{0.51, 51, LevelMedium},
		{0.8, 80, LevelMedium},
		{0.81, 81, LevelHigh},
		{0.855, 86, LevelHigh},
		{0.145, 14, LevelLow},
		{0.125, 13, LevelLow},
		{0.999, 100, LevelHigh},
		{1.7, 100, LevelHigh},
		{-0.2, 0, LevelLow},
	}
	for _, tt := range tests {
		pct := Percent(tt.score)
		assert.Equal(t, tt.pct, pct, "score %v", tt.score)
		assert.Equal(t, tt.level, Level(pct), "score %v", tt.score)
	}
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, []Card{Placeholder}, State{}.Display())
	assert.Nil(t, State{Error: "boom"}.Display())

	cards := []Card{{Rank: 1, Code: "8471"}}
	assert.Equal(t, cards, State{Cards: cards, Error: "boom"}.Display())
}

func TestClient_RequestBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ClassifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Stainless steel kitchen pan", req.Description)
		_, _ = w.Write([]byte(`{"status":"success","predictions":[]}`))
	}))
	defer srv.Close()

	resp, status, err := NewClient(srv.URL, time.Second).Classify(context.Background(), "Stainless steel kitchen pan")

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", resp.Status)
}
