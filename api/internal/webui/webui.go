// Package webui serves the classification form as a server-rendered page.
package webui

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"hs-classifier/api/internal/form"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	sessionCookie = "hs_session"
	msgBusy       = "A classification is already in progress."
)

var page = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type pageData struct {
	State      form.State
	Cards      []form.Card
	Error      string
	Disclaimer string
	APIURL     string
}

// sessions idle longer than this are dropped by Sweep
const defaultSessionTTL = 30 * time.Minute

type session struct {
	form     *form.Form
	lastSeen atomic.Int64 // unix nanoseconds
}

func (s *session) touch(now time.Time) { s.lastSeen.Store(now.UnixNano()) }

type UI struct {
	api     form.Classifier
	log     *zap.Logger
	timeout time.Duration
	ttl     time.Duration

	sessions sync.Map // session id -> *session
}

func New(api form.Classifier, log *zap.Logger, timeout time.Duration) *UI {
	if log == nil {
		log = zap.NewNop()
	}
	return &UI{api: api, log: log, timeout: timeout, ttl: defaultSessionTTL}
}

func (u *UI) Routes(r chi.Router) {
	r.Get("/", u.Show)
	r.Post("/", u.Submit)
}

// sessionID returns the caller's session id, issuing a cookie on first visit.
func (u *UI) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// lookup returns an existing session or nil.
func (u *UI) lookup(id string) *session {
	v, ok := u.sessions.Load(id)
	if !ok {
		return nil
	}
	s := v.(*session)
	s.touch(time.Now())
	return s
}

// open returns the session for id, creating it when missing.
func (u *UI) open(id string) *session {
	if s := u.lookup(id); s != nil {
		return s
	}
	fresh := &session{form: form.New(u.api)}
	fresh.touch(time.Now())
	v, _ := u.sessions.LoadOrStore(id, fresh)
	return v.(*session)
}

// Sweep drops sessions idle since before now-ttl that have no request in flight.
// It returns how many were removed.
func (u *UI) Sweep(now time.Time) int {
	cutoff := now.Add(-u.ttl).UnixNano()
	n := 0
	u.sessions.Range(func(k, v any) bool {
		s := v.(*session)
		if s.lastSeen.Load() < cutoff && !s.form.Loading() {
			u.sessions.Delete(k)
			n++
		}
		return true
	})
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (u *UI) RunSweeper(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := u.Sweep(now); n > 0 {
				u.log.Debug("idle sessions dropped", zap.Int("count", n))
			}
		}
	}
}

// Show renders the caller's form. Visitors without a stored session get a fresh
// state; nothing is stored until they submit.
func (u *UI) Show(w http.ResponseWriter, r *http.Request) {
	id := u.sessionID(w, r)
	st := form.State{}
	if s := u.lookup(id); s != nil {
		st = s.form.State()
	}
	u.render(w, st, "")
}

func (u *UI) Submit(w http.ResponseWriter, r *http.Request) {
	f := u.open(u.sessionID(w, r)).form
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	st, err := f.Submit(ctx, r.PostForm.Get("description"))
	if errors.Is(err, form.ErrBusy) {
		u.render(w, st, msgBusy)
		return
	}
	if st.Error != "" {
		u.log.Info("classification failed", zap.String("error", st.Error))
	}
	u.render(w, st, "")
}

// render draws st; banner overrides the state's error when set.
func (u *UI) render(w http.ResponseWriter, st form.State, banner string) {
	data := pageData{
		State:      st,
		Cards:      st.Display(),
		Error:      st.Error,
		Disclaimer: form.Disclaimer,
		APIURL:     u.api.BaseURL(),
	}
	if banner != "" {
		data.Error = banner
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := page.Execute(w, data); err != nil {
		u.log.Error("render page", zap.Error(err))
	}
}
