// Package form holds the submit-and-render state machine shared by every
// front-end (web page, Telegram bot, CLI). It validates the description,
// calls the classification API once, and turns the reply into display cards,
// an error banner, or the placeholder card.
package form

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"hs-classifier/api/internal/hscode"
)

// ErrBusy is returned when a submission arrives while another is still in flight.
var ErrBusy = errors.New("a classification is already in progress")

const (
	MsgEmptyDescription = "Please enter a product description before classifying."

	Disclaimer = "These predictions are AI-generated and should be verified by a customs professional before use in official documentation."

	LevelHigh   = "high"
	LevelMedium = "medium"
	LevelLow    = "low"
)

// Card is one prediction as shown to the user.
type Card struct {
	Rank        int
	Code        string
	Description string
	Confidence  int // whole percent, 0..100
	Level       string
}

// Placeholder is shown before the first result and after a failure.
var Placeholder = Card{
	Rank:        1,
	Code:        "XXXX",
	Description: "Enter a commercial product description and classify to see results...",
	Confidence:  0,
	Level:       LevelLow,
}

type State struct {
	Description string
	Cards       []Card
	Error       string
	Loading     bool
}

// Display returns what the results section should show: real cards, else the
// placeholder when there is no error, else nothing.
func (s State) Display() []Card {
	if len(s.Cards) > 0 {
		return s.Cards
	}
	if s.Error == "" {
		return []Card{Placeholder}
	}
	return nil
}

// CanSubmit mirrors the submit button: enabled only with text and no call in flight.
func (s State) CanSubmit() bool {
	return strings.TrimSpace(s.Description) != "" && !s.Loading
}

// Classifier is the part of Client the form needs.
type Classifier interface {
	Classify(ctx context.Context, description string) (*APIResponse, int, error)
	BaseURL() string
}

// Form owns one user's state. It allows a single outstanding request.
type Form struct {
	api Classifier

	mu    sync.Mutex
	state State
}

func New(api Classifier) *Form {
	return &Form{api: api}
}

// State returns a snapshot of the current state.
func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot()
}

func (f *Form) snapshot() State {
	s := f.state
	if s.Cards != nil {
		s.Cards = append([]Card(nil), s.Cards...)
	}
	return s
}

// Submit classifies description and returns the resulting state.
// An empty description never reaches the network. While a call is in flight
// further submissions fail with ErrBusy and leave the state untouched.
func (f *Form) Submit(ctx context.Context, description string) (State, error) {
	f.mu.Lock()
	if f.state.Loading {
		s := f.snapshot()
		f.mu.Unlock()
		return s, ErrBusy
	}
	f.state.Description = description
	if strings.TrimSpace(description) == "" {
		f.state.Error = MsgEmptyDescription
		s := f.snapshot()
		f.mu.Unlock()
		return s, nil
	}
	f.state.Loading = true
	f.state.Error = ""
	f.state.Cards = nil
	f.mu.Unlock()

	cards, errMsg := f.call(ctx, description)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Loading = false
	f.state.Cards = cards
	f.state.Error = errMsg
	return f.snapshot(), nil
}

// Loading reports whether a request is in flight.
func (f *Form) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Loading
}

func (f *Form) call(ctx context.Context, description string) ([]Card, string) {
	resp, status, err := f.api.Classify(ctx, description)
	if err != nil {
		return []Card{Placeholder}, fmt.Sprintf("Could not connect to the backend API at %s. Please ensure the server is running.", f.api.BaseURL())
	}

	if status >= 200 && status < 300 && resp.Status == "success" {
		return ToCards(resp.Predictions), ""
	}

	msg := resp.Message
	if msg == "" {
		msg = resp.Error
	}
	if msg == "" {
		msg = fmt.Sprintf("Classification failed with status %d.", status)
	}
	return []Card{Placeholder}, msg
}

// ToCards maps predictions to display cards, keeping response order.
func ToCards(preds []hscode.Prediction) []Card {
	cards := make([]Card, 0, len(preds))
	for i, p := range preds {
		pct := Percent(p.ConfidenceScore)
		cards = append(cards, Card{
			Rank:        i + 1,
			Code:        p.HSCode,
			Description: p.Description,
			Confidence:  pct,
			Level:       Level(pct),
		})
	}
	return cards
}

// Percent rescales a unit fraction to a whole percentage, clamped to 0..100.
func Percent(score float64) int {
	if math.IsNaN(score) {
		return 0
	}
	pct := int(math.Round(score * 100))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func Level(pct int) string {
	switch {
	case pct > 80:
		return LevelHigh
	case pct > 50:
		return LevelMedium
	default:
		return LevelLow
	}
}
