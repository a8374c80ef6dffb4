package hscode

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"hs-classifier/api/internal/util"
)

// DefaultMaxPredictions is how many ranked codes are returned when nothing else is configured.
const DefaultMaxPredictions = 3

var ErrInvalidOutput = errors.New("invalid classification output")

// Prediction is one ranked HS code guess as it travels on the wire.
type Prediction struct {
	HSCode          string  `json:"hs_code"`
	Description     string  `json:"description"`
	ConfidenceScore float64 `json:"confidence_score"` // 0.0 .. 1.0
}

// Response is the structured object the LLM must return.
type Response struct {
	Predictions []Prediction `json:"predictions"`
}

// ParseResponse decodes raw model output into predictions.
// Any structural problem is reported as ErrInvalidOutput.
func ParseResponse(raw string) ([]Prediction, error) {
	out := util.StripCodeFences(raw)
	if out == "" {
		return nil, fmt.Errorf("%w: empty output", ErrInvalidOutput)
	}

	var r struct {
		Predictions *[]Prediction `json:"predictions"`
	}
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if r.Predictions == nil {
		return nil, fmt.Errorf("%w: missing predictions", ErrInvalidOutput)
	}

	preds := *r.Predictions
	for i := range preds {
		p := &preds[i]
		p.HSCode = strings.TrimSpace(p.HSCode)
		p.Description = strings.TrimSpace(p.Description)
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%w: prediction %d: %v", ErrInvalidOutput, i, err)
		}
	}
	return preds, nil
}

func (p Prediction) Validate() error {
	if p.HSCode == "" {
		return errors.New("hs_code is empty")
	}
	if p.Description == "" {
		return errors.New("description is empty")
	}
	if math.IsNaN(p.ConfidenceScore) || p.ConfidenceScore < 0 || p.ConfidenceScore > 1 {
		return fmt.Errorf("confidence_score %v out of range [0,1]", p.ConfidenceScore)
	}
	return nil
}

// Rank orders predictions by confidence (highest first, ties keep model order)
// and keeps at most n of them. n <= 0 keeps everything.
func Rank(preds []Prediction, n int) []Prediction {
	out := make([]Prediction, len(preds))
	copy(out, preds)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ConfidenceScore > out[j].ConfidenceScore
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
