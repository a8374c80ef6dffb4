package hscode

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Entry is a single line of the HS reference list.
type Entry struct {
	Code        string
	Description string
}

// Reference is the fixed list of 4-digit headings the model must choose from.
// Order is kept so prompts are stable between runs.
var Reference = []Entry{
	{"8471", "Automatic data processing machines and units thereof."},
	{"8473", "Parts and accessories for machinery of heading 8471."},
	{"9018", "Instruments and appliances used in medical, surgical or dental sciences."},
	{"3926", "Other articles of plastics and articles of other materials of headings 3901 to 3925."},
	{"6103", "Men's or boys' suits, ensembles, jackets, blazers, trousers, etc. (knitted or crocheted)."},
	{"7323", "Table, kitchen or other household articles and parts thereof, of iron or steel."},
	{"8517", "Telephone sets, including telephones for cellular networks or for other wireless networks; other apparatus for the transmission or reception of voice, images or other data."},
	{"9503", "Tricycles, scooters, pedal cars and similar wheeled toys; dolls' carriages; dolls; other toys."},
}

// Lookup returns the reference description for code.
func Lookup(code string) (string, bool) {
	for _, e := range Reference {
		if e.Code == code {
			return e.Description, true
		}
	}
	return "", false
}

const systemPreamble = "You are an expert Customs and Trade Classification Assistant. Your task is to accurately classify a commercial " +
	"product description to its most likely 4-digit Harmonized System (HS) Code. You MUST use the provided HS CODE " +
	"REFERENCE LIST to make your predictions. If the description is a clear match, provide a high confidence score. " +
	"If it's ambiguous, provide lower scores and select the best %d possible options from the list. " +
	"The reference codes are:\n"

// ResponseSchema is the JSON schema injected into the system prompt.
func ResponseSchema(maxPredictions int) map[string]any {
	return map[string]any{
		"title": "ClassificationResponse",
		"type":  "object",
		"properties": map[string]any{
			"predictions": map[string]any{
				"type":        "array",
				"description": fmt.Sprintf("A list of up to %d most likely HS Code predictions, sorted by confidence score.", maxPredictions),
				"maxItems":    maxPredictions,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"hs_code":          map[string]any{"type": "string", "description": "The predicted 4-digit HS code (e.g., 8471)."},
						"description":      map[string]any{"type": "string", "description": "A brief description corresponding to the HS code."},
						"confidence_score": map[string]any{"type": "number", "description": "A confidence score from 0.0 to 1.0 representing the prediction certainty."},
					},
					"required": []string{"hs_code", "description", "confidence_score"},
				},
			},
		},
		"required": []string{"predictions"},
	}
}

// SystemPrompt builds the instruction that carries the reference list and the output schema.
func SystemPrompt(maxPredictions int) string {
	if maxPredictions <= 0 {
		maxPredictions = DefaultMaxPredictions
	}
	var b strings.Builder
	fmt.Fprintf(&b, systemPreamble, maxPredictions)
	for _, e := range Reference {
		fmt.Fprintf(&b, "- HS %s: %s\n", e.Code, e.Description)
	}
	schema, _ := json.MarshalIndent(ResponseSchema(maxPredictions), "", "  ")
	b.WriteString("\n\nYOUR RESPONSE MUST BE a single JSON object STRICTLY matching this schema:\n")
	b.Write(schema)
	return b.String()
}

func UserPrompt(description string) string {
	return fmt.Sprintf("COMMERCIAL DESCRIPTION TO CLASSIFY: '%s'", description)
}
