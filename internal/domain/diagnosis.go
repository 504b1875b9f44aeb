package domain

import "encoding/json"

// DimensionReview is one scored aspect of a diagnosis. Grammar reviews use
// Issues; the other dimensions use Suggestions.
type DimensionReview struct {
	Score       int      `json:"score"`
	Feedback    string   `json:"feedback"`
	Suggestions []string `json:"suggestions,omitempty"`
	Issues      []string `json:"issues,omitempty"`
}

// Diagnosis is the structured result of an article analysis.
//
// When the diagnosis was parsed from model output, Raw holds the original
// JSON object and MarshalJSON emits it unchanged so fields the typed view
// does not know about survive the trip to the client.
type Diagnosis struct {
	Summary    string           `json:"summary"`
	Score      int              `json:"score"`
	Structure  *DimensionReview `json:"structure,omitempty"`
	Logic      *DimensionReview `json:"logic,omitempty"`
	Expression *DimensionReview `json:"expression,omitempty"`
	Grammar    *DimensionReview `json:"grammar,omitempty"`

	Raw json.RawMessage `json:"-"`
}

type diagnosisFields Diagnosis

func (d Diagnosis) MarshalJSON() ([]byte, error) {
	if len(d.Raw) > 0 {
		return d.Raw, nil
	}
	return json.Marshal(diagnosisFields(d))
}
