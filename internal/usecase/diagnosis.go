package usecase

import (
	"encoding/json"
	"math"
	"strings"

	"writeway/internal/domain"
)

// ExtractDiagnosis turns raw model output into a Diagnosis. It takes the
// span from the first '{' to the last '}' and parses it as a JSON object.
// Anything that does not parse degrades to {summary: raw, score: 0}; this
// function never fails.
func ExtractDiagnosis(raw string) domain.Diagnosis {
	fallback := domain.Diagnosis{Summary: raw, Score: 0}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return fallback
	}
	candidate := raw[start : end+1]

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &fields); err != nil || fields == nil {
		return fallback
	}

	out := domain.Diagnosis{Raw: json.RawMessage(candidate)}
	decodeLenient(fields["summary"], &out.Summary)
	out.Score = lenientScore(fields["score"])
	out.Structure = lenientReview(fields["structure"])
	out.Logic = lenientReview(fields["logic"])
	out.Expression = lenientReview(fields["expression"])
	out.Grammar = lenientReview(fields["grammar"])
	return out
}

// decodeLenient fills dst when raw decodes into it and leaves it untouched
// otherwise. Field presence and types are the model's business.
func decodeLenient(raw json.RawMessage, dst any) {
	if len(raw) == 0 {
		return
	}
	_ = json.Unmarshal(raw, dst)
}

func lenientScore(raw json.RawMessage) int {
	var f float64
	if len(raw) == 0 || json.Unmarshal(raw, &f) != nil {
		return 0
	}
	return int(math.Round(f))
}

func lenientReview(raw json.RawMessage) *domain.DimensionReview {
	var fields map[string]json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &fields) != nil || fields == nil {
		return nil
	}
	r := &domain.DimensionReview{Score: lenientScore(fields["score"])}
	decodeLenient(fields["feedback"], &r.Feedback)
	decodeLenient(fields["suggestions"], &r.Suggestions)
	decodeLenient(fields["issues"], &r.Issues)
	return r
}
