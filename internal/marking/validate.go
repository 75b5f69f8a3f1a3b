package marking

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/panphy/labassistant/internal/model"
)

const (
	maxFeedbackPoints = 4
	maxNextSteps      = 3

	failureSummary  = "The marking service returned an unreadable response. Please submit your answer again."
	fallbackSummary = "Marked. No further comments were given."
)

// braceRegex extracts the first brace-delimited substring from free text, for
// responses where the model wrapped its JSON in prose.
var braceRegex = regexp.MustCompile(`(?s)\{.*\}`)

// rawReport is the loosely-typed wire shape. The degraded JSON-object path
// is not schema-enforced, so the awarded value may arrive under a legacy
// alias and any field may be missing or of the wrong type.
type rawReport struct {
	AwardedScore   json.RawMessage `json:"awarded_score"`
	MarksAwarded   json.RawMessage `json:"marks_awarded"`
	Score          json.RawMessage `json:"score"`
	ScoreAwarded   json.RawMessage `json:"score_awarded"`
	Summary        json.RawMessage `json:"summary"`
	FeedbackPoints json.RawMessage `json:"feedback_points"`
	NextSteps      json.RawMessage `json:"next_steps"`
}

// Validate parses raw model output into a MarkingReport. It never returns an
// error: unusable input yields a report with Error=true and Awarded=0, and
// every successful parse is clamped and defaulted so that
// 0 <= Awarded <= q.MaxMarks and MaxMarks == q.MaxMarks always hold.
func Validate(raw string, q model.Question) model.MarkingReport {
	report := model.MarkingReport{
		QuestionID:     q.ID,
		MaxMarks:       q.MaxMarks,
		FeedbackPoints: []string{},
		NextSteps:      []string{},
	}

	var parsed rawReport
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		sub := braceRegex.FindString(raw)
		if sub == "" || json.Unmarshal([]byte(sub), &parsed) != nil {
			report.Error = true
			report.Summary = failureSummary
			return report
		}
	}

	awarded, _ := coerceInt(firstPresent(
		parsed.AwardedScore, parsed.MarksAwarded, parsed.Score, parsed.ScoreAwarded,
	))
	report.Awarded = clamp(awarded, 0, q.MaxMarks)

	report.Summary = coerceString(parsed.Summary)
	if strings.TrimSpace(report.Summary) == "" {
		report.Summary = fallbackSummary
	}

	report.FeedbackPoints = coerceStringList(parsed.FeedbackPoints, maxFeedbackPoints)
	report.NextSteps = coerceStringList(parsed.NextSteps, maxNextSteps)

	return report
}

// FailureReport builds the report shown when the marking call itself failed.
func FailureReport(q model.Question) model.MarkingReport {
	return model.MarkingReport{
		QuestionID:     q.ID,
		MaxMarks:       q.MaxMarks,
		Summary:        failureSummary,
		FeedbackPoints: []string{},
		NextSteps:      []string{},
		Error:          true,
	}
}

func firstPresent(candidates ...json.RawMessage) json.RawMessage {
	for _, c := range candidates {
		if len(c) > 0 && string(c) != "null" {
			return c
		}
	}
	return nil
}

// coerceInt accepts a JSON number, a numeric string, or nothing. Fractional
// marks are truncated toward zero; anything non-numeric defaults to 0.
func coerceInt(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(f), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return int(f), true
		}
	}
	return 0, false
}

func coerceString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// coerceStringList tolerates missing or mistyped list fields and truncates
// to the given bound. Non-string elements are dropped.
func coerceStringList(raw json.RawMessage, max int) []string {
	out := []string{}
	if len(raw) == 0 {
		return out
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return out
	}
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			continue
		}
		out = append(out, s)
		if len(out) == max {
			break
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
