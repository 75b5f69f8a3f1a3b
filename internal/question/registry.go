// Package question holds the immutable question registry. Questions are
// loaded once at process start and never change afterwards.
package question

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/panphy/labassistant/internal/model"
)

//go:embed questions.json
var defaultQuestions []byte

// Registry maps question IDs to questions and preserves load order for
// deterministic listing.
type Registry struct {
	byID  map[string]model.Question
	order []string
}

// Load reads question definitions from the given JSON files. With no paths
// it falls back to the embedded default bank.
func Load(paths []string) (*Registry, error) {
	r := &Registry{byID: make(map[string]model.Question)}

	if len(paths) == 0 {
		if err := r.addJSON(defaultQuestions, "embedded"); err != nil {
			return nil, err
		}
		return r, nil
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if err := r.addJSON(data, path); err != nil {
			return nil, err
		}
		slog.Info("loaded questions", "path", path)
	}
	return r, nil
}

func (r *Registry) addJSON(data []byte, source string) error {
	var questions []model.Question

	// MarkScheme carries a "-" JSON tag so it never leaks outward; question
	// files still need to supply it, so decode through a shadow struct.
	var raw []struct {
		ID         string `json:"id"`
		Title      string `json:"title"`
		Prompt     string `json:"prompt"`
		MaxMarks   int    `json:"max_marks"`
		MarkScheme string `json:"mark_scheme"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse %s: %w", source, err)
	}
	for _, q := range raw {
		questions = append(questions, model.Question{
			ID:         q.ID,
			Title:      q.Title,
			Prompt:     q.Prompt,
			MaxMarks:   q.MaxMarks,
			MarkScheme: q.MarkScheme,
		})
	}

	for _, q := range questions {
		if q.ID == "" {
			return fmt.Errorf("%s: question with empty id", source)
		}
		if q.MaxMarks <= 0 {
			return fmt.Errorf("%s: question %q: max_marks must be positive, got %d", source, q.ID, q.MaxMarks)
		}
		if q.Prompt == "" {
			return fmt.Errorf("%s: question %q: empty prompt", source, q.ID)
		}
		if _, dup := r.byID[q.ID]; dup {
			return fmt.Errorf("%s: duplicate question id %q", source, q.ID)
		}
		r.byID[q.ID] = q
		r.order = append(r.order, q.ID)
	}
	return nil
}

// Get returns the question with the given ID.
func (r *Registry) Get(id string) (model.Question, bool) {
	q, ok := r.byID[id]
	return q, ok
}

// List returns all questions in load order.
func (r *Registry) List() []model.Question {
	out := make([]model.Question, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Views returns the student-facing projection of all questions.
func (r *Registry) Views() []model.QuestionView {
	out := make([]model.QuestionView, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].View())
	}
	return out
}

// Len returns the number of registered questions.
func (r *Registry) Len() int {
	return len(r.order)
}
