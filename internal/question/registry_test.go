package question

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeQuestionsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "questions.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write questions file: %v", err)
	}
	return path
}

func TestLoadEmbeddedDefaults(t *testing.T) {
	r, err := Load(nil)
	if err != nil {
		t.Fatalf("Load(nil): %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 default questions, got %d", r.Len())
	}

	q, ok := r.Get("q1-forces")
	if !ok {
		t.Fatal("expected q1-forces in default bank")
	}
	if q.MaxMarks != 3 {
		t.Errorf("q1-forces max marks = %d, want 3", q.MaxMarks)
	}
	if q.MarkScheme == "" {
		t.Error("q1-forces should carry a mark scheme")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeQuestionsFile(t, `[
		{"id": "w1", "title": "Waves", "prompt": "Define frequency.", "max_marks": 2, "mark_scheme": "1. Waves per second. 2. Unit Hz."},
		{"id": "w2", "title": "Waves", "prompt": "Define wavelength.", "max_marks": 1, "mark_scheme": "1. Distance between peaks."}
	]`)

	r, err := Load([]string{path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 questions, got %d", r.Len())
	}

	list := r.List()
	if list[0].ID != "w1" || list[1].ID != "w2" {
		t.Errorf("List order = [%s, %s], want [w1, w2]", list[0].ID, list[1].ID)
	}

	views := r.Views()
	for _, v := range views {
		if v.Prompt == "" {
			t.Errorf("view %s has empty prompt", v.ID)
		}
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"duplicate id",
			`[{"id": "a", "prompt": "p", "max_marks": 1}, {"id": "a", "prompt": "p", "max_marks": 1}]`,
			"duplicate question id",
		},
		{
			"empty id",
			`[{"id": "", "prompt": "p", "max_marks": 1}]`,
			"empty id",
		},
		{
			"zero max marks",
			`[{"id": "a", "prompt": "p", "max_marks": 0}]`,
			"max_marks must be positive",
		},
		{
			"negative max marks",
			`[{"id": "a", "prompt": "p", "max_marks": -3}]`,
			"max_marks must be positive",
		},
		{
			"empty prompt",
			`[{"id": "a", "prompt": "", "max_marks": 1}]`,
			"empty prompt",
		},
		{
			"not json",
			`this is not json`,
			"parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeQuestionsFile(t, tt.content)
			_, err := Load([]string{path})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestGetMissing(t *testing.T) {
	r, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := r.Get("no-such-question"); ok {
		t.Error("Get on unknown id should return ok=false")
	}
}
