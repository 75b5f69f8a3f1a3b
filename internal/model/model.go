package model

import "time"

// Question is a single exam question. The mark scheme is confidential: it is
// sent to the marking model as a system instruction and never serialized to
// students, hence the "-" tag.
type Question struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Prompt     string `json:"prompt"`
	MaxMarks   int    `json:"max_marks"`
	MarkScheme string `json:"-"`
}

// QuestionView is the student-facing projection of a Question.
type QuestionView struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Prompt   string `json:"prompt"`
	MaxMarks int    `json:"max_marks"`
}

// View returns the student-facing projection of q.
func (q Question) View() QuestionView {
	return QuestionView{ID: q.ID, Title: q.Title, Prompt: q.Prompt, MaxMarks: q.MaxMarks}
}

// SubmissionKind distinguishes typed answers from drawn ones.
type SubmissionKind string

const (
	SubmissionText    SubmissionKind = "text"
	SubmissionDrawing SubmissionKind = "drawing"
)

// Submission is a normalized student answer, ready to be sent for marking.
// Exactly one of Text and ImageDataURL is set, matching Kind.
type Submission struct {
	Kind         SubmissionKind
	Text         string
	ImageDataURL string
}

// Student identifies the submitting student. ClassSet is a reporting label
// only; it grants no access.
type Student struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	ClassSet  string `json:"class_set"`
}

// DisplayName joins the name parts for the results sheet.
func (s Student) DisplayName() string {
	switch {
	case s.FirstName == "":
		return s.LastName
	case s.LastName == "":
		return s.FirstName
	default:
		return s.FirstName + " " + s.LastName
	}
}

// MarkingReport is the validated outcome of one marking call.
// Invariant: 0 <= Awarded <= MaxMarks, and MaxMarks always equals the
// source question's MaxMarks. The validator is the sole enforcement point.
type MarkingReport struct {
	QuestionID     string   `json:"question_id"`
	Awarded        int      `json:"awarded"`
	MaxMarks       int      `json:"max_marks"`
	Summary        string   `json:"summary"`
	FeedbackPoints []string `json:"feedback_points"`
	NextSteps      []string `json:"next_steps"`
	Error          bool     `json:"error"`
}

// ResultRecord is one appended row in the results store. Append-only: no
// update or delete path exists anywhere in the system.
type ResultRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	StudentName string    `json:"student_name"`
	ClassSet    string    `json:"class_set"`
	QuestionID  string    `json:"question_id"`
	Score       int       `json:"score"`
	MaxMarks    int       `json:"max_marks"`
	Summary     string    `json:"summary"`
}

// AuthSession is a teacher dashboard login session.
type AuthSession struct {
	ID        string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ClassSummary is the per-class aggregate shown on the teacher dashboard.
type ClassSummary struct {
	ClassSet    string  `json:"class_set"`
	Submissions int     `json:"submissions"`
	MeanScore   float64 `json:"mean_score"`
}

// ResultsExport is the top-level JSON structure written by the export command.
type ResultsExport struct {
	ExportedAt time.Time      `json:"exported_at"`
	Source     string         `json:"source"`
	Records    []ResultRecord `json:"records"`
}

// Features records which optional integrations were configured at startup.
// A missing credential disables the feature for the whole process lifetime;
// it is reported once at load, never per request.
type Features struct {
	Marking     bool
	SheetSink   bool
	TeacherAuth bool
}

// AppConfig holds runtime parameters set via flags and environment.
type AppConfig struct {
	Addr          string
	ClassSets     []string
	MaxImageWidth int
	SecureCookies bool
	Features      Features
}
