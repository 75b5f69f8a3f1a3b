// Package handler exposes the student portal and teacher dashboard as a JSON
// API. One submission is processed start to finish on its request goroutine;
// the only blocking external hop is the marking call.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/panphy/labassistant/internal/i18n"
	"github.com/panphy/labassistant/internal/labdata"
	"github.com/panphy/labassistant/internal/marking"
	"github.com/panphy/labassistant/internal/model"
	"github.com/panphy/labassistant/internal/question"
	"github.com/panphy/labassistant/internal/sheet"
	"github.com/panphy/labassistant/internal/store"
	"github.com/panphy/labassistant/internal/submission"
)

// Marker is the marking pipeline as seen by the HTTP layer.
type Marker interface {
	Mark(ctx context.Context, q model.Question, sub model.Submission) (model.MarkingReport, error)
}

// Handler holds shared dependencies for HTTP handlers. marker is nil when no
// API key was configured at startup; the affected endpoints then answer 503.
type Handler struct {
	registry   *question.Registry
	normalizer *submission.Normalizer
	marker     Marker
	sink       sheet.Sink
	store      *store.Store
	sessions   *sessionCache
	config     model.AppConfig
}

// New creates a new Handler.
func New(reg *question.Registry, norm *submission.Normalizer, marker Marker, sink sheet.Sink, st *store.Store, cfg model.AppConfig) *Handler {
	return &Handler{
		registry:   reg,
		normalizer: norm,
		marker:     marker,
		sink:       sink,
		store:      st,
		sessions:   newSessionCache(),
		config:     cfg,
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/questions", h.handleQuestions)
	r.Get("/api/classes", h.handleClasses)
	r.Post("/api/submissions/text", h.handleTextSubmission)
	r.Post("/api/submissions/drawing", h.handleDrawingSubmission)
	r.Get("/api/report", h.handleGetReport)
	r.Delete("/api/report", h.handleResetReport)
	r.Post("/api/lab/analysis", h.handleLabAnalysis)
	r.Post("/api/lab/gradient", h.handleLabGradient)
	r.Post("/api/teacher/login", h.handleTeacherLogin)
	r.Post("/api/teacher/logout", h.handleTeacherLogout)
	r.Group(func(tr chi.Router) {
		tr.Use(h.requireTeacher)
		tr.Get("/api/teacher/records", h.handleRecords)
		tr.Get("/api/teacher/summary", h.handleSummary)
	})
}

type submissionRequest struct {
	QuestionID string        `json:"question_id"`
	Student    model.Student `json:"student"`
	Answer     string        `json:"answer,omitempty"`
	Image      string        `json:"image,omitempty"`
}

type markResponse struct {
	Report model.MarkingReport `json:"report"`
	// Warning carries a non-fatal persistence failure; the report itself
	// is unaffected.
	Warning string `json:"warning,omitempty"`
}

func (h *Handler) handleQuestions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.registry.Views())
}

func (h *Handler) handleClasses(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.config.ClassSets)
}

func (h *Handler) handleTextSubmission(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	q, ok := h.registry.Get(req.QuestionID)
	if !ok {
		respondError(w, http.StatusNotFound, appI18n.T(r.Context(), "QuestionNotFound"))
		return
	}

	sub, err := h.normalizer.Text(req.Answer)
	if errors.Is(err, submission.ErrEmptySubmission) {
		respondError(w, http.StatusUnprocessableEntity, appI18n.T(r.Context(), "EmptySubmission"))
		return
	}

	h.mark(w, r, q, req.Student, sub)
}

func (h *Handler) handleDrawingSubmission(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	q, ok := h.registry.Get(req.QuestionID)
	if !ok {
		respondError(w, http.StatusNotFound, appI18n.T(r.Context(), "QuestionNotFound"))
		return
	}

	sub, err := h.normalizer.Drawing(req.Image)
	switch {
	case errors.Is(err, submission.ErrEmptySubmission):
		respondError(w, http.StatusUnprocessableEntity, appI18n.T(r.Context(), "EmptyCanvas"))
		return
	case errors.Is(err, submission.ErrBadImage):
		respondError(w, http.StatusBadRequest, appI18n.T(r.Context(), "BadDrawing"))
		return
	case err != nil:
		slog.Error("normalize drawing", "error", err)
		respondError(w, http.StatusInternalServerError, appI18n.T(r.Context(), "BadDrawing"))
		return
	}

	h.mark(w, r, q, req.Student, sub)
}

// mark runs the common tail of both submission endpoints: the external
// marking call, the append-and-forget persistence write, and the
// session-scoped report cache.
func (h *Handler) mark(w http.ResponseWriter, r *http.Request, q model.Question, student model.Student, sub model.Submission) {
	ctx := r.Context()

	if h.marker == nil {
		respondError(w, http.StatusServiceUnavailable, appI18n.T(ctx, "MarkingDisabled"))
		return
	}

	report, err := h.marker.Mark(ctx, q, sub)
	if err != nil {
		slog.Error("marking failed", "question", q.ID, "error", err)
		report = marking.FailureReport(q)
	}

	resp := markResponse{Report: report}
	if !report.Error && h.sink != nil {
		rec := model.ResultRecord{
			Timestamp:   time.Now(),
			StudentName: student.DisplayName(),
			ClassSet:    student.ClassSet,
			QuestionID:  q.ID,
			Score:       report.Awarded,
			MaxMarks:    report.MaxMarks,
			Summary:     report.Summary,
		}
		if err := h.sink.Append(ctx, rec); err != nil {
			// The report the student already earned is never rolled back.
			slog.Warn("persistence failed", "question", q.ID, "error", err)
			resp.Warning = appI18n.T(ctx, "PersistenceWarning")
		}
	}

	sid := h.ensureSession(w, r)
	h.sessions.set(sid, report)

	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetReport(w http.ResponseWriter, r *http.Request) {
	sid := h.sessionID(r)
	report, ok := h.sessions.get(sid)
	if !ok {
		respondError(w, http.StatusNotFound, appI18n.T(r.Context(), "NoReport"))
		return
	}
	respondJSON(w, http.StatusOK, markResponse{Report: report})
}

func (h *Handler) handleResetReport(w http.ResponseWriter, r *http.Request) {
	h.sessions.delete(h.sessionID(r))
	w.WriteHeader(http.StatusNoContent)
}

type labAnalysisRequest struct {
	Readings []labdata.Reading `json:"readings"`
}

func (h *Handler) handleLabAnalysis(w http.ResponseWriter, r *http.Request) {
	var req labAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	fit, err := labdata.Analyze(req.Readings)
	if errors.Is(err, labdata.ErrInsufficientData) {
		respondError(w, http.StatusUnprocessableEntity, appI18n.T(r.Context(), "InsufficientLabData"))
		return
	}
	respondJSON(w, http.StatusOK, fit)
}

type gradientRequest struct {
	Readings        []labdata.Reading `json:"readings"`
	StudentGradient float64           `json:"student_gradient"`
}

func (h *Handler) handleLabGradient(w http.ResponseWriter, r *http.Request) {
	var req gradientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	fit, err := labdata.Analyze(req.Readings)
	if errors.Is(err, labdata.ErrInsufficientData) {
		respondError(w, http.StatusUnprocessableEntity, appI18n.T(r.Context(), "InsufficientLabData"))
		return
	}
	respondJSON(w, http.StatusOK, labdata.CheckGradient(req.StudentGradient, fit.Gradient))
}

func (h *Handler) handleRecords(w http.ResponseWriter, r *http.Request) {
	if h.sink == nil {
		respondError(w, http.StatusServiceUnavailable, appI18n.T(r.Context(), "PersistenceWarning"))
		return
	}
	records, err := h.sink.Records(r.Context())
	if err != nil {
		slog.Error("read records", "error", err)
		respondError(w, http.StatusBadGateway, appI18n.T(r.Context(), "PersistenceWarning"))
		return
	}
	if records == nil {
		records = []model.ResultRecord{}
	}
	respondJSON(w, http.StatusOK, records)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	if h.sink == nil {
		respondError(w, http.StatusServiceUnavailable, appI18n.T(r.Context(), "PersistenceWarning"))
		return
	}
	records, err := h.sink.Records(r.Context())
	if err != nil {
		slog.Error("read records", "error", err)
		respondError(w, http.StatusBadGateway, appI18n.T(r.Context(), "PersistenceWarning"))
		return
	}
	respondJSON(w, http.StatusOK, summarize(records))
}

// summarize computes the mean score per class set. The sheet is the source
// of truth; aggregation happens app-side on every dashboard load.
func summarize(records []model.ResultRecord) []model.ClassSummary {
	type agg struct {
		count int
		total int
	}
	byClass := make(map[string]*agg)
	var order []string
	for _, rec := range records {
		a, ok := byClass[rec.ClassSet]
		if !ok {
			a = &agg{}
			byClass[rec.ClassSet] = a
			order = append(order, rec.ClassSet)
		}
		a.count++
		a.total += rec.Score
	}

	summaries := make([]model.ClassSummary, 0, len(order))
	for _, class := range order {
		a := byClass[class]
		summaries = append(summaries, model.ClassSummary{
			ClassSet:    class,
			Submissions: a.count,
			MeanScore:   float64(a.total) / float64(a.count),
		})
	}
	return summaries
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
