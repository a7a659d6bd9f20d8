// Package handler exposes the quiz library and session engine over a JSON
// API. It is UI glue: every decision about ordering, scoring, duplicates,
// and undo lives in the packages it calls into.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"quizdeck/internal/i18n"
	"quizdeck/internal/model"
	"quizdeck/internal/session"
	"quizdeck/internal/store"
	"quizdeck/internal/undo"
	"quizdeck/internal/validate"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	engine *session.Engine
	undo   *undo.Coordinator
}

// New creates a new Handler.
func New(s *store.Store, e *session.Engine, u *undo.Coordinator) *Handler {
	return &Handler{store: s, engine: e, undo: u}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/quizzes", h.handleImport)
	r.Get("/api/quizzes", h.handleListRecent)
	r.Delete("/api/quizzes", h.handleClearAll)
	r.Post("/api/quizzes/check", h.handleCheckDuplicate)
	r.Post("/api/quizzes/bulk-delete", h.handleBulkDelete)
	r.Get("/api/quizzes/{id}", h.handleGetQuiz)
	r.Delete("/api/quizzes/{id}", h.handleDeleteQuiz)
	r.Get("/api/quizzes/{id}/results", h.handleListResults)

	r.Post("/api/undo/{id}/commit", h.handleUndoCommit)
	r.Delete("/api/undo/{id}", h.handleUndoDismiss)

	r.Get("/api/export", h.handleExportAll)
	r.Post("/api/export", h.handleExportSubset)
	r.Get("/api/storage", h.handleStorage)

	r.Post("/api/session", h.handleStartSession)
	r.Get("/api/session", h.handleGetSession)
	r.Delete("/api/session", h.handleAbandonSession)
	r.Post("/api/session/answers", h.handleAnswer)
	r.Post("/api/session/position", h.handleNavigate)
	r.Post("/api/session/submit", h.handleSubmit)
	r.Post("/api/session/restart", h.handleRestart)
	r.Post("/api/session/resume", h.handleResume)
	r.Get("/api/session/export", h.handleExportResult)
}

// ===== import & library =====

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	// Read one byte past the quota so truncation and an exactly-at-limit
	// document are distinguishable.
	body, err := io.ReadAll(io.LimitReader(r.Body, store.QuotaBytes+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "read request body")
		return
	}
	if len(body) > store.QuotaBytes {
		respondError(w, http.StatusRequestEntityTooLarge, "quiz file exceeds the storage quota")
		return
	}

	report := validate.Validate(body)
	if !report.Valid {
		respond(w, http.StatusUnprocessableEntity, report)
		return
	}

	var quiz model.Quiz
	if err := json.Unmarshal(body, &quiz); err != nil {
		respondError(w, http.StatusBadRequest, "invalid data format")
		return
	}

	force := r.URL.Query().Get("force") == "1"
	var rec model.Record
	if force {
		rec, err = h.store.ForceSave(quiz, "")
	} else {
		rec, err = h.store.Save(quiz)
	}

	var dup *model.DuplicateError
	if errors.As(err, &dup) {
		respond(w, http.StatusConflict, map[string]any{
			"error":         i18n.Td(r.Context(), "DuplicateWarning", map[string]any{"Title": dup.ExistingTitle}),
			"existingId":    dup.ExistingID,
			"existingTitle": dup.ExistingTitle,
		})
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respond(w, http.StatusCreated, map[string]any{
		"id":      rec.ID,
		"message": i18n.Td(r.Context(), "ImportSuccess", map[string]any{"Title": rec.Metadata.Title}),
	})
}

func (h *Handler) handleCheckDuplicate(w http.ResponseWriter, r *http.Request) {
	var quiz model.Quiz
	if err := json.NewDecoder(r.Body).Decode(&quiz); err != nil {
		respondError(w, http.StatusBadRequest, "invalid data format")
		return
	}
	respond(w, http.StatusOK, h.store.CheckDuplicate(quiz))
}

func (h *Handler) handleListRecent(w http.ResponseWriter, r *http.Request) {
	summaries := h.store.ListRecent()
	if summaries == nil {
		summaries = []model.RecordSummary{}
	}
	respond(w, http.StatusOK, summaries)
}

func (h *Handler) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.Get(chi.URLParam(r, "id"))
	if errors.Is(err, model.ErrNotFound) {
		respondError(w, http.StatusNotFound, i18n.T(r.Context(), "QuizNotFound"))
		return
	}
	respond(w, http.StatusOK, rec)
}

func (h *Handler) handleListResults(w http.ResponseWriter, r *http.Request) {
	results := h.store.ListResults(chi.URLParam(r, "id"))
	if results == nil {
		results = []model.Result{}
	}
	respond(w, http.StatusOK, results)
}

// ===== delete with undo =====

func (h *Handler) handleDeleteQuiz(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.store.Get(id)
	if errors.Is(err, model.ErrNotFound) {
		respondError(w, http.StatusNotFound, i18n.T(r.Context(), "QuizNotFound"))
		return
	}

	snapshot := rec.Clone()
	if _, err := h.store.Delete(id); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.abandonSessionFor(id)

	undoID := h.undo.Stage(func() error {
		_, err := h.store.ForceSave(snapshot.Quiz, snapshot.ID)
		return err
	})

	respond(w, http.StatusOK, map[string]any{
		"undoId":  undoID,
		"message": i18n.Tp(r.Context(), "QuizzesDeleted", 1),
	})
}

func (h *Handler) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.IDs) == 0 {
		respondError(w, http.StatusBadRequest, "ids required")
		return
	}

	snapshots := make([]model.Record, 0, len(req.IDs))
	for _, id := range req.IDs {
		if rec, err := h.store.Get(id); err == nil {
			snapshots = append(snapshots, rec.Clone())
		}
	}

	result, err := h.store.DeleteMany(req.IDs)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, id := range result.Succeeded {
		h.abandonSessionFor(id)
	}

	undoID := h.undo.Stage(func() error {
		for _, snap := range snapshots {
			if _, err := h.store.ForceSave(snap.Quiz, snap.ID); err != nil {
				return err
			}
		}
		return nil
	})

	respond(w, http.StatusOK, map[string]any{
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
		"undoId":    undoID,
		"message":   i18n.Tp(r.Context(), "QuizzesDeleted", len(result.Succeeded)),
	})
}

// abandonSessionFor drops the in-memory attempt when its quiz was deleted.
// The store already cleared the persisted snapshot.
func (h *Handler) abandonSessionFor(id string) {
	if h.engine.State() != session.StateIdle && h.engine.Record().ID == id {
		if err := h.engine.Abandon(); err != nil {
			slog.Warn("abandon session after delete", "quiz", id, "error", err)
		}
	}
}

func (h *Handler) handleUndoCommit(w http.ResponseWriter, r *http.Request) {
	restored, err := h.undo.Commit(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !restored {
		respond(w, http.StatusGone, map[string]any{
			"message": i18n.T(r.Context(), "UndoExpired"),
		})
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"message": i18n.T(r.Context(), "QuizRestored"),
	})
}

func (h *Handler) handleUndoDismiss(w http.ResponseWriter, r *http.Request) {
	h.undo.Expire(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleClearAll(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Abandon(); err != nil {
		slog.Warn("abandon session on clear", "error", err)
	}
	if err := h.store.ClearAll(); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"message": i18n.T(r.Context(), "AllDataCleared"),
	})
}

// ===== export & storage =====

func (h *Handler) handleExportAll(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, h.store.ExportAll())
}

func (h *Handler) handleExportSubset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.IDs) == 0 {
		respondError(w, http.StatusBadRequest, "ids required")
		return
	}
	respond(w, http.StatusOK, h.store.ExportSubset(req.IDs))
}

func (h *Handler) handleStorage(w http.ResponseWriter, r *http.Request) {
	fp := h.store.Footprint()
	respond(w, http.StatusOK, map[string]any{
		"recordCount":    fp.RecordCount,
		"estimatedBytes": fp.EstimatedBytes,
		"quotaBytes":     store.QuotaBytes,
	})
}

// ===== session lifecycle =====

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QuizID  string `json:"quizId"`
		Shuffle bool   `json:"shuffle"`
		Study   bool   `json:"study"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuizID == "" {
		respondError(w, http.StatusBadRequest, "quizId required")
		return
	}

	rec, err := h.store.Get(req.QuizID)
	if errors.Is(err, model.ErrNotFound) {
		respondError(w, http.StatusNotFound, i18n.T(r.Context(), "QuizNotFound"))
		return
	}

	err = h.engine.Start(rec, session.Options{Shuffle: req.Shuffle, Study: req.Study})
	if errors.Is(err, session.ErrSessionActive) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respond(w, http.StatusCreated, h.sessionView())
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if h.engine.State() == session.StateIdle {
		respondError(w, http.StatusNotFound, "no active session")
		return
	}
	respond(w, http.StatusOK, h.sessionView())
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Position int `json:"position"`
		Option   int `json:"option"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	feedback, err := h.engine.SelectAnswer(req.Position, req.Option)
	if errors.Is(err, session.ErrNoSession) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respond(w, http.StatusOK, map[string]any{"feedback": feedback})
}

func (h *Handler) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Position int `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.engine.Navigate(req.Position)
	if errors.Is(err, session.ErrNoSession) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respond(w, http.StatusOK, h.sessionView())
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Force bool `json:"force"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if h.engine.State() != session.StateInProgress {
		respondError(w, http.StatusNotFound, session.ErrNoSession.Error())
		return
	}

	// The engine never blocks submission; the gap report lets a client route
	// the user back before forcing.
	if pos, unanswered := h.engine.FirstUnanswered(); unanswered && !req.Force {
		respond(w, http.StatusConflict, map[string]any{
			"firstUnanswered": pos,
		})
		return
	}

	result, err := h.engine.Submit()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"result":  result,
		"message": i18n.T(r.Context(), "SessionSubmitted"),
	})
}

func (h *Handler) handleRestart(w http.ResponseWriter, r *http.Request) {
	err := h.engine.Restart()
	if errors.Is(err, session.ErrNoSession) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respond(w, http.StatusOK, h.sessionView())
}

func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	st, ok := h.store.LoadSession()
	if !ok {
		respondError(w, http.StatusNotFound, i18n.T(r.Context(), "NoSavedSession"))
		return
	}

	rec, err := h.store.Get(st.QuizID)
	if errors.Is(err, model.ErrNotFound) {
		// The quiz behind the snapshot is gone; drop the snapshot.
		if err := h.store.ClearSession(); err != nil {
			slog.Warn("clear dangling session", "error", err)
		}
		respondError(w, http.StatusNotFound, i18n.T(r.Context(), "QuizNotFound"))
		return
	}

	err = h.engine.Resume(st, rec)
	switch {
	case errors.Is(err, session.ErrSessionActive):
		respondError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, session.ErrStaleSession):
		if err := h.store.ClearSession(); err != nil {
			slog.Warn("clear stale session", "error", err)
		}
		respondError(w, http.StatusGone, i18n.T(r.Context(), "SessionStale"))
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respond(w, http.StatusOK, h.sessionView())
}

func (h *Handler) handleAbandonSession(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Abandon(); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleExportResult(w http.ResponseWriter, r *http.Request) {
	result, ok := h.engine.Result()
	if !ok {
		respondError(w, http.StatusNotFound, "no completed attempt to export")
		return
	}
	rec := h.engine.Record()
	respond(w, http.StatusOK, model.ResultExport{
		Quiz: model.ResultExportQuiz{
			Title:   rec.Metadata.Title,
			Subject: rec.Metadata.Subject,
			Source:  rec.Metadata.Source,
		},
		Results:    result,
		ExportedAt: time.Now(),
	})
}

// ===== session view =====

type questionView struct {
	Position int      `json:"position"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   *int     `json:"selected"`
}

type sessionView struct {
	State          string        `json:"state"`
	QuizID         string        `json:"quizId"`
	Title          string        `json:"title"`
	Subject        string        `json:"subject"`
	Total          int           `json:"total"`
	Position       int           `json:"position"`
	AnsweredCount  int           `json:"answeredCount"`
	ShuffleEnabled bool          `json:"shuffleEnabled"`
	StudyMode      bool          `json:"studyMode"`
	Current        *questionView `json:"current,omitempty"`
}

func (h *Handler) sessionView() sessionView {
	rec := h.engine.Record()
	view := sessionView{
		State:         h.engine.State().String(),
		QuizID:        rec.ID,
		Title:         rec.Metadata.Title,
		Subject:       rec.Metadata.Subject,
		Total:         len(rec.Questions),
		Position:      h.engine.Position(),
		AnsweredCount: h.engine.AnsweredCount(),
	}
	st := h.engine.Snapshot()
	view.ShuffleEnabled = st.ShuffleEnabled
	view.StudyMode = st.StudyMode

	if h.engine.State() == session.StateInProgress {
		if q, answer, err := h.engine.Question(h.engine.Position()); err == nil {
			view.Current = &questionView{
				Position: h.engine.Position(),
				Question: q.Question,
				Options:  q.Options,
				Answer:   answer,
			}
		}
	}
	return view
}

// ===== helpers =====

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respond(w, status, map[string]string{"error": msg})
}
