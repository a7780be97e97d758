// Package api serves the persistence and submission endpoints the remote
// client talks to.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/abhisek/prepcoach/internal/assessment"
	"github.com/abhisek/prepcoach/internal/content"
	"github.com/abhisek/prepcoach/internal/logger"
	"github.com/abhisek/prepcoach/internal/progress"
	"github.com/abhisek/prepcoach/internal/store"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Handler serves the v1 API.
type Handler struct {
	progress  *progress.StoreRepository
	submitter *assessment.LocalSubmitter
	attempts  store.AttemptRepo
	secret    []byte
	log       *logger.Logger
}

// NewHandler creates a Handler. secret signs and verifies bearer tokens.
func NewHandler(repo *progress.StoreRepository, sub *assessment.LocalSubmitter, attempts store.AttemptRepo, secret []byte, log *logger.Logger) *Handler {
	return &Handler{
		progress:  repo,
		submitter: sub,
		attempts:  attempts,
		secret:    secret,
		log:       logger.OrNop(log).With("component", "api"),
	}
}

// Router builds the chi router with global middleware and all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts the authenticated v1 routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Use(Auth(h.secret))
		r.Get("/journeys/{journeyID}/progress", h.getProgress)
		r.Put("/journeys/{journeyID}/progress", h.putProgress)
		r.Post("/stages/{stageID}/assessments", h.submitAssessment)
		r.Get("/stages/{stageID}/attempts", h.listAttempts)
	})
}

func (h *Handler) getProgress(w http.ResponseWriter, r *http.Request) {
	journeyID := chi.URLParam(r, "journeyID")
	p, err := h.progress.ForLearner(LearnerID(r.Context())).LoadProgress(r.Context(), journeyID)
	if err != nil {
		h.log.Error("load progress", "journey_id", journeyID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load progress")
		return
	}
	if p == nil {
		Error(w, http.StatusNotFound, "no progress for journey")
		return
	}
	JSON(w, http.StatusOK, p)
}

func (h *Handler) putProgress(w http.ResponseWriter, r *http.Request) {
	journeyID := chi.URLParam(r, "journeyID")
	var p progress.JourneyProgress
	if err := decode(w, r, &p); err != nil {
		Error(w, http.StatusBadRequest, "invalid progress body")
		return
	}
	if p.JourneyID != journeyID {
		Error(w, http.StatusBadRequest, "journey id does not match path")
		return
	}
	if err := progress.Validate(&p); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.progress.ForLearner(LearnerID(r.Context())).SaveProgress(r.Context(), &p); err != nil {
		h.log.Error("save progress", "journey_id", journeyID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to save progress")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) submitAssessment(w http.ResponseWriter, r *http.Request) {
	stageID := chi.URLParam(r, "stageID")
	var sub assessment.Submission
	if err := decode(w, r, &sub); err != nil {
		Error(w, http.StatusBadRequest, "invalid submission body")
		return
	}
	if sub.StageID != stageID {
		Error(w, http.StatusBadRequest, "stage id does not match path")
		return
	}
	if sub.Reason != assessment.ReasonVoluntary && sub.Reason != assessment.ReasonTimeout {
		Error(w, http.StatusBadRequest, "unknown submit reason")
		return
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}

	res, err := h.submitter.ForLearner(LearnerID(r.Context())).SubmitAssessment(r.Context(), &sub)
	if errors.Is(err, content.ErrNotFound) {
		Error(w, http.StatusNotFound, "unknown stage")
		return
	}
	if err != nil {
		h.log.Error("submit assessment", "stage_id", stageID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to record submission")
		return
	}
	JSON(w, http.StatusOK, res)
}

// attemptView is the public shape of a stored attempt.
type attemptView struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	Reason      string    `json:"reason"`
	Score       float64   `json:"score"`
	Passed      bool      `json:"passed"`
	Correct     int       `json:"correctAnswers"`
	Total       int       `json:"totalQuestions"`
	SubmittedAt time.Time `json:"submittedAt"`
}

func (h *Handler) listAttempts(w http.ResponseWriter, r *http.Request) {
	stageID := chi.URLParam(r, "stageID")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	all, err := h.attempts.Attempts(r.Context(), stageID, store.QueryOpts{})
	if err != nil {
		h.log.Error("list attempts", "stage_id", stageID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to list attempts")
		return
	}
	learner := LearnerID(r.Context())
	out := []attemptView{}
	for _, a := range all {
		if a.LearnerID != learner {
			continue
		}
		out = append(out, attemptView{
			ID:          a.ID,
			SessionID:   a.SessionID,
			Reason:      a.Reason,
			Score:       a.Score,
			Passed:      a.Passed,
			Correct:     a.Correct,
			Total:       a.Total,
			SubmittedAt: a.SubmittedAt,
		})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	JSON(w, http.StatusOK, out)
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", chiMiddleware.GetReqID(r.Context()))
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
