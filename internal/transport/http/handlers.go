package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/klairtech/thalassemia-quiz/internal/app"
	"github.com/klairtech/thalassemia-quiz/internal/domain"
)

// Handler wires the quiz use cases into the REST surface.
type Handler struct {
	service          *app.QuizService
	validate         *validator.Validate
	questionLimit    int
	leaderboardLimit int
	log              *zap.Logger
}

func NewHandler(service *app.QuizService, questionLimit, leaderboardLimit int, log *zap.Logger) *Handler {
	if questionLimit <= 0 {
		questionLimit = 3
	}
	return &Handler{
		service:          service,
		validate:         validator.New(),
		questionLimit:    questionLimit,
		leaderboardLimit: leaderboardLimit,
		log:              log,
	}
}

// Routes builds the REST router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/questions", h.getQuestions)
		r.Post("/attempts", h.submitAttempt)
		r.Patch("/attempts/{id}", h.attachIdentity)
		r.Get("/leaderboard", h.getLeaderboard)
	})
	return r
}

type submitAttemptRequest struct {
	UserName          string              `json:"user_name" validate:"required"`
	UserMobile        string              `json:"user_mobile"`
	UserEmail         string              `json:"user_email" validate:"omitempty,email"`
	Language          string              `json:"language" validate:"required"`
	QuestionsAnswered int                 `json:"questions_answered" validate:"gt=0"`
	CorrectAnswers    int                 `json:"correct_answers" validate:"gte=0"`
	TimeTakenSeconds  int                 `json:"time_taken_seconds" validate:"gte=0"`
	Answers           []domain.QuizAnswer `json:"answers"`
}

type attachIdentityRequest struct {
	UserMobile string `json:"user_mobile"`
	UserEmail  string `json:"user_email" validate:"omitempty,email"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) getQuestions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", h.questionLimit)
	difficulty := domain.Difficulty(r.URL.Query().Get("difficulty"))

	questions, err := h.service.Questions(r.Context(), limit, difficulty)
	if err != nil {
		if errors.Is(err, domain.ErrNoQuestions) {
			writeJSON(w, http.StatusOK, map[string]any{"questions": []domain.QuizQuestion{}})
			return
		}
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

func (h *Handler) submitAttempt(w http.ResponseWriter, r *http.Request) {
	var req submitAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	attempt, result, err := h.service.SubmitAttempt(r.Context(), app.SubmitInput{
		Name:             req.UserName,
		Mobile:           req.UserMobile,
		Email:            req.UserEmail,
		Language:         req.Language,
		TotalQuestions:   req.QuestionsAnswered,
		CorrectAnswers:   req.CorrectAnswers,
		TimeTakenSeconds: req.TimeTakenSeconds,
		Answers:          req.Answers,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"attempt": attempt, "result": result})
}

func (h *Handler) attachIdentity(w http.ResponseWriter, r *http.Request) {
	attemptID := chi.URLParam(r, "id")

	var req attachIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	attempt, err := h.service.AttachIdentity(r.Context(), attemptID, req.UserMobile, req.UserEmail)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": attempt})
}

func (h *Handler) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", h.leaderboardLimit)

	var current *domain.Identity
	if name := r.URL.Query().Get("name"); name != "" {
		current = &domain.Identity{
			Name:   name,
			Mobile: r.URL.Query().Get("mobile"),
			Email:  r.URL.Query().Get("email"),
		}
	}

	lb, err := h.service.Leaderboard(r.Context(), limit, current)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

// fail maps domain errors onto status codes; everything unexpected is a
// generic 500 so no partial data leaks out.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrAttemptNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "quiz attempt not found"})
	default:
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "request failed"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	return fallback
}
