package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"normalz-service/internal/app"
	"normalz-service/internal/domain"
)

// DefaultEndpoint is the path serving both the fetch and submit calls.
const DefaultEndpoint = "/normalzGame"

const defaultLeaderboardLimit = 10

// Options configures the HTTP handler. Streaks and Leaderboard are optional; their
// routes are only mounted when set.
type Options struct {
	Endpoint       string
	Game           *app.GameService
	Streaks        *app.StreakService
	Leaderboard    app.Leaderboard
	Metrics        *Metrics
	RequestTimeout time.Duration
}

// Handler exposes the game over plain HTTP.
type Handler struct {
	endpoint    string
	game        *app.GameService
	streaks     *app.StreakService
	leaderboard app.Leaderboard
	metrics     *Metrics
	timeout     time.Duration
}

func NewHandler(opts Options) *Handler {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Handler{
		endpoint:    endpoint,
		game:        opts.Game,
		streaks:     opts.Streaks,
		leaderboard: opts.Leaderboard,
		metrics:     metrics,
		timeout:     timeout,
	}
}

// Router returns the chi router with every route mounted.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(h.metrics.middleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(h.timeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok")) //nolint:errcheck
	})
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Get(h.endpoint, h.handleFetchQuestion)
	r.Post(h.endpoint, h.handleSubmitAnswer)

	r.Post("/questions", h.handleCreateQuestion)
	r.Get("/questions/{questionId}", h.handleGetQuestion)

	if h.streaks != nil {
		r.Get("/players/{playerId}/streak", h.handleGetStreak)
		r.Post("/players/{playerId}/resets", h.handleCheckResets)
	}
	if h.leaderboard != nil {
		r.Get("/leaderboards/{leaderboardId}", h.handleTop)
		r.Put("/leaderboards/{leaderboardId}/scores", h.handleSubmitScore)
	}
	return r
}

type questionResponse struct {
	QuestionID   string         `json:"questionId"`
	Prompt       string         `json:"prompt,omitempty"`
	Options      []string       `json:"options"`
	AnswerCounts map[string]int `json:"answerCounts"`
	TotalAnswers int            `json:"totalAnswers"`
}

func toQuestionResponse(q domain.Question) questionResponse {
	counts := q.AnswerCounts
	if counts == nil {
		counts = map[string]int{}
	}
	return questionResponse{
		QuestionID:   q.ID,
		Prompt:       q.Prompt,
		Options:      q.Options,
		AnswerCounts: counts,
		TotalAnswers: q.TotalAnswers,
	}
}

type submitRequest struct {
	QuestionID     string `json:"questionId"`
	SelectedOption string `json:"selectedOption"`
	PlayerID       string `json:"playerId,omitempty"`
	SubmissionID   string `json:"submissionId,omitempty"`
}

type submitResponse struct {
	Message         string          `json:"message"`
	Outcome         domain.Outcome  `json:"outcome"`
	NewAnswerCounts map[string]int  `json:"newAnswerCounts"`
	NewTotal        int             `json:"newTotal"`
	Replayed        bool            `json:"replayed"`
	Streak          *streakResponse `json:"streak,omitempty"`
}

type streakResponse struct {
	Current      int                  `json:"current"`
	AllTime      int                  `json:"allTime"`
	Daily        int                  `json:"daily"`
	Weekly       int                  `json:"weekly"`
	Achievements []domain.Achievement `json:"achievements"`
	Raised       []domain.Period      `json:"raised"`
	Resets       []domain.Period      `json:"resets"`
}

func toStreakResponse(u domain.StreakUpdate) *streakResponse {
	out := &streakResponse{
		Current:      u.State.Current,
		AllTime:      u.State.AllTime,
		Daily:        u.State.Daily,
		Weekly:       u.State.Weekly,
		Achievements: u.Achievements,
		Raised:       u.Raised,
		Resets:       u.Resets,
	}
	if out.Achievements == nil {
		out.Achievements = []domain.Achievement{}
	}
	if out.Raised == nil {
		out.Raised = []domain.Period{}
	}
	if out.Resets == nil {
		out.Resets = []domain.Period{}
	}
	return out
}

func (h *Handler) handleFetchQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := h.game.NextQuestion(r.Context(), r.URL.Query().Get("exclude"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toQuestionResponse(q))
}

func (h *Handler) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	res, err := h.game.SubmitAnswer(r.Context(), domain.Submission{
		QuestionID:     req.QuestionID,
		SelectedOption: req.SelectedOption,
		PlayerID:       req.PlayerID,
		SubmissionID:   req.SubmissionID,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	h.metrics.observeVote(res.Outcome, res.Replayed)

	resp := submitResponse{
		Message:         "Answer submitted successfully",
		Outcome:         res.Outcome,
		NewAnswerCounts: res.Question.AnswerCounts,
		NewTotal:        res.Question.TotalAnswers,
		Replayed:        res.Replayed,
	}
	if res.Replayed {
		resp.Message = "Answer already recorded"
	}
	if res.Streak != nil {
		resp.Streak = toStreakResponse(*res.Streak)
	}
	respondJSON(w, http.StatusOK, resp)
}

type createQuestionRequest struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

func (h *Handler) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req createQuestionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	q, err := h.game.CreateQuestion(r.Context(), req.Prompt, req.Options)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toQuestionResponse(q))
}

func (h *Handler) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := h.game.Question(r.Context(), chi.URLParam(r, "questionId"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toQuestionResponse(q))
}

func (h *Handler) handleGetStreak(w http.ResponseWriter, r *http.Request) {
	state, err := h.streaks.Get(r.Context(), chi.URLParam(r, "playerId"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toStreakResponse(domain.StreakUpdate{State: state}))
}

func (h *Handler) handleCheckResets(w http.ResponseWriter, r *http.Request) {
	update, err := h.streaks.CheckResets(r.Context(), chi.URLParam(r, "playerId"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toStreakResponse(update))
}

type leaderboardResponse struct {
	LeaderboardID string                    `json:"leaderboardId"`
	Entries       []domain.LeaderboardEntry `json:"entries"`
}

func (h *Handler) handleTop(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, BadRequest("Invalid limit parameter"))
			return
		}
		limit = n
	}

	boardID := chi.URLParam(r, "leaderboardId")
	entries, err := h.leaderboard.Top(r.Context(), boardID, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	respondJSON(w, http.StatusOK, leaderboardResponse{LeaderboardID: boardID, Entries: entries})
}

type submitScoreRequest struct {
	PlayerID string `json:"playerId"`
	Value    int    `json:"value"`
}

func (h *Handler) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	var req submitScoreRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.PlayerID == "" || req.Value < 0 {
		respondError(w, BadRequest("playerId is required and value must be non-negative"))
		return
	}
	if err := h.leaderboard.SubmitScore(r.Context(), req.PlayerID, req.Value, chi.URLParam(r, "leaderboardId")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
