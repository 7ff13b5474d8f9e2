package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"emperror.dev/errors"

	"normalz-service/internal/app"
	"normalz-service/internal/domain"
	"normalz-service/internal/infra/memory"
)

type testServer struct {
	*httptest.Server
	questions *memory.QuestionStore
	gate      *app.LeaderboardGate
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	questions := memory.NewQuestionStore()
	pool := memory.NewPoolCache(questions, time.Minute)
	gate := app.NewLeaderboardGate(memory.NewLeaderboard())
	streaks := app.NewStreakService(memory.NewStreakStore(), app.NewStreakTracker(nil, time.Sunday), gate, nil)
	game := app.NewGameService(questions, app.NewSelector(pool), streaks).WithPoolInvalidator(pool)

	h := NewHandler(Options{Game: game, Streaks: streaks, Leaderboard: gate})
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, questions: questions, gate: gate}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, s.URL+path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body) //nolint:errcheck
	return resp, buf.Bytes()
}

func TestFetchAndSubmit(t *testing.T) {
	srv := newTestServer(t)

	resp, body := srv.do(t, http.MethodGet, DefaultEndpoint, nil)
	if resp.StatusCode != http.StatusServiceUnavailable || !strings.Contains(string(body), ErrCodePoolEmpty) {
		t.Fatalf("expected 503 pool empty, got %d %s", resp.StatusCode, body)
	}

	resp, body = srv.do(t, http.MethodPost, "/questions", map[string]interface{}{"prompt": "Cats or dogs?", "options": []string{"cats", "dogs"}})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", resp.StatusCode, body)
	}
	var created questionResponse
	_ = json.Unmarshal(body, &created)

	resp, body = srv.do(t, http.MethodGet, DefaultEndpoint, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", resp.StatusCode, body)
	}
	var fetched map[string]interface{}
	_ = json.Unmarshal(body, &fetched)
	if fetched["questionId"] != created.QuestionID || fetched["totalAnswers"].(float64) != 0 {
		t.Fatalf("unexpected fetch body %s", body)
	}
	if _, ok := fetched["answerCounts"].(map[string]interface{}); !ok {
		t.Fatalf("answerCounts must always be an object: %s", body)
	}

	resp, body = srv.do(t, http.MethodPost, DefaultEndpoint, submitRequest{QuestionID: created.QuestionID, SelectedOption: "dogs", PlayerID: "p1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", resp.StatusCode, body)
	}
	var submitted submitResponse
	if err := json.Unmarshal(body, &submitted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if submitted.Message == "" || submitted.Outcome != domain.OutcomeWin || submitted.NewTotal != 1 || submitted.NewAnswerCounts["dogs"] != 1 {
		t.Fatalf("unexpected submit body %s", body)
	}
	if submitted.Streak == nil || submitted.Streak.Current != 1 {
		t.Fatalf("expected streak in response, got %s", body)
	}
}

func TestSubmitErrorMapping(t *testing.T) {
	srv := newTestServer(t)
	q, _ := srv.questions.Create(context.Background(), "", []string{"A", "B"})

	cases := []struct {
		name   string
		body   interface{}
		status int
		code   string
	}{
		{"missing option", submitRequest{QuestionID: q.ID}, http.StatusBadRequest, ErrCodeBadRequest},
		{"unknown option", submitRequest{QuestionID: q.ID, SelectedOption: "Z"}, http.StatusBadRequest, ErrCodeUnknownOption},
		{"unknown question", submitRequest{QuestionID: "nope", SelectedOption: "A"}, http.StatusNotFound, ErrCodeNotFound},
	}
	for _, tc := range cases {
		resp, body := srv.do(t, http.MethodPost, DefaultEndpoint, tc.body)
		if resp.StatusCode != tc.status || !strings.Contains(string(body), tc.code) {
			t.Fatalf("%s: expected %d %s, got %d %s", tc.name, tc.status, tc.code, resp.StatusCode, body)
		}
	}

	resp, _ := srv.do(t, http.MethodPost, "/questions", map[string]interface{}{"options": []string{"only"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid options, got %d", resp.StatusCode)
	}
}

func TestToAPIErrorHidesInternalErrors(t *testing.T) {
	apiErr := ToAPIError(errors.WithDetails(domain.ErrIntegrity, "question_id", "q1"))
	if apiErr.Status != http.StatusInternalServerError || apiErr.Message != "Internal server error" {
		t.Fatalf("unexpected mapping %+v", apiErr)
	}
	apiErr = ToAPIError(errors.WrapIf(domain.ErrContention, "apply vote"))
	if apiErr.Status != http.StatusServiceUnavailable || apiErr.Code != ErrCodeContention {
		t.Fatalf("unexpected mapping %+v", apiErr)
	}
}

func TestStreakAndLeaderboardRoutes(t *testing.T) {
	srv := newTestServer(t)
	q, _ := srv.questions.Create(context.Background(), "", []string{"A", "B"})

	resp, body := srv.do(t, http.MethodGet, "/leaderboards/allTimeLeaderboardID", nil)
	if resp.StatusCode != http.StatusServiceUnavailable || !strings.Contains(string(body), ErrCodeNotAuthenticated) {
		t.Fatalf("expected gate to refuse reads, got %d %s", resp.StatusCode, body)
	}
	srv.gate.MarkAuthenticated()

	srv.do(t, http.MethodPost, DefaultEndpoint, submitRequest{QuestionID: q.ID, SelectedOption: "A", PlayerID: "p1"})
	srv.do(t, http.MethodPost, DefaultEndpoint, submitRequest{QuestionID: q.ID, SelectedOption: "A", PlayerID: "p1"})

	resp, body = srv.do(t, http.MethodGet, "/players/p1/streak", nil)
	var streak streakResponse
	_ = json.Unmarshal(body, &streak)
	if resp.StatusCode != http.StatusOK || streak.Current != 2 || streak.AllTime != 2 {
		t.Fatalf("unexpected streak %d %s", resp.StatusCode, body)
	}

	resp, _ = srv.do(t, http.MethodPut, "/leaderboards/allTimeLeaderboardID/scores", submitScoreRequest{PlayerID: "p2", Value: 5})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	resp, body = srv.do(t, http.MethodGet, "/leaderboards/allTimeLeaderboardID?limit=5", nil)
	var board leaderboardResponse
	_ = json.Unmarshal(body, &board)
	if resp.StatusCode != http.StatusOK || len(board.Entries) != 2 || board.Entries[0].PlayerID != "p2" || board.Entries[1].Score != 2 {
		t.Fatalf("unexpected leaderboard %d %s", resp.StatusCode, body)
	}

	resp, _ = srv.do(t, http.MethodPost, "/players/p1/resets", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for resets, got %d", resp.StatusCode)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)
	resp, body := srv.do(t, http.MethodGet, "/healthz", nil)
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected health %d %s", resp.StatusCode, body)
	}
	srv.do(t, http.MethodGet, DefaultEndpoint, nil)
	resp, body = srv.do(t, http.MethodGet, "/metrics", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "normalz_http_requests_total") {
		t.Fatalf("expected request metrics, got %d", resp.StatusCode)
	}
}
