package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"normalz-service/internal/app"
	"normalz-service/internal/config"
	"normalz-service/internal/infra/memory"
	redisstore "normalz-service/internal/infra/redis"
	transport "normalz-service/internal/transport/http"
)

func TestOpenBackendsDefaultsToMemory(t *testing.T) {
	ctx := context.Background()
	b, err := openBackends(ctx, config.Default())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer b.Close()

	if _, ok := b.questions.(*memory.QuestionStore); !ok || b.persistent {
		t.Fatalf("expected in-memory questions, got %T", b.questions)
	}
	if err := seedQuestions(ctx, b.questions); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ids, _ := b.questions.ActiveIDs(ctx)
	if len(ids) != len(sampleQuestions()) {
		t.Fatalf("expected seeded pool, got %d", len(ids))
	}
	if err := seedQuestions(ctx, b.questions); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if again, _ := b.questions.ActiveIDs(ctx); len(again) != len(ids) {
		t.Fatalf("seeding must only fill an empty pool")
	}
}

func TestOpenBackendsUsesRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Redis.Addr = mr.Addr()

	b, err := openBackends(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer b.Close()

	if _, ok := b.questions.(*redisstore.QuestionStore); !ok || !b.persistent {
		t.Fatalf("expected redis questions, got %T", b.questions)
	}
	if _, ok := b.streaks.(*redisstore.StreakStore); !ok {
		t.Fatalf("expected redis streaks, got %T", b.streaks)
	}
	if err := b.handshake(context.Background()); err != nil {
		t.Fatalf("handshake: %v", err)
	}
}

func TestPlayRound(t *testing.T) {
	ctx := context.Background()
	questions := memory.NewQuestionStore()
	if _, err := questions.Create(ctx, "Cats or dogs?", []string{"Cats", "Dogs"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	pool := memory.NewPoolCache(questions, time.Minute)
	board := memory.NewLeaderboard()
	game := app.NewGameService(questions, app.NewSelector(pool), nil)
	srv := httptest.NewServer(transport.NewHandler(transport.Options{Game: game, Leaderboard: board}).Router())
	defer srv.Close()

	cfg := config.Default()
	cfg.Client.BaseURL = srv.URL
	cfg.Client.DataPath = ":memory:"

	var out bytes.Buffer
	if err := runPlay(ctx, cfg, "p1", strings.NewReader("2\nq\n"), &out); err != nil {
		t.Fatalf("play: %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "Cats or dogs?") || !strings.Contains(text, "You are normal!") {
		t.Fatalf("unexpected transcript:\n%s", text)
	}
	if !strings.Contains(text, "Streak 1 | today 1 | this week 1 | best 1") {
		t.Fatalf("expected local streak to advance:\n%s", text)
	}

	q, _ := game.NextQuestion(ctx, "")
	if q.Count("Dogs") != 1 || q.TotalAnswers != 1 {
		t.Fatalf("expected the server tally to record the vote, got %+v", q.AnswerCounts)
	}
}

func TestPlayRetryAfterLostResponseRecordsStreak(t *testing.T) {
	ctx := context.Background()
	questions := memory.NewQuestionStore()
	if _, err := questions.Create(ctx, "Cats or dogs?", []string{"Cats", "Dogs"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	pool := memory.NewPoolCache(questions, time.Minute)
	game := app.NewGameService(questions, app.NewSelector(pool), nil)
	router := transport.NewHandler(transport.Options{Game: game, Leaderboard: memory.NewLeaderboard()}).Router()

	// The first submit is committed on the server but the client only sees a 502.
	var posts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && atomic.AddInt32(&posts, 1) == 1 {
			router.ServeHTTP(httptest.NewRecorder(), r)
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		router.ServeHTTP(w, r)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Client.BaseURL = srv.URL
	cfg.Client.DataPath = ":memory:"

	var out bytes.Buffer
	if err := runPlay(ctx, cfg, "p1", strings.NewReader("2\nq\n"), &out); err != nil {
		t.Fatalf("play: %v", err)
	}

	if n := atomic.LoadInt32(&posts); n != 2 {
		t.Fatalf("expected one retry, got %d posts", n)
	}
	q, _ := game.Question(ctx, mustOnlyID(t, questions))
	if q.TotalAnswers != 1 {
		t.Fatalf("retry must not count twice, got %d", q.TotalAnswers)
	}
	if text := out.String(); !strings.Contains(text, "Streak 1 | today 1 | this week 1 | best 1") {
		t.Fatalf("expected local streak to advance after retry:\n%s", text)
	}
}

func mustOnlyID(t *testing.T, questions *memory.QuestionStore) string {
	t.Helper()
	ids, err := questions.ActiveIDs(context.Background())
	if err != nil || len(ids) != 1 {
		t.Fatalf("expected one question, got %v (%v)", ids, err)
	}
	return ids[0]
}
