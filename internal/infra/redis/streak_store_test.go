package redis

import (
	"context"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"normalz-service/internal/domain"
	"normalz-service/internal/infra/memory"
)

type StreakStoreTestSuite struct {
	suite.Suite
	mr     *miniredis.Miniredis
	client *redis.Client
	store  *StreakStore
	board  *Leaderboard
}

func (s *StreakStoreTestSuite) SetupTest() {
	mr, err := miniredis.Run()
	s.Require().NoError(err)
	s.mr = mr
	s.client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s.store = NewStreakStore(s.client, 0)
	s.board = NewLeaderboard(s.client)
}

func (s *StreakStoreTestSuite) TearDownTest() {
	s.client.Close()
	s.mr.Close()
}

func TestStreakStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StreakStoreTestSuite))
}

func (s *StreakStoreTestSuite) TestUnknownPlayerIsZero() {
	state, err := s.store.Get(context.Background(), "nobody")
	s.Require().NoError(err)
	s.Equal(domain.StreakState{}, state)
}

func (s *StreakStoreTestSuite) TestConcurrentUpdatesAreSerialised() {
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Update(ctx, "p1", func(state *domain.StreakState) error {
				state.Current++
				if state.Current > state.AllTime {
					state.AllTime = state.Current
				}
				return nil
			})
			s.NoError(err)
		}()
	}
	wg.Wait()

	state, err := s.store.Get(ctx, "p1")
	s.Require().NoError(err)
	s.Equal(20, state.Current)
	s.Equal(20, state.AllTime)
	s.True(s.mr.Exists("normalz:streak:p1"))
}

func (s *StreakStoreTestSuite) TestLeaderboardTop() {
	ctx := context.Background()
	s.Require().NoError(s.board.SubmitScore(ctx, "alice", 3, "daily"))
	s.Require().NoError(s.board.SubmitScore(ctx, "bob", 8, "daily"))
	s.Require().NoError(s.board.SubmitScore(ctx, "carol", 5, "daily"))

	top, err := s.board.Top(ctx, "daily", 2)
	s.Require().NoError(err)
	s.Require().Len(top, 2)
	s.Equal(domain.LeaderboardEntry{Rank: 1, PlayerID: "bob", Score: 8}, top[0])
	s.Equal(domain.LeaderboardEntry{Rank: 2, PlayerID: "carol", Score: 5}, top[1])

	s.Require().NoError(s.board.SubmitScore(ctx, "bob", 0, "daily"))
	all, err := s.board.Top(ctx, "daily", 0)
	s.Require().NoError(err)
	s.Len(all, 3)
	s.Equal("bob", all[2].PlayerID)

	s.NoError(s.board.Ping(ctx))
}

func (s *StreakStoreTestSuite) TestLeaderboardTiesMatchMemoryOrder() {
	ctx := context.Background()
	redisBoard := s.board
	memBoard := memory.NewLeaderboard()
	scores := map[string]int{"dave": 4, "alice": 4, "erin": 9, "carol": 4, "bob": 2}
	for player, score := range scores {
		s.Require().NoError(redisBoard.SubmitScore(ctx, player, score, "weekly"))
		s.Require().NoError(memBoard.SubmitScore(ctx, player, score, "weekly"))
	}

	for _, limit := range []int{0, 1, 2, 3, 4} {
		got, err := redisBoard.Top(ctx, "weekly", limit)
		s.Require().NoError(err)
		want, err := memBoard.Top(ctx, "weekly", limit)
		s.Require().NoError(err)
		s.Equal(want, got, "limit %d", limit)
	}

	top, err := redisBoard.Top(ctx, "weekly", 3)
	s.Require().NoError(err)
	s.Equal([]string{"erin", "alice", "carol"}, []string{top[0].PlayerID, top[1].PlayerID, top[2].PlayerID})
}
