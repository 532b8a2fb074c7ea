package polls

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/digi-kul/backend/internal/live"
	"github.com/digi-kul/backend/internal/middleware"
	"github.com/digi-kul/backend/internal/models"
)

// fakeStore keeps polls and votes in memory. Votes live in a map keyed by
// poll and student, so a repeat vote replaces the earlier one the same way
// the database upsert does.
type fakeStore struct {
	polls map[uuid.UUID]models.Poll
	votes map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{polls: make(map[uuid.UUID]models.Poll), votes: make(map[string]int)}
}

func (s *fakeStore) Create(_ context.Context, p *models.Poll) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	s.polls[p.ID] = *p
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Poll, error) {
	p, ok := s.polls[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	return &p, nil
}

func (s *fakeStore) ListByLecture(_ context.Context, lectureID uuid.UUID) ([]models.Poll, error) {
	var list []models.Poll
	for _, p := range s.polls {
		if p.LectureID == lectureID {
			list = append(list, p)
		}
	}
	return list, nil
}

func (s *fakeStore) Vote(_ context.Context, pollID, studentID uuid.UUID, optionIndex int) error {
	s.votes[pollID.String()+"|"+studentID.String()] = optionIndex
	return nil
}

func (s *fakeStore) Results(_ context.Context, poll *models.Poll) (*models.PollResults, error) {
	res := &models.PollResults{Poll: *poll, Counts: make([]int, len(poll.Options))}
	for _, idx := range s.votes {
		if idx >= 0 && idx < len(res.Counts) {
			res.Counts[idx]++
		}
		res.TotalVotes++
	}
	return res, nil
}

func newVoteRouter(t *testing.T, store *fakeStore, studentID uuid.UUID) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	registry := live.NewRegistry(time.Minute, nil)
	h := NewHandler(store, nil, registry, nil)

	router := gin.New()
	router.POST("/polls/:id/vote", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, studentID)
		h.Vote(c)
	})
	return router
}

func postVote(t *testing.T, router *gin.Engine, pollID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/polls/"+pollID+"/vote", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func seedPoll(t *testing.T, store *fakeStore, options ...string) uuid.UUID {
	t.Helper()
	p := &models.Poll{LectureID: uuid.New(), CreatedBy: uuid.New(), Question: "q", Options: options}
	require.NoError(t, store.Create(context.Background(), p))
	return p.ID
}

func TestVoteOverwritesPriorChoice(t *testing.T) {
	store := newFakeStore()
	studentID := uuid.New()
	router := newVoteRouter(t, store, studentID)
	pollID := seedPoll(t, store, "red", "green", "blue")

	w := postVote(t, router, pollID.String(), `{"option_index": 2}`)
	require.Equal(t, http.StatusOK, w.Code)

	// Second vote by the same student replaces the first, it does not add one.
	w = postVote(t, router, pollID.String(), `{"option_index": 0}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, store.votes, 1)
	require.Equal(t, 0, store.votes[pollID.String()+"|"+studentID.String()])
}

func TestVoteOutOfRangeRejected(t *testing.T) {
	store := newFakeStore()
	router := newVoteRouter(t, store, uuid.New())
	pollID := seedPoll(t, store, "yes", "no")

	for _, body := range []string{`{"option_index": 2}`, `{"option_index": -1}`} {
		w := postVote(t, router, pollID.String(), body)
		require.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	require.Empty(t, store.votes)
}

func TestVoteMissingOptionIndex(t *testing.T) {
	store := newFakeStore()
	router := newVoteRouter(t, store, uuid.New())
	pollID := seedPoll(t, store, "yes", "no")

	w := postVote(t, router, pollID.String(), `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVoteUnknownPoll(t *testing.T) {
	store := newFakeStore()
	router := newVoteRouter(t, store, uuid.New())

	w := postVote(t, router, uuid.NewString(), `{"option_index": 0}`)
	require.Equal(t, http.StatusNotFound, w.Code)
}
