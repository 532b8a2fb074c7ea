package live

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/digi-kul/backend/internal/models"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *captureSink) Deliver(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return true
}

func newTestRegistry(t *testing.T, delay time.Duration) *Registry {
	t.Helper()
	return NewRegistry(delay, zap.NewNop())
}

func startSession(t *testing.T, r *Registry, sessionID string) {
	t.Helper()
	require.NoError(t, r.Start(sessionID, "lec-1", "teacher-1", "Ms. Rao", "Algebra"))
}

func TestStartDuplicateSession(t *testing.T) {
	r := newTestRegistry(t, time.Minute)
	startSession(t, r, "s1")
	require.ErrorIs(t, r.Start("s1", "lec-1", "teacher-1", "Ms. Rao", "Algebra"), ErrSessionExists)
}

func TestJoinUnknownSession(t *testing.T) {
	r := newTestRegistry(t, time.Minute)
	_, err := r.Join("missing", "u1", models.RoleStudent, "A", &captureSink{})
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestJoinCountsAndOverwrite(t *testing.T) {
	r := newTestRegistry(t, time.Minute)
	startSession(t, r, "s1")

	count, err := r.Join("s1", "u1", models.RoleStudent, "A", &captureSink{})
	require.NoError(t, err)
	require.Equal(t, 1, count)

	count, err = r.Join("s1", "u2", models.RoleStudent, "B", &captureSink{})
	require.NoError(t, err)
	require.Equal(t, 2, count)

	// Re-join of the same user replaces the membership, count unchanged.
	replacement := &captureSink{}
	count, err = r.Join("s1", "u1", models.RoleStudent, "A", replacement)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	sink, ok := r.Resolve("s1", "u1")
	require.True(t, ok)
	require.Same(t, Sink(replacement), sink)
}

func TestLeaveNonMemberIsNoOp(t *testing.T) {
	r := newTestRegistry(t, time.Minute)
	startSession(t, r, "s1")
	_, err := r.Join("s1", "u1", models.RoleStudent, "A", &captureSink{})
	require.NoError(t, err)

	count, left, ended := r.Leave("s1", "ghost")
	require.Equal(t, 1, count)
	require.False(t, left)
	require.False(t, ended)

	count, left, ended = r.Leave("missing", "u1")
	require.Equal(t, 0, count)
	require.False(t, left)
	require.False(t, ended)
}

func TestLastLeaveEndsSessionOnce(t *testing.T) {
	r := newTestRegistry(t, time.Minute)
	startSession(t, r, "s1")
	_, err := r.Join("s1", "u1", models.RoleStudent, "A", &captureSink{})
	require.NoError(t, err)
	_, err = r.Join("s1", "u2", models.RoleStudent, "B", &captureSink{})
	require.NoError(t, err)

	count, left, ended := r.Leave("s1", "u1")
	require.Equal(t, 1, count)
	require.True(t, left)
	require.False(t, ended)

	count, left, ended = r.Leave("s1", "u2")
	require.Equal(t, 0, count)
	require.True(t, left)
	require.True(t, ended)

	sess, ok := r.Get("s1")
	require.True(t, ok)
	require.Equal(t, StatusEnded, sess.Status)

	// A second leave does not observe the transition again.
	_, left, ended = r.Leave("s1", "u2")
	require.False(t, left)
	require.False(t, ended)
}

func TestEndedHookFiresOnce(t *testing.T) {
	r := newTestRegistry(t, time.Minute)
	var mu sync.Mutex
	fired := 0
	r.SetEndedHook(func(sess Session) {
		mu.Lock()
		fired++
		mu.Unlock()
	})
	startSession(t, r, "s1")
	_, err := r.Join("s1", "u1", models.RoleStudent, "A", &captureSink{})
	require.NoError(t, err)

	r.Leave("s1", "u1")
	r.Leave("s1", "u1")

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, fired)
}

func TestCleanupRemovesSessionAndParticipants(t *testing.T) {
	r := newTestRegistry(t, 20*time.Millisecond)
	startSession(t, r, "s1")
	_, err := r.Join("s1", "u1", models.RoleStudent, "A", &captureSink{})
	require.NoError(t, err)
	r.Leave("s1", "u1")

	require.Eventually(t, func() bool {
		_, ok := r.Get("s1")
		return !ok
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 0, r.Count("s1"))
	_, ok := r.Resolve("s1", "u1")
	require.False(t, ok)
}

func TestJoinAfterEndResurrectsSession(t *testing.T) {
	r := newTestRegistry(t, 50*time.Millisecond)
	startSession(t, r, "s1")
	_, err := r.Join("s1", "u1", models.RoleStudent, "A", &captureSink{})
	require.NoError(t, err)
	_, _, ended := r.Leave("s1", "u1")
	require.True(t, ended)

	// Join lands inside the cleanup grace period: session goes active again
	// and the pending removal is cancelled.
	count, err := r.Join("s1", "u2", models.RoleStudent, "B", &captureSink{})
	require.NoError(t, err)
	require.Equal(t, 1, count)

	sess, ok := r.Get("s1")
	require.True(t, ok)
	require.Equal(t, StatusActive, sess.Status)

	time.Sleep(100 * time.Millisecond)
	_, ok = r.Get("s1")
	require.True(t, ok)
}

func TestStaleCleanupTimerSparesResurrectedSession(t *testing.T) {
	r := newTestRegistry(t, time.Hour)
	startSession(t, r, "s1")
	_, err := r.Join("s1", "u1", models.RoleStudent, "A", &captureSink{})
	require.NoError(t, err)
	_, _, ended := r.Leave("s1", "u1")
	require.True(t, ended)

	// Rescue the session, then simulate the armed timer callback running
	// late: it already fired before Join could stop it, and only now gets
	// the lock. The resurrected session must survive.
	_, err = r.Join("s1", "u2", models.RoleStudent, "B", &captureSink{})
	require.NoError(t, err)
	r.removeIfStillEnded("s1", 1)

	sess, ok := r.Get("s1")
	require.True(t, ok)
	require.Equal(t, StatusActive, sess.Status)
	require.Equal(t, 1, r.Count("s1"))
}

func TestJoinRacingCleanupKeepsSession(t *testing.T) {
	r := newTestRegistry(t, time.Millisecond)
	for i := 0; i < 25; i++ {
		sid := "s" + string(rune('a'+i))
		require.NoError(t, r.Start(sid, "lec-1", "teacher-1", "Ms. Rao", "Algebra"))
		_, err := r.Join(sid, "u1", models.RoleStudent, "A", &captureSink{})
		require.NoError(t, err)
		r.Leave(sid, "u1")

		// Land the join right around the moment the cleanup timer fires.
		time.Sleep(time.Millisecond)
		if _, err := r.Join(sid, "u2", models.RoleStudent, "B", &captureSink{}); err != nil {
			// Cleanup won outright before the join, which is fine.
			continue
		}
		time.Sleep(5 * time.Millisecond)
		_, ok := r.Get(sid)
		require.True(t, ok, "session removed after a successful rescuing join")
	}
}

func TestPeakParticipants(t *testing.T) {
	r := newTestRegistry(t, time.Minute)
	startSession(t, r, "s1")
	for _, id := range []string{"u1", "u2", "u3"} {
		_, err := r.Join("s1", id, models.RoleStudent, id, &captureSink{})
		require.NoError(t, err)
	}
	r.Leave("s1", "u3")
	r.Leave("s1", "u2")

	sess, ok := r.Get("s1")
	require.True(t, ok)
	require.Equal(t, 3, sess.PeakParticipants)
}

func TestParticipantsOrderedByJoinTime(t *testing.T) {
	r := newTestRegistry(t, time.Minute)
	startSession(t, r, "s1")
	_, err := r.Join("s1", "u1", models.RoleTeacher, "T", &captureSink{})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = r.Join("s1", "u2", models.RoleStudent, "S", &captureSink{})
	require.NoError(t, err)

	list := r.Participants("s1")
	require.Len(t, list, 2)
	require.Equal(t, "u1", list[0].UserID)
	require.Equal(t, "u2", list[1].UserID)
}

func TestActiveSessionForLecture(t *testing.T) {
	r := newTestRegistry(t, time.Minute)
	startSession(t, r, "s1")

	id, ok := r.ActiveSessionForLecture("lec-1")
	require.True(t, ok)
	require.Equal(t, "s1", id)

	_, ok = r.ActiveSessionForLecture("lec-2")
	require.False(t, ok)

	require.True(t, r.ActiveLectureIDs()["lec-1"])
}
