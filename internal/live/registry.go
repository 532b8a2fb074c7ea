package live

import (
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/digi-kul/backend/internal/models"
)

// Status is the lifecycle state of a live session.
type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// Session is the in-memory record of one live-lecture session.
type Session struct {
	ID               string    `json:"session_id"`
	LectureID        string    `json:"lecture_id"`
	TeacherID        string    `json:"teacher_id"`
	TeacherName      string    `json:"teacher_name"`
	Title            string    `json:"lecture_title"`
	Status           Status    `json:"status"`
	StartedAt        time.Time `json:"started_at"`
	Recordings       []string  `json:"recordings"`
	PeakParticipants int       `json:"peak_participants"`
}

// Participant is one user's presence in a session. A user holds at most one
// membership per session; re-join overwrites.
type Participant struct {
	UserID   string      `json:"user_id"`
	Name     string      `json:"user_name"`
	Role     models.Role `json:"user_type"`
	JoinedAt time.Time   `json:"joined_at"`
	sink     Sink
}

// PresenceFunc is called after a participant joins or leaves a session.
type PresenceFunc func(sess Session, p Participant)

// EndedFunc is called exactly once when the last participant leaves and the
// session transitions to ended.
type EndedFunc func(sess Session)

// Registry owns all live-session state: the session map, the per-session
// participant maps and the deferred-cleanup timers. One mutex guards all three
// so that session and participant entries are always created and removed
// together, and leave→maybe-end transitions are atomic across connections.
type Registry struct {
	mu           sync.Mutex
	sessions     map[string]*Session
	participants map[string]map[string]*Participant
	timers       map[string]*time.Timer
	cleanupGen   map[string]uint64
	cleanupDelay time.Duration
	logger       *zap.Logger

	onJoin  PresenceFunc
	onLeave PresenceFunc
	onEnded EndedFunc
}

// NewRegistry creates a live-session registry. cleanupDelay is the grace
// period between a session ending and its removal.
func NewRegistry(cleanupDelay time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions:     make(map[string]*Session),
		participants: make(map[string]map[string]*Participant),
		timers:       make(map[string]*time.Timer),
		cleanupGen:   make(map[string]uint64),
		cleanupDelay: cleanupDelay,
		logger:       logger,
	}
}

// SetPresenceHooks sets the join/leave callbacks (e.g. attendance logging).
func (r *Registry) SetPresenceHooks(onJoin, onLeave PresenceFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onJoin = onJoin
	r.onLeave = onLeave
}

// SetEndedHook sets the callback fired when a session ends (e.g. archival).
func (r *Registry) SetEndedHook(fn EndedFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEnded = fn
}

// Start registers a new session. Fails with ErrSessionExists if the id is taken.
func (r *Registry) Start(sessionID, lectureID, teacherID, teacherName, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; ok {
		return ErrSessionExists
	}
	r.sessions[sessionID] = &Session{
		ID:          sessionID,
		LectureID:   lectureID,
		TeacherID:   teacherID,
		TeacherName: teacherName,
		Title:       title,
		Status:      StatusActive,
		StartedAt:   time.Now(),
		Recordings:  []string{},
	}
	r.participants[sessionID] = make(map[string]*Participant)
	r.logger.Info("live session started",
		zap.String("session_id", sessionID), zap.String("lecture_id", lectureID))
	return nil
}

// Get returns a snapshot of the session, if registered.
func (r *Registry) Get(sessionID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// ActiveSessionForLecture returns the id of the active session for a lecture.
func (r *Registry) ActiveSessionForLecture(lectureID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.LectureID == lectureID && s.Status == StatusActive {
			return id, true
		}
	}
	return "", false
}

// ActiveLectureIDs returns the set of lecture ids with an active session,
// for decorating lecture listings.
func (r *Registry) ActiveLectureIDs() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]bool)
	for _, s := range r.sessions {
		if s.Status == StatusActive {
			out[s.LectureID] = true
		}
	}
	return out
}

// Join records a membership and returns the new participant count.
// The session must be registered. Re-join overwrites the prior membership.
// A join that lands after the session ended but before its deferred removal
// resurrects the session to active and cancels the pending cleanup.
func (r *Registry) Join(sessionID, userID string, role models.Role, name string, sink Sink) (int, error) {
	r.mu.Lock()
	sess, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return 0, ErrSessionNotFound
	}
	if sess.Status == StatusEnded {
		if t, ok := r.timers[sessionID]; ok {
			t.Stop()
			delete(r.timers, sessionID)
		}
		sess.Status = StatusActive
		r.logger.Info("session resurrected by join", zap.String("session_id", sessionID))
	}
	p := &Participant{UserID: userID, Name: name, Role: role, JoinedAt: time.Now(), sink: sink}
	r.participants[sessionID][userID] = p
	count := len(r.participants[sessionID])
	if count > sess.PeakParticipants {
		sess.PeakParticipants = count
	}
	snap := *sess
	onJoin := r.onJoin
	r.mu.Unlock()

	if onJoin != nil {
		onJoin(snap, *p)
	}
	r.logger.Debug("participant joined",
		zap.String("session_id", sessionID), zap.String("user_id", userID), zap.Int("count", count))
	return count, nil
}

// Leave removes a membership. Returns the remaining count, whether a
// membership was actually removed, and whether this call ended the session.
// Leaving a non-member is a no-op. Exactly one caller observes ended=true for
// a given active→ended transition.
func (r *Registry) Leave(sessionID, userID string) (count int, left bool, ended bool) {
	r.mu.Lock()
	members, ok := r.participants[sessionID]
	if !ok {
		r.mu.Unlock()
		return 0, false, false
	}
	p, ok := members[userID]
	if !ok {
		count = len(members)
		r.mu.Unlock()
		return count, false, false
	}
	delete(members, userID)
	count = len(members)

	sess := r.sessions[sessionID]
	var snap Session
	if sess != nil {
		if count == 0 && sess.Status == StatusActive {
			sess.Status = StatusEnded
			ended = true
			r.scheduleCleanupLocked(sessionID)
		}
		snap = *sess
	}
	onLeave := r.onLeave
	onEnded := r.onEnded
	r.mu.Unlock()

	if onLeave != nil && sess != nil {
		onLeave(snap, *p)
	}
	if ended && onEnded != nil {
		onEnded(snap)
	}
	r.logger.Debug("participant left",
		zap.String("session_id", sessionID), zap.String("user_id", userID),
		zap.Int("count", count), zap.Bool("ended", ended))
	return count, true, ended
}

// scheduleCleanupLocked arms the deferred removal timer. Caller holds r.mu.
// The callback is guarded by a generation counter: a timer that has already
// fired when a rescuing join stops it must not remove the resurrected session
// once it acquires the lock.
func (r *Registry) scheduleCleanupLocked(sessionID string) {
	if t, ok := r.timers[sessionID]; ok {
		t.Stop()
	}
	r.cleanupGen[sessionID]++
	gen := r.cleanupGen[sessionID]
	r.timers[sessionID] = time.AfterFunc(r.cleanupDelay, func() {
		r.removeIfStillEnded(sessionID, gen)
	})
}

// removeIfStillEnded deletes the session only if it is still ended and the
// firing timer is the latest one armed for it.
func (r *Registry) removeIfStillEnded(sessionID string, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[sessionID]
	if !ok || sess.Status != StatusEnded || r.cleanupGen[sessionID] != gen {
		return
	}
	r.removeLocked(sessionID)
}

// Count returns the participant count, zero if the session is untracked.
func (r *Registry) Count(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants[sessionID])
}

// Participants returns a snapshot of current members ordered by join time.
func (r *Registry) Participants(sessionID string) []Participant {
	r.mu.Lock()
	list := lo.Map(lo.Values(r.participants[sessionID]), func(p *Participant, _ int) Participant {
		return *p
	})
	r.mu.Unlock()
	sort.Slice(list, func(i, j int) bool { return list[i].JoinedAt.Before(list[j].JoinedAt) })
	return list
}

// Resolve returns the target participant's transport sink. Delivery always
// goes through this lookup; handles are never guessed.
func (r *Registry) Resolve(sessionID, userID string) (Sink, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[sessionID][userID]
	if !ok {
		return nil, false
	}
	return p.sink, true
}

// sinks returns the sinks of all current members except excludeUserID.
func (r *Registry) sinks(sessionID, excludeUserID string) []Sink {
	r.mu.Lock()
	defer r.mu.Unlock()
	members := r.participants[sessionID]
	out := make([]Sink, 0, len(members))
	for id, p := range members {
		if excludeUserID != "" && id == excludeUserID {
			continue
		}
		out = append(out, p.sink)
	}
	return out
}

// MarkEnded transitions a session to ended. No-op if the session is absent.
func (r *Registry) MarkEnded(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		s.Status = StatusEnded
	}
}

// Remove deletes the session, its participants and any pending cleanup timer
// together. Idempotent.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(sessionID)
}

func (r *Registry) removeLocked(sessionID string) {
	if t, ok := r.timers[sessionID]; ok {
		t.Stop()
		delete(r.timers, sessionID)
	}
	if _, ok := r.sessions[sessionID]; ok {
		r.logger.Info("live session removed", zap.String("session_id", sessionID))
	}
	delete(r.sessions, sessionID)
	delete(r.participants, sessionID)
	delete(r.cleanupGen, sessionID)
}
