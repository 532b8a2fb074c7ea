package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionAttendance is one join/leave row for a live session participant.
type SessionAttendance struct {
	ID        uuid.UUID  `json:"id"`
	SessionID string     `json:"session_id"`
	LectureID uuid.UUID  `json:"lecture_id"`
	UserID    uuid.UUID  `json:"user_id"`
	UserName  string     `json:"user_name"`
	Role      Role       `json:"role"`
	JoinedAt  time.Time  `json:"joined_at"`
	LeftAt    *time.Time `json:"left_at,omitempty"`
}

// SessionArchive is the persisted summary of an ended live session.
// Live session state itself is in-memory only; this row is written by the
// background worker once the session ends.
type SessionArchive struct {
	ID               uuid.UUID `json:"id"`
	SessionID        string    `json:"session_id"`
	LectureID        uuid.UUID `json:"lecture_id"`
	TeacherID        uuid.UUID `json:"teacher_id"`
	Title            string    `json:"title"`
	StartedAt        time.Time `json:"started_at"`
	EndedAt          time.Time `json:"ended_at"`
	PeakParticipants int       `json:"peak_participants"`
	CreatedAt        time.Time `json:"created_at"`
}
