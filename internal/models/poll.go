package models

import (
	"time"

	"github.com/google/uuid"
)

// Poll is a multiple-choice poll attached to a lecture.
type Poll struct {
	ID        uuid.UUID `json:"id"`
	LectureID uuid.UUID `json:"lecture_id"`
	CreatedBy uuid.UUID `json:"created_by"`
	Question  string    `json:"question"`
	Options   []string  `json:"options"`
	CreatedAt time.Time `json:"created_at"`
}

// PollVote is one student's vote. A student may vote once per poll;
// voting again overwrites the previous choice.
type PollVote struct {
	PollID      uuid.UUID `json:"poll_id"`
	StudentID   uuid.UUID `json:"student_id"`
	OptionIndex int       `json:"option_index"`
	VotedAt     time.Time `json:"voted_at"`
}

// PollResults aggregates votes per option.
type PollResults struct {
	Poll       Poll  `json:"poll"`
	Counts     []int `json:"counts"`
	TotalVotes int   `json:"total_votes"`
}
