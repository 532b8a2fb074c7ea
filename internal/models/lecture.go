package models

import (
	"time"

	"github.com/google/uuid"
)

// Lecture represents a scheduled lecture owned by a teacher.
type Lecture struct {
	ID            uuid.UUID  `json:"id"`
	TeacherID     uuid.UUID  `json:"teacher_id"`
	CohortID      *uuid.UUID `json:"cohort_id,omitempty"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	ScheduledTime time.Time  `json:"scheduled_time"`
	DurationMin   int        `json:"duration_minutes"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Derived fields, not stored.
	TeacherName   string `json:"teacher_name,omitempty"`
	SessionActive bool   `json:"session_active"`
}

// Enrollment links a student to a lecture.
type Enrollment struct {
	ID         uuid.UUID `json:"id"`
	StudentID  uuid.UUID `json:"student_id"`
	LectureID  uuid.UUID `json:"lecture_id"`
	EnrolledAt time.Time `json:"enrolled_at"`
}
