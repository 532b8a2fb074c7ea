package models

import (
	"time"

	"github.com/google/uuid"
)

// Cohort groups students under a teacher for a subject.
type Cohort struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Subject     string    `json:"subject"`
	TeacherID   uuid.UUID `json:"teacher_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// CohortMember links a student to a cohort.
type CohortMember struct {
	CohortID  uuid.UUID `json:"cohort_id"`
	StudentID uuid.UUID `json:"student_id"`
	AddedAt   time.Time `json:"added_at"`
}
