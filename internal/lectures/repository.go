package lectures

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/digi-kul/backend/internal/models"
)

// Repository handles lecture and enrollment persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a lecture repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new lecture.
func (r *Repository) Create(ctx context.Context, l *models.Lecture) error {
	const q = `INSERT INTO lectures (id, teacher_id, cohort_id, title, description, scheduled_time, duration_minutes)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, l.TeacherID, l.CohortID, l.Title, l.Description, l.ScheduledTime, l.DurationMin).
		Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
}

// GetByID returns a lecture by ID with the teacher's name.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Lecture, error) {
	const q = `SELECT l.id, l.teacher_id, l.cohort_id, l.title, l.description, l.scheduled_time, l.duration_minutes, l.created_at, l.updated_at, u.full_name
		FROM lectures l JOIN users u ON u.id = l.teacher_id WHERE l.id = $1`
	var l models.Lecture
	err := r.pool.QueryRow(ctx, q, id).Scan(&l.ID, &l.TeacherID, &l.CohortID, &l.Title, &l.Description, &l.ScheduledTime, &l.DurationMin, &l.CreatedAt, &l.UpdatedAt, &l.TeacherName)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListByTeacher returns lectures created by a teacher, newest first.
func (r *Repository) ListByTeacher(ctx context.Context, teacherID uuid.UUID) ([]models.Lecture, error) {
	const q = `SELECT l.id, l.teacher_id, l.cohort_id, l.title, l.description, l.scheduled_time, l.duration_minutes, l.created_at, l.updated_at, u.full_name
		FROM lectures l JOIN users u ON u.id = l.teacher_id
		WHERE l.teacher_id = $1 ORDER BY l.scheduled_time DESC`
	return r.queryLectures(ctx, q, teacherID)
}

// ListAvailable returns lectures a student can see: cohort lectures for
// cohorts they belong to, plus lectures with no cohort.
func (r *Repository) ListAvailable(ctx context.Context, studentID uuid.UUID) ([]models.Lecture, error) {
	const q = `SELECT l.id, l.teacher_id, l.cohort_id, l.title, l.description, l.scheduled_time, l.duration_minutes, l.created_at, l.updated_at, u.full_name
		FROM lectures l JOIN users u ON u.id = l.teacher_id
		WHERE l.cohort_id IS NULL
		   OR l.cohort_id IN (SELECT cohort_id FROM cohort_members WHERE student_id = $1)
		ORDER BY l.scheduled_time ASC`
	return r.queryLectures(ctx, q, studentID)
}

// ListEnrolled returns lectures the student has enrolled in.
func (r *Repository) ListEnrolled(ctx context.Context, studentID uuid.UUID) ([]models.Lecture, error) {
	const q = `SELECT l.id, l.teacher_id, l.cohort_id, l.title, l.description, l.scheduled_time, l.duration_minutes, l.created_at, l.updated_at, u.full_name
		FROM lectures l
		JOIN users u ON u.id = l.teacher_id
		JOIN enrollments e ON e.lecture_id = l.id
		WHERE e.student_id = $1 ORDER BY l.scheduled_time ASC`
	return r.queryLectures(ctx, q, studentID)
}

func (r *Repository) queryLectures(ctx context.Context, q string, args ...interface{}) ([]models.Lecture, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Lecture
	for rows.Next() {
		var l models.Lecture
		if err := rows.Scan(&l.ID, &l.TeacherID, &l.CohortID, &l.Title, &l.Description, &l.ScheduledTime, &l.DurationMin, &l.CreatedAt, &l.UpdatedAt, &l.TeacherName); err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

// Update updates lecture fields.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, title, description string, scheduledTime *time.Time, durationMin *int) error {
	const q = `UPDATE lectures SET title = $1, description = $2,
		scheduled_time = COALESCE($3, scheduled_time),
		duration_minutes = COALESCE($4, duration_minutes),
		updated_at = NOW() WHERE id = $5`
	_, err := r.pool.Exec(ctx, q, title, description, scheduledTime, durationMin, id)
	return err
}

// Delete removes a lecture by ID.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM lectures WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

// Enroll records a student enrollment. Enrolling twice is a no-op.
func (r *Repository) Enroll(ctx context.Context, studentID, lectureID uuid.UUID) error {
	const q = `INSERT INTO enrollments (student_id, lecture_id) VALUES ($1, $2)
		ON CONFLICT (student_id, lecture_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, q, studentID, lectureID)
	return err
}

// IsEnrolled returns true if the student has enrolled in the lecture.
func (r *Repository) IsEnrolled(ctx context.Context, studentID, lectureID uuid.UUID) (bool, error) {
	const q = `SELECT 1 FROM enrollments WHERE student_id = $1 AND lecture_id = $2`
	var exists int
	err := r.pool.QueryRow(ctx, q, studentID, lectureID).Scan(&exists)
	if err != nil {
		return false, nil
	}
	return true, nil
}
