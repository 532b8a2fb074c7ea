package cohorts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/digi-kul/backend/internal/models"
)

// Repository handles cohort and cohort_member persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a cohorts repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create creates a cohort.
func (r *Repository) Create(ctx context.Context, co *models.Cohort) error {
	const q = `INSERT INTO cohorts (id, name, description, subject, teacher_id)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, co.Name, co.Description, co.Subject, co.TeacherID).
		Scan(&co.ID, &co.CreatedAt)
}

// GetByID returns a cohort by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Cohort, error) {
	const q = `SELECT id, name, description, subject, teacher_id, created_at FROM cohorts WHERE id = $1`
	var co models.Cohort
	err := r.pool.QueryRow(ctx, q, id).Scan(&co.ID, &co.Name, &co.Description, &co.Subject, &co.TeacherID, &co.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &co, nil
}

// List returns all cohorts, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Cohort, error) {
	const q = `SELECT id, name, description, subject, teacher_id, created_at FROM cohorts ORDER BY created_at DESC`
	return r.queryCohorts(ctx, q)
}

// ListByTeacher returns cohorts assigned to a teacher.
func (r *Repository) ListByTeacher(ctx context.Context, teacherID uuid.UUID) ([]models.Cohort, error) {
	const q = `SELECT id, name, description, subject, teacher_id, created_at FROM cohorts WHERE teacher_id = $1 ORDER BY created_at DESC`
	return r.queryCohorts(ctx, q, teacherID)
}

// ListByStudent returns cohorts the student is a member of.
func (r *Repository) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]models.Cohort, error) {
	const q = `SELECT c.id, c.name, c.description, c.subject, c.teacher_id, c.created_at
		FROM cohorts c
		INNER JOIN cohort_members cm ON cm.cohort_id = c.id
		WHERE cm.student_id = $1 ORDER BY c.name`
	return r.queryCohorts(ctx, q, studentID)
}

func (r *Repository) queryCohorts(ctx context.Context, q string, args ...interface{}) ([]models.Cohort, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Cohort
	for rows.Next() {
		var co models.Cohort
		if err := rows.Scan(&co.ID, &co.Name, &co.Description, &co.Subject, &co.TeacherID, &co.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, co)
	}
	return list, rows.Err()
}

// AddStudent adds a student to a cohort. Adding twice is a no-op.
func (r *Repository) AddStudent(ctx context.Context, cohortID, studentID uuid.UUID) error {
	const q = `INSERT INTO cohort_members (cohort_id, student_id) VALUES ($1, $2)
		ON CONFLICT (cohort_id, student_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, q, cohortID, studentID)
	return err
}

// RemoveStudent removes a student from a cohort.
func (r *Repository) RemoveStudent(ctx context.Context, cohortID, studentID uuid.UUID) error {
	const q = `DELETE FROM cohort_members WHERE cohort_id = $1 AND student_id = $2`
	_, err := r.pool.Exec(ctx, q, cohortID, studentID)
	return err
}

// IsMember returns true if the student belongs to the cohort.
func (r *Repository) IsMember(ctx context.Context, cohortID, studentID uuid.UUID) (bool, error) {
	const q = `SELECT 1 FROM cohort_members WHERE cohort_id = $1 AND student_id = $2`
	var exists int
	err := r.pool.QueryRow(ctx, q, cohortID, studentID).Scan(&exists)
	if err != nil {
		return false, nil
	}
	return true, nil
}

// Member is one cohort member with user details.
type Member struct {
	StudentID   uuid.UUID `json:"student_id"`
	Email       string    `json:"email"`
	FullName    string    `json:"full_name"`
	Institution string    `json:"institution"`
	AddedAt     time.Time `json:"added_at"`
}

// ListMembers returns members of a cohort with user details.
func (r *Repository) ListMembers(ctx context.Context, cohortID uuid.UUID) ([]Member, error) {
	const q = `SELECT cm.student_id, u.email, COALESCE(u.full_name, ''), COALESCE(u.institution, ''), cm.added_at
		FROM cohort_members cm
		INNER JOIN users u ON u.id = cm.student_id
		WHERE cm.cohort_id = $1
		ORDER BY cm.added_at ASC`
	rows, err := r.pool.Query(ctx, q, cohortID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.StudentID, &m.Email, &m.FullName, &m.Institution, &m.AddedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
