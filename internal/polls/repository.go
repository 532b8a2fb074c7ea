package polls

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/digi-kul/backend/internal/models"
)

// Repository handles poll persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a polls repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a poll.
func (r *Repository) Create(ctx context.Context, p *models.Poll) error {
	const q = `INSERT INTO polls (id, lecture_id, created_by, question, options)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, p.LectureID, p.CreatedBy, p.Question, p.Options).
		Scan(&p.ID, &p.CreatedAt)
}

// GetByID returns a poll by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Poll, error) {
	const q = `SELECT id, lecture_id, created_by, question, options, created_at FROM polls WHERE id = $1`
	var p models.Poll
	err := r.pool.QueryRow(ctx, q, id).Scan(&p.ID, &p.LectureID, &p.CreatedBy, &p.Question, &p.Options, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByLecture returns polls for a lecture, newest first.
func (r *Repository) ListByLecture(ctx context.Context, lectureID uuid.UUID) ([]models.Poll, error) {
	const q = `SELECT id, lecture_id, created_by, question, options, created_at
		FROM polls WHERE lecture_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, lectureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Poll
	for rows.Next() {
		var p models.Poll
		if err := rows.Scan(&p.ID, &p.LectureID, &p.CreatedBy, &p.Question, &p.Options, &p.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// Vote records a student's choice. A second vote overwrites the first.
func (r *Repository) Vote(ctx context.Context, pollID, studentID uuid.UUID, optionIndex int) error {
	const q = `INSERT INTO poll_votes (poll_id, student_id, option_index)
		VALUES ($1, $2, $3)
		ON CONFLICT (poll_id, student_id) DO UPDATE SET option_index = EXCLUDED.option_index, voted_at = NOW()`
	_, err := r.pool.Exec(ctx, q, pollID, studentID, optionIndex)
	return err
}

// Results returns per-option vote counts for a poll.
func (r *Repository) Results(ctx context.Context, poll *models.Poll) (*models.PollResults, error) {
	const q = `SELECT option_index, COUNT(*) FROM poll_votes WHERE poll_id = $1 GROUP BY option_index`
	rows, err := r.pool.Query(ctx, q, poll.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := &models.PollResults{Poll: *poll, Counts: make([]int, len(poll.Options))}
	for rows.Next() {
		var idx, count int
		if err := rows.Scan(&idx, &count); err != nil {
			return nil, err
		}
		if idx >= 0 && idx < len(res.Counts) {
			res.Counts[idx] = count
		}
		res.TotalVotes += count
	}
	return res, rows.Err()
}
