package sessionlog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/digi-kul/backend/internal/models"
)

// Repository handles session attendance rows and session archives.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a sessionlog repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LogJoin inserts an attendance row with an open interval.
func (r *Repository) LogJoin(ctx context.Context, sessionID string, lectureID, userID uuid.UUID, userName string, role models.Role) error {
	const q = `INSERT INTO session_attendance (id, session_id, lecture_id, user_id, user_name, role, joined_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, NOW())`
	_, err := r.pool.Exec(ctx, q, sessionID, lectureID, userID, userName, role)
	return err
}

// LogLeave closes the most recent open attendance row for the user in the
// session. A leave without a matching join is a no-op.
func (r *Repository) LogLeave(ctx context.Context, sessionID string, userID uuid.UUID) error {
	const q = `UPDATE session_attendance SET left_at = NOW()
		WHERE id = (
			SELECT id FROM session_attendance
			WHERE session_id = $1 AND user_id = $2 AND left_at IS NULL
			ORDER BY joined_at DESC LIMIT 1
		)`
	_, err := r.pool.Exec(ctx, q, sessionID, userID)
	return err
}

// ListBySession returns attendance rows for a session, oldest first.
func (r *Repository) ListBySession(ctx context.Context, sessionID string) ([]models.SessionAttendance, error) {
	const q = `SELECT id, session_id, lecture_id, user_id, user_name, role, joined_at, left_at
		FROM session_attendance WHERE session_id = $1 ORDER BY joined_at ASC`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.SessionAttendance
	for rows.Next() {
		var a models.SessionAttendance
		if err := rows.Scan(&a.ID, &a.SessionID, &a.LectureID, &a.UserID, &a.UserName, &a.Role, &a.JoinedAt, &a.LeftAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// InsertArchive persists the summary of an ended session. Re-delivered jobs
// for the same session update the row instead of duplicating it.
func (r *Repository) InsertArchive(ctx context.Context, a *models.SessionArchive) error {
	const q = `INSERT INTO session_archives (id, session_id, lecture_id, teacher_id, title, started_at, ended_at, peak_participants)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id) DO UPDATE SET ended_at = EXCLUDED.ended_at, peak_participants = EXCLUDED.peak_participants
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, a.SessionID, a.LectureID, a.TeacherID, a.Title, a.StartedAt, a.EndedAt, a.PeakParticipants).
		Scan(&a.ID, &a.CreatedAt)
}

// ListArchivesByLecture returns archived sessions for a lecture, newest first.
func (r *Repository) ListArchivesByLecture(ctx context.Context, lectureID uuid.UUID) ([]models.SessionArchive, error) {
	const q = `SELECT id, session_id, lecture_id, teacher_id, title, started_at, ended_at, peak_participants, created_at
		FROM session_archives WHERE lecture_id = $1 ORDER BY started_at DESC`
	return r.queryArchives(ctx, q, lectureID)
}

// ListArchivesByTeacher returns archived sessions for a teacher, newest first.
func (r *Repository) ListArchivesByTeacher(ctx context.Context, teacherID uuid.UUID) ([]models.SessionArchive, error) {
	const q = `SELECT id, session_id, lecture_id, teacher_id, title, started_at, ended_at, peak_participants, created_at
		FROM session_archives WHERE teacher_id = $1 ORDER BY started_at DESC`
	return r.queryArchives(ctx, q, teacherID)
}

func (r *Repository) queryArchives(ctx context.Context, q string, args ...interface{}) ([]models.SessionArchive, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.SessionArchive
	for rows.Next() {
		var a models.SessionArchive
		if err := rows.Scan(&a.ID, &a.SessionID, &a.LectureID, &a.TeacherID, &a.Title, &a.StartedAt, &a.EndedAt, &a.PeakParticipants, &a.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// AttendeeSummary is one attendee with total watch time for a session.
type AttendeeSummary struct {
	UserID       uuid.UUID `json:"user_id"`
	UserName     string    `json:"user_name"`
	Role         string    `json:"role"`
	FirstJoined  time.Time `json:"first_joined"`
	WatchSeconds int64     `json:"watch_seconds"`
}

// Attendees aggregates attendance rows per user. Open intervals count up to
// now.
func (r *Repository) Attendees(ctx context.Context, sessionID string) ([]AttendeeSummary, error) {
	const q = `SELECT user_id, MIN(user_name), MIN(role), MIN(joined_at),
		COALESCE(SUM(EXTRACT(EPOCH FROM (COALESCE(left_at, NOW()) - joined_at)))::BIGINT, 0)
		FROM session_attendance WHERE session_id = $1
		GROUP BY user_id ORDER BY MIN(joined_at) ASC`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []AttendeeSummary
	for rows.Next() {
		var s AttendeeSummary
		if err := rows.Scan(&s.UserID, &s.UserName, &s.Role, &s.FirstJoined, &s.WatchSeconds); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}
