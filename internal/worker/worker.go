package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/digi-kul/backend/internal/models"
	"github.com/digi-kul/backend/internal/sessionlog"
	"github.com/digi-kul/backend/pkg/queue"
)

// SessionArchiveProcessor consumes session archive jobs and persists the
// summary row for each ended live session.
type SessionArchiveProcessor struct {
	repo   *sessionlog.Repository
	queue  *queue.Queue
	logger *zap.Logger
}

// NewSessionArchiveProcessor creates a session archive processor.
func NewSessionArchiveProcessor(repo *sessionlog.Repository, q *queue.Queue, logger *zap.Logger) *SessionArchiveProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionArchiveProcessor{repo: repo, queue: q, logger: logger}
}

// Process executes one session archive job.
func (p *SessionArchiveProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeSessionArchive {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.SessionArchivePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	archive := &models.SessionArchive{
		SessionID:        payload.SessionID,
		LectureID:        payload.LectureID,
		TeacherID:        payload.TeacherID,
		Title:            payload.Title,
		StartedAt:        payload.StartedAt,
		EndedAt:          payload.EndedAt,
		PeakParticipants: payload.PeakParticipants,
	}
	if err := p.repo.InsertArchive(ctx, archive); err != nil {
		return fmt.Errorf("insert archive: %w", err)
	}

	p.logger.Info("session archived",
		zap.String("session_id", payload.SessionID),
		zap.String("lecture_id", payload.LectureID.String()),
		zap.Int("peak_participants", payload.PeakParticipants))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *SessionArchiveProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("session archive worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
		}
	}
}
