package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/vudinhan2525/CamQuizz-sub002/internal/domain"
)

// AttemptRecorder persists finished game records into quiz_attempts for the
// reporting side of the platform to pick up.
type AttemptRecorder struct {
	pool *pgxpool.Pool
}

func NewAttemptRecorder(pool *pgxpool.Pool) *AttemptRecorder {
	return &AttemptRecorder{pool: pool}
}

func (r *AttemptRecorder) RecordAttempt(ctx context.Context, attempt domain.Attempt) error {
	ranking, err := json.Marshal(attempt.Ranking)
	if err != nil {
		return fmt.Errorf("marshal ranking: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO quiz_attempts (room_code, quiz_id, host_id, questions, ranking, finished_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6)`,
		attempt.RoomCode, attempt.QuizID, attempt.HostID, attempt.Questions, ranking, attempt.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}
