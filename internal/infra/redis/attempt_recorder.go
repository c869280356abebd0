package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vudinhan2525/CamQuizz-sub002/internal/domain"
)

// AttemptRecorder pushes finished game records onto a Redis list, one list per
// quiz, for a downstream reporting consumer to drain:
//
//	LPUSH quiz:{quizID}:attempts {json}
type AttemptRecorder struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAttemptRecorder(client *redis.Client, ttl time.Duration) *AttemptRecorder {
	return &AttemptRecorder{client: client, ttl: ttl}
}

func (r *AttemptRecorder) RecordAttempt(ctx context.Context, attempt domain.Attempt) error {
	data, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	key := r.key(attempt.QuizID)
	pipe := r.client.Pipeline()
	pipe.LPush(ctx, key, data)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push attempt: %w", err)
	}
	return nil
}

func (r *AttemptRecorder) key(quizID string) string {
	return "quiz:" + quizID + ":attempts"
}
