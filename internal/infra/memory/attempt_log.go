package memory

import (
	"context"
	"log"
	"sync"

	"github.com/vudinhan2525/CamQuizz-sub002/internal/domain"
)

// AttemptLog is an in-memory engine.AttemptRecorder: it keeps finished game
// records around for inspection and logs them. Default sink when no durable
// store is configured.
type AttemptLog struct {
	mu       sync.Mutex
	attempts []domain.Attempt
}

func NewAttemptLog() *AttemptLog {
	return &AttemptLog{}
}

func (l *AttemptLog) RecordAttempt(_ context.Context, attempt domain.Attempt) error {
	l.mu.Lock()
	l.attempts = append(l.attempts, attempt)
	l.mu.Unlock()
	log.Printf("attempt recorded: room=%s quiz=%s participants=%d", attempt.RoomCode, attempt.QuizID, len(attempt.Ranking.Entries))
	return nil
}

// Attempts returns a copy of everything recorded so far.
func (l *AttemptLog) Attempts() []domain.Attempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Attempt, len(l.attempts))
	copy(out, l.attempts)
	return out
}
