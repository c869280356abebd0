package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRoomNotFound is returned when a room code does not match a live room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomClosed is returned when acting on a room that has finished.
	ErrRoomClosed = errors.New("room closed")
	// ErrUnauthorized is returned when a non-host calls a host-only command.
	ErrUnauthorized = errors.New("only the host may do this")
	// ErrAlreadyStarted is returned when StartGame is called outside the lobby.
	ErrAlreadyStarted = errors.New("game already started")
	// ErrParticipantNotFound is returned when a user tries to act before joining.
	ErrParticipantNotFound = errors.New("participant not found in room")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrEmptyQuiz rejects room creation for a quiz with no questions.
	ErrEmptyQuiz = errors.New("quiz has no questions")
	// ErrCodeExhaustion means no free room code was found after bounded retries.
	ErrCodeExhaustion = errors.New("room code space exhausted")
)

// RejectReason explains why an answer submission was refused.
type RejectReason string

const (
	RejectTooLate         RejectReason = "too_late"
	RejectAlreadyAnswered RejectReason = "already_answered"
	RejectUnknownQuestion RejectReason = "unknown_question"
)

// AnswerRejectedError marks a late, duplicate, or mismatched submission. It is
// acknowledged to the submitter only and never disturbs the broadcast stream.
type AnswerRejectedError struct {
	Reason RejectReason
}

func (e *AnswerRejectedError) Error() string {
	return fmt.Sprintf("answer rejected: %s", e.Reason)
}
