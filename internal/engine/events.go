package engine

import (
	"time"

	"github.com/vudinhan2525/CamQuizz-sub002/internal/domain"
)

// EventType labels server-initiated events fanned out to a room.
type EventType string

const (
	EventParticipantJoined EventType = "participant_joined"
	EventParticipantLeft   EventType = "participant_left"
	EventQuestionStarted   EventType = "question_started"
	EventQuestionResult    EventType = "question_result"
	EventGameEnded         EventType = "game_ended"
)

// Event is one room-scoped broadcast message.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// EventSink receives room events in the order the engine produced them.
// Publish is called while the room lock is held, so implementations must only
// enqueue: the actual network send happens on the subscriber's own goroutine.
type EventSink interface {
	Publish(roomCode string, events ...Event)
}

// ParticipantJoinedPayload announces a new or rebound participant, with the
// full room view so late observers can resync.
type ParticipantJoinedPayload struct {
	Participant domain.ParticipantView `json:"participant"`
	Room        domain.RoomView        `json:"room"`
}

type ParticipantLeftPayload struct {
	ParticipantID string          `json:"participantId"`
	DisplayName   string          `json:"displayName"`
	Room          domain.RoomView `json:"room"`
}

// QuestionStartedPayload carries the sanitized question (no correct labels)
// and the wall-clock deadline participants must answer by.
type QuestionStartedPayload struct {
	Question domain.QuestionView `json:"question"`
	Deadline time.Time           `json:"deadline"`
}

// QuestionResultPayload is published once grading of a question completes.
// NextQuestion is nil on the final question.
type QuestionResultPayload struct {
	QuestionIndex int                  `json:"questionIndex"`
	QuestionID    string               `json:"questionId"`
	CorrectLabels []string             `json:"correctLabels"`
	Ranking       domain.Ranking       `json:"ranking"`
	NextQuestion  *domain.QuestionView `json:"nextQuestion"`
}

// EndReason says why a game ended.
type EndReason string

const (
	EndCompleted   EndReason = "completed"
	EndHostLeft    EndReason = "host_left"
	EndIdleTimeout EndReason = "idle_timeout"
)

type GameEndedPayload struct {
	Reason  EndReason      `json:"reason"`
	Ranking domain.Ranking `json:"ranking"`
}
