package ws

import "encoding/json"

// Client -> server command types.
const (
	CommandCreateRoom   = "create_room"
	CommandJoinRoom     = "join_room"
	CommandLeaveRoom    = "leave_room"
	CommandStartGame    = "start_game"
	CommandSubmitAnswer = "submit_answer"
	CommandPing         = "ping"
)

// Server -> client acknowledgment types. Broadcast events reuse the engine's
// event type strings directly.
const (
	MessageRoomCreated  = "room_created"
	MessageJoined       = "joined"
	MessageLeft         = "left"
	MessageStarted      = "started"
	MessageSubmitResult = "submit_result"
	MessagePong         = "pong"
	MessageError        = "error"
)

// Command is the inbound envelope; the payload shape depends on Type.
type Command struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Message is the outbound envelope for acks and broadcast events alike.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type CreateRoomPayload struct {
	QuizID string `json:"quizId"`
}

type JoinRoomPayload struct {
	RoomCode string `json:"roomCode"`
}

type SubmitAnswerPayload struct {
	RoomCode       string   `json:"roomCode,omitempty"`
	QuestionID     string   `json:"questionId"`
	SelectedLabels []string `json:"selectedLabels"`
}

type ErrorPayload struct {
	Command string `json:"command,omitempty"`
	Message string `json:"message"`
}
