package domain

import "time"

// RoomState enumerates the lifecycle of a live quiz room. Finished is terminal.
type RoomState string

const (
	RoomStateLobby      RoomState = "lobby"
	RoomStateInQuestion RoomState = "in_question"
	RoomStateGrading    RoomState = "grading"
	RoomStateFinished   RoomState = "finished"
)

// Option is one selectable answer for a question, addressed by its label.
type Option struct {
	Label   string `json:"label"`
	Content string `json:"content"`
}

// Question models a timed multiple-choice question. CorrectLabels may hold more
// than one label; a submission is correct only when it matches the full set.
type Question struct {
	ID            string   `json:"id"`
	Content       string   `json:"content"`
	Options       []Option `json:"options"`
	CorrectLabels []string `json:"correctLabels"`
	TimeLimitSec  int      `json:"timeLimitSec"`
}

// Quiz is the read-only snapshot the engine takes from the catalog at room creation.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// QuestionView is the client-facing shape of a question: correct labels stripped.
type QuestionView struct {
	ID           string   `json:"id"`
	Content      string   `json:"content"`
	Options      []Option `json:"options"`
	TimeLimitSec int      `json:"timeLimitSec"`
	Index        int      `json:"index"`
	Total        int      `json:"total"`
}

// ParticipantView is a snapshot-friendly view of a room member.
type ParticipantView struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
	Score         int    `json:"score"`
	IsHost        bool   `json:"isHost"`
}

// RoomView captures a room as seen by clients at join time and in lobby updates.
type RoomView struct {
	Code           string            `json:"code"`
	QuizID         string            `json:"quizId"`
	QuizTitle      string            `json:"quizTitle"`
	HostID         string            `json:"hostId"`
	State          RoomState         `json:"state"`
	Participants   []ParticipantView `json:"participants"`
	QuestionIndex  int               `json:"questionIndex"`
	TotalQuestions int               `json:"totalQuestions"`
	Deadline       *time.Time        `json:"deadline,omitempty"`
}

// RankingEntry is one row of the leaderboard published after each question.
type RankingEntry struct {
	Rank          int    `json:"rank"`
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
	Score         int    `json:"score"`
}

// Ranking is the ordered scoreboard snapshot for a room.
type Ranking struct {
	RoomCode  string         `json:"roomCode"`
	Entries   []RankingEntry `json:"entries"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// AnswerSubmission models one participant's answer to the current question.
// It lives only until the question's grading completes. Seq is the room's
// monotonic stamp at acceptance time, so grading can replay submissions in the
// order they actually arrived even when timestamps collide.
type AnswerSubmission struct {
	ParticipantID  string
	QuestionID     string
	SelectedLabels []string
	SubmittedAt    time.Time
	Seq            uint64
}

// SubmitAck tells the submitter whether their answer was taken. Rejections carry
// a reason so clients can tell retry-worthy failures from terminal ones.
type SubmitAck struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// Attempt is the final per-room record handed to the attempt sink after a game
// ends. The engine fires it off and forgets it.
type Attempt struct {
	RoomCode   string    `json:"roomCode"`
	QuizID     string    `json:"quizId"`
	HostID     string    `json:"hostId"`
	Ranking    Ranking   `json:"ranking"`
	Questions  int       `json:"questions"`
	FinishedAt time.Time `json:"finishedAt"`
}
