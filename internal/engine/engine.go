package engine

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/vudinhan2525/CamQuizz-sub002/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store). The engine
// reads a quiz exactly once, at room creation, and never mutates it.
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// AttemptRecorder is the fire-and-forget sink for final game results.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, attempt domain.Attempt) error
}

// Config tunes the engine. Zero values fall back to sane defaults.
type Config struct {
	Score        ScoreConfig
	CodeLength   int
	CodeAttempts int
	// IdleTTL is how long a room may sit without a host connection before the
	// janitor tears it down.
	IdleTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		Score:        DefaultScoreConfig(),
		CodeLength:   6,
		CodeAttempts: 64,
		IdleTTL:      10 * time.Minute,
	}
}

// Engine drives live quiz rooms: lifecycle, question sequencing, scoring, and
// ranking. It owns all room state through its RoomStore and reports what
// happened through the EventSink.
type Engine struct {
	cfg      Config
	store    *RoomStore
	quizzes  QuizRepository
	sink     EventSink
	recorder AttemptRecorder

	now       func() time.Time
	afterFunc func(d time.Duration, f func()) *time.Timer
}

func NewEngine(cfg Config, quizzes QuizRepository, sink EventSink, recorder AttemptRecorder) *Engine {
	return NewEngineWithClock(cfg, quizzes, sink, recorder, time.Now, time.AfterFunc)
}

// NewEngineWithClock injects the clock and timer factory for deterministic tests.
func NewEngineWithClock(cfg Config, quizzes QuizRepository, sink EventSink, recorder AttemptRecorder,
	now func() time.Time, afterFunc func(time.Duration, func()) *time.Timer) *Engine {
	if cfg.Score.BasePoints <= 0 {
		cfg.Score = DefaultScoreConfig()
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultConfig().IdleTTL
	}
	return &Engine{
		cfg:       cfg,
		store:     newRoomStoreWithClock(cfg.CodeLength, cfg.CodeAttempts, now),
		quizzes:   quizzes,
		sink:      sink,
		recorder:  recorder,
		now:       now,
		afterFunc: afterFunc,
	}
}

// Store exposes the room store for transports that need existence checks.
func (e *Engine) Store() *RoomStore {
	return e.store
}

// CreateRoom snapshots the quiz, opens a lobby room, and seats the host.
func (e *Engine) CreateRoom(ctx context.Context, quizID, hostID, hostName, connID string) (domain.RoomView, error) {
	quiz, err := e.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.RoomView{}, err
	}
	if len(quiz.Questions) == 0 {
		return domain.RoomView{}, domain.ErrEmptyQuiz
	}

	room, err := e.store.Create(quiz, hostID, hostName)
	if err != nil {
		return domain.RoomView{}, err
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	room.participants[hostID].connID = connID
	return room.viewLocked(), nil
}

// Join seats a participant, or rebinds their connection if the participantID
// is already registered (idempotent join: one entry, never two).
func (e *Engine) Join(roomCode, participantID, displayName, connID string) (domain.RoomView, error) {
	var view domain.RoomView
	err := e.store.MutateUnderRoomLock(roomCode, func(r *Room) error {
		if r.state == domain.RoomStateFinished {
			return domain.ErrRoomClosed
		}
		r.lastActivity = e.now()
		if p, ok := r.participants[participantID]; ok {
			p.connID = connID
			if displayName != "" {
				p.displayName = displayName
			}
		} else {
			r.participants[participantID] = &participant{
				id:          participantID,
				displayName: displayName,
				connID:      connID,
				scoreSeq:    r.nextSeq(),
			}
			r.joinOrder = append(r.joinOrder, participantID)
		}
		view = r.viewLocked()
		e.sink.Publish(r.code, Event{Type: EventParticipantJoined, Payload: ParticipantJoinedPayload{
			Participant: domain.ParticipantView{
				ParticipantID: participantID,
				DisplayName:   r.participants[participantID].displayName,
				Score:         r.participants[participantID].score,
				IsHost:        participantID == r.hostID,
			},
			Room: view,
		}})
		return nil
	})
	return view, err
}

// Leave removes the participant. A departing host ends the session for
// everyone; there is no host migration.
func (e *Engine) Leave(roomCode, participantID string) error {
	err := e.store.MutateUnderRoomLock(roomCode, func(r *Room) error {
		p, ok := r.participants[participantID]
		if !ok {
			return domain.ErrParticipantNotFound
		}
		r.lastActivity = e.now()
		delete(r.participants, participantID)
		delete(r.submissions, participantID)
		for i, id := range r.joinOrder {
			if id == participantID {
				r.joinOrder = append(r.joinOrder[:i], r.joinOrder[i+1:]...)
				break
			}
		}
		e.sink.Publish(r.code, Event{Type: EventParticipantLeft, Payload: ParticipantLeftPayload{
			ParticipantID: participantID,
			DisplayName:   p.displayName,
			Room:          r.viewLocked(),
		}})

		if participantID == r.hostID && r.state != domain.RoomStateFinished {
			e.finishLocked(r, EndHostLeft)
		} else if r.state == domain.RoomStateInQuestion && r.allAnsweredLocked() {
			// The leaver may have been the last holdout.
			e.gradeLocked(r)
		}
		return nil
	})
	e.collectIfDone(roomCode)
	return err
}

// StartGame begins question zero. Host-only, lobby-only.
func (e *Engine) StartGame(roomCode, callerID string) error {
	return e.store.MutateUnderRoomLock(roomCode, func(r *Room) error {
		if callerID != r.hostID {
			return domain.ErrUnauthorized
		}
		switch r.state {
		case domain.RoomStateLobby:
		case domain.RoomStateFinished:
			return domain.ErrRoomClosed
		default:
			return domain.ErrAlreadyStarted
		}
		r.lastActivity = e.now()
		r.questionIndex = 0
		e.beginQuestionLocked(r)
		return nil
	})
}

// SubmitAnswer validates a submission against the sequencer's current state.
// Rejections are normal outcomes and come back in the ack, not as errors.
func (e *Engine) SubmitAnswer(roomCode, participantID, questionID string, selectedLabels []string) (domain.SubmitAck, error) {
	ack := domain.SubmitAck{}
	err := e.store.MutateUnderRoomLock(roomCode, func(r *Room) error {
		p, ok := r.participants[participantID]
		if !ok {
			return domain.ErrParticipantNotFound
		}
		if r.state == domain.RoomStateFinished {
			return domain.ErrRoomClosed
		}
		r.lastActivity = e.now()
		if r.state != domain.RoomStateInQuestion {
			return &domain.AnswerRejectedError{Reason: domain.RejectTooLate}
		}
		if r.currentQuestion().ID != questionID {
			return &domain.AnswerRejectedError{Reason: domain.RejectUnknownQuestion}
		}
		now := e.now()
		if now.After(r.deadline) {
			return &domain.AnswerRejectedError{Reason: domain.RejectTooLate}
		}
		if p.hasAnswered {
			return &domain.AnswerRejectedError{Reason: domain.RejectAlreadyAnswered}
		}

		p.hasAnswered = true
		r.submissions[participantID] = domain.AnswerSubmission{
			ParticipantID:  participantID,
			QuestionID:     questionID,
			SelectedLabels: selectedLabels,
			SubmittedAt:    now,
			Seq:            r.nextSeq(),
		}
		ack.Accepted = true

		if r.allAnsweredLocked() {
			e.gradeLocked(r)
		}
		return nil
	})
	var rej *domain.AnswerRejectedError
	if errors.As(err, &rej) {
		return domain.SubmitAck{Accepted: false, Reason: string(rej.Reason)}, nil
	}
	return ack, err
}

// Detach handles a dropped transport connection. The participant entry stays
// for rebinding, but a host disconnect ends the game rather than leaving the
// room waiting forever.
func (e *Engine) Detach(roomCode, participantID string) {
	_ = e.store.MutateUnderRoomLock(roomCode, func(r *Room) error {
		if p, ok := r.participants[participantID]; ok {
			p.connID = ""
		}
		if participantID == r.hostID && r.state != domain.RoomStateFinished {
			e.finishLocked(r, EndHostLeft)
		}
		return nil
	})
	e.collectIfDone(roomCode)
}

// View returns the current room snapshot.
func (e *Engine) View(roomCode string) (domain.RoomView, error) {
	var view domain.RoomView
	err := e.store.MutateUnderRoomLock(roomCode, func(r *Room) error {
		view = r.viewLocked()
		return nil
	})
	return view, err
}

// beginQuestionLocked transitions into InQuestion for r.questionIndex: fresh
// deadline, cleared answer flags, armed timer, QuestionStarted broadcast.
func (e *Engine) beginQuestionLocked(r *Room) {
	q := r.currentQuestion()
	now := e.now()
	r.state = domain.RoomStateInQuestion
	r.questionStarted = now
	r.deadline = now.Add(r.questionLimit(q))
	r.submissions = make(map[string]domain.AnswerSubmission)
	for _, p := range r.participants {
		p.hasAnswered = false
	}
	e.armTimerLocked(r)
	e.sink.Publish(r.code, Event{Type: EventQuestionStarted, Payload: QuestionStartedPayload{
		Question: r.questionViewLocked(r.questionIndex),
		Deadline: r.deadline,
	}})
}

func (e *Engine) armTimerLocked(r *Room) {
	r.stopTimerLocked()
	gen := r.timerGen
	index := r.questionIndex
	code := r.code
	r.timer = e.afterFunc(r.deadline.Sub(e.now()), func() {
		e.onDeadline(code, index, gen)
	})
}

// onDeadline is the timer callback: re-acquire the room lock and re-check the
// expected state before acting, since grading may have already happened.
func (e *Engine) onDeadline(roomCode string, questionIndex int, gen uint64) {
	err := e.store.MutateUnderRoomLock(roomCode, func(r *Room) error {
		if r.state != domain.RoomStateInQuestion || r.questionIndex != questionIndex || r.timerGen != gen {
			return nil
		}
		e.gradeLocked(r)
		return nil
	})
	if errors.Is(err, domain.ErrRoomNotFound) {
		log.Printf("engine: timer fired for vanished room %s question %d, discarding", roomCode, questionIndex)
	}
	e.collectIfDone(roomCode)
}

// gradeLocked closes the current question: scores every participant (absent
// submissions count as wrong), publishes the result, then either starts the
// next question or finishes the game.
func (e *Engine) gradeLocked(r *Room) {
	if r.state != domain.RoomStateInQuestion {
		log.Printf("engine: grading requested twice for room %s question %d, ignoring", r.code, r.questionIndex)
		return
	}
	r.stopTimerLocked()
	r.state = domain.RoomStateGrading

	q := r.currentQuestion()
	limit := r.questionLimit(q)
	// Fold submissions in arrival order so equal awards in the same pass stamp
	// the earlier submitter with the lower score sequence.
	for _, sub := range r.submissionsInOrderLocked() {
		p, ok := r.participants[sub.ParticipantID]
		if !ok {
			continue
		}
		correct, points := Score(q.CorrectLabels, sub.SelectedLabels, sub.SubmittedAt.Sub(r.questionStarted), limit, e.cfg.Score)
		if correct && points > 0 {
			p.score += points
			p.scoreSeq = r.nextSeq()
		}
	}
	r.submissions = make(map[string]domain.AnswerSubmission)

	ranking := r.rankingLocked(e.now())
	var next *domain.QuestionView
	if r.questionIndex+1 < len(r.quiz.Questions) {
		v := r.questionViewLocked(r.questionIndex + 1)
		next = &v
	}
	e.sink.Publish(r.code, Event{Type: EventQuestionResult, Payload: QuestionResultPayload{
		QuestionIndex: r.questionIndex,
		QuestionID:    q.ID,
		CorrectLabels: q.CorrectLabels,
		Ranking:       ranking,
		NextQuestion:  next,
	}})

	if next != nil {
		r.questionIndex++
		e.beginQuestionLocked(r)
	} else {
		e.finishLocked(r, EndCompleted)
	}
}

// finishLocked moves the room to its terminal state, announces GameEnded, and
// hands the final standings to the attempt sink without waiting on it.
func (e *Engine) finishLocked(r *Room, reason EndReason) {
	if r.state == domain.RoomStateFinished {
		return
	}
	r.stopTimerLocked()
	r.state = domain.RoomStateFinished
	now := e.now()
	ranking := r.rankingLocked(now)
	e.sink.Publish(r.code, Event{Type: EventGameEnded, Payload: GameEndedPayload{
		Reason:  reason,
		Ranking: ranking,
	}})

	if e.recorder != nil {
		attempt := domain.Attempt{
			RoomCode:   r.code,
			QuizID:     r.quiz.ID,
			HostID:     r.hostID,
			Ranking:    ranking,
			Questions:  len(r.quiz.Questions),
			FinishedAt: now,
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := e.recorder.RecordAttempt(ctx, attempt); err != nil {
				log.Printf("engine: record attempt for room %s: %v", attempt.RoomCode, err)
			}
		}()
	}
}

// collectIfDone reaps a finished room once its last connection is gone.
func (e *Engine) collectIfDone(roomCode string) {
	e.store.RemoveIf(roomCode, func(r *Room) bool {
		return r.state == domain.RoomStateFinished && r.attachedLocked() == 0
	})
}

// RunJanitor sweeps rooms whose host connection has been gone past the idle
// TTL. Blocks until ctx is done; run it on its own goroutine.
func (e *Engine) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.SweepIdle()
		}
	}
}

// SweepIdle tears down rooms with no host connection that have been idle past
// the configured TTL. Live rooms get an explicit GameEnded first so nobody is
// left waiting on a dead lobby.
func (e *Engine) SweepIdle() int {
	removed := 0
	cutoff := e.now().Add(-e.cfg.IdleTTL)
	for _, code := range e.store.Codes() {
		ok := e.store.RemoveIf(code, func(r *Room) bool {
			if r.state == domain.RoomStateFinished {
				return r.attachedLocked() == 0
			}
			if r.hostAttachedLocked() || r.lastActivity.After(cutoff) {
				return false
			}
			e.finishLocked(r, EndIdleTimeout)
			return true
		})
		if ok {
			removed++
		}
	}
	return removed
}
