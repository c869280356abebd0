package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vudinhan2525/CamQuizz-sub002/internal/domain"
	"github.com/vudinhan2525/CamQuizz-sub002/internal/engine"
	"github.com/vudinhan2525/CamQuizz-sub002/internal/infra/memory"
)

func TestCreateRoomRejectsEmptyQuiz(t *testing.T) {
	h := newHarness(t, map[string]domain.Quiz{
		"empty": {ID: "empty"},
	})
	_, err := h.eng.CreateRoom(context.Background(), "empty", "host", "Host", "conn-h")
	if !errors.Is(err, domain.ErrEmptyQuiz) {
		t.Fatalf("expected ErrEmptyQuiz, got %v", err)
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	h := newHarness(t, testQuizzes())
	code := h.createRoom(t)

	if _, err := h.eng.Join(code, "u1", "Alice", "conn-1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	view, err := h.eng.Join(code, "u1", "Alice", "conn-1b")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if len(view.Participants) != 2 { // host + Alice, not host + Alice twice
		t.Fatalf("expected 2 participants after rejoin, got %d", len(view.Participants))
	}
}

func TestJoinFinishedRoomFails(t *testing.T) {
	h := newHarness(t, testQuizzes())
	code := h.createRoom(t)

	if err := h.eng.Leave(code, "host"); err != nil {
		t.Fatalf("host leave: %v", err)
	}
	_, err := h.eng.Join(code, "u1", "Alice", "conn-1")
	if !errors.Is(err, domain.ErrRoomClosed) && !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected closed/not-found, got %v", err)
	}
}

func TestStartGameAuthorization(t *testing.T) {
	h := newHarness(t, testQuizzes())
	code := h.createRoom(t)
	if _, err := h.eng.Join(code, "u1", "Alice", "conn-1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := h.eng.StartGame(code, "u1"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := h.eng.StartGame(code, "host"); err != nil {
		t.Fatalf("host start: %v", err)
	}
	if err := h.eng.StartGame(code, "host"); !errors.Is(err, domain.ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestFullHouseGradesBeforeDeadline(t *testing.T) {
	h := newHarness(t, testQuizzes())
	code := h.createRoom(t)
	h.join(t, code, "u1", "Bea")
	h.join(t, code, "u2", "Cal")
	if err := h.eng.StartGame(code, "host"); err != nil {
		t.Fatalf("start: %v", err)
	}

	h.clock.Advance(5 * time.Second)
	h.submitOK(t, code, "host", "q1", []string{"b"}) // correct
	h.submitOK(t, code, "u1", "q1", []string{"a"})  // wrong
	h.submitOK(t, code, "u2", "q1", []string{"c"})  // wrong

	// Grading fired on full participation, not at the 30s deadline.
	results := h.sink.byType(engine.EventQuestionResult)
	if len(results) != 1 {
		t.Fatalf("expected immediate grading, got %d results", len(results))
	}
	ranking := results[0].Payload.(engine.QuestionResultPayload).Ranking
	if ranking.Entries[0].ParticipantID != "host" || ranking.Entries[0].Score <= 0 {
		t.Fatalf("expected correct answerer first with points, got %+v", ranking.Entries[0])
	}
	// Zero-score tie resolves in original join order.
	if ranking.Entries[1].ParticipantID != "u1" || ranking.Entries[2].ParticipantID != "u2" {
		t.Fatalf("expected zero tie in join order, got %+v", ranking.Entries)
	}
	if ranking.Entries[1].Score != 0 || ranking.Entries[2].Score != 0 {
		t.Fatalf("expected zero scores for wrong answers, got %+v", ranking.Entries)
	}
}

func TestDeadlineGradesAbsenteesAsZero(t *testing.T) {
	h := newHarness(t, testQuizzes())
	code := h.createRoom(t)
	h.join(t, code, "u1", "Bea")
	if err := h.eng.StartGame(code, "host"); err != nil {
		t.Fatalf("start: %v", err)
	}

	h.clock.Advance(3 * time.Second)
	h.submitOK(t, code, "u1", "q1", []string{"b"})

	h.clock.Advance(30 * time.Second)
	h.timers.Fire()

	results := h.sink.byType(engine.EventQuestionResult)
	if len(results) != 1 {
		t.Fatalf("expected one result after deadline, got %d", len(results))
	}
	ranking := results[0].Payload.(engine.QuestionResultPayload).Ranking
	if ranking.Entries[0].ParticipantID != "u1" || ranking.Entries[0].Score <= 0 {
		t.Fatalf("expected submitter first, got %+v", ranking.Entries)
	}
	if ranking.Entries[1].ParticipantID != "host" || ranking.Entries[1].Score != 0 {
		t.Fatalf("expected absent host scored zero, got %+v", ranking.Entries)
	}
}

func TestDuplicateAndLateAnswersRejected(t *testing.T) {
	h := newHarness(t, testQuizzes())
	code := h.createRoom(t)
	h.join(t, code, "u1", "Bea")
	if err := h.eng.StartGame(code, "host"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Unknown question id.
	ack, err := h.eng.SubmitAnswer(code, "u1", "q9", []string{"b"})
	if err != nil || ack.Accepted || ack.Reason != string(domain.RejectUnknownQuestion) {
		t.Fatalf("expected unknown_question, got ack=%+v err=%v", ack, err)
	}

	h.clock.Advance(2 * time.Second)
	h.submitOK(t, code, "u1", "q1", []string{"b"})

	// Second submission with a different answer is refused; the first stands.
	h.clock.Advance(2 * time.Second)
	ack, err = h.eng.SubmitAnswer(code, "u1", "q1", []string{"a"})
	if err != nil || ack.Accepted || ack.Reason != string(domain.RejectAlreadyAnswered) {
		t.Fatalf("expected already_answered, got ack=%+v err=%v", ack, err)
	}

	// Host misses the window entirely.
	h.clock.Advance(40 * time.Second)
	ack, err = h.eng.SubmitAnswer(code, "host", "q1", []string{"b"})
	if err != nil || ack.Accepted || ack.Reason != string(domain.RejectTooLate) {
		t.Fatalf("expected too_late, got ack=%+v err=%v", ack, err)
	}

	h.timers.Fire()
	results := h.sink.byType(engine.EventQuestionResult)
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	ranking := results[0].Payload.(engine.QuestionResultPayload).Ranking
	if ranking.Entries[0].ParticipantID != "u1" || ranking.Entries[0].Score <= 0 {
		t.Fatalf("first accepted answer should stand, got %+v", ranking.Entries)
	}
}

func TestHostLeaveMidQuestionEndsGame(t *testing.T) {
	h := newHarness(t, testQuizzes())
	code := h.createRoom(t)
	h.join(t, code, "u1", "Bea")
	if err := h.eng.StartGame(code, "host"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Play through to the third question, then the host walks out on it.
	for _, qid := range []string{"q1", "q2"} {
		h.submitOK(t, code, "host", qid, []string{"b"})
		h.submitOK(t, code, "u1", qid, []string{"b"})
	}
	if err := h.eng.Leave(code, "host"); err != nil {
		t.Fatalf("host leave: %v", err)
	}

	if n := len(h.sink.byType(engine.EventQuestionResult)); n != 2 {
		t.Fatalf("host departure must not grade the open question, got %d results", n)
	}
	ended := h.sink.byType(engine.EventGameEnded)
	if len(ended) != 1 {
		t.Fatalf("expected GameEnded, got %d", len(ended))
	}
	if reason := ended[0].Payload.(engine.GameEndedPayload).Reason; reason != engine.EndHostLeft {
		t.Fatalf("expected host_left, got %s", reason)
	}
}

func TestRoundTripThroughAllQuestions(t *testing.T) {
	h := newHarness(t, testQuizzes())
	code := h.createRoom(t)
	h.join(t, code, "u1", "Bea")
	if err := h.eng.StartGame(code, "host"); err != nil {
		t.Fatalf("start: %v", err)
	}

	questions := []string{"q1", "q2", "q3"}
	for _, qid := range questions {
		h.clock.Advance(time.Second)
		h.submitOK(t, code, "host", qid, []string{"b"})
		h.submitOK(t, code, "u1", qid, []string{"b"})
	}

	started := h.sink.byType(engine.EventQuestionStarted)
	results := h.sink.byType(engine.EventQuestionResult)
	if len(started) != 3 || len(results) != 3 {
		t.Fatalf("expected exactly 3 question cycles, got started=%d results=%d", len(started), len(results))
	}
	if len(h.sink.byType(engine.EventGameEnded)) != 1 {
		t.Fatalf("expected one GameEnded")
	}
	h.assertOrdering(t)

	// Final question's result carries no next question.
	last := results[2].Payload.(engine.QuestionResultPayload)
	if last.NextQuestion != nil {
		t.Fatalf("expected nil next question on final result")
	}

	// Finished room is collected once every connection detaches.
	h.eng.Detach(code, "u1")
	h.eng.Detach(code, "host")
	if h.eng.Store().Len() != 0 {
		t.Fatalf("expected finished room to be reaped")
	}
}

func TestRankingTieBreakPrefersEarlierScorer(t *testing.T) {
	h := newHarness(t, testQuizzes())
	code := h.createRoom(t)
	h.join(t, code, "u1", "Bea")
	if err := h.eng.StartGame(code, "host"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Host alone scores q1; Bea alone scores q2 with the identical award.
	h.submitOK(t, code, "host", "q1", []string{"b"})
	h.submitOK(t, code, "u1", "q1", []string{"a"})
	h.submitOK(t, code, "host", "q2", []string{"a"})
	h.submitOK(t, code, "u1", "q2", []string{"b"})

	results := h.sink.byType(engine.EventQuestionResult)
	ranking := results[1].Payload.(engine.QuestionResultPayload).Ranking
	if ranking.Entries[0].Score != ranking.Entries[1].Score {
		t.Fatalf("setup broken: expected equal scores, got %+v", ranking.Entries)
	}
	if ranking.Entries[0].ParticipantID != "host" {
		t.Fatalf("expected earlier scorer first on tie, got %+v", ranking.Entries)
	}
}

// Two participants earning the identical award in the same grading pass must
// rank by who submitted first, on every run.
func TestSameRoundTieRanksEarlierSubmitterFirst(t *testing.T) {
	for run := 0; run < 50; run++ {
		h := newHarness(t, testQuizzes())
		code := h.createRoom(t)
		h.join(t, code, "u1", "Bea")
		if err := h.eng.StartGame(code, "host"); err != nil {
			t.Fatalf("run %d start: %v", run, err)
		}

		// Same instant, same correct answer, so both score full points; the
		// later joiner answers first and must take the tie.
		h.clock.Advance(2 * time.Second)
		h.submitOK(t, code, "u1", "q1", []string{"b"})
		h.submitOK(t, code, "host", "q1", []string{"b"})

		results := h.sink.byType(engine.EventQuestionResult)
		if len(results) != 1 {
			t.Fatalf("run %d: expected one result, got %d", run, len(results))
		}
		entries := results[0].Payload.(engine.QuestionResultPayload).Ranking.Entries
		if entries[0].Score != entries[1].Score {
			t.Fatalf("run %d: setup broken, expected equal scores, got %+v", run, entries)
		}
		if entries[0].ParticipantID != "u1" {
			t.Fatalf("run %d: expected first submitter ranked first, got %+v", run, entries)
		}
	}
}

func TestAttemptRecordedAfterGameEnds(t *testing.T) {
	h := newHarness(t, testQuizzes())
	code := h.createRoom(t)
	h.join(t, code, "u1", "Bea")
	if err := h.eng.StartGame(code, "host"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.eng.Leave(code, "host"); err != nil {
		t.Fatalf("leave: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if attempts := h.recorder.Attempts(); len(attempts) == 1 {
			if attempts[0].RoomCode != code || attempts[0].QuizID != "quiz-1" {
				t.Fatalf("unexpected attempt %+v", attempts[0])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("attempt never recorded")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSweepIdleRoomWithoutHost(t *testing.T) {
	h := newHarness(t, testQuizzes())
	// Host created the room but never attached a connection.
	view, err := h.eng.CreateRoom(context.Background(), "quiz-1", "host", "Host", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if removed := h.eng.SweepIdle(); removed != 0 {
		t.Fatalf("fresh room must survive the sweep")
	}
	h.clock.Advance(time.Hour)
	if removed := h.eng.SweepIdle(); removed != 1 {
		t.Fatalf("expected idle room reaped, removed=%d", removed)
	}

	ended := h.sink.byType(engine.EventGameEnded)
	if len(ended) != 1 || ended[0].Payload.(engine.GameEndedPayload).Reason != engine.EndIdleTimeout {
		t.Fatalf("expected idle_timeout GameEnded, got %+v", ended)
	}
	if _, err := h.eng.View(view.Code); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected room gone, got %v", err)
	}
}

func TestStaleTimerIsDiscarded(t *testing.T) {
	h := newHarness(t, testQuizzes())
	code := h.createRoom(t)
	if err := h.eng.StartGame(code, "host"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Full participation grades q1 and arms q2's timer; firing the stale q1
	// callback afterwards must not grade q2.
	h.submitOK(t, code, "host", "q1", []string{"b"})
	before := len(h.sink.byType(engine.EventQuestionResult))
	h.timers.FireIndex(0)
	if after := len(h.sink.byType(engine.EventQuestionResult)); after != before {
		t.Fatalf("stale timer graded a question: %d -> %d", before, after)
	}
}

// --- harness ---

type harness struct {
	eng      *engine.Engine
	sink     *recordingSink
	clock    *fakeClock
	timers   *manualTimers
	recorder *memory.AttemptLog
}

func newHarness(t *testing.T, quizzes map[string]domain.Quiz) *harness {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	timers := &manualTimers{}
	sink := &recordingSink{}
	recorder := memory.NewAttemptLog()
	repo := memory.NewQuizCache(memory.NewStaticQuizLoader(quizzes), 5*time.Minute)
	eng := engine.NewEngineWithClock(engine.DefaultConfig(), repo, sink, recorder, clock.Now, timers.AfterFunc)
	return &harness{eng: eng, sink: sink, clock: clock, timers: timers, recorder: recorder}
}

func (h *harness) createRoom(t *testing.T) string {
	t.Helper()
	view, err := h.eng.CreateRoom(context.Background(), "quiz-1", "host", "Host", "conn-h")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return view.Code
}

func (h *harness) join(t *testing.T, code, pid, name string) {
	t.Helper()
	if _, err := h.eng.Join(code, pid, name, "conn-"+pid); err != nil {
		t.Fatalf("join %s: %v", pid, err)
	}
}

func (h *harness) submitOK(t *testing.T, code, pid, qid string, labels []string) {
	t.Helper()
	ack, err := h.eng.SubmitAnswer(code, pid, qid, labels)
	if err != nil {
		t.Fatalf("submit %s %s: %v", pid, qid, err)
	}
	if !ack.Accepted {
		t.Fatalf("submit %s %s rejected: %s", pid, qid, ack.Reason)
	}
}

// assertOrdering checks QuestionStarted(i) < QuestionResult(i) < QuestionStarted(i+1)
// over the room's single event log.
func (h *harness) assertOrdering(t *testing.T) {
	t.Helper()
	startedAt := make(map[int]int)
	resultAt := make(map[int]int)
	for pos, ev := range h.sink.all() {
		switch payload := ev.Payload.(type) {
		case engine.QuestionStartedPayload:
			startedAt[payload.Question.Index] = pos
		case engine.QuestionResultPayload:
			resultAt[payload.QuestionIndex] = pos
		}
	}
	for i, rPos := range resultAt {
		sPos, ok := startedAt[i]
		if !ok || sPos >= rPos {
			t.Fatalf("question %d: result at %d before start at %d", i, rPos, sPos)
		}
		if nPos, ok := startedAt[i+1]; ok && nPos <= rPos {
			t.Fatalf("question %d started at %d before result %d published at %d", i+1, nPos, i, rPos)
		}
	}
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// manualTimers captures AfterFunc callbacks so tests fire deadlines on demand.
type manualTimers struct {
	mu  sync.Mutex
	fns []func()
}

func (m *manualTimers) AfterFunc(_ time.Duration, f func()) *time.Timer {
	m.mu.Lock()
	m.fns = append(m.fns, f)
	m.mu.Unlock()
	return time.NewTimer(time.Hour)
}

// Fire runs every captured callback not yet fired.
func (m *manualTimers) Fire() {
	m.mu.Lock()
	fns := m.fns
	m.fns = nil
	m.mu.Unlock()
	for _, f := range fns {
		f()
	}
}

// FireIndex runs one captured callback by arming order.
func (m *manualTimers) FireIndex(i int) {
	m.mu.Lock()
	var f func()
	if i < len(m.fns) {
		f = m.fns[i]
	}
	m.mu.Unlock()
	if f != nil {
		f()
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events []engine.Event
}

func (s *recordingSink) Publish(_ string, events ...engine.Event) {
	s.mu.Lock()
	s.events = append(s.events, events...)
	s.mu.Unlock()
}

func (s *recordingSink) all() []engine.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]engine.Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *recordingSink) byType(t engine.EventType) []engine.Event {
	var out []engine.Event
	for _, ev := range s.all() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func testQuizzes() map[string]domain.Quiz {
	question := func(id string) domain.Question {
		return domain.Question{
			ID:      id,
			Content: "Pick the right one",
			Options: []domain.Option{
				{Label: "a", Content: "Wrong"},
				{Label: "b", Content: "Right"},
				{Label: "c", Content: "Also wrong"},
			},
			CorrectLabels: []string{"b"},
			TimeLimitSec:  30,
		}
	}
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:        "quiz-1",
			Title:     "Test quiz",
			Questions: []domain.Question{question("q1"), question("q2"), question("q3")},
		},
	}
}
