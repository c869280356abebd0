package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/vudinhan2525/CamQuizz-sub002/internal/domain"
)

// participant is the engine's mutable record for one room member. It is owned
// by its Room and only touched under the room lock.
type participant struct {
	id          string
	displayName string
	connID      string
	score       int
	// scoreSeq orders ranking ties: it is stamped from the room's monotonic
	// sequence when the participant joins and again whenever their score
	// grows, so whoever reached a given score first sorts ahead.
	scoreSeq    uint64
	hasAnswered bool
}

// Room is one live quiz session. All fields below mu are guarded by it; the
// store hands rooms out only through MutateUnderRoomLock.
type Room struct {
	mu sync.Mutex

	code string
	quiz domain.Quiz

	hostID       string
	state        domain.RoomState
	participants map[string]*participant
	joinOrder    []string

	questionIndex   int
	questionStarted time.Time
	deadline        time.Time
	// submissions holds answers for the current question only; grading folds
	// them into cumulative scores and drops them.
	submissions map[string]domain.AnswerSubmission

	timer *time.Timer
	// timerGen invalidates in-flight timer callbacks: a callback only grades
	// when its captured generation still matches.
	timerGen uint64

	seq          uint64
	lastActivity time.Time
	createdAt    time.Time
}

func (r *Room) nextSeq() uint64 {
	r.seq++
	return r.seq
}

func (r *Room) currentQuestion() domain.Question {
	return r.quiz.Questions[r.questionIndex]
}

func (r *Room) questionLimit(q domain.Question) time.Duration {
	return time.Duration(q.TimeLimitSec) * time.Second
}

// allAnsweredLocked reports whether every current participant has answered.
func (r *Room) allAnsweredLocked() bool {
	if len(r.participants) == 0 {
		return false
	}
	for _, p := range r.participants {
		if !p.hasAnswered {
			return false
		}
	}
	return true
}

func (r *Room) attachedLocked() int {
	n := 0
	for _, p := range r.participants {
		if p.connID != "" {
			n++
		}
	}
	return n
}

func (r *Room) hostAttachedLocked() bool {
	host, ok := r.participants[r.hostID]
	return ok && host.connID != ""
}

func (r *Room) stopTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.timerGen++
}

// submissionsInOrderLocked returns the current question's submissions sorted
// by their acceptance sequence, reproducing the order they arrived in.
func (r *Room) submissionsInOrderLocked() []domain.AnswerSubmission {
	subs := make([]domain.AnswerSubmission, 0, len(r.submissions))
	for _, sub := range r.submissions {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].Seq < subs[j].Seq
	})
	return subs
}

// viewLocked snapshots the room for clients, participants in join order.
func (r *Room) viewLocked() domain.RoomView {
	views := make([]domain.ParticipantView, 0, len(r.participants))
	for _, id := range r.joinOrder {
		p, ok := r.participants[id]
		if !ok {
			continue
		}
		views = append(views, domain.ParticipantView{
			ParticipantID: p.id,
			DisplayName:   p.displayName,
			Score:         p.score,
			IsHost:        p.id == r.hostID,
		})
	}
	view := domain.RoomView{
		Code:           r.code,
		QuizID:         r.quiz.ID,
		QuizTitle:      r.quiz.Title,
		HostID:         r.hostID,
		State:          r.state,
		Participants:   views,
		QuestionIndex:  r.questionIndex,
		TotalQuestions: len(r.quiz.Questions),
	}
	if r.state == domain.RoomStateInQuestion {
		d := r.deadline
		view.Deadline = &d
	}
	return view
}

func (r *Room) questionViewLocked(index int) domain.QuestionView {
	q := r.quiz.Questions[index]
	return domain.QuestionView{
		ID:           q.ID,
		Content:      q.Content,
		Options:      q.Options,
		TimeLimitSec: q.TimeLimitSec,
		Index:        index,
		Total:        len(r.quiz.Questions),
	}
}

// rankingLocked builds the leaderboard: score descending, ties broken by who
// reached their score first (lower scoreSeq), which reduces to join order for
// participants who never scored.
func (r *Room) rankingLocked(now time.Time) domain.Ranking {
	ranked := make([]*participant, 0, len(r.participants))
	for _, id := range r.joinOrder {
		if p, ok := r.participants[id]; ok {
			ranked = append(ranked, p)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].scoreSeq < ranked[j].scoreSeq
	})

	entries := make([]domain.RankingEntry, len(ranked))
	for i, p := range ranked {
		entries[i] = domain.RankingEntry{
			Rank:          i + 1,
			ParticipantID: p.id,
			DisplayName:   p.displayName,
			Score:         p.score,
		}
	}
	return domain.Ranking{RoomCode: r.code, Entries: entries, UpdatedAt: now}
}
