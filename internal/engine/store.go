package engine

import (
	"math/rand"
	"sync"
	"time"

	"github.com/vudinhan2525/CamQuizz-sub002/internal/domain"
)

// codeAlphabet omits 0/O/1/I so codes survive being read out loud.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RoomStore owns every live Room, keyed by its shareable code. It is the
// single serialization point per room: nothing outside this package mutates a
// Room, and package code does so only under the per-room lock.
//
// Lock order is store.mu before Room.mu, never the reverse.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	codeLength   int
	codeAttempts int

	rndMu sync.Mutex
	rnd   *rand.Rand

	now func() time.Time
}

func NewRoomStore(codeLength, codeAttempts int) *RoomStore {
	return newRoomStoreWithClock(codeLength, codeAttempts, time.Now)
}

func newRoomStoreWithClock(codeLength, codeAttempts int, now func() time.Time) *RoomStore {
	if codeLength <= 0 {
		codeLength = 6
	}
	if codeAttempts <= 0 {
		codeAttempts = 64
	}
	return &RoomStore{
		rooms:        make(map[string]*Room),
		codeLength:   codeLength,
		codeAttempts: codeAttempts,
		rnd:          rand.New(rand.NewSource(now().UnixNano())),
		now:          now,
	}
}

// Create allocates a collision-checked code and registers a lobby room with
// the host as its first participant.
func (s *RoomStore) Create(quiz domain.Quiz, hostID, hostName string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := s.freeCodeLocked()
	if err != nil {
		return nil, err
	}

	now := s.now()
	room := &Room{
		code:         code,
		quiz:         quiz,
		hostID:       hostID,
		state:        domain.RoomStateLobby,
		participants: make(map[string]*participant),
		submissions:  make(map[string]domain.AnswerSubmission),
		lastActivity: now,
		createdAt:    now,
	}
	host := &participant{id: hostID, displayName: hostName, scoreSeq: room.nextSeq()}
	room.participants[hostID] = host
	room.joinOrder = append(room.joinOrder, hostID)

	s.rooms[code] = room
	return room, nil
}

func (s *RoomStore) freeCodeLocked() (string, error) {
	for i := 0; i < s.codeAttempts; i++ {
		code := s.randomCode()
		if _, taken := s.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", domain.ErrCodeExhaustion
}

func (s *RoomStore) randomCode() string {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	buf := make([]byte, s.codeLength)
	for i := range buf {
		buf[i] = codeAlphabet[s.rnd.Intn(len(codeAlphabet))]
	}
	return string(buf)
}

func (s *RoomStore) Get(code string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	return room, ok
}

// MutateUnderRoomLock runs fn holding the room's exclusive lock. This is the
// only way other components touch room state.
func (s *RoomStore) MutateUnderRoomLock(code string, fn func(*Room) error) error {
	room, ok := s.Get(code)
	if !ok {
		return domain.ErrRoomNotFound
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return fn(room)
}

// RemoveIf deletes the room when cond holds, stopping its timer first so no
// stale callback ever grades against a reused code. Returns whether removed.
func (s *RoomStore) RemoveIf(code string, cond func(*Room) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok {
		return false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if !cond(room) {
		return false
	}
	room.stopTimerLocked()
	delete(s.rooms, code)
	return true
}

// Codes snapshots the live room codes for sweep passes.
func (s *RoomStore) Codes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	codes := make([]string, 0, len(s.rooms))
	for code := range s.rooms {
		codes = append(codes, code)
	}
	return codes
}

func (s *RoomStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
