package conversation

import (
	"sync"
	"time"

	"pizzaria-telegram/models"
)

// Step is the intake field a session is waiting for.
type Step int

const (
	StepName Step = iota + 1
	StepPhone
	StepAddress
	StepAge
	StepSize
	StepPayment
	StepNotes
	StepDone
)

var stepNames = map[Step]string{
	StepName:    "name",
	StepPhone:   "phone",
	StepAddress: "address",
	StepAge:     "age",
	StepSize:    "size",
	StepPayment: "payment",
	StepNotes:   "notes",
	StepDone:    "done",
}

func (s Step) String() string {
	if n, ok := stepNames[s]; ok {
		return n
	}
	return "unknown"
}

// Session is one chat's order in progress.
type Session struct {
	ChatID    int64
	FlavorKey string
	Fields    models.OrderFields
	Step      Step
	CreatedAt time.Time
	TouchedAt time.Time
}

// Store is a concurrency-safe map keyed by chat id.
type Store[T any] struct {
	mu sync.RWMutex
	m  map[int64]T
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{m: make(map[int64]T)}
}

func (s *Store[T]) Get(chatID int64) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[chatID]
	return v, ok
}

// Put stores v, replacing any previous value for chatID.
func (s *Store[T]) Put(chatID int64, v T) {
	s.mu.Lock()
	s.m[chatID] = v
	s.mu.Unlock()
}

func (s *Store[T]) Delete(chatID int64) {
	s.mu.Lock()
	delete(s.m, chatID)
	s.mu.Unlock()
}

func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
