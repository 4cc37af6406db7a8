package conversation

import (
	"context"
	"sync"
	"time"
)

type memoryEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// MemoryStateStore keeps dialog state in process. It is meant for local
// development and tests; state is lost on restart.
type MemoryStateStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	bookings  map[string]memoryEntry[PendingBooking]
	deletions map[string]memoryEntry[PendingDeletion]
}

func NewMemoryStateStore(ttl time.Duration) *MemoryStateStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &MemoryStateStore{
		ttl:       ttl,
		now:       time.Now,
		bookings:  make(map[string]memoryEntry[PendingBooking]),
		deletions: make(map[string]memoryEntry[PendingDeletion]),
	}
}

func (s *MemoryStateStore) LoadBooking(_ context.Context, conversationID string) (*PendingBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.bookings[conversationID]
	if !ok {
		return nil, nil
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.bookings, conversationID)
		return nil, nil
	}
	booking := entry.value
	return &booking, nil
}

func (s *MemoryStateStore) TakeBooking(_ context.Context, conversationID string) (*PendingBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.bookings[conversationID]
	if !ok {
		return nil, nil
	}
	delete(s.bookings, conversationID)
	if !s.now().Before(entry.expiresAt) {
		return nil, nil
	}
	booking := entry.value
	return &booking, nil
}

func (s *MemoryStateStore) SaveBooking(_ context.Context, conversationID string, booking *PendingBooking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if booking == nil {
		delete(s.bookings, conversationID)
		return nil
	}
	s.bookings[conversationID] = memoryEntry[PendingBooking]{value: *booking, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStateStore) LoadDeletion(_ context.Context, conversationID string) (*PendingDeletion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.deletions[conversationID]
	if !ok {
		return nil, nil
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.deletions, conversationID)
		return nil, nil
	}
	deletion := entry.value
	deletion.Codes = append([]string(nil), entry.value.Codes...)
	return &deletion, nil
}

func (s *MemoryStateStore) SaveDeletion(_ context.Context, conversationID string, deletion *PendingDeletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if deletion == nil {
		delete(s.deletions, conversationID)
		return nil
	}
	stored := *deletion
	stored.Codes = append([]string(nil), deletion.Codes...)
	s.deletions[conversationID] = memoryEntry[PendingDeletion]{value: stored, expiresAt: s.now().Add(s.ttl)}
	return nil
}

var _ StateStore = (*MemoryStateStore)(nil)
