package message

import (
	"context"
	"sync"
	"time"

	"companion/internal/credits/models"
	id "companion/pkg/domain"
	"companion/pkg/platform/sentinel"
)

// InMemoryMessageStore keeps chat message metadata per user.
type InMemoryMessageStore struct {
	mu       sync.RWMutex
	messages map[id.UserID][]models.ChatMessage
}

func NewInMemoryMessageStore() *InMemoryMessageStore {
	return &InMemoryMessageStore{messages: make(map[id.UserID][]models.ChatMessage)}
}

func (s *InMemoryMessageStore) Record(_ context.Context, msg *models.ChatMessage) error {
	if msg == nil {
		return sentinel.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.UserID] = append(s.messages[msg.UserID], *msg)
	return nil
}

// CountUserMessages counts role=user messages created in [from, to).
func (s *InMemoryMessageStore) CountUserMessages(_ context.Context, userID id.UserID, from, to time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, m := range s.messages[userID] {
		if m.Role != models.RoleUser {
			continue
		}
		if !m.CreatedAt.Before(from) && m.CreatedAt.Before(to) {
			count++
		}
	}
	return count, nil
}
