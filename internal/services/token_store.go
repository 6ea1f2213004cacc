package services

import (
	"fmt"
	"sync"

	"github.com/desertthunder/hlsx/internal/models"
	"github.com/desertthunder/hlsx/internal/shared"
)

// MemoryTokenStore is a process-local [TokenStore].
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]models.StreamingToken
}

// NewMemoryTokenStore creates an empty [MemoryTokenStore].
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]models.StreamingToken)}
}

func (s *MemoryTokenStore) Get(trackID string) (*models.StreamingToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[trackID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrTokenNotFound, trackID)
	}
	return &token, nil
}

func (s *MemoryTokenStore) Put(token *models.StreamingToken) error {
	if err := token.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.TrackID] = *token
	return nil
}

func (s *MemoryTokenStore) Delete(trackID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, trackID)
	return nil
}
