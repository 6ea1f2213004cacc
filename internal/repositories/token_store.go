package repositories

import (
	"github.com/desertthunder/hlsx/internal/models"
)

// TokenStoreAdapter implements services.TokenStore using [TokenRepository].
//
// Tokens written through the adapter survive restarts, so a relaunched player can refresh a still-valid token
// instead of signing from scratch.
type TokenStoreAdapter struct {
	repo *TokenRepository
}

// NewTokenStoreAdapter creates a new TokenStoreAdapter with the given repository
func NewTokenStoreAdapter(repo *TokenRepository) *TokenStoreAdapter {
	return &TokenStoreAdapter{repo: repo}
}

func (a *TokenStoreAdapter) Get(trackID string) (*models.StreamingToken, error) {
	return a.repo.Get(trackID)
}

func (a *TokenStoreAdapter) Put(token *models.StreamingToken) error {
	return a.repo.Put(token)
}

func (a *TokenStoreAdapter) Delete(trackID string) error {
	return a.repo.Delete(trackID)
}

// PositionStoreAdapter implements player.PositionStore using [PositionRepository].
type PositionStoreAdapter struct {
	repo *PositionRepository
}

// NewPositionStoreAdapter creates a new PositionStoreAdapter with the given repository
func NewPositionStoreAdapter(repo *PositionRepository) *PositionStoreAdapter {
	return &PositionStoreAdapter{repo: repo}
}

func (a *PositionStoreAdapter) Save(position models.PlaybackPosition) error {
	return a.repo.Save(position.TrackID, position.Position, position.Duration)
}

func (a *PositionStoreAdapter) Load(trackID string) (*models.PlaybackPosition, error) {
	return a.repo.Get(trackID)
}
