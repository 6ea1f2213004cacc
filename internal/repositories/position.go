package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/hlsx/internal/models"
	"github.com/desertthunder/hlsx/internal/shared"
)

// PositionRepository persists [models.PlaybackPosition] rows keyed by track ID.
type PositionRepository struct {
	db  *sql.DB
	now Clock
}

// NewPositionRepository creates a new [PositionRepository] with the given database connection
func NewPositionRepository(db *sql.DB) *PositionRepository {
	return &PositionRepository{db: db, now: defaultClock}
}

// Save records position and duration for trackID, replacing any earlier value.
func (r *PositionRepository) Save(trackID string, position, duration time.Duration) error {
	p := &models.PlaybackPosition{TrackID: trackID, Position: position, Duration: duration, UpdatedAt: r.now()}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO playback_positions (track_id, position_ms, duration_ms, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(track_id) DO UPDATE SET
			position_ms = excluded.position_ms,
			duration_ms = excluded.duration_ms,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(query, p.TrackID, p.Position.Milliseconds(), p.Duration.Milliseconds(), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}
	return nil
}

// Get retrieves the saved position for trackID, returning [shared.ErrPositionMissing] when none is stored.
func (r *PositionRepository) Get(trackID string) (*models.PlaybackPosition, error) {
	query := `
		SELECT track_id, position_ms, duration_ms, updated_at
		FROM playback_positions
		WHERE track_id = ?
	`

	var (
		p          models.PlaybackPosition
		positionMS int64
		durationMS int64
	)

	err := r.db.QueryRow(query, trackID).Scan(&p.TrackID, &positionMS, &durationMS, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err, shared.ErrPositionMissing, "position", trackID)
	}

	p.Position = time.Duration(positionMS) * time.Millisecond
	p.Duration = time.Duration(durationMS) * time.Millisecond
	return &p, nil
}

// Delete removes the saved position for trackID.
func (r *PositionRepository) Delete(trackID string) error {
	if _, err := r.db.Exec("DELETE FROM playback_positions WHERE track_id = ?", trackID); err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}
	return nil
}

// Prune deletes positions not updated since before, returning how many were removed.
func (r *PositionRepository) Prune(before time.Time) (int64, error) {
	result, err := r.db.Exec("DELETE FROM playback_positions WHERE updated_at < ?", before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune positions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}
