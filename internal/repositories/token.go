package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/hlsx/internal/models"
	"github.com/desertthunder/hlsx/internal/shared"
)

// TokenRepository persists [models.StreamingToken] rows keyed by track ID.
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new [TokenRepository] with the given database connection
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Put inserts or replaces the token for its track.
func (r *TokenRepository) Put(token *models.StreamingToken) error {
	if err := token.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	var refreshedAt sql.NullTime
	if token.RefreshedAt != nil {
		refreshedAt = sql.NullTime{Time: *token.RefreshedAt, Valid: true}
	}

	query := `
		INSERT INTO stream_tokens (track_id, token, issued_at, refreshed_at, refresh_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(track_id) DO UPDATE SET
			token = excluded.token,
			issued_at = excluded.issued_at,
			refreshed_at = excluded.refreshed_at,
			refresh_count = excluded.refresh_count
	`

	_, err := r.db.Exec(query, token.TrackID, token.Value, token.IssuedAt, refreshedAt, token.RefreshCount)
	if err != nil {
		return fmt.Errorf("failed to upsert token: %w", err)
	}
	return nil
}

// Get retrieves the token for trackID, returning [shared.ErrTokenNotFound] when none is stored.
func (r *TokenRepository) Get(trackID string) (*models.StreamingToken, error) {
	query := `
		SELECT track_id, token, issued_at, refreshed_at, refresh_count
		FROM stream_tokens
		WHERE track_id = ?
	`

	token, err := scanToken(r.db.QueryRow(query, trackID))
	if err != nil {
		return nil, notFound(err, shared.ErrTokenNotFound, "token", trackID)
	}
	return token, nil
}

// Delete removes the token for trackID. Deleting a missing token is not an error.
func (r *TokenRepository) Delete(trackID string) error {
	if _, err := r.db.Exec("DELETE FROM stream_tokens WHERE track_id = ?", trackID); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// List returns every stored token, most recently issued first.
func (r *TokenRepository) List() ([]*models.StreamingToken, error) {
	query := `
		SELECT track_id, token, issued_at, refreshed_at, refresh_count
		FROM stream_tokens
		ORDER BY issued_at DESC, track_id
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*models.StreamingToken
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tokens: %w", err)
	}
	return tokens, nil
}

// Clear deletes all stored tokens and returns how many were removed.
func (r *TokenRepository) Clear() (int64, error) {
	result, err := r.db.Exec("DELETE FROM stream_tokens")
	if err != nil {
		return 0, fmt.Errorf("failed to clear tokens: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}

func scanToken(s scanner) (*models.StreamingToken, error) {
	var (
		token       models.StreamingToken
		refreshedAt sql.NullTime
	)

	if err := s.Scan(&token.TrackID, &token.Value, &token.IssuedAt, &refreshedAt, &token.RefreshCount); err != nil {
		return nil, err
	}
	if refreshedAt.Valid {
		t := refreshedAt.Time
		token.RefreshedAt = &t
	}
	return &token, nil
}
