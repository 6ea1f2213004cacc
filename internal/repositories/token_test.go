package repositories

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/desertthunder/hlsx/internal/models"
	"github.com/desertthunder/hlsx/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestTokenRepository(t *testing.T) {
	t.Run("Put And Get", func(t *testing.T) {
		repo := NewTokenRepository(setupTestDB(t))

		if err := repo.Put(models.NewStreamingToken("trk_1", "tok_a")); err != nil {
			t.Fatalf("failed to put token: %v", err)
		}

		got, err := repo.Get("trk_1")
		if err != nil {
			t.Fatalf("failed to get token: %v", err)
		}
		if got.Value != "tok_a" {
			t.Errorf("expected tok_a, got %s", got.Value)
		}
		if got.RefreshedAt != nil {
			t.Error("expected RefreshedAt to be nil for a fresh token")
		}
	})

	t.Run("Put Replaces Existing", func(t *testing.T) {
		repo := NewTokenRepository(setupTestDB(t))

		original := models.NewStreamingToken("trk_1", "tok_a")
		if err := repo.Put(original); err != nil {
			t.Fatalf("failed to put token: %v", err)
		}
		if err := repo.Put(original.Refreshed("tok_b")); err != nil {
			t.Fatalf("failed to put refreshed token: %v", err)
		}

		got, err := repo.Get("trk_1")
		if err != nil {
			t.Fatalf("failed to get token: %v", err)
		}
		if got.Value != "tok_b" {
			t.Errorf("expected tok_b, got %s", got.Value)
		}
		if got.RefreshCount != 1 {
			t.Errorf("expected refresh count 1, got %d", got.RefreshCount)
		}
		if got.RefreshedAt == nil {
			t.Error("expected RefreshedAt to be stored")
		}
	})

	t.Run("Put Invalid Token", func(t *testing.T) {
		repo := NewTokenRepository(setupTestDB(t))
		if err := repo.Put(&models.StreamingToken{TrackID: "trk_1"}); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("Get Missing", func(t *testing.T) {
		repo := NewTokenRepository(setupTestDB(t))

		_, err := repo.Get("nope")
		if !errors.Is(err, shared.ErrTokenNotFound) {
			t.Errorf("expected ErrTokenNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewTokenRepository(setupTestDB(t))
		repo.Put(models.NewStreamingToken("trk_1", "tok_a"))

		if err := repo.Delete("trk_1"); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if _, err := repo.Get("trk_1"); !errors.Is(err, shared.ErrTokenNotFound) {
			t.Errorf("expected token to be gone, got %v", err)
		}
		if err := repo.Delete("trk_1"); err != nil {
			t.Errorf("deleting a missing token should not fail: %v", err)
		}
	})

	t.Run("List And Clear", func(t *testing.T) {
		repo := NewTokenRepository(setupTestDB(t))
		for _, id := range []string{"a", "b", "c"} {
			if err := repo.Put(models.NewStreamingToken(id, "tok_"+id)); err != nil {
				t.Fatalf("failed to put token: %v", err)
			}
		}

		tokens, err := repo.List()
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(tokens) != 3 {
			t.Errorf("expected 3 tokens, got %d", len(tokens))
		}

		n, err := repo.Clear()
		if err != nil {
			t.Fatalf("failed to clear: %v", err)
		}
		if n != 3 {
			t.Errorf("expected 3 rows cleared, got %d", n)
		}

		tokens, _ = repo.List()
		if len(tokens) != 0 {
			t.Errorf("expected empty list after clear, got %d", len(tokens))
		}
	})

	t.Run("Closed Database", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewTokenRepository(db)
		db.Close()

		if err := repo.Put(models.NewStreamingToken("trk_1", "tok")); err == nil {
			t.Error("expected error on closed database")
		}
		if _, err := repo.Get("trk_1"); err == nil || errors.Is(err, shared.ErrTokenNotFound) {
			t.Errorf("expected query error, got %v", err)
		}
		if _, err := repo.List(); err == nil {
			t.Error("expected error listing on closed database")
		}
	})
}
