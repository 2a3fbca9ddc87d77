package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shandysiswandi/smsotp/internal/pkg/goerror"
	"github.com/shandysiswandi/smsotp/internal/verification/entity"
)

type recordStore interface {
	Get(ctx context.Context, userID string) (*entity.Record, error)
	Set(ctx context.Context, userID string, rec entity.Record) error
	Delete(ctx context.Context, userID string) error
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// testStoreContract exercises the behaviour every driver must share.
func testStoreContract(t *testing.T, newStore func(t *testing.T) recordStore) {
	t.Helper()

	// redis drops keys whose retention window has passed, so stay near the wall clock
	now := time.Now().UTC().Truncate(time.Second)
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Get(ctx, "nobody")

		if !errors.Is(err, goerror.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("SetOverwrites", func(t *testing.T) {

		// Arrange
		s := newStore(t)
		first := entity.Record{Code: "111111", PhoneNumber: "233551234567", ExpiresAt: now.Add(time.Minute), Attempts: 2}
		second := entity.Record{Code: "222222", PhoneNumber: "233559999999", ExpiresAt: now.Add(5 * time.Minute)}

		// Act
		if err := s.Set(ctx, "u1", first); err != nil {
			t.Fatalf("set first: %v", err)
		}
		if err := s.Set(ctx, "u1", second); err != nil {
			t.Fatalf("set second: %v", err)
		}

		// Assert
		got, err := s.Get(ctx, "u1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Code != second.Code || got.PhoneNumber != second.PhoneNumber || got.Attempts != 0 {
			t.Fatalf("got %+v, want %+v", *got, second)
		}
		if !got.ExpiresAt.Equal(second.ExpiresAt) {
			t.Fatalf("expires_at = %v, want %v", got.ExpiresAt, second.ExpiresAt)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		_ = s.Set(ctx, "u1", entity.Record{Code: "111111", PhoneNumber: "233551234567", ExpiresAt: now})

		if err := s.Delete(ctx, "u1"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := s.Delete(ctx, "u1"); err != nil {
			t.Fatalf("second delete: %v", err)
		}

		if _, err := s.Get(ctx, "u1"); !errors.Is(err, goerror.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("SweepExpired", func(t *testing.T) {

		// Arrange
		s := newStore(t)
		_ = s.Set(ctx, "old", entity.Record{Code: "111111", PhoneNumber: "233551234567", ExpiresAt: now.Add(-time.Second)})
		_ = s.Set(ctx, "edge", entity.Record{Code: "222222", PhoneNumber: "233551234567", ExpiresAt: now})
		_ = s.Set(ctx, "live", entity.Record{Code: "333333", PhoneNumber: "233551234567", ExpiresAt: now.Add(time.Minute)})

		// Act
		n, err := s.SweepExpired(ctx, now)

		// Assert
		if err != nil {
			t.Fatalf("sweep: %v", err)
		}
		if n != 1 {
			t.Fatalf("swept = %d, want 1", n)
		}
		if _, err := s.Get(ctx, "old"); !errors.Is(err, goerror.ErrNotFound) {
			t.Fatalf("old should be gone, got %v", err)
		}
		for _, id := range []string{"edge", "live"} {
			if _, err := s.Get(ctx, id); err != nil {
				t.Fatalf("%s should survive: %v", id, err)
			}
		}

		n, err = s.SweepExpired(ctx, now)
		if err != nil || n != 0 {
			t.Fatalf("second sweep = %d, %v; want 0, nil", n, err)
		}
	})

	t.Run("ExpiryNeverRoundedDown", func(t *testing.T) {

		// Arrange
		s := newStore(t)
		exp := now.Add(123456789 * time.Nanosecond)
		_ = s.Set(ctx, "u1", entity.Record{Code: "111111", PhoneNumber: "233551234567", ExpiresAt: exp})

		// Act
		rec, err := s.Get(ctx, "u1")

		// Assert
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if rec.ExpiresAt.Before(exp) {
			t.Fatalf("expires_at = %v, earlier than %v", rec.ExpiresAt, exp)
		}
		if rec.Expired(exp) {
			t.Fatalf("record should be valid at its expiry instant")
		}
		if n, err := s.SweepExpired(ctx, exp); err != nil || n != 0 {
			t.Fatalf("sweep at expiry = %d, %v; want 0, nil", n, err)
		}
	})
}
