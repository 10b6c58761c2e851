package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"image.share/internal/models"
)

var t0 = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func newLink(id string, ttl time.Duration) *models.ShareLink {
	return &models.ShareLink{
		ID:               id,
		StoredObjectRef:  fmt.Sprintf("ref-%s.png", id),
		OriginalFilename: "My Photo.png",
		DurationClass:    "1h",
		ContentType:      "image/png",
		SizeBytes:        51200,
		CreatedAt:        t0,
		ExpiresAt:        t0.Add(ttl),
	}
}

func newStores(t *testing.T) map[string]Store {
	t.Helper()

	mr := miniredis.RunT(t)
	rs, err := NewRedisStore(&redis.Options{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}

	ss, err := NewSQLiteStore(filepath.Join(t.TempDir(), "links.db"))
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  rs,
		"sqlite": ss,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestSaveAndGet(t *testing.T) {
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			link := newLink("a1b2", time.Hour)

			if err := s.Save(ctx, link); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err := s.Get(ctx, link.ID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.ID != link.ID || got.StoredObjectRef != link.StoredObjectRef ||
				got.OriginalFilename != link.OriginalFilename || got.DurationClass != link.DurationClass ||
				got.ContentType != link.ContentType || got.SizeBytes != link.SizeBytes {
				t.Fatalf("Get = %+v, want %+v", got, link)
			}
			if !got.CreatedAt.Equal(link.CreatedAt) || !got.ExpiresAt.Equal(link.ExpiresAt) {
				t.Fatalf("timestamps: got %v/%v, want %v/%v", got.CreatedAt, got.ExpiresAt, link.CreatedAt, link.ExpiresAt)
			}
			if got.ViewCount != 0 {
				t.Fatalf("ViewCount = %d, want 0", got.ViewCount)
			}

			if err := s.Save(ctx, newLink("a1b2", 2*time.Hour)); !errors.Is(err, ErrDuplicate) {
				t.Fatalf("second Save err = %v, want ErrDuplicate", err)
			}
		})
	}
}

func TestGetExactMatchOnly(t *testing.T) {
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Save(ctx, newLink("abcdef", time.Hour)); err != nil {
				t.Fatal(err)
			}
			for _, id := range []string{"abc", "ABCDEF", "abcdef ", "abc%", "abc*"} {
				if _, err := s.Get(ctx, id); !errors.Is(err, ErrNotFound) {
					t.Errorf("Get(%q) err = %v, want ErrNotFound", id, err)
				}
			}
		})
	}
}

func TestIncrementViews(t *testing.T) {
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			link := newLink("views", time.Hour)
			if err := s.Save(ctx, link); err != nil {
				t.Fatal(err)
			}

			for i := 1; i <= 5; i++ {
				got, err := s.IncrementViews(ctx, link.ID, t0.Add(time.Minute))
				if err != nil {
					t.Fatalf("IncrementViews #%d: %v", i, err)
				}
				if got.ViewCount != int64(i) {
					t.Fatalf("ViewCount = %d, want %d", got.ViewCount, i)
				}
			}

			// Exactly at expires_at the link is still active.
			if _, err := s.IncrementViews(ctx, link.ID, link.ExpiresAt); err != nil {
				t.Fatalf("IncrementViews at expires_at: %v", err)
			}

			if _, err := s.IncrementViews(ctx, link.ID, link.ExpiresAt.Add(time.Nanosecond)); !errors.Is(err, ErrExpired) {
				t.Fatalf("IncrementViews after expiry err = %v, want ErrExpired", err)
			}
			got, err := s.Get(ctx, link.ID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.ViewCount != 6 {
				t.Fatalf("expired increment changed count: %d", got.ViewCount)
			}

			if _, err := s.IncrementViews(ctx, "missing", t0); !errors.Is(err, ErrNotFound) {
				t.Fatalf("IncrementViews(missing) err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestIncrementViewsConcurrent(t *testing.T) {
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			link := newLink("busy", time.Hour)
			if err := s.Save(ctx, link); err != nil {
				t.Fatal(err)
			}

			const viewers = 20
			var wg sync.WaitGroup
			errs := make(chan error, viewers)
			for i := 0; i < viewers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := s.IncrementViews(ctx, link.ID, t0); err != nil {
						errs <- err
					}
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				t.Fatalf("IncrementViews: %v", err)
			}

			got, err := s.Get(ctx, link.ID)
			if err != nil {
				t.Fatal(err)
			}
			if got.ViewCount != viewers {
				t.Fatalf("ViewCount = %d, want %d", got.ViewCount, viewers)
			}
		})
	}
}

func TestDeleteIdempotent(t *testing.T) {
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			link := newLink("gone", time.Hour)
			if err := s.Save(ctx, link); err != nil {
				t.Fatal(err)
			}

			if err := s.Delete(ctx, link.ID); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := s.Delete(ctx, link.ID); err != nil {
				t.Fatalf("second Delete: %v", err)
			}
			if err := s.Delete(ctx, "never-existed"); err != nil {
				t.Fatalf("Delete(never-existed): %v", err)
			}
			if _, err := s.Get(ctx, link.ID); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get after Delete err = %v", err)
			}
		})
	}
}

func TestExpired(t *testing.T) {
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, l := range []*models.ShareLink{
				newLink("short", time.Hour),
				newLink("medium", 24*time.Hour),
				newLink("long", 30*24*time.Hour),
			} {
				if err := s.Save(ctx, l); err != nil {
					t.Fatal(err)
				}
			}

			ids, err := s.Expired(ctx, t0.Add(time.Hour))
			if err != nil {
				t.Fatal(err)
			}
			if len(ids) != 0 {
				t.Fatalf("Expired at boundary = %v, want none", ids)
			}

			ids, err = s.Expired(ctx, t0.Add(25*time.Hour))
			if err != nil {
				t.Fatal(err)
			}
			want := map[string]bool{"short": true, "medium": true}
			if len(ids) != len(want) {
				t.Fatalf("Expired = %v, want %v", ids, want)
			}
			for _, id := range ids {
				if !want[id] {
					t.Fatalf("unexpected expired id %q", id)
				}
			}

			if err := s.Delete(ctx, "short"); err != nil {
				t.Fatal(err)
			}
			ids, err = s.Expired(ctx, t0.Add(25*time.Hour))
			if err != nil {
				t.Fatal(err)
			}
			if len(ids) != 1 || ids[0] != "medium" {
				t.Fatalf("Expired after delete = %v", ids)
			}
		})
	}
}

func TestSQLiteRejectsNonPositiveLifetime(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "links.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	bad := newLink("bad", 0)
	if err := s.Save(context.Background(), bad); err == nil {
		t.Fatal("expected CHECK constraint violation for expires_at == created_at")
	}
}

func TestCeilMicro(t *testing.T) {
	exact := time.UnixMicro(1_000_000).UTC()
	if got := ceilMicro(exact); got != 1_000_000 {
		t.Fatalf("ceilMicro(exact) = %d", got)
	}
	if got := ceilMicro(exact.Add(time.Nanosecond)); got != 1_000_001 {
		t.Fatalf("ceilMicro(exact+1ns) = %d", got)
	}
}
