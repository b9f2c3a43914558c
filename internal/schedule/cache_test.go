package schedule

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/turnosalud/booking-platform/pkg/logging"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewCache(client, time.Minute, logging.New("error")), mr
}

func TestCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	professionalID := uuid.New()
	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)

	slots := []Slot{
		{StartAt: from.Add(12 * time.Hour), EndAt: from.Add(12*time.Hour + 50*time.Minute), Modality: "virtual"},
	}
	cache.Set(ctx, professionalID, from, to, "", slots)

	got, ok := cache.Get(ctx, professionalID, from, to, "")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != 1 || !got[0].StartAt.Equal(slots[0].StartAt) || got[0].Modality != "virtual" {
		t.Fatalf("got %#v", got)
	}
}

func TestCacheMissOnDifferentWindowOrModality(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	professionalID := uuid.New()
	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)

	cache.Set(ctx, professionalID, from, to, "virtual", []Slot{})

	if _, ok := cache.Get(ctx, professionalID, from, to, ""); ok {
		t.Error("modality must be part of the key")
	}
	if _, ok := cache.Get(ctx, professionalID, from, to.Add(time.Hour), "virtual"); ok {
		t.Error("window must be part of the key")
	}
}

func TestCacheInvalidateDropsAllWindowsForProfessional(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	target := uuid.New()
	other := uuid.New()
	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	cache.Set(ctx, target, from, from.AddDate(0, 0, 7), "", []Slot{})
	cache.Set(ctx, target, from, from.AddDate(0, 0, 21), "virtual", []Slot{})
	cache.Set(ctx, other, from, from.AddDate(0, 0, 7), "", []Slot{})

	cache.Invalidate(ctx, target)

	if _, ok := cache.Get(ctx, target, from, from.AddDate(0, 0, 7), ""); ok {
		t.Error("first window survived invalidation")
	}
	if _, ok := cache.Get(ctx, target, from, from.AddDate(0, 0, 21), "virtual"); ok {
		t.Error("second window survived invalidation")
	}
	if _, ok := cache.Get(ctx, other, from, from.AddDate(0, 0, 7), ""); !ok {
		t.Error("other professional's entry was dropped")
	}
}

func TestCacheEntriesExpire(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	professionalID := uuid.New()
	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)

	cache.Set(ctx, professionalID, from, to, "", []Slot{})
	mr.FastForward(2 * time.Minute)

	if _, ok := cache.Get(ctx, professionalID, from, to, ""); ok {
		t.Error("entry should have expired")
	}
}
