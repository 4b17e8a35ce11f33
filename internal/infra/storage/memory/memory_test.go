package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/shell/internal/core/domain"
	"github.com/vietddude/shell/internal/infra/storage"
)

func TestMountRepo_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewMountRepo(NewMemoryStorage())

	rec := &domain.MountRecord{SessionID: "s1", Remote: "blog", Phase: domain.PhaseLoaded, RemountKey: 2}
	if err := repo.Save(ctx, rec, 0); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := repo.Get(ctx, "s1", "blog")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Phase != domain.PhaseLoaded || got.RemountKey != 2 {
		t.Errorf("unexpected record %+v", got)
	}

	// Stored value is a copy.
	rec.Phase = domain.PhaseFailed
	if got, _ := repo.Get(ctx, "s1", "blog"); got.Phase != domain.PhaseLoaded {
		t.Error("repository must not alias saved records")
	}

	if err := repo.Delete(ctx, "s1", "blog"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.Get(ctx, "s1", "blog"); !errors.Is(err, storage.ErrMountNotFound) {
		t.Errorf("expected ErrMountNotFound, got %v", err)
	}
}

func TestMountRepo_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }
	repo := NewMountRepo(store)

	_ = repo.Save(ctx, &domain.MountRecord{SessionID: "s1", Remote: "blog"}, time.Minute)
	_ = repo.Save(ctx, &domain.MountRecord{SessionID: "s2", Remote: "resume"}, 0)

	now = now.Add(2 * time.Minute)

	if _, err := repo.Get(ctx, "s1", "blog"); !errors.Is(err, storage.ErrMountNotFound) {
		t.Errorf("expected expired record to be gone, got %v", err)
	}
	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 || list[0].SessionID != "s2" {
		t.Errorf("expected only the non-expiring record, got %+v", list)
	}
}
