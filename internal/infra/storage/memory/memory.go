package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/shell/internal/core/domain"
	"github.com/vietddude/shell/internal/infra/storage"
)

type entry struct {
	rec       domain.MountRecord
	expiresAt time.Time // zero = never
}

// MemoryStorage keeps mount records in process. Suitable for a single replica.
type MemoryStorage struct {
	mounts map[string]entry
	now    func() time.Time
	mu     sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		mounts: make(map[string]entry),
		now:    time.Now,
	}
}

// -----------------------------------------------------------------------------
// Mount Repository
// -----------------------------------------------------------------------------

type MountRepo struct {
	store *MemoryStorage
}

var _ storage.MountRepository = (*MountRepo)(nil)

func NewMountRepo(store *MemoryStorage) *MountRepo {
	return &MountRepo{store: store}
}

func mountKey(sessionID, remote string) string {
	return sessionID + "/" + remote
}

func (r *MountRepo) Save(ctx context.Context, rec *domain.MountRecord, ttl time.Duration) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	e := entry{rec: *rec}
	if ttl > 0 {
		e.expiresAt = r.store.now().Add(ttl)
	}
	r.store.mounts[mountKey(rec.SessionID, rec.Remote)] = e
	return nil
}

func (r *MountRepo) Get(ctx context.Context, sessionID, remote string) (*domain.MountRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	e, ok := r.store.mounts[mountKey(sessionID, remote)]
	if !ok || r.store.expired(e) {
		return nil, storage.ErrMountNotFound
	}
	rec := e.rec
	return &rec, nil
}

func (r *MountRepo) Delete(ctx context.Context, sessionID, remote string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.mounts, mountKey(sessionID, remote))
	return nil
}

func (r *MountRepo) List(ctx context.Context) ([]*domain.MountRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]*domain.MountRecord, 0, len(r.store.mounts))
	for key, e := range r.store.mounts {
		if r.store.expired(e) {
			delete(r.store.mounts, key)
			continue
		}
		rec := e.rec
		out = append(out, &rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SessionID != out[j].SessionID {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].Remote < out[j].Remote
	})
	return out, nil
}

func (s *MemoryStorage) expired(e entry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}
