package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/shell/internal/core/domain"
	"github.com/vietddude/shell/internal/infra/storage"
)

// noExpiry is the index score of records saved without a TTL.
const noExpiry = float64(1 << 53)

// MountRepo implements storage.MountRepository using Redis. Each record is a
// JSON value with its own TTL; a sorted set scored by expiry time indexes the
// live records for List.
type MountRepo struct {
	client *Client
	now    func() time.Time
}

var _ storage.MountRepository = (*MountRepo)(nil)

// NewMountRepo creates a new Redis-backed mount repository.
func NewMountRepo(client *Client) *MountRepo {
	return &MountRepo{client: client, now: time.Now}
}

// Save stores the record and refreshes its index entry.
func (r *MountRepo) Save(ctx context.Context, rec *domain.MountRecord, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal mount record: %w", err)
	}

	score := noExpiry
	if ttl > 0 {
		score = float64(r.now().Add(ttl).Unix())
	}

	pipe := r.client.rdb.TxPipeline()
	pipe.Set(ctx, r.client.mountKey(rec.SessionID, rec.Remote), data, ttl)
	pipe.ZAdd(ctx, r.client.mountIndexKey(), redis.Z{
		Score:  score,
		Member: indexMember(rec.SessionID, rec.Remote),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save mount record: %w", err)
	}
	return nil
}

// Get retrieves the record of one mount.
func (r *MountRepo) Get(ctx context.Context, sessionID, remote string) (*domain.MountRecord, error) {
	data, err := r.client.rdb.Get(ctx, r.client.mountKey(sessionID, remote)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrMountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}
	return decodeRecord(data)
}

// Delete removes the record and its index entry.
func (r *MountRepo) Delete(ctx context.Context, sessionID, remote string) error {
	pipe := r.client.rdb.TxPipeline()
	pipe.Del(ctx, r.client.mountKey(sessionID, remote))
	pipe.ZRem(ctx, r.client.mountIndexKey(), indexMember(sessionID, remote))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete mount record: %w", err)
	}
	return nil
}

// List returns all live records, pruning expired index entries first.
func (r *MountRepo) List(ctx context.Context) ([]*domain.MountRecord, error) {
	index := r.client.mountIndexKey()
	cutoff := strconv.FormatInt(r.now().Unix(), 10)
	if err := r.client.rdb.ZRemRangeByScore(ctx, index, "-inf", "("+cutoff).Err(); err != nil {
		return nil, fmt.Errorf("zremrangebyscore failed: %w", err)
	}

	members, err := r.client.rdb.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(members))
	for _, m := range members {
		sessionID, remote, ok := strings.Cut(m, "|")
		if !ok {
			continue
		}
		keys = append(keys, r.client.mountKey(sessionID, remote))
	}

	values, err := r.client.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget failed: %w", err)
	}

	out := make([]*domain.MountRecord, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue // expired between ZRANGE and MGET
		}
		rec, err := decodeRecord([]byte(s))
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func decodeRecord(data []byte) (*domain.MountRecord, error) {
	var rec domain.MountRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal mount record: %w", err)
	}
	return &rec, nil
}
