// Package redis stores sessions in Redis so several processes can share
// them. Each record is a msgpack value under session:<user>; a sorted set
// scored by expiry backs the sweep.
package redis

import (
	"context"
	"fmt"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/nijaru/yt-chat/errors"
	"github.com/nijaru/yt-chat/models"
)

const (
	keyPrefix      = "session:"
	expiryIndexKey = "sessions:expiry"
	maxWatchTries  = 3
)

type Config struct {
	URL       string
	Namespace string
}

type Repository struct {
	rdb    *redis.Client
	prefix string
}

// Connect creates a client and verifies connectivity.
func Connect(ctx context.Context, cfg Config) (*Repository, error) {
	const op = "redis.Connect"

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.StorageError(op, err, "invalid redis url")
	}

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, errors.StorageError(op, err, "redis ping failed")
	}

	return NewRepository(rdb, cfg.Namespace), nil
}

func NewRepository(rdb *redis.Client, namespace string) *Repository {
	prefix := ""
	if namespace != "" {
		prefix = namespace + ":"
	}
	return &Repository{rdb: rdb, prefix: prefix}
}

func (r *Repository) sessionKey(userID string) string {
	return r.prefix + keyPrefix + userID
}

func (r *Repository) indexKey() string {
	return r.prefix + expiryIndexKey
}

func (r *Repository) Save(ctx context.Context, record *models.SessionRecord) error {
	const op = "RedisRepository.Save"

	data, err := msgpack.Marshal(record)
	if err != nil {
		return errors.StorageError(op, pkgerrors.Wrap(err, "encode session"), "Failed to save session")
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.sessionKey(record.UserID), data, 0)
		pipe.ZAdd(ctx, r.indexKey(), redis.Z{
			Score:  float64(record.ExpiresAt.UnixNano()),
			Member: record.UserID,
		})
		return nil
	})
	if err != nil {
		return errors.StorageError(op, err, "Failed to save session")
	}
	return nil
}

func (r *Repository) Find(ctx context.Context, userID string) (*models.SessionRecord, error) {
	const op = "RedisRepository.Find"

	data, err := r.rdb.Get(ctx, r.sessionKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, errors.NotFound(op, nil, "Session not found")
	}
	if err != nil {
		return nil, errors.StorageError(op, err, "Failed to query session")
	}

	record, err := decode(data)
	if err != nil {
		return nil, errors.StorageError(op, err, "Failed to query session")
	}
	return record, nil
}

func (r *Repository) Delete(ctx context.Context, userID string) error {
	const op = "RedisRepository.Delete"

	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.sessionKey(userID))
		pipe.ZRem(ctx, r.indexKey(), userID)
		return nil
	})
	if err != nil {
		return errors.StorageError(op, err, "Failed to delete session")
	}
	return nil
}

// DeleteIfExpired watches the session key, re-reads its expiry and deletes
// it in a MULTI block. A concurrent write aborts the transaction and the
// check runs again on the new value.
func (r *Repository) DeleteIfExpired(ctx context.Context, userID string, now time.Time) (bool, error) {
	const op = "RedisRepository.DeleteIfExpired"

	key := r.sessionKey(userID)
	deleted := false

	txf := func(tx *redis.Tx) error {
		deleted = false

		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			// Drop any stale index entry left by a partial write.
			return tx.ZRem(ctx, r.indexKey(), userID).Err()
		}
		if err != nil {
			return err
		}

		record, err := decode(data)
		if err != nil {
			return err
		}
		if !record.Expired(now) {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, r.indexKey(), userID)
			return nil
		})
		if err == nil {
			deleted = true
		}
		return err
	}

	var err error
	for i := 0; i < maxWatchTries; i++ {
		err = r.rdb.Watch(ctx, txf, key)
		if err != redis.TxFailedErr {
			break
		}
	}
	if err != nil {
		return false, errors.StorageError(op, err, "Failed to delete expired session")
	}
	return deleted, nil
}

func (r *Repository) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	const op = "RedisRepository.ListExpired"

	ids, err := r.rdb.ZRangeByScore(ctx, r.indexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.UnixNano()),
	}).Result()
	if err != nil {
		return nil, errors.StorageError(op, err, "Failed to list expired sessions")
	}
	return ids, nil
}

func (r *Repository) Close() error {
	return r.rdb.Close()
}

func decode(data []byte) (*models.SessionRecord, error) {
	var record models.SessionRecord
	if err := msgpack.Unmarshal(data, &record); err != nil {
		return nil, pkgerrors.Wrap(err, "decode session")
	}
	return &record, nil
}
