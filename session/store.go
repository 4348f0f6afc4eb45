// Package session keeps each user's processed-video state in a cache-aside
// store: an in-process cache in front of a durable repository. The
// repository is authoritative; the cache is filled lazily from it and an
// entry is trusted for at most the cache TTL, so writes made by another
// process sharing the repository become visible within that bound.
package session

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-chat/errors"
	"github.com/nijaru/yt-chat/models"
	"github.com/nijaru/yt-chat/repository"
)

const lockStripes = 256

// DefaultCacheTTL bounds how long a memory entry is served without
// consulting the repository.
const DefaultCacheTTL = time.Minute

type Store struct {
	repo     repository.SessionRepository
	memory   *cache.Cache
	cacheTTL time.Duration
	locks    [lockStripes]sync.Mutex
	now      func() time.Time
	logger   *logrus.Entry
}

// cachedSession is a memory entry. It is served until fresh, which is never
// later than the record's own expiry.
type cachedSession struct {
	record *models.SessionRecord
	fresh  time.Time
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithCacheCleanupInterval sets how often the memory layer purges entries
// whose TTL has passed.
func WithCacheCleanupInterval(d time.Duration) Option {
	return func(s *Store) { s.memory = cache.New(cache.NoExpiration, d) }
}

// WithCacheTTL sets how long a memory entry is served before the store
// reloads it from the repository. Zero or less keeps entries until the
// session itself expires.
func WithCacheTTL(d time.Duration) Option {
	return func(s *Store) { s.cacheTTL = d }
}

func NewStore(repo repository.SessionRepository, opts ...Option) *Store {
	s := &Store{
		repo:     repo,
		memory:   cache.New(cache.NoExpiration, 10*time.Minute),
		cacheTTL: DefaultCacheTTL,
		now:      time.Now,
		logger:   logrus.WithField("component", "session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lock serializes every store operation for one user, including the
// durable call, so reads and writes for that user are linearizable.
func (s *Store) lock(userID string) func() {
	h := fnv.New32a()
	h.Write([]byte(userID))
	mu := &s.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// Get returns the user's live session. Expired sessions are removed from
// both layers and reported as NotFound.
func (s *Store) Get(ctx context.Context, userID string) (*models.SessionRecord, error) {
	const op = "SessionStore.Get"

	unlock := s.lock(userID)
	defer unlock()

	now := s.now()

	if v, ok := s.memory.Get(userID); ok {
		entry := v.(*cachedSession)
		if now.Before(entry.fresh) && !entry.record.Expired(now) {
			return entry.record.Clone(), nil
		}
		s.memory.Delete(userID)
	}

	record, err := s.repo.Find(ctx, userID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFound(op, err, "Session not found")
		}
		return nil, storageError(op, err, "Failed to load session")
	}

	if record.Expired(now) {
		if _, err := s.repo.DeleteIfExpired(ctx, userID, now); err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("Failed to delete expired session")
		}
		return nil, errors.NotFound(op, nil, "Session expired")
	}

	s.remember(record, now)
	return record.Clone(), nil
}

// Put persists record and only then makes it visible in memory. On a
// storage failure the memory layer is left as it was.
func (s *Store) Put(ctx context.Context, record *models.SessionRecord) error {
	const op = "SessionStore.Put"

	if record == nil || record.UserID == "" {
		return errors.InvalidInput(op, nil, "Session record requires a user ID")
	}

	unlock := s.lock(record.UserID)
	defer unlock()

	if err := s.repo.Save(ctx, record); err != nil {
		return storageError(op, err, "Failed to save session")
	}

	s.remember(record.Clone(), s.now())
	return nil
}

// Clear removes the user's session from both layers. Clearing a missing
// session is not an error.
func (s *Store) Clear(ctx context.Context, userID string) error {
	const op = "SessionStore.Clear"

	unlock := s.lock(userID)
	defer unlock()

	if err := s.repo.Delete(ctx, userID); err != nil {
		return storageError(op, err, "Failed to clear session")
	}
	s.memory.Delete(userID)
	return nil
}

// SweepExpired deletes every session whose expiry has passed at now. Each
// delete re-checks the expiry in storage under the user's lock, so a
// session refreshed after the scan survives.
func (s *Store) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	const op = "SessionStore.SweepExpired"

	userIDs, err := s.repo.ListExpired(ctx, now)
	if err != nil {
		return 0, storageError(op, err, "Failed to list expired sessions")
	}

	removed := 0
	var firstErr error
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return removed, storageError(op, ctx.Err(), "Sweep cancelled")
		}

		deleted, err := s.sweepOne(ctx, userID, now)
		if err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("Failed to sweep session")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if deleted {
			removed++
		}
	}

	if firstErr != nil {
		return removed, storageError(op, firstErr, "Failed to sweep some sessions")
	}
	return removed, nil
}

func (s *Store) sweepOne(ctx context.Context, userID string, now time.Time) (bool, error) {
	unlock := s.lock(userID)
	defer unlock()

	deleted, err := s.repo.DeleteIfExpired(ctx, userID, now)
	if err != nil {
		return false, err
	}
	if deleted {
		s.memory.Delete(userID)
	}
	return deleted, nil
}

// CachedCount reports how many sessions the memory layer holds.
func (s *Store) CachedCount() int {
	return s.memory.ItemCount()
}

func (s *Store) remember(record *models.SessionRecord, now time.Time) {
	fresh := record.ExpiresAt
	if s.cacheTTL > 0 {
		if bound := now.Add(s.cacheTTL); bound.Before(fresh) {
			fresh = bound
		}
	}
	ttl := fresh.Sub(now)
	if ttl <= 0 {
		s.memory.Delete(record.UserID)
		return
	}
	s.memory.Set(record.UserID, &cachedSession{record: record, fresh: fresh}, ttl)
}

func storageError(op string, err error, message string) error {
	if errors.IsStorageError(err) {
		return err
	}
	return errors.StorageError(op, err, message)
}
