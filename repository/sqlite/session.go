package sqlite

import (
	"context"
	"database/sql"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/nijaru/yt-chat/errors"
	"github.com/nijaru/yt-chat/models"
)

type Repository struct {
	db     *DB
	logger *logrus.Entry
}

func NewRepository(db *DB) *Repository {
	return &Repository{
		db:     db,
		logger: logrus.WithField("component", "sqlite"),
	}
}

func (r *Repository) Save(ctx context.Context, record *models.SessionRecord) error {
	const op = "SQLiteRepository.Save"

	chunks, err := msgpack.Marshal(record.Chunks)
	if err != nil {
		return errors.StorageError(op, pkgerrors.Wrap(err, "encode chunks"), "Failed to save session")
	}

	_, err = r.db.statements.upsert.ExecContext(ctx,
		record.UserID,
		record.VideoID,
		record.Language,
		record.Summary,
		chunks,
		record.CreatedAt.UnixNano(),
		record.UpdatedAt.UnixNano(),
		record.ExpiresAt.UnixNano(),
	)
	if err != nil {
		if isLockError(err) {
			r.logger.WithError(err).WithField("user_id", record.UserID).Warn("Database busy while saving session")
		}
		return errors.StorageError(op, err, "Failed to save session")
	}
	return nil
}

func (r *Repository) Find(ctx context.Context, userID string) (*models.SessionRecord, error) {
	const op = "SQLiteRepository.Find"

	var (
		record                          models.SessionRecord
		chunks                          []byte
		createdAt, updatedAt, expiresAt int64
	)

	err := r.db.statements.get.QueryRowContext(ctx, userID).Scan(
		&record.UserID,
		&record.VideoID,
		&record.Language,
		&record.Summary,
		&chunks,
		&createdAt,
		&updatedAt,
		&expiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound(op, nil, "Session not found")
	}
	if err != nil {
		return nil, errors.StorageError(op, err, "Failed to query session")
	}

	if err := msgpack.Unmarshal(chunks, &record.Chunks); err != nil {
		return nil, errors.StorageError(op, pkgerrors.Wrap(err, "decode chunks"), "Failed to query session")
	}
	record.CreatedAt = fromUnixNano(createdAt)
	record.UpdatedAt = fromUnixNano(updatedAt)
	record.ExpiresAt = fromUnixNano(expiresAt)

	return &record, nil
}

func (r *Repository) Delete(ctx context.Context, userID string) error {
	const op = "SQLiteRepository.Delete"

	if _, err := r.db.statements.delete.ExecContext(ctx, userID); err != nil {
		return errors.StorageError(op, err, "Failed to delete session")
	}
	return nil
}

func (r *Repository) DeleteIfExpired(ctx context.Context, userID string, now time.Time) (bool, error) {
	const op = "SQLiteRepository.DeleteIfExpired"

	deleted := false
	err := WithTransaction(ctx, r.db.conn, func(tx Executor) error {
		var expiresAt int64
		err := tx.QueryRowContext(ctx, getExpiresAtQuery, userID).Scan(&expiresAt)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return pkgerrors.Wrap(err, "read expiry")
		}
		if expiresAt > now.UnixNano() {
			return nil
		}

		res, err := tx.ExecContext(ctx, deleteIfExpiredQuery, userID, now.UnixNano())
		if err != nil {
			return pkgerrors.Wrap(err, "delete expired session")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return pkgerrors.Wrap(err, "rows affected")
		}
		deleted = n > 0
		return nil
	})
	if err != nil {
		return false, errors.StorageError(op, err, "Failed to delete expired session")
	}
	return deleted, nil
}

func (r *Repository) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	const op = "SQLiteRepository.ListExpired"

	rows, err := r.db.statements.listExpired.QueryContext(ctx, now.UnixNano())
	if err != nil {
		return nil, errors.StorageError(op, err, "Failed to list expired sessions")
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, errors.StorageError(op, err, "Failed to scan expired session")
		}
		userIDs = append(userIDs, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StorageError(op, err, "Failed to list expired sessions")
	}
	return userIDs, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
