package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nijaru/yt-chat/errors"
)

type PreparedStatements struct {
	upsert      *sql.Stmt
	get         *sql.Stmt
	delete      *sql.Stmt
	listExpired *sql.Stmt
}

func (stmts *PreparedStatements) Prepare(ctx context.Context, db *sql.DB) error {
	const op = "PreparedStatements.Prepare"

	var err error

	if stmts.upsert, err = db.PrepareContext(ctx, upsertSessionQuery); err != nil {
		return errors.StorageError(op, err, "failed to prepare upsert statement")
	}

	if stmts.get, err = db.PrepareContext(ctx, getSessionQuery); err != nil {
		return errors.StorageError(op, err, "failed to prepare get statement")
	}

	if stmts.delete, err = db.PrepareContext(ctx, deleteSessionQuery); err != nil {
		return errors.StorageError(op, err, "failed to prepare delete statement")
	}

	if stmts.listExpired, err = db.PrepareContext(ctx, listExpiredQuery); err != nil {
		return errors.StorageError(op, err, "failed to prepare listExpired statement")
	}

	return nil
}

func (stmts *PreparedStatements) Close() error {
	var errs []error

	statements := [...]*sql.Stmt{
		stmts.upsert,
		stmts.get,
		stmts.delete,
		stmts.listExpired,
	}

	for _, stmt := range statements {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to close prepared statements: %v", errs)
	}

	return nil
}
