// Package chain implements the append-only version-chain algorithm shared by
// every versioned entity kind (meta values, codes, term content).
//
// Each kind persists as two relations: an entity row holding the mutable
// current-version pointer, and an immutable version history. A write is:
// close the open version, compute the next contiguous version number, insert
// the new version, repoint the entity — all inside the caller's unit of work.
// Version rows are never locked for update; the only mutation of an existing
// row is closing valid_to, and that happens while the database write lock is
// held (db.Open begins write transactions with BEGIN IMMEDIATE), so writers
// to the same entity are totally ordered.
package chain

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vantagedata/metakeep/errors"
	"github.com/vantagedata/metakeep/uow"
)

// Spec names the two relations of one versioned entity kind. Table and
// column names come from compile-time constants in the owning store, never
// from user input.
type Spec struct {
	// EntityTable holds the entity rows with their current-version pointer.
	EntityTable string
	// EntityIDColumn is the entity table's primary key column.
	EntityIDColumn string
	// VersionTable holds the append-only version history.
	VersionTable string
	// OwnerColumn is the version table's foreign key back to the entity.
	OwnerColumn string
}

// InsertVersion writes one version row with the kind-specific payload
// columns. Implementations must insert exactly one row with the given
// version id, owner, number and validity start, and leave valid_to open.
type InsertVersion func(ctx context.Context, tx *sql.Tx, versionID string, versionNo int, validFrom time.Time) error

// Engine runs the version-chain algorithm. It assumes validated input and an
// active unit of work; it raises only storage and programming errors.
type Engine struct {
	logger *zap.SugaredLogger
}

// NewEngine creates a version-chain engine. logger may be nil.
func NewEngine(logger *zap.SugaredLogger) *Engine {
	return &Engine{logger: logger}
}

// NextVersionNo returns max(version_no)+1 for the entity, or 1 if no
// versions exist. It must be used within the same transaction that inserts
// the version, or two writers can compute the same number.
func (e *Engine) NextVersionNo(ctx context.Context, spec Spec, entityID string) (int, error) {
	tx, err := uow.Tx(ctx)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(
		"SELECT COALESCE(MAX(version_no), 0) FROM %s WHERE %s = ?",
		spec.VersionTable, spec.OwnerColumn,
	)
	var max int
	if err := tx.QueryRowContext(ctx, query, entityID).Scan(&max); err != nil {
		return 0, errors.Wrapf(err, "next version number for %s %s", spec.EntityTable, entityID)
	}
	return max + 1, nil
}

// CloseCurrent sets valid_to on the entity's open version, if any. It is a
// no-op when the entity has no current version or the version is already
// closed (idempotent).
func (e *Engine) CloseCurrent(ctx context.Context, spec Spec, entityID string, now time.Time) error {
	tx, err := uow.Tx(ctx)
	if err != nil {
		return err
	}

	var currentID sql.NullString
	query := fmt.Sprintf(
		"SELECT current_version_id FROM %s WHERE %s = ?",
		spec.EntityTable, spec.EntityIDColumn,
	)
	if err := tx.QueryRowContext(ctx, query, entityID).Scan(&currentID); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return errors.Wrapf(err, "read current pointer of %s %s", spec.EntityTable, entityID)
	}
	if !currentID.Valid {
		return nil
	}

	update := fmt.Sprintf(
		"UPDATE %s SET valid_to = ? WHERE version_id = ? AND valid_to IS NULL",
		spec.VersionTable,
	)
	if _, err := tx.ExecContext(ctx, update, now, currentID.String); err != nil {
		return errors.Wrapf(err, "close version %s", currentID.String)
	}
	return nil
}

// Commit appends a new version to the entity's chain and advances the
// current pointer: close current, compute the next number, insert via the
// kind-specific callback, repoint. The caller must have ensured the entity
// row exists within this same unit of work. Returns the new version id.
//
// Every accepted write produces a version, including writes of an identical
// payload: each one is an audit event.
func (e *Engine) Commit(ctx context.Context, spec Spec, entityID string, insert InsertVersion) (string, error) {
	tx, err := uow.Tx(ctx)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()

	if err := e.CloseCurrent(ctx, spec, entityID, now); err != nil {
		return "", err
	}

	versionNo, err := e.NextVersionNo(ctx, spec, entityID)
	if err != nil {
		return "", err
	}

	versionID := uuid.NewString()
	if err := insert(ctx, tx, versionID, versionNo, now); err != nil {
		return "", errors.Wrapf(err, "insert version %d of %s %s", versionNo, spec.EntityTable, entityID)
	}

	repoint := fmt.Sprintf(
		"UPDATE %s SET current_version_id = ? WHERE %s = ?",
		spec.EntityTable, spec.EntityIDColumn,
	)
	res, err := tx.ExecContext(ctx, repoint, versionID, entityID)
	if err != nil {
		return "", errors.Wrapf(err, "repoint %s %s", spec.EntityTable, entityID)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return "", errors.AssertionFailedf("entity row %s missing from %s during commit", entityID, spec.EntityTable)
	}

	if e.logger != nil {
		e.logger.Debugw("Committed version",
			"entity_table", spec.EntityTable,
			"entity_id", entityID,
			"version_id", versionID,
			"version_no", versionNo,
		)
	}
	return versionID, nil
}
