// Package uow provides unit-of-work transaction management for metakeep.
//
// A unit of work owns exactly one *sql.Tx per logical call chain. The handle
// is carried in the context.Context, never in package-level state, so
// concurrent flows cannot corrupt each other's transaction boundaries.
// Nested business calls reach the active handle through Tx(ctx) without
// receiving it as an explicit parameter.
//
// Three propagation modes are supported:
//
//   - Required (default): join the caller's active transaction if one
//     exists, otherwise create one and own its lifecycle.
//   - RequiresNew: always create an independent transaction, even inside an
//     active one. Its outcome survives the outer transaction's rollback.
//   - Nested: open a savepoint inside the active transaction; on failure
//     only the savepoint is rolled back and the outer transaction continues.
//
// The owner of a transaction (the Run call that created it) commits, rolls
// back and closes it. A joiner never commits or closes a handle it did not
// create. When the owning scope is ReadOnly, a successful body ends in
// rollback instead of commit, so read operations never persist incidentally
// staged writes. A ReadOnly scope that joins an existing transaction defers
// to the owner.
//
// SQLite admits a single write transaction at a time. A RequiresNew scope
// opened while the caller holds a write transaction therefore blocks on the
// database write lock and surfaces a busy error once the driver's busy
// timeout elapses. Launch independent transactions from non-transactional
// callers.
package uow

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/vantagedata/metakeep/errors"
)

// Propagation selects how Run relates to an already-active transaction.
type Propagation int

const (
	// Required joins the active transaction, or creates one if none exists.
	Required Propagation = iota
	// RequiresNew always creates a new, independent transaction.
	RequiresNew
	// Nested opens a savepoint within the active transaction.
	Nested
)

// String returns the propagation mode name for logging.
func (p Propagation) String() string {
	switch p {
	case Required:
		return "required"
	case RequiresNew:
		return "requires_new"
	case Nested:
		return "nested"
	default:
		return fmt.Sprintf("propagation(%d)", int(p))
	}
}

// Options configures one Run invocation.
type Options struct {
	Propagation Propagation
	// ReadOnly rolls back instead of committing after a successful body.
	ReadOnly bool
}

type ctxKey struct{}

type session struct {
	tx *sql.Tx
}

// Tx returns the transaction handle of the enclosing unit of work.
// Calling it outside any Run scope is a programming error and returns
// errors.ErrNoActiveTransaction.
func Tx(ctx context.Context) (*sql.Tx, error) {
	s, ok := ctx.Value(ctxKey{}).(*session)
	if !ok || s == nil || s.tx == nil {
		return nil, errors.WithStack(errors.ErrNoActiveTransaction)
	}
	return s.tx, nil
}

// InTransaction reports whether ctx carries an active unit of work.
func InTransaction(ctx context.Context) bool {
	_, err := Tx(ctx)
	return err == nil
}

// Manager creates and propagates units of work over one database.
type Manager struct {
	db     *sql.DB
	logger *zap.SugaredLogger
	spSeq  atomic.Uint64
}

// NewManager creates a unit-of-work manager. logger may be nil for silent operation.
func NewManager(db *sql.DB, logger *zap.SugaredLogger) *Manager {
	return &Manager{db: db, logger: logger}
}

// Run executes fn inside a unit of work selected by opts.
//
// Errors from fn propagate unchanged; whichever Run call owns the handle
// rolls back before the handle is closed. A transaction is never left open
// past the call chain's lifetime: the owning Run rolls back on teardown even
// when fn panics or the context is cancelled mid-body.
func (m *Manager) Run(ctx context.Context, opts Options, fn func(ctx context.Context) error) error {
	existing, _ := Tx(ctx)

	if opts.Propagation == RequiresNew || existing == nil {
		return m.runOwned(ctx, opts, fn)
	}

	if opts.Propagation == Nested {
		return m.runSavepoint(ctx, existing, fn)
	}

	// Required join: the outer owner handles commit/rollback/close. A
	// read-only joiner needs no special handling because a joiner never
	// commits; the owner decides the transaction's fate.
	if m.logger != nil {
		m.logger.Debugw("Joining active transaction", "propagation", opts.Propagation.String())
	}
	return fn(ctx)
}

// runOwned creates a transaction, runs fn with it in context, and owns its
// full lifecycle.
func (m *Manager) runOwned(ctx context.Context, opts Options, fn func(ctx context.Context) error) (err error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	if m.logger != nil {
		m.logger.Debugw("Created transaction",
			"propagation", opts.Propagation.String(),
			"read_only", opts.ReadOnly,
		)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		// Teardown path: fn failed, panicked, or the body succeeded in
		// read-only mode. Rollback errors on an already-finished handle
		// are expected when the context was cancelled.
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone && m.logger != nil {
			m.logger.Errorw("Rollback failed", "error", rbErr)
		}
	}()

	runCtx := context.WithValue(ctx, ctxKey{}, &session{tx: tx})
	if err = fn(runCtx); err != nil {
		return err
	}

	if opts.ReadOnly {
		// handled by the deferred rollback
		return nil
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	committed = true
	return nil
}

// runSavepoint runs fn inside a savepoint on the caller's transaction.
// On failure only the savepoint is rolled back; the error still propagates
// so the caller decides the outer transaction's fate.
func (m *Manager) runSavepoint(ctx context.Context, tx *sql.Tx, fn func(ctx context.Context) error) error {
	name := fmt.Sprintf("uow_sp_%d", m.spSeq.Add(1))

	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return errors.Wrapf(err, "create savepoint %s", name)
	}
	if m.logger != nil {
		m.logger.Debugw("Created savepoint", "savepoint", name)
	}

	if err := fn(ctx); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO "+name); rbErr != nil {
			return errors.Wrapf(err, "rollback to savepoint %s also failed: %v", name, rbErr)
		}
		if _, relErr := tx.ExecContext(ctx, "RELEASE "+name); relErr != nil && m.logger != nil {
			m.logger.Errorw("Release savepoint failed", "savepoint", name, "error", relErr)
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, "RELEASE "+name); err != nil {
		return errors.Wrapf(err, "release savepoint %s", name)
	}
	return nil
}

// Required runs fn with Required propagation.
func (m *Manager) Required(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.Run(ctx, Options{Propagation: Required}, fn)
}

// RequiresNew runs fn in an independent transaction.
func (m *Manager) RequiresNew(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.Run(ctx, Options{Propagation: RequiresNew}, fn)
}

// Nested runs fn inside a savepoint of the active transaction, or in its own
// transaction when none is active.
func (m *Manager) Nested(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.Run(ctx, Options{Propagation: Nested}, fn)
}

// ReadOnly runs fn with Required propagation and rollback-on-success.
func (m *Manager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.Run(ctx, Options{Propagation: Required, ReadOnly: true}, fn)
}
