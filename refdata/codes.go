package refdata

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vantagedata/metakeep/chain"
	"github.com/vantagedata/metakeep/errors"
	"github.com/vantagedata/metakeep/uow"
)

// codeChain names the two relations of the code entity kind.
var codeChain = chain.Spec{
	EntityTable:    "codes",
	EntityIDColumn: "code_id",
	VersionTable:   "code_versions",
	OwnerColumn:    "code_id",
}

// CodeStore manages codesets and their versioned codes.
type CodeStore struct {
	engine *chain.Engine
	logger *zap.SugaredLogger
}

// NewCodeStore creates a code store. logger may be nil.
func NewCodeStore(engine *chain.Engine, logger *zap.SugaredLogger) *CodeStore {
	return &CodeStore{engine: engine, logger: logger}
}

// CreateCodeSet inserts a new codeset.
func (s *CodeStore) CreateCodeSet(ctx context.Context, codesetCode, name, description string) (*CodeSet, error) {
	tx, err := uow.Tx(ctx)
	if err != nil {
		return nil, err
	}

	cs := &CodeSet{
		CodeSetID:   uuid.NewString(),
		CodeSetCode: codesetCode,
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO codesets (codeset_id, codeset_code, name, description, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		cs.CodeSetID, cs.CodeSetCode, cs.Name, nullable(cs.Description), cs.CreatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "create codeset %s", codesetCode)
	}
	return cs, nil
}

// GetCodeSetByCode looks up a codeset by its human code.
func (s *CodeStore) GetCodeSetByCode(ctx context.Context, codesetCode string) (*CodeSet, error) {
	tx, err := uow.Tx(ctx)
	if err != nil {
		return nil, err
	}

	var cs CodeSet
	var desc sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT codeset_id, codeset_code, name, description, created_at
		FROM codesets WHERE codeset_code = ?`, codesetCode).
		Scan(&cs.CodeSetID, &cs.CodeSetCode, &cs.Name, &desc, &cs.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrEntityNotFound, "codeset %q", codesetCode)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get codeset %s", codesetCode)
	}
	cs.Description = desc.String
	return &cs, nil
}

// CreateCode inserts a new code into a codeset. The code has no label until
// SetCodeLabel writes its first version.
func (s *CodeStore) CreateCode(ctx context.Context, codesetID, codeKey string) (*Code, error) {
	tx, err := uow.Tx(ctx)
	if err != nil {
		return nil, err
	}

	c := &Code{
		CodeID:    uuid.NewString(),
		CodeSetID: codesetID,
		CodeKey:   codeKey,
		CreatedAt: time.Now().UTC(),
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO codes (code_id, codeset_id, code_key, created_at)
		VALUES (?, ?, ?, ?)`,
		c.CodeID, c.CodeSetID, c.CodeKey, c.CreatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "create code %s", codeKey)
	}
	return c, nil
}

// SetCodeLabel appends a new version to the code's chain and advances the
// current pointer. The code must already exist.
func (s *CodeStore) SetCodeLabel(ctx context.Context, codeID string, upd CodeLabelUpdate) (string, error) {
	if _, err := s.getCode(ctx, codeID); err != nil {
		return "", err
	}

	return s.engine.Commit(ctx, codeChain, codeID,
		func(ctx context.Context, tx *sql.Tx, versionID string, versionNo int, validFrom time.Time) error {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO code_versions
					(version_id, code_id, version_no, label, sort_order, parent_code_id,
					 is_active, extra_json, author, reason, valid_from)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				versionID, codeID, versionNo, upd.Label, upd.SortOrder,
				nullable(upd.ParentCodeID), upd.IsActive, nullableJSON(upd.ExtraJSON),
				nullable(upd.Author), nullable(upd.Reason), validFrom)
			return err
		})
}

// ResolveCode resolves a code by identifier-as-id first, then
// identifier-as-human-key scoped to codesetCode when that scope is known.
// Returns ErrReferenceNotFound listing the offending key.
func (s *CodeStore) ResolveCode(ctx context.Context, codesetCode, keyOrID string) (*Code, error) {
	tx, err := uow.Tx(ctx)
	if err != nil {
		return nil, err
	}

	c, err := scanCode(tx.QueryRowContext(ctx, `
		SELECT code_id, codeset_id, code_key, current_version_id, created_at
		FROM codes WHERE code_id = ?`, keyOrID))
	if err == nil {
		return c, nil
	}
	if err != sql.ErrNoRows {
		return nil, errors.Wrapf(err, "resolve code %s", keyOrID)
	}

	var row *sql.Row
	if codesetCode != "" {
		row = tx.QueryRowContext(ctx, `
			SELECT c.code_id, c.codeset_id, c.code_key, c.current_version_id, c.created_at
			FROM codes c JOIN codesets cs ON cs.codeset_id = c.codeset_id
			WHERE cs.codeset_code = ? AND c.code_key = ?`, codesetCode, keyOrID)
	} else {
		row = tx.QueryRowContext(ctx, `
			SELECT code_id, codeset_id, code_key, current_version_id, created_at
			FROM codes WHERE code_key = ?`, keyOrID)
	}
	c, err = scanCode(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewReferenceNotFound("code", keyOrID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "resolve code %s", keyOrID)
	}
	return c, nil
}

// CurrentLabel returns the code's current display label, re-resolved live at
// read time. Codes without a label version yet fall back to their key.
func (s *CodeStore) CurrentLabel(ctx context.Context, codeID string) (string, error) {
	tx, err := uow.Tx(ctx)
	if err != nil {
		return "", err
	}

	var label sql.NullString
	var key string
	err = tx.QueryRowContext(ctx, `
		SELECT c.code_key, cv.label
		FROM codes c
		LEFT JOIN code_versions cv ON cv.version_id = c.current_version_id
		WHERE c.code_id = ?`, codeID).Scan(&key, &label)
	if err == sql.ErrNoRows {
		return "", errors.Wrapf(errors.ErrEntityNotFound, "code %q", codeID)
	}
	if err != nil {
		return "", errors.Wrapf(err, "current label of code %s", codeID)
	}
	if label.Valid {
		return label.String, nil
	}
	return key, nil
}

// ListCodeVersions returns a code's version history ordered by number.
func (s *CodeStore) ListCodeVersions(ctx context.Context, codeID string) ([]CodeVersion, error) {
	tx, err := uow.Tx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT version_id, code_id, version_no, label, sort_order, parent_code_id,
		       is_active, extra_json, author, reason, valid_from, valid_to
		FROM code_versions WHERE code_id = ? ORDER BY version_no`, codeID)
	if err != nil {
		return nil, errors.Wrapf(err, "list versions of code %s", codeID)
	}
	defer rows.Close()

	var out []CodeVersion
	for rows.Next() {
		var v CodeVersion
		var parent, extra, author, reason sql.NullString
		var validTo sql.NullTime
		if err := rows.Scan(&v.VersionID, &v.CodeID, &v.VersionNo, &v.Label, &v.SortOrder,
			&parent, &v.IsActive, &extra, &author, &reason, &v.ValidFrom, &validTo); err != nil {
			return nil, errors.Wrap(err, "scan code version")
		}
		v.ParentCodeID = parent.String
		if extra.Valid {
			v.ExtraJSON = []byte(extra.String)
		}
		v.Author = author.String
		v.Reason = reason.String
		if validTo.Valid {
			t := validTo.Time
			v.ValidTo = &t
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *CodeStore) getCode(ctx context.Context, codeID string) (*Code, error) {
	tx, err := uow.Tx(ctx)
	if err != nil {
		return nil, err
	}

	c, err := scanCode(tx.QueryRowContext(ctx, `
		SELECT code_id, codeset_id, code_key, current_version_id, created_at
		FROM codes WHERE code_id = ?`, codeID))
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrEntityNotFound, "code %q", codeID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get code %s", codeID)
	}
	return c, nil
}

func scanCode(row *sql.Row) (*Code, error) {
	var c Code
	var current sql.NullString
	if err := row.Scan(&c.CodeID, &c.CodeSetID, &c.CodeKey, &current, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.CurrentVersionID = current.String
	return &c, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
