package meta

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/vantagedata/metakeep/chain"
	"github.com/vantagedata/metakeep/errors"
	"github.com/vantagedata/metakeep/uow"
)

// valueChain names the two relations of the meta-value entity kind.
var valueChain = chain.Spec{
	EntityTable:    "meta_values",
	EntityIDColumn: "value_id",
	VersionTable:   "meta_value_versions",
	OwnerColumn:    "value_id",
}

// getValue looks up the entity row for a (target, item) pair. Returns
// (nil, nil) when no row exists.
func (s *Service) getValue(ctx context.Context, targetType, targetID, itemCode string) (*Value, error) {
	tx, err := uow.Tx(ctx)
	if err != nil {
		return nil, err
	}

	v, err := scanValue(tx.QueryRowContext(ctx, `
		SELECT value_id, target_type, target_id, item_code, current_version_id, created_at
		FROM meta_values
		WHERE target_type = ? AND target_id = ? AND item_code = ?`,
		targetType, targetID, itemCode))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get meta value %s/%s/%s", targetType, targetID, itemCode)
	}
	return v, nil
}

// ensureValue returns the entity row for a (target, item) pair, creating it
// lazily on first write. Must run inside the write's unit of work.
func (s *Service) ensureValue(ctx context.Context, targetType, targetID, itemCode string) (*Value, error) {
	v, err := s.getValue(ctx, targetType, targetID, itemCode)
	if err != nil || v != nil {
		return v, err
	}

	tx, err := uow.Tx(ctx)
	if err != nil {
		return nil, err
	}

	v = &Value{
		ValueID:    uuid.NewString(),
		TargetType: targetType,
		TargetID:   targetID,
		ItemCode:   itemCode,
		CreatedAt:  time.Now().UTC(),
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO meta_values (value_id, target_type, target_id, item_code, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		v.ValueID, v.TargetType, v.TargetID, v.ItemCode, v.CreatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "create meta value %s/%s/%s", targetType, targetID, itemCode)
	}
	return v, nil
}

// commitVersion appends a validated payload to the value's version chain.
func (s *Service) commitVersion(ctx context.Context, valueID string, payload Payload, wm WriteMeta) (string, error) {
	encoded, err := payload.Encode()
	if err != nil {
		return "", err
	}

	return s.engine.Commit(ctx, valueChain, valueID,
		func(ctx context.Context, tx *sql.Tx, versionID string, versionNo int, validFrom time.Time) error {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO meta_value_versions
					(version_id, value_id, version_no, payload, author, reason, valid_from, tx_time)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				versionID, valueID, versionNo, encoded,
				nullable(wm.Author), nullable(wm.Reason), validFrom, validFrom)
			return err
		})
}

// getVersionByID fetches one version row by its id.
func (s *Service) getVersionByID(ctx context.Context, versionID string) (*Version, error) {
	tx, err := uow.Tx(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRowContext(ctx, `
		SELECT version_id, value_id, version_no, payload, author, reason, valid_from, valid_to, tx_time
		FROM meta_value_versions WHERE version_id = ?`, versionID)

	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrEntityNotFound, "version %q", versionID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get version %s", versionID)
	}
	return v, nil
}

// listEntityValues returns all entity rows attached to a target.
func (s *Service) listEntityValues(ctx context.Context, targetType, targetID string) ([]Value, error) {
	tx, err := uow.Tx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT value_id, target_type, target_id, item_code, current_version_id, created_at
		FROM meta_values
		WHERE target_type = ? AND target_id = ?
		ORDER BY item_code`, targetType, targetID)
	if err != nil {
		return nil, errors.Wrapf(err, "list meta values of %s/%s", targetType, targetID)
	}
	defer rows.Close()

	var out []Value
	for rows.Next() {
		var v Value
		var current sql.NullString
		if err := rows.Scan(&v.ValueID, &v.TargetType, &v.TargetID, &v.ItemCode, &current, &v.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan meta value")
		}
		v.CurrentVersionID = current.String
		out = append(out, v)
	}
	return out, rows.Err()
}

// listVersions returns an entity's version history ordered by number.
func (s *Service) listVersions(ctx context.Context, valueID string) ([]Version, error) {
	tx, err := uow.Tx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT version_id, value_id, version_no, payload, author, reason, valid_from, valid_to, tx_time
		FROM meta_value_versions WHERE value_id = ? ORDER BY version_no`, valueID)
	if err != nil {
		return nil, errors.Wrapf(err, "list versions of value %s", valueID)
	}
	defer rows.Close()

	var out []Version
	for rows.Next() {
		v, err := scanVersionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func scanValue(row *sql.Row) (*Value, error) {
	var v Value
	var current sql.NullString
	if err := row.Scan(&v.ValueID, &v.TargetType, &v.TargetID, &v.ItemCode, &current, &v.CreatedAt); err != nil {
		return nil, err
	}
	v.CurrentVersionID = current.String
	return &v, nil
}

func scanVersion(row *sql.Row) (*Version, error) {
	var v Version
	var payload string
	var author, reason sql.NullString
	var validTo sql.NullTime
	if err := row.Scan(&v.VersionID, &v.ValueID, &v.VersionNo, &payload,
		&author, &reason, &v.ValidFrom, &validTo, &v.TxTime); err != nil {
		return nil, err
	}
	return fillVersion(&v, payload, author, reason, validTo)
}

func scanVersionRows(rows *sql.Rows) (*Version, error) {
	var v Version
	var payload string
	var author, reason sql.NullString
	var validTo sql.NullTime
	if err := rows.Scan(&v.VersionID, &v.ValueID, &v.VersionNo, &payload,
		&author, &reason, &v.ValidFrom, &validTo, &v.TxTime); err != nil {
		return nil, errors.Wrap(err, "scan version")
	}
	return fillVersion(&v, payload, author, reason, validTo)
}

func fillVersion(v *Version, payload string, author, reason sql.NullString, validTo sql.NullTime) (*Version, error) {
	p, err := DecodePayload(payload)
	if err != nil {
		return nil, err
	}
	v.Payload = p
	v.Author = author.String
	v.Reason = reason.String
	if validTo.Valid {
		t := validTo.Time
		v.ValidTo = &t
	}
	return v, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
