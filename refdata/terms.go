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

// termChain names the two relations of the term-content entity kind.
var termChain = chain.Spec{
	EntityTable:    "terms",
	EntityIDColumn: "term_id",
	VersionTable:   "term_versions",
	OwnerColumn:    "term_id",
}

// TermStore manages taxonomies, terms and versioned term content.
type TermStore struct {
	engine *chain.Engine
	logger *zap.SugaredLogger
}

// NewTermStore creates a term store. logger may be nil.
func NewTermStore(engine *chain.Engine, logger *zap.SugaredLogger) *TermStore {
	return &TermStore{engine: engine, logger: logger}
}

// CreateTaxonomy inserts a new taxonomy.
func (s *TermStore) CreateTaxonomy(ctx context.Context, taxonomyCode, name, description string) (*Taxonomy, error) {
	tx, err := uow.Tx(ctx)
	if err != nil {
		return nil, err
	}

	tax := &Taxonomy{
		TaxonomyID:   uuid.NewString(),
		TaxonomyCode: taxonomyCode,
		Name:         name,
		Description:  description,
		CreatedAt:    time.Now().UTC(),
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO taxonomies (taxonomy_id, taxonomy_code, name, description, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		tax.TaxonomyID, tax.TaxonomyCode, tax.Name, nullable(tax.Description), tax.CreatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "create taxonomy %s", taxonomyCode)
	}
	return tax, nil
}

// GetTaxonomyByCode looks up a taxonomy by its human code.
func (s *TermStore) GetTaxonomyByCode(ctx context.Context, taxonomyCode string) (*Taxonomy, error) {
	tx, err := uow.Tx(ctx)
	if err != nil {
		return nil, err
	}

	var tax Taxonomy
	var desc sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT taxonomy_id, taxonomy_code, name, description, created_at
		FROM taxonomies WHERE taxonomy_code = ?`, taxonomyCode).
		Scan(&tax.TaxonomyID, &tax.TaxonomyCode, &tax.Name, &desc, &tax.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrEntityNotFound, "taxonomy %q", taxonomyCode)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get taxonomy %s", taxonomyCode)
	}
	tax.Description = desc.String
	return &tax, nil
}

// CreateTerm inserts a new term. parentTermID may be empty for root terms.
func (s *TermStore) CreateTerm(ctx context.Context, taxonomyID, termKey, displayName, parentTermID string) (*Term, error) {
	tx, err := uow.Tx(ctx)
	if err != nil {
		return nil, err
	}

	t := &Term{
		TermID:       uuid.NewString(),
		TaxonomyID:   taxonomyID,
		TermKey:      termKey,
		DisplayName:  displayName,
		ParentTermID: parentTermID,
		CreatedAt:    time.Now().UTC(),
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO terms (term_id, taxonomy_id, term_key, display_name, parent_term_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.TermID, t.TaxonomyID, t.TermKey, t.DisplayName, nullable(t.ParentTermID), t.CreatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "create term %s", termKey)
	}
	return t, nil
}

// UpsertTermContent appends a new content version to the term's chain and
// advances the current pointer. The term must already exist.
func (s *TermStore) UpsertTermContent(ctx context.Context, termID string, upd TermContentUpdate) (string, error) {
	if _, err := s.GetTerm(ctx, termID); err != nil {
		return "", err
	}

	return s.engine.Commit(ctx, termChain, termID,
		func(ctx context.Context, tx *sql.Tx, versionID string, versionNo int, validFrom time.Time) error {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO term_versions
					(version_id, term_id, version_no, body_markdown, body_json, author, reason, valid_from)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				versionID, termID, versionNo,
				nullable(upd.BodyMarkdown), nullableJSON(upd.BodyJSON),
				nullable(upd.Author), nullable(upd.Reason), validFrom)
			return err
		})
}

// GetTerm fetches a term by id.
func (s *TermStore) GetTerm(ctx context.Context, termID string) (*Term, error) {
	tx, err := uow.Tx(ctx)
	if err != nil {
		return nil, err
	}

	t, err := scanTerm(tx.QueryRowContext(ctx, `
		SELECT term_id, taxonomy_id, term_key, display_name, parent_term_id, current_version_id, created_at
		FROM terms WHERE term_id = ?`, termID))
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrEntityNotFound, "term %q", termID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get term %s", termID)
	}
	return t, nil
}

// ResolveTerm resolves a term by identifier-as-id first, then
// identifier-as-human-key scoped to taxonomyCode when that scope is known.
// Returns ErrReferenceNotFound listing the offending key.
func (s *TermStore) ResolveTerm(ctx context.Context, taxonomyCode, keyOrID string) (*Term, error) {
	tx, err := uow.Tx(ctx)
	if err != nil {
		return nil, err
	}

	t, err := scanTerm(tx.QueryRowContext(ctx, `
		SELECT term_id, taxonomy_id, term_key, display_name, parent_term_id, current_version_id, created_at
		FROM terms WHERE term_id = ?`, keyOrID))
	if err == nil {
		return t, nil
	}
	if err != sql.ErrNoRows {
		return nil, errors.Wrapf(err, "resolve term %s", keyOrID)
	}

	var row *sql.Row
	if taxonomyCode != "" {
		row = tx.QueryRowContext(ctx, `
			SELECT t.term_id, t.taxonomy_id, t.term_key, t.display_name, t.parent_term_id, t.current_version_id, t.created_at
			FROM terms t JOIN taxonomies tx ON tx.taxonomy_id = t.taxonomy_id
			WHERE tx.taxonomy_code = ? AND t.term_key = ?`, taxonomyCode, keyOrID)
	} else {
		row = tx.QueryRowContext(ctx, `
			SELECT term_id, taxonomy_id, term_key, display_name, parent_term_id, current_version_id, created_at
			FROM terms WHERE term_key = ?`, keyOrID)
	}
	t, err = scanTerm(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewReferenceNotFound("term", keyOrID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "resolve term %s", keyOrID)
	}
	return t, nil
}

// DisplayName returns the term's display name, re-resolved live at read time.
func (s *TermStore) DisplayName(ctx context.Context, termID string) (string, error) {
	t, err := s.GetTerm(ctx, termID)
	if err != nil {
		return "", err
	}
	return t.DisplayName, nil
}

// ListTermVersions returns a term's content history ordered by number.
func (s *TermStore) ListTermVersions(ctx context.Context, termID string) ([]TermVersion, error) {
	tx, err := uow.Tx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT version_id, term_id, version_no, body_markdown, body_json, author, reason, valid_from, valid_to
		FROM term_versions WHERE term_id = ? ORDER BY version_no`, termID)
	if err != nil {
		return nil, errors.Wrapf(err, "list versions of term %s", termID)
	}
	defer rows.Close()

	var out []TermVersion
	for rows.Next() {
		var v TermVersion
		var md, body, author, reason sql.NullString
		var validTo sql.NullTime
		if err := rows.Scan(&v.VersionID, &v.TermID, &v.VersionNo, &md, &body,
			&author, &reason, &v.ValidFrom, &validTo); err != nil {
			return nil, errors.Wrap(err, "scan term version")
		}
		v.BodyMarkdown = md.String
		if body.Valid {
			v.BodyJSON = []byte(body.String)
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

func scanTerm(row *sql.Row) (*Term, error) {
	var t Term
	var parent, current sql.NullString
	if err := row.Scan(&t.TermID, &t.TaxonomyID, &t.TermKey, &t.DisplayName, &parent, &current, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.ParentTermID = parent.String
	t.CurrentVersionID = current.String
	return &t, nil
}
