package meta

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/vantagedata/metakeep/chain"
	"github.com/vantagedata/metakeep/errors"
	"github.com/vantagedata/metakeep/refdata"
	"github.com/vantagedata/metakeep/registry"
	"github.com/vantagedata/metakeep/uow"
)

// Service is the polymorphic value resolver: it validates loosely typed
// value requests against the item registry and reference data, canonicalizes
// them, and drives the version-chain engine. It also fronts the term-content
// and code-label operations so callers have one entry point per external
// operation.
type Service struct {
	uow      *uow.Manager
	engine   *chain.Engine
	registry *registry.Registry
	codes    *refdata.CodeStore
	terms    *refdata.TermStore
	logger   *zap.SugaredLogger
}

// NewService wires the resolver. logger may be nil.
func NewService(
	mgr *uow.Manager,
	engine *chain.Engine,
	reg *registry.Registry,
	codes *refdata.CodeStore,
	terms *refdata.TermStore,
	logger *zap.SugaredLogger,
) *Service {
	return &Service{
		uow:      mgr,
		engine:   engine,
		registry: reg,
		codes:    codes,
		terms:    terms,
		logger:   logger,
	}
}

// SetValue validates the tagged value against the item's registry definition
// and reference data, then commits a new version for the (target, item)
// entity. Validation happens before any mutation; a rejected write leaves
// the entity untouched. Returns the new version id.
func (s *Service) SetValue(ctx context.Context, targetType, targetID, itemCode string, value TaggedValue, wm WriteMeta) (string, error) {
	item, err := s.registry.Lookup(itemCode)
	if err != nil {
		return "", err
	}

	var versionID string
	err = s.uow.Required(ctx, func(ctx context.Context) error {
		payload, err := s.resolve(ctx, item, value)
		if err != nil {
			return err
		}

		mv, err := s.ensureValue(ctx, targetType, targetID, itemCode)
		if err != nil {
			return err
		}

		versionID, err = s.commitVersion(ctx, mv.ValueID, payload, wm)
		return err
	})
	if err != nil {
		return "", err
	}

	if s.logger != nil {
		s.logger.Infow("Meta value set",
			"target_type", targetType,
			"target_id", targetID,
			"item_code", itemCode,
			"type", string(value.Type),
			"version_id", versionID,
		)
	}
	return versionID, nil
}

// resolve performs the ordered validation of a tagged value and constructs
// its canonical payload. Each step is a distinct failure mode; the most
// specific error is raised before any mutation.
func (s *Service) resolve(ctx context.Context, item registry.ItemDefinition, value TaggedValue) (Payload, error) {
	if value.Type != item.Kind {
		return Payload{}, errors.Wrapf(errors.ErrTypeMismatch,
			"item %q expects %s, got %s", item.Code, item.Kind, value.Type)
	}

	switch value.Type {
	case registry.KindPrimitive:
		if len(value.Primitive) == 0 || !json.Valid(value.Primitive) {
			return Payload{}, errors.Wrapf(errors.ErrValidation, "item %q: primitive value is not valid JSON", item.Code)
		}
		return Payload{Type: registry.KindPrimitive, Value: value.Primitive}, nil

	case registry.KindString:
		text, err := json.Marshal(value.Text)
		if err != nil {
			return Payload{}, errors.Wrap(err, "encode string value")
		}
		return Payload{Type: registry.KindString, Value: text}, nil

	case registry.KindCodeset:
		code, err := s.codes.ResolveCode(ctx, item.CodesetCode, value.CodeKeyOrID)
		if err != nil {
			return Payload{}, err
		}
		return Payload{Type: registry.KindCodeset, CodeID: code.CodeID}, nil

	case registry.KindTaxonomy:
		if value.SelectionMode != item.SelectionMode {
			return Payload{}, errors.Wrapf(errors.ErrSelectionModeMismatch,
				"item %q is %s, got %s", item.Code, item.SelectionMode, value.SelectionMode)
		}
		switch item.SelectionMode {
		case registry.SelectSingle:
			if len(value.TermKeysOrIDs) != 1 {
				return Payload{}, errors.Wrapf(errors.ErrSelectionModeMismatch,
					"item %q requires exactly one term, got %d", item.Code, len(value.TermKeysOrIDs))
			}
		case registry.SelectMulti:
			if len(value.TermKeysOrIDs) == 0 {
				return Payload{}, errors.Wrapf(errors.ErrSelectionModeMismatch,
					"item %q requires at least one term", item.Code)
			}
		}
		// Input order preserved for display; not semantically significant.
		termIDs := make([]string, 0, len(value.TermKeysOrIDs))
		for _, key := range value.TermKeysOrIDs {
			term, err := s.terms.ResolveTerm(ctx, item.TaxonomyCode, key)
			if err != nil {
				return Payload{}, err
			}
			termIDs = append(termIDs, term.TermID)
		}
		return Payload{
			Type:          registry.KindTaxonomy,
			SelectionMode: item.SelectionMode,
			TermIDs:       termIDs,
		}, nil

	default:
		return Payload{}, errors.AssertionFailedf("unhandled type kind %q", string(value.Type))
	}
}

// GetValue returns the projection of the current version for a (target,
// item) pair. A target with no value set yet (or an entity without a current
// version) returns (nil, nil), not an error. Unknown item codes are
// ErrItemNotFound.
func (s *Service) GetValue(ctx context.Context, targetType, targetID, itemCode string) (*ValueProjection, error) {
	if _, err := s.registry.Lookup(itemCode); err != nil {
		return nil, err
	}

	var proj *ValueProjection
	err := s.uow.ReadOnly(ctx, func(ctx context.Context) error {
		mv, err := s.getValue(ctx, targetType, targetID, itemCode)
		if err != nil || mv == nil || mv.CurrentVersionID == "" {
			return err
		}
		version, err := s.getVersionByID(ctx, mv.CurrentVersionID)
		if err != nil {
			return err
		}
		proj, err = s.project(ctx, itemCode, version)
		return err
	})
	if err != nil {
		return nil, err
	}
	return proj, nil
}

// GetVersion returns the projection of one version fetched by its id,
// including closed historical versions. Labels and display names are
// re-resolved live, not as of the write.
func (s *Service) GetVersion(ctx context.Context, versionID string) (*ValueProjection, error) {
	var proj *ValueProjection
	err := s.uow.ReadOnly(ctx, func(ctx context.Context) error {
		version, err := s.getVersionByID(ctx, versionID)
		if err != nil {
			return err
		}
		itemCode, err := s.itemCodeOfValue(ctx, version.ValueID)
		if err != nil {
			return err
		}
		proj, err = s.project(ctx, itemCode, version)
		return err
	})
	if err != nil {
		return nil, err
	}
	return proj, nil
}

// ListValues returns projections of every current value attached to a
// target. Items with no current version are skipped.
func (s *Service) ListValues(ctx context.Context, targetType, targetID string) ([]ValueProjection, error) {
	var out []ValueProjection
	err := s.uow.ReadOnly(ctx, func(ctx context.Context) error {
		values, err := s.listEntityValues(ctx, targetType, targetID)
		if err != nil {
			return err
		}
		for _, mv := range values {
			if mv.CurrentVersionID == "" {
				continue
			}
			version, err := s.getVersionByID(ctx, mv.CurrentVersionID)
			if err != nil {
				return err
			}
			proj, err := s.project(ctx, mv.ItemCode, version)
			if err != nil {
				return err
			}
			out = append(out, *proj)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListVersions returns the full projected history of a (target, item) pair,
// oldest first. A pair that was never written returns an empty slice.
func (s *Service) ListVersions(ctx context.Context, targetType, targetID, itemCode string) ([]ValueProjection, error) {
	if _, err := s.registry.Lookup(itemCode); err != nil {
		return nil, err
	}

	var out []ValueProjection
	err := s.uow.ReadOnly(ctx, func(ctx context.Context) error {
		mv, err := s.getValue(ctx, targetType, targetID, itemCode)
		if err != nil || mv == nil {
			return err
		}
		versions, err := s.listVersions(ctx, mv.ValueID)
		if err != nil {
			return err
		}
		for i := range versions {
			proj, err := s.project(ctx, itemCode, &versions[i])
			if err != nil {
				return err
			}
			out = append(out, *proj)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertTermContent creates a new content version for a term and advances
// its current pointer. The term must exist (ErrEntityNotFound otherwise).
func (s *Service) UpsertTermContent(ctx context.Context, termID string, upd refdata.TermContentUpdate) (string, error) {
	var versionID string
	err := s.uow.Required(ctx, func(ctx context.Context) error {
		var err error
		versionID, err = s.terms.UpsertTermContent(ctx, termID, upd)
		return err
	})
	return versionID, err
}

// SetCodeLabel creates a new display version for a code and advances its
// current pointer. The code must exist (ErrEntityNotFound otherwise).
func (s *Service) SetCodeLabel(ctx context.Context, codeID string, upd refdata.CodeLabelUpdate) (string, error) {
	var versionID string
	err := s.uow.Required(ctx, func(ctx context.Context) error {
		var err error
		versionID, err = s.codes.SetCodeLabel(ctx, codeID, upd)
		return err
	})
	return versionID, err
}

// itemCodeOfValue maps a value entity back to its item code.
func (s *Service) itemCodeOfValue(ctx context.Context, valueID string) (string, error) {
	tx, err := uow.Tx(ctx)
	if err != nil {
		return "", err
	}
	var itemCode string
	if err := tx.QueryRowContext(ctx,
		"SELECT item_code FROM meta_values WHERE value_id = ?", valueID).Scan(&itemCode); err != nil {
		return "", errors.Wrapf(err, "item code of value %s", valueID)
	}
	return itemCode, nil
}
