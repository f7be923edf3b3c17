package meta

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vantagedata/metakeep/registry"
)

// CodeRef is a denormalized code reference in a projection. Label is the
// code's current label, re-resolved at read time — historical projections
// show today's label, not the label as of the write.
type CodeRef struct {
	CodeID  string `json:"code_id"`
	CodeKey string `json:"code_key"`
	Label   string `json:"label"`
}

// TermRef is a denormalized term reference in a projection, with the term's
// current display name.
type TermRef struct {
	TermID      string `json:"term_id"`
	TermKey     string `json:"term_key"`
	DisplayName string `json:"display_name"`
}

// ProjectedPayload is the response-shaped payload of one version, with
// reference ids joined to their current human-readable attributes.
type ProjectedPayload struct {
	Type          registry.TypeKind      `json:"type"`
	Value         json.RawMessage        `json:"value,omitempty"`
	Code          *CodeRef               `json:"code,omitempty"`
	SelectionMode registry.SelectionMode `json:"selection_mode,omitempty"`
	Terms         []TermRef              `json:"terms,omitempty"`
}

// ValueProjection is a response-shaped snapshot of one version of a meta
// value. Building it never mutates state.
type ValueProjection struct {
	ItemCode  string           `json:"item_code"`
	VersionID string           `json:"version_id"`
	VersionNo int              `json:"version_no"`
	Author    string           `json:"author,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	ValidFrom time.Time        `json:"valid_from"`
	ValidTo   *time.Time       `json:"valid_to,omitempty"`
	Payload   ProjectedPayload `json:"payload"`
}

// Current reports whether the projected version is still open.
func (p ValueProjection) Current() bool {
	return p.ValidTo == nil
}

// project builds the projection of one version, re-hydrating display fields
// from current reference data.
func (s *Service) project(ctx context.Context, itemCode string, v *Version) (*ValueProjection, error) {
	proj := &ValueProjection{
		ItemCode:  itemCode,
		VersionID: v.VersionID,
		VersionNo: v.VersionNo,
		Author:    v.Author,
		Reason:    v.Reason,
		ValidFrom: v.ValidFrom,
		ValidTo:   v.ValidTo,
		Payload:   ProjectedPayload{Type: v.Payload.Type},
	}

	switch v.Payload.Type {
	case registry.KindPrimitive, registry.KindString:
		proj.Payload.Value = v.Payload.Value

	case registry.KindCodeset:
		code, err := s.codes.ResolveCode(ctx, "", v.Payload.CodeID)
		if err != nil {
			return nil, err
		}
		label, err := s.codes.CurrentLabel(ctx, code.CodeID)
		if err != nil {
			return nil, err
		}
		proj.Payload.Code = &CodeRef{CodeID: code.CodeID, CodeKey: code.CodeKey, Label: label}

	case registry.KindTaxonomy:
		proj.Payload.SelectionMode = v.Payload.SelectionMode
		for _, termID := range v.Payload.TermIDs {
			term, err := s.terms.GetTerm(ctx, termID)
			if err != nil {
				return nil, err
			}
			proj.Payload.Terms = append(proj.Payload.Terms, TermRef{
				TermID:      term.TermID,
				TermKey:     term.TermKey,
				DisplayName: term.DisplayName,
			})
		}
	}

	return proj, nil
}
