// Package meta implements the polymorphic meta-value core: tagged values,
// the value resolver, and read projections over the version chain.
package meta

import (
	"encoding/json"

	"github.com/vantagedata/metakeep/errors"
	"github.com/vantagedata/metakeep/registry"
)

// TaggedValue is the externally supplied, loosely typed value request.
// Exactly the fields for its Type are meaningful.
type TaggedValue struct {
	Type registry.TypeKind

	// Primitive carries arbitrary JSON for PRIMITIVE items.
	Primitive json.RawMessage
	// Text carries the body for STRING items.
	Text string
	// CodeKeyOrID references a code for CODESET items, by id or human key.
	CodeKeyOrID string
	// SelectionMode and TermKeysOrIDs apply to TAXONOMY items.
	SelectionMode registry.SelectionMode
	TermKeysOrIDs []string
}

// PrimitiveValue builds a PRIMITIVE tagged value from raw JSON.
func PrimitiveValue(raw json.RawMessage) TaggedValue {
	return TaggedValue{Type: registry.KindPrimitive, Primitive: raw}
}

// StringValue builds a STRING tagged value.
func StringValue(text string) TaggedValue {
	return TaggedValue{Type: registry.KindString, Text: text}
}

// CodesetValue builds a CODESET tagged value referencing a code by key or id.
func CodesetValue(codeKeyOrID string) TaggedValue {
	return TaggedValue{Type: registry.KindCodeset, CodeKeyOrID: codeKeyOrID}
}

// TaxonomyValue builds a TAXONOMY tagged value referencing terms by key or id.
func TaxonomyValue(mode registry.SelectionMode, termKeysOrIDs ...string) TaggedValue {
	return TaggedValue{Type: registry.KindTaxonomy, SelectionMode: mode, TermKeysOrIDs: termKeysOrIDs}
}

// Payload is the canonical, validated representation persisted in a version
// row: one discriminated JSON document keyed by its type tag. References are
// stored as resolved stable ids; display labels are re-resolved at read time.
type Payload struct {
	Type registry.TypeKind `json:"type"`

	// Value holds the JSON body for PRIMITIVE and STRING payloads
	// (STRING stores its text as a JSON string).
	Value json.RawMessage `json:"value,omitempty"`

	// CodeID is the resolved code id for CODESET payloads.
	CodeID string `json:"code_id,omitempty"`

	// SelectionMode and TermIDs carry resolved term references for TAXONOMY
	// payloads. Input order is preserved for display; it is not semantically
	// significant.
	SelectionMode registry.SelectionMode `json:"selection_mode,omitempty"`
	TermIDs       []string               `json:"term_ids,omitempty"`
}

// Encode serializes the payload to its canonical stored form.
func (p Payload) Encode() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", errors.Wrap(err, "encode payload")
	}
	return string(b), nil
}

// DecodePayload parses a stored canonical payload.
func DecodePayload(data string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return Payload{}, errors.Wrap(err, "decode payload")
	}
	if !p.Type.Valid() {
		return Payload{}, errors.Wrapf(errors.ErrValidation, "unknown payload type %q", string(p.Type))
	}
	return p, nil
}
