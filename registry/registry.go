// Package registry defines the static meta-item type registry.
//
// Item definitions live in code and configuration, not in a mutable table;
// every write path consults the registry through Lookup before touching
// storage. The Registry type is the single seam for a future store-backed
// implementation.
package registry

import (
	"sort"

	"github.com/vantagedata/metakeep/errors"
)

// TypeKind is the type tag of a meta item's payload.
type TypeKind string

const (
	KindPrimitive TypeKind = "PRIMITIVE"
	KindString    TypeKind = "STRING"
	KindCodeset   TypeKind = "CODESET"
	KindTaxonomy  TypeKind = "TAXONOMY"
)

// Valid reports whether k is a known type kind.
func (k TypeKind) Valid() bool {
	switch k {
	case KindPrimitive, KindString, KindCodeset, KindTaxonomy:
		return true
	}
	return false
}

// SelectionMode controls how many term references a TAXONOMY item accepts.
type SelectionMode string

const (
	SelectSingle SelectionMode = "SINGLE"
	SelectMulti  SelectionMode = "MULTI"
)

// GroupDefinition is a display grouping for meta items.
type GroupDefinition struct {
	Code        string `mapstructure:"code"`
	DisplayName string `mapstructure:"display_name"`
	SortOrder   int    `mapstructure:"sort_order"`
	Description string `mapstructure:"description"`
}

// ItemDefinition describes one meta item: its payload kind and the
// constraints the value resolver enforces before any write.
type ItemDefinition struct {
	Code        string        `mapstructure:"code"`
	DisplayName string        `mapstructure:"display_name"`
	Kind        TypeKind      `mapstructure:"kind"`
	GroupCode   string        `mapstructure:"group"`
	IsRequired  bool          `mapstructure:"required"`
	DefaultJSON string        `mapstructure:"default_json"`
	Description string        `mapstructure:"description"`

	// SelectionMode applies to TAXONOMY items only.
	SelectionMode SelectionMode `mapstructure:"selection_mode"`

	// CodesetCode scopes CODESET key resolution; TaxonomyCode scopes
	// TAXONOMY key resolution.
	CodesetCode  string `mapstructure:"codeset"`
	TaxonomyCode string `mapstructure:"taxonomy"`
}

// Registry is a read-mostly lookup from item code to its definition.
type Registry struct {
	items  map[string]ItemDefinition
	groups map[string]GroupDefinition
}

// New creates a registry from the given definitions. Groups or items passed
// here override system defaults with the same code.
func New(groups []GroupDefinition, items []ItemDefinition) *Registry {
	r := &Registry{
		items:  make(map[string]ItemDefinition),
		groups: make(map[string]GroupDefinition),
	}
	for _, g := range systemGroups {
		r.groups[g.Code] = g
	}
	for _, it := range systemItems {
		r.items[it.Code] = it
	}
	for _, g := range groups {
		r.groups[g.Code] = g
	}
	for _, it := range items {
		if it.Kind == KindTaxonomy && it.SelectionMode == "" {
			it.SelectionMode = SelectSingle
		}
		r.items[it.Code] = it
	}
	return r
}

// Lookup resolves an item code. Unknown codes are always ErrItemNotFound,
// never a silent default.
func (r *Registry) Lookup(itemCode string) (ItemDefinition, error) {
	it, ok := r.items[itemCode]
	if !ok {
		return ItemDefinition{}, errors.NewItemNotFound(itemCode)
	}
	return it, nil
}

// Group resolves a group code.
func (r *Registry) Group(groupCode string) (GroupDefinition, bool) {
	g, ok := r.groups[groupCode]
	return g, ok
}

// Items returns all item definitions ordered by code.
func (r *Registry) Items() []ItemDefinition {
	out := make([]ItemDefinition, 0, len(r.items))
	for _, it := range r.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
