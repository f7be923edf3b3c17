// Package refdata manages the reference data meta values resolve against:
// codesets with versioned codes, and taxonomies with versioned term content.
// Stores are repositories: every method requires an active unit of work and
// reaches its transaction through uow.Tx.
package refdata

import (
	"encoding/json"
	"time"
)

// CodeSet is an enumeration namespace for codes.
type CodeSet struct {
	CodeSetID   string
	CodeSetCode string
	Name        string
	Description string
	CreatedAt   time.Time
}

// Code is a versioned entity: its display label, sort order and hierarchy
// live in the version chain, addressed by the current pointer.
type Code struct {
	CodeID           string
	CodeSetID        string
	CodeKey          string
	CurrentVersionID string // empty until the first label is set
	CreatedAt        time.Time
}

// CodeVersion is one immutable snapshot of a code's display attributes.
type CodeVersion struct {
	VersionID    string
	CodeID       string
	VersionNo    int
	Label        string
	SortOrder    int
	ParentCodeID string
	IsActive     bool
	ExtraJSON    json.RawMessage
	Author       string
	Reason       string
	ValidFrom    time.Time
	ValidTo      *time.Time
}

// CodeLabelUpdate is the input for a new code version.
type CodeLabelUpdate struct {
	Label        string
	SortOrder    int
	ParentCodeID string
	IsActive     bool
	ExtraJSON    json.RawMessage
	Author       string
	Reason       string
}

// Taxonomy is a controlled-vocabulary namespace for terms.
type Taxonomy struct {
	TaxonomyID   string
	TaxonomyCode string
	Name         string
	Description  string
	CreatedAt    time.Time
}

// Term is a hierarchical vocabulary node. Its textual content is versioned;
// key and display name are stable identity.
type Term struct {
	TermID           string
	TaxonomyID       string
	TermKey          string
	DisplayName      string
	ParentTermID     string
	CurrentVersionID string // empty until content is first written
	CreatedAt        time.Time
}

// TermVersion is one immutable snapshot of a term's content.
type TermVersion struct {
	VersionID    string
	TermID       string
	VersionNo    int
	BodyMarkdown string
	BodyJSON     json.RawMessage
	Author       string
	Reason       string
	ValidFrom    time.Time
	ValidTo      *time.Time
}

// TermContentUpdate is the input for a new term content version.
type TermContentUpdate struct {
	BodyMarkdown string
	BodyJSON     json.RawMessage
	Author       string
	Reason       string
}
