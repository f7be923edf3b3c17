package meta

import (
	"time"
)

// Value is the entity row for one (target, item) pair. It is created lazily
// on first write and never deleted; its current-version pointer advances
// exactly once per accepted write.
type Value struct {
	ValueID          string
	TargetType       string
	TargetID         string
	ItemCode         string
	CurrentVersionID string // empty when no version exists yet
	CreatedAt        time.Time
}

// Version is one immutable snapshot of a meta value.
type Version struct {
	VersionID string
	ValueID   string
	VersionNo int
	Payload   Payload
	Author    string
	Reason    string
	ValidFrom time.Time
	ValidTo   *time.Time // nil while open
	TxTime    time.Time
}

// Open reports whether this is the entity's open (current) version.
func (v Version) Open() bool {
	return v.ValidTo == nil
}

// WriteMeta carries optional audit fields of a write.
type WriteMeta struct {
	Author string
	Reason string
}
