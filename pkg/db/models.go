package db

import (
	"time"

	"github.com/jakechorley/store-roster/pkg/core/model"
)

// BatchSlot is a demand slot as it was persisted with a batch.
// The same slot id can appear in several batches; the latest one is authoritative.
type BatchSlot struct {
	BatchID   string
	CreatedAt time.Time
	Slot      model.DemandSlot
}

// Supersedes reports whether bs is authoritative over other for the same slot id.
// Batches created at the same instant are ordered by batch id.
func (bs BatchSlot) Supersedes(other BatchSlot) bool {
	if c := bs.CreatedAt.Compare(other.CreatedAt); c != 0 {
		return c > 0
	}
	return bs.BatchID > other.BatchID
}

// Run is an in-flight generation run holding a claim on its scope
type Run struct {
	ID        string
	Scope     model.Scope
	StartedAt time.Time
}
