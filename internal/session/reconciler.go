package session

import (
	"github.com/rocketscienceinc/gameroom-backend/internal/entity"
)

// Reconciler - recovers a total order over unordered broadcast traffic.
//
// Broadcast delivery gives no ordering or delivery guarantee, but every
// event and every store snapshot carries the version stamped by the store's
// serialized write log. Comparing against the last applied version makes
// projection idempotent: duplicates and late arrivals compare low and are
// discarded, and the applied version never regresses.
type Reconciler struct {
	applied int64
}

func (that *Reconciler) AppliedVersion() int64 {
	return that.applied
}

// ShouldApply - true only for versions strictly newer than what has been
// applied; everything else is stale or a duplicate.
func (that *Reconciler) ShouldApply(version int64) bool {
	return version > that.applied
}

// Advance - moves the applied version forward. Regressions are refused.
func (that *Reconciler) Advance(version int64) bool {
	if version <= that.applied {
		return false
	}

	that.applied = version

	return true
}

// Resolve - decides which room state wins when broadcast-derived local
// state and a store read disagree. The store is the serialized arbiter, so
// its snapshot always wins; speculative local state is discarded with it.
func (that *Reconciler) Resolve(_, authoritative *entity.Room) *entity.Room {
	that.applied = authoritative.Version

	return authoritative
}
