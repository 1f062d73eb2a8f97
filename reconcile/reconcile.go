// Package reconcile computes the mutation set that makes the persisted
// identifier set mirror the latest feed snapshot.
package reconcile

import (
	"github.com/samber/lo"
	"golang.org/x/exp/slices"

	"github.com/vulnwatch/kevsync/kev"
)

// Plan is the outcome of a reconciliation: every feed entry is upserted
// (no field-level diffing, upserting an unchanged document is a no-op in
// effect), and persisted identifiers absent from the feed are deleted.
type Plan struct {
	Upserts []kev.Entry
	Deletes []string
}

// Compute diffs the feed entries against the currently persisted
// identifiers. Identifier comparison is exact string equality. Deletes are
// sorted so logs and results are deterministic.
func Compute(entries []kev.Entry, current []string) Plan {
	target := lo.SliceToMap(entries, func(e kev.Entry) (string, struct{}) {
		return e.ID, struct{}{}
	})
	deletes := lo.Filter(current, func(id string, _ int) bool {
		_, ok := target[id]
		return !ok
	})
	slices.Sort(deletes)

	return Plan{
		Upserts: entries,
		Deletes: deletes,
	}
}
