package billing

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/yourusername/invoicely/apperr"
)

// ReconcileMode selects how persisted items absent from the desired set are
// treated.
type ReconcileMode int

const (
	// ReconcileDelta deletes only the identities named in deletedIDs.
	ReconcileDelta ReconcileMode = iota
	// ReconcileReplace additionally deletes every persisted item missing
	// from the desired set (full-replace semantics).
	ReconcileReplace
)

// ItemInput is one desired line item. A zero ID (or an ID unknown to the
// persisted set) means "create"; a matching ID means "update in place".
type ItemInput struct {
	ID          uint
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Plan is the set of mutations that converges persisted state to the
// desired state. The three identity sets are disjoint.
type Plan struct {
	ToCreate []ItemInput
	ToUpdate []ItemInput
	ToDelete []uint
}

// Reconcile diffs the desired items against the persisted identities.
// Explicit deletions are always honored: an identity that appears both in
// the desired set and in deletedIDs is deleted, not updated. Deleted IDs
// that do not exist in the persisted set are ignored, so deletion is
// idempotent. A persisted identity appearing twice in the desired set is
// ambiguous and rejected.
func Reconcile(persistedIDs []uint, desired []ItemInput, deletedIDs []uint, mode ReconcileMode) (Plan, error) {
	persisted := lo.SliceToMap(persistedIDs, func(id uint) (uint, struct{}) {
		return id, struct{}{}
	})
	doomed := lo.SliceToMap(
		lo.Filter(deletedIDs, func(id uint, _ int) bool {
			_, ok := persisted[id]
			return ok
		}),
		func(id uint) (uint, struct{}) { return id, struct{}{} },
	)

	var plan Plan
	matched := make(map[uint]struct{}, len(desired))
	for i, d := range desired {
		if d.ID != 0 {
			if _, dup := matched[d.ID]; dup {
				return Plan{}, apperr.ValidationField(
					fmt.Sprintf("items.%d.id", i), fmt.Sprintf("item %d listed more than once", d.ID))
			}
			if _, gone := doomed[d.ID]; gone {
				// contradictory input, deletion wins
				matched[d.ID] = struct{}{}
				continue
			}
			if _, ok := persisted[d.ID]; ok {
				matched[d.ID] = struct{}{}
				plan.ToUpdate = append(plan.ToUpdate, d)
				continue
			}
		}
		d.ID = 0
		plan.ToCreate = append(plan.ToCreate, d)
	}

	// Walk persistedIDs rather than the doomed map so the order is stable.
	plan.ToDelete = lo.Filter(persistedIDs, func(id uint, _ int) bool {
		if _, gone := doomed[id]; gone {
			return true
		}
		if mode != ReconcileReplace {
			return false
		}
		_, updated := matched[id]
		return !updated
	})

	return plan, nil
}
