package schedule

import (
	"context"
	"time"

	"lexcal-scheduler/internal/model"
	"lexcal-scheduler/internal/store"
)

// Overlaps is the half-open interval test: [s1,e1) and [s2,e2) share an
// instant iff s1 < e2 and s2 < e1. Touching intervals do not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// HasConflict reports whether any pending or confirmed appointment of
// lawyerID, other than excludeID, overlaps [start, end). Callers that go on
// to write must run it on the transaction returned by WithLawyerLock.
func HasConflict(ctx context.Context, tx store.Tx, lawyerID string, start, end time.Time, excludeID string) (bool, error) {
	candidates, err := tx.FindAppointments(ctx, store.Filter{
		LawyerID:    lawyerID,
		Statuses:    model.ActiveStatuses,
		ExcludeID:   excludeID,
		StartBefore: end,
	})
	if err != nil {
		return false, err
	}
	for i := range candidates {
		c := &candidates[i]
		if Overlaps(start, end, c.Start, c.End()) {
			return true, nil
		}
	}
	return false, nil
}
