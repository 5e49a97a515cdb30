package layout

import "time"

// Budget bounds one call to RunBudgeted with a hard total-seconds
// deadline and an optional per-batch-seconds deadline.
type Budget struct {
	Total time.Duration
	Batch time.Duration // zero disables the per-batch cap.
}

// Clock abstracts wall-clock reads so tests can fake time without
// sleeping.
type Clock func() time.Time

// RunBudgeted evaluates st until it completes, exhausts, or either
// budget elapses, returning the plan (nil if not yet complete),
// whether the search has concluded (success or exhaustion, as opposed
// to simply running out of budget), and any error.
func RunBudgeted(st *State, ds DataSource, b Budget, now Clock) (*Plan, bool, error) {
	start := now()
	batchStart := start
	shouldContinue := func() bool {
		t := now()
		if t.Sub(start) >= b.Total {
			return false
		}
		if b.Batch > 0 && t.Sub(batchStart) >= b.Batch {
			return false
		}
		return true
	}
	return st.Evaluate(ds, shouldContinue)
}
