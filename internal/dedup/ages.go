package dedup

import "time"

// defaultAgeTolerance absorbs the rounding/polling noise of duration-derived
// timestamps against a previously recorded exact value.
const defaultAgeTolerance = 90 * time.Minute

// Action is the reconciliation outcome for one age comparison.
type Action string

// Reconciliation outcomes
const (
	ActionUploaded Action = "uploaded" // no previous remote record
	ActionUpdated  Action = "updated"  // drift beyond tolerance, pushed
	ActionInSync   Action = "in_sync"  // within tolerance, no write
)

// Decision carries the chosen action and the observed difference.
type Decision struct {
	Action    Action
	DiffHours float64
}

// NeedsUpload returns true when the local timestamp should be pushed.
func (d Decision) NeedsUpload() bool {
	return d.Action == ActionUploaded || d.Action == ActionUpdated
}

// AgeReconciler compares a locally observed sensor-start or reservoir-fill
// timestamp against the most recent remote record.
type AgeReconciler struct {
	tolerance time.Duration
}

// NewAgeReconciler creates a reconciler; a non-positive tolerance selects
// the default (1.5h).
func NewAgeReconciler(tolerance time.Duration) *AgeReconciler {
	if tolerance <= 0 {
		tolerance = defaultAgeTolerance
	}
	return &AgeReconciler{tolerance: tolerance}
}

// Reconcile decides what to do with a locally derived timestamp given the
// remote's latest corresponding record (nil when the remote has none).
func (r *AgeReconciler) Reconcile(local time.Time, remote *time.Time) Decision {
	if remote == nil || remote.IsZero() {
		return Decision{Action: ActionUploaded}
	}
	diff := absDuration(local.Sub(*remote))
	d := Decision{DiffHours: diff.Hours()}
	if diff > r.tolerance {
		d.Action = ActionUpdated
	} else {
		d.Action = ActionInSync
	}
	return d
}
