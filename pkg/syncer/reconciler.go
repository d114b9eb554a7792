package syncer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/clockwork-hr/punchsync/pkg/attendance"
	"github.com/clockwork-hr/punchsync/pkg/attstore"
)

// Reconciler folds deduplicated punch events into the attendance-interval
// ledger. Interval state is re-read from the store before every decision;
// nothing is cached across events, devices, or cycles.
type Reconciler struct {
	store  attstore.Store
	logger *zap.Logger
}

// NewReconciler creates a new interval reconciler
func NewReconciler(store attstore.Store, logger *zap.Logger) *Reconciler {
	return &Reconciler{store: store, logger: logger}
}

// Apply runs one event through the interval state machine. The caller must
// have passed the dedup filter first: a duplicate event must never reach
// this method. Break and overtime punches are recorded in the punch log
// only and produce no interval mutation.
func (r *Reconciler) Apply(ctx context.Context, ev *attendance.Event) error {
	switch ev.PunchType {
	case attendance.PunchCheckIn:
		return r.applyCheckIn(ctx, ev)
	case attendance.PunchCheckOut:
		return r.applyCheckOut(ctx, ev)
	default:
		return nil
	}
}

func (r *Reconciler) applyCheckIn(ctx context.Context, ev *attendance.Event) error {
	// A second check-in while a session is open never creates a second
	// open interval. Terminals emit repeated scans on retries.
	_, err := r.store.FindOpenInterval(ctx, ev.EmployeeID)
	if err == nil {
		r.logger.Debug("check-in while interval already open, ignoring",
			zap.Int64("employee_id", ev.EmployeeID),
			zap.Time("punching_time", ev.PunchingTime))
		return nil
	}
	if !errors.Is(err, attstore.ErrIntervalNotFound) {
		return fmt.Errorf("find open interval: %w", err)
	}

	// Look ahead: a later interval already closed after this instant means
	// this check-in is a stale out-of-order delivery of an event whose
	// session was already reconciled on a previous cycle.
	later, err := r.store.HasIntervalClosingAfter(ctx, ev.EmployeeID, ev.PunchingTime)
	if err != nil {
		return fmt.Errorf("check later intervals: %w", err)
	}
	if later {
		r.logger.Debug("check-in predates an already-closed interval, ignoring",
			zap.Int64("employee_id", ev.EmployeeID),
			zap.Time("punching_time", ev.PunchingTime))
		return nil
	}

	interval := &attendance.Interval{
		EmployeeID:  ev.EmployeeID,
		CheckIn:     ev.PunchingTime,
		CheckInDate: ev.PunchDate,
	}
	if err := r.store.CreateInterval(ctx, interval); err != nil {
		return fmt.Errorf("create interval: %w", err)
	}
	return nil
}

func (r *Reconciler) applyCheckOut(ctx context.Context, ev *attendance.Event) error {
	opens, err := r.store.ListOpenIntervalsByDate(ctx, ev.EmployeeID, ev.PunchDate)
	if err != nil {
		return fmt.Errorf("list open intervals: %w", err)
	}
	if len(opens) == 0 {
		// Nothing to close. The punch stays in the log; the interval state
		// is untouched.
		r.logger.Debug("check-out with no open interval, ignoring",
			zap.Int64("employee_id", ev.EmployeeID),
			zap.Time("punching_time", ev.PunchingTime))
		return nil
	}
	if len(opens) > 1 {
		r.logger.Warn("multiple open intervals for one day, closing most recent",
			zap.Int64("employee_id", ev.EmployeeID),
			zap.Int("open_count", len(opens)))
	}

	last := opens[len(opens)-1]
	if err := r.store.CloseInterval(ctx, last.ID, ev.PunchingTime); err != nil {
		return fmt.Errorf("close interval %d: %w", last.ID, err)
	}
	return nil
}
