package attstore

import (
	"context"
	"errors"
	"time"

	"github.com/clockwork-hr/punchsync/pkg/attendance"
)

// ErrDuplicateEntry is returned when a punch-log insert hits the
// (employee, punching_time) uniqueness constraint. Callers treat it as
// already-known, not as a failure.
var ErrDuplicateEntry = errors.New("duplicate punch-log entry")

// ErrIntervalNotFound is returned when an interval lookup finds no row.
var ErrIntervalNotFound = errors.New("interval not found")

// Store defines the attendance-ledger persistence operations the sync
// engine depends on. The reconciler never caches interval state; every
// decision re-reads through this interface.
type Store interface {
	// RunInTx executes fn against a transactional view of the store. All
	// writes fn issues commit or roll back as one unit.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// InsertLogEntry writes one punch-log row. The duplicate check and the
	// insert are one atomic statement against the database; a losing
	// concurrent duplicate yields ErrDuplicateEntry, never a second row.
	InsertLogEntry(ctx context.Context, entry *attendance.LogEntry) error
	EntryExists(ctx context.Context, employeeID int64, punchingTime time.Time) (bool, error)
	ListEntriesByEmployee(ctx context.Context, employeeID int64, limit int) ([]*attendance.LogEntry, error)
	CountEntriesByDevice(ctx context.Context, deviceID int64) (int, error)
	// PurgeEntriesByDevice deletes all punch-log rows ingested from one
	// device and returns the number of rows removed.
	PurgeEntriesByDevice(ctx context.Context, deviceID int64) (int64, error)

	// FindOpenInterval returns the employee's open interval regardless of
	// date, or ErrIntervalNotFound.
	FindOpenInterval(ctx context.Context, employeeID int64) (*attendance.Interval, error)
	// ListOpenIntervalsByDate returns open intervals whose check-in date
	// matches, oldest first (creation order).
	ListOpenIntervalsByDate(ctx context.Context, employeeID int64, date time.Time) ([]*attendance.Interval, error)
	// HasIntervalClosingAfter reports whether any interval of the employee
	// has a check-out strictly after t. Used to guard against reopening a
	// session from a stale out-of-order check-in.
	HasIntervalClosingAfter(ctx context.Context, employeeID int64, t time.Time) (bool, error)
	CreateInterval(ctx context.Context, interval *attendance.Interval) error
	CloseInterval(ctx context.Context, id int64, checkOut time.Time) error
	ListIntervalsByEmployee(ctx context.Context, employeeID int64, limit int) ([]*attendance.Interval, error)
	CountOpenIntervals(ctx context.Context) (int, error)
}
