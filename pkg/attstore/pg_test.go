package attstore

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/clockwork-hr/punchsync/pkg/attendance"
	"github.com/clockwork-hr/punchsync/pkg/pgutil"
	mghelper "github.com/clockwork-hr/punchsync/pkg/pgutil/migrations"
)

func setupStore(t *testing.T) (context.Context, *pgStore) {
	t.Helper()
	requireDockerAccess(t)

	ctx := context.Background()
	db, cleanup := pgutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	if err := mghelper.CreateSchema(ctx, db, &PunchLogDao{}, &IntervalDao{}); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	// The dedup key InsertLogEntry races on.
	if _, err := db.ExecContext(ctx,
		`CREATE UNIQUE INDEX idx_punch_log_employee_time ON punch_log (employee_id, punching_time)`); err != nil {
		t.Fatalf("failed to create dedup index: %v", err)
	}

	return ctx, NewStore(db)
}

func requireDockerAccess(t *testing.T) {
	t.Helper()

	candidates := []string{
		"/var/run/docker.sock",
		filepath.Join(os.Getenv("HOME"), ".docker/run/docker.sock"),
	}

	for _, sock := range candidates {
		if sock == "" {
			continue
		}
		if _, err := os.Stat(sock); err != nil {
			continue
		}
		conn, err := (&net.Dialer{}).DialContext(context.Background(), "unix", sock)
		if err == nil {
			_ = conn.Close()
			return
		}
	}

	t.Skip("docker daemon socket is not accessible; skipping testcontainer-backed attstore tests")
}

func newTestEntry(employeeID int64, ts time.Time) *attendance.LogEntry {
	return &attendance.LogEntry{
		EmployeeID:   employeeID,
		DeviceUserID: "7",
		DeviceID:     1,
		PunchingTime: ts,
		PunchDate:    time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC),
		PunchType:    attendance.PunchCheckIn,
	}
}

func TestPGStore_InsertLogEntryDeduplicates(t *testing.T) {
	ctx, s := setupStore(t)
	ts := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	entry := newTestEntry(42, ts)
	if err := s.InsertLogEntry(ctx, entry); err != nil {
		t.Fatalf("InsertLogEntry() failed: %v", err)
	}
	if entry.ID == 0 {
		t.Error("insert did not populate the entry id")
	}

	dup := newTestEntry(42, ts)
	if err := s.InsertLogEntry(ctx, dup); !errors.Is(err, ErrDuplicateEntry) {
		t.Fatalf("duplicate insert: got %v, want ErrDuplicateEntry", err)
	}

	// Same instant for a different employee is a distinct punch.
	other := newTestEntry(43, ts)
	if err := s.InsertLogEntry(ctx, other); err != nil {
		t.Fatalf("InsertLogEntry() for other employee failed: %v", err)
	}

	exists, err := s.EntryExists(ctx, 42, ts)
	if err != nil {
		t.Fatalf("EntryExists() failed: %v", err)
	}
	if !exists {
		t.Error("expected entry to exist")
	}
}

func TestPGStore_ListEntriesByEmployee(t *testing.T) {
	ctx, s := setupStore(t)
	base := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := s.InsertLogEntry(ctx, newTestEntry(42, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("InsertLogEntry() failed: %v", err)
		}
	}

	entries, err := s.ListEntriesByEmployee(ctx, 42, 2)
	if err != nil {
		t.Fatalf("ListEntriesByEmployee() failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	// Newest first.
	if !entries[0].PunchingTime.After(entries[1].PunchingTime) {
		t.Errorf("entries not in descending order: %v then %v",
			entries[0].PunchingTime, entries[1].PunchingTime)
	}
}

func TestPGStore_PurgeEntriesByDevice(t *testing.T) {
	ctx, s := setupStore(t)
	ts := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	mine := newTestEntry(42, ts)
	mine.DeviceID = 1
	theirs := newTestEntry(43, ts)
	theirs.DeviceID = 2
	for _, e := range []*attendance.LogEntry{mine, theirs} {
		if err := s.InsertLogEntry(ctx, e); err != nil {
			t.Fatalf("InsertLogEntry() failed: %v", err)
		}
	}

	purged, err := s.PurgeEntriesByDevice(ctx, 1)
	if err != nil {
		t.Fatalf("PurgeEntriesByDevice() failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged %d rows, want 1", purged)
	}

	n, err := s.CountEntriesByDevice(ctx, 2)
	if err != nil {
		t.Fatalf("CountEntriesByDevice() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("device 2 has %d entries, want 1", n)
	}
}

func TestPGStore_IntervalLifecycle(t *testing.T) {
	ctx, s := setupStore(t)
	checkIn := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	date := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	if _, err := s.FindOpenInterval(ctx, 42); !errors.Is(err, ErrIntervalNotFound) {
		t.Fatalf("FindOpenInterval() on empty store: got %v, want ErrIntervalNotFound", err)
	}

	iv := &attendance.Interval{EmployeeID: 42, CheckIn: checkIn, CheckInDate: date}
	if err := s.CreateInterval(ctx, iv); err != nil {
		t.Fatalf("CreateInterval() failed: %v", err)
	}
	if iv.ID == 0 {
		t.Fatal("create did not populate the interval id")
	}

	open, err := s.FindOpenInterval(ctx, 42)
	if err != nil {
		t.Fatalf("FindOpenInterval() failed: %v", err)
	}
	if open.ID != iv.ID || !open.CheckIn.Equal(checkIn) {
		t.Errorf("open interval = %+v", open)
	}

	checkOut := checkIn.Add(8 * time.Hour)
	if err := s.CloseInterval(ctx, iv.ID, checkOut); err != nil {
		t.Fatalf("CloseInterval() failed: %v", err)
	}

	// Closing twice is rejected: the row no longer matches check_out IS NULL.
	if err := s.CloseInterval(ctx, iv.ID, checkOut.Add(time.Hour)); !errors.Is(err, ErrIntervalNotFound) {
		t.Fatalf("second close: got %v, want ErrIntervalNotFound", err)
	}

	if _, err := s.FindOpenInterval(ctx, 42); !errors.Is(err, ErrIntervalNotFound) {
		t.Fatalf("FindOpenInterval() after close: got %v, want ErrIntervalNotFound", err)
	}

	got, err := s.ListIntervalsByEmployee(ctx, 42, 10)
	if err != nil {
		t.Fatalf("ListIntervalsByEmployee() failed: %v", err)
	}
	if len(got) != 1 || got[0].CheckOut == nil || !got[0].CheckOut.Equal(checkOut) {
		t.Errorf("intervals = %+v", got)
	}
}

func TestPGStore_ListOpenIntervalsByDate(t *testing.T) {
	ctx, s := setupStore(t)
	day1 := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)

	first := &attendance.Interval{EmployeeID: 42, CheckIn: day1.Add(9 * time.Hour), CheckInDate: day1}
	second := &attendance.Interval{EmployeeID: 42, CheckIn: day1.Add(13 * time.Hour), CheckInDate: day1}
	otherDay := &attendance.Interval{EmployeeID: 42, CheckIn: day2.Add(9 * time.Hour), CheckInDate: day2}
	for _, iv := range []*attendance.Interval{first, second, otherDay} {
		if err := s.CreateInterval(ctx, iv); err != nil {
			t.Fatalf("CreateInterval() failed: %v", err)
		}
	}

	open, err := s.ListOpenIntervalsByDate(ctx, 42, day1)
	if err != nil {
		t.Fatalf("ListOpenIntervalsByDate() failed: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("got %d open intervals for day 1, want 2", len(open))
	}
	// Creation order, so the reconciler can close the most recent one last.
	if open[0].ID != first.ID || open[1].ID != second.ID {
		t.Errorf("open intervals out of order: %d then %d", open[0].ID, open[1].ID)
	}
}

func TestPGStore_HasIntervalClosingAfter(t *testing.T) {
	ctx, s := setupStore(t)
	checkIn := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	date := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	iv := &attendance.Interval{EmployeeID: 42, CheckIn: checkIn, CheckInDate: date}
	if err := s.CreateInterval(ctx, iv); err != nil {
		t.Fatalf("CreateInterval() failed: %v", err)
	}
	checkOut := checkIn.Add(8 * time.Hour)
	if err := s.CloseInterval(ctx, iv.ID, checkOut); err != nil {
		t.Fatalf("CloseInterval() failed: %v", err)
	}

	later, err := s.HasIntervalClosingAfter(ctx, 42, checkIn.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("HasIntervalClosingAfter() failed: %v", err)
	}
	if !later {
		t.Error("expected a later-closing interval before the check-out time")
	}

	none, err := s.HasIntervalClosingAfter(ctx, 42, checkOut)
	if err != nil {
		t.Fatalf("HasIntervalClosingAfter() failed: %v", err)
	}
	if none {
		t.Error("no interval closes after its own check-out")
	}
}

func TestPGStore_CountOpenIntervals(t *testing.T) {
	ctx, s := setupStore(t)
	date := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	for emp := int64(1); emp <= 3; emp++ {
		iv := &attendance.Interval{EmployeeID: emp, CheckIn: date.Add(9 * time.Hour), CheckInDate: date}
		if err := s.CreateInterval(ctx, iv); err != nil {
			t.Fatalf("CreateInterval() failed: %v", err)
		}
		if emp == 1 {
			if err := s.CloseInterval(ctx, iv.ID, date.Add(17*time.Hour)); err != nil {
				t.Fatalf("CloseInterval() failed: %v", err)
			}
		}
	}

	n, err := s.CountOpenIntervals(ctx)
	if err != nil {
		t.Fatalf("CountOpenIntervals() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("open intervals = %d, want 2", n)
	}
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	ctx, store := setupStore(t)

	induced := errors.New("induced failure")
	ts := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	err := store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		if err := tx.InsertLogEntry(ctx, newTestEntry(9, ts)); err != nil {
			t.Fatalf("InsertLogEntry() inside tx failed: %v", err)
		}
		return induced
	})
	if !errors.Is(err, induced) {
		t.Fatalf("expected the induced error, got %v", err)
	}

	exists, err := store.EntryExists(ctx, 9, ts)
	if err != nil {
		t.Fatalf("EntryExists() failed: %v", err)
	}
	if exists {
		t.Fatal("rolled-back insert is still visible")
	}

	err = store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		return tx.InsertLogEntry(ctx, newTestEntry(9, ts))
	})
	if err != nil {
		t.Fatalf("RunInTx() commit failed: %v", err)
	}
	exists, err = store.EntryExists(ctx, 9, ts)
	if err != nil {
		t.Fatalf("EntryExists() failed: %v", err)
	}
	if !exists {
		t.Fatal("committed insert is not visible")
	}
}
