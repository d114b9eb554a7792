package attstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/clockwork-hr/punchsync/pkg/attendance"
)

type pgStore struct {
	db bun.IDB
}

// NewStore creates a new postgres implementation of the attendance store
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

func (s *pgStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	db, ok := s.db.(*bun.DB)
	if !ok {
		// Already inside a transaction; reuse it.
		return fn(ctx, s)
	}
	return db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &pgStore{db: tx})
	})
}

func (s *pgStore) InsertLogEntry(ctx context.Context, entry *attendance.LogEntry) error {
	dao := toPunchLogDao(entry)

	res, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (employee_id, punching_time) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert punch-log entry: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read insert result: %w", err)
	}
	if affected == 0 {
		return ErrDuplicateEntry
	}

	entry.ID = dao.ID
	return nil
}

func (s *pgStore) EntryExists(ctx context.Context, employeeID int64, punchingTime time.Time) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*PunchLogDao)(nil)).
		Where("employee_id = ?", employeeID).
		Where("punching_time = ?", punchingTime).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check punch-log entry: %w", err)
	}
	return exists, nil
}

func (s *pgStore) ListEntriesByEmployee(ctx context.Context, employeeID int64, limit int) ([]*attendance.LogEntry, error) {
	var daos []PunchLogDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("employee_id = ?", employeeID).
		Order("punching_time DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list punch-log entries: %w", err)
	}
	entries := make([]*attendance.LogEntry, len(daos))
	for i := range daos {
		entries[i] = toLogEntry(&daos[i])
	}
	return entries, nil
}

func (s *pgStore) CountEntriesByDevice(ctx context.Context, deviceID int64) (int, error) {
	count, err := s.db.NewSelect().
		Model((*PunchLogDao)(nil)).
		Where("device_id = ?", deviceID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count punch-log entries: %w", err)
	}
	return count, nil
}

func (s *pgStore) PurgeEntriesByDevice(ctx context.Context, deviceID int64) (int64, error) {
	res, err := s.db.NewDelete().
		Model((*PunchLogDao)(nil)).
		Where("device_id = ?", deviceID).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to purge punch-log entries: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read purge result: %w", err)
	}
	return affected, nil
}

func (s *pgStore) FindOpenInterval(ctx context.Context, employeeID int64) (*attendance.Interval, error) {
	dao := new(IntervalDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("employee_id = ?", employeeID).
		Where("check_out IS NULL").
		Order("check_in DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIntervalNotFound
		}
		return nil, fmt.Errorf("failed to find open interval: %w", err)
	}
	return toInterval(dao), nil
}

func (s *pgStore) ListOpenIntervalsByDate(ctx context.Context, employeeID int64, date time.Time) ([]*attendance.Interval, error) {
	var daos []IntervalDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("employee_id = ?", employeeID).
		Where("check_out IS NULL").
		Where("check_in_date = ?", date).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open intervals: %w", err)
	}
	intervals := make([]*attendance.Interval, len(daos))
	for i := range daos {
		intervals[i] = toInterval(&daos[i])
	}
	return intervals, nil
}

func (s *pgStore) HasIntervalClosingAfter(ctx context.Context, employeeID int64, t time.Time) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*IntervalDao)(nil)).
		Where("employee_id = ?", employeeID).
		Where("check_out > ?", t).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check later intervals: %w", err)
	}
	return exists, nil
}

func (s *pgStore) CreateInterval(ctx context.Context, interval *attendance.Interval) error {
	dao := toIntervalDao(interval)

	_, err := s.db.NewInsert().
		Model(dao).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create interval: %w", err)
	}

	interval.ID = dao.ID
	return nil
}

func (s *pgStore) CloseInterval(ctx context.Context, id int64, checkOut time.Time) error {
	res, err := s.db.NewUpdate().
		Model((*IntervalDao)(nil)).
		Set("check_out = ?", checkOut).
		Set("updated_at = now()").
		Where("id = ?", id).
		Where("check_out IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to close interval: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read close result: %w", err)
	}
	if affected == 0 {
		return ErrIntervalNotFound
	}
	return nil
}

func (s *pgStore) ListIntervalsByEmployee(ctx context.Context, employeeID int64, limit int) ([]*attendance.Interval, error) {
	var daos []IntervalDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("employee_id = ?", employeeID).
		Order("check_in DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list intervals: %w", err)
	}
	intervals := make([]*attendance.Interval, len(daos))
	for i := range daos {
		intervals[i] = toInterval(&daos[i])
	}
	return intervals, nil
}

func (s *pgStore) CountOpenIntervals(ctx context.Context) (int, error) {
	count, err := s.db.NewSelect().
		Model((*IntervalDao)(nil)).
		Where("check_out IS NULL").
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count open intervals: %w", err)
	}
	return count, nil
}
