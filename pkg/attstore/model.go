package attstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/clockwork-hr/punchsync/pkg/attendance"
)

// PunchLogDao maps directly to the 'punch_log' table in PostgreSQL.
type PunchLogDao struct {
	bun.BaseModel  `bun:"table:punch_log,alias:pl"`
	ID             int64     `bun:"id,pk,autoincrement"`
	EmployeeID     int64     `bun:"employee_id,notnull"`
	DeviceUserID   string    `bun:"device_user_id,notnull,type:varchar(32)"`
	DeviceID       int64     `bun:"device_id,notnull"`
	PunchingTime   time.Time `bun:"punching_time,notnull"`
	PunchDate      time.Time `bun:"punch_date,notnull,type:date"`
	PunchType      int       `bun:"punch_type,notnull"`
	AttendanceType int       `bun:"attendance_type,notnull"`
	Workplace      *string   `bun:"workplace,type:varchar(255)"`
	CreatedAt      time.Time `bun:"created_at,nullzero,default:current_timestamp"`
}

// IntervalDao maps directly to the 'attendance_intervals' table.
type IntervalDao struct {
	bun.BaseModel `bun:"table:attendance_intervals,alias:ai"`
	ID            int64      `bun:"id,pk,autoincrement"`
	EmployeeID    int64      `bun:"employee_id,notnull"`
	CheckIn       time.Time  `bun:"check_in,notnull"`
	CheckOut      *time.Time `bun:"check_out"`
	CheckInDate   time.Time  `bun:"check_in_date,notnull,type:date"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,default:current_timestamp"`
}

func toPunchLogDao(e *attendance.LogEntry) *PunchLogDao {
	dao := &PunchLogDao{
		ID:             e.ID,
		EmployeeID:     e.EmployeeID,
		DeviceUserID:   e.DeviceUserID,
		DeviceID:       e.DeviceID,
		PunchingTime:   e.PunchingTime,
		PunchDate:      e.PunchDate,
		PunchType:      int(e.PunchType),
		AttendanceType: int(e.AttendanceType),
	}
	if e.Workplace != "" {
		dao.Workplace = &e.Workplace
	}
	return dao
}

func toLogEntry(dao *PunchLogDao) *attendance.LogEntry {
	e := &attendance.LogEntry{
		ID:             dao.ID,
		EmployeeID:     dao.EmployeeID,
		DeviceUserID:   dao.DeviceUserID,
		DeviceID:       dao.DeviceID,
		PunchingTime:   dao.PunchingTime,
		PunchDate:      dao.PunchDate,
		PunchType:      attendance.PunchType(dao.PunchType),
		AttendanceType: attendance.AttendanceType(dao.AttendanceType),
		CreatedAt:      dao.CreatedAt,
	}
	if dao.Workplace != nil {
		e.Workplace = *dao.Workplace
	}
	return e
}

func toIntervalDao(iv *attendance.Interval) *IntervalDao {
	return &IntervalDao{
		ID:          iv.ID,
		EmployeeID:  iv.EmployeeID,
		CheckIn:     iv.CheckIn,
		CheckOut:    iv.CheckOut,
		CheckInDate: iv.CheckInDate,
	}
}

func toInterval(dao *IntervalDao) *attendance.Interval {
	return &attendance.Interval{
		ID:          dao.ID,
		EmployeeID:  dao.EmployeeID,
		CheckIn:     dao.CheckIn,
		CheckOut:    dao.CheckOut,
		CheckInDate: dao.CheckInDate,
		CreatedAt:   dao.CreatedAt,
		UpdatedAt:   dao.UpdatedAt,
	}
}
