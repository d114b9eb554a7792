// Package attendance holds the domain model for the attendance ledger:
// punch-log entries and reconciled work intervals.
package attendance

import (
	"time"

	"github.com/shopspring/decimal"
)

// PunchType is the numeric action code a terminal attaches to a punch.
type PunchType int

const (
	PunchCheckIn     PunchType = 0
	PunchCheckOut    PunchType = 1
	PunchBreakOut    PunchType = 2
	PunchBreakIn     PunchType = 3
	PunchOvertimeIn  PunchType = 4
	PunchOvertimeOut PunchType = 5
)

func (p PunchType) String() string {
	switch p {
	case PunchCheckIn:
		return "check_in"
	case PunchCheckOut:
		return "check_out"
	case PunchBreakOut:
		return "break_out"
	case PunchBreakIn:
		return "break_in"
	case PunchOvertimeIn:
		return "overtime_in"
	case PunchOvertimeOut:
		return "overtime_out"
	default:
		return "unknown"
	}
}

// AttendanceType is the verification method reported by the terminal.
type AttendanceType int

const (
	VerifyFinger     AttendanceType = 0
	VerifyFingerAlt  AttendanceType = 1
	VerifyType2      AttendanceType = 2
	VerifyPassword   AttendanceType = 3
	VerifyCard       AttendanceType = 4
	VerifyFace       AttendanceType = 15
)

func (a AttendanceType) String() string {
	switch a {
	case VerifyFinger, VerifyFingerAlt:
		return "finger"
	case VerifyType2:
		return "type_2"
	case VerifyPassword:
		return "password"
	case VerifyCard:
		return "card"
	case VerifyFace:
		return "face"
	default:
		return "unknown"
	}
}

// Event is one normalized punch: device-local raw record resolved to an
// employee and a UTC instant, with the calendar date in the device's
// timezone.
type Event struct {
	EmployeeID     int64
	DeviceUserID   string
	DeviceID       int64
	PunchingTime   time.Time // UTC
	PunchDate      time.Time // local calendar date, midnight UTC
	PunchType      PunchType
	AttendanceType AttendanceType
	Workplace      string
}

// LogEntry is one persisted punch-log row. Exactly one row exists per
// (employee, punching time) pair.
type LogEntry struct {
	ID             int64
	EmployeeID     int64
	DeviceUserID   string
	DeviceID       int64
	PunchingTime   time.Time
	PunchDate      time.Time
	PunchType      PunchType
	AttendanceType AttendanceType
	Workplace      string
	CreatedAt      time.Time
}

// Interval is one reconciled work session. CheckOut is nil while the
// session is open.
type Interval struct {
	ID          int64
	EmployeeID  int64
	CheckIn     time.Time
	CheckOut    *time.Time
	CheckInDate time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Open reports whether the interval has no check-out yet.
func (iv *Interval) Open() bool {
	return iv.CheckOut == nil
}

// WorkedHours returns the interval length in hours, zero while open.
func (iv *Interval) WorkedHours() decimal.Decimal {
	if iv.CheckOut == nil {
		return decimal.Zero
	}
	secs := iv.CheckOut.Sub(iv.CheckIn).Seconds()
	return decimal.NewFromFloat(secs).Div(decimal.NewFromInt(3600)).Round(4)
}

// Overlaps reports whether two intervals of the same employee intersect.
// An open interval extends to +inf.
func (iv *Interval) Overlaps(other *Interval) bool {
	endBeforeOther := iv.CheckOut != nil && !iv.CheckOut.After(other.CheckIn)
	otherEndBefore := other.CheckOut != nil && !other.CheckOut.After(iv.CheckIn)
	return !endBeforeOther && !otherEndBefore
}
