package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clockwork-hr/punchsync/pkg/attendance"
	"github.com/clockwork-hr/punchsync/pkg/device"
	"github.com/clockwork-hr/punchsync/pkg/devicestore"
	"github.com/clockwork-hr/punchsync/pkg/terminal"
)

// horizonFloor is the cutoff applied when a device has no sync horizon
// configured. Terminals with a dead RTC report dates far in the past;
// anything at or before this instant is noise.
var horizonFloor = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Verdict is the outcome of normalizing one raw punch.
type Verdict int

const (
	VerdictOK Verdict = iota
	VerdictBeforeHorizon
	VerdictUnmappedUser
)

func (v Verdict) String() string {
	switch v {
	case VerdictOK:
		return "ok"
	case VerdictBeforeHorizon:
		return "before_horizon"
	case VerdictUnmappedUser:
		return "unmapped_user"
	default:
		return "unknown"
	}
}

// UserResolver resolves a device-local user id to its mapping record.
type UserResolver interface {
	GetUserByDeviceUserID(ctx context.Context, deviceID int64, userID string) (*device.User, error)
}

// Normalizer converts raw device punches into canonical events for one
// device: naive device-local timestamps become UTC instants, device-local
// user ids become employee references.
type Normalizer struct {
	dev     *device.Device
	loc     *time.Location
	horizon time.Time
	users   UserResolver
}

// NewNormalizer builds a normalizer for one device. loc is the timezone
// the device's wall clock is interpreted in; it is passed explicitly, never
// read from process-global state.
func NewNormalizer(dev *device.Device, loc *time.Location, users UserResolver) *Normalizer {
	horizon := horizonFloor
	if dev.SyncHorizon != nil {
		horizon = *dev.SyncHorizon
	}
	return &Normalizer{dev: dev, loc: loc, horizon: horizon, users: users}
}

// Normalize converts one raw punch. A non-OK verdict with a nil error means
// the record is skipped; an error means the lookup itself failed and the
// record should be retried on a later cycle.
//
// Ambiguous or nonexistent wall-clock times at DST transitions resolve to
// whatever offset time.Date picks; they are not special-cased.
func (n *Normalizer) Normalize(ctx context.Context, raw terminal.RawPunch) (*attendance.Event, Verdict, error) {
	wall := raw.Timestamp
	local := time.Date(wall.Year(), wall.Month(), wall.Day(),
		wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), n.loc)
	utc := local.UTC()

	if !utc.After(n.horizon) {
		return nil, VerdictBeforeHorizon, nil
	}

	usr, err := n.users.GetUserByDeviceUserID(ctx, n.dev.ID, raw.UserID)
	if err != nil {
		if errors.Is(err, devicestore.ErrUserNotFound) {
			return nil, VerdictUnmappedUser, nil
		}
		return nil, VerdictOK, fmt.Errorf("resolve device user %q: %w", raw.UserID, err)
	}
	if usr.EmployeeID == 0 {
		return nil, VerdictUnmappedUser, nil
	}

	return &attendance.Event{
		EmployeeID:     usr.EmployeeID,
		DeviceUserID:   raw.UserID,
		DeviceID:       n.dev.ID,
		PunchingTime:   utc,
		PunchDate:      dateOf(local),
		PunchType:      attendance.PunchType(raw.Punch),
		AttendanceType: attendance.AttendanceType(raw.Status),
		Workplace:      n.dev.Workplace,
	}, VerdictOK, nil
}

// dateOf truncates a localized time to its calendar date, represented as
// midnight UTC so date equality survives storage round-trips.
func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
