package devicestore

import (
	"context"
	"errors"

	"github.com/clockwork-hr/punchsync/pkg/device"
)

// ErrDeviceNotFound is returned when a device lookup finds no matching record.
var ErrDeviceNotFound = errors.New("device not found")

// ErrUserNotFound is returned when a device-user lookup finds no matching record.
var ErrUserNotFound = errors.New("device user not found")

// ErrEmployeeTaken is returned when linking a device user to an employee
// that already has another terminal id.
var ErrEmployeeTaken = errors.New("employee already linked to another device user")

// Store defines persistence for configured terminals and their user tables.
type Store interface {
	CreateDevice(ctx context.Context, dev *device.Device) error
	// UpsertDevice inserts the device or, when one with the same host and
	// port exists, updates its connection parameters. Used by the seed file.
	UpsertDevice(ctx context.Context, dev *device.Device) error
	GetDevice(ctx context.Context, id int64) (*device.Device, error)
	ListDevices(ctx context.Context) ([]*device.Device, error)

	// UpsertUser inserts or refreshes one entry of a terminal's user table,
	// keyed by (device_id, user_id). The employee link is preserved on
	// refresh.
	UpsertUser(ctx context.Context, usr *device.User) error
	// GetUserByDeviceUserID resolves a device-local user id to its mapping
	// record, or ErrUserNotFound.
	GetUserByDeviceUserID(ctx context.Context, deviceID int64, userID string) (*device.User, error)
	// LinkEmployee attaches an employee to a device user. One terminal id
	// per employee: ErrEmployeeTaken if the employee is already linked.
	LinkEmployee(ctx context.Context, id int64, employeeID int64) error
	ListUsersByDevice(ctx context.Context, deviceID int64) ([]*device.User, error)
}
