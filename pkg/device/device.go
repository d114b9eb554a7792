// Package device holds the domain model for configured terminals and the
// device-user → employee mapping.
package device

import (
	"time"

	"github.com/clockwork-hr/punchsync/pkg/terminal"
)

// Device is one configured biometric terminal.
type Device struct {
	ID          int64
	Name        string
	Host        string
	Port        int
	Timeout     time.Duration
	Password    string
	Timezone    string     // IANA name; empty means GMT
	SyncHorizon *time.Time // punches at or before this UTC instant are ignored
	Workplace   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DialConfig returns the terminal connection parameters for the device.
func (d *Device) DialConfig() terminal.DialConfig {
	return terminal.DialConfig{
		Host:     d.Host,
		Port:     d.Port,
		Timeout:  d.Timeout,
		Password: d.Password,
	}
}

// User maps a device-local user id to an employee. EmployeeID is zero while
// the terminal user is not linked to anyone; such punches are skipped.
type User struct {
	ID         int64
	DeviceID   int64
	UserID     string // device-local numeric id, stored as text
	Name       string
	Privilege  int
	GroupID    string
	EmployeeID int64
	CreatedAt  time.Time
}
