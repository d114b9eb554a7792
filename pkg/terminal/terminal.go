// Package terminal defines the capability consumed to talk to a networked
// time-attendance terminal. Implementations live elsewhere (pkg/zkteco for
// the standard ZKTeco wire protocol); the sync engine depends only on the
// interfaces here.
package terminal

import (
	"context"
	"time"
)

// RawPunch is one punch record as delivered by a terminal.
//
// Timestamp is naive device-local wall-clock time: the date/time fields are
// meaningful, the Location is not. The normalizer reinterprets it in the
// device's configured timezone before anything is persisted.
type RawPunch struct {
	UserID    string
	Timestamp time.Time
	Status    int
	Punch     int
}

// User is one entry of a terminal's enrolled-user table.
type User struct {
	UserID    string
	Name      string
	Privilege int
	GroupID   string
}

// Session is an open connection to one terminal.
//
// Punches and Users return the full device-side tables in device delivery
// order. Disconnect must be called on every exit path; it is safe to call
// after a failed fetch.
type Session interface {
	Punches(ctx context.Context) ([]RawPunch, error)
	Users(ctx context.Context) ([]User, error)
	Disconnect() error
}

// DialConfig carries the connection parameters for one terminal.
type DialConfig struct {
	Host     string
	Port     int
	Timeout  time.Duration
	Password string
}

// Dialer opens sessions to terminals. A nil or absent dialer is a
// construction-time configuration error, never a per-call fallback.
type Dialer interface {
	Dial(ctx context.Context, cfg DialConfig) (Session, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, cfg DialConfig) (Session, error)

func (f DialerFunc) Dial(ctx context.Context, cfg DialConfig) (Session, error) {
	return f(ctx, cfg)
}
