package syncer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/clockwork-hr/punchsync/pkg/attendance"
	"github.com/clockwork-hr/punchsync/pkg/attstore"
	"github.com/clockwork-hr/punchsync/pkg/device"
	"github.com/clockwork-hr/punchsync/pkg/devicestore"
	"github.com/clockwork-hr/punchsync/pkg/terminal"
)

// MockSession is a mock implementation of terminal.Session
type MockSession struct {
	PunchesFunc    func(ctx context.Context) ([]terminal.RawPunch, error)
	UsersFunc      func(ctx context.Context) ([]terminal.User, error)
	DisconnectFunc func() error

	Disconnected int
}

func (m *MockSession) Punches(ctx context.Context) ([]terminal.RawPunch, error) {
	if m.PunchesFunc != nil {
		return m.PunchesFunc(ctx)
	}
	return nil, nil
}

func (m *MockSession) Users(ctx context.Context) ([]terminal.User, error) {
	if m.UsersFunc != nil {
		return m.UsersFunc(ctx)
	}
	return nil, nil
}

func (m *MockSession) Disconnect() error {
	m.Disconnected++
	if m.DisconnectFunc != nil {
		return m.DisconnectFunc()
	}
	return nil
}

// MockDialer is a mock implementation of terminal.Dialer
type MockDialer struct {
	DialFunc func(ctx context.Context, cfg terminal.DialConfig) (terminal.Session, error)
}

func (m *MockDialer) Dial(ctx context.Context, cfg terminal.DialConfig) (terminal.Session, error) {
	if m.DialFunc != nil {
		return m.DialFunc(ctx, cfg)
	}
	return &MockSession{}, nil
}

type entryKey struct {
	employeeID int64
	unixNano   int64
}

// memLedger is an in-memory attstore.Store for reconciler and syncer tests.
type memLedger struct {
	mu        sync.Mutex
	entries   map[entryKey]*attendance.LogEntry
	intervals []*attendance.Interval
	nextID    int64
}

func newMemLedger() *memLedger {
	return &memLedger{entries: make(map[entryKey]*attendance.LogEntry)}
}

// RunInTx snapshots the ledger and restores it when fn fails, mirroring
// the commit-or-rollback contract of the postgres store.
func (m *memLedger) RunInTx(ctx context.Context, fn func(ctx context.Context, tx attstore.Store) error) error {
	m.mu.Lock()
	entries := make(map[entryKey]*attendance.LogEntry, len(m.entries))
	for k, v := range m.entries {
		cp := *v
		entries[k] = &cp
	}
	intervals := make([]*attendance.Interval, len(m.intervals))
	for i, iv := range m.intervals {
		cp := *iv
		intervals[i] = &cp
	}
	nextID := m.nextID
	m.mu.Unlock()

	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.entries = entries
		m.intervals = intervals
		m.nextID = nextID
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memLedger) InsertLogEntry(_ context.Context, entry *attendance.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := entryKey{entry.EmployeeID, entry.PunchingTime.UnixNano()}
	if _, ok := m.entries[key]; ok {
		return attstore.ErrDuplicateEntry
	}
	m.nextID++
	entry.ID = m.nextID
	cp := *entry
	m.entries[key] = &cp
	return nil
}

func (m *memLedger) EntryExists(_ context.Context, employeeID int64, punchingTime time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[entryKey{employeeID, punchingTime.UnixNano()}]
	return ok, nil
}

func (m *memLedger) ListEntriesByEmployee(_ context.Context, employeeID int64, limit int) ([]*attendance.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*attendance.LogEntry
	for _, e := range m.entries {
		if e.EmployeeID == employeeID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PunchingTime.After(out[j].PunchingTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memLedger) CountEntriesByDevice(_ context.Context, deviceID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.DeviceID == deviceID {
			n++
		}
	}
	return n, nil
}

func (m *memLedger) PurgeEntriesByDevice(_ context.Context, deviceID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, e := range m.entries {
		if e.DeviceID == deviceID {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

func (m *memLedger) FindOpenInterval(_ context.Context, employeeID int64) (*attendance.Interval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *attendance.Interval
	for _, iv := range m.intervals {
		if iv.EmployeeID == employeeID && iv.CheckOut == nil {
			if found == nil || iv.CheckIn.After(found.CheckIn) {
				found = iv
			}
		}
	}
	if found == nil {
		return nil, attstore.ErrIntervalNotFound
	}
	cp := *found
	return &cp, nil
}

func (m *memLedger) ListOpenIntervalsByDate(_ context.Context, employeeID int64, date time.Time) ([]*attendance.Interval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*attendance.Interval
	for _, iv := range m.intervals {
		if iv.EmployeeID == employeeID && iv.CheckOut == nil && iv.CheckInDate.Equal(date) {
			cp := *iv
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memLedger) HasIntervalClosingAfter(_ context.Context, employeeID int64, t time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, iv := range m.intervals {
		if iv.EmployeeID == employeeID && iv.CheckOut != nil && iv.CheckOut.After(t) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memLedger) CreateInterval(_ context.Context, interval *attendance.Interval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	interval.ID = m.nextID
	cp := *interval
	m.intervals = append(m.intervals, &cp)
	return nil
}

func (m *memLedger) CloseInterval(_ context.Context, id int64, checkOut time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, iv := range m.intervals {
		if iv.ID == id && iv.CheckOut == nil {
			t := checkOut
			iv.CheckOut = &t
			return nil
		}
	}
	return attstore.ErrIntervalNotFound
}

func (m *memLedger) ListIntervalsByEmployee(_ context.Context, employeeID int64, limit int) ([]*attendance.Interval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*attendance.Interval
	for _, iv := range m.intervals {
		if iv.EmployeeID == employeeID {
			cp := *iv
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckIn.Before(out[j].CheckIn) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memLedger) CountOpenIntervals(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, iv := range m.intervals {
		if iv.CheckOut == nil {
			n++
		}
	}
	return n, nil
}

// memDevices is an in-memory devicestore.Store.
type memDevices struct {
	mu      sync.Mutex
	devices map[int64]*device.Device
	users   map[int64]*device.User
	nextID  int64
}

func newMemDevices() *memDevices {
	return &memDevices{
		devices: make(map[int64]*device.Device),
		users:   make(map[int64]*device.User),
	}
}

func (m *memDevices) CreateDevice(_ context.Context, dev *device.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	dev.ID = m.nextID
	cp := *dev
	m.devices[dev.ID] = &cp
	return nil
}

func (m *memDevices) UpsertDevice(ctx context.Context, dev *device.Device) error {
	m.mu.Lock()
	for _, d := range m.devices {
		if d.Host == dev.Host && d.Port == dev.Port {
			dev.ID = d.ID
			cp := *dev
			m.devices[d.ID] = &cp
			m.mu.Unlock()
			return nil
		}
	}
	m.mu.Unlock()
	return m.CreateDevice(ctx, dev)
}

func (m *memDevices) GetDevice(_ context.Context, id int64) (*device.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return nil, devicestore.ErrDeviceNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memDevices) ListDevices(_ context.Context) ([]*device.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*device.Device
	for _, d := range m.devices {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memDevices) UpsertUser(_ context.Context, usr *device.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.DeviceID == usr.DeviceID && u.UserID == usr.UserID {
			usr.ID = u.ID
			u.Name = usr.Name
			u.Privilege = usr.Privilege
			u.GroupID = usr.GroupID
			return nil
		}
	}
	m.nextID++
	usr.ID = m.nextID
	cp := *usr
	m.users[usr.ID] = &cp
	return nil
}

func (m *memDevices) GetUserByDeviceUserID(_ context.Context, deviceID int64, userID string) (*device.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.DeviceID == deviceID && u.UserID == userID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, devicestore.ErrUserNotFound
}

func (m *memDevices) LinkEmployee(_ context.Context, id int64, employeeID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.EmployeeID == employeeID && u.ID != id {
			return devicestore.ErrEmployeeTaken
		}
	}
	u, ok := m.users[id]
	if !ok {
		return devicestore.ErrUserNotFound
	}
	u.EmployeeID = employeeID
	return nil
}

func (m *memDevices) ListUsersByDevice(_ context.Context, deviceID int64) ([]*device.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*device.User
	for _, u := range m.users {
		if u.DeviceID == deviceID {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
