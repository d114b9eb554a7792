package devicestore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/clockwork-hr/punchsync/pkg/device"
)

// DeviceDao maps directly to the 'devices' table in PostgreSQL.
type DeviceDao struct {
	bun.BaseModel  `bun:"table:devices,alias:d"`
	ID             int64      `bun:"id,pk,autoincrement"`
	Name           string     `bun:"name,notnull,type:varchar(255)"`
	Host           string     `bun:"host,notnull,type:varchar(255)"`
	Port           int        `bun:"port,notnull"`
	TimeoutSeconds int        `bun:"timeout_seconds,notnull"`
	Password       *string    `bun:"password,type:varchar(255)"`
	Timezone       *string    `bun:"timezone,type:varchar(64)"`
	SyncHorizon    *time.Time `bun:"sync_horizon"`
	Workplace      *string    `bun:"workplace,type:varchar(255)"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,default:current_timestamp"`
}

// DeviceUserDao maps directly to the 'device_users' table.
type DeviceUserDao struct {
	bun.BaseModel `bun:"table:device_users,alias:du"`
	ID            int64     `bun:"id,pk,autoincrement"`
	DeviceID      int64     `bun:"device_id,notnull"`
	UserID        string    `bun:"user_id,notnull,type:varchar(32)"`
	Name          string    `bun:"name,type:varchar(255)"`
	Privilege     int       `bun:"privilege"`
	GroupID       string    `bun:"group_id,type:varchar(32)"`
	EmployeeID    *int64    `bun:"employee_id"`
	CreatedAt     time.Time `bun:"created_at,nullzero,default:current_timestamp"`
}

func toDeviceDao(d *device.Device) *DeviceDao {
	dao := &DeviceDao{
		ID:             d.ID,
		Name:           d.Name,
		Host:           d.Host,
		Port:           d.Port,
		TimeoutSeconds: int(d.Timeout / time.Second),
	}
	if d.Password != "" {
		dao.Password = &d.Password
	}
	if d.Timezone != "" {
		dao.Timezone = &d.Timezone
	}
	if d.SyncHorizon != nil {
		dao.SyncHorizon = d.SyncHorizon
	}
	if d.Workplace != "" {
		dao.Workplace = &d.Workplace
	}
	return dao
}

func toDevice(dao *DeviceDao) *device.Device {
	d := &device.Device{
		ID:        dao.ID,
		Name:      dao.Name,
		Host:      dao.Host,
		Port:      dao.Port,
		Timeout:   time.Duration(dao.TimeoutSeconds) * time.Second,
		CreatedAt: dao.CreatedAt,
		UpdatedAt: dao.UpdatedAt,
	}
	if dao.Password != nil {
		d.Password = *dao.Password
	}
	if dao.Timezone != nil {
		d.Timezone = *dao.Timezone
	}
	if dao.SyncHorizon != nil {
		d.SyncHorizon = dao.SyncHorizon
	}
	if dao.Workplace != nil {
		d.Workplace = *dao.Workplace
	}
	return d
}

func toDeviceUserDao(u *device.User) *DeviceUserDao {
	dao := &DeviceUserDao{
		ID:        u.ID,
		DeviceID:  u.DeviceID,
		UserID:    u.UserID,
		Name:      u.Name,
		Privilege: u.Privilege,
		GroupID:   u.GroupID,
	}
	if u.EmployeeID != 0 {
		dao.EmployeeID = &u.EmployeeID
	}
	return dao
}

func toDeviceUser(dao *DeviceUserDao) *device.User {
	u := &device.User{
		ID:        dao.ID,
		DeviceID:  dao.DeviceID,
		UserID:    dao.UserID,
		Name:      dao.Name,
		Privilege: dao.Privilege,
		GroupID:   dao.GroupID,
		CreatedAt: dao.CreatedAt,
	}
	if dao.EmployeeID != nil {
		u.EmployeeID = *dao.EmployeeID
	}
	return u
}
