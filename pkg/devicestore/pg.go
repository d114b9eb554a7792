package devicestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/clockwork-hr/punchsync/pkg/device"
)

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the device store
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

func (s *pgStore) CreateDevice(ctx context.Context, dev *device.Device) error {
	dao := toDeviceDao(dev)

	_, err := s.db.NewInsert().
		Model(dao).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}

	dev.ID = dao.ID
	return nil
}

func (s *pgStore) UpsertDevice(ctx context.Context, dev *device.Device) error {
	dao := toDeviceDao(dev)

	_, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (host, port) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("timeout_seconds = EXCLUDED.timeout_seconds").
		Set("password = EXCLUDED.password").
		Set("timezone = EXCLUDED.timezone").
		Set("sync_horizon = EXCLUDED.sync_horizon").
		Set("workplace = EXCLUDED.workplace").
		Set("updated_at = now()").
		Returning("id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}

	dev.ID = dao.ID
	return nil
}

func (s *pgStore) GetDevice(ctx context.Context, id int64) (*device.Device, error) {
	dao := new(DeviceDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return toDevice(dao), nil
}

func (s *pgStore) ListDevices(ctx context.Context) ([]*device.Device, error) {
	var daos []DeviceDao
	err := s.db.NewSelect().
		Model(&daos).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	devices := make([]*device.Device, len(daos))
	for i := range daos {
		devices[i] = toDevice(&daos[i])
	}
	return devices, nil
}

func (s *pgStore) UpsertUser(ctx context.Context, usr *device.User) error {
	dao := toDeviceUserDao(usr)

	_, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (device_id, user_id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("privilege = EXCLUDED.privilege").
		Set("group_id = EXCLUDED.group_id").
		Returning("id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert device user: %w", err)
	}

	usr.ID = dao.ID
	return nil
}

func (s *pgStore) GetUserByDeviceUserID(ctx context.Context, deviceID int64, userID string) (*device.User, error) {
	dao := new(DeviceUserDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("device_id = ?", deviceID).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get device user: %w", err)
	}
	return toDeviceUser(dao), nil
}

func (s *pgStore) LinkEmployee(ctx context.Context, id int64, employeeID int64) error {
	taken, err := s.db.NewSelect().
		Model((*DeviceUserDao)(nil)).
		Where("employee_id = ?", employeeID).
		Where("id != ?", id).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check employee link: %w", err)
	}
	if taken {
		return ErrEmployeeTaken
	}

	res, err := s.db.NewUpdate().
		Model((*DeviceUserDao)(nil)).
		Set("employee_id = ?", employeeID).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to link employee: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read link result: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *pgStore) ListUsersByDevice(ctx context.Context, deviceID int64) ([]*device.User, error) {
	var daos []DeviceUserDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("device_id = ?", deviceID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list device users: %w", err)
	}
	users := make([]*device.User, len(daos))
	for i := range daos {
		users[i] = toDeviceUser(&daos[i])
	}
	return users, nil
}
