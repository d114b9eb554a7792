package attendancedb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/clockwork-hr/punchsync/pkg/devicestore"
	mghelper "github.com/clockwork-hr/punchsync/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating device_users table...")
		if err := mghelper.CreateSchema(ctx, db, &devicestore.DeviceUserDao{}); err != nil {
			return err
		}
		// One row per enrollment per device.
		if _, err := db.ExecContext(ctx,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_device_users_device_user ON device_users (device_id, user_id)`); err != nil {
			return err
		}
		// An employee maps to at most one enrollment; unlinked rows carry 0.
		_, err := db.ExecContext(ctx,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_device_users_employee ON device_users (employee_id) WHERE employee_id <> 0`)
		return err
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping device_users table...")
		return mghelper.DropTables(ctx, db, &devicestore.DeviceUserDao{})
	})
}
