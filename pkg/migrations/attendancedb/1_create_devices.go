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
		log.Println("creating devices table...")
		if err := mghelper.CreateSchema(ctx, db, &devicestore.DeviceDao{}); err != nil {
			return err
		}
		// One device row per network endpoint.
		_, err := db.ExecContext(ctx,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_devices_host_port ON devices (host, port)`)
		return err
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping devices table...")
		return mghelper.DropTables(ctx, db, &devicestore.DeviceDao{})
	})
}
