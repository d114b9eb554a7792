package attendancedb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/clockwork-hr/punchsync/pkg/attstore"
	mghelper "github.com/clockwork-hr/punchsync/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating punch_log table...")
		if err := mghelper.CreateSchema(ctx, db, &attstore.PunchLogDao{}); err != nil {
			return err
		}
		// The dedup key: inserts race on it with ON CONFLICT DO NOTHING.
		if _, err := db.ExecContext(ctx,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_punch_log_employee_time ON punch_log (employee_id, punching_time)`); err != nil {
			return err
		}
		return mghelper.CreateIndexes(ctx, db, "punch_log", "device_id", "punch_date")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping punch_log table...")
		return mghelper.DropTables(ctx, db, &attstore.PunchLogDao{})
	})
}
