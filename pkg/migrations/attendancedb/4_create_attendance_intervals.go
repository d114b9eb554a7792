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
		log.Println("creating attendance_intervals table...")
		if err := mghelper.CreateSchema(ctx, db, &attstore.IntervalDao{}); err != nil {
			return err
		}
		if err := mghelper.CreateIndexes(ctx, db, "attendance_intervals", "employee_id", "check_in_date"); err != nil {
			return err
		}
		// Fast path for the open-interval lookups the reconciler does on
		// every check-in and check-out.
		_, err := db.ExecContext(ctx,
			`CREATE INDEX IF NOT EXISTS idx_attendance_intervals_open ON attendance_intervals (employee_id) WHERE check_out IS NULL`)
		return err
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping attendance_intervals table...")
		return mghelper.DropTables(ctx, db, &attstore.IntervalDao{})
	})
}
