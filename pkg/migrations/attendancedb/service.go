// Package attendancedb holds all the migrations for the attendance database
package attendancedb

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations is the collection of all migrations for the attendance database
var Migrations = migrate.NewMigrations()
