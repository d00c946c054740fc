package migrations

import (
	"context"
	"embed"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed sql/*.sql
var sqlFiles embed.FS

var Migrations = migrate.NewMigrations()

func init() {
	add("2024112201", "create_questions")
	add("2024112202", "create_user_progress")
	add("2024112203", "create_registrations")
}

// add registers sql/<version>_<name>.up.sql and its .down.sql counterpart.
func add(version, name string) {
	base := version + "_" + name
	Migrations.Add(migrate.Migration{
		Name:    version,
		Comment: name,
		Up: func(ctx context.Context, db *bun.DB) error {
			return execFile(ctx, db, base+".up.sql")
		},
		Down: func(ctx context.Context, db *bun.DB) error {
			return execFile(ctx, db, base+".down.sql")
		},
	})
}

func execFile(ctx context.Context, db *bun.DB, file string) error {
	query, err := sqlFiles.ReadFile("sql/" + file)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", file, err)
	}
	if _, err := db.ExecContext(ctx, string(query)); err != nil {
		return fmt.Errorf("apply migration %s: %w", file, err)
	}
	return nil
}
