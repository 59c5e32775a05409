// winrahi/database/migrations.go
package database

// migration represents a single database schema migration.
type migration struct {
	Version uint
	Query   string
}

// allMigrations holds all schema changes in order.
var allMigrations = []migration{
	{
		Version: 1,
		Query: `
-- Add a stored thumbnail alongside the full-size image
ALTER TABLE items ADD COLUMN thumbnail_url TEXT NOT NULL DEFAULT '';
		`,
	},
	// Future migrations will be added here.
}
