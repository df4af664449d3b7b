package sqlite

// SchemaVersion is the schema version this build expects.
const SchemaVersion = "0.2"

// migration is one forward-only schema step.
type migration struct {
	version string
	sql     string
}

// migrations are applied in order. Never edit a released entry; append a new one.
var migrations = []migration{
	{
		version: "0.1",
		sql: `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
);
`,
	},
	{
		version: "0.2",
		sql: `
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`,
	},
}

// migrationIndex returns the position of version in migrations, or -1.
func migrationIndex(version string) int {
	for i, m := range migrations {
		if m.version == version {
			return i
		}
	}
	return -1
}
