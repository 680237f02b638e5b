package db

// SchemaVersion is the version written to PRAGMA user_version once every
// migration has been applied.
const SchemaVersion = 1

// schemaV1 creates the two collections the note store persists to.
// notes.folder_id deliberately has no foreign key: folder deletion reassigns
// notes in application code after the folder row is gone.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS notes (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    canvas_data TEXT,
    folder_id TEXT,
    tags TEXT NOT NULL DEFAULT '[]',
    color TEXT,
    favorite INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notes_folder_id ON notes(folder_id);
CREATE INDEX IF NOT EXISTS idx_notes_created_at ON notes(created_at);
CREATE INDEX IF NOT EXISTS idx_notes_updated_at ON notes(updated_at DESC);

CREATE TABLE IF NOT EXISTS folders (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    parent_id TEXT,
    created_at INTEGER NOT NULL
);
`

// migrations[i] upgrades a database from user_version i to i+1.
// Every statement must be idempotent so a half-applied upgrade can be rerun.
var migrations = []string{
	schemaV1,
}
