package db

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sqlite3 "github.com/mutecomm/go-sqlcipher/v4"
)

const (
	// MemoryPath opens a private in-process database.
	MemoryPath = ":memory:"

	// MaxOpenConns is the connection cap. The note store is the only writer and
	// an in-memory database only exists on its single connection.
	MaxOpenConns = 1
)

var (
	// ErrNotFound is returned when a keyed lookup finds no row.
	ErrNotFound = errors.New("db: record not found")

	// ErrDuplicateKey is returned by Add* when the id already exists.
	ErrDuplicateKey = errors.New("db: duplicate key")
)

// NoteRecord is the persisted shape of a note. Timestamps are Unix milliseconds.
type NoteRecord struct {
	ID         string
	Title      string
	Content    string
	CanvasData sql.NullString
	FolderID   sql.NullString
	Tags       []string
	Color      sql.NullString
	Favorite   bool
	CreatedAt  int64
	UpdatedAt  int64
}

// FolderRecord is the persisted shape of a folder.
type FolderRecord struct {
	ID        string
	Name      string
	ParentID  sql.NullString
	CreatedAt int64
}

// DB wraps the sql.DB connection and exposes the notes and folders collections.
type DB struct {
	db   *sql.DB
	path string
}

// NewFromSQL wraps an existing sql.DB. The caller is responsible for Migrate.
func NewFromSQL(sqlDB *sql.DB) *DB {
	return &DB{db: sqlDB, path: MemoryPath}
}

// Open opens (creating if needed) the database at path and upgrades its schema.
// A non-nil key enables SQLCipher encryption; it must be 32 bytes.
func Open(ctx context.Context, path string, key []byte) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if key != nil && len(key) != 32 {
		return nil, fmt.Errorf("database key must be exactly 32 bytes, got %d", len(key))
	}

	dsn := path
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	if key != nil {
		// Format: file.db?_pragma_key=x'HEX_KEY'&_pragma_cipher_page_size=4096
		dsn = appendSQLiteParams(dsn, fmt.Sprintf("_pragma_key=x'%s'&_pragma_cipher_page_size=4096", hex.EncodeToString(key)))
	}
	dsn = appendSQLiteParams(dsn, sqliteCommonParams(path))

	sqlDB, err := sql.Open(SQLiteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	sqlDB.SetMaxOpenConns(MaxOpenConns)
	sqlDB.SetMaxIdleConns(MaxOpenConns)
	sqlDB.SetConnMaxLifetime(0)

	// Verify connection and encryption by executing a simple query.
	// A wrong key surfaces here as "file is not a database".
	var sqliteVersion string
	if err := sqlDB.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&sqliteVersion); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to verify database %s: %w", path, err)
	}

	d := &DB{db: sqlDB, path: path}
	if err := d.Migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return d, nil
}

// Migrate applies every pending migration, recording progress in PRAGMA user_version.
// Running it on an up-to-date database is a no-op.
func (d *DB) Migrate(ctx context.Context) error {
	current, err := d.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	for v := current; v < len(migrations); v++ {
		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migration %d: begin: %w", v+1, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[v]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", v+1, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: set user_version: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: commit: %w", v+1, err)
		}
	}
	return nil
}

// SchemaVersion returns PRAGMA user_version.
func (d *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := d.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// SQL returns the underlying sql.DB for direct access when needed
func (d *DB) SQL() *sql.DB {
	return d.db
}

// Path returns the path the database was opened from.
func (d *DB) Path() string {
	return d.path
}

// Close closes the connection.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

const noteColumns = `id, title, content, canvas_data, folder_id, tags, color, favorite, created_at, updated_at`

// ListNotes returns every note in storage, newest update first.
func (d *DB) ListNotes(ctx context.Context) ([]NoteRecord, error) {
	return d.queryNotes(ctx, `SELECT `+noteColumns+` FROM notes ORDER BY updated_at DESC, id`)
}

// NotesByFolder uses the folder_id index. An empty folderID selects notes with no folder.
func (d *DB) NotesByFolder(ctx context.Context, folderID string) ([]NoteRecord, error) {
	if folderID == "" {
		return d.queryNotes(ctx, `SELECT `+noteColumns+` FROM notes WHERE folder_id IS NULL ORDER BY updated_at DESC, id`)
	}
	return d.queryNotes(ctx, `SELECT `+noteColumns+` FROM notes WHERE folder_id = ? ORDER BY updated_at DESC, id`, folderID)
}

// NotesByTag returns notes whose tag list contains tag exactly.
func (d *DB) NotesByTag(ctx context.Context, tag string) ([]NoteRecord, error) {
	return d.queryNotes(ctx, `SELECT `+noteColumns+` FROM notes WHERE has_tag(tags, ?) ORDER BY updated_at DESC, id`, tag)
}

// GetNote returns a single note or ErrNotFound.
func (d *DB) GetNote(ctx context.Context, id string) (NoteRecord, error) {
	notes, err := d.queryNotes(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	if err != nil {
		return NoteRecord{}, err
	}
	if len(notes) == 0 {
		return NoteRecord{}, ErrNotFound
	}
	return notes[0], nil
}

// AddNote inserts a new note. An existing id yields ErrDuplicateKey.
func (d *DB) AddNote(ctx context.Context, n NoteRecord) error {
	tags, err := encodeTags(n.Tags)
	if err != nil {
		return err
	}
	_, err = d.db.ExecContext(ctx, `INSERT INTO notes (`+noteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Title, n.Content, n.CanvasData, n.FolderID, tags, n.Color, n.Favorite, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("add note %s: %w", n.ID, ErrDuplicateKey)
		}
		return fmt.Errorf("failed to add note: %w", err)
	}
	return nil
}

// PutNote inserts or replaces a note by id.
func (d *DB) PutNote(ctx context.Context, n NoteRecord) error {
	tags, err := encodeTags(n.Tags)
	if err != nil {
		return err
	}
	_, err = d.db.ExecContext(ctx, `INSERT INTO notes (`+noteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			canvas_data = excluded.canvas_data,
			folder_id = excluded.folder_id,
			tags = excluded.tags,
			color = excluded.color,
			favorite = excluded.favorite,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		n.ID, n.Title, n.Content, n.CanvasData, n.FolderID, tags, n.Color, n.Favorite, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to put note: %w", err)
	}
	return nil
}

// DeleteNote removes a note by id. Deleting a missing id is not an error.
func (d *DB) DeleteNote(ctx context.Context, id string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return nil
}

// ListFolders returns every folder in creation order.
func (d *DB) ListFolders(ctx context.Context) ([]FolderRecord, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, name, parent_id, created_at FROM folders ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()

	var folders []FolderRecord
	for rows.Next() {
		var f FolderRecord
		if err := rows.Scan(&f.ID, &f.Name, &f.ParentID, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	return folders, nil
}

// AddFolder inserts a new folder. An existing id yields ErrDuplicateKey.
func (d *DB) AddFolder(ctx context.Context, f FolderRecord) error {
	_, err := d.db.ExecContext(ctx, `INSERT INTO folders (id, name, parent_id, created_at) VALUES (?, ?, ?, ?)`,
		f.ID, f.Name, f.ParentID, f.CreatedAt)
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("add folder %s: %w", f.ID, ErrDuplicateKey)
		}
		return fmt.Errorf("failed to add folder: %w", err)
	}
	return nil
}

// PutFolder inserts or replaces a folder by id.
func (d *DB) PutFolder(ctx context.Context, f FolderRecord) error {
	_, err := d.db.ExecContext(ctx, `INSERT INTO folders (id, name, parent_id, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, parent_id = excluded.parent_id, created_at = excluded.created_at`,
		f.ID, f.Name, f.ParentID, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to put folder: %w", err)
	}
	return nil
}

// DeleteFolder removes a folder by id. Notes referencing it are left alone.
func (d *DB) DeleteFolder(ctx context.Context, id string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	return nil
}

func (d *DB) queryNotes(ctx context.Context, query string, args ...any) ([]NoteRecord, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var notes []NoteRecord
	for rows.Next() {
		var (
			n    NoteRecord
			tags string
		)
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &n.CanvasData, &n.FolderID, &tags, &n.Color, &n.Favorite, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		n.Tags, err = decodeTags(tags)
		if err != nil {
			return nil, fmt.Errorf("note %s: %w", n.ID, err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	return notes, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("failed to encode tags: %w", err)
	}
	return string(b), nil
}

func decodeTags(raw string) ([]string, error) {
	tags := []string{}
	if strings.TrimSpace(raw) == "" {
		return tags, nil
	}
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	return tags, nil
}

func isConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

func sqliteCommonParams(path string) string {
	if path == MemoryPath {
		return "_busy_timeout=5000&_foreign_keys=on"
	}
	// WAL + NORMAL gives good throughput while staying crash-safe for a local file.
	return "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
}

func appendSQLiteParams(dsn, params string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}
	return dsn + "?" + params
}
