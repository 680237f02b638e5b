package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	sqlite3 "github.com/mutecomm/go-sqlcipher/v4"
)

const (
	// SQLiteDriverName is the project-specific SQLCipher driver with custom SQL functions.
	SQLiteDriverName = "sqlite3_noteflow"
)

func init() {
	sql.Register(SQLiteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if err := conn.RegisterFunc("has_tag", sqliteHasTag, true); err != nil {
				if strings.Contains(strings.ToLower(err.Error()), "already exists") {
					return nil
				}
				return fmt.Errorf("register has_tag SQL function: %w", err)
			}
			return nil
		},
	})
}

// sqliteHasTag reports whether a JSON-encoded tag array contains tag exactly.
// Malformed arrays are treated as empty so one bad row cannot fail a scan.
func sqliteHasTag(tagsJSON any, tag string) (int64, error) {
	raw, err := sqliteValueBytes(tagsJSON)
	if err != nil {
		return 0, err
	}
	if len(raw) == 0 {
		return 0, nil
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return 0, nil
	}
	for _, t := range tags {
		if t == tag {
			return 1, nil
		}
	}
	return 0, nil
}

func sqliteValueBytes(v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	default:
		return nil, fmt.Errorf("unsupported tags value type: %T", v)
	}
}
