package datafile

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

func isDatabase(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sqlite", ".sqlite3", ".db":
		return true
	}
	return false
}

// loadDatabase reads every user table of a SQLite database. The result maps
// table names to lists of rows, each row a map of column name to value.
func loadDatabase(path string) (map[string]any, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	tables, err := tableNames(db)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables in %s: %w", path, err)
	}

	out := make(map[string]any, len(tables))
	for _, table := range tables {
		rows, err := readTable(db, table)
		if err != nil {
			return nil, fmt.Errorf("failed to read table %s in %s: %w", table, path, err)
		}
		out[table] = rows
	}
	return out, nil
}

func tableNames(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func readTable(db *sql.DB, table string) ([]any, error) {
	quoted := `"` + strings.ReplaceAll(table, `"`, `""`) + `"`
	rows, err := db.Query("SELECT * FROM " + quoted + " ORDER BY rowid")
	if err != nil {
		// WITHOUT ROWID tables have no rowid column.
		rows, err = db.Query("SELECT * FROM " + quoted)
		if err != nil {
			return nil, err
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = columnValue(values[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func columnValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return v
	}
}
