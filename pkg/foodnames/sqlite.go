package foodnames

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultQuery selects code and display name pairs from a food database
const DefaultQuery = `SELECT code, name FROM foods`

// LoadSQLite reads the name table from a SQLite food database. The query must
// return two text columns: code and display name.
func LoadSQLite(ctx context.Context, dbPath, query string) (Table, error) {
	if query == "" {
		query = DefaultQuery
	}

	conn, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query name table: %w", err)
	}
	defer rows.Close()

	table := make(Table)
	for rows.Next() {
		var code, name string
		if err := rows.Scan(&code, &name); err != nil {
			return nil, fmt.Errorf("failed to scan name row: %w", err)
		}
		table[code] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read name rows: %w", err)
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("no names returned from %s", dbPath)
	}

	return table, nil
}
