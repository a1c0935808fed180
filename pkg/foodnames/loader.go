package foodnames

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadJSON reads a {"code": "display name"} table from a JSON file
func LoadJSON(filename string) (Table, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read name table: %w", err)
	}

	var table Table
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse name table: %w", err)
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("name table %s is empty", filename)
	}

	return table, nil
}
