package foodnames

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable() Table {
	return Table{
		"01011001": "쌀밥",
		"04011004": "된장찌개",
		"04011011": "김치찌개",
		"06012004": "배추김치",
		"07011001": "김치볶음밥",
		"11013007": "Chicken Salad (grilled)",
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, expected string
	}{
		{"  Kimchi Jjigae ", "kimchijjigae"},
		{"chicken-salad (grilled)", "chickensaladgrilled"},
		{"된장 찌개", "된장찌개"},
		{"a_b/c+d.e,f'g\"h·i", "abcdefghi"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, s := range []string{" Bap & Guk ", "김치-찌개", "(Grilled) Fish", "\tTAB\n", "·"} {
		once := Normalize(s)
		assert.Equal(t, once, Normalize(once), "Normalize must be idempotent for %q", s)
	}
}

func TestResolveCascade(t *testing.T) {
	idx := NewIndex(testTable())

	assert.Equal(t, "04011004", idx.Resolve("된장 찌개"), "exact match after normalization")
	assert.Equal(t, "11013007", idx.Resolve("chicken salad grilled"), "exact match ignores punctuation and case")
	assert.Equal(t, "07011001", idx.Resolve("김치볶"), "prefix match")
	assert.Equal(t, "04011011", idx.Resolve("치찌"), "substring match, first in code order")
	assert.Equal(t, "04011011", idx.Resolve("김치찌"), "prefix wins over substring")
	assert.Equal(t, UnknownCode, idx.Resolve("된장국"))
	assert.Equal(t, UnknownCode, idx.Resolve(""))
	assert.Equal(t, UnknownCode, idx.Resolve(" - "))
}

func TestResolveIdempotent(t *testing.T) {
	idx := NewIndex(testTable())
	for _, name := range []string{"김치", "쌀밥", "pizza", "", "찌개"} {
		assert.Equal(t, idx.Resolve(name), idx.Resolve(name))
	}
}

func TestDuplicateNormalizedNamesPreferLowerCode(t *testing.T) {
	idx := NewIndex(Table{
		"200": "김 치",
		"100": "김치",
	})
	assert.Equal(t, "100", idx.Resolve("김치"))
}

func TestDisplayName(t *testing.T) {
	idx := NewIndex(testTable())
	assert.Equal(t, "쌀밥", idx.DisplayName("01011001"))
	assert.Equal(t, UnknownDisplayName, idx.DisplayName(UnknownCode))
	assert.Equal(t, 6, idx.Len())
}

func TestLazyBuildsOnce(t *testing.T) {
	get := Lazy(testTable())
	first := get()
	require.NotNil(t, first)
	assert.Same(t, first, get())
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"01011001": "쌀밥", "06012004": "배추김치"}`), 0o644))

	table, err := LoadJSON(path)
	require.NoError(t, err)
	assert.Equal(t, "배추김치", table["06012004"])

	empty := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{}`), 0o644))
	_, err = LoadJSON(empty)
	assert.Error(t, err)

	_, err = LoadJSON(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foods.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE foods (code TEXT PRIMARY KEY, name TEXT NOT NULL);
		INSERT INTO foods VALUES ('01011001', '쌀밥'), ('04011004', '된장찌개');`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	table, err := LoadSQLite(context.Background(), path, "")
	require.NoError(t, err)
	assert.Len(t, table, 2)
	assert.Equal(t, "된장찌개", table["04011004"])

	_, err = LoadSQLite(context.Background(), path, "SELECT code, name FROM foods WHERE 0")
	assert.Error(t, err)
}

func BenchmarkResolve(b *testing.B) {
	idx := NewIndex(testTable())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		idx.Resolve("치찌")
	}
}
