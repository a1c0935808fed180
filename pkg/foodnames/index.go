// Package foodnames canonicalizes free-text food names and resolves them to
// stable food codes.
package foodnames

import (
	"sort"
	"strings"
	"sync"
	"unicode"
)

const (
	// UnknownCode is returned when a name cannot be matched to any table entry
	UnknownCode = "00000000"

	// UnknownDisplayName is shown for codes missing from the table
	UnknownDisplayName = "이름 정보 없음"
)

// Table maps food code to display name
type Table map[string]string

// stripped characters besides whitespace
const punctuation = "-_/()+.,'\"·"

// Normalize lowercases a name and strips whitespace and punctuation, producing
// the key used for lookups.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || strings.ContainsRune(punctuation, r) {
			return -1
		}
		return r
	}, name)
}

type entry struct {
	key  string
	code string
}

// Index is a read-only normalized-name to code lookup. It is safe for
// concurrent use once constructed.
type Index struct {
	table   Table
	exact   map[string]string
	entries []entry
}

// NewIndex builds the inverse index of a table. Entries are kept in ascending
// code order so prefix and substring matches are deterministic; when two codes
// normalize to the same name the lower code wins.
func NewIndex(table Table) *Index {
	codes := make([]string, 0, len(table))
	for code := range table {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	idx := &Index{
		table:   make(Table, len(table)),
		exact:   make(map[string]string, len(table)),
		entries: make([]entry, 0, len(table)),
	}
	for _, code := range codes {
		name := table[code]
		idx.table[code] = name

		key := Normalize(name)
		if key == "" {
			continue
		}
		if _, ok := idx.exact[key]; ok {
			continue
		}
		idx.exact[key] = code
		idx.entries = append(idx.entries, entry{key: key, code: code})
	}
	return idx
}

// Lazy returns a function that builds the index on first call and returns the
// same instance afterwards.
func Lazy(table Table) func() *Index {
	return sync.OnceValue(func() *Index {
		return NewIndex(table)
	})
}

// Resolve maps a free-text name to a code: exact match first, then the first
// key starting with the name, then the first key containing it, else UnknownCode.
func (idx *Index) Resolve(name string) string {
	key := Normalize(name)
	if key == "" {
		return UnknownCode
	}
	if code, ok := idx.exact[key]; ok {
		return code
	}
	for _, e := range idx.entries {
		if strings.HasPrefix(e.key, key) {
			return e.code
		}
	}
	for _, e := range idx.entries {
		if strings.Contains(e.key, key) {
			return e.code
		}
	}
	return UnknownCode
}

// DisplayName returns the table name for a code or UnknownDisplayName
func (idx *Index) DisplayName(code string) string {
	if name, ok := idx.table[code]; ok {
		return name
	}
	return UnknownDisplayName
}

// Len returns the number of codes in the underlying table
func (idx *Index) Len() int {
	return len(idx.table)
}
