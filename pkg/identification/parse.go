package identification

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrUnparsable means the model reply held no usable JSON
var ErrUnparsable = errors.New("unparsable model reply")

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// cropID accepts both 3 and "3"
type cropID struct {
	value int
	set   bool
}

func (c *cropID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("invalid crop id %s", data)
		}
		v = int(f)
	}
	c.value, c.set = v, true
	return nil
}

type namedCrop struct {
	ID   cropID `json:"id"`
	Name string `json:"name"`
}

type namedCrops struct {
	Items []namedCrop `json:"items"`
}

// ParseNames maps a model reply to n names indexed by crop id. The reply may
// be a bare array of {id,name} objects or an object with an "items" array.
// Entries without an id take their position; ids outside [0,n) are ignored.
func ParseNames(raw string, n int) ([]string, error) {
	raw = sanitizeModelJSON(raw)

	var items []namedCrop
	switch {
	case strings.HasPrefix(raw, "["):
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnparsable, err)
		}
	case strings.HasPrefix(raw, "{"):
		var wrapped namedCrops
		if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnparsable, err)
		}
		items = wrapped.Items
		if items == nil {
			// a lone {"id":..,"name":..} object
			var single namedCrop
			if err := json.Unmarshal([]byte(raw), &single); err == nil && single.Name != "" {
				items = []namedCrop{single}
			}
		}
	default:
		return nil, fmt.Errorf("%w: no JSON found", ErrUnparsable)
	}

	names := make([]string, n)
	for pos, it := range items {
		idx := pos
		if it.ID.set {
			idx = it.ID.value
		}
		if idx < 0 || idx >= n {
			continue
		}
		names[idx] = strings.TrimSpace(it.Name)
	}
	return names, nil
}

// sanitizeModelJSON removes code fences, comments, and trailing commas and
// keeps the outermost JSON object or array
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...} or [...], whichever opens first
	start := strings.IndexAny(raw, "{[")
	if start < 0 {
		return strings.TrimSpace(raw)
	}
	closer := "}"
	if raw[start] == '[' {
		closer = "]"
	}
	if end := strings.LastIndex(raw, closer); end > start {
		raw = raw[start : end+1]
	}
	return strings.TrimSpace(raw)
}
