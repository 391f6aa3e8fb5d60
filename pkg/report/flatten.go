package report

import (
	"math"
	"strings"
	"time"

	"github.com/OFFIS-RIT/dematel/pkg/tree"
)

// TimestampLayout is the cell format of start and end times.
const TimestampLayout = "2006-01-02 15:04:05"

var timestampInputs = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// KV is one flattened key/value row.
type KV struct {
	Key   string
	Value string
}

// Flatten lists the scalar leaves of obj with dotted keys. Arrays become one
// comma-joined cell and null becomes an empty cell. Top-level keys in skip are omitted.
func Flatten(obj *tree.Object, skip ...string) []KV {
	skipped := make(map[string]bool, len(skip))
	for _, k := range skip {
		skipped[k] = true
	}
	var out []KV
	for _, k := range obj.Keys() {
		if skipped[k] {
			continue
		}
		v, _ := obj.Get(k)
		out = flatten(out, k, v)
	}
	return out
}

func flatten(out []KV, key string, v tree.Value) []KV {
	switch tv := v.(type) {
	case *tree.Object:
		for _, k := range tv.Keys() {
			elem, _ := tv.Get(k)
			out = flatten(out, key+"."+k, elem)
		}
		return out
	case tree.Array:
		cells := make([]string, len(tv))
		for i, elem := range tv {
			cells[i] = elementText(elem)
		}
		return append(out, KV{Key: key, Value: strings.Join(cells, ", ")})
	case nil, tree.Null:
		return append(out, KV{Key: key, Value: ""})
	}
	return append(out, KV{Key: key, Value: CellText(v)})
}

func elementText(v tree.Value) string {
	switch v.(type) {
	case *tree.Object, tree.Array:
		b, err := tree.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	case nil, tree.Null:
		return "null"
	}
	return CellText(v)
}

// CellText renders a scalar the way it reads in a cell.
func CellText(v tree.Value) string {
	switch tv := v.(type) {
	case tree.String:
		return string(tv)
	case tree.Number:
		s, err := tree.FormatNumber(float64(tv))
		if err != nil {
			return ""
		}
		return s
	case tree.Bool:
		if tv {
			return "true"
		}
		return "false"
	}
	return ""
}

// FormatTimestamp renders a start or end time in loc. Numbers above 1e12 are read as
// Unix milliseconds and numbers above 1e9 as Unix seconds. Strings are parsed as
// RFC 3339 or plain dates; anything unparsable is returned unchanged.
func FormatTimestamp(v tree.Value, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	switch tv := v.(type) {
	case nil, tree.Null:
		return ""
	case tree.Number:
		f := float64(tv)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ""
		}
		ms := f
		if f <= 1e12 && f > 1e9 {
			ms = f * 1000
		}
		return time.UnixMilli(int64(ms)).In(loc).Format(TimestampLayout)
	case tree.String:
		s := strings.TrimSpace(string(tv))
		if s == "" {
			return ""
		}
		for _, layout := range timestampInputs {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return t.In(loc).Format(TimestampLayout)
			}
		}
		return string(tv)
	}
	return CellText(v)
}
