package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Issue records a field that was present but could not be used.
// Issues are informational; a contract with issues is still valid.
type Issue struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

func (i Issue) String() string {
	return i.Path + ": " + i.Reason
}

// decodeObject decodes raw JSON into a generic object. Anything that is not a
// JSON object yields an empty object plus an issue.
func decodeObject(raw []byte, issues *[]Issue) map[string]any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		*issues = append(*issues, Issue{Path: "$", Reason: "invalid json: " + err.Error()})
		return map[string]any{}
	}

	obj, ok := v.(map[string]any)
	if !ok {
		if v != nil {
			*issues = append(*issues, Issue{Path: "$", Reason: fmt.Sprintf("expected object, got %s", kindOf(v))})
		}
		return map[string]any{}
	}
	return obj
}

// reader walks one JSON object, reading aliased keys and collecting issues
// instead of failing.
type reader struct {
	path   string
	m      map[string]any
	issues *[]Issue
}

func newReader(path string, m map[string]any, issues *[]Issue) reader {
	if m == nil {
		m = map[string]any{}
	}
	return reader{path: path, m: m, issues: issues}
}

func (r reader) at(key string) string {
	if r.path == "" {
		return key
	}
	return r.path + "." + key
}

func (r reader) note(key, reason string) {
	*r.issues = append(*r.issues, Issue{Path: r.at(key), Reason: reason})
}

// lookup returns the first alias present with a non-null value.
func (r reader) lookup(keys ...string) (string, any, bool) {
	for _, k := range keys {
		if v, ok := r.m[k]; ok && v != nil {
			return k, v, true
		}
	}
	return "", nil, false
}

func (r reader) str(keys ...string) *string {
	key, v, ok := r.lookup(keys...)
	if !ok {
		return nil
	}
	switch typed := v.(type) {
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return nil
		}
		return &trimmed
	case json.Number:
		s := typed.String()
		return &s
	default:
		r.note(key, "expected string, got "+kindOf(v))
		return nil
	}
}

func (r reader) number(keys ...string) *float64 {
	key, v, ok := r.lookup(keys...)
	if !ok {
		return nil
	}
	switch typed := v.(type) {
	case json.Number:
		f, err := typed.Float64()
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			r.note(key, "number out of range")
			return nil
		}
		return &f
	case string:
		f, ok := parseAmount(typed)
		if !ok {
			r.note(key, "expected number, got unparsable string")
			return nil
		}
		return &f
	default:
		r.note(key, "expected number, got "+kindOf(v))
		return nil
	}
}

func (r reader) integer(keys ...string) *int64 {
	key, v, ok := r.lookup(keys...)
	if !ok {
		return nil
	}
	var s string
	switch typed := v.(type) {
	case json.Number:
		s = typed.String()
	case string:
		s = strings.TrimSpace(typed)
	default:
		r.note(key, "expected integer, got "+kindOf(v))
		return nil
	}
	n, ok := parseInteger(s)
	if !ok {
		r.note(key, "expected integer")
		return nil
	}
	return &n
}

func (r reader) boolean(keys ...string) *bool {
	key, v, ok := r.lookup(keys...)
	if !ok {
		return nil
	}
	switch typed := v.(type) {
	case bool:
		return &typed
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "true", "yes", "1":
			b := true
			return &b
		case "false", "no", "0":
			b := false
			return &b
		}
	}
	r.note(key, "expected boolean, got "+kindOf(v))
	return nil
}

func (r reader) object(keys ...string) (reader, bool) {
	key, v, ok := r.lookup(keys...)
	if !ok {
		return newReader(r.at(keys[0]), nil, r.issues), false
	}
	obj, isObj := v.(map[string]any)
	if !isObj {
		r.note(key, "expected object, got "+kindOf(v))
		return newReader(r.at(key), nil, r.issues), false
	}
	return newReader(r.at(key), obj, r.issues), true
}

// list returns the elements of an array. A lone scalar or object is treated
// as a one-element list.
func (r reader) list(keys ...string) (string, []any) {
	key, v, ok := r.lookup(keys...)
	if !ok {
		return "", nil
	}
	switch typed := v.(type) {
	case []any:
		return key, typed
	case string, map[string]any:
		return key, []any{typed}
	default:
		r.note(key, "expected array, got "+kindOf(v))
		return key, nil
	}
}

func (r reader) strings(keys ...string) []string {
	key, items := r.list(keys...)
	out := make([]string, 0, len(items))
	for i, item := range items {
		switch typed := item.(type) {
		case string:
			if s := strings.TrimSpace(typed); s != "" {
				out = append(out, s)
			}
		case json.Number:
			out = append(out, typed.String())
		default:
			r.note(fmt.Sprintf("%s[%d]", key, i), "expected string, got "+kindOf(item))
		}
	}
	return out
}

func (r reader) timestamp(keys ...string) (*time.Time, *string) {
	raw := r.str(keys...)
	if raw == nil {
		return nil, nil
	}
	if t, ok := parseTime(*raw); ok {
		return &t, raw
	}
	key, _, _ := r.lookup(keys...)
	r.note(key, "unrecognized date format")
	return nil, raw
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(raw string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseAmount accepts plain numbers and simple currency strings such as
// "$15,000" or "15 000.50".
func parseAmount(raw string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ',', ' ', '$', '€', '£', '_':
			return -1
		}
		return r
	}, raw)
	if cleaned == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// parseInteger accepts integral values written as "42", "42.0" or "4.2e1".
func parseInteger(s string) (int64, bool) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, false
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case json.Number, float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
