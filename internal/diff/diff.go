// Package diff compares a freshly captured record against the stored one.
package diff

import (
	"encoding/json"
	"reflect"
	"sort"
	"time"
)

// Result of comparing two flat records
type Result struct {
	Identical     bool     `json:"identical"`
	ChangedFields []string `json:"changed_fields,omitempty"`
}

var controlColumns = map[string]struct{}{
	"id":              {},
	"created_at":      {},
	"updated_at":      {},
	"deleted_at":      {},
	"previous_values": {},
	"captured_at":     {},
}

// IsControlColumn reports whether a column is bookkeeping and never compared
func IsControlColumn(name string) bool {
	_, ok := controlColumns[name]
	return ok
}

// StripControlColumns returns a copy of record without bookkeeping columns
func StripControlColumns(record map[string]any) map[string]any {
	out := make(map[string]any, len(record))
	for k, v := range record {
		if !IsControlColumn(k) {
			out[k] = v
		}
	}
	return out
}

// Compare checks every non-control field of newRecord against stored.
// A key missing from stored is treated as nil.
func Compare(newRecord, stored map[string]any) Result {
	var changed []string
	for field, value := range newRecord {
		if IsControlColumn(field) {
			continue
		}
		if !Equal(value, stored[field]) {
			changed = append(changed, field)
		}
	}
	sort.Strings(changed)
	return Result{Identical: len(changed) == 0, ChangedFields: changed}
}

// Snapshot copies the given fields of a stored record, used as the audit payload
// written before an update.
func Snapshot(stored map[string]any, fields []string) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		out[f] = stored[f]
	}
	return out
}

// Equal compares two field values after normalization
func Equal(a, b any) bool {
	a, b = normalize(a), normalize(b)

	if a == nil || b == nil {
		return a == nil && b == nil
	}

	switch av := a.(type) {
	case time.Time:
		if bs, ok := b.(string); ok {
			bt, err := time.Parse(time.RFC3339Nano, bs)
			return err == nil && av.Equal(bt)
		}
		bt, ok := b.(time.Time)
		return ok && av.Equal(bt)
	case string:
		if bt, ok := b.(time.Time); ok {
			at, err := time.Parse(time.RFC3339Nano, av)
			return err == nil && at.Equal(bt)
		}
		bs, ok := b.(string)
		return ok && av == bs
	case float64:
		bf, ok := b.(float64)
		return ok && av == bf
	case bool:
		bb, ok := b.(bool)
		return ok && av == bb
	}

	return reflect.DeepEqual(structural(a), structural(b))
}

// normalize dereferences pointers and folds numeric kinds into float64 so that
// values read back from storage compare equal to freshly built ones.
func normalize(v any) any {
	if v == nil {
		return nil
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String()
	}

	if t, ok := rv.Interface().(time.Time); ok {
		if t.IsZero() {
			return nil
		}
		return t
	}

	return rv.Interface()
}

// structural round-trips composite values through JSON so maps, slices and
// raw JSON documents compare by content.
func structural(v any) any {
	var data []byte
	switch tv := v.(type) {
	case json.RawMessage:
		data = tv
	case []byte:
		data = tv
	default:
		var err error
		data, err = json.Marshal(v)
		if err != nil {
			return v
		}
	}

	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return string(data)
	}
	return out
}
