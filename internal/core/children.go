package core

import (
	"fmt"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cast"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// decodeChildren parses a json-blob cell into raw child rows keyed by canonical
// child field names. Keys are matched with the same tiers as CSV headers;
// unknown keys are dropped. An empty cell means "no children".
func decodeChildren(cell string, spec *ChildSpec) ([]map[string]string, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil, nil
	}

	var items []map[string]any
	if err := json.UnmarshalFromString(cell, &items); err != nil {
		return nil, fmt.Errorf("expected a JSON array of objects: %w", err)
	}

	rows := make([]map[string]string, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		row := make(map[string]string, len(item))
		claimed := make(map[string]bool, len(spec.Fields))
		for _, key := range childKeys(item, spec.Fields) {
			name, ok := matchField(strings.TrimSpace(key), spec.Fields, claimed)
			if !ok {
				continue
			}
			s, err := childValueString(item[key])
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", key, err)
			}
			claimed[name] = true
			row[name] = s
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// childKeys orders an object's keys so that keys naming a field exactly are
// matched before any key that would only match it by synonym.
func childKeys(item map[string]any, fields []FieldSpec) []string {
	keys := make([]string, 0, len(item))
	for k := range item {
		keys = append(keys, k)
	}
	exact := func(k string) bool {
		k = strings.TrimSpace(k)
		for _, f := range fields {
			if k == f.Name || k == f.Label {
				return true
			}
		}
		return false
	}
	sort.SliceStable(keys, func(i, j int) bool {
		ei, ej := exact(keys[i]), exact(keys[j])
		if ei != ej {
			return ei
		}
		return keys[i] < keys[j]
	})
	return keys
}

// childValueString coerces a decoded JSON value to its cell form.
func childValueString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case map[string]any, []any:
		return json.MarshalToString(t)
	default:
		return cast.ToStringE(t)
	}
}

// EncodeChildren renders child rows as the JSON array stored in a parent's
// export cell. Only the child schema's fields are emitted, export-formatted.
func EncodeChildren(rows []map[string]string, spec *ChildSpec) (string, error) {
	items := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		item := make(map[string]string, len(spec.Fields))
		for _, f := range spec.Fields {
			item[f.Name] = FormatExport(f, row[f.Name])
		}
		items = append(items, item)
	}
	return json.MarshalToString(items)
}
