package core

import (
	"encoding/json"
	"strings"
)

// ProjectPayload keeps only the dotted column paths of a JSON object
// payload. Non-object payloads and empty column lists are returned as is.
func ProjectPayload(payload json.RawMessage, columns ColumnList) (json.RawMessage, error) {
	columns = columns.Normalize()
	if len(columns) == 0 || len(payload) == 0 {
		return append(json.RawMessage(nil), payload...), nil
	}
	var source map[string]any
	if err := json.Unmarshal(payload, &source); err != nil {
		return append(json.RawMessage(nil), payload...), nil
	}
	projected := map[string]any{}
	for _, column := range columns {
		value, ok := lookupPath(source, strings.Split(column, "."))
		if !ok {
			continue
		}
		assignPath(projected, strings.Split(column, "."), value)
	}
	return json.Marshal(projected)
}

func lookupPath(source map[string]any, path []string) (any, bool) {
	var current any = source
	for _, segment := range path {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func assignPath(target map[string]any, path []string, value any) {
	node := target
	for _, segment := range path[:len(path)-1] {
		next, ok := node[segment].(map[string]any)
		if !ok {
			next = map[string]any{}
			node[segment] = next
		}
		node = next
	}
	node[path[len(path)-1]] = value
}
