package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// ParseWhere builds a Filter from a where document:
//
//	{"category": "beginner"}
//	{"year": {"$gte": 2020}}
//	{"$and": [{"category": "tech"}, {"year": {"$lt": 2024}}]}
//	{"$or": [{"tag": {"$in": ["a", "b"]}}, {"draft": false}]}
//
// Several keys in one document are combined with AND. An empty or nil
// document yields a nil filter (match all). The result is validated.
func ParseWhere(where map[string]any) (*Filter, error) {
	if len(where) == 0 {
		return nil, nil
	}
	f, err := parseDocument(where, "")
	if err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// ParseWhereJSON decodes a JSON where document and parses it. Integral
// numbers are kept as ints.
func ParseWhereJSON(data []byte) (*Filter, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var where map[string]any
	if err := dec.Decode(&where); err != nil {
		return nil, &InvalidFilterError{Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}
	return ParseWhere(where)
}

func parseDocument(doc map[string]any, path string) (*Filter, error) {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]*Filter, 0, len(keys))
	for _, k := range keys {
		f, err := parseEntry(k, doc[k], path)
		if err != nil {
			return nil, err
		}
		parts = append(parts, f)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return And(parts...), nil
}

func parseEntry(key string, raw any, path string) (*Filter, error) {
	if strings.HasPrefix(key, "$") {
		op := Operator(strings.TrimPrefix(key, "$"))
		if op != OpAnd && op != OpOr {
			return nil, &InvalidFilterError{Path: path, Reason: fmt.Sprintf("unknown logical operator %q", key)}
		}
		list, ok := raw.([]any)
		if !ok {
			return nil, &InvalidFilterError{Path: path, Reason: fmt.Sprintf("%s expects a list", key)}
		}
		children := make([]*Filter, 0, len(list))
		for i, item := range list {
			childPath := fmt.Sprintf("%s%s[%d]", joinPath(path), key, i)
			m, ok := item.(map[string]any)
			if !ok {
				return nil, &InvalidFilterError{Path: childPath, Reason: "expected an object"}
			}
			child, err := parseDocument(m, childPath)
			if err != nil {
				return nil, err
			}
			if child == nil {
				return nil, &InvalidFilterError{Path: childPath, Reason: "empty object"}
			}
			children = append(children, child)
		}
		return &Filter{Operator: op, Filters: children}, nil
	}

	fieldPath := joinPath(path) + key
	ops, ok := raw.(map[string]any)
	if !ok {
		v, err := FromAny(raw)
		if err != nil {
			return nil, &InvalidFilterError{Path: fieldPath, Reason: err.Error()}
		}
		return &Filter{Operator: OpEqual, Key: key, Value: v}, nil
	}
	if len(ops) == 0 {
		return nil, &InvalidFilterError{Path: fieldPath, Reason: "empty operator object"}
	}

	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	slices.Sort(names)

	parts := make([]*Filter, 0, len(names))
	for _, name := range names {
		f, err := parseOperator(key, name, ops[name], fieldPath)
		if err != nil {
			return nil, err
		}
		parts = append(parts, f)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return And(parts...), nil
}

func parseOperator(key, name string, raw any, path string) (*Filter, error) {
	if !strings.HasPrefix(name, "$") {
		return nil, &InvalidFilterError{Path: path, Reason: fmt.Sprintf("operator %q must start with $", name)}
	}
	op := Operator(strings.TrimPrefix(name, "$"))
	if !op.isLeaf() {
		return nil, &InvalidFilterError{Path: path, Reason: fmt.Sprintf("unknown operator %q", name)}
	}

	if op == OpIn || op == OpNotIn {
		list, ok := raw.([]any)
		if !ok {
			return nil, &InvalidFilterError{Path: path, Reason: fmt.Sprintf("%s expects a list", name)}
		}
		values := make([]Value, len(list))
		for i, item := range list {
			v, err := FromAny(item)
			if err != nil {
				return nil, &InvalidFilterError{Path: fmt.Sprintf("%s[%d]", path, i), Reason: err.Error()}
			}
			values[i] = v
		}
		return &Filter{Operator: op, Key: key, Values: values}, nil
	}

	v, err := FromAny(raw)
	if err != nil {
		return nil, &InvalidFilterError{Path: path, Reason: err.Error()}
	}
	return &Filter{Operator: op, Key: key, Value: v}, nil
}
