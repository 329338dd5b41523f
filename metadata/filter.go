package metadata

import (
	"fmt"
	"strings"
)

// Operator represents a comparison or boolean operator for filtering.
type Operator string

const (
	// OpEqual represents the equality operator.
	OpEqual Operator = "eq"
	// OpNotEqual represents the inequality operator.
	OpNotEqual Operator = "ne"
	// OpGreaterThan represents the greater than operator.
	OpGreaterThan Operator = "gt"
	// OpGreaterEqual represents the greater than or equal operator.
	OpGreaterEqual Operator = "gte"
	// OpLessThan represents the less than operator.
	OpLessThan Operator = "lt"
	// OpLessEqual represents the less than or equal operator.
	OpLessEqual Operator = "lte"
	// OpIn represents the in list operator.
	OpIn Operator = "in"
	// OpNotIn represents the not in list operator.
	OpNotIn Operator = "nin"
	// OpContains represents the contains substring operator.
	OpContains Operator = "contains"
	// OpAnd matches when every child matches.
	OpAnd Operator = "and"
	// OpOr matches when at least one child matches.
	OpOr Operator = "or"
)

func (op Operator) isLeaf() bool {
	switch op {
	case OpEqual, OpNotEqual, OpGreaterThan, OpGreaterEqual, OpLessThan, OpLessEqual,
		OpIn, OpNotIn, OpContains:
		return true
	default:
		return false
	}
}

func (op Operator) isRange() bool {
	switch op {
	case OpGreaterThan, OpGreaterEqual, OpLessThan, OpLessEqual:
		return true
	default:
		return false
	}
}

// Filter is a node of a predicate tree over metadata.
//
// Leaf nodes compare the value stored under Key with Value (or Values for
// set membership). Branch nodes (OpAnd, OpOr) combine Filters.
type Filter struct {
	Operator Operator
	Key      string
	Value    Value
	Values   []Value
	Filters  []*Filter
}

func leaf(op Operator, key string, v any) *Filter {
	val, err := FromAny(v)
	if err != nil {
		val = Value{}
	}
	return &Filter{Operator: op, Key: key, Value: val}
}

func set(op Operator, key string, vs []any) *Filter {
	values := make([]Value, len(vs))
	for i, v := range vs {
		val, err := FromAny(v)
		if err != nil {
			val = Value{}
		}
		values[i] = val
	}
	return &Filter{Operator: op, Key: key, Values: values}
}

// Eq matches documents whose key equals v.
func Eq(key string, v any) *Filter { return leaf(OpEqual, key, v) }

// Ne matches documents whose key is present and differs from v.
func Ne(key string, v any) *Filter { return leaf(OpNotEqual, key, v) }

// Gt matches documents whose key is greater than v.
func Gt(key string, v any) *Filter { return leaf(OpGreaterThan, key, v) }

// Gte matches documents whose key is greater than or equal to v.
func Gte(key string, v any) *Filter { return leaf(OpGreaterEqual, key, v) }

// Lt matches documents whose key is less than v.
func Lt(key string, v any) *Filter { return leaf(OpLessThan, key, v) }

// Lte matches documents whose key is less than or equal to v.
func Lte(key string, v any) *Filter { return leaf(OpLessEqual, key, v) }

// In matches documents whose key equals one of vs.
func In(key string, vs ...any) *Filter { return set(OpIn, key, vs) }

// Nin matches documents whose key is present and equals none of vs.
func Nin(key string, vs ...any) *Filter { return set(OpNotIn, key, vs) }

// Contains matches documents whose string key contains the substring s.
func Contains(key, s string) *Filter { return leaf(OpContains, key, s) }

// And matches when all filters match.
func And(filters ...*Filter) *Filter { return &Filter{Operator: OpAnd, Filters: filters} }

// Or matches when any filter matches.
func Or(filters ...*Filter) *Filter { return &Filter{Operator: OpOr, Filters: filters} }

// Validate checks the tree and returns *InvalidFilterError for the first
// malformed node. A nil filter is valid and matches everything.
func (f *Filter) Validate() error {
	if f == nil {
		return nil
	}
	return f.validate("")
}

func (f *Filter) validate(path string) error {
	if f == nil {
		return &InvalidFilterError{Path: path, Reason: "nil node"}
	}

	switch f.Operator {
	case OpAnd, OpOr:
		if len(f.Filters) == 0 {
			return &InvalidFilterError{Path: path, Reason: fmt.Sprintf("$%s requires at least one operand", f.Operator)}
		}
		for i, child := range f.Filters {
			if err := child.validate(fmt.Sprintf("%s$%s[%d]", joinPath(path), f.Operator, i)); err != nil {
				return err
			}
		}
		return nil
	}

	if !f.Operator.isLeaf() {
		return &InvalidFilterError{Path: path, Reason: fmt.Sprintf("unknown operator %q", f.Operator)}
	}

	p := joinPath(path) + f.Key
	if f.Key == "" {
		return &InvalidFilterError{Path: path, Reason: "empty key"}
	}

	switch f.Operator {
	case OpIn, OpNotIn:
		if len(f.Values) == 0 {
			return &InvalidFilterError{Path: p, Reason: fmt.Sprintf("$%s requires at least one value", f.Operator)}
		}
		for i, v := range f.Values {
			if !v.IsValid() {
				return &InvalidFilterError{Path: fmt.Sprintf("%s[%d]", p, i), Reason: "invalid value"}
			}
		}
		return nil
	}

	if !f.Value.IsValid() {
		return &InvalidFilterError{Path: p, Reason: "missing or invalid value"}
	}
	if f.Operator.isRange() && f.Value.Kind == KindBool {
		return &InvalidFilterError{Path: p, Reason: fmt.Sprintf("$%s is not defined for bool", f.Operator)}
	}
	if f.Operator == OpContains && f.Value.Kind != KindString {
		return &InvalidFilterError{Path: p, Reason: "$contains requires a string"}
	}
	return nil
}

func joinPath(path string) string {
	if path == "" {
		return ""
	}
	return path + "."
}

// Matches checks if the provided metadata matches this filter.
//
// A nil filter matches everything. A leaf whose key is absent from doc
// never matches, whatever its operator.
func (f *Filter) Matches(doc Document) bool {
	if f == nil {
		return true
	}

	switch f.Operator {
	case OpAnd:
		for _, child := range f.Filters {
			if !child.Matches(doc) {
				return false
			}
		}
		return true
	case OpOr:
		for _, child := range f.Filters {
			if child.Matches(doc) {
				return true
			}
		}
		return false
	}

	value, exists := doc[f.Key]
	if !exists {
		return false
	}

	switch f.Operator {
	case OpEqual:
		return value.Equal(f.Value)
	case OpNotEqual:
		return !value.Equal(f.Value)
	case OpGreaterThan:
		c, ok := value.Compare(f.Value)
		return ok && c > 0
	case OpGreaterEqual:
		c, ok := value.Compare(f.Value)
		return ok && c >= 0
	case OpLessThan:
		c, ok := value.Compare(f.Value)
		return ok && c < 0
	case OpLessEqual:
		c, ok := value.Compare(f.Value)
		return ok && c <= 0
	case OpIn:
		return inSet(value, f.Values)
	case OpNotIn:
		return !inSet(value, f.Values)
	case OpContains:
		s, ok := value.AsString()
		return ok && strings.Contains(s, f.Value.S)
	default:
		return false
	}
}

func inSet(v Value, set []Value) bool {
	for _, item := range set {
		if v.Equal(item) {
			return true
		}
	}
	return false
}

// String renders the filter in the where-document notation.
func (f *Filter) String() string {
	if f == nil {
		return "{}"
	}
	var b strings.Builder
	f.write(&b)
	return b.String()
}

func (f *Filter) write(b *strings.Builder) {
	switch f.Operator {
	case OpAnd, OpOr:
		fmt.Fprintf(b, "{$%s: [", f.Operator)
		for i, child := range f.Filters {
			if i > 0 {
				b.WriteString(", ")
			}
			if child == nil {
				b.WriteString("<nil>")
				continue
			}
			child.write(b)
		}
		b.WriteString("]}")
	case OpIn, OpNotIn:
		fmt.Fprintf(b, "{%s: {$%s: [", f.Key, f.Operator)
		for i, v := range f.Values {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "%v", v.Any())
		}
		b.WriteString("]}}")
	default:
		fmt.Fprintf(b, "{%s: {$%s: %v}}", f.Key, f.Operator, f.Value.Any())
	}
}
