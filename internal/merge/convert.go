package merge

import (
	"fmt"
	"strconv"
)

// RecordOf converts a merged record value back to *T.
func RecordOf[T any](v any) (*T, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case *Bound[T]:
		return t.Ptr(), nil
	case *T:
		return t, nil
	}
	return nil, fmt.Errorf("want %T, got %T", new(T), v)
}

// ListOf converts a merged list value back to []*T.
func ListOf[T any](v any) ([]*T, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("want list, got %T", v)
	}
	out := make([]*T, 0, len(list))
	for i, e := range list {
		r, err := RecordOf[T](e)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

// Nodes binds every element of items for use as a list field value.
func Nodes[T any](s *Schema[T], items []*T) []any {
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = s.Bind(it)
	}
	return out
}

// StringOf accepts strings and scalars that print as one.
func StringOf(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case int:
		return strconv.Itoa(t), nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	}
	return "", fmt.Errorf("want string, got %T", v)
}

// StringsOf converts a list value to []string.
func StringsOf(v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("want list, got %T", v)
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		s, err := StringOf(e)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Strings converts a string slice to a list value.
func Strings(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// BoolOf accepts booleans and their string forms.
func BoolOf(v any) (bool, error) {
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case string:
		return strconv.ParseBool(t)
	}
	return false, fmt.Errorf("want bool, got %T", v)
}
