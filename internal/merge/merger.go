package merge

import (
	"fmt"
	"strconv"

	"git.home.luguber.info/inful/docweave/internal/model"
)

// Values applies overwrite onto base and returns the merged base. Records
// and bags are mutated in place; the returned value only differs from base
// when base was nil or a scalar.
//
// Overwrite values are deep-copied before being stored so one fragment can
// be applied to several bases.
func Values(base, overwrite any) (any, error) {
	v, err := mergeValue(nil, "", "", base, overwrite)
	if err != nil {
		return base, err
	}
	return Unwrap(v), nil
}

// Into merges overwrite into the record dst.
func Into(dst Node, overwrite any) error {
	src, ok := AsNode(overwrite)
	if !ok {
		if overwrite == nil {
			return nil
		}
		return &Error{Err: fmt.Errorf("%w: overwrite is %T, want record", ErrTypeMismatch, overwrite)}
	}
	return mergeNode(dst, src, "")
}

// Decode copies every field of src into dst, merge keys and ignored
// fields included. It converts between bags and typed records.
func Decode(dst Node, src any) error {
	sn, ok := AsNode(src)
	if !ok {
		if src == nil {
			return nil
		}
		return &Error{Err: fmt.Errorf("%w: source is %T, want record", ErrTypeMismatch, src)}
	}
	return copyNode(dst, sn, "")
}

func mergeNode(dst, src Node, path string) error {
	for _, name := range src.Keys() {
		sv, _ := src.Get(name)
		fieldPath := join(path, name)
		switch dst.Policy(name) {
		case Ignore, MergeKey:
			continue
		case Replace:
			if err := replace(dst, name, fieldPath, sv); err != nil {
				return err
			}
		case ReplaceNullOrDefault:
			if isDefault(sv) {
				continue
			}
			if err := replace(dst, name, fieldPath, sv); err != nil {
				return err
			}
		case MergeNullOrDefault:
			if isDefault(sv) {
				continue
			}
			fallthrough
		default:
			if sv == nil {
				continue
			}
			dv, _ := dst.Get(name)
			merged, err := mergeValue(dst, name, fieldPath, dv, sv)
			if err != nil {
				return err
			}
			if err := set(dst, name, fieldPath, merged); err != nil {
				return err
			}
		}
	}
	return nil
}

func replace(dst Node, name, path string, sv any) error {
	v, err := materialize(dst, name, path, sv)
	if err != nil {
		return err
	}
	return set(dst, name, path, v)
}

func set(dst Node, name, path string, v any) error {
	if err := dst.Set(name, v); err != nil {
		return &Error{Path: path, Err: err}
	}
	return nil
}

// mergeValue merges sv onto dv, where both live in field name of parent.
func mergeValue(parent Node, name, path string, dv, sv any) (any, error) {
	if sv == nil {
		return dv, nil
	}
	if isNil(dv) {
		return materialize(parent, name, path, sv)
	}

	dn, dIsNode := AsNode(dv)
	sn, sIsNode := AsNode(sv)
	switch {
	case dIsNode && sIsNode:
		if err := mergeNode(dn, sn, path); err != nil {
			return nil, err
		}
		return dn, nil
	case dIsNode || sIsNode:
		return nil, &Error{Path: path, Err: fmt.Errorf("%w: cannot merge %s onto %s", ErrTypeMismatch, shape(sv), shape(dv))}
	}

	dl, dIsList := dv.([]any)
	sl, sIsList := sv.([]any)
	switch {
	case dIsList && sIsList:
		if key := elementKey(parent, name, dl); key != "" {
			return mergeKeyed(parent, name, path, key, dl, sl)
		}
		return mergePositional(parent, name, path, dl, sl)
	case dIsList || sIsList:
		return nil, &Error{Path: path, Err: fmt.Errorf("%w: cannot merge %s onto %s", ErrTypeMismatch, shape(sv), shape(dv))}
	}

	return model.CloneValue(sv), nil
}

func elementKey(parent Node, name string, base []any) string {
	for _, e := range base {
		if n, ok := AsNode(e); ok {
			return n.MergeKey()
		}
	}
	if parent == nil {
		return ""
	}
	return parent.New(name).MergeKey()
}

func mergeKeyed(parent Node, name, path, key string, base, over []any) ([]any, error) {
	index := make(map[string]Node, len(base))
	for _, e := range base {
		n, ok := AsNode(e)
		if !ok {
			return nil, &Error{Path: path, Err: fmt.Errorf("%w: list element %s is not a record", ErrTypeMismatch, shape(e))}
		}
		k, ok := keyOf(n, key)
		if !ok {
			continue
		}
		if _, dup := index[k]; dup {
			return nil, &Error{Path: fmt.Sprintf("%s[%s=%q]", path, key, k), Err: ErrAmbiguousMergeKey}
		}
		index[k] = n
	}

	out := base
	for _, e := range over {
		sn, ok := AsNode(e)
		if !ok {
			return nil, &Error{Path: path, Err: fmt.Errorf("%w: overwrite element %s is not a record", ErrTypeMismatch, shape(e))}
		}
		k, hasKey := keyOf(sn, key)
		if hasKey {
			if dn, found := index[k]; found {
				if err := mergeNode(dn, sn, fmt.Sprintf("%s[%s=%q]", path, key, k)); err != nil {
					return nil, err
				}
				continue
			}
		}
		added, err := materialize(parent, name, path, sn)
		if err != nil {
			return nil, err
		}
		out = append(out, added)
		if hasKey {
			if an, ok := AsNode(added); ok {
				index[k] = an
			}
		}
	}
	return out, nil
}

func mergePositional(parent Node, name, path string, base, over []any) ([]any, error) {
	n := min(len(base), len(over))
	for i := 0; i < n; i++ {
		v, err := mergeValue(parent, name, path+"["+strconv.Itoa(i)+"]", base[i], over[i])
		if err != nil {
			return nil, err
		}
		base[i] = v
	}
	for _, e := range over[n:] {
		v, err := materialize(parent, name, path, e)
		if err != nil {
			return nil, err
		}
		base = append(base, v)
	}
	return base, nil
}

// materialize produces a value owned by the base side: records are rebuilt
// through the parent's constructor so a bag overwrite becomes a typed record
// where the base expects one.
func materialize(parent Node, name, path string, v any) (any, error) {
	if src, ok := AsNode(v); ok {
		var dst Node = BagNode{Bag: model.NewBag()}
		if parent != nil {
			dst = parent.New(name)
		}
		if err := copyNode(dst, src, path); err != nil {
			return nil, err
		}
		return dst, nil
	}
	if list, ok := v.([]any); ok {
		out := make([]any, len(list))
		for i, e := range list {
			m, err := materialize(parent, name, path+"["+strconv.Itoa(i)+"]", e)
			if err != nil {
				return nil, err
			}
			out[i] = m
		}
		return out, nil
	}
	return model.CloneValue(v), nil
}

// copyNode copies every present field regardless of policy, including the
// merge key.
func copyNode(dst, src Node, path string) error {
	for _, name := range src.Keys() {
		v, _ := src.Get(name)
		fieldPath := join(path, name)
		m, err := materialize(dst, name, fieldPath, v)
		if err != nil {
			return err
		}
		if err := set(dst, name, fieldPath, m); err != nil {
			return err
		}
	}
	return nil
}

func keyOf(n Node, key string) (string, bool) {
	v, ok := n.Get(key)
	if !ok || isNil(v) {
		return "", false
	}
	return fmt.Sprint(v), true
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	if b, ok := v.(*model.Bag); ok && b == nil {
		return true
	}
	return false
}

func isDefault(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case int:
		return t == 0
	case int64:
		return t == 0
	case float64:
		return t == 0
	case []any:
		return len(t) == 0
	case *model.Bag:
		return t.Len() == 0
	}
	if n, ok := AsNode(v); ok {
		return len(n.Keys()) == 0
	}
	return false
}

func shape(v any) string {
	if _, ok := AsNode(v); ok {
		return "record"
	}
	if _, ok := v.([]any); ok {
		return "list"
	}
	return fmt.Sprintf("scalar %T", v)
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "/" + name
}
