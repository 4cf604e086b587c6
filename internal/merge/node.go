package merge

import "git.home.luguber.info/inful/docweave/internal/model"

// Node is the uniform view the merger uses for typed records and bags.
type Node interface {
	// Keys lists fields that currently hold a value, in a stable order.
	Keys() []string
	Get(name string) (any, bool)
	Set(name string, value any) error
	Policy(name string) Policy
	// New returns an empty record for field name, or for one element of
	// the list stored in field name.
	New(name string) Node
	// MergeKey names the field that identifies this record inside a list.
	MergeKey() string
}

// Mergeable is implemented by typed models that expose a Node view of themselves.
type Mergeable interface {
	MergeNode() Node
}

// AsNode returns the Node view of v, if it has one.
func AsNode(v any) (Node, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case Node:
		return t, true
	case Mergeable:
		return t.MergeNode(), true
	case *model.Bag:
		if t == nil {
			return nil, false
		}
		return BagNode{Bag: t}, true
	}
	return nil, false
}

// Unwrap returns the concrete value behind a Node view.
func Unwrap(v any) any {
	switch t := v.(type) {
	case BagNode:
		return t.Bag
	case interface{ Value() any }:
		return t.Value()
	}
	return v
}

// BagNode adapts a model.Bag. Every field uses the Merge policy and nested
// records are bags.
type BagNode struct {
	Bag *model.Bag
}

func (b BagNode) Keys() []string              { return b.Bag.Keys() }
func (b BagNode) Get(name string) (any, bool) { return b.Bag.Get(name) }
func (b BagNode) Policy(string) Policy        { return Merge }
func (b BagNode) New(string) Node             { return BagNode{Bag: model.NewBag()} }
func (b BagNode) MergeKey() string            { return "" }
func (b BagNode) Value() any                  { return b.Bag }

func (b BagNode) Set(name string, value any) error {
	b.Bag.Set(name, unwrapDeep(value))
	return nil
}

func unwrapDeep(v any) any {
	switch t := v.(type) {
	case []any:
		for i := range t {
			t[i] = unwrapDeep(t[i])
		}
		return t
	default:
		return Unwrap(v)
	}
}
