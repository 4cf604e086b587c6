package reference

import (
	"git.home.luguber.info/inful/docweave/internal/merge"
	"git.home.luguber.info/inful/docweave/internal/model"
)

// Parameter documents one parameter or a return value.
type Parameter struct {
	ID          string
	Type        string
	Description string
}

// Syntax is the declaration of an item.
type Syntax struct {
	Content    string
	Parameters []*Parameter
	Return     *Parameter
}

// Item is one API entity. The first item of a page is the page itself; the
// others are its members.
type Item struct {
	UID          string
	ID           string
	Parent       string
	Children     []string
	Name         string
	FullName     string
	NameWithType string
	CommentID    string
	Type         string
	Summary      string
	Remarks      string
	Conceptual   string
	Example      []string
	Syntax       *Syntax
	Extra        *model.Bag
}

// Page is the content of a reference document.
type Page struct {
	Items []*Item
	// Extra keeps top-level keys other than items, such as references.
	Extra    *model.Bag
	HTML     []byte
	Dangling []string
}

var parameterSchema = merge.NewSchema("parameter",
	merge.Field[Parameter]{Name: "id", Policy: merge.MergeKey,
		Get: func(p *Parameter) (any, bool) { return p.ID, p.ID != "" },
		Set: func(p *Parameter, v any) (err error) { p.ID, err = merge.StringOf(v); return }},
	merge.Field[Parameter]{Name: "type", Policy: merge.Ignore,
		Get: func(p *Parameter) (any, bool) { return p.Type, p.Type != "" },
		Set: func(p *Parameter, v any) (err error) { p.Type, err = merge.StringOf(v); return }},
	merge.Field[Parameter]{Name: "description", Policy: merge.Merge,
		Get: func(p *Parameter) (any, bool) { return p.Description, p.Description != "" },
		Set: func(p *Parameter, v any) (err error) { p.Description, err = merge.StringOf(v); return }},
)

func newParameter() merge.Node { return parameterSchema.Bind(&Parameter{}) }

var syntaxSchema = merge.NewSchema("syntax",
	merge.Field[Syntax]{Name: "content", Policy: merge.Replace,
		Get: func(s *Syntax) (any, bool) { return s.Content, s.Content != "" },
		Set: func(s *Syntax, v any) (err error) { s.Content, err = merge.StringOf(v); return }},
	merge.Field[Syntax]{Name: "parameters", Policy: merge.Merge, Schema: "parameter", New: newParameter,
		Get: func(s *Syntax) (any, bool) { return merge.Nodes(parameterSchema, s.Parameters), s.Parameters != nil },
		Set: func(s *Syntax, v any) (err error) { s.Parameters, err = merge.ListOf[Parameter](v); return }},
	merge.Field[Syntax]{Name: "return", Policy: merge.Merge, Schema: "parameter", New: newParameter,
		Get: func(s *Syntax) (any, bool) {
			if s.Return == nil {
				return nil, false
			}
			return parameterSchema.Bind(s.Return), true
		},
		Set: func(s *Syntax, v any) (err error) { s.Return, err = merge.RecordOf[Parameter](v); return }},
)

func stringField(name string, policy merge.Policy, field func(*Item) *string) merge.Field[Item] {
	return merge.Field[Item]{Name: name, Policy: policy,
		Get: func(i *Item) (any, bool) { v := *field(i); return v, v != "" },
		Set: func(i *Item, v any) (err error) { *field(i), err = merge.StringOf(v); return }}
}

var itemSchema = merge.NewSchema("item",
	stringField("uid", merge.MergeKey, func(i *Item) *string { return &i.UID }),
	stringField("id", merge.Ignore, func(i *Item) *string { return &i.ID }),
	stringField("parent", merge.Ignore, func(i *Item) *string { return &i.Parent }),
	merge.Field[Item]{Name: "children", Policy: merge.Ignore,
		Get: func(i *Item) (any, bool) { return merge.Strings(i.Children), i.Children != nil },
		Set: func(i *Item, v any) (err error) { i.Children, err = merge.StringsOf(v); return }},
	stringField("name", merge.Replace, func(i *Item) *string { return &i.Name }),
	stringField("fullName", merge.Replace, func(i *Item) *string { return &i.FullName }),
	stringField("nameWithType", merge.Replace, func(i *Item) *string { return &i.NameWithType }),
	stringField("commentId", merge.Ignore, func(i *Item) *string { return &i.CommentID }),
	stringField("type", merge.Ignore, func(i *Item) *string { return &i.Type }),
	stringField("summary", merge.ReplaceNullOrDefault, func(i *Item) *string { return &i.Summary }),
	stringField("remarks", merge.ReplaceNullOrDefault, func(i *Item) *string { return &i.Remarks }),
	stringField("conceptual", merge.ReplaceNullOrDefault, func(i *Item) *string { return &i.Conceptual }),
	merge.Field[Item]{Name: "example", Policy: merge.Replace,
		Get: func(i *Item) (any, bool) { return merge.Strings(i.Example), i.Example != nil },
		Set: func(i *Item, v any) (err error) { i.Example, err = merge.StringsOf(v); return }},
	merge.Field[Item]{Name: "syntax", Policy: merge.Merge, Schema: "syntax",
		New: func() merge.Node { return syntaxSchema.Bind(&Syntax{}) },
		Get: func(i *Item) (any, bool) {
			if i.Syntax == nil {
				return nil, false
			}
			return syntaxSchema.Bind(i.Syntax), true
		},
		Set: func(i *Item, v any) (err error) { i.Syntax, err = merge.RecordOf[Syntax](v); return }},
).WithExtra(func(i *Item) *model.Bag {
	if i.Extra == nil {
		i.Extra = model.NewBag()
	}
	return i.Extra
})

// MergeNode exposes the item to the merge engine.
func (i *Item) MergeNode() merge.Node { return itemSchema.Bind(i) }

// Schemas returns the registry describing reference items.
func Schemas() *merge.Registry {
	r := merge.NewRegistry()
	r.Register(itemSchema, syntaxSchema, parameterSchema)
	return r
}

// clone deep-copies an item through its schema.
func (i *Item) clone() (*Item, error) {
	out := &Item{}
	if err := merge.Decode(out.MergeNode(), i.MergeNode()); err != nil {
		return nil, err
	}
	return out, nil
}

// itemFromBag converts a decoded YAML record.
func itemFromBag(b *model.Bag) (*Item, error) {
	it := &Item{}
	if err := merge.Decode(it.MergeNode(), b); err != nil {
		return nil, err
	}
	return it, nil
}
