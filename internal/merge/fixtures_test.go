package merge

import "git.home.luguber.info/inful/docweave/internal/model"

type testParam struct {
	ID          string
	Type        string
	Description string
}

type testItem struct {
	UID      string
	Name     string
	Summary  string
	Remarks  string
	Internal string
	Example  []string
	Params   []*testParam
	Syntax   *testParam
	Extra    *model.Bag
}

var testParamSchema = NewSchema("param",
	Field[testParam]{Name: "id", Policy: MergeKey,
		Get: func(p *testParam) (any, bool) { return p.ID, p.ID != "" },
		Set: func(p *testParam, v any) (err error) { p.ID, err = StringOf(v); return }},
	Field[testParam]{Name: "type", Policy: Merge,
		Get: func(p *testParam) (any, bool) { return p.Type, p.Type != "" },
		Set: func(p *testParam, v any) (err error) { p.Type, err = StringOf(v); return }},
	Field[testParam]{Name: "description", Policy: Merge,
		Get: func(p *testParam) (any, bool) { return p.Description, p.Description != "" },
		Set: func(p *testParam, v any) (err error) { p.Description, err = StringOf(v); return }},
)

var testItemSchema = NewSchema("item",
	Field[testItem]{Name: "uid", Policy: MergeKey,
		Get: func(i *testItem) (any, bool) { return i.UID, i.UID != "" },
		Set: func(i *testItem, v any) (err error) { i.UID, err = StringOf(v); return }},
	Field[testItem]{Name: "name", Policy: Replace,
		Get: func(i *testItem) (any, bool) { return i.Name, i.Name != "" },
		Set: func(i *testItem, v any) (err error) { i.Name, err = StringOf(v); return }},
	Field[testItem]{Name: "summary", Policy: Merge,
		Get: func(i *testItem) (any, bool) { return i.Summary, i.Summary != "" },
		Set: func(i *testItem, v any) (err error) { i.Summary, err = StringOf(v); return }},
	Field[testItem]{Name: "remarks", Policy: ReplaceNullOrDefault,
		Get: func(i *testItem) (any, bool) { return i.Remarks, true },
		Set: func(i *testItem, v any) (err error) { i.Remarks, err = StringOf(v); return }},
	Field[testItem]{Name: "internal", Policy: Ignore,
		Get: func(i *testItem) (any, bool) { return i.Internal, i.Internal != "" },
		Set: func(i *testItem, v any) (err error) { i.Internal, err = StringOf(v); return }},
	Field[testItem]{Name: "example", Policy: Replace,
		Get: func(i *testItem) (any, bool) { return Strings(i.Example), i.Example != nil },
		Set: func(i *testItem, v any) (err error) { i.Example, err = StringsOf(v); return }},
	Field[testItem]{Name: "params", Policy: Merge, Schema: "param",
		Get: func(i *testItem) (any, bool) { return Nodes(testParamSchema, i.Params), i.Params != nil },
		Set: func(i *testItem, v any) (err error) { i.Params, err = ListOf[testParam](v); return },
		New: func() Node { return testParamSchema.Bind(&testParam{}) }},
	Field[testItem]{Name: "syntax", Policy: Merge, Schema: "param",
		Get: func(i *testItem) (any, bool) {
			if i.Syntax == nil {
				return nil, false
			}
			return testParamSchema.Bind(i.Syntax), true
		},
		Set: func(i *testItem, v any) (err error) { i.Syntax, err = RecordOf[testParam](v); return },
		New: func() Node { return testParamSchema.Bind(&testParam{}) }},
).WithExtra(func(i *testItem) *model.Bag {
	if i.Extra == nil {
		i.Extra = model.NewBag()
	}
	return i.Extra
})

func (i *testItem) MergeNode() Node { return testItemSchema.Bind(i) }

func newTestItem() *testItem {
	return &testItem{
		UID:      "Foo.Bar",
		Name:     "Bar",
		Summary:  "generated",
		Remarks:  "generated remarks",
		Internal: "keep",
		Params: []*testParam{
			{ID: "a", Type: "int"},
			{ID: "b", Type: "string"},
		},
	}
}

func bag(kv ...any) *model.Bag {
	b := model.NewBag()
	for i := 0; i+1 < len(kv); i += 2 {
		b.Set(kv[i].(string), kv[i+1])
	}
	return b
}
