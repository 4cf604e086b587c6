package merge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docweave/internal/model"
)

func TestMergeBagOntoTypedModel(t *testing.T) {
	base := newTestItem()
	over := bag(
		"uid", "Other",
		"name", "Renamed",
		"summary", "authored",
		"remarks", "",
		"internal", "changed",
		"params", []any{
			bag("id", "b", "description", "the b"),
			bag("id", "c", "type", "bool"),
		},
		"syntax", bag("type", "func()"),
		"custom", bag("note", "x"),
	)

	got, err := Values(base, over)
	require.NoError(t, err)
	assert.Same(t, base, got)

	assert.Equal(t, "Foo.Bar", base.UID, "merge key is never overwritten")
	assert.Equal(t, "Renamed", base.Name)
	assert.Equal(t, "authored", base.Summary)
	assert.Equal(t, "generated remarks", base.Remarks, "empty overwrite skipped")
	assert.Equal(t, "keep", base.Internal, "ignored field untouched")

	require.Len(t, base.Params, 3)
	assert.Equal(t, &testParam{ID: "a", Type: "int"}, base.Params[0])
	assert.Equal(t, &testParam{ID: "b", Type: "string", Description: "the b"}, base.Params[1])
	assert.Equal(t, &testParam{ID: "c", Type: "bool"}, base.Params[2])

	require.NotNil(t, base.Syntax)
	assert.Equal(t, "func()", base.Syntax.Type)

	custom, ok := base.Extra.Get("custom")
	require.True(t, ok)
	assert.Equal(t, "x", custom.(*model.Bag).GetString("note"))
}

func TestMergeIsIdempotent(t *testing.T) {
	over := bag(
		"summary", "authored",
		"example", []any{"one", "two"},
		"params", []any{bag("id", "a", "description", "first"), bag("id", "z", "type", "new")},
		"custom", bag("list", []any{1, 2, 3}),
	)

	once := newTestItem()
	_, err := Values(once, over)
	require.NoError(t, err)

	twice := newTestItem()
	_, err = Values(twice, over)
	require.NoError(t, err)
	_, err = Values(twice, over)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestMergeDoesNotAliasOverwrite(t *testing.T) {
	nested := bag("k", "v")
	over := bag("custom", nested)
	base := newTestItem()
	_, err := Values(base, over)
	require.NoError(t, err)

	nested.Set("k", "changed")
	v, _ := base.Extra.Get("custom")
	assert.Equal(t, "v", v.(*model.Bag).GetString("k"))
}

func TestMergeAmbiguousKey(t *testing.T) {
	base := newTestItem()
	base.Params = append(base.Params, &testParam{ID: "a", Type: "dup"})

	_, err := Values(base, bag("params", []any{bag("id", "a", "description", "x")}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAmbiguousMergeKey))
	var me *Error
	require.ErrorAs(t, err, &me)
	assert.Equal(t, `params[id="a"]`, me.Path)
}

func TestMergeTypeMismatch(t *testing.T) {
	cases := map[string]*model.Bag{
		"scalar onto record": bag("syntax", "oops"),
		"record onto list":   bag("params", bag("id", "a")),
		"record into scalar": bag("summary", bag("x", 1)),
	}
	for name, over := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Values(newTestItem(), over)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrTypeMismatch)
		})
	}
}

func TestMergeDynamicArraysPositionally(t *testing.T) {
	base := bag("list", []any{bag("a", 1), "keep", "tail"})
	over := bag("list", []any{bag("b", 2), "replaced"})
	_, err := Values(base, over)
	require.NoError(t, err)

	list, _ := base.Get("list")
	items := list.([]any)
	require.Len(t, items, 3)
	first := items[0].(*model.Bag)
	assert.Equal(t, []string{"a", "b"}, first.Keys())
	assert.Equal(t, "replaced", items[1])
	assert.Equal(t, "tail", items[2])

	longer := bag("list", []any{bag("c", 3), "x", "y", "z"})
	_, err = Values(base, longer)
	require.NoError(t, err)
	list, _ = base.Get("list")
	assert.Len(t, list, 4)
}

func TestMergeNullOrDefaultPolicies(t *testing.T) {
	s := NewSchema("flags",
		Field[testParam]{Name: "type", Policy: MergeNullOrDefault,
			Get: func(p *testParam) (any, bool) { return p.Type, true },
			Set: func(p *testParam, v any) (err error) { p.Type, err = StringOf(v); return }},
		Field[testParam]{Name: "description", Policy: Replace,
			Get: func(p *testParam) (any, bool) { return p.Description, true },
			Set: func(p *testParam, v any) (err error) { p.Description, err = StringOf(v); return }},
	)
	p := &testParam{Type: "int", Description: "text"}
	require.NoError(t, Into(s.Bind(p), bag("type", "", "description", nil)))
	assert.Equal(t, "int", p.Type)
	assert.Equal(t, "", p.Description, "replace applies explicit null")
}

func TestMergeIntoClosedSchemaRejectsUnknownField(t *testing.T) {
	err := Into(testParamSchema.Bind(&testParam{}), bag("bogus", 1))
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestRegistryPolicies(t *testing.T) {
	r := NewRegistry()
	r.Register(testItemSchema, testParamSchema)
	pol := r.Policies("item")
	assert.Equal(t, MergeKey, pol["uid"])
	assert.Equal(t, Ignore, pol["internal"])
	assert.Nil(t, r.Policies("missing"))
	assert.Panics(t, func() { r.Register(testItemSchema) })
}

func TestDecodeBagIntoRecordAndBack(t *testing.T) {
	src := model.NewBag()
	src.Set("uid", "Foo.Bar")
	src.Set("internal", "kept")
	src.Set("example", []any{"one", "two"})
	param := model.NewBag()
	param.Set("id", "x")
	param.Set("type", "int")
	src.Set("params", []any{param})
	src.Set("custom", "extra value")

	item := &testItem{}
	require.NoError(t, Decode(item.MergeNode(), src))
	require.Equal(t, "Foo.Bar", item.UID)
	require.Equal(t, "kept", item.Internal)
	require.Equal(t, []string{"one", "two"}, item.Example)
	require.Len(t, item.Params, 1)
	require.Equal(t, "int", item.Params[0].Type)
	require.Equal(t, "extra value", item.Extra.GetString("custom"))

	back := model.NewBag()
	require.NoError(t, Decode(BagNode{Bag: back}, item.MergeNode()))
	require.Equal(t, "Foo.Bar", back.GetString("uid"))
	params, _ := back.Get("params")
	require.IsType(t, []any{}, params)
	require.IsType(t, &model.Bag{}, params.([]any)[0])

	require.Error(t, Decode(item.MergeNode(), "scalar"))
	require.NoError(t, Decode(item.MergeNode(), nil))
}
