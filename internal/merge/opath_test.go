package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docweave/internal/model"
)

func TestParseOPath(t *testing.T) {
	segs, err := ParseOPath(`syntax/params[id="a/b"]/examples[2]/text`)
	require.NoError(t, err)
	require.Len(t, segs, 4)
	assert.Equal(t, Segment{Name: "syntax", Index: -1}, segs[0])
	assert.Equal(t, Segment{Name: "params", Key: "id", Value: "a/b", Index: -1}, segs[1])
	assert.Equal(t, Segment{Name: "examples", Index: 2}, segs[2])
	assert.Equal(t, "text", segs[3].Name)
	assert.Equal(t, `params[id="a/b"]`, segs[1].String())
}

func TestParseOPathErrors(t *testing.T) {
	for _, p := range []string{"", "a//b", "a[", "a[x]", `a[k="v"`, `a[="v"]`, "a[-1]", "a]b"} {
		_, err := ParseOPath(p)
		assert.ErrorIs(t, err, ErrInvalidOPath, "path %q", p)
	}
}

func TestApplyOPathBuildsStructure(t *testing.T) {
	target := model.NewBag()
	require.NoError(t, ApplyOPath(target, "summary", "text"))
	require.NoError(t, ApplyOPath(target, `params[id="a"]/description`, "first"))
	require.NoError(t, ApplyOPath(target, `params[id="a"]/type`, "int"))
	require.NoError(t, ApplyOPath(target, `params[id="b"]`, bag("type", "bool")))
	require.NoError(t, ApplyOPath(target, "example[1]", "second"))

	assert.Equal(t, "text", target.GetString("summary"))
	params, _ := target.Get("params")
	list := params.([]any)
	require.Len(t, list, 2)
	a := list[0].(*model.Bag)
	assert.Equal(t, []string{"id", "description", "type"}, a.Keys())
	b := list[1].(*model.Bag)
	assert.Equal(t, "bool", b.GetString("type"))

	ex, _ := target.Get("example")
	assert.Len(t, ex, 2)

	assert.ErrorIs(t, ApplyOPath(target, "summary/deeper", 1), ErrInvalidOPath)
}

func TestApplyOPathThenMerge(t *testing.T) {
	frag := model.NewBag()
	require.NoError(t, ApplyOPath(frag, `params[id="b"]/description`, "from overwrite"))
	base := newTestItem()
	_, err := Values(base, frag)
	require.NoError(t, err)
	assert.Equal(t, "from overwrite", base.Params[1].Description)
}

func TestValidateOPath(t *testing.T) {
	r := NewRegistry()
	r.Register(testItemSchema, testParamSchema)

	assert.NoError(t, r.ValidateOPath("item", `params[id="a"]/description`))
	assert.NoError(t, r.ValidateOPath("item", "anything/goes"), "item accepts extra fields")
	assert.ErrorIs(t, r.ValidateOPath("item", "params/bogus"), ErrUnknownField)
	assert.NoError(t, r.ValidateOPath("item", "internal"), "ignored fields are accepted and dropped on merge")
}

func TestIgnoredOPathDroppedBesideSiblings(t *testing.T) {
	r := NewRegistry()
	r.Register(testItemSchema, testParamSchema)

	frag := model.NewBag()
	for path, v := range map[string]any{"internal": "from overwrite", "summary": "new summary"} {
		require.NoError(t, r.ValidateOPath("item", path))
		require.NoError(t, ApplyOPath(frag, path, v))
	}
	base := newTestItem()
	before := base.Internal
	require.NoError(t, Into(testItemSchema.Bind(base), frag))
	assert.Equal(t, before, base.Internal)
	assert.Equal(t, "new summary", base.Summary)
}
