package frontmatter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		present bool
		raw     string
		body    string
		newline string
	}{
		{name: "no front matter", input: "# Title\n\nHello\n", body: "# Title\n\nHello\n", newline: "\n"},
		{name: "yaml block", input: "---\nkey: value\n---\n# Title\n", present: true, raw: "key: value\n", body: "# Title\n", newline: "\n"},
		{name: "empty block", input: "---\n---\nbody\n", present: true, body: "body\n", newline: "\n"},
		{name: "closed at eof", input: "---\nkey: value\n---", present: true, raw: "key: value\n", newline: "\n"},
		{name: "crlf", input: "---\r\nkey: value\r\n---\r\nbody\r\n", present: true, raw: "key: value\r\n", body: "body\r\n", newline: "\r\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Parse([]byte(tc.input))
			require.NoError(t, err)
			require.Equal(t, tc.present, p.Present)
			require.Equal(t, tc.raw, string(p.Raw))
			require.Equal(t, tc.body, string(p.Body))
			require.Equal(t, tc.newline, p.Style.Newline)
			if tc.raw != "" {
				require.Equal(t, "value", p.Fields.GetString("key"))
			}
		})
	}
}

func TestParse_MissingClosingDelimiter(t *testing.T) {
	_, err := Parse([]byte("---\nkey: value\n# Title\n"))
	require.True(t, errors.Is(err, ErrMissingClosingDelimiter))
}

func TestParse_KeyLine(t *testing.T) {
	p, err := Parse([]byte("---\ntitle: T\nuid: intro\n---\nbody\n"))
	require.NoError(t, err)
	require.Equal(t, 3, p.KeyLine("uid"))
	require.Equal(t, 0, p.KeyLine("missing"))

	bare, err := Parse([]byte("uid: not metadata\n"))
	require.NoError(t, err)
	require.Equal(t, 0, bare.KeyLine("uid"))
}

func TestParseYAML_PreservesOrder(t *testing.T) {
	bag, err := ParseYAML([]byte("uid: a\ntitle: A\nauthor: me\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"uid", "title", "author"}, bag.Keys())

	empty, err := ParseYAML(nil)
	require.NoError(t, err)
	require.Equal(t, 0, empty.Len())

	_, err = ParseYAML([]byte("- not\n- a map\n"))
	require.Error(t, err)
}

func TestSplitBlocks(t *testing.T) {
	input := []byte("intro\n---\nuid: A\n---\nA body\n\n---\n\nstill A\n---\nuid: B\nsummary: x\n---\nB body\n")

	pre, blocks := SplitBlocks(input, "uid")
	require.Equal(t, "intro\n", string(pre))
	require.Len(t, blocks, 2)

	require.Equal(t, "uid: A\n", string(blocks[0].Metadata))
	require.Equal(t, "A body\n\n---\n\nstill A\n", string(blocks[0].Body), "thematic break without uid stays in the body")
	require.Equal(t, 2, blocks[0].Line)
	require.Equal(t, 5, blocks[0].BodyLine)

	require.Equal(t, "uid: B\nsummary: x\n", string(blocks[1].Metadata))
	require.Equal(t, "B body\n", string(blocks[1].Body))
	require.Equal(t, 10, blocks[1].Line)
}

func TestSplitBlocks_NoBlocks(t *testing.T) {
	pre, blocks := SplitBlocks([]byte("just text\n"), "uid")
	require.Equal(t, "just text\n", string(pre))
	require.Empty(t, blocks)
}
