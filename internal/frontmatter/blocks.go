package frontmatter

import (
	"bytes"
	"strings"
)

// Block is one metadata section of a multi-block document together with the
// Markdown that follows it.
type Block struct {
	Metadata []byte
	Body     []byte
	// Line is the 1-based line of the opening delimiter.
	Line int
	// BodyLine is the 1-based line where Body starts.
	BodyLine int
}

// SplitBlocks cuts content into metadata blocks. A block opens with a `---`
// line whose section up to the next `---` line contains a top-level key
// named requiredKey; any other `---` line is ordinary Markdown. Text before
// the first block is returned as preamble.
func SplitBlocks(content []byte, requiredKey string) (preamble []byte, blocks []Block) {
	lines := splitLines(content)
	isDelim := func(i int) bool { return strings.TrimRight(string(lines[i]), "\r\n") == "---" }
	opens := func(i int) (end int, ok bool) {
		if !isDelim(i) {
			return 0, false
		}
		for j := i + 1; j < len(lines); j++ {
			if isDelim(j) {
				return j, hasTopLevelKey(lines[i+1:j], requiredKey)
			}
		}
		return 0, false
	}

	var cur *Block
	var body bytes.Buffer
	flush := func() {
		if cur == nil {
			preamble = append([]byte(nil), body.Bytes()...)
		} else {
			cur.Body = append([]byte(nil), body.Bytes()...)
			blocks = append(blocks, *cur)
		}
		body.Reset()
	}

	for i := 0; i < len(lines); i++ {
		if end, ok := opens(i); ok {
			flush()
			cur = &Block{Metadata: bytes.Join(lines[i+1:end], nil), Line: i + 1, BodyLine: end + 2}
			i = end
			continue
		}
		body.Write(lines[i])
	}
	flush()
	return preamble, blocks
}

func splitLines(content []byte) [][]byte {
	var lines [][]byte
	for len(content) > 0 {
		i := bytes.IndexByte(content, '\n')
		if i < 0 {
			lines = append(lines, content)
			break
		}
		lines = append(lines, content[:i+1])
		content = content[i+1:]
	}
	return lines
}

func hasTopLevelKey(lines [][]byte, key string) bool {
	for _, l := range lines {
		s := string(l)
		if strings.HasPrefix(s, key+":") {
			return true
		}
	}
	return false
}
