package merge

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/docweave/internal/model"
)

// ErrInvalidOPath reports a malformed OPath expression.
var ErrInvalidOPath = errors.New("invalid opath")

// Segment is one step of an OPath.
type Segment struct {
	Name string
	// Key and Value select a list element by field equality.
	Key   string
	Value string
	// Index selects a list element by position; -1 when unused.
	Index int
}

func (s Segment) String() string {
	switch {
	case s.Key != "":
		return fmt.Sprintf("%s[%s=%q]", s.Name, s.Key, s.Value)
	case s.Index >= 0:
		return fmt.Sprintf("%s[%d]", s.Name, s.Index)
	default:
		return s.Name
	}
}

// ParseOPath parses `name`, `name[key="value"]` and `name[index]` segments
// separated by '/'.
func ParseOPath(path string) ([]Segment, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidOPath)
	}
	var segs []Segment
	p := &opathParser{src: path}
	for {
		seg, err := p.segment()
		if err != nil {
			return nil, err
		}
		segs = append(segs, seg)
		if p.done() {
			return segs, nil
		}
		if p.next() != '/' {
			return nil, p.errorf("expected '/'")
		}
	}
}

type opathParser struct {
	src string
	pos int
}

func (p *opathParser) done() bool { return p.pos >= len(p.src) }

func (p *opathParser) peek() byte {
	if p.done() {
		return 0
	}
	return p.src[p.pos]
}

func (p *opathParser) next() byte {
	c := p.peek()
	p.pos++
	return c
}

func (p *opathParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s at offset %d in %q", ErrInvalidOPath, fmt.Sprintf(format, args...), p.pos, p.src)
}

func (p *opathParser) ident() string {
	start := p.pos
	for !p.done() {
		c := p.peek()
		if c == '/' || c == '[' || c == ']' || c == '=' || c == '"' {
			break
		}
		p.pos++
	}
	return strings.TrimSpace(p.src[start:p.pos])
}

func (p *opathParser) segment() (Segment, error) {
	seg := Segment{Index: -1}
	seg.Name = p.ident()
	if seg.Name == "" {
		return seg, p.errorf("missing property name")
	}
	if p.peek() != '[' {
		return seg, nil
	}
	p.next()
	inner := p.ident()
	switch p.peek() {
	case ']':
		p.next()
		idx, err := strconv.Atoi(inner)
		if err != nil || idx < 0 {
			return seg, p.errorf("invalid index %q", inner)
		}
		seg.Index = idx
		return seg, nil
	case '=':
		p.next()
		if inner == "" {
			return seg, p.errorf("missing key name")
		}
		seg.Key = inner
		val, err := p.quoted()
		if err != nil {
			return seg, err
		}
		seg.Value = val
		if p.next() != ']' {
			return seg, p.errorf("expected ']'")
		}
		return seg, nil
	}
	return seg, p.errorf("unterminated selector")
}

func (p *opathParser) quoted() (string, error) {
	if p.next() != '"' {
		return "", p.errorf("expected '\"'")
	}
	var b strings.Builder
	for !p.done() {
		c := p.next()
		switch c {
		case '\\':
			if p.done() {
				return "", p.errorf("dangling escape")
			}
			b.WriteByte(p.next())
		case '"':
			return b.String(), nil
		default:
			b.WriteByte(c)
		}
	}
	return "", p.errorf("unterminated string")
}

// ApplyOPath stores value at path inside target, creating intermediate bags
// and list elements as needed. Keyed selectors create an element carrying
// the key when no element matches.
func ApplyOPath(target *model.Bag, path string, value any) error {
	segs, err := ParseOPath(path)
	if err != nil {
		return err
	}
	cur := target
	for i, seg := range segs {
		last := i == len(segs)-1
		if seg.Key == "" && seg.Index < 0 {
			if last {
				cur.Set(seg.Name, value)
				return nil
			}
			child, err := childBag(cur, seg.Name)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidOPath, seg, err)
			}
			cur = child
			continue
		}
		elem, err := selectElement(cur, seg, last, value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidOPath, seg, err)
		}
		if last {
			return nil
		}
		cur = elem
	}
	return nil
}

func childBag(b *model.Bag, name string) (*model.Bag, error) {
	v, ok := b.Get(name)
	if !ok || v == nil {
		child := model.NewBag()
		b.Set(name, child)
		return child, nil
	}
	child, ok := v.(*model.Bag)
	if !ok {
		return nil, fmt.Errorf("%s holds %T, not a record", name, v)
	}
	return child, nil
}

func selectElement(b *model.Bag, seg Segment, last bool, value any) (*model.Bag, error) {
	var list []any
	if v, ok := b.Get(seg.Name); ok && v != nil {
		l, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%s holds %T, not a list", seg.Name, v)
		}
		list = l
	}

	pos := -1
	if seg.Key != "" {
		for i, e := range list {
			eb, ok := e.(*model.Bag)
			if !ok {
				continue
			}
			if v, has := eb.Get(seg.Key); has && fmt.Sprint(v) == seg.Value {
				pos = i
				break
			}
		}
		if pos < 0 {
			nb := model.NewBag()
			nb.Set(seg.Key, seg.Value)
			list = append(list, nb)
			pos = len(list) - 1
		}
	} else {
		for len(list) <= seg.Index {
			list = append(list, model.NewBag())
		}
		pos = seg.Index
	}

	if last {
		if seg.Key != "" {
			vb, ok := value.(*model.Bag)
			if !ok {
				return nil, fmt.Errorf("keyed element value must be a record, got %T", value)
			}
			eb, ok := list[pos].(*model.Bag)
			if !ok {
				return nil, fmt.Errorf("element is %T, not a record", list[pos])
			}
			for _, k := range vb.Keys() {
				v, _ := vb.Get(k)
				eb.Set(k, v)
			}
			eb.Set(seg.Key, seg.Value)
		} else {
			list[pos] = value
		}
		b.Set(seg.Name, list)
		return nil, nil
	}

	b.Set(seg.Name, list)
	eb, ok := list[pos].(*model.Bag)
	if !ok {
		return nil, fmt.Errorf("element is %T, not a record", list[pos])
	}
	return eb, nil
}

// ValidateOPath checks that every segment names a field the schema chain
// declares, starting at the registered schema root. Schemas that accept
// extra fields end the check successfully at the first undeclared name.
// Paths into Ignore fields are valid; merging drops their values.
func (r *Registry) ValidateOPath(root, path string) error {
	segs, err := ParseOPath(path)
	if err != nil {
		return err
	}
	name := root
	for _, seg := range segs {
		s, ok := r.Lookup(name)
		if !ok {
			return nil
		}
		if !slices.Contains(s.Fields(), seg.Name) {
			if s.AllowsExtra() {
				return nil
			}
			return fmt.Errorf("%w: %s has no field %q", ErrUnknownField, s.Name(), seg.Name)
		}
		child, ok := s.Child(seg.Name)
		if !ok {
			return nil
		}
		name = child
	}
	return nil
}
