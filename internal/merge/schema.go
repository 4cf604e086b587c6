package merge

import (
	"fmt"
	"sync"

	"git.home.luguber.info/inful/docweave/internal/model"
)

// Field describes one field of a typed record.
type Field[T any] struct {
	Name   string
	Policy Policy
	// Get reports the current value and whether it is present. Records are
	// returned as Node, lists as []any.
	Get func(*T) (any, bool)
	// Set stores a merged value. It receives Nodes and []any in the same
	// shapes Get produces and should reject anything else.
	Set func(*T, any) error
	// New constructs an empty record (or list element) for this field.
	New func() Node
	// Schema names the registered schema of the record or element type.
	Schema string
}

// Schema is the explicit policy table of a typed record.
type Schema[T any] struct {
	name   string
	fields []Field[T]
	index  map[string]int
	key    string
	extra  func(*T) *model.Bag
}

// NewSchema builds a schema. Duplicate field names or more than one
// MergeKey field are programming errors and panic.
func NewSchema[T any](name string, fields ...Field[T]) *Schema[T] {
	s := &Schema[T]{name: name, fields: fields, index: make(map[string]int, len(fields))}
	for i, f := range fields {
		if _, dup := s.index[f.Name]; dup {
			panic(fmt.Sprintf("merge: schema %s declares field %q twice", name, f.Name))
		}
		s.index[f.Name] = i
		if f.Policy == MergeKey {
			if s.key != "" {
				panic(fmt.Sprintf("merge: schema %s declares two merge keys", name))
			}
			s.key = f.Name
		}
	}
	return s
}

// WithExtra routes fields the schema does not declare into the bag
// returned by fn. fn may allocate the bag on first use.
func (s *Schema[T]) WithExtra(fn func(*T) *model.Bag) *Schema[T] {
	s.extra = fn
	return s
}

// Name returns the schema name.
func (s *Schema[T]) Name() string { return s.name }

// FieldPolicy returns the policy of field name. Unknown fields merge.
func (s *Schema[T]) FieldPolicy(name string) Policy {
	if i, ok := s.index[name]; ok {
		return s.fields[i].Policy
	}
	return Merge
}

// Fields returns the declared field names in declaration order.
func (s *Schema[T]) Fields() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}
	return out
}

// Child returns the schema name of a record-valued field.
func (s *Schema[T]) Child(name string) (string, bool) {
	if i, ok := s.index[name]; ok && s.fields[i].Schema != "" {
		return s.fields[i].Schema, true
	}
	return "", false
}

// AllowsExtra reports whether undeclared fields are accepted.
func (s *Schema[T]) AllowsExtra() bool { return s.extra != nil }

// Bind returns the Node view of v.
func (s *Schema[T]) Bind(v *T) *Bound[T] {
	return &Bound[T]{schema: s, ptr: v}
}

// Bound is a typed record viewed through its schema.
type Bound[T any] struct {
	schema *Schema[T]
	ptr    *T
}

// Ptr returns the bound record.
func (b *Bound[T]) Ptr() *T { return b.ptr }

// Value returns the bound record as any.
func (b *Bound[T]) Value() any { return b.ptr }

func (b *Bound[T]) Keys() []string {
	keys := make([]string, 0, len(b.schema.fields))
	for _, f := range b.schema.fields {
		if _, ok := f.Get(b.ptr); ok {
			keys = append(keys, f.Name)
		}
	}
	if b.schema.extra != nil {
		keys = append(keys, b.schema.extra(b.ptr).Keys()...)
	}
	return keys
}

func (b *Bound[T]) Get(name string) (any, bool) {
	if i, ok := b.schema.index[name]; ok {
		return b.schema.fields[i].Get(b.ptr)
	}
	if b.schema.extra != nil {
		return b.schema.extra(b.ptr).Get(name)
	}
	return nil, false
}

func (b *Bound[T]) Set(name string, value any) error {
	if i, ok := b.schema.index[name]; ok {
		if err := b.schema.fields[i].Set(b.ptr, value); err != nil {
			return fmt.Errorf("%w: %s.%s: %v", ErrTypeMismatch, b.schema.name, name, err)
		}
		return nil
	}
	if b.schema.extra != nil {
		b.schema.extra(b.ptr).Set(name, unwrapDeep(value))
		return nil
	}
	return fmt.Errorf("%w: %s.%s", ErrUnknownField, b.schema.name, name)
}

func (b *Bound[T]) Policy(name string) Policy { return b.schema.FieldPolicy(name) }

func (b *Bound[T]) New(name string) Node {
	if i, ok := b.schema.index[name]; ok && b.schema.fields[i].New != nil {
		return b.schema.fields[i].New()
	}
	return BagNode{Bag: model.NewBag()}
}

func (b *Bound[T]) MergeKey() string { return b.schema.key }

// Describer is the schema information the registry needs.
type Describer interface {
	Name() string
	Fields() []string
	FieldPolicy(name string) Policy
	Child(name string) (string, bool)
	AllowsExtra() bool
}

// Registry holds the schemas known to a build, registered once at startup.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]Describer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]Describer)}
}

// Register adds schemas. Registering a name twice panics.
func (r *Registry) Register(schemas ...Describer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range schemas {
		if _, dup := r.schemas[s.Name()]; dup {
			panic("merge: schema registered twice: " + s.Name())
		}
		r.schemas[s.Name()] = s
	}
}

// Lookup returns the schema registered under name.
func (r *Registry) Lookup(name string) (Describer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[name]
	return s, ok
}

// Policies returns the field policy table of a registered schema.
func (r *Registry) Policies(name string) map[string]Policy {
	s, ok := r.Lookup(name)
	if !ok {
		return nil
	}
	out := make(map[string]Policy)
	for _, f := range s.Fields() {
		out[f] = s.FieldPolicy(f)
	}
	return out
}
