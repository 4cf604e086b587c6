package xref

import (
	"context"
	"errors"
	"fmt"
	"os"

	"git.home.luguber.info/inful/docweave/internal/parallel"
)

var (
	// ErrContainerUnavailable reports a container that could not be opened.
	ErrContainerUnavailable = errors.New("reference container unavailable")
	// ErrNotFound reports a UID no source could resolve.
	ErrNotFound = errors.New("uid not found")
)

// Source answers lookups for an opened container.
type Source interface {
	Lookup(uid string) (Spec, bool, error)
	Redirections() []Redirection
}

// Container is a named, read-only provider of descriptors. Open is called at
// most once per build by the Resolver.
type Container interface {
	Name() string
	Open(ctx context.Context) (Source, error)
}

// MapSource serves an in-memory index.
type MapSource struct {
	specs        map[string]Spec
	redirections []Redirection
}

// NewMapSource indexes m.
func NewMapSource(m *Map) *MapSource {
	return &MapSource{specs: m.Index(), redirections: m.Redirections}
}

func (s *MapSource) Lookup(uid string) (Spec, bool, error) {
	spec, ok := s.specs[uid]
	return spec, ok, nil
}

func (s *MapSource) Redirections() []Redirection { return s.redirections }

// Len reports the number of indexed descriptors.
func (s *MapSource) Len() int { return len(s.specs) }

// MemoryContainer serves descriptors supplied in code.
type MemoryContainer struct {
	name string
	m    *Map
}

// NewMemoryContainer wraps specs and redirections.
func NewMemoryContainer(name string, specs []Spec, redirections ...Redirection) *MemoryContainer {
	return &MemoryContainer{name: name, m: &Map{HrefUpdated: true, References: specs, Redirections: redirections}}
}

func (c *MemoryContainer) Name() string { return c.name }

func (c *MemoryContainer) Open(context.Context) (Source, error) {
	return NewMapSource(c.m), nil
}

// FileContainer reads a YAML or JSON map from disk.
type FileContainer struct {
	name     string
	path     string
	throttle *parallel.Throttle
}

// NewFileContainer reads path on Open. throttle may be nil.
func NewFileContainer(name, path string, throttle *parallel.Throttle) *FileContainer {
	return &FileContainer{name: name, path: path, throttle: throttle}
}

func (c *FileContainer) Name() string { return c.name }

func (c *FileContainer) Open(ctx context.Context) (Source, error) {
	var data []byte
	err := c.throttle.Do(ctx, parallel.DiskIO, func(context.Context) error {
		var rerr error
		// #nosec G304 -- path comes from the build configuration.
		data, rerr = os.ReadFile(c.path)
		return rerr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrContainerUnavailable, c.name, err)
	}
	m, err := ParseMap(data, FormatFor(c.path))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrContainerUnavailable, c.name, err)
	}
	return NewMapSource(m), nil
}
