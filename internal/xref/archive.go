package xref

import (
	"archive/zip"
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"sync"

	"git.home.luguber.info/inful/docweave/internal/cache"
	"git.home.luguber.info/inful/docweave/internal/metrics"
	"git.home.luguber.info/inful/docweave/internal/parallel"
)

// ArchiveContainer reads a zip package holding a major map named
// MapFileName plus minor shards. Minor shards override the major map and
// later-modified shards override earlier ones.
type ArchiveContainer struct {
	name          string
	path          string
	shardCapacity int
	throttle      *parallel.Throttle
	recorder      metrics.Recorder
}

// NewArchiveContainer opens path on Open. shardCapacity bounds the number
// of parsed minor shards kept in memory.
func NewArchiveContainer(name, path string, shardCapacity int, throttle *parallel.Throttle, recorder metrics.Recorder) *ArchiveContainer {
	return &ArchiveContainer{name: name, path: path, shardCapacity: shardCapacity, throttle: throttle, recorder: recorder}
}

func (c *ArchiveContainer) Name() string { return c.name }

func (c *ArchiveContainer) Open(ctx context.Context) (Source, error) {
	var rc *zip.ReadCloser
	err := c.throttle.Do(ctx, parallel.DiskIO, func(context.Context) error {
		var oerr error
		rc, oerr = zip.OpenReader(c.path)
		return oerr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrContainerUnavailable, c.name, err)
	}
	src, err := newArchiveSource(c.name, &rc.Reader, rc, c.shardCapacity, c.recorder)
	if err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrContainerUnavailable, c.name, err)
	}
	return src, nil
}

// OpenArchiveBytes reads an archive held in memory, as downloaded by a
// remote container.
func OpenArchiveBytes(name string, data []byte, shardCapacity int, recorder metrics.Recorder) (*ArchiveSource, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return newArchiveSource(name, zr, nil, shardCapacity, recorder)
}

// ArchiveSource answers lookups from an opened archive.
type ArchiveSource struct {
	mu       sync.Mutex
	zr       *zip.Reader
	closer   io.Closer
	entries  map[string]*zip.File
	major    *MapSource
	owner    map[string]string
	shards   *cache.LRU[string, map[string]Spec]
	redirect []Redirection
}

func newArchiveSource(name string, zr *zip.Reader, closer io.Closer, shardCapacity int, recorder metrics.Recorder) (*ArchiveSource, error) {
	rec := metrics.OrNoop(recorder)
	s := &ArchiveSource{
		zr:      zr,
		closer:  closer,
		entries: make(map[string]*zip.File),
		owner:   make(map[string]string),
		shards: cache.NewLRU[string, map[string]Spec](shardCapacity, func(string, map[string]Spec) {
			rec.IncCacheEviction("archive_shard:" + name)
		}),
	}

	var minors []*zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		s.entries[f.Name] = f
		if f.Name == MapFileName {
			continue
		}
		switch strings.ToLower(path.Ext(f.Name)) {
		case ".yml", ".yaml", ".json":
			minors = append(minors, f)
		}
	}

	major := &Map{}
	if f, ok := s.entries[MapFileName]; ok {
		m, err := readEntry(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", MapFileName, err)
		}
		major = m
	}
	s.major = NewMapSource(major)
	s.redirect = append(s.redirect, major.Redirections...)

	// Later-modified shards claim UIDs last and therefore win.
	slices.SortStableFunc(minors, func(a, b *zip.File) int {
		if c := a.Modified.Compare(b.Modified); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	for _, f := range minors {
		m, err := readEntry(f)
		if err != nil {
			return nil, fmt.Errorf("read shard %s: %w", f.Name, err)
		}
		idx := m.Index()
		for uid := range idx {
			s.owner[uid] = f.Name
		}
		s.redirect = append(s.redirect, m.Redirections...)
		s.shards.Add(f.Name, idx)
	}
	return s, nil
}

func readEntry(f *zip.File) (*Map, error) {
	r, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseMap(data, FormatFor(f.Name))
}

// Shards lists the minor shard names that own at least one UID, sorted.
func (s *ArchiveSource) Shards() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	var out []string
	for _, name := range s.owner {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// Shard returns the parsed descriptors of one entry by name.
func (s *ArchiveSource) Shard(name string) (map[string]Spec, error) {
	if idx, ok := s.shards.Get(name); ok {
		return idx, nil
	}
	s.mu.Lock()
	f, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: no entry %q", ErrNotFound, name)
	}
	m, err := readEntry(f)
	if err != nil {
		return nil, err
	}
	idx := m.Index()
	s.shards.Add(name, idx)
	return idx, nil
}

func (s *ArchiveSource) Lookup(uid string) (Spec, bool, error) {
	s.mu.Lock()
	shard, owned := s.owner[uid]
	s.mu.Unlock()
	if owned {
		idx, err := s.Shard(shard)
		if err != nil {
			return Spec{}, false, err
		}
		if spec, ok := idx[uid]; ok {
			return spec, true, nil
		}
	}
	return s.major.Lookup(uid)
}

func (s *ArchiveSource) Redirections() []Redirection { return s.redirect }

// Close releases the underlying file, if any.
func (s *ArchiveSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
