package xref

import (
	"archive/zip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docweave/internal/retry"
)

type localMap map[string]Spec

func (l localMap) LookupLocal(uid string) (Spec, bool) {
	s, ok := l[uid]
	return s, ok
}

func spec(uid, href string) Spec { return NewBuilder(uid).Name(uid).Href(href).Build() }

func TestFindFallthroughOrder(t *testing.T) {
	c0 := NewMemoryContainer("c0", []Spec{spec("x", "c0.html")})
	c1 := NewMemoryContainer("c1", []Spec{spec("x", "c1.html"), spec("y", "c1y.html")})
	c2 := NewMemoryContainer("c2", []Spec{spec("y", "c2y.html"), spec("z", "c2z.html")})
	ctx := context.Background()

	withLocal := NewResolver(localMap{"x": spec("x", "local.html")}, []Container{c0, c1, c2}, Options{})
	got, ok := withLocal.Find(ctx, "x")
	require.True(t, ok)
	assert.Equal(t, "local.html", got.Href)

	r := NewResolver(localMap{}, []Container{c0, c1, c2}, Options{})
	for uid, want := range map[string]string{"x": "c0.html", "y": "c1y.html", "z": "c2z.html"} {
		got, ok := r.Find(ctx, uid)
		require.True(t, ok, uid)
		assert.Equal(t, want, got.Href, uid)
	}
	_, ok = r.Find(ctx, "missing")
	assert.False(t, ok)
}

func TestRedirectionLongestPrefix(t *testing.T) {
	c0 := NewMemoryContainer("c0", nil, Redirection{UIDPrefix: "Foo.", Href: "short/{uid}"})
	c1 := NewMemoryContainer("c1", nil,
		Redirection{UIDPrefix: "Foo.Bar.", Href: "long/{suffix}"},
		Redirection{UIDPrefix: "Foo.", Href: "late/{uid}"},
	)
	r := NewResolver(nil, []Container{c0, c1}, Options{})

	got, ok := r.Find(context.Background(), "Foo.Bar.Baz")
	require.True(t, ok)
	assert.Equal(t, "long/Baz", got.Href)

	got, ok = r.Find(context.Background(), "Foo.Qux")
	require.True(t, ok)
	assert.Equal(t, "short/Foo.Qux", got.Href, "ties go to the earlier container")

	res, err := r.FindExternal(context.Background(), "Foo.Qux")
	require.NoError(t, err)
	assert.Equal(t, "c0", res.Container)
}

func TestExplicitEntryBeatsRedirection(t *testing.T) {
	c0 := NewMemoryContainer("c0", nil, Redirection{UIDPrefix: "Foo.", Href: "redirect/{uid}"})
	c1 := NewMemoryContainer("c1", []Spec{spec("Foo.A", "explicit.html")})
	r := NewResolver(nil, []Container{c0, c1}, Options{})
	got, ok := r.Find(context.Background(), "Foo.A")
	require.True(t, ok)
	assert.Equal(t, "explicit.html", got.Href)
}

type failingContainer struct {
	opens atomic.Int32
}

func (f *failingContainer) Name() string { return "broken" }
func (f *failingContainer) Open(context.Context) (Source, error) {
	f.opens.Add(1)
	return nil, errors.New("disk on fire")
}

func TestUnavailableContainerDroppedOnce(t *testing.T) {
	broken := &failingContainer{}
	ok := NewMemoryContainer("ok", []Spec{spec("a", "a.html")})
	var reports atomic.Int32
	r := NewResolver(nil, []Container{broken, ok}, Options{OnUnavailable: func(string, error) { reports.Add(1) }})

	for _, uid := range []string{"a", "b", "c"} {
		r.Find(context.Background(), uid)
	}
	got, found := r.Find(context.Background(), "a")
	require.True(t, found)
	assert.Equal(t, "a.html", got.Href)
	assert.Equal(t, int32(1), broken.opens.Load())
	assert.Equal(t, int32(1), reports.Load())
	assert.Equal(t, []string{"ok"}, r.Available())
}

func writeArchive(t *testing.T, entries map[string]struct {
	body string
	mod  time.Time
}) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "refs.zip")
	f, err := os.Create(p)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: e.mod})
		require.NoError(t, err)
		_, err = w.Write([]byte(e.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return p
}

func TestArchiveMinorShardsOverrideMajor(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := writeArchive(t, map[string]struct {
		body string
		mod  time.Time
	}{
		MapFileName: {body: "references:\n  - uid: a\n    href: major-a.html\n  - uid: b\n    href: major-b.html\n", mod: base},
		"old.yml":   {body: "references:\n  - uid: b\n    href: old-b.html\n  - uid: c\n    href: old-c.html\n", mod: base.Add(time.Hour)},
		"new.json":  {body: `{"references":[{"uid":"c","href":"new-c.html"}]}`, mod: base.Add(2 * time.Hour)},
	})

	c := NewArchiveContainer("zip", p, 1, nil, nil)
	src, err := c.Open(context.Background())
	require.NoError(t, err)
	defer func() { _ = src.(*ArchiveSource).Close() }()

	for uid, want := range map[string]string{"a": "major-a.html", "b": "old-b.html", "c": "new-c.html"} {
		got, ok, err := src.Lookup(uid)
		require.NoError(t, err)
		require.True(t, ok, uid)
		assert.Equal(t, want, got.Href, uid)
	}
	assert.Equal(t, []string{"new.json", "old.yml"}, src.(*ArchiveSource).Shards())
}

func TestRemoteContainerRetriesThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("references:\n  - uid: r\n    href: r.html\n"))
	}))
	defer srv.Close()

	c := NewRemoteContainer("remote", srv.URL+"/maps/xrefmap.yml")
	c.Policy = retry.NewPolicy("fixed", time.Millisecond, time.Millisecond, 3)
	r := NewResolver(nil, []Container{c}, Options{})

	got, ok := r.Find(context.Background(), "r")
	require.True(t, ok)
	assert.Equal(t, srv.URL+"/maps/r.html", got.Href)
	assert.Equal(t, int32(3), hits.Load())
}

func TestRemoteContainerClientErrorIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewRemoteContainer("remote", srv.URL+"/xrefmap.yml")
	c.Policy = retry.NewPolicy("fixed", time.Millisecond, time.Millisecond, 3)
	_, err := c.Open(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContainerUnavailable)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRemoteContainerRejectsOversizedMap(t *testing.T) {
	var hits atomic.Int32
	body := "references:\n  - uid: a\n    href: a.html\n  - uid: b\n    href: b.html\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := NewRemoteContainer("remote", srv.URL+"/xrefmap.yml")
	c.Policy = retry.NewPolicy("fixed", time.Millisecond, time.Millisecond, 3)
	c.MaxBytes = int64(len(body) - 10)
	_, err := c.Open(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContainerUnavailable)
	assert.Contains(t, err.Error(), ErrMapTooLarge.Error())
	assert.Equal(t, int32(1), hits.Load())

	c.MaxBytes = int64(len(body))
	src, err := c.Open(context.Background())
	require.NoError(t, err)
	_, ok, _ := src.Lookup("b")
	assert.True(t, ok)
}

func TestRemoteContainerTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewRemoteContainer("slow", srv.URL+"/xrefmap.yml")
	c.Timeout = 20 * time.Millisecond
	c.Policy = retry.NewPolicy("fixed", time.Millisecond, time.Millisecond, 1)
	start := time.Now()
	_, err := c.Open(context.Background())
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

type memoryBlobCache struct {
	data map[string][]byte
}

func (m *memoryBlobCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	d, ok := m.data[key]
	return d, ok, nil
}

func (m *memoryBlobCache) Put(_ context.Context, key string, data []byte) error {
	m.data[key] = data
	return nil
}

func TestRemoteContainerUsesCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"hrefUpdated":true,"references":[{"uid":"j","href":"j.html"}]}`))
	}))
	defer srv.Close()

	blobs := &memoryBlobCache{data: map[string][]byte{}}
	for i := 0; i < 2; i++ {
		c := NewRemoteContainer("remote", srv.URL+"/xrefmap.json")
		c.Cache = blobs
		src, err := c.Open(context.Background())
		require.NoError(t, err)
		got, ok, _ := src.Lookup("j")
		require.True(t, ok)
		assert.Equal(t, "j.html", got.Href)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestUnresolvedAggregation(t *testing.T) {
	local := localMap{}
	r := NewResolver(local, nil, Options{})

	p := r.ReportUnresolved("late", "b.md", "Late Thing")
	assert.False(t, p.IsSpec)
	assert.Equal(t, "Late Thing", p.Name)
	r.ReportUnresolved("late", "c.md", "")
	r.ReportUnresolved("late", "b.md", "")
	r.ReportUnresolved("gone", "b.md", "")

	local["late"] = spec("late", "late.html")
	resolved, remaining := r.ResolveExternalForUnresolved(context.Background())
	assert.Equal(t, "late.html", resolved["late"].Href)
	require.Len(t, remaining, 1)
	assert.Equal(t, Unresolved{UID: "gone", Documents: []string{"b.md"}, Count: 1}, remaining[0])
}

// flakySource fails the first lookup of every UID.
type flakySource struct {
	inner *MapSource
	seen  map[string]bool
}

func (f *flakySource) Lookup(uid string) (Spec, bool, error) {
	if !f.seen[uid] {
		f.seen[uid] = true
		return Spec{}, false, errors.New("shard not ready")
	}
	return f.inner.Lookup(uid)
}

func (f *flakySource) Redirections() []Redirection { return nil }

type flakyContainer struct{ src *flakySource }

func (flakyContainer) Name() string { return "flaky" }

func (c flakyContainer) Open(context.Context) (Source, error) { return c.src, nil }

func TestFinalPassRequeriesContainers(t *testing.T) {
	src := &flakySource{
		inner: NewMapSource(&Map{References: []Spec{spec("ext", "https://ext/ext.html")}, HrefUpdated: true}),
		seen:  map[string]bool{},
	}
	r := NewResolver(nil, []Container{flakyContainer{src}}, Options{})

	_, ok := r.Find(context.Background(), "ext")
	require.False(t, ok)
	r.ReportUnresolved("ext", "a.md", "")

	resolved, remaining := r.ResolveExternalForUnresolved(context.Background())
	assert.Equal(t, "https://ext/ext.html", resolved["ext"].Href)
	assert.Empty(t, remaining)
}
