package build

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"
	"sync"

	"git.home.luguber.info/inful/docweave/internal/model"
	"git.home.luguber.info/inful/docweave/internal/xref"
)

// GroupInfo describes a version group. Output paths of member documents
// are prefixed with Destination.
type GroupInfo struct {
	Name        string
	Destination string
	Metadata    map[string]any
}

// Registration is the outcome of RegisterUID.
type Registration struct {
	Accepted bool
	// ConflictWith is the winning definition when Accepted is false.
	ConflictWith *model.UIDDefinition
}

// Context is the registry shared by every step of one build.
type Context struct {
	BuildID string
	Logger  *slog.Logger

	resolver *xref.Resolver
	diags    *Diagnostics

	uidMu sync.RWMutex
	uids  map[string]model.UIDDefinition
	// specs holds published descriptors per UID and defining file. Only the
	// entry of the winning file is ever served.
	specs map[string]map[string]xref.Spec

	pathMu   sync.RWMutex
	paths    map[string]string
	pathKeys map[string]string

	bookmarkMu sync.RWMutex
	bookmarks  map[string]string

	tocMu     sync.RWMutex
	tocs      map[string][]string
	memberTOC map[string][]string

	groups map[string]GroupInfo

	overwriteMu sync.RWMutex
	overwrites  map[string][]model.OverwriteFragment
}

// ContextOptions configures NewContext.
type ContextOptions struct {
	BuildID    string
	Logger     *slog.Logger
	Containers []xref.Container
	Groups     []GroupInfo
	Resolver   xref.Options
	// OnDiagnostic is called for every recorded diagnostic.
	OnDiagnostic func(Diagnostic)
}

// NewContext creates the registry for one build.
func NewContext(opts ContextOptions) *Context {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Context{
		BuildID:    opts.BuildID,
		Logger:     logger,
		diags:      &Diagnostics{onRecord: opts.OnDiagnostic},
		uids:       make(map[string]model.UIDDefinition),
		specs:      make(map[string]map[string]xref.Spec),
		paths:      make(map[string]string),
		pathKeys:   make(map[string]string),
		bookmarks:  make(map[string]string),
		tocs:       make(map[string][]string),
		memberTOC:  make(map[string][]string),
		groups:     make(map[string]GroupInfo, len(opts.Groups)),
		overwrites: make(map[string][]model.OverwriteFragment),
	}
	for _, g := range opts.Groups {
		c.groups[g.Name] = g
	}
	ropts := opts.Resolver
	if ropts.Logger == nil {
		ropts.Logger = logger
	}
	userHook := ropts.OnUnavailable
	ropts.OnUnavailable = func(container string, err error) {
		c.diags.Add(Diagnostic{
			Kind:      DiagContainerUnavailable,
			Message:   fmt.Sprintf("reference container %s unavailable", container),
			Locations: []string{container},
			Err:       err,
		})
		if userHook != nil {
			userHook(container, err)
		}
	}
	c.resolver = xref.NewResolver(c, opts.Containers, ropts)
	return c
}

// Diagnostics returns the collector of this build.
func (c *Context) Diagnostics() *Diagnostics { return c.diags }

// Resolver returns the UID resolver bound to this context.
func (c *Context) Resolver() *xref.Resolver { return c.resolver }

// RegisterUID claims def.Name for def. The first registration wins;
// later ones are rejected, reported as duplicates and leave state untouched.
func (c *Context) RegisterUID(def model.UIDDefinition) Registration {
	c.uidMu.Lock()
	winner, exists := c.uids[def.Name]
	if !exists {
		c.uids[def.Name] = def
		c.uidMu.Unlock()
		return Registration{Accepted: true}
	}
	c.uidMu.Unlock()

	if winner == def {
		return Registration{Accepted: true}
	}
	c.diags.Add(Diagnostic{
		Kind:      DiagDuplicateUID,
		Message:   fmt.Sprintf("UID %q is defined more than once", def.Name),
		UID:       def.Name,
		Document:  def.File,
		Locations: []string{winner.Location(), def.Location()},
	})
	return Registration{ConflictWith: &winner}
}

// Definition returns the winning definition of uid.
func (c *Context) Definition(uid string) (model.UIDDefinition, bool) {
	c.uidMu.RLock()
	defer c.uidMu.RUnlock()
	def, ok := c.uids[uid]
	return def, ok
}

// PublishXRefSpec attaches the descriptor that file produces for spec.UID.
// Steps may publish before registration; only the winning file's descriptor
// is served. The first publish per file is kept and later ones are refused,
// as is a publish from a file that already lost the UID.
func (c *Context) PublishXRefSpec(file string, spec xref.Spec) bool {
	c.uidMu.Lock()
	defer c.uidMu.Unlock()
	if def, ok := c.uids[spec.UID]; ok && def.File != file {
		return false
	}
	byFile := c.specs[spec.UID]
	if byFile == nil {
		byFile = make(map[string]xref.Spec)
		c.specs[spec.UID] = byFile
	}
	if _, dup := byFile[file]; dup {
		return false
	}
	byFile[file] = spec
	return true
}

// UIDs returns the registered UIDs sorted.
func (c *Context) UIDs() []string {
	c.uidMu.RLock()
	defer c.uidMu.RUnlock()
	out := make([]string, 0, len(c.uids))
	for uid := range c.uids {
		out = append(out, uid)
	}
	slices.Sort(out)
	return out
}

// LookupLocal returns the in-build descriptor of uid with its href mapped to
// the defining document's output path and bookmark, when known.
func (c *Context) LookupLocal(uid string) (xref.Spec, bool) {
	c.uidMu.RLock()
	def, ok := c.uids[uid]
	spec, published := c.specs[uid][def.File]
	c.uidMu.RUnlock()
	if !ok {
		return xref.Spec{}, false
	}

	if !published {
		spec = xref.NewBuilder(uid).Name(uid).Build()
	}
	href := spec.Href
	if href == "" {
		href = def.File
	}
	if out, ok := c.OutputPath(href); ok {
		href = out
	}
	if anchor, ok := c.Bookmark(uid); ok && !strings.Contains(href, "#") {
		href += "#" + anchor
	}
	return spec.WithHref(href), true
}

// Find resolves uid through the in-build registry and external containers.
func (c *Context) Find(ctx context.Context, uid string) (xref.Spec, bool) {
	return c.resolver.Find(ctx, uid)
}

// SetOutputPath assigns the output path of key. Re-assigning a different
// path, or a path already owned by another key, is reported and ignored.
func (c *Context) SetOutputPath(key, outPath string) bool {
	outPath = path.Clean(strings.TrimPrefix(outPath, "/"))
	c.pathMu.Lock()
	prev, had := c.paths[key]
	owner, taken := c.pathKeys[outPath]
	switch {
	case had && prev == outPath:
		c.pathMu.Unlock()
		return true
	case had:
		c.pathMu.Unlock()
		c.diags.Add(Diagnostic{
			Kind:      DiagOutputPathConflict,
			Message:   fmt.Sprintf("output path of %s already set to %s; ignoring %s", key, prev, outPath),
			Document:  key,
			Locations: []string{prev, outPath},
		})
		return false
	case taken && owner != key:
		c.pathMu.Unlock()
		c.diags.Add(Diagnostic{
			Kind:      DiagOutputPathConflict,
			Message:   fmt.Sprintf("output path %s is already used by %s", outPath, owner),
			Document:  key,
			Locations: []string{owner, key},
		})
		return false
	}
	c.paths[key] = outPath
	c.pathKeys[outPath] = key
	c.pathMu.Unlock()
	return true
}

// OutputPath returns the output path assigned to key.
func (c *Context) OutputPath(key string) (string, bool) {
	c.pathMu.RLock()
	defer c.pathMu.RUnlock()
	p, ok := c.paths[key]
	return p, ok
}

// OutputPaths returns a copy of the key to output path table.
func (c *Context) OutputPaths() map[string]string {
	c.pathMu.RLock()
	defer c.pathMu.RUnlock()
	out := make(map[string]string, len(c.paths))
	for k, v := range c.paths {
		out[k] = v
	}
	return out
}

// RegisterBookmark sets the anchor appended to hrefs of uid.
func (c *Context) RegisterBookmark(uid, anchor string) {
	if anchor == "" {
		return
	}
	c.bookmarkMu.Lock()
	defer c.bookmarkMu.Unlock()
	if _, ok := c.bookmarks[uid]; !ok {
		c.bookmarks[uid] = anchor
	}
}

// Bookmark returns the anchor registered for uid.
func (c *Context) Bookmark(uid string) (string, bool) {
	c.bookmarkMu.RLock()
	defer c.bookmarkMu.RUnlock()
	a, ok := c.bookmarks[uid]
	return a, ok
}

// RegisterTOC records the documents listed by a table of contents.
func (c *Context) RegisterTOC(tocKey string, memberKeys ...string) {
	c.tocMu.Lock()
	defer c.tocMu.Unlock()
	for _, m := range memberKeys {
		if slices.Contains(c.tocs[tocKey], m) {
			continue
		}
		c.tocs[tocKey] = append(c.tocs[tocKey], m)
		c.memberTOC[m] = append(c.memberTOC[m], tocKey)
	}
}

// TOCsFor returns the tables of contents that list key.
func (c *Context) TOCsFor(key string) []string {
	c.tocMu.RLock()
	defer c.tocMu.RUnlock()
	return slices.Clone(c.memberTOC[key])
}

// TOCMembers returns the documents a table of contents lists.
func (c *Context) TOCMembers(tocKey string) []string {
	c.tocMu.RLock()
	defer c.tocMu.RUnlock()
	return slices.Clone(c.tocs[tocKey])
}

// Group returns the version group named name.
func (c *Context) Group(name string) (GroupInfo, bool) {
	g, ok := c.groups[name]
	return g, ok
}

// Groups returns the configured version groups sorted by name.
func (c *Context) Groups() []GroupInfo {
	out := make([]GroupInfo, 0, len(c.groups))
	for _, g := range c.groups {
		out = append(out, g)
	}
	slices.SortFunc(out, func(a, b GroupInfo) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// RelativeHref returns the link from the output of fromKey to target, an
// output path. Fragments are preserved.
func (c *Context) RelativeHref(fromKey, target string) string {
	from, ok := c.OutputPath(fromKey)
	if !ok {
		from = fromKey
	}
	return RelativePath(from, target)
}

// RelativePath computes the relative link between two output paths.
func RelativePath(from, to string) string {
	frag := ""
	if i := strings.IndexByte(to, '#'); i >= 0 {
		to, frag = to[:i], to[i:]
	}
	if to == "" {
		return frag
	}
	fromDir := path.Dir(path.Clean(from))
	to = path.Clean(to)
	if fromDir == "." {
		return to + frag
	}
	fromParts := strings.Split(fromDir, "/")
	toParts := strings.Split(to, "/")
	i := 0
	for i < len(fromParts) && i < len(toParts)-1 && fromParts[i] == toParts[i] {
		i++
	}
	var b strings.Builder
	for range fromParts[i:] {
		b.WriteString("../")
	}
	b.WriteString(strings.Join(toParts[i:], "/"))
	return b.String() + frag
}
