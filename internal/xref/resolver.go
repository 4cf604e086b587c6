package xref

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/docweave/internal/cache"
	"git.home.luguber.info/inful/docweave/internal/logfields"
	"git.home.luguber.info/inful/docweave/internal/metrics"
)

// Local is the in-build registry consulted before any container.
type Local interface {
	LookupLocal(uid string) (Spec, bool)
}

// Result is the outcome of an external lookup.
type Result struct {
	Spec      Spec
	Found     bool
	Source    metrics.LookupSource
	Container string
}

// Options configures a Resolver.
type Options struct {
	Logger   *slog.Logger
	Recorder metrics.Recorder
	// OnUnavailable is called once per container that fails to open.
	OnUnavailable func(container string, err error)
}

// Resolver answers UID lookups for one build.
type Resolver struct {
	local         Local
	containers    []Container
	logger        *slog.Logger
	recorder      metrics.Recorder
	onUnavailable func(string, error)

	sources *cache.Memo[int, Source]
	results *cache.Memo[string, Result]

	mu         sync.Mutex
	dropped    map[int]bool
	unresolved map[string]*Unresolved
}

// NewResolver creates a resolver over containers in declaration order.
// local may be nil.
func NewResolver(local Local, containers []Container, opts Options) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		local:         local,
		containers:    containers,
		logger:        logger,
		recorder:      metrics.OrNoop(opts.Recorder),
		onUnavailable: opts.OnUnavailable,
		sources:       cache.NewMemo[int, Source](),
		results:       cache.NewMemo[string, Result](),
		dropped:       make(map[int]bool),
		unresolved:    make(map[string]*Unresolved),
	}
}

// Find resolves uid against the in-build registry, then the containers, then
// their redirections. The second return is false when nothing matched or ctx
// ended first.
func (r *Resolver) Find(ctx context.Context, uid string) (Spec, bool) {
	if r.local != nil {
		if spec, ok := r.local.LookupLocal(uid); ok {
			r.recorder.IncXRefLookup(metrics.LookupBuild)
			return spec, true
		}
	}
	res, err := r.FindExternal(ctx, uid)
	if err != nil || !res.Found {
		r.recorder.IncXRefLookup(metrics.LookupUnresolved)
		return Spec{}, false
	}
	r.recorder.IncXRefLookup(res.Source)
	return res.Spec, true
}

// FindExternal resolves uid against the containers only. Results, including
// misses, are memoized for the life of the resolver.
func (r *Resolver) FindExternal(ctx context.Context, uid string) (Result, error) {
	return r.results.GetOrCompute(ctx, uid, func(ctx context.Context) (Result, error) {
		return r.lookupExternal(ctx, uid), nil
	})
}

func (r *Resolver) lookupExternal(ctx context.Context, uid string) Result {
	var open []int
	for i, c := range r.containers {
		src, ok := r.source(ctx, i)
		if !ok {
			continue
		}
		open = append(open, i)
		spec, found, err := src.Lookup(uid)
		if err != nil {
			r.logger.Debug("Reference lookup failed", logfields.Container(c.Name()), logfields.UID(uid), logfields.Error(err))
			continue
		}
		if found {
			return Result{Spec: spec, Found: true, Source: metrics.LookupContainer, Container: c.Name()}
		}
	}

	var (
		best      Redirection
		bestLen   = -1
		bestOwner string
	)
	for _, i := range open {
		src, _ := r.sources.Peek(i)
		for _, rd := range src.Redirections() {
			if rd.UIDPrefix == "" || !strings.HasPrefix(uid, rd.UIDPrefix) {
				continue
			}
			if len(rd.UIDPrefix) > bestLen {
				best, bestLen, bestOwner = rd, len(rd.UIDPrefix), r.containers[i].Name()
			}
		}
	}
	if bestLen >= 0 {
		return Result{Spec: best.Expand(uid), Found: true, Source: metrics.LookupRedirect, Container: bestOwner}
	}
	return Result{}
}

// source opens container i once. A container that fails is dropped for the
// rest of the build and reported once.
func (r *Resolver) source(ctx context.Context, i int) (Source, bool) {
	r.mu.Lock()
	dropped := r.dropped[i]
	r.mu.Unlock()
	if dropped {
		return nil, false
	}

	c := r.containers[i]
	src, err := r.sources.GetOrCompute(ctx, i, func(ctx context.Context) (Source, error) {
		start := time.Now()
		s, err := c.Open(ctx)
		r.recorder.ObserveContainerLoad(c.Name(), time.Since(start), err == nil)
		return s, err
	})
	if err == nil {
		return src, true
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil, false
	}

	r.mu.Lock()
	first := !r.dropped[i]
	r.dropped[i] = true
	r.mu.Unlock()
	if first {
		r.logger.Warn("Reference container unavailable; skipping it for this build",
			logfields.Container(c.Name()), logfields.Error(err))
		if r.onUnavailable != nil {
			r.onUnavailable(c.Name(), err)
		}
	}
	return nil, false
}

// Preload opens every container up front so failures surface early.
func (r *Resolver) Preload(ctx context.Context) {
	for i := range r.containers {
		r.source(ctx, i)
	}
}

// Available returns the names of containers that are open and not dropped.
func (r *Resolver) Available() []string {
	var out []string
	for i, c := range r.containers {
		r.mu.Lock()
		dropped := r.dropped[i]
		r.mu.Unlock()
		if _, ok := r.sources.Peek(i); ok && !dropped {
			out = append(out, c.Name())
		}
	}
	return out
}

// Close releases container resources.
func (r *Resolver) Close() error {
	var errs []error
	for i := range r.containers {
		if src, ok := r.sources.Peek(i); ok {
			if c, ok := src.(io.Closer); ok {
				errs = append(errs, c.Close())
			}
		}
	}
	return errors.Join(errs...)
}

// Unresolved aggregates every report of one unresolvable UID.
type Unresolved struct {
	UID         string
	DisplayText string
	Documents   []string
	Count       int
}

// Placeholder returns the descriptor used to render an unresolved UID.
func (u Unresolved) Placeholder() Spec {
	b := NewBuilder(u.UID)
	if u.DisplayText != "" {
		b.Name(u.DisplayText)
	} else {
		b.Name(u.UID)
	}
	s := b.Build()
	s.IsSpec = false
	return s
}

// ReportUnresolved records that fromDocument references uid and nothing
// resolved it. The returned placeholder keeps displayText for rendering.
func (r *Resolver) ReportUnresolved(uid, fromDocument, displayText string) Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.unresolved[uid]
	if !ok {
		u = &Unresolved{UID: uid, DisplayText: displayText}
		r.unresolved[uid] = u
	}
	if u.DisplayText == "" {
		u.DisplayText = displayText
	}
	u.Count++
	if fromDocument != "" && !slices.Contains(u.Documents, fromDocument) {
		u.Documents = append(u.Documents, fromDocument)
	}
	return u.Placeholder()
}

// ResolveExternalForUnresolved retries every reported UID against the now
// complete registry and the still open containers. Memoized misses are
// forgotten first so the containers are queried again. Resolved UIDs are
// removed from the unresolved set and returned; the rest are returned
// sorted by UID.
func (r *Resolver) ResolveExternalForUnresolved(ctx context.Context) (resolved map[string]Spec, remaining []Unresolved) {
	r.mu.Lock()
	pending := make([]*Unresolved, 0, len(r.unresolved))
	for _, u := range r.unresolved {
		pending = append(pending, u)
	}
	r.mu.Unlock()

	resolved = make(map[string]Spec)
	for _, u := range pending {
		if ctx.Err() != nil {
			break
		}
		if res, ok := r.results.Peek(u.UID); ok && !res.Found {
			r.results.Remove(u.UID)
		}
		if spec, ok := r.Find(ctx, u.UID); ok {
			resolved[u.UID] = spec
		}
	}

	r.mu.Lock()
	for uid := range resolved {
		delete(r.unresolved, uid)
	}
	for _, u := range r.unresolved {
		cp := *u
		cp.Documents = slices.Clone(u.Documents)
		slices.Sort(cp.Documents)
		remaining = append(remaining, cp)
	}
	r.mu.Unlock()

	slices.SortFunc(remaining, func(a, b Unresolved) int { return strings.Compare(a.UID, b.UID) })
	return resolved, remaining
}
