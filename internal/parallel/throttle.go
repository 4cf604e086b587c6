package parallel

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"git.home.luguber.info/inful/docweave/internal/metrics"
)

// ResourceKind selects one of the independent permit pools.
type ResourceKind int

const (
	// None acquires nothing; the guard is a pass-through.
	None ResourceKind = iota
	CPU
	DiskIO
	NetworkIO
)

func (k ResourceKind) String() string {
	switch k {
	case CPU:
		return "cpu"
	case DiskIO:
		return "disk_io"
	case NetworkIO:
		return "network_io"
	default:
		return "none"
	}
}

// Limits configures permit counts; non-positive values select defaults.
type Limits struct {
	CPU       int
	DiskIO    int
	NetworkIO int
}

// Throttle owns the three permit pools.
type Throttle struct {
	pools    [4]chan struct{}
	inUse    [4]atomic.Int64
	recorder metrics.Recorder
}

// NewThrottle creates a throttle. Defaults: CPU = GOMAXPROCS, disk = 2*GOMAXPROCS,
// network = 16.
func NewThrottle(limits Limits, recorder metrics.Recorder) *Throttle {
	procs := runtime.GOMAXPROCS(0)
	if limits.CPU <= 0 {
		limits.CPU = procs
	}
	if limits.DiskIO <= 0 {
		limits.DiskIO = 2 * procs
	}
	if limits.NetworkIO <= 0 {
		limits.NetworkIO = 16
	}
	t := &Throttle{recorder: metrics.OrNoop(recorder)}
	t.pools[CPU] = make(chan struct{}, limits.CPU)
	t.pools[DiskIO] = make(chan struct{}, limits.DiskIO)
	t.pools[NetworkIO] = make(chan struct{}, limits.NetworkIO)
	return t
}

// Capacity returns the permit count of a pool (0 for None).
func (t *Throttle) Capacity(kind ResourceKind) int {
	if kind == None {
		return 0
	}
	return cap(t.pools[kind])
}

// InUse returns the currently held permits of a pool.
func (t *Throttle) InUse(kind ResourceKind) int {
	return int(t.inUse[kind].Load())
}

func (t *Throttle) acquire(ctx context.Context, kind ResourceKind) error {
	if kind == None {
		return nil
	}
	select {
	case t.pools[kind] <- struct{}{}:
		t.recorder.SetPermitsInUse(kind.String(), int(t.inUse[kind].Add(1)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Throttle) release(kind ResourceKind) {
	if kind == None {
		return
	}
	t.recorder.SetPermitsInUse(kind.String(), int(t.inUse[kind].Add(-1)))
	<-t.pools[kind]
}

// Guard is a scoped permit. Release is idempotent and safe on every exit path.
type Guard struct {
	mu    sync.Mutex
	t     *Throttle
	kind  ResourceKind
	owned bool
}

// Kind returns the pool the guard currently holds (None for pass-through).
func (g *Guard) Kind() ResourceKind {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.owned {
		return None
	}
	return g.kind
}

// Release returns the permit, if any.
func (g *Guard) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.owned {
		g.t.release(g.kind)
		g.owned = false
	}
}

// Transfer moves the guard to another pool. The new permit is acquired before
// the old one is released, so there is no window in which neither is held.
// On error the guard keeps its current permit. When ctx already carries a
// guard of kind, the guard becomes a pass-through like Acquire returns.
func (g *Guard) Transfer(ctx context.Context, kind ResourceKind) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.owned && g.kind == kind {
		return nil
	}
	if g.t == nil || kind == None || ctx.Value(guardKey{kind}) != nil {
		if g.owned {
			g.t.release(g.kind)
		}
		g.kind = kind
		g.owned = false
		return nil
	}
	if err := g.t.acquire(ctx, kind); err != nil {
		return err
	}
	if g.owned {
		g.t.release(g.kind)
	}
	g.kind = kind
	g.owned = kind != None
	return nil
}

type guardKey struct{ kind ResourceKind }

// Acquire takes a permit of kind. If ctx already carries a guard of the same
// kind (see WithGuard) the returned guard is a pass-through, so nested scopes
// do not consume a second permit. A nil Throttle never blocks.
func (t *Throttle) Acquire(ctx context.Context, kind ResourceKind) (*Guard, error) {
	if t == nil || kind == None || ctx.Value(guardKey{kind}) != nil {
		return &Guard{t: t, kind: kind}, nil
	}
	if err := t.acquire(ctx, kind); err != nil {
		return nil, err
	}
	return &Guard{t: t, kind: kind, owned: true}, nil
}

// WithGuard marks ctx as holding g's kind for nested acquisitions.
func WithGuard(ctx context.Context, g *Guard) context.Context {
	kind := g.Kind()
	if kind == None {
		return ctx
	}
	return context.WithValue(ctx, guardKey{kind}, g)
}

// Do runs fn while holding a permit of kind and releases it on every exit path.
func (t *Throttle) Do(ctx context.Context, kind ResourceKind, fn func(ctx context.Context) error) error {
	g, err := t.Acquire(ctx, kind)
	if err != nil {
		return err
	}
	defer g.Release()
	return fn(WithGuard(ctx, g))
}
