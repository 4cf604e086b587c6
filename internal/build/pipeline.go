package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	ferrors "git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/logfields"
	"git.home.luguber.info/inful/docweave/internal/metrics"
	"git.home.luguber.info/inful/docweave/internal/model"
	"git.home.luguber.info/inful/docweave/internal/parallel"
)

// Group is the set of documents driven through one ordered step list,
// normally everything a single processor loaded.
type Group struct {
	Name      string
	Steps     []Step
	Documents []*model.Document
	// OutputPath plans output paths once Build completes. Nil leaves
	// documents without an output path.
	OutputPath func(*model.Document) string
	// Failed is set when a step failed structurally for the whole group.
	Failed bool
}

// NewGroup builds the pipeline group of processor p.
func NewGroup(p Processor, docs []*model.Document) *Group {
	return &Group{Name: p.Name(), Steps: p.Steps(), Documents: docs, OutputPath: p.OutputPath}
}

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	MaxParallelism int
	// Throttle gates Build step execution on CPU permits; nil disables it.
	Throttle *parallel.Throttle
	Observer Observer
	Logger   *slog.Logger
}

// Pipeline runs groups through Prebuild, Build and Postbuild. Every group
// finishes a phase before any group starts the next one.
type Pipeline struct {
	maxParallelism int
	throttle       *parallel.Throttle
	observer       Observer
	logger         *slog.Logger
}

// NewPipeline creates a pipeline.
func NewPipeline(opts PipelineOptions) *Pipeline {
	p := &Pipeline{
		maxParallelism: opts.MaxParallelism,
		throttle:       opts.Throttle,
		observer:       opts.Observer,
		logger:         opts.Logger,
	}
	if p.maxParallelism <= 0 {
		p.maxParallelism = parallel.DefaultMaxParallelism
	}
	if p.observer == nil {
		p.observer = NoopObserver{}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

type run struct {
	*Pipeline
	bc         *Context
	logger     *slog.Logger
	registered map[model.UIDDefinition]bool
	durations  map[Phase]time.Duration
}

// Run executes the three phases over groups, replacing each group's
// documents with the revised set, and returns the phase durations. Step
// failures become diagnostics on bc; the only error returned is cancellation.
func (p *Pipeline) Run(ctx context.Context, bc *Context, groups []*Group) (map[Phase]time.Duration, error) {
	r := &run{
		Pipeline:   p,
		bc:         bc,
		logger:     p.logger.With(logfields.BuildID(bc.BuildID)),
		registered: make(map[model.UIDDefinition]bool),
		durations:  make(map[Phase]time.Duration),
	}
	for _, g := range groups {
		g.Steps = SortSteps(g.Steps)
	}

	phases := []struct {
		phase Phase
		fn    func(context.Context, []*Group) error
	}{
		{PhasePrebuild, r.prebuild},
		{PhaseBuild, r.build},
		{PhasePostbuild, r.postbuild},
	}
	for _, ph := range phases {
		if err := ctx.Err(); err != nil {
			return r.durations, r.canceled(ph.phase, err)
		}
		p.observer.OnPhaseStart(ph.phase)
		r.logger.Debug("Phase started", logfields.Phase(string(ph.phase)))
		t0 := time.Now()
		err := ph.fn(ctx, groups)
		d := time.Since(t0)
		r.durations[ph.phase] = d
		p.observer.OnPhaseComplete(ph.phase, d)
		r.logger.Info("Phase completed", logfields.Phase(string(ph.phase)), logfields.DurationMS(float64(d.Milliseconds())))
		if err != nil {
			return r.durations, r.canceled(ph.phase, err)
		}
	}
	return r.durations, nil
}

func (r *run) canceled(phase Phase, cause error) error {
	r.bc.Diagnostics().Add(Diagnostic{
		Kind:    DiagCanceled,
		Message: fmt.Sprintf("build canceled during %s", phase),
		Phase:   phase,
		Err:     cause,
	})
	return ferrors.CanceledError(cause, "build canceled").
		WithContext("phase", string(phase)).Build()
}

func (r *run) prebuild(ctx context.Context, groups []*Group) error {
	err := parallel.RunBounded(ctx, groups, len(groups), func(ctx context.Context, g *Group) error {
		for _, st := range g.Steps {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var out []*model.Document
			err := r.timed(PhasePrebuild, st, func() error {
				var err error
				out, err = st.Prebuild(ctx, r.bc, g.Documents)
				return err
			})
			if err != nil {
				r.failGroup(g, PhasePrebuild, st, err)
				return nil
			}
			g.Documents = out
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.registerUIDs(groups)
	return nil
}

func (r *run) build(ctx context.Context, groups []*Group) error {
	type item struct {
		group *Group
		doc   *model.Document
	}
	var items []item
	for _, g := range groups {
		if g.Failed {
			continue
		}
		for _, d := range g.Documents {
			items = append(items, item{g, d})
		}
	}

	var (
		mu     sync.Mutex
		failed = make(map[*model.Document]bool)
	)
	err := parallel.RunBounded(ctx, items, r.maxParallelism, func(ctx context.Context, it item) error {
		for _, st := range it.group.Steps {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := r.throttle.Do(ctx, parallel.CPU, func(ctx context.Context) error {
				return r.timed(PhaseBuild, st, func() error { return st.Build(ctx, r.bc, it.doc) })
			})
			if err == nil {
				continue
			}
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return err
			}
			r.bc.Diagnostics().Add(Diagnostic{
				Kind:     DiagDocumentFailure,
				Message:  fmt.Sprintf("step %s failed: %v", st.Name(), err),
				Phase:    PhaseBuild,
				Step:     st.Name(),
				Group:    it.group.Name,
				Document: it.doc.Key,
				Err:      err,
			})
			r.logger.Warn("Document failed",
				logfields.Step(st.Name()), logfields.Document(it.doc.Key), logfields.Error(err))
			mu.Lock()
			failed[it.doc] = true
			mu.Unlock()
			return nil
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, g := range groups {
		g.Documents = slices.DeleteFunc(g.Documents, func(d *model.Document) bool { return failed[d] })
	}
	r.registerUIDs(groups)
	r.planOutputPaths(groups)
	return nil
}

func (r *run) postbuild(ctx context.Context, groups []*Group) error {
	return parallel.RunBounded(ctx, groups, len(groups), func(ctx context.Context, g *Group) error {
		if g.Failed {
			return nil
		}
		for _, st := range g.Steps {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := r.timed(PhasePostbuild, st, func() error { return st.Postbuild(ctx, r.bc, g.Documents) }); err != nil {
				r.failGroup(g, PhasePostbuild, st, err)
				return nil
			}
		}
		return nil
	})
}

// timed runs fn, converting panics to errors and reporting the step result.
func (r *run) timed(phase Phase, st Step, fn func() error) (err error) {
	t0 := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = ferrors.PipelineError(fmt.Sprintf("step %s panicked: %v", st.Name(), rec)).
				WithContext("stack", string(debug.Stack())).Build()
		}
		result := metrics.ResultSuccess
		if err != nil {
			result = metrics.ResultFailed
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				result = metrics.ResultCanceled
			}
		}
		r.observer.OnStepComplete(phase, st.Name(), time.Since(t0), result)
	}()
	return fn()
}

func (r *run) failGroup(g *Group, phase Phase, st Step, err error) {
	g.Failed = true
	r.bc.Diagnostics().Add(Diagnostic{
		Kind:    DiagStructuralFailure,
		Message: fmt.Sprintf("%s step %s failed for group %s: %v", phase, st.Name(), g.Name, err),
		Phase:   phase,
		Step:    st.Name(),
		Group:   g.Name,
		Err:     err,
	})
	r.logger.Error("Group aborted", logfields.Phase(string(phase)), logfields.Step(st.Name()),
		logfields.Group(g.Name), logfields.Error(err))
}

// registerUIDs claims every not yet registered definition. Groups are
// visited in declaration order and documents by key so the winner of a
// duplicate does not depend on scheduling.
func (r *run) registerUIDs(groups []*Group) {
	for _, g := range groups {
		if g.Failed {
			continue
		}
		for _, d := range sortedByKey(g.Documents) {
			for _, def := range d.UIDs {
				if r.registered[def] {
					continue
				}
				r.registered[def] = true
				r.bc.RegisterUID(def)
			}
		}
	}
}

func (r *run) planOutputPaths(groups []*Group) {
	for _, g := range groups {
		if g.Failed || g.OutputPath == nil {
			continue
		}
		for _, d := range sortedByKey(g.Documents) {
			out := g.OutputPath(d)
			if out == "" {
				continue
			}
			if d.Group != "" {
				dest := d.Group
				if info, ok := r.bc.Group(d.Group); ok && info.Destination != "" {
					dest = strings.Trim(info.Destination, "/")
				}
				out = path.Join(dest, strings.TrimPrefix(out, d.Group+"/"))
			}
			r.bc.SetOutputPath(d.Key, out)
		}
	}
}

func sortedByKey(docs []*model.Document) []*model.Document {
	out := slices.Clone(docs)
	slices.SortStableFunc(out, func(a, b *model.Document) int { return strings.Compare(a.Key, b.Key) })
	return out
}
