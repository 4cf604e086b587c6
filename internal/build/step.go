package build

import (
	"context"
	"slices"

	"git.home.luguber.info/inful/docweave/internal/model"
)

// Phase names one of the three pipeline barriers.
type Phase string

const (
	PhasePrebuild  Phase = "prebuild"
	PhaseBuild     Phase = "build"
	PhasePostbuild Phase = "postbuild"
)

// Phases lists the phases in execution order.
var Phases = []Phase{PhasePrebuild, PhaseBuild, PhasePostbuild}

// Step is one unit of work a processor contributes to the pipeline.
//
// Prebuild sees every document of its group and returns the revised set.
// Build transforms one document and may run concurrently with Build calls
// for sibling documents. Postbuild sees the whole group once the build
// context is complete.
type Step interface {
	Name() string
	BuildOrder() int
	Prebuild(ctx context.Context, bc *Context, docs []*model.Document) ([]*model.Document, error)
	Build(ctx context.Context, bc *Context, doc *model.Document) error
	Postbuild(ctx context.Context, bc *Context, docs []*model.Document) error
}

// BaseStep implements Step with no-ops; embed it and override what is needed.
type BaseStep struct {
	StepName string
	Order    int
}

func (s BaseStep) Name() string    { return s.StepName }
func (s BaseStep) BuildOrder() int { return s.Order }

func (BaseStep) Prebuild(_ context.Context, _ *Context, docs []*model.Document) ([]*model.Document, error) {
	return docs, nil
}

func (BaseStep) Build(context.Context, *Context, *model.Document) error { return nil }

func (BaseStep) Postbuild(context.Context, *Context, []*model.Document) error { return nil }

// SortSteps orders steps by BuildOrder, keeping declaration order for ties.
func SortSteps(steps []Step) []Step {
	out := slices.Clone(steps)
	slices.SortStableFunc(out, func(a, b Step) int { return a.BuildOrder() - b.BuildOrder() })
	return out
}
