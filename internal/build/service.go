package build

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docweave/internal/config"
	ferrors "git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/logfields"
	"git.home.luguber.info/inful/docweave/internal/manifest"
	"git.home.luguber.info/inful/docweave/internal/metrics"
	"git.home.luguber.info/inful/docweave/internal/model"
	"git.home.luguber.info/inful/docweave/internal/parallel"
	"git.home.luguber.info/inful/docweave/internal/xref"
)

// BuildService is the entry point used by the CLI and the watcher.
type BuildService interface {
	Run(ctx context.Context, req BuildRequest) (*BuildResult, error)
}

// BuildRequest contains all inputs required to execute a documentation build.
type BuildRequest struct {
	Config *config.Config
	// OutputDir overrides Config.Output.Directory when set.
	OutputDir string
	// BuildID is generated when empty.
	BuildID string
}

// BuildResult contains the outcome of a build execution.
type BuildResult struct {
	Status     BuildStatus
	Report     *Report
	Manifest   *manifest.BuildManifest
	OutputPath string
	Documents  int
	Duration   time.Duration
	StartTime  time.Time
	EndTime    time.Time
}

// BuildStatus represents the outcome of a build execution.
type BuildStatus string

const (
	BuildStatusSuccess   BuildStatus = "success"
	BuildStatusFailed    BuildStatus = "failed"
	BuildStatusCancelled BuildStatus = "cancelled"
)

// IsSuccess returns true if the build completed successfully.
func (s BuildStatus) IsSuccess() bool { return s == BuildStatusSuccess }

// DefaultBuildService wires processors, containers and the pipeline.
type DefaultBuildService struct {
	processors []Processor
	containers []xref.Container
	deps       ContainerDeps
	recorder   metrics.Recorder
	observer   Observer
	events     EventAppender
	logger     *slog.Logger
	explicit   bool
}

// NewBuildService creates a service over processors, in priority tie order.
func NewBuildService(processors ...Processor) *DefaultBuildService {
	return &DefaultBuildService{processors: processors, recorder: metrics.NoopRecorder{}, logger: slog.Default()}
}

// WithContainers replaces the containers derived from configuration.
func (s *DefaultBuildService) WithContainers(containers ...xref.Container) *DefaultBuildService {
	s.containers = containers
	s.explicit = true
	return s
}

// WithContainerDeps sets collaborators used for configured containers.
func (s *DefaultBuildService) WithContainerDeps(deps ContainerDeps) *DefaultBuildService {
	s.deps = deps
	return s
}

// WithRecorder sets the metrics recorder.
func (s *DefaultBuildService) WithRecorder(r metrics.Recorder) *DefaultBuildService {
	s.recorder = metrics.OrNoop(r)
	return s
}

// WithObserver adds an observer next to the metrics one.
func (s *DefaultBuildService) WithObserver(o Observer) *DefaultBuildService {
	s.observer = o
	return s
}

// WithEventStore appends build events to store.
func (s *DefaultBuildService) WithEventStore(store EventAppender) *DefaultBuildService {
	s.events = store
	return s
}

// WithLogger sets the logger.
func (s *DefaultBuildService) WithLogger(l *slog.Logger) *DefaultBuildService {
	if l != nil {
		s.logger = l
	}
	return s
}

// Run loads every discovered file, runs the pipeline, saves the outputs and
// writes the reference map, manifest and report.
func (s *DefaultBuildService) Run(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	cfg := req.Config
	if cfg == nil {
		return nil, ferrors.ValidationError("build request has no configuration").Build()
	}
	buildID := req.BuildID
	if buildID == "" {
		buildID = uuid.NewString()
	}
	outDir := req.OutputDir
	if outDir == "" {
		outDir = cfg.Output.Directory
	}
	logger := s.logger.With(logfields.BuildID(buildID))
	report := NewReport(buildID)
	result := &BuildResult{StartTime: report.Start, OutputPath: outDir, Report: report}

	throttle := parallel.NewThrottle(parallel.Limits{
		CPU:       cfg.Build.CPUPermits,
		DiskIO:    cfg.Build.DiskPermits,
		NetworkIO: cfg.Build.NetworkPermits,
	}, s.recorder)

	observer := Observers(RecorderObserver(s.recorder), s.observer)
	if s.events != nil {
		observer = Observers(observer, EventObserver(s.events, buildID, logger))
	}

	containers := s.containers
	if !s.explicit {
		deps := s.deps
		deps.Throttle, deps.Recorder = throttle, s.recorder
		if deps.Logger == nil {
			deps.Logger = logger
		}
		containers = ContainersFromConfig(cfg, deps)
	}

	groups := make([]GroupInfo, 0, len(cfg.Build.Groups))
	for _, g := range cfg.Build.Groups {
		groups = append(groups, GroupInfo{Name: g.Name, Destination: g.Destination, Metadata: g.Metadata})
	}
	bc := NewContext(ContextOptions{
		BuildID:      buildID,
		Logger:       logger,
		Containers:   containers,
		Groups:       groups,
		Resolver:     xref.Options{Recorder: s.recorder},
		OnDiagnostic: observer.OnDiagnostic,
	})
	defer func() {
		if err := bc.Resolver().Close(); err != nil {
			logger.Debug("Closing reference containers failed", logfields.Error(err))
		}
	}()

	logger.Info("Build started", logfields.Path(outDir), logfields.Count(len(containers)))
	files, err := Discover(cfg)
	if err != nil {
		return s.finish(result, report, bc, observer, outDir, err)
	}
	pgroups, err := s.load(ctx, bc, throttle, cfg.Build.MaxParallelism, files)
	if err != nil {
		return s.finish(result, report, bc, observer, outDir, err)
	}
	for _, g := range pgroups {
		for _, d := range g.Documents {
			report.Documents[d.Kind]++
		}
	}

	pipeline := NewPipeline(PipelineOptions{
		MaxParallelism: cfg.Build.MaxParallelism,
		Throttle:       throttle,
		Observer:       observer,
		Logger:         logger,
	})
	durations, err := pipeline.Run(ctx, bc, pgroups)
	for p, d := range durations {
		report.PhaseDurations[p] = d
	}
	if err != nil {
		return s.finish(result, report, bc, observer, outDir, err)
	}

	if cfg.Output.Clean {
		if err := cleanOutput(outDir); err != nil {
			return s.finish(result, report, bc, observer, outDir, err)
		}
	}
	mf := &manifest.BuildManifest{ID: buildID, Timestamp: report.Start, ConfigHash: configHash(cfg)}
	written, err := s.save(ctx, bc, throttle, cfg.Build.MaxParallelism, outDir, pgroups, mf)
	report.Written = written
	result.Documents = written
	if err != nil {
		return s.finish(result, report, bc, observer, outDir, err)
	}

	s.reportUnresolved(ctx, bc, logger)
	if err := writeXRefMap(bc, outDir, cfg.Output.BaseURL); err != nil {
		return s.finish(result, report, bc, observer, outDir, err)
	}
	mf.Containers = bc.Resolver().Available()
	result.Manifest = mf

	res, err := s.finish(result, report, bc, observer, outDir, nil)
	if err != nil {
		return res, err
	}
	mf.Status = string(report.Outcome)
	mf.Duration = report.End.Sub(report.Start).Milliseconds()
	if data, err := mf.ToJSON(); err == nil {
		if err := writeAtomic(filepath.Join(outDir, manifest.FileName), data); err != nil {
			logger.Warn("Failed to write manifest", logfields.Error(err))
		}
	}
	return res, s.policyError(cfg, report)
}

// load dispatches files to processors and loads them under disk permits.
// Load failures are reported per document.
func (s *DefaultBuildService) load(ctx context.Context, bc *Context, throttle *parallel.Throttle, maxPar int, files []File) ([]*Group, error) {
	type loaded struct {
		proc int
		doc  *model.Document
	}
	results := make([]loaded, len(files))
	idx := make([]int, len(files))
	for i := range idx {
		idx[i] = i
	}
	err := parallel.RunBounded(ctx, idx, maxPar, func(ctx context.Context, i int) error {
		f := files[i]
		results[i].proc = -1
		pi := dispatchIndex(s.processors, f)
		if pi < 0 {
			bc.Logger.Debug("No processor for file", logfields.Document(f.Key))
			return nil
		}
		proc := s.processors[pi]
		var doc *model.Document
		err := throttle.Do(ctx, parallel.DiskIO, func(context.Context) error {
			var err error
			doc, err = proc.Load(f)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			bc.Diagnostics().Add(Diagnostic{
				Kind:     DiagDocumentFailure,
				Message:  fmt.Sprintf("load failed: %v", err),
				Group:    proc.Name(),
				Document: f.Key,
				Err:      err,
			})
			return nil
		}
		doc.Group = f.Group
		results[i] = loaded{proc: pi, doc: doc}
		return nil
	})
	if err != nil {
		bc.Diagnostics().Add(Diagnostic{Kind: DiagCanceled, Message: "build canceled while loading", Err: err})
		return nil, ferrors.CanceledError(err, "build canceled").
			WithContext("phase", "load").Build()
	}

	byProc := make([][]*model.Document, len(s.processors))
	for _, r := range results {
		if r.doc != nil && r.proc >= 0 {
			byProc[r.proc] = append(byProc[r.proc], r.doc)
		}
	}
	groups := make([]*Group, 0, len(s.processors))
	for i, p := range s.processors {
		groups = append(groups, NewGroup(p, byProc[i]))
	}
	return groups, nil
}

// save writes every surviving document and publishes its descriptors.
func (s *DefaultBuildService) save(ctx context.Context, bc *Context, throttle *parallel.Throttle, maxPar int, outDir string, groups []*Group, mf *manifest.BuildManifest) (int, error) {
	type item struct {
		proc Processor
		doc  *model.Document
	}
	var items []item
	for i, g := range groups {
		if g.Failed {
			continue
		}
		for _, d := range g.Documents {
			items = append(items, item{s.processors[i], d})
		}
	}

	var (
		mu      sync.Mutex
		written int
	)
	err := parallel.RunBounded(ctx, items, maxPar, func(ctx context.Context, it item) error {
		res, err := it.proc.Save(bc, it.doc)
		if err != nil {
			bc.Diagnostics().Add(Diagnostic{
				Kind:     DiagDocumentFailure,
				Message:  fmt.Sprintf("save failed: %v", err),
				Group:    it.proc.Name(),
				Document: it.doc.Key,
				Err:      err,
			})
			return nil
		}
		for _, spec := range res.XRefSpecs {
			bc.PublishXRefSpec(it.doc.Key, spec)
		}
		out := res.OutputPath
		if planned, ok := bc.OutputPath(it.doc.Key); ok {
			out = planned
		} else if out != "" && !bc.SetOutputPath(it.doc.Key, out) {
			return nil
		}
		if out == "" || res.Content == nil {
			return nil
		}
		err = throttle.Do(ctx, parallel.DiskIO, func(context.Context) error {
			target := filepath.Join(outDir, filepath.FromSlash(out))
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			return os.WriteFile(target, res.Content, 0o644)
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			werr := ferrors.WrapError(err, ferrors.CategoryFileSystem, "write output").
				WithContext("path", out).Build()
			bc.Diagnostics().Add(Diagnostic{
				Kind:     DiagDocumentFailure,
				Message:  fmt.Sprintf("write %s failed: %v", out, err),
				Group:    it.proc.Name(),
				Document: it.doc.Key,
				Err:      werr,
			})
			return nil
		}

		fp := res.Fingerprint
		if fp == "" {
			fp = manifest.Fingerprint("", string(res.Content))
		}
		uids := make([]string, 0, len(it.doc.UIDs))
		for _, def := range it.doc.UIDs {
			uids = append(uids, def.Name)
		}
		mu.Lock()
		written++
		mf.Add(manifest.Entry{
			Key:         it.doc.Key,
			Kind:        string(it.doc.Kind),
			Group:       it.doc.Group,
			OutputPath:  out,
			Fingerprint: fp,
			UIDs:        uids,
			References:  it.doc.UIDReferences(),
			Dangling:    res.DanglingLinks,
		})
		mu.Unlock()
		return nil
	})
	return written, err
}

// reportUnresolved retries every placeholder once more, then folds the
// remainder into a single diagnostic.
func (s *DefaultBuildService) reportUnresolved(ctx context.Context, bc *Context, logger *slog.Logger) {
	resolved, remaining := bc.Resolver().ResolveExternalForUnresolved(ctx)
	if len(resolved) > 0 {
		logger.Info("References resolved on final pass", logfields.Count(len(resolved)))
	}
	if len(remaining) == 0 {
		return
	}
	parts := make([]string, 0, len(remaining))
	locations := make([]string, 0, len(remaining))
	for _, u := range remaining {
		parts = append(parts, fmt.Sprintf("%s (%d)", u.UID, u.Count))
		locations = append(locations, u.Documents...)
	}
	slices.Sort(locations)
	bc.Diagnostics().Add(Diagnostic{
		Kind:      DiagUnresolvedReference,
		Message:   fmt.Sprintf("%d unresolved references: %s", len(remaining), strings.Join(parts, ", ")),
		Locations: slices.Compact(locations),
	})
}

func (s *DefaultBuildService) finish(result *BuildResult, report *Report, bc *Context, observer Observer, outDir string, cause error) (*BuildResult, error) {
	report.AddDiagnostics(bc.Diagnostics().All()...)
	if cause != nil && !ferrors.HasCategory(cause, ferrors.CategoryCanceled) {
		report.AddDiagnostics(Diagnostic{Kind: DiagStructuralFailure, Severity: ferrors.SeverityFatal, Message: cause.Error(), Err: cause})
	}
	report.Finish()
	observer.OnBuildComplete(report)
	if err := report.Persist(outDir); err != nil {
		s.logger.Warn("Failed to persist build report", logfields.Error(err))
	}

	result.EndTime = report.End
	result.Duration = report.End.Sub(report.Start)
	switch report.Outcome {
	case OutcomeCanceled:
		result.Status = BuildStatusCancelled
	case OutcomeFailed:
		result.Status = BuildStatusFailed
	default:
		result.Status = BuildStatusSuccess
	}
	s.logger.Info("Build finished", logfields.BuildID(report.BuildID), slog.String("summary", report.Summary()))
	return result, cause
}

// policyError applies the driver policy for degraded builds.
func (s *DefaultBuildService) policyError(cfg *config.Config, report *Report) error {
	var reasons []string
	if cfg.Build.FailOnDuplicateUID && report.Count(DiagDuplicateUID) > 0 {
		reasons = append(reasons, fmt.Sprintf("%d duplicate UIDs", report.Count(DiagDuplicateUID)))
	}
	if cfg.Build.FailOnUnresolved && report.Count(DiagUnresolvedReference) > 0 {
		reasons = append(reasons, "unresolved references")
	}
	if report.Outcome == OutcomeFailed {
		reasons = append(reasons, fmt.Sprintf("failed groups: %s", strings.Join(report.FailedGroups, ", ")))
	}
	if len(reasons) == 0 {
		return nil
	}
	return ferrors.NewError(ferrors.CategoryBuild, "build failed: "+strings.Join(reasons, "; ")).
		WithContext("build_id", report.BuildID).Build()
}

func writeXRefMap(bc *Context, outDir, baseURL string) error {
	m := &xref.Map{BaseURL: baseURL, HrefUpdated: baseURL == ""}
	for _, uid := range bc.UIDs() {
		if spec, ok := bc.LookupLocal(uid); ok {
			m.References = append(m.References, spec)
		}
	}
	m.Sort()
	data, err := m.Encode(xref.FormatYAML)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryXRef, "encode reference map").Build()
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create output directory").Build()
	}
	if err := writeAtomic(filepath.Join(outDir, xref.MapFileName), data); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "write reference map").Build()
	}
	return nil
}

func cleanOutput(dir string) error {
	if dir == "" || dir == "/" || dir == "." {
		return ferrors.ValidationError("refusing to clean output directory").WithContext("dir", dir).Build()
	}
	if err := os.RemoveAll(dir); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "clean output directory").Build()
	}
	return nil
}

func configHash(cfg *config.Config) string {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%x", sha256.Sum256(data))
}
