// Package scaffold runs the module generation pipeline: it validates the
// request, creates the module tree, writes every rendered artifact, optionally
// creates the storage model and finally patches the registry.
//
// Every directory and file the pipeline creates is recorded in a ledger. When
// a step fails, the ledger is rolled back in reverse order before the error is
// returned, so a failed run leaves the project as it found it. The registry
// patch runs last and is never rolled back.
package scaffold

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/simonhull/firebird-suite/fledge/generator"
	"github.com/simonhull/firebird-suite/forge/internal/config"
	"github.com/simonhull/firebird-suite/forge/internal/layout"
	"github.com/simonhull/firebird-suite/forge/internal/model"
	"github.com/simonhull/firebird-suite/forge/internal/patch"
	"github.com/simonhull/firebird-suite/forge/internal/props"
	"github.com/simonhull/firebird-suite/forge/internal/render"
)

// Step names, in execution order.
const (
	StepValidate     = "validate"
	StepBase         = "base"
	StepParse        = "parse"
	StepRender       = "render"
	StepDirectories  = "directories"
	StepEnums        = "enums"
	StepValueObjects = "value-objects"
	StepDomainFiles  = "domain-files"
	StepModel        = "model"
	StepRegistry     = "registry"
)

var (
	ErrInvalidModuleName = errors.New("invalid module name")
	ErrNotWritable       = errors.New("path is not writable")
	ErrCancelled         = errors.New("cancelled by user")
)

// MaxModuleNameLength bounds module names.
const MaxModuleNameLength = 50

var moduleNamePattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)

// StepError reports the step a run failed in, after rollback.
type StepError struct {
	Step     string
	Err      error
	Rollback generator.RollbackReport
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Request describes one module to generate.
type Request struct {
	Name string
	// Props is the raw property declaration list.
	Props  string
	Model  bool
	DryRun bool
}

// Scaffolder generates modules inside one project.
type Scaffolder struct {
	fs       afero.Fs
	cfg      *config.Config
	renderer *render.Renderer
	resolver *generator.Resolver
	creator  model.Creator
	log      *zap.Logger

	// beforeStep runs ahead of every step; tests use it to inject failures.
	beforeStep func(step string) error
}

// Option configures a Scaffolder.
type Option func(*Scaffolder)

func WithRenderer(r *render.Renderer) Option { return func(s *Scaffolder) { s.renderer = r } }

func WithResolver(r *generator.Resolver) Option { return func(s *Scaffolder) { s.resolver = r } }

func WithModelCreator(c model.Creator) Option { return func(s *Scaffolder) { s.creator = c } }

func WithLogger(l *zap.Logger) Option { return func(s *Scaffolder) { s.log = l } }

// New creates a Scaffolder working on fsys, with paths relative to the
// project root.
func New(fsys afero.Fs, cfg *config.Config, opts ...Option) *Scaffolder {
	s := &Scaffolder{fs: fsys, cfg: cfg, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.renderer == nil {
		s.renderer = render.New(render.Options{
			Router: cfg.Router,
			Rules:  render.RuleOptions{NameHeuristics: cfg.Rules.NameHeuristics},
			Logger: s.log,
		})
	}
	if s.resolver == nil {
		s.resolver = generator.NewResolverWithStrategy(generator.FailStrategy{})
	}
	if s.creator == nil {
		s.creator = model.BuiltinCreator{Fs: fsys, Dir: cfg.Storage.ModelsPath, Renderer: s.renderer}
	}
	return s
}

// run is the state shared by the steps of one invocation.
type run struct {
	req    Request
	module layout.Module
	props  props.Result
	plan   *render.Plan
	ledger *generator.Ledger
	report *Report
	log    *zap.Logger
}

func (r *run) warn(msg string) {
	r.report.Warnings = append(r.report.Warnings, msg)
	r.log.Debug("warning", zap.String("message", msg))
}

type step struct {
	name string
	fn   func(context.Context, *run) error
}

func (s *Scaffolder) steps() []step {
	return []step{
		{StepValidate, s.validate},
		{StepBase, s.ensureBase},
		{StepParse, s.parse},
		{StepRender, s.renderPlan},
		{StepDirectories, s.directories},
		{StepEnums, s.writeGroup(render.GroupEnums)},
		{StepValueObjects, s.writeGroup(render.GroupValueObjects)},
		{StepDomainFiles, s.writeGroup(render.GroupDomainFiles)},
		{StepModel, s.createModel},
		{StepRegistry, s.patchRegistry},
	}
}

// Run generates the module described by req. On failure everything created
// so far is rolled back and a *StepError is returned together with the
// partial report.
func (s *Scaffolder) Run(ctx context.Context, req Request) (*Report, error) {
	runID := uuid.NewString()
	log := s.log.With(zap.String("run", runID), zap.String("module", req.Name))

	r := &run{
		req:    req,
		ledger: generator.NewLedger(s.fs, log),
		report: &Report{RunID: runID, Module: req.Name, DryRun: req.DryRun},
		log:    log,
	}

	for _, st := range s.steps() {
		err := ctx.Err()
		if err == nil && s.beforeStep != nil {
			err = s.beforeStep(st.name)
		}
		if err == nil {
			log.Debug("step", zap.String("step", st.name))
			err = st.fn(ctx, r)
		}
		if err != nil {
			return r.report, s.fail(r, st.name, err)
		}
	}

	log.Info("module generated", zap.Int("files", len(r.report.Files)), zap.Bool("dry_run", req.DryRun))
	return r.report, nil
}

func (s *Scaffolder) fail(r *run, name string, err error) error {
	rb := r.ledger.Rollback()
	r.log.Warn("step failed, rolled back",
		zap.String("step", name),
		zap.Error(err),
		zap.Int("removed", len(rb.Removed)),
		zap.Int("restored", len(rb.Restored)))
	for _, group := range [][]string{rb.Removed, rb.Restored} {
		r.report.RolledBack = append(r.report.RolledBack, group...)
	}
	return &StepError{Step: name, Err: err, Rollback: rb}
}

func (s *Scaffolder) validate(_ context.Context, r *run) error {
	if !moduleNamePattern.MatchString(r.req.Name) {
		return fmt.Errorf("%w %q: must start with an upper-case letter and contain only letters and digits", ErrInvalidModuleName, r.req.Name)
	}
	if len(r.req.Name) > MaxModuleNameLength {
		return fmt.Errorf("%w %q: longer than %d characters", ErrInvalidModuleName, r.req.Name, MaxModuleNameLength)
	}
	if s.cfg.Module == "" {
		return errors.New("go module path unknown: add a go.mod or set module in forge.yml")
	}
	r.module = layout.New(s.cfg.BasePath, r.req.Name)
	r.report.Root = r.module.Root
	return nil
}

func (s *Scaffolder) ensureBase(_ context.Context, r *run) error {
	base := filepath.FromSlash(s.cfg.BasePath)

	if r.req.DryRun {
		exists, err := afero.DirExists(s.fs, base)
		if err != nil {
			return err
		}
		if !exists {
			r.report.Directories = append(r.report.Directories, base)
		}
		return nil
	}

	created, err := r.ledger.MkdirAll(base, 0o755)
	if err != nil {
		return err
	}
	r.report.Directories = append(r.report.Directories, created...)
	if err := s.probe(base, r.report.RunID); err != nil {
		return err
	}

	exists, err := patch.Exists(s.fs, s.cfg.Registry.Path)
	if err != nil || !exists {
		return err
	}
	f, err := s.fs.OpenFile(s.cfg.Registry.Path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotWritable, s.cfg.Registry.Path, err)
	}
	return f.Close()
}

// probe creates and removes a scratch file to prove dir is writable.
func (s *Scaffolder) probe(dir, runID string) error {
	path := filepath.Join(dir, ".forge-probe-"+runID)
	f, err := s.fs.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotWritable, dir, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotWritable, dir, err)
	}
	if err := s.fs.Remove(path); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotWritable, dir, err)
	}
	return nil
}

func (s *Scaffolder) parse(_ context.Context, r *run) error {
	r.props = props.ParseModule(r.module.Name, r.req.Props)
	for _, w := range r.props.Warnings {
		r.warn(w.String())
	}
	for _, p := range r.props.Properties {
		r.report.Properties = append(r.report.Properties, summarize(p))
	}
	return nil
}

func (s *Scaffolder) renderPlan(_ context.Context, r *run) error {
	plan, warnings, err := s.renderer.PlanModule(r.module, r.props, s.cfg.Module)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		r.warn(w)
	}
	r.plan = plan
	return nil
}

func (s *Scaffolder) directories(_ context.Context, r *run) error {
	for _, dir := range r.module.Directories(len(r.props.Enums) > 0) {
		if r.req.DryRun {
			exists, err := afero.DirExists(s.fs, dir)
			if err != nil {
				return err
			}
			if !exists {
				r.report.Directories = append(r.report.Directories, dir)
			}
			continue
		}
		created, err := r.ledger.MkdirAll(dir, 0o755)
		if err != nil {
			return err
		}
		r.report.Directories = append(r.report.Directories, created...)
	}
	return nil
}

func (s *Scaffolder) writeGroup(group string) func(context.Context, *run) error {
	return func(_ context.Context, r *run) error {
		for _, a := range r.plan.Group(group) {
			action, err := s.write(r, a)
			if err != nil {
				return err
			}
			r.report.Files = append(r.report.Files, FileResult{Path: a.Path, Template: a.Template, Action: action})
		}
		return nil
	}
}

func (s *Scaffolder) write(r *run, a render.Artifact) (Action, error) {
	existing, err := afero.ReadFile(s.fs, a.Path)
	if errors.Is(err, fs.ErrNotExist) {
		if r.req.DryRun {
			return ActionPlanned, nil
		}
		if err := r.ledger.WriteFile(a.Path, a.Content, 0o644); err != nil {
			return "", err
		}
		return ActionCreated, nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", a.Path, err)
	}

	if bytes.Equal(existing, a.Content) {
		return ActionUnchanged, nil
	}
	if r.req.DryRun {
		return ActionConflict, nil
	}

	resolution, err := s.resolver.ResolveConflict(a.Path, existing, a.Content)
	if err != nil {
		return "", err
	}
	switch resolution {
	case generator.Overwrite:
		if err := r.ledger.OverwriteFile(a.Path, a.Content, 0o644); err != nil {
			return "", err
		}
		return ActionOverwritten, nil
	case generator.Skip:
		r.warn(fmt.Sprintf("kept existing %s", a.Path))
		return ActionSkipped, nil
	default:
		return "", fmt.Errorf("%s: %w", a.Path, ErrCancelled)
	}
}

func (s *Scaffolder) createModel(ctx context.Context, r *run) error {
	if !r.req.Model {
		return nil
	}
	exists, err := s.creator.Exists(r.module)
	if err != nil {
		return err
	}
	if exists {
		r.warn(fmt.Sprintf("model %s already exists, skipped", r.module.Name))
		r.report.Model = "exists"
		return nil
	}
	r.report.Model = s.creator.Describe(r.module)
	if r.req.DryRun {
		return nil
	}
	return s.creator.Create(ctx, model.Request{Module: r.module, Props: r.props, Ledger: r.ledger})
}

// registryRequest builds the patch that wires m into the registry.
func (s *Scaffolder) registryRequest(m layout.Module) (patch.Request, error) {
	binding, err := s.renderer.Snippet(render.StubRegistryBinding, map[string]string{
		"contractAlias":       m.Alias(layout.ContractsDir),
		"contract":            m.Contract(),
		"implementationAlias": m.Alias(layout.RepositoriesDir),
		"implementation":      m.Repository(),
	})
	if err != nil {
		return patch.Request{}, err
	}
	entry, err := s.renderer.Snippet(render.StubRegistryEntry, map[string]string{
		"providerAlias": m.Alias(layout.InfraDir),
		"provider":      m.Provider(),
	})
	if err != nil {
		return patch.Request{}, err
	}

	imp := func(dir string) patch.Import {
		return patch.Import{Alias: m.Alias(dir), Path: m.ImportPath(s.cfg.Module, dir)}
	}
	return patch.Request{
		Mode: s.cfg.RegistryMode(),
		Function: patch.Registration{
			Anchor:    s.cfg.Registry.Function,
			Statement: binding,
			Imports:   []patch.Import{imp(layout.ContractsDir), imp(layout.RepositoriesDir)},
		},
		List: patch.Registration{
			Anchor:    s.cfg.Registry.List,
			Statement: entry,
			Imports:   []patch.Import{imp(layout.InfraDir)},
		},
	}, nil
}

func (s *Scaffolder) patchRegistry(_ context.Context, r *run) error {
	path := s.cfg.Registry.Path
	exists, err := patch.Exists(s.fs, path)
	if err != nil {
		return err
	}
	if !exists {
		r.warn(fmt.Sprintf("registry %s not found, register %s manually", path, r.module.Provider()))
		return nil
	}

	req, err := s.registryRequest(r.module)
	if err != nil {
		return err
	}

	var res patch.Result
	if r.req.DryRun {
		content, err := afero.ReadFile(s.fs, path)
		if err != nil {
			return fmt.Errorf("reading registry: %w", err)
		}
		res, err = patch.Patch(content, req)
		if err != nil {
			return err
		}
	} else {
		res, err = patch.Apply(s.fs, path, req)
		if err != nil {
			return err
		}
	}

	r.report.Registry = summarizePatch(path, res, req)
	return nil
}
