// Package model creates the storage model that backs a generated module.
//
// Two creators exist: BuiltinCreator renders the model stub into the models
// directory, and CommandCreator delegates to a project command such as a
// migration generator.
package model

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/simonhull/firebird-suite/fledge/exec"
	"github.com/simonhull/firebird-suite/fledge/generator"
	"github.com/simonhull/firebird-suite/forge/internal/layout"
	"github.com/simonhull/firebird-suite/forge/internal/props"
	"github.com/simonhull/firebird-suite/forge/internal/render"
)

// Request carries everything a creator may need.
type Request struct {
	Module layout.Module
	Props  props.Result
	// Ledger records files written by the creator so they can be rolled back.
	Ledger *generator.Ledger
}

// Creator creates storage models.
type Creator interface {
	// Exists reports whether a model for module is already present.
	Exists(module layout.Module) (bool, error)
	Create(ctx context.Context, req Request) error
	// Describe says what Create would do, for dry runs.
	Describe(module layout.Module) string
}

// Path is the model file of module inside dir.
func Path(dir string, module layout.Module) string {
	return filepath.Join(filepath.FromSlash(dir), module.Snake+".go")
}

func exists(fsys afero.Fs, path string) (bool, error) {
	_, err := fsys.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking model %s: %w", path, err)
	}
	return true, nil
}

// BuiltinCreator renders the model stub into Dir.
type BuiltinCreator struct {
	Fs       afero.Fs
	Dir      string
	Renderer *render.Renderer
}

func (c BuiltinCreator) Exists(module layout.Module) (bool, error) {
	return exists(c.Fs, Path(c.Dir, module))
}

func (c BuiltinCreator) Describe(module layout.Module) string {
	return "render " + Path(c.Dir, module)
}

func (c BuiltinCreator) Create(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := c.Renderer.Model(req.Module, req.Props)
	if err != nil {
		return fmt.Errorf("rendering model: %w", err)
	}
	if _, err := req.Ledger.MkdirAll(filepath.FromSlash(c.Dir), 0o755); err != nil {
		return err
	}
	return req.Ledger.WriteFile(Path(c.Dir, req.Module), src, 0o644)
}

// CommandCreator runs an external command line. The line may use the
// placeholders {{ name }}, {{ snake }} and {{ table }}; the same values are
// exported to the command as FORGE_MODULE, FORGE_SNAKE and FORGE_TABLE.
type CommandCreator struct {
	Fs       afero.Fs
	Dir      string
	Command  string
	Executor *exec.Executor
	// WorkDir is where the command runs, usually the project root.
	WorkDir string
	Spinner bool
}

func (c CommandCreator) Exists(module layout.Module) (bool, error) {
	return exists(c.Fs, Path(c.Dir, module))
}

func (c CommandCreator) Describe(module layout.Module) string {
	args, err := c.args(module)
	if err != nil {
		return "run " + c.Command
	}
	return "run " + c.command(module, args).String()
}

func (c CommandCreator) args(module layout.Module) ([]string, error) {
	line := render.Fill(c.Command, map[string]string{
		"name":  module.Name,
		"snake": module.Snake,
		"table": generator.Pluralize(module.Snake),
	})
	args, err := exec.SplitCommandLine(line)
	if err != nil {
		return nil, fmt.Errorf("storage command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("storage command is empty")
	}
	return args, nil
}

func (c CommandCreator) command(module layout.Module, args []string) *exec.GenericCommand {
	executor := c.Executor
	if executor == nil {
		executor = exec.NewExecutor(&exec.Options{Stdout: os.Stderr})
	}
	return exec.NewGenericCommand(executor, args[0]).
		WithArgs(args[1:]...).
		WithEnv(
			"FORGE_MODULE="+module.Name,
			"FORGE_SNAKE="+module.Snake,
			"FORGE_TABLE="+generator.Pluralize(module.Snake),
		).
		WithDir(c.WorkDir)
}

func (c CommandCreator) Create(ctx context.Context, req Request) error {
	args, err := c.args(req.Module)
	if err != nil {
		return err
	}
	cmd := c.command(req.Module, args)
	if c.Spinner {
		cmd.WithSpinner(fmt.Sprintf("Creating %s model", req.Module.Name))
	}
	if err := cmd.Run(ctx); err != nil {
		return fmt.Errorf("creating model: %w", err)
	}
	return nil
}
