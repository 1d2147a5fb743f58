// Package commands implements the forge command line.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/simonhull/firebird-suite/fledge/output"
	"github.com/simonhull/firebird-suite/forge"
	"github.com/simonhull/firebird-suite/forge/internal/config"
	"github.com/simonhull/firebird-suite/forge/internal/logging"
)

// Env holds the process resources the commands use. Zero fields fall back to
// the operating system.
type Env struct {
	Fs     afero.Fs
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (e Env) withDefaults() Env {
	if e.Fs == nil {
		e.Fs = afero.NewOsFs()
	}
	if e.Stdin == nil {
		e.Stdin = os.Stdin
	}
	if e.Stdout == nil {
		e.Stdout = os.Stdout
	}
	if e.Stderr == nil {
		e.Stderr = os.Stderr
	}
	return e
}

// app is the per-invocation state prepared by the root command.
type app struct {
	env     Env
	verbose bool
	// root is the absolute project directory.
	root string
	// fs is env.Fs rooted at the project directory.
	fs  afero.Fs
	cfg *config.Config
	log *zap.Logger
}

type appKey struct{}

func appFrom(ctx context.Context) (*app, error) {
	a, ok := ctx.Value(appKey{}).(*app)
	if !ok {
		return nil, errors.New("command run outside the forge root command")
	}
	return a, nil
}

// RootCmd creates the root command for the forge CLI.
func RootCmd() *cobra.Command {
	return NewRootCmd(Env{})
}

// NewRootCmd creates the root command over env.
func NewRootCmd(env Env) *cobra.Command {
	env = env.withDefaults()
	var (
		verbose bool
		project string
	)

	cmd := &cobra.Command{
		Use:   "forge",
		Short: "Scaffold layered modules into a Go project",
		Long: `Forge generates a layered module skeleton (entity, value objects, enums,
repository, mapper, routes and provider) from a name and a list of typed
properties, then wires the module into the project's provider registry.

Every file a run creates is rolled back if a later step fails.

Learn more: https://github.com/simonhull/firebird-suite`,
		Version:       forge.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			output.SetOutput(env.Stdout)
			output.SetVerbose(verbose)

			a, err := newApp(env, project, verbose)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, appKey{}, a))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a, err := appFrom(cmd.Context()); err == nil {
				_ = a.log.Sync()
			}
		},
	}

	cmd.SetIn(env.Stdin)
	cmd.SetOut(env.Stdout)
	cmd.SetErr(env.Stderr)

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output for debugging")
	cmd.PersistentFlags().StringVarP(&project, "project", "p", ".", "Project root directory")

	return cmd
}

func newApp(env Env, project string, verbose bool) (*app, error) {
	root, err := filepath.Abs(project)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	isDir, err := afero.IsDir(env.Fs, root)
	if err != nil || !isDir {
		return nil, fmt.Errorf("project root %s is not a directory", root)
	}

	fsys := afero.NewBasePathFs(env.Fs, root)
	cfg, err := config.Load(fsys, ".")
	if err != nil {
		return nil, err
	}

	log, err := logging.New(env.Stderr, cfg.Log.Level, verbose)
	if err != nil {
		return nil, err
	}
	log.Debug("project loaded",
		zap.String("root", root),
		zap.String("config", cfg.File),
		zap.String("module", cfg.Module))

	return &app{env: env, verbose: verbose, root: root, fs: fsys, cfg: cfg, log: log}, nil
}

// Execute builds the full command tree and runs it.
func Execute() error {
	rootCmd := RootCmd()
	rootCmd.AddCommand(ModuleCmd())
	rootCmd.AddCommand(StubsCmd())

	if err := rootCmd.Execute(); err != nil {
		output.Error(err.Error())
		return err
	}
	return nil
}
