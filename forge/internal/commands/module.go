package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/simonhull/firebird-suite/fledge/exec"
	"github.com/simonhull/firebird-suite/fledge/generator"
	"github.com/simonhull/firebird-suite/fledge/output"
	"github.com/simonhull/firebird-suite/forge/internal/model"
	"github.com/simonhull/firebird-suite/forge/internal/render"
	"github.com/simonhull/firebird-suite/forge/internal/scaffold"
)

// Output formats of the run summary.
const (
	FormatText = "text"
	FormatYAML = "yaml"
)

func checkFormat(format string) error {
	if format != FormatText && format != FormatYAML {
		return fmt.Errorf("invalid format %q (want %s or %s)", format, FormatText, FormatYAML)
	}
	return nil
}

// ModuleCmd creates the 'module' command that scaffolds one module.
func ModuleCmd() *cobra.Command {
	var propSpec, format string
	var withModel, dryRun, force, skip, interactive bool

	cmd := &cobra.Command{
		Use:   "module <Name>",
		Short: "Generate a layered module and register it",
		Long: `Generate a module skeleton under the configured base path and wire its
provider into the registry file.

Properties are comma-separated name:type tokens:
  int, float, bool, string   scalar value objects
  timestamp, secret          RFC 3339 times and bcrypt-hashed strings
  ?type                      nullable scalar
  enum[a|b|c]                string enum
  anything else              kept verbatim as a Go type

Existing files are never overwritten unless --force is given; --skip keeps
them and --interactive asks for each one.

Examples:
  forge module Invoice --props "id:string,total:float,paid_at:?timestamp,status:enum[draft|sent|paid]"
  forge module invoice_line --props "quantity:int,unit_price:float" --model
  forge module Customer --props "email:string,password:secret" --dry-run --format yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			if err := checkFormat(format); err != nil {
				return err
			}

			resolver, err := generator.NewResolver(force, skip, interactive)
			if err != nil {
				return err
			}
			renderer := a.renderer()

			s := scaffold.New(a.fs, a.cfg,
				scaffold.WithLogger(a.log),
				scaffold.WithRenderer(renderer),
				scaffold.WithResolver(resolver),
				scaffold.WithModelCreator(a.modelCreator(renderer)),
			)

			name := generator.PascalCase(args[0])
			if !dryRun {
				output.Step(fmt.Sprintf("Generating module %s", name))
			}
			report, runErr := s.Run(cmd.Context(), scaffold.Request{
				Name:   name,
				Props:  propSpec,
				Model:  withModel,
				DryRun: dryRun,
			})

			if report != nil {
				if format == FormatYAML {
					if err := report.WriteYAML(a.env.Stdout); err != nil {
						return err
					}
				} else if runErr == nil {
					report.Print()
				}
			}
			if runErr != nil {
				var stepErr *scaffold.StepError
				if errors.As(runErr, &stepErr) && len(stepErr.Rollback.Errors) > 0 {
					output.Warn(fmt.Sprintf("rollback left %d entries behind", len(stepErr.Rollback.Errors)))
				}
				return runErr
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&propSpec, "props", "", "Comma-separated property declarations (name:type)")
	cmd.Flags().BoolVar(&withModel, "model", false, "Also create the storage model")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be generated without writing files")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	cmd.Flags().BoolVar(&skip, "skip", false, "Keep existing files")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "Ask what to do with each existing file")
	cmd.Flags().StringVar(&format, "format", FormatText, "Summary format: text or yaml")

	return cmd
}

// renderer builds the stub lookup chain: project overrides, shared overrides,
// then the built-in stubs.
func (a *app) renderer() *render.Renderer {
	sources := []render.Source{render.NewDirSource(a.fs, a.cfg.Stubs.Dir, "project")}
	if a.cfg.Stubs.SharedDir != "" {
		sources = append(sources, render.NewDirSource(a.env.Fs, a.cfg.Stubs.SharedDir, "shared"))
	}
	sources = append(sources, render.Builtin())

	return render.New(render.Options{
		Sources: sources,
		Router:  a.cfg.Router,
		Rules:   render.RuleOptions{NameHeuristics: a.cfg.Rules.NameHeuristics},
		Logger:  a.log,
	})
}

func (a *app) modelCreator(renderer *render.Renderer) model.Creator {
	if a.cfg.Storage.Command == "" {
		return model.BuiltinCreator{Fs: a.fs, Dir: a.cfg.Storage.ModelsPath, Renderer: renderer}
	}
	return model.CommandCreator{
		Fs:       a.fs,
		Dir:      a.cfg.Storage.ModelsPath,
		Command:  a.cfg.Storage.Command,
		Executor: exec.NewExecutor(&exec.Options{Stdout: a.env.Stderr, Stderr: a.env.Stderr}),
		WorkDir:  a.root,
		Spinner:  !a.verbose && isTerminal(a.env.Stdout),
	}
}

func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
