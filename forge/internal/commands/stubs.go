package commands

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/simonhull/firebird-suite/fledge/generator"
	"github.com/simonhull/firebird-suite/fledge/input"
	"github.com/simonhull/firebird-suite/fledge/output"
	"github.com/simonhull/firebird-suite/forge/internal/render"
)

// StubsCmd creates the 'stubs' command group.
func StubsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stubs",
		Short: "Inspect and customize the templates forge renders",
		Long: `Forge renders every generated file from a stub. A stub is looked up in the
project directory (stubs.dir), then in the shared directory (stubs.shared_dir),
and finally in the stubs built into forge.`,
	}

	cmd.AddCommand(stubsPublishCmd())
	cmd.AddCommand(stubsListCmd())

	return cmd
}

func stubsPublishCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Copy the built-in stubs into the project for editing",
		Long: `Write every built-in stub into the project stub directory, where it
overrides the built-in version. Existing stubs that differ are only replaced
after confirmation, or with --force.

Example:
  forge stubs publish
  forge stubs publish --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			return a.publishStubs(force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite published stubs without asking")

	return cmd
}

type publishedStub struct {
	path     string
	content  []byte
	exists   bool
	existing []byte
}

func (a *app) publishStubs(force bool) error {
	dir := filepath.FromSlash(a.cfg.Stubs.Dir)
	builtin := render.Builtin()

	var stubs []publishedStub
	var changed int
	for _, id := range render.StubIDs {
		content, _, err := builtin.Lookup(id)
		if err != nil {
			return err
		}
		s := publishedStub{path: filepath.Join(dir, id+render.StubExt), content: content}
		if s.exists, err = afero.Exists(a.fs, s.path); err != nil {
			return fmt.Errorf("checking %s: %w", s.path, err)
		}
		if s.exists {
			if s.existing, err = afero.ReadFile(a.fs, s.path); err != nil {
				return fmt.Errorf("reading %s: %w", s.path, err)
			}
			if !bytes.Equal(s.existing, content) {
				changed++
			}
		}
		stubs = append(stubs, s)
	}

	overwrite := force
	if changed > 0 && !force {
		overwrite = input.ConfirmFrom(a.env.Stdin, a.env.Stdout,
			fmt.Sprintf("%d published stubs differ from the built-in ones. Overwrite them?", changed), false)
	}

	ledger := generator.NewLedger(a.fs, a.log)
	if _, err := ledger.MkdirAll(dir, 0o755); err != nil {
		ledger.Rollback()
		return err
	}

	var written, kept int
	for _, s := range stubs {
		switch {
		case !s.exists:
			if err := ledger.WriteFile(s.path, s.content, 0o644); err != nil {
				ledger.Rollback()
				return err
			}
			written++
			output.Step("published " + s.path)
		case bytes.Equal(s.existing, s.content):
			output.Verbose("unchanged " + s.path)
		case overwrite:
			if err := ledger.OverwriteFile(s.path, s.content, 0o644); err != nil {
				ledger.Rollback()
				return err
			}
			written++
			output.Step("overwrote " + s.path)
		default:
			kept++
			output.Step("kept " + s.path)
		}
	}

	msg := fmt.Sprintf("Published %d stubs to %s", written, dir)
	if kept > 0 {
		msg += fmt.Sprintf(" (%d customized stubs kept)", kept)
	}
	output.Success(msg)
	return nil
}

func stubsListCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show which source provides each stub",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			if err := checkFormat(format); err != nil {
				return err
			}

			entries, err := a.listStubs()
			if err != nil {
				return err
			}

			if format == FormatYAML {
				enc := yaml.NewEncoder(a.env.Stdout)
				enc.SetIndent(2)
				if err := enc.Encode(entries); err != nil {
					return fmt.Errorf("encoding stub list: %w", err)
				}
				return enc.Close()
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{e.ID, e.Source})
			}
			output.Table([]string{"Stub", "Source"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", FormatText, "Output format: text or yaml")

	return cmd
}

// stubEntry is one row of 'stubs list'.
type stubEntry struct {
	ID     string `yaml:"id"`
	Source string `yaml:"source"`
}

func (a *app) listStubs() ([]stubEntry, error) {
	sources := a.renderer().Sources()
	entries := make([]stubEntry, 0, len(render.StubIDs))
	for _, id := range render.StubIDs {
		stub, err := render.Resolve(sources, id)
		if err != nil {
			return nil, err
		}
		entries = append(entries, stubEntry{ID: id, Source: stub.Source})
	}
	return entries, nil
}
