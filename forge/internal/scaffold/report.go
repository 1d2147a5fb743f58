package scaffold

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/simonhull/firebird-suite/fledge/output"
	"github.com/simonhull/firebird-suite/forge/internal/patch"
	"github.com/simonhull/firebird-suite/forge/internal/props"
)

// Action is what happened to one artifact.
type Action string

const (
	ActionCreated     Action = "created"
	ActionOverwritten Action = "overwritten"
	ActionSkipped     Action = "skipped"
	ActionUnchanged   Action = "unchanged"
	// ActionPlanned and ActionConflict only appear in dry runs.
	ActionPlanned  Action = "planned"
	ActionConflict Action = "conflict"
)

type FileResult struct {
	Path     string `yaml:"path"`
	Template string `yaml:"template"`
	Action   Action `yaml:"action"`
}

type PropertySummary struct {
	Name     string   `yaml:"name"`
	Kind     string   `yaml:"kind"`
	Type     string   `yaml:"type"`
	Nullable bool     `yaml:"nullable,omitempty"`
	Values   []string `yaml:"values,omitempty"`
}

func summarize(p props.Property) PropertySummary {
	s := PropertySummary{Name: p.Name, Kind: p.Kind.String(), Type: string(p.Base), Nullable: p.Nullable}
	if p.IsEnum() {
		s.Type = "enum"
		s.Values = p.Values
	}
	if p.Base == props.Opaque {
		s.Type = p.Type
	}
	return s
}

type RegistrySummary struct {
	Path         string   `yaml:"path"`
	Mode         string   `yaml:"mode"`
	Status       string   `yaml:"status"`
	Statement    string   `yaml:"statement,omitempty"`
	AddedImports []string `yaml:"added_imports,omitempty"`
}

func summarizePatch(path string, res patch.Result, req patch.Request) *RegistrySummary {
	s := &RegistrySummary{Path: path, Mode: string(res.Mode), Status: string(res.Status)}
	if res.StatementAdded {
		s.Statement = req.Function.Statement
		if res.Mode == patch.ModeList {
			s.Statement = req.List.Statement
		}
	}
	for _, imp := range res.AddedImports {
		s.AddedImports = append(s.AddedImports, imp.String())
	}
	return s
}

// Report summarizes one run. It is printed as a table or encoded as YAML.
type Report struct {
	RunID       string            `yaml:"run_id"`
	Module      string            `yaml:"module"`
	Root        string            `yaml:"root"`
	DryRun      bool              `yaml:"dry_run"`
	Properties  []PropertySummary `yaml:"properties"`
	Directories []string          `yaml:"directories"`
	Files       []FileResult      `yaml:"files"`
	Model       string            `yaml:"model,omitempty"`
	Registry    *RegistrySummary  `yaml:"registry,omitempty"`
	Warnings    []string          `yaml:"warnings,omitempty"`
	RolledBack  []string          `yaml:"rolled_back,omitempty"`
}

// Count returns how many files ended with action.
func (r *Report) Count(action Action) int {
	n := 0
	for _, f := range r.Files {
		if f.Action == action {
			n++
		}
	}
	return n
}

// WriteYAML encodes the report to w.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return enc.Close()
}

// Print writes the human-readable summary through fledge/output.
func (r *Report) Print() {
	for _, w := range r.Warnings {
		output.Warn(w)
	}

	rows := make([][]string, 0, len(r.Files))
	for _, f := range r.Files {
		rows = append(rows, []string{string(f.Action), f.Path})
	}
	if len(rows) > 0 {
		output.Table([]string{"Action", "File"}, rows)
	}
	output.Verbose(fmt.Sprintf("%d directories: %s", len(r.Directories), strings.Join(r.Directories, ", ")))

	if r.Model != "" {
		output.Info("Model: " + r.Model)
	}
	if reg := r.Registry; reg != nil {
		msg := fmt.Sprintf("Registry %s: %s (%s mode)", reg.Path, reg.Status, reg.Mode)
		if reg.Statement != "" {
			msg += "\n  + " + reg.Statement
		}
		for _, imp := range reg.AddedImports {
			msg += "\n  + " + imp
		}
		output.Info(msg)
	}

	if r.DryRun {
		output.Info(fmt.Sprintf("Dry run: %d files planned, nothing written", len(r.Files)))
		return
	}
	output.Success(fmt.Sprintf("Module %s generated in %s (%d created, %d overwritten, %d skipped)",
		r.Module, r.Root, r.Count(ActionCreated), r.Count(ActionOverwritten), r.Count(ActionSkipped)))
}
