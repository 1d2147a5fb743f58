package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/simonhull/firebird-suite/fledge/output"
	"github.com/simonhull/firebird-suite/forge/internal/render"
	"github.com/simonhull/firebird-suite/forge/internal/scaffold"
)

const projectRoot = "/proj"

const registry = `package app

func RegisterProviders(c *Container) {
}
`

func newProject(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, projectRoot+"/go.mod", []byte("module github.com/acme/shop\n\ngo 1.22\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, projectRoot+"/internal/app/providers.go", []byte(registry), 0o644))
	return fs
}

type result struct {
	stdout, stderr string
	err            error
}

func execute(t *testing.T, fs afero.Fs, stdin string, args ...string) result {
	t.Helper()
	t.Cleanup(func() {
		output.SetOutput(nil)
		output.SetVerbose(false)
	})

	var stdout, stderr bytes.Buffer
	root := NewRootCmd(Env{Fs: fs, Stdin: strings.NewReader(stdin), Stdout: &stdout, Stderr: &stderr})
	root.AddCommand(ModuleCmd())
	root.AddCommand(StubsCmd())
	root.SetArgs(append([]string{"--project", projectRoot}, args...))

	err := root.ExecuteContext(context.Background())
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func read(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, filepath.Join(projectRoot, filepath.FromSlash(path)))
	require.NoError(t, err)
	return string(data)
}

func exists(t *testing.T, fs afero.Fs, path string) bool {
	t.Helper()
	ok, err := afero.Exists(fs, filepath.Join(projectRoot, filepath.FromSlash(path)))
	require.NoError(t, err)
	return ok
}

func TestModule_GeneratesAndRegisters(t *testing.T) {
	fs := newProject(t)

	res := execute(t, fs, "", "module", "Invoice", "--props", "id:string,total:float,status:enum[draft|paid]", "--model")
	require.NoError(t, res.err)

	assert.True(t, exists(t, fs, "internal/contexts/invoice/domain/entities/invoice.go"))
	assert.True(t, exists(t, fs, "internal/contexts/invoice/domain/enums/invoice_status.go"))
	assert.True(t, exists(t, fs, "internal/contexts/invoice/domain/valueobjects/invoice_total.go"))
	assert.True(t, exists(t, fs, "internal/models/invoice.go"))

	reg := read(t, fs, "internal/app/providers.go")
	assert.Contains(t, reg, "invoicecontracts.InvoiceRepositoryContract")
	assert.Contains(t, reg, `"github.com/acme/shop/internal/contexts/invoice/domain/contracts"`)

	assert.Contains(t, res.stdout, "Module Invoice generated")
}

func TestModule_NameIsPascalCased(t *testing.T) {
	fs := newProject(t)

	res := execute(t, fs, "", "module", "invoice_line", "--props", "quantity:int")
	require.NoError(t, res.err)

	assert.True(t, exists(t, fs, "internal/contexts/invoice_line/domain/entities/invoice_line.go"))
	assert.Contains(t, read(t, fs, "internal/contexts/invoice_line/domain/entities/invoice_line.go"), "type InvoiceLine struct")
}

func TestModule_InvalidName(t *testing.T) {
	fs := newProject(t)

	res := execute(t, fs, "", "module", "9lives")
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, scaffold.ErrInvalidModuleName)
	assert.False(t, exists(t, fs, "internal/contexts"))
}

func TestModule_DryRunYAML(t *testing.T) {
	fs := newProject(t)

	res := execute(t, fs, "", "module", "Invoice", "--props", "total:float", "--dry-run", "--format", "yaml")
	require.NoError(t, res.err)

	var report scaffold.Report
	require.NoError(t, yaml.Unmarshal([]byte(res.stdout), &report))
	assert.True(t, report.DryRun)
	assert.Equal(t, "Invoice", report.Module)
	require.NotEmpty(t, report.Files)
	for _, f := range report.Files {
		assert.Equal(t, scaffold.ActionPlanned, f.Action, f.Path)
	}
	require.NotNil(t, report.Registry)
	assert.Equal(t, "patched", report.Registry.Status)

	assert.False(t, exists(t, fs, "internal/contexts"))
	assert.Equal(t, registry, read(t, fs, "internal/app/providers.go"))
}

func TestModule_FlagErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"force and skip", []string{"--force", "--skip"}, "--force cannot be combined with --skip"},
		{"unknown format", []string{"--format", "json"}, "invalid format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newProject(t)

			res := execute(t, fs, "", append([]string{"module", "Invoice"}, tt.args...)...)
			require.Error(t, res.err)
			assert.Contains(t, res.err.Error(), tt.want)
			assert.False(t, exists(t, fs, "internal/contexts"))
		})
	}
}

func TestModule_ExistingFiles(t *testing.T) {
	fs := newProject(t)
	require.NoError(t, execute(t, fs, "", "module", "Invoice", "--props", "total:float").err)

	entity := "internal/contexts/invoice/domain/entities/invoice.go"
	require.NoError(t, afero.WriteFile(fs, filepath.Join(projectRoot, entity), []byte("package entities\n"), 0o644))

	res := execute(t, fs, "", "module", "Invoice", "--props", "total:float")
	require.Error(t, res.err)
	assert.Equal(t, "package entities\n", read(t, fs, entity))

	require.NoError(t, execute(t, fs, "", "module", "Invoice", "--props", "total:float", "--skip").err)
	assert.Equal(t, "package entities\n", read(t, fs, entity))

	require.NoError(t, execute(t, fs, "", "module", "Invoice", "--props", "total:float", "--force").err)
	assert.Contains(t, read(t, fs, entity), "type Invoice struct")
}

func TestModule_ConfigFile(t *testing.T) {
	fs := newProject(t)
	cfg := "base_path: modules\nrouter: chi\n"
	require.NoError(t, afero.WriteFile(fs, projectRoot+"/forge.yml", []byte(cfg), 0o644))

	require.NoError(t, execute(t, fs, "", "module", "Invoice", "--props", "total:float").err)

	routes := read(t, fs, "modules/invoice/infrastructure/http/routes/invoice.go")
	assert.Contains(t, routes, "chi.Router")
	assert.False(t, exists(t, fs, "internal/contexts"))
}

func TestModule_NoGoMod(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(projectRoot, 0o755))

	res := execute(t, fs, "", "module", "Invoice")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "go module path unknown")
}

func TestRoot_ProjectMustBeDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()

	res := execute(t, fs, "", "module", "Invoice")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "is not a directory")
}

func TestStubsPublish(t *testing.T) {
	fs := newProject(t)

	res := execute(t, fs, "", "stubs", "publish")
	require.NoError(t, res.err)
	for _, id := range render.StubIDs {
		builtin, ok, err := render.Builtin().Lookup(id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, string(builtin), read(t, fs, "stubs/forge/"+id+render.StubExt), id)
	}
	assert.Contains(t, res.stdout, "Published 13 stubs")

	// A second publish leaves identical stubs alone without asking.
	res = execute(t, fs, "", "stubs", "publish")
	require.NoError(t, res.err)
	assert.NotContains(t, res.stdout, "Overwrite")
	assert.Contains(t, res.stdout, "Published 0 stubs")
}

func TestStubsPublish_CustomizedStubs(t *testing.T) {
	custom := "package {{ package }}\n// customized\n"
	path := "stubs/forge/entity.stub"

	tests := []struct {
		name      string
		stdin     string
		args      []string
		overwrite bool
	}{
		{"declined", "n\n", nil, false},
		{"default answer", "\n", nil, false},
		{"confirmed", "y\n", nil, true},
		{"forced", "", []string{"--force"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newProject(t)
			require.NoError(t, afero.WriteFile(fs, filepath.Join(projectRoot, path), []byte(custom), 0o644))

			res := execute(t, fs, tt.stdin, append([]string{"stubs", "publish"}, tt.args...)...)
			require.NoError(t, res.err)

			if tt.overwrite {
				assert.NotEqual(t, custom, read(t, fs, path))
			} else {
				assert.Equal(t, custom, read(t, fs, path))
				assert.Contains(t, res.stdout, "1 customized stubs kept")
			}
			assert.Equal(t, len(tt.args) == 0, strings.Contains(res.stdout, "Overwrite them?"))
			assert.True(t, exists(t, fs, "stubs/forge/model.stub"))
		})
	}
}

func TestStubsList(t *testing.T) {
	fs := newProject(t)
	require.NoError(t, afero.WriteFile(fs, projectRoot+"/stubs/forge/entity.stub", []byte("package entities\n"), 0o644))

	res := execute(t, fs, "", "stubs", "list", "--format", "yaml")
	require.NoError(t, res.err)

	var entries []stubEntry
	require.NoError(t, yaml.Unmarshal([]byte(res.stdout), &entries))
	require.Len(t, entries, len(render.StubIDs))

	sources := make(map[string]string)
	for _, e := range entries {
		sources[e.ID] = e.Source
	}
	assert.Equal(t, "project (stubs/forge)", sources[render.StubEntity])
	assert.Equal(t, "built-in", sources[render.StubValueObject])
}

func TestStubsList_Table(t *testing.T) {
	fs := newProject(t)

	res := execute(t, fs, "", "stubs", "list")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Stub")
	assert.Contains(t, res.stdout, render.StubRegistryEntry)
	assert.Contains(t, res.stdout, "built-in")
}
