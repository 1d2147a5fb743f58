// Package layout names the directories, files, packages and identifiers of a
// generated module. Every path is relative to the project root.
package layout

import (
	"path/filepath"
	"strings"

	"github.com/simonhull/firebird-suite/fledge/generator"
	"github.com/simonhull/firebird-suite/fledge/project"
)

// Package directories of a module, relative to the module root.
const (
	EntitiesDir     = "domain/entities"
	ContractsDir    = "domain/contracts"
	ValueObjectsDir = "domain/valueobjects"
	EnumsDir        = "domain/enums"
	InfraDir        = "infrastructure"
	RoutesDir       = "infrastructure/http/routes"
	MappersDir      = "infrastructure/persistence/mappers"
	RepositoriesDir = "infrastructure/persistence/repositories"
)

// topology is the fixed directory tree of every module, parent-first.
var topology = []string{
	"application",
	"application/commands",
	"application/handlers",
	"application/dtos",
	"application/services",
	"application/usecases",
	"domain",
	"domain/entities",
	"domain/contracts",
	"domain/errors",
	"domain/valueobjects",
	"infrastructure",
	"infrastructure/http",
	"infrastructure/http/controllers",
	"infrastructure/http/requests",
	"infrastructure/http/resources",
	"infrastructure/http/routes",
	"infrastructure/persistence",
	"infrastructure/persistence/mappers",
	"infrastructure/persistence/repositories",
}

// Module locates one generated module inside a project.
type Module struct {
	// Name is the PascalCase module name, e.g. InvoiceLine.
	Name string
	// Snake is the directory and file stem, e.g. invoice_line.
	Snake string
	// Root is the module directory relative to the project root.
	Root string
}

// New places module name under base (e.g. internal/contexts).
func New(base, name string) Module {
	snake := generator.SnakeCase(name)
	return Module{
		Name:  name,
		Snake: snake,
		Root:  filepath.Join(filepath.FromSlash(base), snake),
	}
}

// Directories returns the module tree parent-first, including the module root.
// The enums directory is only part of the tree when withEnums is set.
func (m Module) Directories(withEnums bool) []string {
	dirs := []string{m.Root}
	for _, rel := range topology {
		dirs = append(dirs, m.path(rel))
		if rel == ValueObjectsDir && withEnums {
			dirs = append(dirs, m.path(EnumsDir))
		}
	}
	return dirs
}

func (m Module) path(rel string, elem ...string) string {
	return filepath.Join(append([]string{m.Root, filepath.FromSlash(rel)}, elem...)...)
}

func (m Module) propertyFile(dir, property string) string {
	return m.path(dir, m.Snake+"_"+generator.SnakeCase(property)+".go")
}

// EnumFile is the artifact path of the enum generated for property.
func (m Module) EnumFile(property string) string { return m.propertyFile(EnumsDir, property) }

// ValueObjectFile is the artifact path of the value object for property.
func (m Module) ValueObjectFile(property string) string {
	return m.propertyFile(ValueObjectsDir, property)
}

func (m Module) EntityFile() string { return m.path(EntitiesDir, m.Snake+".go") }

func (m Module) ContractFile() string {
	return m.path(ContractsDir, m.Snake+"_repository_contract.go")
}

func (m Module) RepositoryFile() string {
	return m.path(RepositoriesDir, m.Snake+"_repository.go")
}

func (m Module) MapperFile() string { return m.path(MappersDir, m.Snake+"_mapper.go") }

func (m Module) RoutesFile() string { return m.path(RoutesDir, m.Snake+".go") }

func (m Module) ProviderFile() string { return m.path(InfraDir, m.Snake+"_provider.go") }

// ImportPath is the Go import path of one of the module's package directories.
func (m Module) ImportPath(modulePath, dir string) string {
	return project.ImportPath(modulePath, m.path(dir))
}

// Alias is the import alias used for one of the module's packages in shared
// files such as the registry, e.g. invoicelinecontracts.
func (m Module) Alias(dir string) string {
	return strings.ToLower(m.Name) + filepath.Base(filepath.FromSlash(dir))
}

// Identifiers generated for the module.

func (m Module) Contract() string   { return m.Name + "RepositoryContract" }
func (m Module) Repository() string { return m.Name + "Repository" }
func (m Module) Mapper() string     { return m.Name + "Mapper" }
func (m Module) Provider() string   { return m.Name + "Provider" }

// ClassFor names the value object or enum generated for prop.
func (m Module) ClassFor(prop string) string { return m.Name + generator.PascalCase(prop) }

// Resource is the URL segment for the module's routes, e.g. invoice-lines.
func (m Module) Resource() string {
	return strings.ReplaceAll(generator.Pluralize(m.Snake), "_", "-")
}
