package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"

	"github.com/spf13/afero"
)

//go:embed stubs/*.stub fragments/*.tmpl
var assets embed.FS

// StubExt is the file extension of every stub.
const StubExt = ".stub"

// Template ids, in the order they are listed and published.
const (
	StubEntity             = "entity"
	StubEntitySimple       = "entity-simple"
	StubValueObject        = "value-object"
	StubEnum               = "enum"
	StubRepositoryContract = "repository-contract"
	StubRepository         = "repository"
	StubMapper             = "mapper"
	StubRoutes             = "routes"
	StubRoutesChi          = "routes-chi"
	StubProvider           = "provider"
	StubModel              = "model"
	StubRegistryBinding    = "registry-binding"
	StubRegistryEntry      = "registry-entry"
)

// StubIDs lists every template id the renderer knows.
var StubIDs = []string{
	StubEntity,
	StubEntitySimple,
	StubValueObject,
	StubEnum,
	StubRepositoryContract,
	StubRepository,
	StubMapper,
	StubRoutes,
	StubRoutesChi,
	StubProvider,
	StubModel,
	StubRegistryBinding,
	StubRegistryEntry,
}

// ErrStubNotFound is returned when no source provides a template id.
var ErrStubNotFound = errors.New("stub not found")

// Source is one place stubs can be looked up in.
type Source interface {
	// Name describes the source in logs and listings.
	Name() string
	// Lookup returns the stub for id. A missing or blank stub reports ok=false
	// so the next source is tried.
	Lookup(id string) (content []byte, ok bool, err error)
}

// DirSource reads <dir>/<id>.stub from a filesystem.
type DirSource struct {
	fs   afero.Fs
	dir  string
	name string
}

// NewDirSource creates a source over dir. name labels the source, e.g. "project".
func NewDirSource(fsys afero.Fs, dir, name string) DirSource {
	return DirSource{fs: fsys, dir: dir, name: name}
}

func (s DirSource) Name() string { return s.name + " (" + s.dir + ")" }

// Path is the file the source would read for id.
func (s DirSource) Path(id string) string {
	return filepath.Join(s.dir, id+StubExt)
}

func (s DirSource) Lookup(id string) ([]byte, bool, error) {
	if s.dir == "" {
		return nil, false, nil
	}
	data, err := afero.ReadFile(s.fs, s.Path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading stub %s: %w", s.Path(id), err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, false, nil
	}
	return data, true, nil
}

type builtinSource struct{}

// Builtin returns the source of the stubs compiled into the binary.
func Builtin() Source { return builtinSource{} }

func (builtinSource) Name() string { return "built-in" }

func (builtinSource) Lookup(id string) ([]byte, bool, error) {
	data, err := fs.ReadFile(assets, path.Join("stubs", id+StubExt))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Stub is a resolved template.
type Stub struct {
	ID      string
	Content string
	// Source names where the content came from.
	Source string
}

// Resolve walks sources in order and returns the first stub found for id.
func Resolve(sources []Source, id string) (Stub, error) {
	for _, src := range sources {
		data, ok, err := src.Lookup(id)
		if err != nil {
			return Stub{}, err
		}
		if ok {
			return Stub{ID: id, Content: string(data), Source: src.Name()}, nil
		}
	}
	return Stub{}, fmt.Errorf("%w: %s", ErrStubNotFound, id)
}
