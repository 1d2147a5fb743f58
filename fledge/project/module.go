package project

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/mod/modfile"
)

// ModuleInfo contains information from go.mod
type ModuleInfo struct {
	Path      string // Module path (e.g., "github.com/user/repo")
	GoVersion string // Go version requirement (e.g., "1.21")
}

// ErrNoModule is returned when the project root has no go.mod.
var ErrNoModule = errors.New("go.mod not found")

// DetectModule reads root/go.mod from fsys and returns module information.
func DetectModule(fsys afero.Fs, root string) (*ModuleInfo, error) {
	modPath := filepath.Join(root, "go.mod")
	data, err := afero.ReadFile(fsys, modPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w in %s", ErrNoModule, root)
		}
		return nil, fmt.Errorf("failed to read go.mod: %w", err)
	}

	modFile, err := modfile.Parse(modPath, data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse go.mod: %w", err)
	}
	if modFile.Module == nil {
		return nil, fmt.Errorf("go.mod in %s has no module directive", root)
	}

	info := &ModuleInfo{Path: modFile.Module.Mod.Path}
	if modFile.Go != nil {
		info.GoVersion = modFile.Go.Version
	}
	return info, nil
}

// ImportPath joins a module path and a slash- or OS-separated directory
// relative to the module root.
//
//	ImportPath("github.com/acme/shop", "internal/contexts/invoice") // github.com/acme/shop/internal/contexts/invoice
func ImportPath(modulePath, rel string) string {
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" || rel == "." {
		return modulePath
	}
	return path.Join(modulePath, rel)
}
