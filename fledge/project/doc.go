// Package project detects information about the Go project a tool runs in.
//
// Detect a Go module:
//
//	info, err := project.DetectModule(afero.NewOsFs(), ".")
//	if err != nil {
//	    return err
//	}
//	pkg := project.ImportPath(info.Path, "internal/contexts/invoice")
package project
