// Package forge holds build metadata for the forge CLI.
package forge

// Version is the forge release, overridden at build time with
// -ldflags "-X github.com/simonhull/firebird-suite/forge.Version=...".
var Version = "0.1.0"
