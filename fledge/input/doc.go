// Package input provides interactive terminal input utilities.
//
// All tools in the Firebird Suite use this package for consistent user
// interaction when prompts are needed. Prompts are styled with lipgloss.
// CLIs should offer a flag (such as --force) that bypasses every prompt so
// they stay usable in CI.
package input
