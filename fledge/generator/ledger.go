package generator

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// EntryKind distinguishes ledgered files from ledgered directories.
type EntryKind int

const (
	FileEntry EntryKind = iota
	DirEntry
)

func (k EntryKind) String() string {
	if k == DirEntry {
		return "dir"
	}
	return "file"
}

// Entry records one filesystem side effect. Backup holds the previous content
// of a file that was overwritten; it is nil for files that did not exist.
type Entry struct {
	Kind   EntryKind
	Path   string
	Backup []byte
	// Mode is the permission of the overwritten file.
	Mode os.FileMode
}

// Ledger is an append-only record of the files and directories created during
// one generator run. Every entry is appended before the side effect is
// attempted, so a failed write is still undone by Rollback.
type Ledger struct {
	fs      afero.Fs
	log     *zap.Logger
	entries []Entry
}

// NewLedger creates an empty ledger operating on fsys. A nil logger is replaced
// with a no-op logger.
func NewLedger(fsys afero.Fs, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{fs: fsys, log: log}
}

// Entries returns a copy of the recorded entries in creation order.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports the number of recorded entries.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// MkdirAll creates path and any missing ancestors, recording each directory it
// creates parent-first. Directories that already exist are not recorded.
// It returns the directories that were created.
func (l *Ledger) MkdirAll(path string, perm os.FileMode) ([]string, error) {
	path = filepath.Clean(path)

	var missing []string
	for dir := path; ; dir = filepath.Dir(dir) {
		info, err := l.fs.Stat(dir)
		if err == nil {
			if !info.IsDir() {
				return nil, fmt.Errorf("creating directory %s: %s is not a directory", path, dir)
			}
			break
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("checking directory %s: %w", dir, err)
		}
		missing = append(missing, dir)
		if parent := filepath.Dir(dir); parent == dir {
			break
		}
	}

	created := make([]string, 0, len(missing))
	for i := len(missing) - 1; i >= 0; i-- {
		dir := missing[i]
		l.entries = append(l.entries, Entry{Kind: DirEntry, Path: dir})
		if err := l.fs.Mkdir(dir, perm); err != nil && !errors.Is(err, fs.ErrExist) {
			return created, fmt.Errorf("creating directory %s: %w", dir, err)
		}
		l.log.Debug("created directory", zap.String("path", dir))
		created = append(created, dir)
	}
	return created, nil
}

// WriteFile creates a new file. It refuses to touch a file that already
// exists; use OverwriteFile for that.
func (l *Ledger) WriteFile(path string, data []byte, perm os.FileMode) error {
	exists, err := afero.Exists(l.fs, path)
	if err != nil {
		return fmt.Errorf("checking file %s: %w", path, err)
	}
	if exists {
		return fmt.Errorf("writing file %s: %w", path, fs.ErrExist)
	}

	l.entries = append(l.entries, Entry{Kind: FileEntry, Path: path})
	if err := afero.WriteFile(l.fs, path, data, perm); err != nil {
		return fmt.Errorf("writing file %s: %w", path, err)
	}
	l.log.Debug("wrote file", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}

// OverwriteFile replaces an existing file, keeping its previous content as a
// backup so Rollback can restore it.
func (l *Ledger) OverwriteFile(path string, data []byte, perm os.FileMode) error {
	info, err := l.fs.Stat(path)
	if err != nil {
		return fmt.Errorf("reading file %s: %w", path, err)
	}
	previous, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return fmt.Errorf("reading file %s: %w", path, err)
	}
	if previous == nil {
		previous = []byte{}
	}

	l.entries = append(l.entries, Entry{Kind: FileEntry, Path: path, Backup: previous, Mode: info.Mode().Perm()})
	if err := afero.WriteFile(l.fs, path, data, perm); err != nil {
		return fmt.Errorf("overwriting file %s: %w", path, err)
	}
	l.log.Debug("overwrote file", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}

// RollbackReport describes what Rollback did. Errors never stop the walk.
type RollbackReport struct {
	Removed  []string
	Restored []string
	// Kept lists directories left in place because they were not empty.
	Kept   []string
	Errors []error
}

// Err joins every error met during rollback, or returns nil.
func (r RollbackReport) Err() error {
	return errors.Join(r.Errors...)
}

// Rollback undoes the recorded entries in reverse order: new files are
// deleted, overwritten files are restored, and directories are removed only
// when empty. Entries whose target is already gone are skipped. The ledger is
// empty afterwards.
func (l *Ledger) Rollback() RollbackReport {
	var report RollbackReport

	fail := func(entry Entry, err error) {
		l.log.Warn("rollback step failed",
			zap.String("kind", entry.Kind.String()),
			zap.String("path", entry.Path),
			zap.Error(err))
		report.Errors = append(report.Errors, fmt.Errorf("rolling back %s %s: %w", entry.Kind, entry.Path, err))
	}

	for i := len(l.entries) - 1; i >= 0; i-- {
		entry := l.entries[i]

		switch entry.Kind {
		case FileEntry:
			if entry.Backup != nil {
				if err := afero.WriteFile(l.fs, entry.Path, entry.Backup, entry.Mode); err != nil {
					fail(entry, err)
					continue
				}
				if err := l.fs.Chmod(entry.Path, entry.Mode); err != nil {
					fail(entry, err)
					continue
				}
				report.Restored = append(report.Restored, entry.Path)
				continue
			}

			exists, err := afero.Exists(l.fs, entry.Path)
			if err != nil {
				fail(entry, err)
				continue
			}
			if !exists {
				continue
			}
			if err := l.fs.Remove(entry.Path); err != nil {
				fail(entry, err)
				continue
			}
			report.Removed = append(report.Removed, entry.Path)

		case DirEntry:
			exists, err := afero.DirExists(l.fs, entry.Path)
			if err != nil {
				fail(entry, err)
				continue
			}
			if !exists {
				continue
			}
			empty, err := afero.IsEmpty(l.fs, entry.Path)
			if err != nil {
				fail(entry, err)
				continue
			}
			if !empty {
				l.log.Debug("keeping non-empty directory", zap.String("path", entry.Path))
				report.Kept = append(report.Kept, entry.Path)
				continue
			}
			if err := l.fs.Remove(entry.Path); err != nil {
				fail(entry, err)
				continue
			}
			report.Removed = append(report.Removed, entry.Path)
		}
	}

	l.entries = nil
	return report
}
