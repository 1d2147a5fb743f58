package generator

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// faultyFs fails writes and removals of paths containing a marker.
type faultyFs struct {
	afero.Fs
	failWrite  string
	failRemove string
}

func (f *faultyFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if f.failWrite != "" && flag&(os.O_WRONLY|os.O_RDWR) != 0 && strings.Contains(name, f.failWrite) {
		return nil, &os.PathError{Op: "open", Path: name, Err: errors.New("injected write failure")}
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func (f *faultyFs) Remove(name string) error {
	if f.failRemove != "" && strings.Contains(name, f.failRemove) {
		return &os.PathError{Op: "remove", Path: name, Err: errors.New("injected remove failure")}
	}
	return f.Fs.Remove(name)
}

func TestLedger_MkdirAllRecordsParentFirst(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, mem.MkdirAll("/proj", 0o755))
	l := NewLedger(mem, nil)

	created, err := l.MkdirAll("/proj/a/b/c", 0o755)
	require.NoError(t, err)
	assert.Equal(t, []string{"/proj/a", "/proj/a/b", "/proj/a/b/c"}, created)

	entries := l.Entries()
	require.Len(t, entries, 3)
	for i, want := range created {
		assert.Equal(t, DirEntry, entries[i].Kind)
		assert.Equal(t, want, entries[i].Path)
	}

	// Existing directories are not recorded again.
	created, err = l.MkdirAll("/proj/a/b", 0o755)
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Equal(t, 3, l.Len())
}

func TestLedger_MkdirAllThroughFile(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/proj/file", []byte("x"), 0o644))
	l := NewLedger(mem, nil)

	_, err := l.MkdirAll("/proj/file/sub", 0o755)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a directory")
}

func TestLedger_WriteFileRefusesExisting(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/proj/keep.go", []byte("original"), 0o644))
	l := NewLedger(mem, nil)

	err := l.WriteFile("/proj/keep.go", []byte("new"), 0o644)
	require.ErrorIs(t, err, fs.ErrExist)
	assert.Zero(t, l.Len())

	l.Rollback()
	content, err := afero.ReadFile(mem, "/proj/keep.go")
	require.NoError(t, err)
	assert.Equal(t, "original", string(content))
}

func TestLedger_RollbackReverseOrder(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, mem.MkdirAll("/proj", 0o755))
	l := NewLedger(mem, nil)

	_, err := l.MkdirAll("/proj/mod/domain", 0o755)
	require.NoError(t, err)
	require.NoError(t, l.WriteFile("/proj/mod/domain/a.go", []byte("a"), 0o644))
	require.NoError(t, l.WriteFile("/proj/mod/domain/b.go", []byte("b"), 0o644))

	report := l.Rollback()
	require.NoError(t, report.Err())
	assert.Equal(t, []string{
		"/proj/mod/domain/b.go",
		"/proj/mod/domain/a.go",
		"/proj/mod/domain",
		"/proj/mod",
	}, report.Removed)

	exists, err := afero.Exists(mem, "/proj/mod")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = afero.DirExists(mem, "/proj")
	require.NoError(t, err)
	assert.True(t, exists, "pre-existing directories are never removed")
	assert.Zero(t, l.Len())
}

func TestLedger_RollbackKeepsNonEmptyDirectories(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, mem.MkdirAll("/proj", 0o755))
	l := NewLedger(mem, nil)

	_, err := l.MkdirAll("/proj/mod", 0o755)
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(mem, "/proj/mod/user.txt", []byte("mine"), 0o644))

	report := l.Rollback()
	require.NoError(t, report.Err())
	assert.Equal(t, []string{"/proj/mod"}, report.Kept)

	content, err := afero.ReadFile(mem, "/proj/mod/user.txt")
	require.NoError(t, err)
	assert.Equal(t, "mine", string(content))
}

func TestLedger_RollbackRestoresOverwrittenFile(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/proj/entity.go", []byte("hand written"), 0o644))
	l := NewLedger(mem, nil)

	require.NoError(t, l.OverwriteFile("/proj/entity.go", []byte("generated"), 0o644))
	entries := l.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, []byte("hand written"), entries[0].Backup)

	report := l.Rollback()
	require.NoError(t, report.Err())
	assert.Equal(t, []string{"/proj/entity.go"}, report.Restored)

	content, err := afero.ReadFile(mem, "/proj/entity.go")
	require.NoError(t, err)
	assert.Equal(t, "hand written", string(content))
}

func TestLedger_RollbackRestoresFileMode(t *testing.T) {
	tests := []struct {
		name    string
		disturb func(t *testing.T, fs afero.Fs, path string)
	}{
		{"mode changed", func(t *testing.T, fs afero.Fs, path string) {
			require.NoError(t, fs.Chmod(path, 0o644))
		}},
		{"file removed", func(t *testing.T, fs afero.Fs, path string) {
			require.NoError(t, fs.Remove(path))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := afero.NewMemMapFs()
			path := "/proj/secrets.go"
			require.NoError(t, afero.WriteFile(mem, path, []byte("secret"), 0o600))
			l := NewLedger(mem, nil)

			require.NoError(t, l.OverwriteFile(path, []byte("generated"), 0o644))
			assert.Equal(t, os.FileMode(0o600), l.Entries()[0].Mode)
			tt.disturb(t, mem, path)

			require.NoError(t, l.Rollback().Err())

			info, err := mem.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
			content, err := afero.ReadFile(mem, path)
			require.NoError(t, err)
			assert.Equal(t, "secret", string(content))
		})
	}
}

func TestLedger_FailedWriteIsStillLedgered(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, mem.MkdirAll("/proj", 0o755))
	l := NewLedger(&faultyFs{Fs: mem, failWrite: "broken"}, nil)

	_, err := l.MkdirAll("/proj/mod", 0o755)
	require.NoError(t, err)
	require.NoError(t, l.WriteFile("/proj/mod/ok.go", []byte("ok"), 0o644))

	err = l.WriteFile("/proj/mod/broken.go", []byte("nope"), 0o644)
	require.Error(t, err)
	assert.Equal(t, 3, l.Len())

	report := l.Rollback()
	require.NoError(t, report.Err())
	assert.Equal(t, []string{"/proj/mod/ok.go", "/proj/mod"}, report.Removed)
}

func TestLedger_RollbackContinuesPastErrors(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, mem.MkdirAll("/proj", 0o755))

	core, logs := observer.New(zapcore.WarnLevel)
	faulty := &faultyFs{Fs: mem}
	l := NewLedger(faulty, zap.New(core))

	_, err := l.MkdirAll("/proj/mod", 0o755)
	require.NoError(t, err)
	require.NoError(t, l.WriteFile("/proj/mod/first.go", []byte("1"), 0o644))
	require.NoError(t, l.WriteFile("/proj/mod/stuck.go", []byte("2"), 0o644))
	require.NoError(t, l.WriteFile("/proj/mod/last.go", []byte("3"), 0o644))

	faulty.failRemove = "stuck"
	report := l.Rollback()

	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Err().Error(), "stuck.go")
	assert.Equal(t, []string{"/proj/mod/last.go", "/proj/mod/first.go"}, report.Removed)
	assert.Equal(t, []string{"/proj/mod"}, report.Kept)
	assert.Equal(t, 1, logs.FilterMessage("rollback step failed").Len())
}

func TestLedger_RollbackSkipsVanishedEntries(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, mem.MkdirAll("/proj", 0o755))
	l := NewLedger(mem, nil)

	require.NoError(t, l.WriteFile("/proj/gone.go", []byte("x"), 0o644))
	require.NoError(t, mem.Remove("/proj/gone.go"))

	report := l.Rollback()
	require.NoError(t, report.Err())
	assert.Empty(t, report.Removed)
}
