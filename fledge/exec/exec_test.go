package exec

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// helperCommand re-runs the test binary as a fake external tool.
func helperCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = []string{"GO_WANT_HELPER_PROCESS=1"}
	return cmd
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for i, arg := range args {
		if arg == "--" {
			args = args[i+1:]
			break
		}
	}

	switch args[0] {
	case "echo":
		fmt.Println(strings.Join(args[1:], " "))
		os.Exit(0)
	case "env":
		fmt.Println(os.Getenv(args[1]))
		os.Exit(0)
	case "pwd":
		wd, _ := os.Getwd()
		fmt.Println(wd)
		os.Exit(0)
	case "sleep":
		time.Sleep(10 * time.Second)
		os.Exit(0)
	case "error":
		fmt.Fprintln(os.Stderr, "error occurred")
		os.Exit(1)
	}
	os.Exit(2)
}

func newTestExecutor(stdout, stderr *bytes.Buffer) *Executor {
	return NewExecutor(&Options{Stdout: stdout, Stderr: stderr, Command: helperCommand})
}

func TestExecutor_Run(t *testing.T) {
	var stdout, stderr bytes.Buffer
	e := newTestExecutor(&stdout, &stderr)

	require.NoError(t, e.Run(context.Background(), "echo", "hello", "world"))
	assert.Equal(t, "hello world\n", stdout.String())
}

func TestExecutor_RunWithError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	e := newTestExecutor(&stdout, &stderr)

	err := e.Run(context.Background(), "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error failed")
	assert.Contains(t, stderr.String(), "error occurred")
}

func TestExecutor_Cancelled(t *testing.T) {
	var stdout, stderr bytes.Buffer
	e := newTestExecutor(&stdout, &stderr)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := e.Run(ctx, "sleep")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
}

func TestExecutor_NotFound(t *testing.T) {
	e := NewExecutor(&Options{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}})

	err := e.Run(context.Background(), "forge-definitely-not-installed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestExecutor_RunWithSpinnerReplaysOutputOnFailure(t *testing.T) {
	var stdout, stderr bytes.Buffer
	e := newTestExecutor(&stdout, &stderr)

	require.NoError(t, e.RunWithSpinner(context.Background(), "Echoing", "echo", "quiet"))
	assert.Empty(t, stdout.String())

	stderr.Reset()
	require.Error(t, e.RunWithSpinner(context.Background(), "Failing", "error"))
	assert.Contains(t, stderr.String(), "error occurred")
}

func TestGenericCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	e := newTestExecutor(&stdout, &stderr)

	cmd := NewGenericCommand(e, "env").WithArgs("FORGE_TEST").WithEnv("FORGE_TEST=42")
	assert.Equal(t, "env FORGE_TEST", cmd.String())
	require.NoError(t, cmd.Run(context.Background()))
	assert.Equal(t, "42\n", stdout.String())
}

func TestGenericCommand_WithDir(t *testing.T) {
	var stdout, stderr bytes.Buffer
	e := newTestExecutor(&stdout, &stderr)
	dir := t.TempDir()

	require.NoError(t, NewGenericCommand(e, "pwd").WithDir(dir).Run(context.Background()))

	resolved, err := os.Stat(strings.TrimSpace(stdout.String()))
	require.NoError(t, err)
	expected, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, os.SameFile(expected, resolved))
}

func TestSplitCommandLine(t *testing.T) {
	tests := []struct {
		line    string
		want    []string
		wantErr bool
	}{
		{"", nil, false},
		{"firebird generate model", []string{"firebird", "generate", "model"}, false},
		{"  spaced   out  ", []string{"spaced", "out"}, false},
		{`tool --name "Invoice Line"`, []string{"tool", "--name", "Invoice Line"}, false},
		{`tool '' end`, []string{"tool", "", "end"}, false},
		{`tool "open`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := SplitCommandLine(tt.line)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
