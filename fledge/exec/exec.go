package exec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// CommandFunc builds the *exec.Cmd for a command line. Tests substitute it to
// avoid spawning real tools.
type CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// Executor runs external commands.
type Executor struct {
	stdout      io.Writer
	stderr      io.Writer
	env         []string
	dir         string
	commandFunc CommandFunc
}

// Options configures command execution.
type Options struct {
	Stdout io.Writer
	Stderr io.Writer
	Env    []string // Additional environment variables
	Dir    string   // Working directory

	// Command overrides how commands are built. Defaults to exec.CommandContext.
	Command CommandFunc
}

// NewExecutor creates an executor. A nil opts writes to the process streams.
func NewExecutor(opts *Options) *Executor {
	if opts == nil {
		opts = &Options{}
	}

	e := &Executor{
		stdout:      opts.Stdout,
		stderr:      opts.Stderr,
		env:         opts.Env,
		dir:         opts.Dir,
		commandFunc: opts.Command,
	}
	if e.stdout == nil {
		e.stdout = os.Stdout
	}
	if e.stderr == nil {
		e.stderr = os.Stderr
	}
	if e.commandFunc == nil {
		e.commandFunc = exec.CommandContext
	}
	return e
}

// Run executes a command, streaming its output to the executor's writers.
func (e *Executor) Run(ctx context.Context, name string, args ...string) error {
	cmd := e.commandFunc(ctx, name, args...)
	if e.dir != "" {
		cmd.Dir = e.dir
	}
	if len(e.env) > 0 {
		base := cmd.Env
		if base == nil {
			base = os.Environ()
		}
		cmd.Env = append(base, e.env...)
	}
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s cancelled: %w", name, ctx.Err())
		}
		if isCommandNotFound(err) {
			return fmt.Errorf("%w\n💡 Command '%s' not found. Please install it and try again", err, name)
		}
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return nil
}

// RunWithSpinner runs a command behind a progress spinner drawn on stderr.
// The command's own output is captured and only replayed when it fails.
func (e *Executor) RunWithSpinner(ctx context.Context, message, name string, args ...string) error {
	var captured strings.Builder
	quiet := &Executor{
		stdout:      &captured,
		stderr:      &captured,
		env:         e.env,
		dir:         e.dir,
		commandFunc: e.commandFunc,
	}

	p := tea.NewProgram(newSpinnerModel(message), tea.WithOutput(e.stderr), tea.WithInput(nil))
	finished := make(chan struct{})
	go func() {
		_, _ = p.Run()
		close(finished)
	}()

	err := quiet.Run(ctx, name, args...)
	p.Send(spinnerDoneMsg{err: err})

	select {
	case <-finished:
	case <-time.After(time.Second):
		p.Kill()
	}

	if err != nil && captured.Len() > 0 {
		fmt.Fprint(e.stderr, captured.String())
	}
	return err
}

type spinnerModel struct {
	spinner spinner.Model
	message string
	done    bool
	err     error
}

type spinnerDoneMsg struct {
	err error
}

func newSpinnerModel(message string) *spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return &spinnerModel{spinner: s, message: message}
}

func (m *spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinnerDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		if !m.done {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m *spinnerModel) View() string {
	if m.done {
		if m.err != nil {
			return fmt.Sprintf("❌ %s\n", m.message)
		}
		return fmt.Sprintf("✅ %s\n", m.message)
	}
	return fmt.Sprintf("%s %s...", m.spinner.View(), m.message)
}

func isCommandNotFound(err error) bool {
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "executable file not found") ||
		strings.Contains(msg, "command not found")
}

// SplitCommandLine splits a configured command line into words. Single and
// double quotes group words; there is no variable expansion.
func SplitCommandLine(line string) ([]string, error) {
	var (
		words   []string
		current strings.Builder
		quote   rune
		inWord  bool
	)

	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			inWord = true
		case r == ' ' || r == '\t' || r == '\n':
			if inWord {
				words = append(words, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(r)
			inWord = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote in %q", quote, line)
	}
	if inWord {
		words = append(words, current.String())
	}
	return words, nil
}

// GenericCommand provides a fluent API for building and executing commands.
type GenericCommand struct {
	executor    *Executor
	command     string
	args        []string
	env         []string
	dir         string
	showSpinner bool
	spinnerMsg  string
}

// NewGenericCommand creates a new command builder bound to executor.
func NewGenericCommand(executor *Executor, command string) *GenericCommand {
	return &GenericCommand{executor: executor, command: command}
}

// WithArgs adds arguments to the command.
func (g *GenericCommand) WithArgs(args ...string) *GenericCommand {
	g.args = append(g.args, args...)
	return g
}

// WithEnv adds environment variables.
func (g *GenericCommand) WithEnv(env ...string) *GenericCommand {
	g.env = append(g.env, env...)
	return g
}

// WithDir sets the working directory.
func (g *GenericCommand) WithDir(dir string) *GenericCommand {
	g.dir = dir
	return g
}

// WithSpinner enables a spinner with the given message.
func (g *GenericCommand) WithSpinner(message string) *GenericCommand {
	g.showSpinner = true
	g.spinnerMsg = message
	return g
}

// Run executes the command.
func (g *GenericCommand) Run(ctx context.Context) error {
	e := &Executor{
		stdout:      g.executor.stdout,
		stderr:      g.executor.stderr,
		env:         append(append([]string{}, g.executor.env...), g.env...),
		dir:         g.executor.dir,
		commandFunc: g.executor.commandFunc,
	}
	if g.dir != "" {
		e.dir = g.dir
	}

	if g.showSpinner {
		return e.RunWithSpinner(ctx, g.spinnerMsg, g.command, g.args...)
	}
	return e.Run(ctx, g.command, g.args...)
}

// String returns the command line for logs and dry runs.
func (g *GenericCommand) String() string {
	return strings.Join(append([]string{g.command}, g.args...), " ")
}
