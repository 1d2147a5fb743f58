package generator

import (
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// ConflictResolution represents what to do with an existing file.
type ConflictResolution int

const (
	Skip ConflictResolution = iota
	Overwrite
	Cancel
)

func (c ConflictResolution) String() string {
	switch c {
	case Skip:
		return "skip"
	case Overwrite:
		return "overwrite"
	default:
		return "cancel"
	}
}

// ErrConflict is returned when a generated file would replace an existing one
// and no resolution was requested.
var ErrConflict = errors.New("file already exists")

// ConflictStrategy decides how to resolve a single conflict.
type ConflictStrategy interface {
	Resolve(path string, existing, newer []byte) (ConflictResolution, error)
}

// Resolver handles file conflicts according to the strategy picked from flags.
type Resolver struct {
	strategy ConflictStrategy
}

var (
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("yellow")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("cyan")).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("white")).Bold(true)
)

// NewResolver creates a conflict resolver from CLI flags.
// Returns error if --force is combined with --skip.
func NewResolver(force, skip, interactive bool) (*Resolver, error) {
	if force && skip {
		return nil, fmt.Errorf("--force cannot be combined with --skip")
	}

	var strategy ConflictStrategy
	switch {
	case force:
		strategy = ForceStrategy{}
	case skip:
		strategy = SkipStrategy{}
	case interactive && IsTerminal():
		strategy = InteractiveStrategy{}
	default:
		strategy = FailStrategy{}
	}
	return &Resolver{strategy: strategy}, nil
}

// NewResolverWithStrategy wraps an explicit strategy.
func NewResolverWithStrategy(strategy ConflictStrategy) *Resolver {
	return &Resolver{strategy: strategy}
}

// ResolveConflict determines what to do with a file that already exists.
func (r *Resolver) ResolveConflict(path string, existing, newer []byte) (ConflictResolution, error) {
	return r.strategy.Resolve(path, existing, newer)
}

// IsTerminal reports whether stdin is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// ForceStrategy always overwrites.
type ForceStrategy struct{}

func (ForceStrategy) Resolve(string, []byte, []byte) (ConflictResolution, error) {
	return Overwrite, nil
}

// SkipStrategy always keeps the existing file.
type SkipStrategy struct{}

func (SkipStrategy) Resolve(string, []byte, []byte) (ConflictResolution, error) {
	return Skip, nil
}

// FailStrategy refuses to touch existing files.
type FailStrategy struct{}

func (FailStrategy) Resolve(path string, _, _ []byte) (ConflictResolution, error) {
	return Cancel, fmt.Errorf("%s: %w (use --force to overwrite or --skip to keep it)", path, ErrConflict)
}

// InteractiveStrategy asks the user through a keyboard-driven menu.
type InteractiveStrategy struct{}

func (InteractiveStrategy) Resolve(path string, existing, newer []byte) (ConflictResolution, error) {
	p := tea.NewProgram(newConflictMenuModel(path, len(existing), len(newer)))
	final, err := p.Run()
	if err != nil {
		return Cancel, fmt.Errorf("failed to show menu: %w", err)
	}

	result := final.(conflictMenuModel)
	if result.selected == nil {
		return Cancel, nil
	}
	return *result.selected, nil
}

type conflictMenuModel struct {
	path          string
	existingBytes int
	newerBytes    int
	choices       []ConflictResolution
	cursor        int
	selected      *ConflictResolution
}

func newConflictMenuModel(path string, existingBytes, newerBytes int) conflictMenuModel {
	return conflictMenuModel{
		path:          path,
		existingBytes: existingBytes,
		newerBytes:    newerBytes,
		choices:       []ConflictResolution{Skip, Overwrite, Cancel},
	}
}

func (m conflictMenuModel) Init() tea.Cmd {
	return nil
}

func (m conflictMenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "q", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.choices)-1 {
			m.cursor++
		}
	case "enter":
		choice := m.choices[m.cursor]
		m.selected = &choice
		return m, tea.Quit
	}
	return m, nil
}

var choiceLabels = map[ConflictResolution]string{
	Skip:      "Skip (keep existing file)",
	Overwrite: "Overwrite (replace with generated code)",
	Cancel:    "Cancel operation",
}

func (m conflictMenuModel) View() string {
	var b strings.Builder

	b.WriteString(warningStyle.Render("⚠️  File conflict detected: ") + titleStyle.Render(m.path) + "\n")
	b.WriteString(mutedStyle.Render("    Existing: ") + formatFileSize(int64(m.existingBytes)) +
		mutedStyle.Render("    Generated: ") + formatFileSize(int64(m.newerBytes)) + "\n\n")
	b.WriteString(mutedStyle.Render("    [↑/↓] Navigate    [Enter] Select    [q] Cancel") + "\n\n")

	for i, choice := range m.choices {
		label := choiceLabels[choice]
		if m.cursor == i {
			b.WriteString("    " + selectedStyle.Render("> "+label) + "\n")
			continue
		}
		b.WriteString("      " + label + "\n")
	}
	return b.String()
}

// formatFileSize formats a byte count in human-readable form.
func formatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
