package input

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("cyan")).Bold(true)
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Confirm asks the user a yes/no question on stdin.
// Returns true if the user answers yes (y/Y/yes/YES), false otherwise.
// If defaultYes is true, pressing Enter returns true.
//
// Example:
//
//	if input.Confirm("Overwrite published stubs?", false) {
//	    // User said yes
//	}
//	// Displays: Overwrite published stubs? [y/N]: _
func Confirm(message string, defaultYes bool) bool {
	return ConfirmFrom(os.Stdin, os.Stdout, message, defaultYes)
}

// ConfirmFrom is Confirm reading the answer from r and writing the prompt to w.
func ConfirmFrom(r io.Reader, w io.Writer, message string, defaultYes bool) bool {
	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}
	fmt.Fprint(w, promptStyle.Render(message)+" "+hintStyle.Render(hint)+": ")

	answer, err := bufio.NewReader(r).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	if answer == "" {
		// EOF without input behaves like pressing Enter.
		if err != nil && err != io.EOF {
			return false
		}
		return defaultYes
	}
	return answer == "y" || answer == "yes"
}
