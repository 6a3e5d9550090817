package shell

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	// titleStyle for bold headers
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("160"))

	// dimStyle for muted text
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	// resultStyle for echoed values
	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	// errorStyle for errors
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	// headerBoxStyle for the startup banner
	headerBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("160")).
			Padding(0, 1)

	// promptStyle for the input prompt
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("81")).
			Bold(true)
)

const (
	primaryPrompt      = "ink> "
	continuationPrompt = "...  "
)

// Banner describes the shell at startup.
type Banner struct {
	Version string
	Socket  string
	Connect bool
}

// FormatBanner renders the startup header.
func FormatBanner(w io.Writer, b Banner) {
	mode := "connected"
	if !b.Connect {
		mode = "standalone"
	}
	content := fmt.Sprintf("%s %s\n%s %s  %s %s\n%s",
		titleStyle.Render("inkbridge"), dimStyle.Render(b.Version),
		dimStyle.Render("Mode:"), titleStyle.Render(mode),
		dimStyle.Render("Socket:"), b.Socket,
		dimStyle.Render("Type exit or press Ctrl-D to quit."),
	)
	fmt.Fprintln(w, headerBoxStyle.Render(content))
}

// FormatResult echoes the value of the last expression.
func FormatResult(w io.Writer, s string) {
	if s == "" {
		return
	}
	fmt.Fprintln(w, dimStyle.Render("=>"), resultStyle.Render(s))
}

// FormatError renders an error from a hook or from user code.
func FormatError(w io.Writer, err error) {
	fmt.Fprintln(w, errorStyle.Render("Error: "+err.Error()))
}

func renderPrompt(p string) string {
	return promptStyle.Render(p)
}
