package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// colorYellow marks warnings on the diagnostic stream.
var colorYellow = lipgloss.Color("220")

var styleWarnPrefix = lipgloss.NewStyle().Bold(true).Foreground(colorYellow)

// negotiateColor resolves the effective color support from the configured
// mode and the terminal's capability profile.
func negotiateColor(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		return lipgloss.ColorProfile() != termenv.Ascii
	}
}

// warnf prints a diagnostic-stream warning with an optionally styled prefix.
func warnf(w io.Writer, styled bool, format string, args ...any) {
	prefix := "warning:"
	if styled {
		prefix = styleWarnPrefix.Render(prefix)
	}
	fmt.Fprintf(w, "%s %s\n", prefix, fmt.Sprintf(format, args...))
}
