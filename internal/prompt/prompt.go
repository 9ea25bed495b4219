// Package prompt renders the interactive prompt string. It is one of the
// external collaborators named in §1 (out of scope for the engine's own
// logic beyond a minimal, honest implementation): the real line editor
// calls Build(lastStatus) for the string to display before reading a
// line.
package prompt

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

var (
	colorOK   = color.New(color.FgGreen, color.Bold)
	colorFail = color.New(color.FgRed, color.Bold)
	colorPath = color.New(color.FgCyan)
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}
}

// Build returns the prompt to display before reading the next line,
// reflecting lastStatus (§3's ShellContext.last_status) and, when set,
// the MINISHELL_PROMPT override left by the "setprompt" rc directive.
func Build(lastStatus int) string {
	if custom := os.Getenv("MINISHELL_PROMPT"); custom != "" {
		return custom
	}

	dir, err := os.Getwd()
	if err != nil {
		dir = "?"
	}

	status := colorOK.Sprint("$")
	if lastStatus != 0 {
		status = colorFail.Sprint("$")
	}

	return fmt.Sprintf("%s %s ", colorPath.Sprint(dir), status)
}
