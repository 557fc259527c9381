// Package help renders the key reference as markdown.
package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/glamour"

	"github.com/gamestream/streamctl/internal/theme"
)

// Markdown builds the help document from the bindings.
func Markdown(bindings []key.Binding) string {
	var b strings.Builder
	b.WriteString("# streamctl\n\n")
	b.WriteString("Create a stream session, reconnect to one by ARN, and watch its stats.\n\n")
	b.WriteString("| Key | Action |\n|---|---|\n")
	for _, k := range bindings {
		h := k.Help()
		if h.Key == "" {
			continue
		}
		fmt.Fprintf(&b, "| `%s` | %s |\n", h.Key, h.Desc)
	}
	b.WriteString("\nThe stats overlay samples once per second while it is open and the stream is running.\n")
	return b.String()
}

// Render styles the help document for a terminal of the given width. It falls
// back to the raw markdown if rendering fails.
func Render(bindings []key.Binding, width int) string {
	md := Markdown(bindings)
	if width < 40 {
		width = 40
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width-8),
	)
	if err != nil {
		return theme.PanelStyle(width - 4).Render(md)
	}
	out, err := r.Render(md)
	if err != nil {
		return theme.PanelStyle(width - 4).Render(md)
	}
	return theme.PanelStyle(width-4).Render(strings.TrimRight(out, "\n") + "\n\n" + theme.StyleDimmed.Render("esc:close"))
}
