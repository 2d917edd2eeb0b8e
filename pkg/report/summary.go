package report

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
)

//go:embed restart.md
var restartNotice string

// Summarize renders the end-of-run summary to w: the recorded failures (if
// any) and, when a shell restart is needed, the restart notice. Markdown
// rendering degrades to plain text when w is not a terminal.
func (r *Report) Summarize(w io.Writer) {
	if r.HasErrors() {
		pterm.Fprintln(w)
		pterm.DefaultSection.WithWriter(w).Println("Completed with errors")

		items := make([]pterm.BulletListItem, 0, len(r.entries))
		for _, entry := range r.entries {
			items = append(items, pterm.BulletListItem{
				Level:     0,
				Text:      fmt.Sprintf("%s: %v", entry.Step, entry.Err),
				TextStyle: pterm.NewStyle(pterm.FgYellow),
			})
		}
		_ = pterm.DefaultBulletList.WithItems(items).WithWriter(w).Render()
	}

	if r.restartShell {
		fmt.Fprint(w, renderMarkdown(w, restartNotice))
	}
}

func renderMarkdown(w io.Writer, doc string) string {
	style := "notty"
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		style = "auto"
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return doc
	}

	out, err := renderer.Render(doc)
	if err != nil {
		return doc
	}
	return out
}
