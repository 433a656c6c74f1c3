package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/rajkowski/cms-platform-sub001/internal/docs"
)

func newDocsCmd(app *App) *cobra.Command {
	var raw bool
	var width int

	cmd := &cobra.Command{
		Use:   "docs [topic]",
		Short: "Print reference documentation",
		Args:  cobra.MaximumNArgs(1),
		Example: strings.TrimSpace(`
cms docs
cms docs preferences
cms docs widgets --raw
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				topics := docs.Topics()
				hints := make([]string, 0, len(topics))
				for _, t := range topics {
					hints = append(hints, "cms docs "+t)
				}
				return writeOut(cmd, app, map[string]any{"data": topics, "_hints": hints})
			}
			md, ok := docs.Get(args[0])
			if !ok {
				return writeErr(cmd, fmt.Errorf("unknown topic: %s (have %s)", args[0], strings.Join(docs.Topics(), ", ")))
			}
			w := cmd.OutOrStdout()
			if raw || !isTerminal(w) {
				_, err := fmt.Fprint(w, md)
				return err
			}
			out, err := renderMarkdown(md, width)
			if err != nil {
				return writeErr(cmd, err)
			}
			_, err = fmt.Fprint(w, out)
			return err
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the markdown source")
	cmd.Flags().IntVar(&width, "width", 100, "Wrap width for rendered output")
	return cmd
}

// renderMarkdown uses a fixed style; auto style probes the terminal and may block.
func renderMarkdown(md string, width int) (string, error) {
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(md)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
