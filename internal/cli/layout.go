package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/rajkowski/cms-platform-sub001/internal/layout"
	"github.com/rajkowski/cms-platform-sub001/internal/perm"
)

func newLayoutCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Inspect and validate page layouts",
	}
	cmd.AddCommand(newLayoutValidateCmd(app))
	cmd.AddCommand(newLayoutInspectCmd(app))
	return cmd
}

type pageSummary struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Link    string `json:"link,omitempty"`
	Widgets int    `json:"widgets"`
}

func summarize(c *layout.Container) pageSummary {
	return pageSummary{Name: c.Name, Kind: string(c.Kind), Link: c.Link, Widgets: c.WidgetCount()}
}

func newLayoutValidateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check every layout parses and names a registered widget",
		RunE: func(cmd *cobra.Command, args []string) error {
			site, err := loadSite(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			var out []pageSummary
			if site.Header != nil {
				out = append(out, summarize(site.Header))
			}
			for _, c := range site.Pages() {
				out = append(out, summarize(c))
			}
			if site.Footer != nil {
				out = append(out, summarize(site.Footer))
			}
			return writeOut(cmd, app, map[string]any{
				"data":   out,
				"_hints": []string{"cms layout inspect <link>"},
			})
		},
	}
}

func newLayoutInspectCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [link]",
		Short: "Print the section/column/widget tree of a page (or all containers)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			site, err := loadSite(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			var cs []*layout.Container
			if len(args) == 1 {
				c, _, ok := site.PageFor(args[0])
				if !ok {
					return writeErr(cmd, fmt.Errorf("no page for %s", args[0]))
				}
				cs = append(cs, c)
			} else {
				if site.Header != nil {
					cs = append(cs, site.Header)
				}
				cs = append(cs, site.Pages()...)
				if site.Footer != nil {
					cs = append(cs, site.Footer)
				}
			}
			w := cmd.OutOrStdout()
			st := newTreeStyles(w)
			for i, c := range cs {
				if i > 0 {
					fmt.Fprintln(w)
				}
				writeTree(w, st, c)
			}
			return nil
		},
	}
}

type treeStyles struct {
	container lipgloss.Style
	node      lipgloss.Style
	widget    lipgloss.Style
	access    lipgloss.Style
	dim       lipgloss.Style
}

// newTreeStyles picks colors for w; non-terminal writers get plain text.
func newTreeStyles(w io.Writer) treeStyles {
	r := lipgloss.NewRenderer(w)
	return treeStyles{
		container: r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		node:      r.NewStyle().Foreground(lipgloss.Color("8")),
		widget:    r.NewStyle().Bold(true),
		access:    r.NewStyle().Foreground(lipgloss.Color("9")),
		dim:       r.NewStyle().Faint(true),
	}
}

func accessLabel(a perm.Access) string {
	var parts []string
	if len(a.Roles) > 0 {
		parts = append(parts, "roles="+strings.Join(a.Roles, ","))
	}
	if len(a.Groups) > 0 {
		parts = append(parts, "groups="+strings.Join(a.Groups, ","))
	}
	if len(parts) == 0 {
		return ""
	}
	return " [" + strings.Join(parts, " ") + "]"
}

func writeTree(w io.Writer, st treeStyles, c *layout.Container) {
	head := fmt.Sprintf("%s %s", c.Kind, c.Name)
	if c.Link != "" {
		head += " " + c.Link
	}
	fmt.Fprintln(w, st.container.Render(head)+st.access.Render(accessLabel(c.Access)))
	if c.Title != "" {
		fmt.Fprintln(w, st.dim.Render("  title: "+c.Title))
	}

	ordinal := 0
	for si, s := range c.Sections {
		sBranch, sIndent := branch(si == len(c.Sections)-1)
		fmt.Fprintln(w, "  "+sBranch+st.node.Render(fmt.Sprintf("section %d", si))+st.access.Render(accessLabel(s.Access)))
		for ci, col := range s.Columns {
			cBranch, cIndent := branch(ci == len(s.Columns)-1)
			fmt.Fprintln(w, "  "+sIndent+cBranch+st.node.Render(fmt.Sprintf("column %d", ci))+st.access.Render(accessLabel(col.Access)))
			for wi, wd := range col.Widgets {
				ordinal++
				wBranch, _ := branch(wi == len(col.Widgets)-1)
				line := st.widget.Render(wd.InstanceID(ordinal))
				if n := len(wd.Preferences); n > 0 {
					line += st.dim.Render(fmt.Sprintf(" (%d prefs)", n))
				}
				fmt.Fprintln(w, "  "+sIndent+cIndent+wBranch+line+st.access.Render(accessLabel(wd.Access)))
			}
		}
	}
}

func branch(last bool) (string, string) {
	if last {
		return "└─ ", "   "
	}
	return "├─ ", "│  "
}
