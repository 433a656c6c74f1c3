package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rajkowski/cms-platform-sub001/internal/format"
	"github.com/rajkowski/cms-platform-sub001/internal/layout"
	"github.com/rajkowski/cms-platform-sub001/internal/store"
	"github.com/rajkowski/cms-platform-sub001/internal/widgets"
)

// Version is stamped at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

type App struct {
	SiteDir    string
	DBPath     string
	PrettyJSON bool
	Format     string
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "cms",
		Short:        "Widget-composed site server",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Create a demo site and database, then serve it
  cms seed --layouts
  cms serve --auth dev

  # Render a page for a user without starting a server
  cms render /directory --user admin

  # Check layouts against the registered widgets
  cms layout validate
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&app.SiteDir, "site", envOr("CMS_SITE", "site"), "Directory of page layout YAML files")
	cmd.PersistentFlags().StringVar(&app.DBPath, "db", envOr("CMS_DB", "cms.sqlite"), "Path to the sqlite content database")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("CMS_FORMAT", "json"), "Output format (json|yaml)")
	// glog registers -v, -logtostderr, ... on the standard flag set.
	cmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newRenderCmd(app))
	cmd.AddCommand(newLayoutCmd(app))
	cmd.AddCommand(newUsersCmd(app))
	cmd.AddCommand(newSeedCmd(app))
	cmd.AddCommand(newPublishCmd(app))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}

func openStore(ctx context.Context, app *App) (*store.Store, error) {
	p := strings.TrimSpace(app.DBPath)
	if p == "" {
		return nil, errors.New("missing --db")
	}
	return store.Open(ctx, p)
}

func loadSite(app *App) (*layout.Site, error) {
	site, err := layout.Load(app.SiteDir)
	if err != nil {
		return nil, err
	}
	// Widget names only; no store is needed to check them.
	reg, err := widgets.NewRegistry(nil)
	if err != nil {
		return nil, err
	}
	if err := layout.Validate(site, reg.Has); err != nil {
		return nil, err
	}
	return site, nil
}
