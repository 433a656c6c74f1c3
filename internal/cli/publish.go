package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rajkowski/cms-platform-sub001/internal/model"
	"github.com/rajkowski/cms-platform-sub001/internal/publish"
	"github.com/rajkowski/cms-platform-sub001/internal/web"
)

func newPublishCmd(app *App) *cobra.Command {
	var (
		to          string
		overwrite   bool
		contextPath string
		name        string
		maxItems    int
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Write every anonymous page as static HTML",
		Example: strings.TrimSpace(`
cms publish --to ./public
cms publish --to ./public --context-path /cms --overwrite
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(to) == "" {
				return writeErr(cmd, errors.New("publish: missing --to"))
			}
			ctx := cmd.Context()
			srv, err := web.NewServer(ctx, web.ServerConfig{
				SiteDir:     app.SiteDir,
				DBPath:      app.DBPath,
				AuthMode:    "none",
				ContextPath: contextPath,
				Platform:    model.Platform{Name: name, Version: Version},
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer srv.Close()

			site, err := loadSite(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			links, err := publish.Links(ctx, site, srv.Store(), maxItems)
			if err != nil {
				return writeErr(cmd, err)
			}
			res, err := publish.WriteSite(ctx, srv, links, to, publish.WriteOptions{
				Overwrite: overwrite,
				MaxItems:  maxItems,
				Assets:    web.Assets(),
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": res})
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Output directory")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing files")
	cmd.Flags().StringVar(&contextPath, "context-path", envOr("CMS_CONTEXT_PATH", ""), "URL prefix used in generated links")
	cmd.Flags().StringVar(&name, "name", envOr("CMS_NAME", "CMS"), "Platform name exposed as ${platform.name}")
	cmd.Flags().IntVar(&maxItems, "max-items", 500, "Items expanded per collection")
	return cmd
}
