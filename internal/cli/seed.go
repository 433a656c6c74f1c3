package cli

import (
	"context"
	"embed"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/rajkowski/cms-platform-sub001/internal/model"
	"github.com/rajkowski/cms-platform-sub001/internal/store"
)

//go:embed sample/*.yaml
var sampleFS embed.FS

type seedItem struct {
	model.Item
	files map[string]string
}

var seedItems = []seedItem{
	{
		Item:  model.Item{Name: "Acme Hardware", Summary: "Tools, paint and keys cut while you wait", URL: "https://example.com/acme"},
		files: map[string]string{"price-list.txt": "hammer  5.00\nsaw    12.50\n"},
	},
	{Item: model.Item{Name: "Corner Bakery", Summary: "Sourdough every morning", Body: "Open 6am to 2pm, closed Mondays."}},
	{Item: model.Item{Name: "City Library", Summary: "Books, study rooms and a maker space"}},
}

var seedUsers = []model.User{
	{Username: "admin", FirstName: "Ada", LastName: "Lovelace", Email: "admin@example.com", RoleNames: []string{"admin"}},
	{Username: "member", FirstName: "Grace", LastName: "Hopper", Email: "member@example.com", GroupKeys: []string{"staff"}},
}

type seedResult struct {
	Collection  string   `json:"collection"`
	Items       []string `json:"items"`
	Attachments int      `json:"attachments"`
	Users       []string `json:"users"`
	Layouts     []string `json:"layouts,omitempty"`
}

func newSeedCmd(app *App) *cobra.Command {
	var layouts, force bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demo content (and optionally demo layouts)",
		Example: strings.TrimSpace(`
cms seed
cms --site ./site seed --layouts
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			res := seedResult{}
			if layouts {
				written, err := writeSampleLayouts(app.SiteDir, force)
				if err != nil {
					return writeErr(cmd, err)
				}
				res.Layouts = written
			}

			st, err := openStore(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()
			if err := seedContent(ctx, st, &res); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data":   res,
				"_hints": []string{"cms serve --auth dev", "cms render /directory"},
			})
		},
	}
	cmd.Flags().BoolVar(&layouts, "layouts", false, "Also write demo layouts into --site when it has none")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing layout files with --layouts")
	return cmd
}

func seedContent(ctx context.Context, st *store.Store, res *seedResult) error {
	col, err := st.FindCollection(ctx, "directory")
	if err != nil {
		if !store.IsNotFound(err) {
			return err
		}
		col = &model.Collection{Name: "Directory", Description: "Local listings"}
		if err := st.SaveCollection(ctx, col); err != nil {
			return err
		}
	}
	res.Collection = col.UniqueID

	for _, si := range seedItems {
		it := si.Item
		it.CollectionID = col.ID
		if prev, err := st.FindItem(ctx, col.ID, store.Slug(it.Name)); err == nil {
			it.ID = prev.ID
			it.CreatedAt = prev.CreatedAt
		} else if !store.IsNotFound(err) {
			return err
		}
		if err := st.SaveItem(ctx, &it); err != nil {
			return err
		}
		res.Items = append(res.Items, it.UniqueID)

		existing, err := st.ListAttachments(ctx, it.ID)
		if err != nil {
			return err
		}
		have := map[string]bool{}
		for _, a := range existing {
			have[a.FileName] = true
		}
		for name, body := range si.files {
			if have[name] {
				continue
			}
			if err := st.SaveAttachment(ctx, &model.Attachment{ItemID: it.ID, FileName: name, Data: []byte(body)}); err != nil {
				return err
			}
			res.Attachments++
		}
	}

	for _, u := range seedUsers {
		if prev, err := st.FindUserByUsername(ctx, u.Username); err == nil {
			u.ID = prev.ID
			u.CreatedAt = prev.CreatedAt
		} else if !store.IsNotFound(err) {
			return err
		}
		if err := st.SaveUser(ctx, &u); err != nil {
			return err
		}
		res.Users = append(res.Users, u.Username)
	}
	glog.Infof("seed: %d items, %d users", len(res.Items), len(res.Users))
	return nil
}

// writeSampleLayouts copies the embedded demo site into dir. A dir that
// already holds layouts is left alone unless force is set.
func writeSampleLayouts(dir string, force bool) ([]string, error) {
	dir = strings.TrimSpace(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if !force {
		existing, err := filepath.Glob(filepath.Join(dir, "*.y*ml"))
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			glog.Infof("seed: %s already has %d layouts; skipping", dir, len(existing))
			return nil, nil
		}
	}
	names, err := fs.Glob(sampleFS, "sample/*.yaml")
	if err != nil {
		return nil, err
	}
	var written []string
	for _, n := range names {
		b, err := sampleFS.ReadFile(n)
		if err != nil {
			return nil, err
		}
		dst := filepath.Join(dir, filepath.Base(n))
		if err := os.WriteFile(dst, b, 0o644); err != nil {
			return nil, err
		}
		written = append(written, filepath.Base(n))
	}
	return written, nil
}
