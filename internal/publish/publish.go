// Package publish writes a site out as static HTML files.
package publish

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/golang/glog"

	"github.com/rajkowski/cms-platform-sub001/internal/layout"
	"github.com/rajkowski/cms-platform-sub001/internal/model"
)

// Renderer renders one site path as an anonymous visitor would see it.
// ok is false for paths with no static form (not found, denied, redirects,
// JSON or streamed responses).
type Renderer interface {
	RenderPage(ctx context.Context, path string) (html []byte, ok bool, err error)
}

// Catalog enumerates the content that fills {collection} and {item} links.
type Catalog interface {
	ListCollections(ctx context.Context) ([]model.Collection, error)
	ListItems(ctx context.Context, collectionID, query string, limit int) ([]model.Item, error)
}

type WriteOptions struct {
	Overwrite bool
	// MaxItems caps items expanded per collection; 0 means 500.
	MaxItems int
	// Assets are copied under <dir>/static.
	Assets fs.FS
}

type WriteResult struct {
	Written []string `json:"written"`
	Skipped []string `json:"skipped"`
}

// Links lists every concrete path the site can serve: exact page links plus
// placeholder links expanded with the catalog's collections and items.
func Links(ctx context.Context, site *layout.Site, cat Catalog, maxItems int) ([]string, error) {
	if site == nil {
		return nil, errors.New("missing site")
	}
	if maxItems <= 0 {
		maxItems = 500
	}
	var (
		out  []string
		cols []model.Collection
	)
	seen := map[string]bool{}
	add := func(l string) {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	for _, c := range site.Pages() {
		link := c.Link
		if !strings.Contains(link, "{") {
			add(link)
			continue
		}
		if !strings.Contains(link, layout.ParamCollection) {
			glog.V(1).Infof("publish: %s has no %s placeholder; skipping", link, layout.ParamCollection)
			continue
		}
		if cat == nil {
			continue
		}
		if cols == nil {
			var err error
			if cols, err = cat.ListCollections(ctx); err != nil {
				return nil, err
			}
		}
		for _, col := range cols {
			withCol := strings.ReplaceAll(link, layout.ParamCollection, col.UniqueID)
			if !strings.Contains(withCol, layout.ParamItem) {
				add(withCol)
				continue
			}
			items, err := cat.ListItems(ctx, col.ID, "", maxItems)
			if err != nil {
				return nil, err
			}
			for _, it := range items {
				add(strings.ReplaceAll(withCol, layout.ParamItem, it.UniqueID))
			}
		}
	}
	return out, nil
}

// WriteSite renders links into toDir, one index.html per path.
func WriteSite(ctx context.Context, r Renderer, links []string, toDir string, opt WriteOptions) (WriteResult, error) {
	if r == nil {
		return WriteResult{}, errors.New("missing renderer")
	}
	toDir = strings.TrimSpace(toDir)
	if toDir == "" {
		return WriteResult{}, errors.New("missing --to")
	}
	toDir = filepath.Clean(toDir)

	res := WriteResult{Written: []string{}, Skipped: []string{}}
	for _, link := range links {
		b, ok, err := r.RenderPage(ctx, link)
		if err != nil {
			return res, err
		}
		if !ok {
			res.Skipped = append(res.Skipped, link)
			continue
		}
		p := OutputPath(toDir, link)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return res, err
		}
		if err := writeFile(p, b, opt.Overwrite); err != nil {
			return res, err
		}
		res.Written = append(res.Written, p)
	}

	if opt.Assets != nil {
		written, err := copyAssets(opt.Assets, filepath.Join(toDir, "static"), opt.Overwrite)
		if err != nil {
			return res, err
		}
		res.Written = append(res.Written, written...)
	}
	return res, nil
}

// OutputPath maps a site path to <dir>/<path>/index.html.
func OutputPath(dir, link string) string {
	clean := strings.Trim(path.Clean("/"+link), "/")
	if clean == "" {
		return filepath.Join(dir, "index.html")
	}
	return filepath.Join(dir, filepath.FromSlash(clean), "index.html")
}

func copyAssets(assets fs.FS, dst string, overwrite bool) ([]string, error) {
	var written []string
	err := fs.WalkDir(assets, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		b, err := fs.ReadFile(assets, p)
		if err != nil {
			return err
		}
		out := filepath.Join(dst, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return err
		}
		if err := writeFile(out, b, overwrite); err != nil {
			return err
		}
		written = append(written, out)
		return nil
	})
	return written, err
}

func writeFile(path string, b []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.New("file exists (use --overwrite): " + path)
		}
	}
	return os.WriteFile(path, b, 0o644)
}
