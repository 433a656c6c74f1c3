package widgets

import (
	"bytes"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/rajkowski/cms-platform-sub001/internal/widget"
)

var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		emoji.Emoji,
	),
	goldmark.WithRendererOptions(
		// Raw HTML inside markdown is dropped; use the html preference instead.
		html.WithHardWraps(),
	),
)

var htmlPolicy = bluemonday.UGCPolicy()

func renderMarkdown(src string) (string, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return "", nil
	}
	var b bytes.Buffer
	if err := markdownRenderer.Convert([]byte(src), &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

// content shows static copy from its markdown or html preference.
type content struct{}

func (content) Execute(ctx *widget.Context) (*widget.Result, error) {
	if md := ctx.Pref("markdown", ""); md != "" {
		out, err := renderMarkdown(md)
		if err != nil {
			return nil, err
		}
		return widget.HTML(out), nil
	}
	if raw := ctx.Pref("html", ""); raw != "" {
		return widget.HTML(htmlPolicy.Sanitize(raw)), nil
	}
	return widget.Empty(), nil
}
