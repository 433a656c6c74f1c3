package widgets

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/golang/glog"

	"github.com/rajkowski/cms-platform-sub001/internal/store"
	"github.com/rajkowski/cms-platform-sub001/internal/widget"
)

// ParamDownload names the attachment fileDownload streams instead of rendering.
const ParamDownload = "download"

// fileDownload lists the current item's attachments and streams one when asked.
type fileDownload struct {
	st *store.Store
}

func (w fileDownload) Execute(ctx *widget.Context) (*widget.Result, error) {
	_, it, err := currentItem(ctx, w.st)
	if err != nil {
		return missing(ctx, err)
	}
	if id := ctx.Param(ParamDownload); id != "" {
		return w.stream(ctx, it.ID, id)
	}
	files, err := w.st.ListAttachments(ctx.Context(), it.ID)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return widget.Empty(), nil
	}
	return widget.Template("fileDownload", map[string]any{
		"title": ctx.Pref("title", "Downloads"),
		"files": files,
		"link":  ctx.Link(ctx.RequestPath),
	}), nil
}

func (w fileDownload) stream(ctx *widget.Context, itemID, id string) (*widget.Result, error) {
	a, err := w.st.FindAttachment(ctx.Context(), id)
	if err != nil {
		return missing(ctx, err)
	}
	if a.ItemID != itemID {
		glog.V(1).Infof("widget %s: attachment %s does not belong to item %s", ctx.UniqueID, id, itemID)
		return widget.Empty(), nil
	}
	if ctx.Response == nil {
		return widget.Empty(), nil
	}
	h := ctx.Response.Header()
	h.Set("Content-Type", a.ContentType)
	h.Set("Content-Length", strconv.Itoa(len(a.Data)))
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.FileName}))
	ctx.Response.WriteHeader(http.StatusOK)
	if _, err := ctx.Response.Write(a.Data); err != nil {
		glog.Warningf("widget %s: streaming %s: %v", ctx.UniqueID, a.ID, err)
	}
	return widget.Handled(), nil
}
