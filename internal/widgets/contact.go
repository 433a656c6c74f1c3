package widgets

import (
	"net/mail"
	"strings"

	"github.com/golang/glog"

	"github.com/rajkowski/cms-platform-sub001/internal/model"
	"github.com/rajkowski/cms-platform-sub001/internal/store"
	"github.com/rajkowski/cms-platform-sub001/internal/widget"
)

var contactFields = []string{"name", "email", "message"}

// contactForm stores what a visitor submits. A rejected post brings the
// visitor back to a form that still holds their input.
type contactForm struct {
	st *store.Store
}

func (w contactForm) Execute(ctx *widget.Context) (*widget.Result, error) {
	values := ctx.RequestObject
	if values == nil && ctx.User.Authenticated() {
		values = map[string]string{"name": ctx.User.FullName(), "email": ctx.User.Email}
	}
	return widget.Template("contactForm", map[string]any{
		"title":       ctx.Pref("title", "Contact us"),
		"buttonLabel": ctx.Pref("buttonLabel", "Send"),
		"values":      values,
		"done":        ctx.Messages.Success != "",
	}), nil
}

func (w contactForm) Post(ctx *widget.Context) (*widget.Result, error) {
	fields := make(map[string]string, len(contactFields))
	for _, f := range contactFields {
		fields[f] = ctx.Param(f)
	}
	// Kept across the redirect so the form can be shown again as submitted.
	ctx.RequestObject = fields

	switch {
	case fields["name"] == "":
		return nil, widget.Invalid("Please enter your name")
	case fields["email"] == "":
		return nil, widget.Invalid("Please enter your email address")
	case !validEmail(fields["email"]):
		return nil, widget.Invalid("%s is not a valid email address", fields["email"])
	case fields["message"] == "":
		return nil, widget.Invalid("Please enter a message")
	}
	if ctx.Param("website") != "" {
		// Honeypot field filled in; pretend success.
		glog.V(1).Infof("widget %s: dropping likely spam submission", ctx.UniqueID)
		ctx.RequestObject = nil
		return widget.Empty().WithSuccess(ctx.Pref("successMessage", "Thank you, your message has been sent.")), nil
	}

	sub := &model.FormSubmission{
		Form:   ctx.Pref("form", "contact"),
		Fields: fields,
	}
	if ctx.User.Authenticated() {
		sub.UserID = ctx.User.ID
	}
	if err := w.st.SaveSubmission(ctx.Context(), sub); err != nil {
		return nil, err
	}
	ctx.RequestObject = nil
	return widget.Empty().WithSuccess(ctx.Pref("successMessage", "Thank you, your message has been sent.")), nil
}

func validEmail(s string) bool {
	a, err := mail.ParseAddress(s)
	return err == nil && strings.Contains(a.Address, "@") && a.Name == ""
}
