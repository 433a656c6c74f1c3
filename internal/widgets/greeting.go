package widgets

import "github.com/rajkowski/cms-platform-sub001/internal/widget"

type userGreeting struct{}

func (userGreeting) Execute(ctx *widget.Context) (*widget.Result, error) {
	text := ctx.Pref("guestGreeting", "")
	if ctx.User.Authenticated() {
		text = ctx.Pref("greeting", "Welcome back, "+ctx.User.FullName())
	}
	if text == "" {
		return widget.Empty(), nil
	}
	return widget.Template("userGreeting", map[string]any{
		"text":          text,
		"authenticated": ctx.User.Authenticated(),
	}), nil
}
