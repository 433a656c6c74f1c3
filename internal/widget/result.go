package widget

import "encoding/json"

// Kind tags what a Result asks the dispatcher to do.
type Kind int

const (
	Continue          Kind = iota // render HTML or Template content (possibly none)
	Redelegate                    // run Delegate instead, once
	Redirect                      // send the client to RedirectURL
	JSONDocument                  // write JSON verbatim and stop the walk
	HandledExternally             // the widget wrote the response itself
)

func (k Kind) String() string {
	switch k {
	case Continue:
		return "continue"
	case Redelegate:
		return "redelegate"
	case Redirect:
		return "redirect"
	case JSONDocument:
		return "json"
	case HandledExternally:
		return "handled"
	}
	return "unknown"
}

// Result is what a widget entry point returns.
//
// HTML and Template are mutually exclusive; HTML is a pre-rendered fragment and
// Template names a template rendered with Bindings.
type Result struct {
	Kind Kind

	HTML     string
	Template string
	Bindings map[string]any

	Delegate    string
	RedirectURL string
	JSON        []byte

	Title       string
	Description string
	Keywords    string

	Messages      Messages
	RequestObject any
	SharedValues  map[string]string
}

func Empty() *Result { return &Result{Kind: Continue} }

func HTML(s string) *Result { return &Result{Kind: Continue, HTML: s} }

func Template(name string, bindings map[string]any) *Result {
	return &Result{Kind: Continue, Template: name, Bindings: bindings}
}

func Delegate(name string) *Result { return &Result{Kind: Redelegate, Delegate: name} }

func RedirectTo(url string) *Result { return &Result{Kind: Redirect, RedirectURL: url} }

// JSON wraps a document that is written verbatim.
func JSON(doc []byte) *Result { return &Result{Kind: JSONDocument, JSON: doc} }

// JSONValue marshals v into a JSON result.
func JSONValue(v any) (*Result, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return JSON(b), nil
}

func Handled() *Result { return &Result{Kind: HandledExternally} }

// HasContent reports whether the result renders anything into the page.
func (r *Result) HasContent() bool {
	return r != nil && r.Kind == Continue && (r.HTML != "" || r.Template != "")
}

func (r *Result) WithMessage(s string) *Result { r.Messages.Message = s; return r }
func (r *Result) WithSuccess(s string) *Result { r.Messages.Success = s; return r }
func (r *Result) WithWarning(s string) *Result { r.Messages.Warning = s; return r }
func (r *Result) WithError(s string) *Result   { r.Messages.Error = s; return r }

func (r *Result) WithRequestObject(v any) *Result { r.RequestObject = v; return r }

func (r *Result) WithSharedValue(k, v string) *Result {
	if r.SharedValues == nil {
		r.SharedValues = map[string]string{}
	}
	r.SharedValues[k] = v
	return r
}

// WithPage overrides the page title/description/keywords; blank values are ignored.
func (r *Result) WithPage(title, description, keywords string) *Result {
	r.Title, r.Description, r.Keywords = title, description, keywords
	return r
}
