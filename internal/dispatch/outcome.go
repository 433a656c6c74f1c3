package dispatch

import "github.com/rajkowski/cms-platform-sub001/internal/render"

// State is where a container walk ended up.
type State int

const (
	Walking State = iota
	JSONShortCircuit
	HandledExternally
	RedirectPending
	Completed
)

func (s State) String() string {
	switch s {
	case Walking:
		return "WALKING"
	case JSONShortCircuit:
		return "JSON_SHORT_CIRCUIT"
	case HandledExternally:
		return "HANDLED_EXTERNALLY"
	case RedirectPending:
		return "REDIRECT_PENDING"
	case Completed:
		return "COMPLETED"
	}
	return "UNKNOWN"
}

// WidgetState is what happened to one visited widget.
type WidgetState int

const (
	SkippedByAccess WidgetState = iota
	SkippedNotTarget
	Executed
)

func (s WidgetState) String() string {
	switch s {
	case SkippedByAccess:
		return "SKIPPED_BY_ACCESS"
	case SkippedNotTarget:
		return "SKIPPED_NOT_TARGET"
	case Executed:
		return "EXECUTED"
	}
	return "UNKNOWN"
}

func (s WidgetState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type WidgetReport struct {
	InstanceID string      `json:"instanceId"`
	Name       string      `json:"name"`
	State      WidgetState `json:"state"`
}

// Outcome is the result of dispatching one container.
type Outcome struct {
	State State `json:"state"`
	// Tree is nil once a widget has taken over the response.
	Tree     *render.Tree   `json:"-"`
	Target   string         `json:"target,omitempty"`
	Redirect string         `json:"redirect,omitempty"`
	JSON     []byte         `json:"-"`
	Widgets  []WidgetReport `json:"widgets"`
}

// Handled reports whether the transport must not render a page.
func (o *Outcome) Handled() bool {
	if o == nil {
		return false
	}
	switch o.State {
	case JSONShortCircuit, HandledExternally, RedirectPending:
		return true
	}
	return false
}

// Executed lists instance ids of widgets that ran, in order.
func (o *Outcome) Executed() []string {
	if o == nil {
		return nil
	}
	var out []string
	for _, r := range o.Widgets {
		if r.State == Executed {
			out = append(out, r.InstanceID)
		}
	}
	return out
}

// StateOf returns the recorded state of an instance; ok is false for widgets
// the walk never reached.
func (o *Outcome) StateOf(instanceID string) (WidgetState, bool) {
	if o == nil {
		return 0, false
	}
	for _, r := range o.Widgets {
		if r.InstanceID == instanceID {
			return r.State, true
		}
	}
	return 0, false
}

func (o *Outcome) report(id, name string, st WidgetState) {
	o.Widgets = append(o.Widgets, WidgetReport{InstanceID: id, Name: name, State: st})
}
