package widget

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/golang/glog"
)

// Invoker resolves widgets by declared name and calls the entry point for a verb.
type Invoker struct {
	Registry *Registry
}

// Invoke runs name's entry point for verb.
//
// A Redelegate result is followed exactly once: the named widget's entry point
// for the same verb runs with the same Context and its result replaces the
// original. A second Redelegate is dropped.
//
// Failures inside widget bodies (errors or panics) are logged and returned as
// *ExecutionError with a nil result. For Post, ctx.Messages.Error is set so the
// user sees why the form was rejected.
func (iv *Invoker) Invoke(name string, verb Verb, ctx *Context) (*Result, error) {
	res, err := iv.call(name, verb, ctx)
	if err != nil || res == nil || res.Kind != Redelegate {
		return res, err
	}

	target := strings.TrimSpace(res.Delegate)
	if target == "" {
		glog.Warningf("widget %s (%s): redelegate without a target", name, ctx.UniqueID)
		return nil, nil
	}
	glog.V(2).Infof("widget %s (%s): redelegating %s to %s", name, ctx.UniqueID, verb, target)

	res, err = iv.call(target, verb, ctx)
	if err != nil {
		return nil, err
	}
	if res != nil && res.Kind == Redelegate {
		glog.Warningf("widget %s (%s): %s redelegated again to %s; ignoring", name, ctx.UniqueID, target, res.Delegate)
		return nil, nil
	}
	return res, nil
}

func (iv *Invoker) call(name string, verb Verb, ctx *Context) (res *Result, err error) {
	impl, ok := iv.Registry.Lookup(name)
	if !ok {
		return nil, &NotFoundError{Name: name, Verb: verb}
	}
	fn := impl.Entry(verb)
	if fn == nil {
		return nil, &NotFoundError{Name: name, Verb: verb}
	}

	defer func() {
		if p := recover(); p != nil {
			glog.V(1).Infof("widget %s (%s) %s panic stack:\n%s", name, ctx.UniqueID, verb, debug.Stack())
			res, err = nil, iv.failed(name, verb, ctx, fmt.Errorf("panic: %v", p))
		}
	}()

	res, err = fn(ctx)
	if err != nil {
		return nil, iv.failed(name, verb, ctx, err)
	}
	return res, nil
}

func (iv *Invoker) failed(name string, verb Verb, ctx *Context, err error) error {
	var ve *ValidationError
	isValidation := errors.As(err, &ve) && strings.TrimSpace(ve.Message) != ""
	switch {
	case isValidation && verb.Mutating():
		glog.V(1).Infof("widget %s (%s) %s rejected: %v", name, ctx.UniqueID, verb, err)
		ctx.Messages.Error = ve.Message
	case verb == Post:
		glog.Errorf("widget %s (%s) %s failed: %v", name, ctx.UniqueID, verb, err)
		ctx.Messages.Error = MsgValidationFailed
	default:
		glog.Errorf("widget %s (%s) %s failed: %v", name, ctx.UniqueID, verb, err)
	}
	return &ExecutionError{Name: name, Verb: verb, Err: err}
}
