package widget

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Func is one lifecycle entry point.
type Func func(ctx *Context) (*Result, error)

// Entry point interfaces; an implementation provides any subset.
type (
	Executor interface {
		Execute(ctx *Context) (*Result, error)
	}
	Poster interface {
		Post(ctx *Context) (*Result, error)
	}
	Deleter interface {
		Delete(ctx *Context) (*Result, error)
	}
	Actioner interface {
		Action(ctx *Context) (*Result, error)
	}
)

// Funcs lets an implementation be assembled from plain functions.
type Funcs struct {
	Execute Func
	Post    Func
	Delete  Func
	Action  Func
}

// Implementation is a registered widget with its entry points resolved once.
type Implementation struct {
	Name  string
	entry [4]Func
}

// Entry returns the entry point for verb, or nil when the widget does not support it.
func (i *Implementation) Entry(v Verb) Func {
	if i == nil || v < 0 || int(v) >= len(i.entry) {
		return nil
	}
	return i.entry[v]
}

func (i *Implementation) Supports(v Verb) bool { return i.Entry(v) != nil }

// Registry maps declared widget names to implementations. It is immutable once built.
type Registry struct {
	impls map[string]*Implementation
}

// NewRegistry resolves each value's entry points. Values are Funcs, *Funcs,
// or any type implementing at least one of Executor, Poster, Deleter, Actioner.
func NewRegistry(impls map[string]any) (*Registry, error) {
	r := &Registry{impls: make(map[string]*Implementation, len(impls))}
	var errs []error
	for name, v := range impls {
		name = strings.TrimSpace(name)
		if name == "" {
			errs = append(errs, errors.New("widget: empty name"))
			continue
		}
		impl, err := resolve(name, v)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		r.impls[name] = impl
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

func resolve(name string, v any) (*Implementation, error) {
	impl := &Implementation{Name: name}
	switch t := v.(type) {
	case Funcs:
		impl.entry = [4]Func{t.Execute, t.Post, t.Delete, t.Action}
	case *Funcs:
		if t == nil {
			return nil, fmt.Errorf("widget %s: nil implementation", name)
		}
		impl.entry = [4]Func{t.Execute, t.Post, t.Delete, t.Action}
	case nil:
		return nil, fmt.Errorf("widget %s: nil implementation", name)
	default:
		if x, ok := v.(Executor); ok {
			impl.entry[Read] = x.Execute
		}
		if x, ok := v.(Poster); ok {
			impl.entry[Post] = x.Post
		}
		if x, ok := v.(Deleter); ok {
			impl.entry[Delete] = x.Delete
		}
		if x, ok := v.(Actioner); ok {
			impl.entry[Action] = x.Action
		}
	}
	for _, f := range impl.entry {
		if f != nil {
			return impl, nil
		}
	}
	return nil, fmt.Errorf("widget %s: %T has no entry points", name, v)
}

func (r *Registry) Lookup(name string) (*Implementation, bool) {
	if r == nil {
		return nil, false
	}
	impl, ok := r.impls[strings.TrimSpace(name)]
	return impl, ok
}

func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Names returns registered names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.impls))
	for n := range r.impls {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
