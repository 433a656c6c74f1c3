package dispatch

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by every terminal outcome the transport must answer with a 404.
var ErrNotFound = errors.New("not found")

// AuthorizationDeniedError means a node on the way to the requested content
// rejected the current identity.
type AuthorizationDeniedError struct {
	Page string
	Node string
}

func (e *AuthorizationDeniedError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("page %s: access denied", e.Page)
	}
	return fmt.Sprintf("page %s: access denied at %s", e.Page, e.Node)
}

func (e *AuthorizationDeniedError) Unwrap() error { return ErrNotFound }

// TargetNotFoundError means a mutating request named no widget, or one that
// does not exist on the page.
type TargetNotFoundError struct {
	Page   string
	Target string
}

func (e *TargetNotFoundError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("page %s: no target widget", e.Page)
	}
	return fmt.Sprintf("page %s: target widget %s not found", e.Page, e.Target)
}

func (e *TargetNotFoundError) Unwrap() error { return ErrNotFound }

// EmptyRenderError means a read walk finished without rendering anything.
type EmptyRenderError struct {
	Page string
}

func (e *EmptyRenderError) Error() string {
	return fmt.Sprintf("page %s: nothing to render", e.Page)
}

func (e *EmptyRenderError) Unwrap() error { return ErrNotFound }
