// Package prefs expands ${...} markers in widget preferences.
//
// Recognized terms:
//
//	${ctx}                          context path prefix
//	${platform.name|url|version}    product metadata (name is HTML-escaped)
//	${webPage.link|uniqueId}        current page identity
//	${collection.<prop>}            current collection, when the request has one
//	${item.<prop>}                  current item, when the request has one
//	${user.<prop>}                  signed-in user
//	${request.<param>[:encoding]}   request parameter (html, toHtml, json, sql)
//
// Unrecognized markers are left as-is. Recognized terms that cannot be
// resolved become the empty string.
package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/rajkowski/cms-platform-sub001/internal/layout"
	"github.com/rajkowski/cms-platform-sub001/internal/model"
)

// Entities loads the domain objects a page is bound to.
type Entities interface {
	Collection(ctx context.Context, key string) (any, error)
	Item(ctx context.Context, collectionKey, itemKey string) (any, error)
}

// Env is what a single resolution can see. It is built fresh per widget.
type Env struct {
	Context     context.Context
	ContextPath string
	PageLink    string
	PageID      string
	Params      url.Values
	User        any

	// CollectionKey/ItemKey are present only when the page is bound to them.
	CollectionKey string
	ItemKey       string
}

type Resolver struct {
	Platform model.Platform
	Entities Entities
}

// Resolve expands every preference value. The result is keyed by preference name.
func (r *Resolver) Resolve(raw layout.Preferences, env Env) map[string]string {
	out := make(map[string]string, len(raw))
	if len(raw) == 0 {
		return out
	}
	sc := &scope{r: r, env: env}
	for _, p := range raw {
		out[p.Name] = sc.expand(p.Value)
	}
	return out
}

// ResolveString expands a single template string.
func (r *Resolver) ResolveString(s string, env Env) string {
	sc := &scope{r: r, env: env}
	return sc.expand(s)
}

// scope caches entity loads across the preferences of one widget.
type scope struct {
	r   *Resolver
	env Env

	collectionLoaded bool
	collection       any
	itemLoaded       bool
	item             any
}

func (sc *scope) expand(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	rest := s
	for {
		i := strings.Index(rest, "${")
		if i < 0 {
			b.WriteString(rest)
			break
		}
		j := strings.IndexByte(rest[i+2:], '}')
		if j < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:i])
		term := rest[i+2 : i+2+j]
		if v, ok := sc.term(term); ok {
			b.WriteString(v)
		} else {
			b.WriteString(rest[i : i+3+j])
		}
		rest = rest[i+3+j:]
	}
	return b.String()
}

// term resolves one marker body; ok=false means "not ours, leave it alone".
func (sc *scope) term(term string) (string, bool) {
	switch {
	case term == "ctx":
		return sc.env.ContextPath, true
	case strings.HasPrefix(term, "platform."):
		switch strings.TrimPrefix(term, "platform.") {
		case "name":
			return html.EscapeString(sc.r.Platform.Name), true
		case "url":
			return sc.r.Platform.URL, true
		case "version":
			return sc.r.Platform.Version, true
		}
		return "", false
	case term == "webPage.link":
		return sc.env.PageLink, true
	case term == "webPage.uniqueId":
		return sc.env.PageID, true
	case strings.HasPrefix(term, "collection."):
		return property(sc.loadCollection(), strings.TrimPrefix(term, "collection.")), true
	case strings.HasPrefix(term, "item."):
		return property(sc.loadItem(), strings.TrimPrefix(term, "item.")), true
	case strings.HasPrefix(term, "user."):
		return property(sc.env.User, strings.TrimPrefix(term, "user.")), true
	case strings.HasPrefix(term, "request."):
		name, enc, _ := strings.Cut(strings.TrimPrefix(term, "request."), ":")
		if sc.env.Params == nil {
			return "", true
		}
		return Encode(sc.env.Params.Get(name), enc), true
	}
	return "", false
}

func (sc *scope) loadCollection() any {
	if sc.collectionLoaded {
		return sc.collection
	}
	sc.collectionLoaded = true
	key := strings.TrimSpace(sc.env.CollectionKey)
	if key == "" || sc.r.Entities == nil {
		return nil
	}
	c, err := sc.r.Entities.Collection(sc.ctx(), key)
	if err != nil {
		glog.V(2).Infof("prefs: collection %q: %v", key, err)
		return nil
	}
	sc.collection = c
	return c
}

func (sc *scope) loadItem() any {
	if sc.itemLoaded {
		return sc.item
	}
	sc.itemLoaded = true
	key := strings.TrimSpace(sc.env.ItemKey)
	if key == "" || sc.r.Entities == nil {
		return nil
	}
	it, err := sc.r.Entities.Item(sc.ctx(), sc.env.CollectionKey, key)
	if err != nil {
		glog.V(2).Infof("prefs: item %q: %v", key, err)
		return nil
	}
	sc.item = it
	return it
}

func (sc *scope) ctx() context.Context {
	if sc.env.Context != nil {
		return sc.env.Context
	}
	return context.Background()
}

// property reads a (possibly dotted) property from obj via its JSON form.
func property(obj any, prop string) string {
	prop = strings.TrimSpace(prop)
	if obj == nil || prop == "" {
		return ""
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return ""
	}
	data, err := oj.Parse(raw)
	if err != nil {
		return ""
	}
	x, err := jp.ParseString("$." + prop)
	if err != nil {
		return ""
	}
	return scalar(x.First(data))
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any, []any:
		return oj.JSON(t)
	default:
		return fmt.Sprint(t)
	}
}
