package web

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/rajkowski/cms-platform-sub001/internal/dispatch"
	"github.com/rajkowski/cms-platform-sub001/internal/model"
	"github.com/rajkowski/cms-platform-sub001/internal/widget"
)

var testSite = map[string]string{
	"00-header.yaml": `
kind: header
name: header
sections:
  - columns:
      - widgets:
          - name: content
            preferences:
              markdown: Site header
`,
	"about.yaml": `
name: about
link: /about
title: About us
sections:
  - columns:
      - widgets:
          - name: content
            preferences:
              markdown: "# Hello"
          - name: userGreeting
            preferences:
              guestGreeting: Hello guest
          - name: content
            roles: [admin]
            preferences:
              html: <p>admin tools</p>
`,
	"contact.yaml": `
name: contact
link: /contact
sections:
  - columns:
      - widgets:
          - name: contactForm
`,
	"item.yaml": `
name: item
link: /directory/{collection}/{item}
sections:
  - columns:
      - widgets:
          - name: likeButton
`,
}

type testServer struct {
	srv    *Server
	http   *httptest.Server
	client *http.Client
}

func newTestServer(t *testing.T, mutate func(*ServerConfig)) *testServer {
	t.Helper()
	dir := t.TempDir()
	siteDir := filepath.Join(dir, "site")
	if err := os.MkdirAll(siteDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for name, body := range testSite {
		if err := os.WriteFile(filepath.Join(siteDir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	cfg := ServerConfig{
		SiteDir:   siteDir,
		DBPath:    filepath.Join(dir, "cms.sqlite"),
		SessionDB: filepath.Join(dir, "sessions.db"),
		AuthMode:  "dev",
		Platform:  model.Platform{Name: "Test CMS"},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := NewServer(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })

	ctx := context.Background()
	st := srv.Store()
	col := &model.Collection{Name: "Directory"}
	if err := st.SaveCollection(ctx, col); err != nil {
		t.Fatalf("SaveCollection: %v", err)
	}
	if err := st.SaveItem(ctx, &model.Item{CollectionID: col.ID, Name: "Acme Hardware"}); err != nil {
		t.Fatalf("SaveItem: %v", err)
	}
	if err := st.SaveUser(ctx, &model.User{Username: "ada", FirstName: "Ada", LastName: "Lovelace", RoleNames: []string{"admin"}}); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}

	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &testServer{
		srv:  srv,
		http: hs,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (ts *testServer) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	res, err := ts.client.Get(ts.http.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return res, readBody(t, res)
}

func (ts *testServer) post(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	res, err := ts.client.PostForm(ts.http.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return res, readBody(t, res)
}

func readBody(t *testing.T, res *http.Response) string {
	t.Helper()
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

var tokenRE = regexp.MustCompile(`name="token" value="([^"]+)"`)

func formToken(t *testing.T, body string) string {
	t.Helper()
	m := tokenRE.FindStringSubmatch(body)
	if m == nil {
		t.Fatalf("expected a form token in %s", body)
	}
	return m[1]
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	res, body := ts.get(t, "/health")
	if res.StatusCode != http.StatusOK || body != "ok\n" {
		t.Fatalf("expected ok, got %d %q", res.StatusCode, body)
	}
}

func TestPage_RendersWidgetsAndHeader(t *testing.T) {
	ts := newTestServer(t, nil)
	res, body := ts.get(t, "/about")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.StatusCode, body)
	}
	for _, want := range []string{"<title>About us</title>", "<h1>Hello</h1>", "Site header", "Hello guest", "Sign in"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in page, got %s", want, body)
		}
	}
	if strings.Contains(body, "admin tools") {
		t.Fatalf("expected admin-only widget to be hidden from guests")
	}
	if c := res.Header.Values("Set-Cookie"); len(c) == 0 || !strings.HasPrefix(c[0], sessionCookieName+"=") {
		t.Fatalf("expected a session cookie, got %v", c)
	}
}

func TestPage_UnknownPathIsNotFound(t *testing.T) {
	ts := newTestServer(t, nil)
	res, body := ts.get(t, "/nope")
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.StatusCode)
	}
	if !strings.Contains(body, "could not be found") {
		t.Fatalf("expected not-found page, got %s", body)
	}
}

func TestPage_ItemLinkWithUnknownItemIsNotFound(t *testing.T) {
	ts := newTestServer(t, nil)
	res, _ := ts.get(t, "/directory/directory/missing")
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for a page with nothing to render, got %d", res.StatusCode)
	}
}

func TestContactForm_ValidationRoundTrip(t *testing.T) {
	ts := newTestServer(t, nil)
	_, body := ts.get(t, "/contact")
	tok := formToken(t, body)

	res, _ := ts.post(t, "/contact", url.Values{
		dispatch.ParamTarget: {"contactForm1"},
		dispatch.ParamToken:  {tok},
		"email":              {"ann@example.com"},
		"message":            {"hello"},
	})
	if res.StatusCode != http.StatusSeeOther || res.Header.Get("Location") != "/contact" {
		t.Fatalf("expected redirect back to /contact, got %d %q", res.StatusCode, res.Header.Get("Location"))
	}

	_, body = ts.get(t, "/contact")
	if !strings.Contains(body, "Please enter your name") {
		t.Fatalf("expected validation message, got %s", body)
	}
	if !strings.Contains(body, `value="ann@example.com"`) {
		t.Fatalf("expected submitted email to be restored, got %s", body)
	}

	_, body = ts.get(t, "/contact")
	if strings.Contains(body, "Please enter your name") {
		t.Fatalf("expected message to be shown once")
	}

	res, _ = ts.post(t, "/contact", url.Values{
		dispatch.ParamTarget: {"contactForm1"},
		dispatch.ParamToken:  {formToken(t, body)},
		"name":               {"Ann"},
		"email":              {"ann@example.com"},
		"message":            {"hello"},
	})
	if res.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", res.StatusCode)
	}
	subs, err := ts.srv.Store().ListSubmissions(context.Background(), "contact")
	if err != nil || len(subs) != 1 {
		t.Fatalf("expected one submission, got %d (%v)", len(subs), err)
	}
}

func TestContactForm_StaleTokenRedirectsWithMessage(t *testing.T) {
	ts := newTestServer(t, nil)
	_, _ = ts.get(t, "/contact")

	res, _ := ts.post(t, "/contact", url.Values{
		dispatch.ParamTarget: {"contactForm1"},
		dispatch.ParamToken:  {"stale"},
		"name":               {"Ann"},
		"email":              {"ann@example.com"},
		"message":            {"hello"},
	})
	if res.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", res.StatusCode)
	}
	_, body := ts.get(t, "/contact")
	if !strings.Contains(body, dispatch.MsgTokenMismatch) {
		t.Fatalf("expected token mismatch message, got %s", body)
	}
	subs, _ := ts.srv.Store().ListSubmissions(context.Background(), "contact")
	if len(subs) != 0 {
		t.Fatalf("expected nothing stored for a stale form, got %d", len(subs))
	}
}

func TestContactForm_ResubmittedFormIsStoredOnce(t *testing.T) {
	ts := newTestServer(t, nil)
	_, body := ts.get(t, "/contact")
	form := url.Values{
		dispatch.ParamTarget: {"contactForm1"},
		dispatch.ParamToken:  {formToken(t, body)},
		"name":               {"Ann"},
		"email":              {"ann@example.com"},
		"message":            {"hello"},
	}
	for i := 0; i < 2; i++ {
		res, _ := ts.post(t, "/contact", form)
		if res.StatusCode != http.StatusSeeOther {
			t.Fatalf("expected redirect, got %d", res.StatusCode)
		}
	}
	subs, err := ts.srv.Store().ListSubmissions(context.Background(), "contact")
	if err != nil || len(subs) != 1 {
		t.Fatalf("expected one submission, got %d (%v)", len(subs), err)
	}
	_, body = ts.get(t, "/contact")
	if !strings.Contains(body, dispatch.MsgTokenMismatch) {
		t.Fatalf("expected token mismatch message after a resubmit, got %s", body)
	}
}

func TestPost_UnknownTargetIsNotFound(t *testing.T) {
	ts := newTestServer(t, nil)
	_, body := ts.get(t, "/contact")
	res, _ := ts.post(t, "/contact", url.Values{
		dispatch.ParamTarget: {"contactForm9"},
		dispatch.ParamToken:  {formToken(t, body)},
	})
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.StatusCode)
	}
}

func TestLikeAction_WritesJSON(t *testing.T) {
	ts := newTestServer(t, nil)
	_, body := ts.get(t, "/directory/directory/acme-hardware")
	res, body := ts.post(t, "/directory/directory/acme-hardware", url.Values{
		"action":             {"like"},
		dispatch.ParamTarget: {"likeButton1"},
		dispatch.ParamToken:  {formToken(t, body)},
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.StatusCode, body)
	}
	if !strings.HasPrefix(res.Header.Get("Content-Type"), "application/json") {
		t.Fatalf("expected JSON content type, got %q", res.Header.Get("Content-Type"))
	}
	if !strings.Contains(body, `"likes":1`) {
		t.Fatalf("unexpected JSON %s", body)
	}
}

func TestDevLogin_ShowsRestrictedWidgets(t *testing.T) {
	ts := newTestServer(t, nil)
	_, body := ts.get(t, "/login")
	if !strings.Contains(body, "Ada Lovelace (ada)") {
		t.Fatalf("expected user list, got %s", body)
	}

	res, _ := ts.post(t, "/login", url.Values{"username": {"ada"}, "return": {"/about"}})
	if res.StatusCode != http.StatusSeeOther || res.Header.Get("Location") != "/about" {
		t.Fatalf("expected redirect to /about, got %d %q", res.StatusCode, res.Header.Get("Location"))
	}

	_, body = ts.get(t, "/about")
	if !strings.Contains(body, "Welcome back, Ada Lovelace") {
		t.Fatalf("expected greeting, got %s", body)
	}
	if !strings.Contains(body, "admin tools") {
		t.Fatalf("expected admin widget for an admin, got %s", body)
	}

	res, _ = ts.post(t, "/logout", url.Values{})
	if res.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected redirect after logout, got %d", res.StatusCode)
	}
	_, body = ts.get(t, "/about")
	if strings.Contains(body, "admin tools") {
		t.Fatalf("expected admin widget to be hidden after logout")
	}
}

func TestDevLogin_UnknownUser(t *testing.T) {
	ts := newTestServer(t, nil)
	res, body := ts.post(t, "/login", url.Values{"username": {"nobody"}})
	if res.StatusCode != http.StatusUnauthorized || !strings.Contains(body, "unknown user") {
		t.Fatalf("expected unknown user error, got %d %s", res.StatusCode, body)
	}
}

func TestLogin_DisabledWithoutDevAuth(t *testing.T) {
	ts := newTestServer(t, func(c *ServerConfig) { c.AuthMode = "none" })
	res, _ := ts.get(t, "/login")
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 when auth is off, got %d", res.StatusCode)
	}
}

func TestContextPath_PrefixesRoutesAndRedirects(t *testing.T) {
	ts := newTestServer(t, func(c *ServerConfig) { c.ContextPath = "cms/" })
	if res, _ := ts.get(t, "/about"); res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected unprefixed path to miss, got %d", res.StatusCode)
	}
	res, body := ts.get(t, "/cms/contact")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 under the context path, got %d", res.StatusCode)
	}
	res, _ = ts.post(t, "/cms/contact", url.Values{
		dispatch.ParamTarget: {"contactForm1"},
		dispatch.ParamToken:  {formToken(t, body)},
	})
	if res.StatusCode != http.StatusSeeOther || res.Header.Get("Location") != "/cms/contact" {
		t.Fatalf("expected prefixed redirect, got %d %q", res.StatusCode, res.Header.Get("Location"))
	}
}

func TestNewServer_RejectsBadAuthMode(t *testing.T) {
	_, err := NewServer(context.Background(), ServerConfig{SiteDir: t.TempDir(), DBPath: ":memory:", AuthMode: "magic"})
	if err == nil {
		t.Fatalf("expected an error for an unsupported auth mode")
	}
}

func TestVerbFor(t *testing.T) {
	cases := []struct {
		method string
		form   url.Values
		want   widget.Verb
	}{
		{http.MethodGet, nil, widget.Read},
		{http.MethodHead, nil, widget.Read},
		{http.MethodDelete, nil, widget.Delete},
		{http.MethodPost, url.Values{"_method": {"DELETE"}}, widget.Delete},
		{http.MethodPost, url.Values{"action": {"like"}}, widget.Action},
		{http.MethodPost, url.Values{"name": {"x"}}, widget.Post},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(tc.method, "/", nil)
		r.Form = tc.form
		if r.Form == nil {
			r.Form = url.Values{}
		}
		if got := verbFor(r); got != tc.want {
			t.Fatalf("%s %v: expected %v, got %v", tc.method, tc.form, tc.want, got)
		}
	}
}

func TestSessionCookie_RejectsTampering(t *testing.T) {
	secret := []byte("secret")
	v, err := signSessionCookie(secret, "sess-1", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	id, err := verifySessionCookie(secret, v)
	if err != nil || id != "sess-1" {
		t.Fatalf("expected sess-1, got %q (%v)", id, err)
	}
	if _, err := verifySessionCookie([]byte("other"), v); err == nil {
		t.Fatalf("expected a different key to be rejected")
	}
	expired, _ := signSessionCookie(secret, "sess-1", -time.Minute)
	if _, err := verifySessionCookie(secret, expired); err == nil {
		t.Fatalf("expected an expired cookie to be rejected")
	}
}

func TestLoadOrInitSecretKey_IsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".cms", "secret.key")
	a, err := loadOrInitSecretKey(path)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	b, err := loadOrInitSecretKey(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(a) != string(b) || len(a) == 0 {
		t.Fatalf("expected the same key on reload")
	}
}
