package httpserver_test

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"mediahub.dev/portal/internal/admin/dashboard"
	"mediahub.dev/portal/internal/admin/middleware"
	"mediahub.dev/portal/internal/admin/testutil"
	"mediahub.dev/portal/internal/backend"
	"mediahub.dev/portal/internal/content"
)

type stubContent struct {
	mu      sync.Mutex
	err     error
	drafts  []backend.Draft
	keys    []string
	tokens  []string
	siteErr error
}

func (s *stubContent) SiteInfo(context.Context, string) (content.SiteInfo, error) {
	if s.siteErr != nil {
		return content.SiteInfo{}, s.siteErr
	}
	return content.SiteInfo{Categories: map[content.Kind][]content.Category{
		content.KindContent: {{ID: "culture", Name: "Culture"}},
		content.KindVideo:   {{ID: "42", Name: "Documentaries"}},
	}}, nil
}

func (s *stubContent) CreateItem(_ context.Context, token, key string, d backend.Draft) (content.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = append(s.tokens, token)
	s.keys = append(s.keys, key)
	if s.err != nil {
		return content.Item{}, s.err
	}
	s.drafts = append(s.drafts, d)
	return content.Item{ID: "new-1", Kind: d.Kind, Title: d.Title}, nil
}

func noRedirect() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

type session struct {
	t      *testing.T
	base   string
	client *http.Client
	csrf   *http.Cookie
}

func newSession(t *testing.T, base string) *session {
	s := &session{t: t, base: base, client: noRedirect()}
	res := s.do(http.MethodGet, "/admin/login", nil, nil)
	res.Body.Close()
	for _, c := range res.Cookies() {
		if c.Name == "csrf_token" {
			s.csrf = c
		}
	}
	require.NotNil(t, s.csrf)
	return s
}

func (s *session) do(method, path string, form url.Values, header http.Header) *http.Response {
	s.t.Helper()
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req, err := http.NewRequest(method, s.base+path, body)
	require.NoError(s.t, err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if s.csrf != nil {
		req.AddCookie(s.csrf)
	}
	res, err := s.client.Do(req)
	require.NoError(s.t, err)
	return res
}

func authed(extra ...string) http.Header {
	h := http.Header{"Authorization": {"Bearer editor-1"}}
	for i := 0; i+1 < len(extra); i += 2 {
		h.Set(extra[i], extra[i+1])
	}
	return h
}

func itemForm(s *session, title string) url.Values {
	return url.Values{
		"csrf_token":      {s.csrf.Value},
		"kind":            {"content"},
		"category_id":     {"culture"},
		"title":           {title},
		"idempotency_key": {"01HXKEY"},
	}
}

func TestDashboardRequiresAuth(t *testing.T) {
	ts := testutil.NewServer(t)
	res, err := noRedirect().Get(ts.URL + "/admin")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusFound, res.StatusCode)
	require.Equal(t, "/admin/login", res.Header.Get("Location"))
	require.Equal(t, "no-store", res.Header.Get("Cache-Control"))
}

func TestDashboardRendersKPIs(t *testing.T) {
	ts := testutil.NewServer(t)
	s := newSession(t, ts.URL)

	res := s.do(http.MethodGet, "/admin/", nil, authed())
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	doc := testutil.ParseHTML(t, readAll(t, res))
	require.Equal(t, 4, doc.Find("#kpis .kpi").Length())
	require.Equal(t, "editor-1", doc.Find(".admin__user").Text())
	require.Equal(t, "/admin/items/new", doc.Find("a.button").AttrOr("href", ""))
}

func TestKPIFragmentIsHTMXOnly(t *testing.T) {
	ts := testutil.NewServer(t, testutil.WithDashboard(&dashboard.StaticService{Err: context.DeadlineExceeded}))
	s := newSession(t, ts.URL)

	res := s.do(http.MethodGet, "/admin/fragments/kpis", nil, authed())
	res.Body.Close()
	require.Equal(t, http.StatusNotFound, res.StatusCode)

	res = s.do(http.MethodGet, "/admin/fragments/kpis", nil, authed("HX-Request", "true"))
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	doc := testutil.ParseHTML(t, readAll(t, res))
	require.Equal(t, 0, doc.Find("html head title").Length())
	require.Equal(t, "Statistics are unavailable right now.", doc.Find("#kpis .alert--error").Text())
}

func TestNewItemFormIssuesIdempotencyKey(t *testing.T) {
	ts := testutil.NewServer(t, testutil.WithContent(&stubContent{}))
	s := newSession(t, ts.URL)

	res := s.do(http.MethodGet, "/admin/items/new?kind=video", nil, authed())
	defer res.Body.Close()
	doc := testutil.ParseHTML(t, readAll(t, res))
	require.Len(t, doc.Find(`input[name="idempotency_key"]`).AttrOr("value", ""), 26)
	require.Equal(t, "video", doc.Find(`select[name="kind"] option[selected]`).AttrOr("value", ""))
	require.Equal(t, s.csrf.Value, doc.Find(`#item-form input[name="csrf_token"]`).AttrOr("value", ""))
}

func TestCreateItemViaHTMX(t *testing.T) {
	stub := &stubContent{}
	ts := testutil.NewServer(t, testutil.WithContent(stub))
	s := newSession(t, ts.URL)

	res := s.do(http.MethodPost, "/admin/items", itemForm(s, "River towns"), authed("HX-Request", "true"))
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, res.Header.Get("HX-Trigger"), `"tone":"success"`)
	doc := testutil.ParseHTML(t, readAll(t, res))
	require.Equal(t, "https://mediahub.test/articles/new-1", doc.Find("#item-form a").First().AttrOr("href", ""))

	require.Equal(t, []string{"01HXKEY"}, stub.keys)
	require.Equal(t, []string{"editor-1"}, stub.tokens)
	require.Equal(t, content.KindContent, stub.drafts[0].Kind)
	require.Equal(t, content.CategoryID("culture"), stub.drafts[0].CategoryID)
}

func TestCreateItemRedirectsWithoutHTMX(t *testing.T) {
	stub := &stubContent{}
	ts := testutil.NewServer(t, testutil.WithContent(stub))
	s := newSession(t, ts.URL)

	res := s.do(http.MethodPost, "/admin/items", itemForm(s, "River towns"), authed("Idempotency-Key", "01HXHEADER"))
	res.Body.Close()
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	require.Equal(t, "/admin/?created=River+towns", res.Header.Get("Location"))
	require.Equal(t, []string{"01HXHEADER"}, stub.keys)
}

func TestCreateItemValidation(t *testing.T) {
	stub := &stubContent{}
	ts := testutil.NewServer(t, testutil.WithContent(stub))
	s := newSession(t, ts.URL)

	res := s.do(http.MethodPost, "/admin/items", itemForm(s, ""), authed("HX-Request", "true"))
	body := readAll(t, res)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	doc := testutil.ParseHTML(t, body)
	require.Equal(t, "This field is required.", doc.Find(".field-error").First().Text())
	require.Equal(t, "01HXKEY", doc.Find(`input[name="idempotency_key"]`).AttrOr("value", ""))
	require.Empty(t, stub.keys)

	res = s.do(http.MethodPost, "/admin/items", itemForm(s, ""), authed())
	res.Body.Close()
	require.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
}

func TestCreateItemBackendFailureKeepsKey(t *testing.T) {
	stub := &stubContent{err: &backend.APIError{Status: http.StatusBadGateway, Message: "Backend is resting"}}
	ts := testutil.NewServer(t, testutil.WithContent(stub))
	s := newSession(t, ts.URL)

	res := s.do(http.MethodPost, "/admin/items", itemForm(s, "River towns"), authed("HX-Request", "true"))
	body := readAll(t, res)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `{"toast":{"message":"Backend is resting","tone":"error"}}`, res.Header.Get("HX-Trigger"))
	doc := testutil.ParseHTML(t, body)
	require.Equal(t, "Backend is resting", doc.Find("#item-form .alert--error").Text())
	require.Equal(t, "01HXKEY", doc.Find(`input[name="idempotency_key"]`).AttrOr("value", ""))
}

func TestCreateItemRequiresCSRF(t *testing.T) {
	stub := &stubContent{}
	ts := testutil.NewServer(t, testutil.WithContent(stub))
	s := newSession(t, ts.URL)

	form := itemForm(s, "River towns")
	form.Del("csrf_token")
	res := s.do(http.MethodPost, "/admin/items", form, authed())
	res.Body.Close()
	require.Equal(t, http.StatusForbidden, res.StatusCode)
	require.Empty(t, stub.keys)
}

type tokenAuthenticator struct{ valid string }

func (a tokenAuthenticator) Authenticate(_ *http.Request, token string) (*middleware.User, error) {
	if token != a.valid {
		return nil, middleware.NewAuthError(middleware.ReasonTokenInvalid, middleware.ErrUnauthorized)
	}
	return &middleware.User{UID: "u-1", Email: "ed@example.com", Token: token}, nil
}

func TestLoginSetsTokenCookie(t *testing.T) {
	ts := testutil.NewServer(t, testutil.WithAuthenticator(tokenAuthenticator{valid: "good"}))
	s := newSession(t, ts.URL)

	res := s.do(http.MethodPost, "/admin/login", url.Values{"csrf_token": {s.csrf.Value}, "id_token": {"bad"}}, nil)
	res.Body.Close()
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res = s.do(http.MethodPost, "/admin/login", url.Values{"csrf_token": {s.csrf.Value}, "id_token": {"good"}}, nil)
	res.Body.Close()
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	require.Equal(t, "/admin/", res.Header.Get("Location"))
	var token *http.Cookie
	for _, c := range res.Cookies() {
		if c.Name == middleware.TokenCookie {
			token = c
		}
	}
	require.NotNil(t, token)
	require.Equal(t, "good", token.Value)
	require.True(t, token.HttpOnly)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/admin/", nil)
	require.NoError(t, err)
	req.AddCookie(token)
	res, err = noRedirect().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "ed@example.com", testutil.ParseHTML(t, readAll(t, res)).Find(".admin__user").Text())
}

func readAll(t *testing.T, res *http.Response) []byte {
	t.Helper()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return b
}
