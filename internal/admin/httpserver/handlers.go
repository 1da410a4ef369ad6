package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	"mediahub.dev/portal/internal/admin/dashboard"
	"mediahub.dev/portal/internal/admin/forms"
	adminmw "mediahub.dev/portal/internal/admin/middleware"
	"mediahub.dev/portal/internal/admin/views"
	"mediahub.dev/portal/internal/backend"
	"mediahub.dev/portal/internal/content"
	"mediahub.dev/portal/internal/observability"
)

const (
	tokenMaxAge = time.Hour
	adminLang   = "en"
)

type handlers struct {
	base          string
	loginPath     string
	publicBaseURL string
	authn         adminmw.Authenticator
	dashboard     dashboard.Service
	content       ContentService
	secure        bool
}

func (h *handlers) path(p string) string {
	return strings.TrimRight(h.base, "/") + p
}

func (h *handlers) dashboardPage(w http.ResponseWriter, r *http.Request) {
	data := views.DashboardData{
		KPIs:        h.kpis(r),
		NewItemPath: h.path("/items/new"),
		Created:     r.URL.Query().Get("created"),
	}
	h.page(w, r, http.StatusOK, "Dashboard", views.Dashboard(data))
}

func (h *handlers) kpiFragment(w http.ResponseWriter, r *http.Request) {
	h.fragment(w, r, http.StatusOK, views.KPIs(h.kpis(r)))
}

func (h *handlers) kpis(r *http.Request) views.KPIData {
	d := views.KPIData{Path: h.path("/fragments/kpis")}
	kpis, err := h.dashboard.FetchKPIs(r.Context(), userToken(r))
	if err != nil {
		observability.FromContext(r.Context()).Warn("dashboard kpis unavailable", zap.Error(err))
		d.Error = "Statistics are unavailable right now."
		return d
	}
	d.KPIs = kpis
	return d
}

func (h *handlers) newItemPage(w http.ResponseWriter, r *http.Request) {
	item := forms.Item{
		Kind:       r.URL.Query().Get(forms.FieldKind),
		BodyFormat: "markdown",
		Key:        backend.NewIdempotencyKey(),
	}
	site, err := h.content.SiteInfo(r.Context(), adminLang)
	message := ""
	if err != nil {
		message = h.toast(w, r, err)
	}
	data := views.NewFormData(h.path("/items"), adminmw.CSRFToken(r.Context()), item, site)
	data.Message = message
	h.page(w, r, http.StatusOK, "New item", views.ItemForm(data))
}

func (h *handlers) createItem(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	item := forms.ParseItem(r.PostForm)
	item.Key = backend.EnsureIdempotencyKey(firstNonEmpty(r.Header.Get("Idempotency-Key"), item.Key))
	csrf := adminmw.CSRFToken(r.Context())

	site, err := h.content.SiteInfo(r.Context(), adminLang)
	if err != nil {
		data := views.NewFormData(h.path("/items"), csrf, item, site)
		data.Message = h.toast(w, r, err)
		h.respond(w, r, http.StatusBadGateway, "New item", views.ItemForm(data))
		return
	}

	draft, err := item.Draft(site)
	var verr *forms.ValidationError
	if errors.As(err, &verr) {
		data := views.NewFormData(h.path("/items"), csrf, item, site)
		data.Errors = verr.FieldErrors
		data.Message = verr.Error()
		h.respond(w, r, http.StatusUnprocessableEntity, "New item", views.ItemForm(data))
		return
	}

	created, err := h.content.CreateItem(r.Context(), userToken(r), item.Key, draft)
	if err != nil {
		data := views.NewFormData(h.path("/items"), csrf, item, site)
		data.Message = h.toast(w, r, err)
		h.respond(w, r, http.StatusBadGateway, "New item", views.ItemForm(data))
		return
	}
	observability.FromContext(r.Context()).Info("item created",
		zap.String("kind", string(created.Kind)),
		zap.String("id", created.ID),
		zap.String("idempotency_key", item.Key),
	)

	if !adminmw.IsHTMX(r.Context()) {
		http.Redirect(w, r, h.path("/")+"?created="+url.QueryEscape(created.Title), http.StatusSeeOther)
		return
	}
	setToast(w, "Created: "+created.Title, "success")
	h.fragment(w, r, http.StatusOK, views.Created(views.CreatedData{
		Title:       created.Title,
		PublicURL:   h.publicURL(created),
		NewItemPath: h.path("/items/new"),
	}))
}

func (h *handlers) loginPage(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, http.StatusOK, "Sign in", views.Login(views.LoginData{
		Action:  h.loginPath,
		CSRF:    adminmw.CSRFToken(r.Context()),
		Expired: r.URL.Query().Get("reason") == "expired",
	}))
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.PostFormValue("id_token"))
	user, err := h.authn.Authenticate(r, token)
	if err != nil || user == nil {
		observability.FromContext(r.Context()).Info("admin sign-in rejected", zap.Error(err))
		h.page(w, r, http.StatusUnauthorized, "Sign in", views.Login(views.LoginData{
			Action: h.loginPath,
			CSRF:   adminmw.CSRFToken(r.Context()),
			Error:  "That token was not accepted.",
		}))
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     adminmw.TokenCookie,
		Value:    token,
		Path:     h.base,
		MaxAge:   int(tokenMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.secure || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     adminmw.TokenCookie,
		Value:    "",
		Path:     h.base,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.loginPath, http.StatusSeeOther)
}

func (h *handlers) publicURL(it content.Item) string {
	return h.publicBaseURL + it.Href()
}

// respond renders a fragment for htmx and a full page otherwise. htmx only swaps 2xx
// responses, so fragments always answer 200.
func (h *handlers) respond(w http.ResponseWriter, r *http.Request, status int, title string, body templ.Component) {
	if adminmw.IsHTMX(r.Context()) {
		h.fragment(w, r, http.StatusOK, body)
		return
	}
	h.page(w, r, status, title, body)
}

func (h *handlers) page(w http.ResponseWriter, r *http.Request, status int, title string, body templ.Component) {
	p := views.Page{
		Title:    title,
		BasePath: strings.TrimRight(h.base, "/"),
		CSRF:     adminmw.CSRFToken(r.Context()),
		Body:     body,
	}
	if u, ok := adminmw.UserFrom(r.Context()); ok {
		p.User = &views.User{UID: u.UID, Email: u.Email}
	}
	h.fragment(w, r, status, views.Layout(p))
}

func (h *handlers) fragment(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	var buf bytes.Buffer
	if err := c.Render(r.Context(), &buf); err != nil {
		observability.FromContext(r.Context()).Error("admin render failed", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// toast logs err and returns its user-facing message, also sent as an htmx toast.
func (h *handlers) toast(w http.ResponseWriter, r *http.Request, err error) string {
	msg := backend.Message(err)
	if msg == "" {
		msg = "The content service is unavailable. Try again shortly."
	}
	observability.FromContext(r.Context()).Warn("admin backend call failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	if adminmw.IsHTMX(r.Context()) {
		setToast(w, msg, "error")
	}
	return msg
}

func setToast(w http.ResponseWriter, message, tone string) {
	raw, err := json.Marshal(map[string]any{
		"toast": map[string]string{"message": message, "tone": tone},
	})
	if err == nil {
		w.Header().Set("HX-Trigger", string(raw))
	}
}

func userToken(r *http.Request) string {
	if u, ok := adminmw.UserFrom(r.Context()); ok {
		return u.Token
	}
	return ""
}
