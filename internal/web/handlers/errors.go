package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"mediahub.dev/portal/internal/backend"
	"mediahub.dev/portal/internal/observability"
	mw "mediahub.dev/portal/internal/web/middleware"
)

// toastEvent is the HX-Trigger event name the client script listens for.
const toastEvent = "toast"

// report logs err and returns the message shown to the user: the backend message when
// the error payload carried one, otherwise the translated generic message. htmx
// requests also receive it as a toast through HX-Trigger.
func (h *Handlers) report(w http.ResponseWriter, r *http.Request, err error) string {
	msg := backend.Message(err)
	if msg == "" {
		msg = mw.LocalizerFrom(r.Context()).T("error.generic")
	}
	observability.FromContext(r.Context()).Warn("request degraded",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	if mw.IsHTMX(r.Context()) {
		payload := map[string]any{
			toastEvent: map[string]string{"message": msg, "tone": "error"},
		}
		if raw, err := json.Marshal(payload); err == nil {
			w.Header().Set("HX-Trigger", string(raw))
		}
	}
	return msg
}
