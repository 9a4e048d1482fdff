package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/lucsky/cuid"
)

// SessionCookie names the cookie that ties a browser to its cart.
const SessionCookie = "foodcart_session"

const sessionMaxAge = 30 * 24 * time.Hour

type ctxKey string

const sessionKey ctxKey = "session"

// Session makes sure the request carries a session id, issuing a new
// cookie when it does not.
func Session(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		sid := ""
		if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" && len(c.Value) <= 64 {
			sid = c.Value
		} else {
			sid = cuid.New()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    sid,
				Path:     "/",
				MaxAge:   int(sessionMaxAge / time.Second),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next(w, r.WithContext(context.WithValue(r.Context(), sessionKey, sid)), ps)
	}
}

// SessionID returns the id set by Session.
func SessionID(r *http.Request) string {
	sid, _ := r.Context().Value(sessionKey).(string)
	return sid
}
