// Package api holds the storefront's HTTP handlers.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"foodcart/orders"
	"foodcart/state"
	"foodcart/store"
	"foodcart/utils"

	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
)

// MenuCache stores the serialized menu between requests.
type MenuCache interface {
	Get(ctx context.Context) ([]byte, bool)
	Set(ctx context.Context, data []byte)
}

type Handler struct {
	App *state.App
	// Cache is optional.
	Cache MenuCache
	// PublicURL prefixes the tracking link printed on receipts.
	PublicURL string
	Log       logrus.FieldLogger
}

func New(app *state.App, cache MenuCache, publicURL string, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		App:       app,
		Cache:     cache,
		PublicURL: strings.TrimSuffix(publicURL, "/"),
		Log:       log.WithField("component", "api"),
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, state.ErrValidation), errors.Is(err, orders.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, orders.ErrIllegalTransition):
		return http.StatusConflict
	case errors.Is(err, state.ErrOrderNotFound), errors.Is(err, state.ErrItemNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, state.ErrWrite):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	entry := h.Log.WithError(err).WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path, "status": code})
	switch {
	case code >= 500:
		entry.Error("request failed")
		if code == http.StatusInternalServerError {
			msg = "internal error"
		}
	default:
		entry.Debug("request rejected")
	}
	utils.RespondWithError(w, code, msg)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": "ok"})
}
