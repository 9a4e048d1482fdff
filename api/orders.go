package api

import (
	"net/http"

	"foodcart/middleware"
	"foodcart/models"
	"foodcart/orders"
	"foodcart/utils"

	"github.com/julienschmidt/httprouter"
)

type checkoutRequest struct {
	Customer      models.CustomerDetails `json:"customer"`
	PaymentMethod models.PaymentMethod   `json:"paymentMethod"`
}

// Checkout places an order from the session's cart.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req checkoutRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	o, err := h.App.PlaceOrder(r.Context(), middleware.SessionID(r), req.Customer, req.PaymentMethod)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, o)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	o, err := h.App.Order(ps.ByName("orderid"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, o)
}

// TrackOrder returns the progress tracker view of an order.
func (h *Handler) TrackOrder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	o, err := h.App.Order(ps.ByName("orderid"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, orders.TrackOrder(o))
}

// Receipt renders the order as a PDF.
func (h *Handler) Receipt(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	o, err := h.App.Order(ps.ByName("orderid"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	pdf, err := orders.Receipt(o, h.PublicURL+"/api/orders/"+o.ID+"/track")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="receipt-`+o.ID+`.pdf"`)
	w.Write(pdf)
}

func (h *Handler) PaymentMethods(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	utils.RespondWithJSON(w, http.StatusOK, models.PaymentMethods)
}

// Statuses lists the statuses an admin can pick, the tracker steps and the
// transition policy in force.
func (h *Handler) Statuses(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"statuses": orders.Statuses,
		"track":    orders.Track,
		"policy":   h.App.Policy(),
	})
}
