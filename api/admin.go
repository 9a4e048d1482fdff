package api

import (
	"net/http"

	"foodcart/utils"

	"github.com/julienschmidt/httprouter"
)

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	utils.RespondWithJSON(w, http.StatusOK, h.App.Orders())
}

type statusRequest struct {
	Status                string  `json:"status"`
	EstimatedDeliveryTime *string `json:"estimatedDeliveryTime"`
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req statusRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	o, err := h.App.UpdateOrderStatus(r.Context(), ps.ByName("orderid"), req.Status, req.EstimatedDeliveryTime)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, o)
}

func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list := h.App.Notifications()
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"count": len(list), "orders": list})
}

func (h *Handler) ClearNotifications(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.App.ClearNotifications()
	w.WriteHeader(http.StatusNoContent)
}
