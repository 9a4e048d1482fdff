package api

import (
	"fmt"
	"net/http"

	"foodcart/middleware"
	"foodcart/models"
	"foodcart/utils"

	"github.com/julienschmidt/httprouter"
)

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	utils.RespondWithJSON(w, http.StatusOK, h.App.Cart(middleware.SessionID(r)))
}

func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		ItemID string `json:"itemId"`
	}
	if err := utils.DecodeJSON(w, r, &body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.ItemID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "itemId is required")
		return
	}
	view, err := h.App.AddToCart(middleware.SessionID(r), body.ItemID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, view)
}

func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body struct {
		Quantity *int `json:"quantity"`
	}
	if err := utils.DecodeJSON(w, r, &body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Quantity == nil {
		utils.RespondWithError(w, http.StatusBadRequest, "quantity is required")
		return
	}
	if *body.Quantity > models.MaxQuantity {
		utils.RespondWithError(w, http.StatusBadRequest, fmt.Sprintf("quantity must not exceed %d", models.MaxQuantity))
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, h.App.UpdateCartQuantity(middleware.SessionID(r), ps.ByName("itemid"), *body.Quantity))
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	utils.RespondWithJSON(w, http.StatusOK, h.App.RemoveFromCart(middleware.SessionID(r), ps.ByName("itemid")))
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	utils.RespondWithJSON(w, http.StatusOK, h.App.ClearCart(middleware.SessionID(r)))
}
