package cart

import (
	"net/http"

	"agromart/apperr"
	"agromart/utils"

	"github.com/julienschmidt/httprouter"
)

type Handlers struct {
	svc *Service
}

func NewHandlers(svc *Service) *Handlers { return &Handlers{svc: svc} }

type addRequest struct {
	CropID   string `json:"cropId"`
	Quantity int    `json:"quantity"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handlers) Get(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	caller, ok := utils.IdentityFromRequest(r)
	if !ok {
		utils.RespondWithError(w, apperr.Unauthorized("missing token"))
		return
	}
	lines, err := h.svc.List(r.Context(), caller)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, lines)
}

func (h *Handlers) Add(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	caller, ok := utils.IdentityFromRequest(r)
	if !ok {
		utils.RespondWithError(w, apperr.Unauthorized("missing token"))
		return
	}
	var req addRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, err)
		return
	}
	cropID, err := utils.ParseObjectID(req.CropID, "crop")
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	item, err := h.svc.Add(r.Context(), caller, cropID, req.Quantity)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, item)
}

func (h *Handlers) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	caller, ok := utils.IdentityFromRequest(r)
	if !ok {
		utils.RespondWithError(w, apperr.Unauthorized("missing token"))
		return
	}
	itemID, err := utils.ParseObjectID(ps.ByName("id"), "cart item")
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	var req quantityRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, err)
		return
	}

	item, err := h.svc.SetQuantity(r.Context(), caller, itemID, req.Quantity)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, item)
}

func (h *Handlers) Remove(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	caller, ok := utils.IdentityFromRequest(r)
	if !ok {
		utils.RespondWithError(w, apperr.Unauthorized("missing token"))
		return
	}
	itemID, err := utils.ParseObjectID(ps.ByName("id"), "cart item")
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	if err := h.svc.Remove(r.Context(), caller, itemID); err != nil {
		utils.RespondWithError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"message": "Item removed from cart"})
}
