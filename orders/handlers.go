package orders

import (
	"net/http"
	"strconv"

	"agromart/apperr"
	"agromart/models"
	"agromart/utils"

	"github.com/julienschmidt/httprouter"
)

type Handlers struct {
	svc *Service
}

func NewHandlers(svc *Service) *Handlers { return &Handlers{svc: svc} }

func caller(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	id, ok := utils.IdentityFromRequest(r)
	if !ok {
		utils.RespondWithError(w, apperr.Unauthorized("missing token"))
	}
	return id, ok
}

// GET /api/orders
func (h *Handlers) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	list, err := h.svc.ListMine(r.Context(), c)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

// POST /api/orders
func (h *Handlers) Place(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var in PlaceOrderInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, err)
		return
	}
	res, err := h.svc.PlaceOrder(r.Context(), c, in)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, res)
}

// GET /api/orders/:id. The admin listing shares the route as /api/orders/all.
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	if ps.ByName("id") == "all" {
		h.listAll(w, r, c)
		return
	}
	id, err := utils.ParseObjectID(ps.ByName("id"), "order")
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	o, err := h.svc.Get(r.Context(), c, id)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, o)
}

func (h *Handlers) listAll(w http.ResponseWriter, r *http.Request, c models.Identity) {
	list, err := h.svc.ListAll(r.Context(), c, utils.ParseQueryOptions(r))
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

// PUT /api/orders/:id
func (h *Handlers) UpdateStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id, err := utils.ParseObjectID(ps.ByName("id"), "order")
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.RespondWithError(w, err)
		return
	}
	o, err := h.svc.UpdateStatus(r.Context(), c, id, body.Status)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, o)
}

// DELETE /api/orders/:id
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id, err := utils.ParseObjectID(ps.ByName("id"), "order")
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	if err := h.svc.Delete(r.Context(), c, id); err != nil {
		utils.RespondWithError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"message": "Order deleted"})
}

// GET /api/orders/:id/receipt
func (h *Handlers) Receipt(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id, err := utils.ParseObjectID(ps.ByName("id"), "order")
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	pdf, err := h.svc.Receipt(r.Context(), c, id)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=receipt-"+id.Hex()+".pdf")
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}
