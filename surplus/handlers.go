package surplus

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

// POST /api/surplus
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	caller, ok := utils.IdentityFromRequest(r)
	if !ok {
		utils.RespondWithError(w, apperr.Unauthorized("missing token"))
		return
	}
	var in Input
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, err)
		return
	}
	sp, err := h.svc.Create(r.Context(), caller, in)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, sp)
}

// GET /api/surplus
func (h *Handlers) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	caller, ok := utils.IdentityFromRequest(r)
	if !ok {
		utils.RespondWithError(w, apperr.Unauthorized("missing token"))
		return
	}
	list, err := h.svc.ListMine(r.Context(), caller)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}
