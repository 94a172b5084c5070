package auth

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

// POST /api/auth/register
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in RegisterInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, err)
		return
	}
	sess, err := h.svc.Register(r.Context(), in)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, sess)
}

// POST /api/auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in LoginInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, err)
		return
	}
	sess, err := h.svc.Login(r.Context(), in)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, sess)
}

// GET /api/users/me
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	caller, ok := utils.IdentityFromRequest(r)
	if !ok {
		utils.RespondWithError(w, apperr.Unauthorized("missing token"))
		return
	}
	u, err := h.svc.Me(r.Context(), caller)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, u)
}
