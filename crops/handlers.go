package crops

import (
	"errors"
	"net/http"
	"strings"

	"agromart/apperr"
	"agromart/filemgr"
	"agromart/models"
	"agromart/utils"

	"github.com/julienschmidt/httprouter"
)

type Handlers struct {
	svc *Service
}

func NewHandlers(svc *Service) *Handlers { return &Handlers{svc: svc} }

// parseCropForm reads a multipart (or urlencoded) crop form and its optional image.
func parseCropForm(r *http.Request) (CropInput, *Image, func(), error) {
	noop := func() {}
	err := r.ParseMultipartForm(filemgr.MaxImageSize + 1<<20)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		return CropInput{}, nil, noop, apperr.Validation("Invalid form")
	}

	in := CropInput{
		Name:           r.FormValue("name"),
		Price:          r.FormValue("price"),
		Quantity:       r.FormValue("quantity"),
		Fertilizer:     r.FormValue("fertilizer"),
		HarvestDate:    r.FormValue("harvestDate"),
		GrowthLocation: r.FormValue("growthLocation"),
		CropType:       r.FormValue("cropType"),
		Category:       r.FormValue("category"),
	}

	if r.MultipartForm == nil || len(r.MultipartForm.File["image"]) == 0 {
		return in, nil, noop, nil
	}
	hdr := r.MultipartForm.File["image"][0]
	f, err := hdr.Open()
	if err != nil {
		return CropInput{}, nil, noop, apperr.Validation("unreadable image")
	}
	return in, &Image{Filename: hdr.Filename, Body: f}, func() { f.Close() }, nil
}

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
	if list == nil {
		list = []models.Crop{}
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

func (h *Handlers) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	caller, ok := utils.IdentityFromRequest(r)
	if !ok {
		utils.RespondWithError(w, apperr.Unauthorized("missing token"))
		return
	}
	in, img, done, err := parseCropForm(r)
	defer done()
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	crop, err := h.svc.Create(r.Context(), caller, in, img)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, crop)
}

func (h *Handlers) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	caller, ok := utils.IdentityFromRequest(r)
	if !ok {
		utils.RespondWithError(w, apperr.Unauthorized("missing token"))
		return
	}
	id, err := utils.ParseObjectID(ps.ByName("id"), "crop")
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	in, img, done, err := parseCropForm(r)
	defer done()
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	crop, err := h.svc.Update(r.Context(), caller, id, in, img)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, crop)
}

func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	caller, ok := utils.IdentityFromRequest(r)
	if !ok {
		utils.RespondWithError(w, apperr.Unauthorized("missing token"))
		return
	}
	id, err := utils.ParseObjectID(ps.ByName("id"), "crop")
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	if err := h.svc.Delete(r.Context(), caller, id); err != nil {
		utils.RespondWithError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"message": "Crop deleted"})
}

// Browse is the public market listing.
func (h *Handlers) Browse(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	f, err := parseFilter(r)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	list, err := h.svc.Browse(r.Context(), f)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	if list == nil {
		list = []models.Crop{}
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

func (h *Handlers) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := utils.ParseObjectID(ps.ByName("id"), "crop")
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	crop, err := h.svc.Get(r.Context(), id)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, crop)
}

func parseFilter(r *http.Request) (models.CropFilter, error) {
	q := r.URL.Query()
	opts := utils.ParseQueryOptions(r)
	f := models.CropFilter{
		InStock: q.Get("inStock") == "true",
		Limit:   opts.Limit,
		Skip:    opts.Skip(),
	}

	var err error
	if v := q.Get("category"); v != "" {
		if f.Category, err = models.ParseCropCategory(v); err != nil {
			return f, apperr.Validation("%v", err)
		}
	}
	if v := q.Get("cropType"); v != "" {
		if f.CropType, err = models.ParseCropType(v); err != nil {
			return f, apperr.Validation("%v", err)
		}
	}
	if v := q.Get("growthLocation"); v != "" {
		if f.GrowthLocation, err = models.ParseGrowthLocation(v); err != nil {
			return f, apperr.Validation("%v", err)
		}
	}
	for name, dst := range map[string]**models.Money{"minPrice": &f.MinPrice, "maxPrice": &f.MaxPrice} {
		v := strings.TrimSpace(q.Get(name))
		if v == "" {
			continue
		}
		m, err := models.ParseMoney(v)
		if err != nil {
			return f, apperr.Validation("invalid %s", name)
		}
		*dst = &m
	}
	return f, nil
}
