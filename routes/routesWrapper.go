package routes

import (
	"github.com/julienschmidt/httprouter"
)

// RoutesWrapper registers every route group on router.
func RoutesWrapper(router *httprouter.Router, d Deps) {
	AddAuthRoutes(router, d)
	AddCropRoutes(router, d)
	AddCartRoutes(router, d)
	AddOrderRoutes(router, d)
	AddSurplusRoutes(router, d)
	AddStaticRoutes(router, d)
	AddUtilityRoutes(router, d)
}

func New(d Deps) *httprouter.Router {
	router := httprouter.New()
	RoutesWrapper(router, d)
	return router
}
