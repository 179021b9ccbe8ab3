package registry

import (
	"github.com/go-chi/chi/v5"
)

// Router creates a chi.Router for the service registry API.
func Router(store *Store) chi.Router {
	r := chi.NewRouter()

	r.Post("/services", RegisterServiceHandler(store))
	r.Get("/services", ListServicesHandler(store))
	r.Get("/services/{service}", GetServiceHandler(store))
	r.Put("/services/{service}/versions/{version}", EnsureVersionHandler(store))
	r.Get("/services/{service}/versions", ListVersionsHandler(store))
	r.Get("/services/{service}/versions:resolve", ResolveVersionHandler(store))

	return r
}
