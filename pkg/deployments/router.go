package deployments

import (
	"github.com/go-chi/chi/v5"
)

// Router creates a chi.Router for the deployment API.
func Router(store *Store) chi.Router {
	r := chi.NewRouter()

	r.Post("/deployments", DeployHandler(store))
	r.Get("/environments/{environment}/deployments", ListActiveHandler(store))
	r.Get("/services/{service}/deployments", HistoryHandler(store))

	return r
}
