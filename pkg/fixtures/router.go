package fixtures

import (
	"github.com/go-chi/chi/v5"
)

// Router creates a chi.Router for the fixture API.
func Router(store *Store) chi.Router {
	r := chi.NewRouter()

	r.Post("/fixtures", ProposeFixtureHandler(store))
	r.Get("/fixtures", ListFixturesHandler(store))
	r.Get("/fixtures/{id}", GetFixtureHandler(store))
	r.Post("/fixtures/{id}:approve", ApproveFixtureHandler(store))
	r.Post("/fixtures/{id}:reject", RejectFixtureHandler(store))
	r.Post("/fixtures/{id}:revoke", RevokeFixtureHandler(store))

	return r
}
