package verification

import (
	"github.com/go-chi/chi/v5"
)

// Router creates a chi.Router for the verification API.
func Router(store *Store) chi.Router {
	r := chi.NewRouter()

	r.Post("/tasks", CreateTaskHandler(store))
	r.Get("/tasks:pending", ListPendingTasksHandler(store))
	r.Get("/tasks/{taskId}", GetTaskHandler(store))
	r.Post("/providers/{provider}/results", SubmitResultHandler(store))
	r.Get("/dependencies", ListDependenciesHandler(store))

	return r
}
