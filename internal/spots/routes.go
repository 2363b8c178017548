package spots

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SetupRoutes mounts the spots API. rateLimit guards the mutating routes;
// pass nil to disable (tests do).
func SetupRoutes(h *Handler, rateLimit func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/all", h.AllHandler)
	r.Get("/nearby", h.NearbyHandler)
	r.Get("/colors", h.ColorsHandler)
	r.Get("/filter", h.FilterHandler)

	r.Group(func(r chi.Router) {
		if rateLimit != nil {
			r.Use(rateLimit)
		}
		r.Post("/add", h.AddHandler)
		r.Delete("/{id}", h.DeleteHandler)
		r.Post("/{id}/ratings", h.RatingsHandler)
		r.Post("/{id}/comments", h.CommentsHandler)
	})

	return r
}
