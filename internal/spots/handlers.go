package spots

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the repository over HTTP. No package-level state: the
// repository (and its color assigner) is injected, so tests can stand up
// isolated instances.
type Handler struct {
	Repo *SpotRepository

	// DefaultRadiusMeters applies when /nearby is called without a radius.
	DefaultRadiusMeters float64
}

func statusFor(err error) int {
	var ve *ValidationError
	var te *TransportError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.As(err, &te):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// AllHandler refreshes and returns the merged spot list. Always 200: the
// repository degrades to cached/bundled data on store failures.
func (h *Handler) AllHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Repo.Refresh(r.Context()))
}

func (h *Handler) AddHandler(w http.ResponseWriter, r *http.Request) {
	var input NewSpotInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	created, err := h.Repo.AddSpot(r.Context(), input)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) NearbyHandler(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if errLat != nil || errLng != nil {
		http.Error(w, "Missing coordinates", http.StatusBadRequest)
		return
	}

	radius := h.DefaultRadiusMeters
	if raw := r.URL.Query().Get("radius"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid radius", http.StatusBadRequest)
			return
		}
		radius = parsed
	}

	writeJSON(w, http.StatusOK, h.Repo.Nearby(r.Context(), lat, lng, radius))
}

func (h *Handler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Repo.DeleteSpot(r.Context(), id); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RatingsHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Uniqueness *float64 `json:"uniqueness"`
		Vibe       *float64 `json:"vibe"`
		Safety     *float64 `json:"safety"`
		Crowd      *float64 `json:"crowd"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if input.Uniqueness == nil || input.Vibe == nil || input.Safety == nil || input.Crowd == nil {
		http.Error(w, "All four rating dimensions are required", http.StatusBadRequest)
		return
	}

	submitted := Ratings{
		Uniqueness: *input.Uniqueness,
		Vibe:       *input.Vibe,
		Safety:     *input.Safety,
		Crowd:      *input.Crowd,
	}

	updated, err := h.Repo.SubmitRating(r.Context(), chi.URLParam(r, "id"), submitted)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) CommentsHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Text   string `json:"text"`
		Author string `json:"user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updated, err := h.Repo.AddComment(r.Context(), chi.URLParam(r, "id"), input.Text, input.Author)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// ColorsHandler resolves one label to its marker color, or returns the
// whole legend when no label is given.
func (h *Handler) ColorsHandler(w http.ResponseWriter, r *http.Request) {
	if label := r.URL.Query().Get("label"); label != "" {
		writeJSON(w, http.StatusOK, map[string]string{
			"label": label,
			"color": h.Repo.ColorFor(label),
		})
		return
	}
	writeJSON(w, http.StatusOK, h.Repo.ColorLegend())
}

// FilterHandler returns the current merged view filtered by category
// label. No label means no filter.
func (h *Handler) FilterHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Repo.FilterByLabel(r.URL.Query().Get("label")))
}
