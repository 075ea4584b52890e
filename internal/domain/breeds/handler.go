package breeds

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/arakviel/petcare/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/species", func(sr chi.Router) {
		sr.Get("/", listSpeciesHandler(svc))
		sr.Post("/", createSpeciesHandler(svc))
		sr.Get("/{speciesID}/breeds", listBreedsHandler(svc))
		sr.Post("/{speciesID}/breeds", createBreedHandler(svc))
	})
	r.Get("/breeds", listBreedsHandler(svc))
	r.Get("/breeds/{breedID}", getBreedHandler(svc))
}

type nameRequest struct {
	Name string `json:"name"`
}

type speciesResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type breedResponse struct {
	ID        string    `json:"id"`
	SpeciesID string    `json:"species_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func listSpeciesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.ListSpecies(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]speciesResponse, 0, len(items))
		for _, s := range items {
			out = append(out, speciesResponse{ID: s.ID, Name: s.Name, CreatedAt: s.CreatedAt})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func createSpeciesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authenticated(w, r) {
			return
		}
		var req nameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		s, err := svc.CreateSpecies(r.Context(), req.Name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, speciesResponse{ID: s.ID, Name: s.Name, CreatedAt: s.CreatedAt})
	}
}

// listBreedsHandler sirve /breeds (filtro opcional ?species_id=) y /species/{id}/breeds.
func listBreedsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		speciesID := chi.URLParam(r, "speciesID")
		if speciesID == "" {
			speciesID = r.URL.Query().Get("species_id")
		}
		items, err := svc.ListBreeds(r.Context(), speciesID)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]breedResponse, 0, len(items))
		for _, b := range items {
			out = append(out, toBreedResponse(b))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func createBreedHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authenticated(w, r) {
			return
		}
		var req nameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		b, err := svc.CreateBreed(r.Context(), chi.URLParam(r, "speciesID"), req.Name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toBreedResponse(b))
	}
}

func getBreedHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := svc.GetBreed(r.Context(), chi.URLParam(r, "breedID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBreedResponse(b))
	}
}

func toBreedResponse(b Breed) breedResponse {
	return breedResponse{ID: b.ID, SpeciesID: b.SpeciesID, Name: b.Name, CreatedAt: b.CreatedAt}
}

func authenticated(w http.ResponseWriter, r *http.Request) bool {
	if middleware.UserID(r.Context()) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
