package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/arakviel/petcare/internal/domain/breeds"
)

type breedRepo struct {
	mu        sync.RWMutex
	speciesBy map[string]breeds.Species
	breedsBy  map[string]breeds.Breed
}

func NewBreedRepo() breeds.Repository {
	return &breedRepo{
		speciesBy: make(map[string]breeds.Species),
		breedsBy:  make(map[string]breeds.Breed),
	}
}

func (r *breedRepo) CreateSpecies(ctx context.Context, s breeds.Species) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.speciesBy {
		if strings.EqualFold(existing.Name, s.Name) {
			return breeds.ErrConflict
		}
	}
	r.speciesBy[s.ID] = s
	return nil
}

func (r *breedRepo) GetSpecies(ctx context.Context, id string) (breeds.Species, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.speciesBy[id]
	if !ok {
		return breeds.Species{}, breeds.ErrNotFound
	}
	return s, nil
}

func (r *breedRepo) ListSpecies(ctx context.Context) ([]breeds.Species, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]breeds.Species, 0, len(r.speciesBy))
	for _, s := range r.speciesBy {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *breedRepo) CreateBreed(ctx context.Context, b breeds.Breed) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.speciesBy[b.SpeciesID]; !ok {
		return breeds.ErrNotFound
	}
	for _, existing := range r.breedsBy {
		if existing.SpeciesID == b.SpeciesID && strings.EqualFold(existing.Name, b.Name) {
			return breeds.ErrConflict
		}
	}
	r.breedsBy[b.ID] = b
	return nil
}

func (r *breedRepo) GetBreed(ctx context.Context, id string) (breeds.Breed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.breedsBy[id]
	if !ok {
		return breeds.Breed{}, breeds.ErrNotFound
	}
	return b, nil
}

func (r *breedRepo) ListBreeds(ctx context.Context, speciesID string) ([]breeds.Breed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]breeds.Breed, 0)
	for _, b := range r.breedsBy {
		if speciesID == "" || b.SpeciesID == speciesID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
