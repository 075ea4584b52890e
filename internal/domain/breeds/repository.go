package breeds

import (
	"context"
	"errors"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
)

type Repository interface {
	CreateSpecies(ctx context.Context, s Species) error
	GetSpecies(ctx context.Context, id string) (Species, error)
	ListSpecies(ctx context.Context) ([]Species, error)

	CreateBreed(ctx context.Context, b Breed) error
	GetBreed(ctx context.Context, id string) (Breed, error)
	// ListBreeds con speciesID vacío devuelve todas.
	ListBreeds(ctx context.Context, speciesID string) ([]Breed, error)
}
