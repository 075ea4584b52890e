package breeds

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxNameLen = 50

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) CreateSpecies(ctx context.Context, name string) (Species, error) {
	name, err := normalizeName(name)
	if err != nil {
		return Species{}, err
	}
	sp := Species{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateSpecies(ctx, sp); err != nil {
		return Species{}, err
	}
	return sp, nil
}

func (s *Service) ListSpecies(ctx context.Context) ([]Species, error) {
	return s.repo.ListSpecies(ctx)
}

// CreateBreed exige que la especie exista.
func (s *Service) CreateBreed(ctx context.Context, speciesID, name string) (Breed, error) {
	speciesID = strings.TrimSpace(speciesID)
	if speciesID == "" {
		return Breed{}, ErrInvalidInput
	}
	name, err := normalizeName(name)
	if err != nil {
		return Breed{}, err
	}
	if _, err := s.repo.GetSpecies(ctx, speciesID); err != nil {
		return Breed{}, err
	}

	b := Breed{
		ID:        uuid.NewString(),
		SpeciesID: speciesID,
		Name:      name,
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateBreed(ctx, b); err != nil {
		return Breed{}, err
	}
	return b, nil
}

func (s *Service) GetBreed(ctx context.Context, id string) (Breed, error) {
	if strings.TrimSpace(id) == "" {
		return Breed{}, ErrInvalidInput
	}
	return s.repo.GetBreed(ctx, strings.TrimSpace(id))
}

func (s *Service) ListBreeds(ctx context.Context, speciesID string) ([]Breed, error) {
	return s.repo.ListBreeds(ctx, strings.TrimSpace(speciesID))
}

// SpeciesOf resuelve la especie de una raza. ok=false si la raza no existe.
func (s *Service) SpeciesOf(ctx context.Context, breedID string) (string, bool, error) {
	b, err := s.repo.GetBreed(ctx, strings.TrimSpace(breedID))
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return b.SpeciesID, true, nil
}

func normalizeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" || len([]rune(name)) > maxNameLen {
		return "", ErrInvalidInput
	}
	return name, nil
}
