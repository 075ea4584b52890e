package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/arakviel/petcare/internal/domain/breeds"
)

type BreedsRepo struct {
	db *sql.DB
}

func NewBreedsRepo(db *sql.DB) *BreedsRepo {
	return &BreedsRepo{db: db}
}

func (r *BreedsRepo) CreateSpecies(ctx context.Context, s breeds.Species) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO species (id, name, created_at) VALUES ($1,$2,$3)
	`, s.ID, s.Name, s.CreatedAt)
	if isUniqueViolation(err) {
		return breeds.ErrConflict
	}
	return err
}

func (r *BreedsRepo) GetSpecies(ctx context.Context, id string) (breeds.Species, error) {
	var s breeds.Species
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, created_at FROM species WHERE id = $1
	`, strings.TrimSpace(id)).Scan(&s.ID, &s.Name, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return breeds.Species{}, breeds.ErrNotFound
	}
	return s, err
}

func (r *BreedsRepo) ListSpecies(ctx context.Context) ([]breeds.Species, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at FROM species ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]breeds.Species, 0)
	for rows.Next() {
		var s breeds.Species
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *BreedsRepo) CreateBreed(ctx context.Context, b breeds.Breed) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO breeds (id, species_id, name, created_at) VALUES ($1,$2,$3,$4)
	`, b.ID, b.SpeciesID, b.Name, b.CreatedAt)
	switch {
	case isUniqueViolation(err):
		return breeds.ErrConflict
	case isForeignKeyViolation(err):
		return breeds.ErrNotFound
	default:
		return err
	}
}

func (r *BreedsRepo) GetBreed(ctx context.Context, id string) (breeds.Breed, error) {
	var b breeds.Breed
	err := r.db.QueryRowContext(ctx, `
		SELECT id, species_id, name, created_at FROM breeds WHERE id = $1
	`, strings.TrimSpace(id)).Scan(&b.ID, &b.SpeciesID, &b.Name, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return breeds.Breed{}, breeds.ErrNotFound
	}
	return b, err
}

func (r *BreedsRepo) ListBreeds(ctx context.Context, speciesID string) ([]breeds.Breed, error) {
	query := `SELECT id, species_id, name, created_at FROM breeds`
	args := []any{}
	if speciesID = strings.TrimSpace(speciesID); speciesID != "" {
		query += ` WHERE species_id = $1`
		args = append(args, speciesID)
	}
	query += ` ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]breeds.Breed, 0)
	for rows.Next() {
		var b breeds.Breed
		if err := rows.Scan(&b.ID, &b.SpeciesID, &b.Name, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
