package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/arakviel/petcare/internal/domain/animals"
)

type AnimalsRepo struct {
	db *sql.DB
	q  dbtx // db o la tx en curso
	tx bool
}

func NewAnimalsRepo(db *sql.DB) *AnimalsRepo {
	return &AnimalsRepo{db: db, q: db}
}

// species_id sale del join con breeds; no hay columna en animals.
const animalColumns = `
	a.id, a.slug, a.name, a.breed_id, b.species_id, a.birthday,
	a.gender, a.size, a.status, a.care_cost,
	a.is_sterilized, a.is_under_care, a.have_documents,
	a.weight, a.height,
	a.color, a.description, a.microchip_id, a.adoption_requirements,
	a.photos, a.videos, a.health_conditions, a.special_needs, a.temperaments,
	a.shelter_id, a.created_by_user_id,
	a.version, a.created_at, a.updated_at`

const animalFrom = `
	FROM animals a
	JOIN breeds b ON b.id = a.breed_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnimal(row rowScanner) (animals.Animal, error) {
	var (
		a                           animals.Animal
		gender, size, status, cost  string
		birthday                    sql.NullTime
		weight, height              sql.NullFloat64
		photos, videos              []string
		health, needs, temperaments []string
	)
	if err := row.Scan(
		&a.ID, &a.Slug, &a.Name, &a.BreedID, &a.SpeciesID, &birthday,
		&gender, &size, &status, &cost,
		&a.IsSterilized, &a.IsUnderCare, &a.HaveDocuments,
		&weight, &height,
		&a.Color, &a.Description, &a.MicrochipID, &a.AdoptionRequirements,
		textArray(&photos), textArray(&videos), textArray(&health), textArray(&needs), textArray(&temperaments),
		&a.ShelterID, &a.CreatedByUserID,
		&a.Version, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return animals.Animal{}, err
	}

	a.Gender = animals.Gender(gender)
	a.Size = animals.Size(size)
	a.Status = animals.Status(status)
	a.CareCost = animals.CareCost(cost)
	a.Birthday = fromNullTime(birthday)
	a.Weight = fromNullFloat(weight)
	a.Height = fromNullFloat(height)
	a.Photos = nonNilStrings(photos)
	a.Videos = nonNilStrings(videos)
	a.HealthConditions = nonNilStrings(health)
	a.SpecialNeeds = nonNilStrings(needs)
	a.Temperaments = nonNilStrings(temperaments)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	a.Subscribers = []animals.Subscription{}
	return a, nil
}

func (r *AnimalsRepo) Create(ctx context.Context, a animals.Animal) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO animals (
			id, slug, name, breed_id, birthday,
			gender, size, status, care_cost,
			is_sterilized, is_under_care, have_documents,
			weight, height,
			color, description, microchip_id, adoption_requirements,
			photos, videos, health_conditions, special_needs, temperaments,
			shelter_id, created_by_user_id,
			version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28)
	`,
		a.ID, a.Slug, a.Name, a.BreedID, toNullTime(a.Birthday),
		string(a.Gender), string(a.Size), string(a.Status), string(a.CareCost),
		a.IsSterilized, a.IsUnderCare, a.HaveDocuments,
		toNullFloat(a.Weight), toNullFloat(a.Height),
		a.Color, a.Description, a.MicrochipID, a.AdoptionRequirements,
		nonNilStrings(a.Photos), nonNilStrings(a.Videos),
		nonNilStrings(a.HealthConditions), nonNilStrings(a.SpecialNeeds), nonNilStrings(a.Temperaments),
		a.ShelterID, a.CreatedByUserID,
		a.Version, a.CreatedAt, a.UpdatedAt,
	)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return fmt.Errorf("%w: animal %s already exists", animals.ErrConflict, a.ID)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%w: breed %s", animals.ErrNotFound, a.BreedID)
	default:
		return err
	}
}

func (r *AnimalsRepo) GetByID(ctx context.Context, id string) (animals.Animal, error) {
	return r.getOne(ctx, "a.id = $1", strings.TrimSpace(id))
}

func (r *AnimalsRepo) GetBySlug(ctx context.Context, slug string) (animals.Animal, error) {
	return r.getOne(ctx, "a.slug = $1", strings.TrimSpace(slug))
}

func (r *AnimalsRepo) getOne(ctx context.Context, where string, arg string) (animals.Animal, error) {
	if arg == "" {
		return animals.Animal{}, fmt.Errorf("%w: animal", animals.ErrNotFound)
	}

	// Dentro de una tx la fila queda bloqueada hasta el commit.
	query := "SELECT " + animalColumns + animalFrom + " WHERE " + where
	if r.tx {
		query += " FOR UPDATE OF a"
	}

	a, err := scanAnimal(r.q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return animals.Animal{}, fmt.Errorf("%w: animal %s", animals.ErrNotFound, arg)
	}
	if err != nil {
		return animals.Animal{}, err
	}

	subs, err := r.subscriptionsFor(ctx, []string{a.ID})
	if err != nil {
		return animals.Animal{}, err
	}
	a.Subscribers = subs[a.ID]
	if a.Subscribers == nil {
		a.Subscribers = []animals.Subscription{}
	}
	return a, nil
}

// Update es compare-and-set sobre version. 0 filas = no existe o versión vieja.
func (r *AnimalsRepo) Update(ctx context.Context, a *animals.Animal) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE animals
		SET
			slug = $3,
			name = $4,
			breed_id = $5,
			birthday = $6,
			gender = $7,
			size = $8,
			status = $9,
			care_cost = $10,
			is_sterilized = $11,
			is_under_care = $12,
			have_documents = $13,
			weight = $14,
			height = $15,
			color = $16,
			description = $17,
			microchip_id = $18,
			adoption_requirements = $19,
			photos = $20,
			videos = $21,
			health_conditions = $22,
			special_needs = $23,
			temperaments = $24,
			updated_at = $25,
			version = version + 1
		WHERE id = $1 AND version = $2
	`,
		a.ID, a.Version,
		a.Slug, a.Name, a.BreedID, toNullTime(a.Birthday),
		string(a.Gender), string(a.Size), string(a.Status), string(a.CareCost),
		a.IsSterilized, a.IsUnderCare, a.HaveDocuments,
		toNullFloat(a.Weight), toNullFloat(a.Height),
		a.Color, a.Description, a.MicrochipID, a.AdoptionRequirements,
		nonNilStrings(a.Photos), nonNilStrings(a.Videos),
		nonNilStrings(a.HealthConditions), nonNilStrings(a.SpecialNeeds), nonNilStrings(a.Temperaments),
		a.UpdatedAt,
	)
	switch {
	case err == nil:
	case isUniqueViolation(err):
		return fmt.Errorf("%w: slug %s already taken", animals.ErrConflict, a.Slug)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%w: breed %s", animals.ErrNotFound, a.BreedID)
	default:
		return err
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		var exists bool
		if err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM animals WHERE id = $1)`, a.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: animal %s", animals.ErrNotFound, a.ID)
		}
		return fmt.Errorf("%w: animal %s was modified concurrently", animals.ErrConflict, a.ID)
	}

	a.Version++
	return nil
}

func (r *AnimalsRepo) Delete(ctx context.Context, id string) error {
	return r.WithinTx(ctx, func(tx animals.Repository) error {
		q := tx.(*AnimalsRepo).q
		if _, err := q.ExecContext(ctx, `DELETE FROM animal_subscriptions WHERE animal_id = $1`, id); err != nil {
			return err
		}
		res, err := q.ExecContext(ctx, `DELETE FROM animals WHERE id = $1`, id)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return fmt.Errorf("%w: animal %s", animals.ErrNotFound, id)
		}
		return nil
	})
}

// Find arma el WHERE dinámico con los filtros que el store puede evaluar.
func (r *AnimalsRepo) Find(ctx context.Context, f animals.StoreFilter) ([]animals.Animal, error) {
	sb := strings.Builder{}
	sb.WriteString("SELECT " + animalColumns + animalFrom + " WHERE 1=1")

	args := []any{}
	argN := 1
	addIn := func(col string, values []string) {
		if len(values) == 0 {
			return
		}
		sb.WriteString(fmt.Sprintf(" AND %s = ANY($%d)", col, argN))
		args = append(args, values)
		argN++
	}
	addEq := func(col string, v any) {
		sb.WriteString(fmt.Sprintf(" AND %s = $%d", col, argN))
		args = append(args, v)
		argN++
	}

	addIn("a.size", enumStrings(f.Sizes))
	addIn("a.gender", enumStrings(f.Genders))
	addIn("a.care_cost", enumStrings(f.CareCosts))
	addIn("a.status", enumStrings(f.Statuses))
	if f.IsSterilized != nil {
		addEq("a.is_sterilized", *f.IsSterilized)
	}
	if f.IsUnderCare != nil {
		addEq("a.is_under_care", *f.IsUnderCare)
	}
	if f.ShelterID != "" {
		addEq("a.shelter_id", f.ShelterID)
	}
	if f.SpeciesID != "" {
		addEq("b.species_id", f.SpeciesID)
	}
	if f.BreedID != "" {
		addEq("a.breed_id", f.BreedID)
	}

	rows, err := r.q.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]animals.Animal, 0)
	ids := make([]string, 0)
	for rows.Next() {
		a, err := scanAnimal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
		ids = append(ids, a.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	subs, err := r.subscriptionsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if s, ok := subs[out[i].ID]; ok {
			out[i].Subscribers = s
		}
	}
	return out, nil
}

func (r *AnimalsRepo) InsertSubscription(ctx context.Context, s animals.Subscription) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO animal_subscriptions (id, animal_id, user_id, created_at)
		VALUES ($1,$2,$3,$4)
	`, s.ID, s.AnimalID, s.UserID, s.CreatedAt)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return fmt.Errorf("%w: user %s already subscribed to animal %s", animals.ErrConflict, s.UserID, s.AnimalID)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%w: animal %s", animals.ErrNotFound, s.AnimalID)
	default:
		return err
	}
}

func (r *AnimalsRepo) DeleteSubscription(ctx context.Context, animalID, userID string) (bool, error) {
	res, err := r.q.ExecContext(ctx, `
		DELETE FROM animal_subscriptions WHERE animal_id = $1 AND user_id = $2
	`, animalID, userID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *AnimalsRepo) ListSubscriptionsByUser(ctx context.Context, userID string) ([]animals.Subscription, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, animal_id, user_id, created_at
		FROM animal_subscriptions
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, strings.TrimSpace(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]animals.Subscription, 0)
	for rows.Next() {
		var s animals.Subscription
		if err := rows.Scan(&s.ID, &s.AnimalID, &s.UserID, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.CreatedAt = s.CreatedAt.UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

// WithinTx abre una tx nueva o reutiliza la actual si ya estamos en una.
func (r *AnimalsRepo) WithinTx(ctx context.Context, fn func(tx animals.Repository) error) error {
	if r.tx {
		return fn(r)
	}
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		return fn(&AnimalsRepo{db: r.db, q: tx, tx: true})
	})
}

func (r *AnimalsRepo) subscriptionsFor(ctx context.Context, animalIDs []string) (map[string][]animals.Subscription, error) {
	out := make(map[string][]animals.Subscription, len(animalIDs))
	if len(animalIDs) == 0 {
		return out, nil
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT id, animal_id, user_id, created_at
		FROM animal_subscriptions
		WHERE animal_id = ANY($1)
		ORDER BY created_at ASC
	`, animalIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s animals.Subscription
		if err := rows.Scan(&s.ID, &s.AnimalID, &s.UserID, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.CreatedAt = s.CreatedAt.UTC()
		out[s.AnimalID] = append(out[s.AnimalID], s)
	}
	return out, rows.Err()
}

func enumStrings[T ~string](in []T) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		out = append(out, string(v))
	}
	return out
}
