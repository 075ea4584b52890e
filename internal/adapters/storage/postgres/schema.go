package postgres

import (
	"context"
	"database/sql"
)

// schema es idempotente: se puede correr en cada arranque.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS species (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS species_name_uq ON species (lower(name))`,

	`CREATE TABLE IF NOT EXISTS breeds (
		id          TEXT PRIMARY KEY,
		species_id  TEXT NOT NULL REFERENCES species(id),
		name        TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS breeds_species_name_uq ON breeds (species_id, lower(name))`,

	`CREATE TABLE IF NOT EXISTS animals (
		id                     TEXT PRIMARY KEY,
		slug                   TEXT NOT NULL UNIQUE,
		name                   TEXT NOT NULL,
		breed_id               TEXT NOT NULL REFERENCES breeds(id),
		birthday               DATE NULL,
		gender                 TEXT NOT NULL DEFAULT 'unknown',
		size                   TEXT NOT NULL DEFAULT 'medium',
		status                 TEXT NOT NULL DEFAULT 'available',
		care_cost              TEXT NOT NULL DEFAULT 'up_to_600',
		is_sterilized          BOOLEAN NOT NULL DEFAULT false,
		is_under_care          BOOLEAN NOT NULL DEFAULT false,
		have_documents         BOOLEAN NOT NULL DEFAULT false,
		weight                 DOUBLE PRECISION NULL,
		height                 DOUBLE PRECISION NULL,
		color                  TEXT NOT NULL DEFAULT '',
		description            TEXT NOT NULL DEFAULT '',
		microchip_id           TEXT NOT NULL DEFAULT '',
		adoption_requirements  TEXT NOT NULL DEFAULT '',
		photos                 TEXT[] NOT NULL DEFAULT '{}',
		videos                 TEXT[] NOT NULL DEFAULT '{}',
		health_conditions      TEXT[] NOT NULL DEFAULT '{}',
		special_needs          TEXT[] NOT NULL DEFAULT '{}',
		temperaments           TEXT[] NOT NULL DEFAULT '{}',
		shelter_id             TEXT NOT NULL,
		created_by_user_id     TEXT NOT NULL DEFAULT '',
		version                INTEGER NOT NULL DEFAULT 1,
		created_at             TIMESTAMPTZ NOT NULL,
		updated_at             TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS animals_status_idx ON animals (status)`,
	`CREATE INDEX IF NOT EXISTS animals_shelter_idx ON animals (shelter_id)`,
	`CREATE INDEX IF NOT EXISTS animals_breed_idx ON animals (breed_id)`,

	`CREATE TABLE IF NOT EXISTS animal_subscriptions (
		id          TEXT PRIMARY KEY,
		animal_id   TEXT NOT NULL REFERENCES animals(id) ON DELETE CASCADE,
		user_id     TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL,
		UNIQUE (animal_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS animal_subscriptions_user_idx ON animal_subscriptions (user_id, created_at DESC)`,
}

// EnsureSchema crea tablas e índices que falten.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	return inTx(ctx, db, func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}
