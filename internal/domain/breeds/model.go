package breeds

import "time"

// Species es la especie (perro, gato...). El nombre es único.
type Species struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Breed pertenece a una sola especie. El nombre es único dentro de la especie.
type Breed struct {
	ID        string
	SpeciesID string
	Name      string
	CreatedAt time.Time
}
