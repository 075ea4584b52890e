package animals

import (
	"context"
	"time"
)

// Repository es el límite con el store persistido.
//
// Errores: ErrNotFound si el id no existe, ErrConflict ante versión vieja o
// clave única duplicada (p.ej. la misma suscripción dos veces).
type Repository interface {
	Create(ctx context.Context, a Animal) error
	GetByID(ctx context.Context, id string) (Animal, error) // incluye Subscribers
	GetBySlug(ctx context.Context, slug string) (Animal, error)

	// Update escribe el estado completo del agregado (colecciones incluidas)
	// solo si a.Version coincide con la persistida; después incrementa la versión.
	Update(ctx context.Context, a *Animal) error

	// Delete borra el animal y sus suscripciones.
	Delete(ctx context.Context, id string) error

	// Find evalúa solo el StoreFilter y devuelve todas las coincidencias, sin paginar.
	Find(ctx context.Context, f StoreFilter) ([]Animal, error)

	InsertSubscription(ctx context.Context, s Subscription) error
	DeleteSubscription(ctx context.Context, animalID, userID string) (bool, error)
	ListSubscriptionsByUser(ctx context.Context, userID string) ([]Subscription, error)

	// WithinTx corre fn con un Repository ligado a una transacción:
	// commit si fn devuelve nil, rollback en cualquier otro caso.
	WithinTx(ctx context.Context, fn func(tx Repository) error) error
}

// BreedLookup evita importar el paquete breeds (rompe ciclos).
// ok=false si la raza no existe.
type BreedLookup interface {
	SpeciesOf(ctx context.Context, breedID string) (speciesID string, ok bool, err error)
}

// EventType identifica eventos de dominio. Hoy solo se loguean.
type EventType string

const (
	EventCreated      EventType = "animal.created"
	EventUpdated      EventType = "animal.updated"
	EventDeleted      EventType = "animal.deleted"
	EventPhotoAdded   EventType = "animal.photo_added"
	EventPhotoRemoved EventType = "animal.photo_removed"
	EventSubscribed   EventType = "animal.subscribed"
	EventUnsubscribed EventType = "animal.unsubscribed"
)

type Event struct {
	Type     EventType
	AnimalID string
	UserID   string
	URL      string
	At       time.Time
}

// EventSink recibe eventos después del commit, en el mismo request.
type EventSink interface {
	Publish(ctx context.Context, e Event)
}

type noopSink struct{}

func (noopSink) Publish(context.Context, Event) {}
