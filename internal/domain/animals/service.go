package animals

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/arakviel/petcare/internal/platform/logger"
	"github.com/arakviel/petcare/internal/ports/locking"
	"github.com/arakviel/petcare/internal/ports/storage"

	"github.com/google/uuid"
)

const (
	defaultMediaURLTTL = 15 * time.Minute
	lockWait           = 5 * time.Second
)

type Service struct {
	repo    Repository
	breeds  BreedLookup
	storage storage.ObjectStorage // opcional
	locker  locking.Locker        // opcional
	events  EventSink
	log     logger.Logger
	now     func() time.Time
}

type Option func(*Service)

func WithStorage(st storage.ObjectStorage) Option { return func(s *Service) { s.storage = st } }
func WithLocker(l locking.Locker) Option          { return func(s *Service) { s.locker = l } }
func WithEvents(e EventSink) Option               { return func(s *Service) { s.events = e } }
func WithLogger(l logger.Logger) Option           { return func(s *Service) { s.log = l } }
func WithClock(now func() time.Time) Option       { return func(s *Service) { s.now = now } }

func NewService(repo Repository, breeds BreedLookup, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		breeds: breeds,
		events: noopSink{},
		log:    logger.Nop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// -------------------------
// Lectura
// -------------------------

func (s *Service) GetByID(ctx context.Context, id string) (Animal, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Animal{}, validationErr("id is required")
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetBySlug(ctx context.Context, slug string) (Animal, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return Animal{}, validationErr("slug is required")
	}
	return s.repo.GetBySlug(ctx, slug)
}

// List resuelve el catálogo en dos fases: el store filtra lo que sabe filtrar
// y el resto (edad, texto) se evalúa acá. Total se cuenta antes de paginar.
func (s *Service) List(ctx context.Context, q ListQuery) (ListResult, error) {
	if err := q.Validate(); err != nil {
		return ListResult{}, err
	}

	items, err := s.repo.Find(ctx, q.StoreFilter())
	if err != nil {
		return ListResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return ListResult{}, err
	}

	items = applyResiduals(items, q.residuals(s.now()))
	sortCatalog(items)

	return ListResult{
		Items:    paginate(items, q.Page, q.PageSize),
		Total:    len(items),
		Page:     q.Page,
		PageSize: q.PageSize,
	}, nil
}

// ListSubscribedAnimals devuelve los animales que sigue el usuario, la
// suscripción más nueva primero. Suscripciones huérfanas se ignoran.
func (s *Service) ListSubscribedAnimals(ctx context.Context, userID string) ([]Animal, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, validationErr("user_id is required")
	}

	subs, err := s.repo.ListSubscriptionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].CreatedAt.After(subs[j].CreatedAt)
	})

	out := make([]Animal, 0, len(subs))
	for _, sub := range subs {
		a, err := s.repo.GetByID(ctx, sub.AnimalID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// -------------------------
// Escritura
// -------------------------

func (s *Service) Create(ctx context.Context, in CreateInput) (Animal, error) {
	now := s.now()
	a, err := NewAnimal(in, now)
	if err != nil {
		return Animal{}, err
	}

	speciesID, err := s.speciesOf(ctx, a.BreedID)
	if err != nil {
		return Animal{}, err
	}
	a.SpeciesID = speciesID

	if err := s.repo.Create(ctx, a); err != nil {
		return Animal{}, err
	}

	s.publish(ctx, Event{Type: EventCreated, AnimalID: a.ID, UserID: a.CreatedByUserID, At: now})
	return a, nil
}

// UpdateInput junta todos los cambios posibles de un PATCH. nil = no tocar.
// Las colecciones se reemplazan completas.
type UpdateInput struct {
	Core CoreUpdate

	BreedID  *string
	Size     *Size
	CareCost *CareCost

	HealthConditions *[]string
	SpecialNeeds     *[]string
	Temperaments     *[]string
}

func (in UpdateInput) validate(now time.Time) error {
	if err := in.Core.Validate(now); err != nil {
		return err
	}
	if in.BreedID != nil && strings.TrimSpace(*in.BreedID) == "" {
		return validationErr("breed_id is required")
	}
	if in.Size != nil && !in.Size.Valid() {
		return validationErr("size: unknown value %q", *in.Size)
	}
	if in.CareCost != nil && !in.CareCost.Valid() {
		return validationErr("care_cost: unknown value %q", *in.CareCost)
	}
	return nil
}

// Update aplica todo o nada: valida el comando completo antes de cargar el
// agregado y persiste una sola vez.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Animal, error) {
	if err := in.validate(s.now()); err != nil {
		return Animal{}, err
	}

	var speciesID string
	if in.BreedID != nil {
		sp, err := s.speciesOf(ctx, strings.TrimSpace(*in.BreedID))
		if err != nil {
			return Animal{}, err
		}
		speciesID = sp
	}

	a, err := s.mutate(ctx, id, func(a *Animal, now time.Time) (bool, error) {
		if err := a.UpdateCore(in.Core, now); err != nil {
			return false, err
		}
		if in.BreedID != nil {
			if err := a.UpdateBreed(*in.BreedID, now); err != nil {
				return false, err
			}
			a.SpeciesID = speciesID
		}
		if in.Size != nil {
			if err := a.UpdateSize(*in.Size, now); err != nil {
				return false, err
			}
		}
		if in.CareCost != nil {
			if err := a.UpdateCareCost(*in.CareCost, now); err != nil {
				return false, err
			}
		}
		if in.HealthConditions != nil {
			a.ReplaceHealthConditions(*in.HealthConditions, now)
		}
		if in.SpecialNeeds != nil {
			a.ReplaceSpecialNeeds(*in.SpecialNeeds, now)
		}
		if in.Temperaments != nil {
			a.ReplaceTemperaments(*in.Temperaments, now)
		}
		return true, nil
	})
	if err != nil {
		return Animal{}, err
	}

	s.publish(ctx, Event{Type: EventUpdated, AnimalID: a.ID, At: a.UpdatedAt})
	return a, nil
}

// Delete borra el animal con sus suscripciones y después, fuera de la
// transacción, intenta borrar los archivos. Si eso falla solo se loguea.
func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return validationErr("id is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	var deleted Animal
	err = s.repo.WithinTx(ctx, func(tx Repository) error {
		a, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(ctx, id); err != nil {
			return err
		}
		deleted = a
		return nil
	})
	if err != nil {
		return err
	}

	for _, u := range deleted.Photos {
		s.deleteObject(ctx, deleted.ID, u)
	}
	for _, u := range deleted.Videos {
		s.deleteObject(ctx, deleted.ID, u)
	}

	s.publish(ctx, Event{Type: EventDeleted, AnimalID: id, At: s.now()})
	return nil
}

func (s *Service) AddPhoto(ctx context.Context, id, url string) (Animal, error) {
	if strings.TrimSpace(url) == "" {
		return Animal{}, validationErr("photo url is required")
	}
	var added bool
	a, err := s.mutate(ctx, id, func(a *Animal, now time.Time) (bool, error) {
		if a.HasPhoto(url) {
			return false, nil
		}
		if err := a.AddPhoto(url, now); err != nil {
			return false, err
		}
		added = true
		return true, nil
	})
	if err != nil {
		return Animal{}, err
	}
	if added {
		s.publish(ctx, Event{Type: EventPhotoAdded, AnimalID: a.ID, URL: strings.TrimSpace(url), At: s.now()})
	}
	return a, nil
}

func (s *Service) AddVideo(ctx context.Context, id, url string) (Animal, error) {
	if strings.TrimSpace(url) == "" {
		return Animal{}, validationErr("video url is required")
	}
	return s.mutate(ctx, id, func(a *Animal, now time.Time) (bool, error) {
		if a.HasVideo(url) {
			return false, nil
		}
		return true, a.AddVideo(url, now)
	})
}

// RemovePhoto devuelve removed=false si la URL no estaba (no es error).
// El archivo se borra recién después del commit.
func (s *Service) RemovePhoto(ctx context.Context, id, url string) (Animal, bool, error) {
	var removed bool
	a, err := s.mutate(ctx, id, func(a *Animal, now time.Time) (bool, error) {
		removed = a.RemovePhoto(url, now)
		return removed, nil
	})
	if err != nil {
		return Animal{}, false, err
	}
	if removed {
		s.deleteObject(ctx, a.ID, strings.TrimSpace(url))
		s.publish(ctx, Event{Type: EventPhotoRemoved, AnimalID: a.ID, URL: strings.TrimSpace(url), At: s.now()})
	}
	return a, removed, nil
}

func (s *Service) RemoveVideo(ctx context.Context, id, url string) (Animal, bool, error) {
	var removed bool
	a, err := s.mutate(ctx, id, func(a *Animal, now time.Time) (bool, error) {
		removed = a.RemoveVideo(url, now)
		return removed, nil
	})
	if err != nil {
		return Animal{}, false, err
	}
	if removed {
		s.deleteObject(ctx, a.ID, strings.TrimSpace(url))
	}
	return a, removed, nil
}

// UploadMedia sube el archivo y lo agrega como foto (image/*) o video (video/*).
// Si el alta en el agregado falla, el objeto subido se borra.
func (s *Service) UploadMedia(ctx context.Context, id, filename, contentType string, r io.Reader) (Animal, string, error) {
	if s.storage == nil {
		return Animal{}, "", storage.ErrNotConfigured
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Animal{}, "", validationErr("id is required")
	}

	contentType = strings.ToLower(strings.TrimSpace(contentType))
	var isVideo bool
	switch {
	case strings.HasPrefix(contentType, "image/"):
	case strings.HasPrefix(contentType, "video/"):
		isVideo = true
	default:
		return Animal{}, "", validationErr("content type %q is not an image or video", contentType)
	}

	// El animal tiene que existir antes de subir nada.
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return Animal{}, "", err
	}

	object := path.Join("animals", id, uuid.NewString()+strings.ToLower(path.Ext(filename)))
	url, err := s.storage.Upload(ctx, object, r, contentType)
	if err != nil {
		return Animal{}, "", fmt.Errorf("upload %s: %w", object, err)
	}

	var a Animal
	if isVideo {
		a, err = s.AddVideo(ctx, id, url)
	} else {
		a, err = s.AddPhoto(ctx, id, url)
	}
	if err != nil {
		s.deleteObject(ctx, id, url)
		return Animal{}, "", err
	}
	return a, url, nil
}

// MediaURL devuelve una URL firmada para un archivo del animal. Los links
// externos (no subidos por nosotros) se devuelven tal cual.
func (s *Service) MediaURL(ctx context.Context, id, url string, ttl time.Duration) (string, error) {
	a, err := s.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	url = strings.TrimSpace(url)
	if !a.HasPhoto(url) && !a.HasVideo(url) {
		return "", notFoundErr("media %q not found on animal %s", url, id)
	}
	if s.storage == nil {
		return url, nil
	}
	object, ok := s.storage.ObjectName(url)
	if !ok {
		return url, nil
	}
	if ttl <= 0 {
		ttl = defaultMediaURLTTL
	}
	return s.storage.PresignedURL(ctx, object, ttl)
}

// -------------------------
// Suscripciones
// -------------------------

// Subscribe persiste solo el delta (una fila) en la misma transacción que la
// lectura del agregado. Suscribirse dos veces es ErrConflict.
func (s *Service) Subscribe(ctx context.Context, animalID, userID string) (Subscription, error) {
	animalID = strings.TrimSpace(animalID)
	userID = strings.TrimSpace(userID)
	if animalID == "" {
		return Subscription{}, validationErr("animal_id is required")
	}
	if userID == "" {
		return Subscription{}, validationErr("user_id is required")
	}
	if err := ctx.Err(); err != nil {
		return Subscription{}, err
	}

	unlock, err := s.lock(ctx, animalID)
	if err != nil {
		return Subscription{}, err
	}
	defer unlock()

	var sub Subscription
	err = s.repo.WithinTx(ctx, func(tx Repository) error {
		a, err := tx.GetByID(ctx, animalID)
		if err != nil {
			return err
		}
		created, err := a.Subscribe(userID, s.now())
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := tx.InsertSubscription(ctx, created); err != nil {
			return err
		}
		sub = created
		return nil
	})
	if err != nil {
		return Subscription{}, err
	}

	s.publish(ctx, Event{Type: EventSubscribed, AnimalID: animalID, UserID: userID, At: sub.CreatedAt})
	return sub, nil
}

// Unsubscribe devuelve (nil, nil) si el usuario no seguía al animal.
func (s *Service) Unsubscribe(ctx context.Context, animalID, userID string) (*Subscription, error) {
	animalID = strings.TrimSpace(animalID)
	userID = strings.TrimSpace(userID)
	if animalID == "" {
		return nil, validationErr("animal_id is required")
	}
	if userID == "" {
		return nil, validationErr("user_id is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, animalID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var removed *Subscription
	err = s.repo.WithinTx(ctx, func(tx Repository) error {
		a, err := tx.GetByID(ctx, animalID)
		if err != nil {
			return err
		}
		removed = a.Unsubscribe(userID)
		if removed == nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err = tx.DeleteSubscription(ctx, animalID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if removed != nil {
		s.publish(ctx, Event{Type: EventUnsubscribed, AnimalID: animalID, UserID: userID, At: s.now()})
	}
	return removed, nil
}

// -------------------------
// Helpers
// -------------------------

// mutate carga el agregado dentro de una transacción, aplica fn y persiste.
// Si fn devuelve changed=false no se escribe nada. Un ctx cancelado corta
// antes del lock y antes del Update.
func (s *Service) mutate(ctx context.Context, id string, fn func(a *Animal, now time.Time) (bool, error)) (Animal, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Animal{}, validationErr("id is required")
	}
	if err := ctx.Err(); err != nil {
		return Animal{}, err
	}

	unlock, err := s.lock(ctx, id)
	if err != nil {
		return Animal{}, err
	}
	defer unlock()

	var out Animal
	err = s.repo.WithinTx(ctx, func(tx Repository) error {
		a, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		changed, err := fn(&a, s.now())
		if err != nil {
			return err
		}
		if changed {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := tx.Update(ctx, &a); err != nil {
				return err
			}
		}
		out = a
		return nil
	})
	if err != nil {
		return Animal{}, err
	}
	return out, nil
}

// lock toma el lock distribuido del animal si hay Locker configurado.
// No conseguirlo a tiempo se reporta como ErrConflict.
func (s *Service) lock(ctx context.Context, id string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	lctx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()

	unlock, err := s.locker.Lock(lctx, "animal:"+id)
	if errors.Is(err, locking.ErrNotAcquired) {
		return nil, conflictErr("animal %s is being modified", id)
	}
	if err != nil {
		return nil, err
	}
	return func() {
		// ctx puede estar cancelado; el unlock usa uno propio.
		uctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := unlock(uctx); err != nil {
			s.log.Warn("animal unlock failed", map[string]any{"animal_id": id, "err": err})
		}
	}, nil
}

func (s *Service) speciesOf(ctx context.Context, breedID string) (string, error) {
	if s.breeds == nil {
		return "", nil
	}
	speciesID, ok, err := s.breeds.SpeciesOf(ctx, breedID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", notFoundErr("breed %s not found", breedID)
	}
	return speciesID, nil
}

// deleteObject borra el archivo detrás de url si es nuestro. Best-effort.
func (s *Service) deleteObject(ctx context.Context, animalID, url string) {
	if s.storage == nil {
		return
	}
	object, ok := s.storage.ObjectName(url)
	if !ok {
		return
	}
	err := s.storage.Delete(ctx, object)
	if err == nil || errors.Is(err, storage.ErrObjectNotFound) {
		return
	}
	s.log.Warn("media delete failed", map[string]any{
		"animal_id": animalID,
		"object":    object,
		"err":       err,
	})
}

func (s *Service) publish(ctx context.Context, e Event) {
	s.events.Publish(ctx, e)
}

// logSink deja un registro por evento. Es el sink por defecto del servidor.
type logSink struct{ log logger.Logger }

func NewLogEventSink(log logger.Logger) EventSink { return logSink{log: log} }

func (l logSink) Publish(_ context.Context, e Event) {
	fields := map[string]any{"event": string(e.Type), "animal_id": e.AnimalID}
	if e.UserID != "" {
		fields["user_id"] = e.UserID
	}
	if e.URL != "" {
		fields["url"] = e.URL
	}
	l.log.Info("domain event", fields)
}
