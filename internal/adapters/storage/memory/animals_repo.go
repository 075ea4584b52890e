package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/arakviel/petcare/internal/domain/animals"
)

// animalState es todo lo que el repo guarda. Las transacciones trabajan sobre
// una copia y la publican entera en el commit.
type animalState struct {
	byID map[string]animals.Animal // sin Subscribers
	subs map[string]animals.Subscription
}

func newAnimalState() *animalState {
	return &animalState{
		byID: make(map[string]animals.Animal),
		subs: make(map[string]animals.Subscription),
	}
}

func (s *animalState) clone() *animalState {
	out := &animalState{
		byID: make(map[string]animals.Animal, len(s.byID)),
		subs: make(map[string]animals.Subscription, len(s.subs)),
	}
	for k, v := range s.byID {
		out.byID[k] = v.Clone()
	}
	for k, v := range s.subs {
		out.subs[k] = v
	}
	return out
}

type animalRepo struct {
	// txMu serializa escrituras y transacciones; mu protege el puntero a state.
	txMu sync.Mutex
	mu   sync.RWMutex
	st   *animalState
}

func NewAnimalRepo() animals.Repository {
	return &animalRepo{st: newAnimalState()}
}

func (r *animalRepo) read() *animalState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.st
}

// write corre fn sobre una copia y la publica solo si fn no falla y ctx
// sigue vivo.
func (r *animalRepo) write(ctx context.Context, fn func(st *animalState) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.txMu.Lock()
	defer r.txMu.Unlock()

	next := r.read().clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	r.st = next
	r.mu.Unlock()
	return nil
}

func (r *animalRepo) Create(ctx context.Context, a animals.Animal) error {
	return r.write(ctx, func(st *animalState) error { return st.create(a) })
}

func (r *animalRepo) GetByID(ctx context.Context, id string) (animals.Animal, error) {
	if err := ctx.Err(); err != nil {
		return animals.Animal{}, err
	}
	return r.read().getByID(id)
}

func (r *animalRepo) GetBySlug(ctx context.Context, slug string) (animals.Animal, error) {
	if err := ctx.Err(); err != nil {
		return animals.Animal{}, err
	}
	return r.read().getBySlug(slug)
}

func (r *animalRepo) Update(ctx context.Context, a *animals.Animal) error {
	return r.write(ctx, func(st *animalState) error { return st.update(a) })
}

func (r *animalRepo) Delete(ctx context.Context, id string) error {
	return r.write(ctx, func(st *animalState) error { return st.delete(id) })
}

func (r *animalRepo) Find(ctx context.Context, f animals.StoreFilter) ([]animals.Animal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.read().find(f), nil
}

func (r *animalRepo) InsertSubscription(ctx context.Context, s animals.Subscription) error {
	return r.write(ctx, func(st *animalState) error { return st.insertSubscription(s) })
}

func (r *animalRepo) DeleteSubscription(ctx context.Context, animalID, userID string) (bool, error) {
	var removed bool
	err := r.write(ctx, func(st *animalState) error {
		removed = st.deleteSubscription(animalID, userID)
		return nil
	})
	return removed, err
}

func (r *animalRepo) ListSubscriptionsByUser(ctx context.Context, userID string) ([]animals.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.read().subscriptionsByUser(userID), nil
}

func (r *animalRepo) WithinTx(ctx context.Context, fn func(tx animals.Repository) error) error {
	return r.write(ctx, func(st *animalState) error {
		return fn(&animalTx{st: st})
	})
}

// animalTx opera sin locks: el animalRepo ya tiene txMu tomado.
type animalTx struct {
	st *animalState
}

func (t *animalTx) Create(ctx context.Context, a animals.Animal) error { return t.st.create(a) }
func (t *animalTx) GetByID(ctx context.Context, id string) (animals.Animal, error) {
	return t.st.getByID(id)
}
func (t *animalTx) GetBySlug(ctx context.Context, slug string) (animals.Animal, error) {
	return t.st.getBySlug(slug)
}
func (t *animalTx) Update(ctx context.Context, a *animals.Animal) error { return t.st.update(a) }
func (t *animalTx) Delete(ctx context.Context, id string) error         { return t.st.delete(id) }
func (t *animalTx) Find(ctx context.Context, f animals.StoreFilter) ([]animals.Animal, error) {
	return t.st.find(f), nil
}
func (t *animalTx) InsertSubscription(ctx context.Context, s animals.Subscription) error {
	return t.st.insertSubscription(s)
}
func (t *animalTx) DeleteSubscription(ctx context.Context, animalID, userID string) (bool, error) {
	return t.st.deleteSubscription(animalID, userID), nil
}
func (t *animalTx) ListSubscriptionsByUser(ctx context.Context, userID string) ([]animals.Subscription, error) {
	return t.st.subscriptionsByUser(userID), nil
}

// Transacciones anidadas se aplanan en la de afuera.
func (t *animalTx) WithinTx(ctx context.Context, fn func(tx animals.Repository) error) error {
	return fn(t)
}

// -------------------------
// Operaciones sobre el state
// -------------------------

func (s *animalState) create(a animals.Animal) error {
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("%w: animal id required", animals.ErrValidation)
	}
	if _, exists := s.byID[a.ID]; exists {
		return fmt.Errorf("%w: animal %s already exists", animals.ErrConflict, a.ID)
	}
	if a.Slug != "" {
		if _, err := s.getBySlug(a.Slug); err == nil {
			return fmt.Errorf("%w: slug %s already taken", animals.ErrConflict, a.Slug)
		}
	}
	stored := a.Clone()
	stored.Subscribers = nil
	s.byID[a.ID] = stored
	return nil
}

func (s *animalState) getByID(id string) (animals.Animal, error) {
	a, ok := s.byID[id]
	if !ok {
		return animals.Animal{}, fmt.Errorf("%w: animal %s", animals.ErrNotFound, id)
	}
	return s.hydrate(a), nil
}

func (s *animalState) getBySlug(slug string) (animals.Animal, error) {
	for _, a := range s.byID {
		if a.Slug == slug {
			return s.hydrate(a), nil
		}
	}
	return animals.Animal{}, fmt.Errorf("%w: animal with slug %s", animals.ErrNotFound, slug)
}

// update es compare-and-set sobre Version.
func (s *animalState) update(a *animals.Animal) error {
	cur, ok := s.byID[a.ID]
	if !ok {
		return fmt.Errorf("%w: animal %s", animals.ErrNotFound, a.ID)
	}
	if cur.Version != a.Version {
		return fmt.Errorf("%w: animal %s was modified concurrently", animals.ErrConflict, a.ID)
	}
	if a.Slug != cur.Slug {
		for id, other := range s.byID {
			if id != a.ID && other.Slug == a.Slug {
				return fmt.Errorf("%w: slug %s already taken", animals.ErrConflict, a.Slug)
			}
		}
	}

	a.Version++
	stored := a.Clone()
	stored.Subscribers = nil
	s.byID[a.ID] = stored
	return nil
}

func (s *animalState) delete(id string) error {
	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("%w: animal %s", animals.ErrNotFound, id)
	}
	delete(s.byID, id)
	for sid, sub := range s.subs {
		if sub.AnimalID == id {
			delete(s.subs, sid)
		}
	}
	return nil
}

func (s *animalState) find(f animals.StoreFilter) []animals.Animal {
	out := make([]animals.Animal, 0)
	for _, a := range s.byID {
		if f.Matches(a) {
			out = append(out, s.hydrate(a))
		}
	}
	// Orden estable para dev; el service reordena igual.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *animalState) insertSubscription(sub animals.Subscription) error {
	if _, ok := s.byID[sub.AnimalID]; !ok {
		return fmt.Errorf("%w: animal %s", animals.ErrNotFound, sub.AnimalID)
	}
	for _, existing := range s.subs {
		if existing.AnimalID == sub.AnimalID && existing.UserID == sub.UserID {
			return fmt.Errorf("%w: user %s already subscribed", animals.ErrConflict, sub.UserID)
		}
	}
	s.subs[sub.ID] = sub
	return nil
}

func (s *animalState) deleteSubscription(animalID, userID string) bool {
	for id, sub := range s.subs {
		if sub.AnimalID == animalID && sub.UserID == userID {
			delete(s.subs, id)
			return true
		}
	}
	return false
}

func (s *animalState) subscriptionsByUser(userID string) []animals.Subscription {
	out := make([]animals.Subscription, 0)
	for _, sub := range s.subs {
		if sub.UserID == userID {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// hydrate devuelve una copia con los suscriptores cargados (más viejo primero).
func (s *animalState) hydrate(a animals.Animal) animals.Animal {
	out := a.Clone()
	out.Subscribers = make([]animals.Subscription, 0)
	for _, sub := range s.subs {
		if sub.AnimalID == a.ID {
			out.Subscribers = append(out.Subscribers, sub)
		}
	}
	sort.Slice(out.Subscribers, func(i, j int) bool {
		return out.Subscribers[i].CreatedAt.Before(out.Subscribers[j].CreatedAt)
	})
	return out
}
