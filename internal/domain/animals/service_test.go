package animals_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	memstore "github.com/arakviel/petcare/internal/adapters/objectstore/memory"
	mem "github.com/arakviel/petcare/internal/adapters/storage/memory"
	"github.com/arakviel/petcare/internal/domain/animals"
	"github.com/arakviel/petcare/internal/ports/locking"
	"github.com/arakviel/petcare/internal/ports/storage"
)

type fakeBreeds map[string]string // breedID -> speciesID

func (f fakeBreeds) SpeciesOf(_ context.Context, breedID string) (string, bool, error) {
	sp, ok := f[breedID]
	return sp, ok, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []animals.Event
}

func (r *recordingSink) Publish(_ context.Context, e animals.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSink) types() []animals.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]animals.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type busyLocker struct{}

func (busyLocker) Lock(context.Context, string) (locking.Unlock, error) {
	return nil, locking.ErrNotAcquired
}

type countingLocker struct {
	mu       sync.Mutex
	locked   int
	unlocked int
}

func (c *countingLocker) Lock(context.Context, string) (locking.Unlock, error) {
	c.mu.Lock()
	c.locked++
	c.mu.Unlock()
	return func(context.Context) error {
		c.mu.Lock()
		c.unlocked++
		c.mu.Unlock()
		return nil
	}, nil
}

type env struct {
	svc    *animals.Service
	repo   animals.Repository
	store  *memstore.Store
	events *recordingSink
}

func newEnv(t *testing.T, opts ...animals.Option) env {
	t.Helper()

	clock := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}

	e := env{
		repo:   mem.NewAnimalRepo(),
		store:  memstore.New(),
		events: &recordingSink{},
	}
	all := append([]animals.Option{
		animals.WithClock(tick),
		animals.WithStorage(e.store),
		animals.WithEvents(e.events),
	}, opts...)
	e.svc = animals.NewService(e.repo, fakeBreeds{"lab": "dog", "siamese": "cat"}, all...)
	return e
}

func (e env) create(t *testing.T, name string, mutate ...func(*animals.CreateInput)) animals.Animal {
	t.Helper()
	in := animals.CreateInput{
		Name:      name,
		BreedID:   "lab",
		ShelterID: "shelter-1",
		Gender:    animals.GenderMale,
		Size:      animals.SizeMedium,
		Status:    animals.StatusAvailable,
		CareCost:  animals.CareCostUpTo600,
	}
	for _, m := range mutate {
		m(&in)
	}
	a, err := e.svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return a
}

func TestService_CreateResolvesSpecies(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := e.create(t, "Rex")
	if a.SpeciesID != "dog" {
		t.Fatalf("expected species dog, got %q", a.SpeciesID)
	}

	got, err := e.svc.GetBySlug(ctx, strings.ToUpper(a.Slug))
	if err != nil || got.ID != a.ID {
		t.Fatalf("GetBySlug: %v %+v", err, got)
	}

	_, err = e.svc.Create(ctx, animals.CreateInput{
		Name: "Ghost", BreedID: "unknown", ShelterID: "s",
		Gender: animals.GenderMale, Size: animals.SizeSmall,
		Status: animals.StatusAvailable, CareCost: animals.CareCostUpTo300,
	})
	if !errors.Is(err, animals.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown breed, got %v", err)
	}
}

func TestService_GetByIDNotFound(t *testing.T) {
	e := newEnv(t)
	if _, err := e.svc.GetByID(context.Background(), "nope"); !errors.Is(err, animals.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := e.svc.GetByID(context.Background(), " "); !errors.Is(err, animals.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestService_ListPaginatesAfterFiltering(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 15; i++ {
		e.create(t, "Dog")
	}
	e.create(t, "Cat", func(in *animals.CreateInput) { in.BreedID = "siamese" })

	res, err := e.svc.List(context.Background(), animals.ListQuery{
		Page: 2, PageSize: 10, SpeciesID: "dog",
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Total != 15 {
		t.Fatalf("expected total 15, got %d", res.Total)
	}
	if len(res.Items) != 5 {
		t.Fatalf("expected 5 items on page 2, got %d", len(res.Items))
	}

	res, err = e.svc.List(context.Background(), animals.ListQuery{Page: 5, PageSize: 10})
	if err != nil || len(res.Items) != 0 || res.Total != 16 {
		t.Fatalf("page past end: %v %d %d", err, len(res.Items), res.Total)
	}
}

func TestService_ListOrdersDeadLastAndAppliesResiduals(t *testing.T) {
	e := newEnv(t)
	old := e.create(t, "Old timer", func(in *animals.CreateInput) {
		bd := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
		in.Birthday = &bd
	})
	dead := e.create(t, "Buddy", func(in *animals.CreateInput) { in.Status = animals.StatusDead })
	young := e.create(t, "Puppy", func(in *animals.CreateInput) { in.Description = "tiny and playful" })

	res, err := e.svc.List(context.Background(), animals.ListQuery{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := []string{res.Items[0].ID, res.Items[1].ID, res.Items[2].ID}
	want := []string{young.ID, old.ID, dead.ID}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order pos %d: got %s want %s", i, got[i], want[i])
		}
	}

	minAge := 5
	res, _ = e.svc.List(context.Background(), animals.ListQuery{Page: 1, PageSize: 10, MinAge: &minAge})
	if res.Total != 1 || res.Items[0].ID != old.ID {
		t.Fatalf("min_age should only keep animals with a known old birthday, got %d", res.Total)
	}

	res, _ = e.svc.List(context.Background(), animals.ListQuery{Page: 1, PageSize: 10, Search: "PLAYFUL"})
	if res.Total != 1 || res.Items[0].ID != young.ID {
		t.Fatalf("search by description failed, got %d", res.Total)
	}

	if _, err := e.svc.List(context.Background(), animals.ListQuery{Page: 0, PageSize: 10}); !errors.Is(err, animals.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestService_UpdateIsAllOrNothing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.create(t, "Rex")

	bad := animals.CareCost("free")
	name := "Renamed"
	_, err := e.svc.Update(ctx, a.ID, animals.UpdateInput{
		Core:     animals.CoreUpdate{Name: &name},
		CareCost: &bad,
	})
	if !errors.Is(err, animals.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	got, _ := e.svc.GetByID(ctx, a.ID)
	if got.Name != "Rex" || got.Version != a.Version {
		t.Fatalf("animal changed after rejected update: %+v", got)
	}

	unknown := "poodle"
	if _, err := e.svc.Update(ctx, a.ID, animals.UpdateInput{BreedID: &unknown}); !errors.Is(err, animals.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown breed, got %v", err)
	}

	breed := "siamese"
	size := animals.SizeLarge
	temps := []string{"calm", "calm"}
	updated, err := e.svc.Update(ctx, a.ID, animals.UpdateInput{
		Core:         animals.CoreUpdate{Name: &name},
		BreedID:      &breed,
		Size:         &size,
		Temperaments: &temps,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != name || updated.SpeciesID != "cat" || updated.Size != size || len(updated.Temperaments) != 1 {
		t.Fatalf("update not applied: %+v", updated)
	}
	if updated.Version != a.Version+1 {
		t.Fatalf("expected version %d, got %d", a.Version+1, updated.Version)
	}
}

func TestService_AddPhotoIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.create(t, "Rex")

	first, err := e.svc.AddPhoto(ctx, a.ID, "https://cdn.example/rex.jpg")
	if err != nil {
		t.Fatalf("add photo: %v", err)
	}
	second, err := e.svc.AddPhoto(ctx, a.ID, "https://cdn.example/rex.jpg")
	if err != nil {
		t.Fatalf("add photo again: %v", err)
	}
	if len(second.Photos) != 1 || second.Version != first.Version {
		t.Fatalf("second add should be a no-op: %+v", second)
	}

	added := 0
	for _, typ := range e.events.types() {
		if typ == animals.EventPhotoAdded {
			added++
		}
	}
	if added != 1 {
		t.Fatalf("expected one photo_added event, got %d", added)
	}
}

func TestService_RemovePhotoDeletesStoredObject(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.create(t, "Rex")

	_, url, err := e.svc.UploadMedia(ctx, a.ID, "rex.JPG", "image/jpeg", strings.NewReader("jpeg-bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	object, ok := e.store.ObjectName(url)
	if !ok || !strings.HasPrefix(object, "animals/"+a.ID+"/") || !strings.HasSuffix(object, ".jpg") {
		t.Fatalf("unexpected object name %q", object)
	}

	_, removed, err := e.svc.RemovePhoto(ctx, a.ID, "https://elsewhere/x.jpg")
	if err != nil || removed {
		t.Fatalf("removing absent photo: removed=%v err=%v", removed, err)
	}

	got, removed, err := e.svc.RemovePhoto(ctx, a.ID, url)
	if err != nil || !removed {
		t.Fatalf("remove: removed=%v err=%v", removed, err)
	}
	if len(got.Photos) != 0 {
		t.Fatalf("photo still on animal")
	}
	if _, _, ok := e.store.Get(object); ok {
		t.Fatalf("object should be deleted from storage")
	}
}

func TestService_UploadMedia(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.create(t, "Rex")

	got, url, err := e.svc.UploadMedia(ctx, a.ID, "clip.mp4", "video/mp4", strings.NewReader("mp4"))
	if err != nil {
		t.Fatalf("upload video: %v", err)
	}
	if len(got.Videos) != 1 || got.Videos[0] != url {
		t.Fatalf("video not attached: %+v", got.Videos)
	}
	object, _ := e.store.ObjectName(url)
	if data, ct, ok := e.store.Get(object); !ok || string(data) != "mp4" || ct != "video/mp4" {
		t.Fatalf("stored object mismatch: %q %q %v", data, ct, ok)
	}

	if _, _, err := e.svc.UploadMedia(ctx, a.ID, "doc.pdf", "application/pdf", strings.NewReader("x")); !errors.Is(err, animals.ErrValidation) {
		t.Fatalf("expected ErrValidation for pdf, got %v", err)
	}
	if _, _, err := e.svc.UploadMedia(ctx, "missing", "a.png", "image/png", strings.NewReader("x")); !errors.Is(err, animals.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	noStorage := animals.NewService(e.repo, fakeBreeds{"lab": "dog"})
	if _, _, err := noStorage.UploadMedia(ctx, a.ID, "a.png", "image/png", strings.NewReader("x")); !errors.Is(err, storage.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestService_MediaURL(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.create(t, "Rex")

	_, url, err := e.svc.UploadMedia(ctx, a.ID, "a.png", "image/png", strings.NewReader("png"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	signed, err := e.svc.MediaURL(ctx, a.ID, url, time.Minute)
	if err != nil || !strings.Contains(signed, "?expires=") {
		t.Fatalf("expected signed url, got %q %v", signed, err)
	}

	external := "https://cdn.example/ext.jpg"
	if _, err := e.svc.AddPhoto(ctx, a.ID, external); err != nil {
		t.Fatalf("add photo: %v", err)
	}
	if got, err := e.svc.MediaURL(ctx, a.ID, external, 0); err != nil || got != external {
		t.Fatalf("external url should be returned as is, got %q %v", got, err)
	}

	if _, err := e.svc.MediaURL(ctx, a.ID, "https://other/x.jpg", 0); !errors.Is(err, animals.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestService_DeleteRemovesMediaAndSubscriptions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.create(t, "Rex")

	_, url, _ := e.svc.UploadMedia(ctx, a.ID, "a.png", "image/png", strings.NewReader("png"))
	object, _ := e.store.ObjectName(url)
	if _, err := e.svc.Subscribe(ctx, a.ID, "user-1"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := e.svc.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := e.svc.GetByID(ctx, a.ID); !errors.Is(err, animals.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, _, ok := e.store.Get(object); ok {
		t.Fatalf("media object should be deleted")
	}
	subs, err := e.svc.ListSubscribedAnimals(ctx, "user-1")
	if err != nil || len(subs) != 0 {
		t.Fatalf("subscriptions should be gone: %v %d", err, len(subs))
	}
	if err := e.svc.Delete(ctx, a.ID); !errors.Is(err, animals.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestService_Subscriptions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	first := e.create(t, "Rex")
	second := e.create(t, "Luna")

	if _, err := e.svc.Subscribe(ctx, first.ID, "user-1"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := e.svc.Subscribe(ctx, first.ID, "user-1"); !errors.Is(err, animals.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := e.svc.Subscribe(ctx, "missing", "user-1"); !errors.Is(err, animals.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := e.svc.Subscribe(ctx, second.ID, "user-1"); err != nil {
		t.Fatalf("subscribe second: %v", err)
	}

	got, err := e.svc.GetByID(ctx, first.ID)
	if err != nil || len(got.Subscribers) != 1 || !got.IsSubscribed("user-1") {
		t.Fatalf("subscriber not loaded: %v %+v", err, got.Subscribers)
	}

	list, err := e.svc.ListSubscribedAnimals(ctx, "user-1")
	if err != nil || len(list) != 2 || list[0].ID != second.ID {
		t.Fatalf("expected newest subscription first: %v %+v", err, list)
	}

	removed, err := e.svc.Unsubscribe(ctx, first.ID, "user-2")
	if err != nil || removed != nil {
		t.Fatalf("unsubscribe absent: %v %+v", err, removed)
	}
	removed, err = e.svc.Unsubscribe(ctx, first.ID, "user-1")
	if err != nil || removed == nil || removed.UserID != "user-1" {
		t.Fatalf("unsubscribe: %v %+v", err, removed)
	}
	if got, _ := e.svc.GetByID(ctx, first.ID); len(got.Subscribers) != 0 {
		t.Fatalf("subscriber not removed")
	}

	want := []animals.EventType{
		animals.EventCreated, animals.EventCreated,
		animals.EventSubscribed, animals.EventSubscribed,
		animals.EventUnsubscribed,
	}
	types := e.events.types()
	if len(types) != len(want) {
		t.Fatalf("events: got %v", types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event %d: got %s want %s", i, types[i], want[i])
		}
	}
}

func TestService_LockNotAcquiredIsConflict(t *testing.T) {
	e := newEnv(t)
	a := e.create(t, "Rex")

	busy := animals.NewService(e.repo, fakeBreeds{"lab": "dog"}, animals.WithLocker(busyLocker{}))
	if _, err := busy.AddPhoto(context.Background(), a.ID, "https://x/y.jpg"); !errors.Is(err, animals.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := busy.Subscribe(context.Background(), a.ID, "u"); !errors.Is(err, animals.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestService_LockIsReleased(t *testing.T) {
	l := &countingLocker{}
	e := newEnv(t, animals.WithLocker(l))
	a := e.create(t, "Rex")

	if _, err := e.svc.AddPhoto(context.Background(), a.ID, "https://x/y.jpg"); err != nil {
		t.Fatalf("add photo: %v", err)
	}
	if _, err := e.svc.AddPhoto(context.Background(), "missing", "https://x/y.jpg"); !errors.Is(err, animals.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if l.locked != 2 || l.unlocked != 2 {
		t.Fatalf("locks not balanced: locked=%d unlocked=%d", l.locked, l.unlocked)
	}
}

func TestService_CancelledContextDoesNotCommit(t *testing.T) {
	e := newEnv(t)
	a := e.create(t, "Rex")
	before := len(e.events.types())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.svc.AddPhoto(ctx, a.ID, "https://x/p.jpg"); !errors.Is(err, context.Canceled) {
		t.Fatalf("add photo: expected context.Canceled, got %v", err)
	}
	if _, err := e.svc.Subscribe(ctx, a.ID, "user-1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("subscribe: expected context.Canceled, got %v", err)
	}
	if _, err := e.svc.Unsubscribe(ctx, a.ID, "user-1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("unsubscribe: expected context.Canceled, got %v", err)
	}
	if err := e.svc.Delete(ctx, a.ID); !errors.Is(err, context.Canceled) {
		t.Fatalf("delete: expected context.Canceled, got %v", err)
	}

	got, err := e.svc.GetByID(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Photos) != 0 || len(got.Subscribers) != 0 || got.Version != a.Version {
		t.Fatalf("cancelled calls changed the animal: %+v", got)
	}
	if n := len(e.events.types()); n != before {
		t.Fatalf("cancelled calls published %d events", n-before)
	}
}

func TestService_ConcurrentMutations(t *testing.T) {
	const workers = 16

	cases := []struct {
		name  string
		run   func(svc *animals.Service, id string, i int) error
		check func(t *testing.T, a animals.Animal, errs []error)
	}{
		{
			name: "distinct photos all land",
			run: func(svc *animals.Service, id string, i int) error {
				_, err := svc.AddPhoto(context.Background(), id, fmt.Sprintf("https://cdn.example/%d.jpg", i))
				return err
			},
			check: func(t *testing.T, a animals.Animal, errs []error) {
				for i, err := range errs {
					if err != nil {
						t.Fatalf("worker %d: %v", i, err)
					}
				}
				if len(a.Photos) != workers {
					t.Fatalf("expected %d photos, got %d", workers, len(a.Photos))
				}
				if a.Version != 1+workers {
					t.Fatalf("expected version %d, got %d", 1+workers, a.Version)
				}
			},
		},
		{
			name: "same user subscribes once",
			run: func(svc *animals.Service, id string, _ int) error {
				_, err := svc.Subscribe(context.Background(), id, "user-1")
				return err
			},
			check: func(t *testing.T, a animals.Animal, errs []error) {
				ok := 0
				for _, err := range errs {
					switch {
					case err == nil:
						ok++
					case !errors.Is(err, animals.ErrConflict):
						t.Fatalf("expected ErrConflict, got %v", err)
					}
				}
				if ok != 1 || len(a.Subscribers) != 1 {
					t.Fatalf("expected exactly one subscription, got ok=%d subs=%d", ok, len(a.Subscribers))
				}
			},
		},
		{
			name: "distinct users all subscribe",
			run: func(svc *animals.Service, id string, i int) error {
				_, err := svc.Subscribe(context.Background(), id, fmt.Sprintf("user-%d", i))
				return err
			},
			check: func(t *testing.T, a animals.Animal, errs []error) {
				for i, err := range errs {
					if err != nil {
						t.Fatalf("worker %d: %v", i, err)
					}
				}
				if len(a.Subscribers) != workers {
					t.Fatalf("expected %d subscribers, got %d", workers, len(a.Subscribers))
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t)
			a := e.create(t, "Rex")

			errs := make([]error, workers)
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					errs[i] = tc.run(e.svc, a.ID, i)
				}(i)
			}
			wg.Wait()

			got, err := e.svc.GetByID(context.Background(), a.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			tc.check(t, got, errs)
		})
	}
}
