package animals

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type CreateInput struct {
	Name     string
	BreedID  string
	Birthday *time.Time

	Gender   Gender
	Size     Size
	Status   Status
	CareCost CareCost

	IsSterilized  bool
	IsUnderCare   bool
	HaveDocuments bool

	Weight *float64
	Height *float64

	Color                string
	Description          string
	MicrochipID          string
	AdoptionRequirements string

	Photos           []string
	Videos           []string
	HealthConditions []string
	SpecialNeeds     []string
	Temperaments     []string

	ShelterID       string
	CreatedByUserID string
}

// NewAnimal construye un agregado válido o devuelve ErrValidation sin efectos.
func NewAnimal(in CreateInput, now time.Time) (Animal, error) {
	name, err := NormalizeName(in.Name)
	if err != nil {
		return Animal{}, err
	}
	breedID := strings.TrimSpace(in.BreedID)
	if breedID == "" {
		return Animal{}, validationErr("breed_id is required")
	}
	shelterID := strings.TrimSpace(in.ShelterID)
	if shelterID == "" {
		return Animal{}, validationErr("shelter_id is required")
	}
	if !in.Gender.Valid() {
		return Animal{}, validationErr("gender: unknown value %q", in.Gender)
	}
	if !in.Size.Valid() {
		return Animal{}, validationErr("size: unknown value %q", in.Size)
	}
	if !in.Status.Valid() {
		return Animal{}, validationErr("status: unknown value %q", in.Status)
	}
	if !in.CareCost.Valid() {
		return Animal{}, validationErr("care_cost: unknown value %q", in.CareCost)
	}
	if err := positiveMeasure("weight", in.Weight); err != nil {
		return Animal{}, err
	}
	if err := positiveMeasure("height", in.Height); err != nil {
		return Animal{}, err
	}

	var birthday *time.Time
	if in.Birthday != nil {
		bd, err := NormalizeBirthday(*in.Birthday, now)
		if err != nil {
			return Animal{}, err
		}
		birthday = &bd
	}

	id := uuid.NewString()
	return Animal{
		ID:                   id,
		Slug:                 NewSlug(name, id),
		Name:                 name,
		BreedID:              breedID,
		Birthday:             birthday,
		Gender:               in.Gender,
		Size:                 in.Size,
		Status:               in.Status,
		CareCost:             in.CareCost,
		IsSterilized:         in.IsSterilized,
		IsUnderCare:          in.IsUnderCare,
		HaveDocuments:        in.HaveDocuments,
		Weight:               cloneFloat(in.Weight),
		Height:               cloneFloat(in.Height),
		Color:                strings.TrimSpace(in.Color),
		Description:          strings.TrimSpace(in.Description),
		MicrochipID:          strings.TrimSpace(in.MicrochipID),
		AdoptionRequirements: strings.TrimSpace(in.AdoptionRequirements),
		Photos:               dedupeTags(in.Photos),
		Videos:               dedupeTags(in.Videos),
		HealthConditions:     dedupeTags(in.HealthConditions),
		SpecialNeeds:         dedupeTags(in.SpecialNeeds),
		Temperaments:         dedupeTags(in.Temperaments),
		ShelterID:            shelterID,
		CreatedByUserID:      strings.TrimSpace(in.CreatedByUserID),
		Subscribers:          []Subscription{},
		Version:              1,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// CoreUpdate es un PATCH: nil = no tocar.
type CoreUpdate struct {
	Name                 *string
	Birthday             *time.Time
	Gender               *Gender
	Description          *string
	Status               *Status
	AdoptionRequirements *string
	MicrochipID          *string
	Weight               *float64
	Height               *float64
	Color                *string
	IsSterilized         *bool
	IsUnderCare          *bool
	HaveDocuments        *bool
}

// Validate aplica las mismas reglas que NewAnimal a los campos presentes.
func (u CoreUpdate) Validate(now time.Time) error {
	if u.Name != nil {
		if _, err := NormalizeName(*u.Name); err != nil {
			return err
		}
	}
	if u.Birthday != nil {
		if _, err := NormalizeBirthday(*u.Birthday, now); err != nil {
			return err
		}
	}
	if u.Gender != nil && !u.Gender.Valid() {
		return validationErr("gender: unknown value %q", *u.Gender)
	}
	if u.Status != nil && !u.Status.Valid() {
		return validationErr("status: unknown value %q", *u.Status)
	}
	if err := positiveMeasure("weight", u.Weight); err != nil {
		return err
	}
	return positiveMeasure("height", u.Height)
}

// UpdateCore valida todo primero y recién después aplica: o cambian todos los
// campos pedidos o ninguno.
func (a *Animal) UpdateCore(u CoreUpdate, now time.Time) error {
	if err := u.Validate(now); err != nil {
		return err
	}

	if u.Name != nil {
		name, _ := NormalizeName(*u.Name)
		if name != a.Name {
			a.Name = name
			a.Slug = NewSlug(name, a.ID)
		}
	}
	if u.Birthday != nil {
		bd, _ := NormalizeBirthday(*u.Birthday, now)
		a.Birthday = &bd
	}
	if u.Gender != nil {
		a.Gender = *u.Gender
	}
	if u.Description != nil {
		a.Description = strings.TrimSpace(*u.Description)
	}
	if u.Status != nil {
		a.Status = *u.Status
	}
	if u.AdoptionRequirements != nil {
		a.AdoptionRequirements = strings.TrimSpace(*u.AdoptionRequirements)
	}
	if u.MicrochipID != nil {
		a.MicrochipID = strings.TrimSpace(*u.MicrochipID)
	}
	if u.Weight != nil {
		a.Weight = cloneFloat(u.Weight)
	}
	if u.Height != nil {
		a.Height = cloneFloat(u.Height)
	}
	if u.Color != nil {
		a.Color = strings.TrimSpace(*u.Color)
	}
	if u.IsSterilized != nil {
		a.IsSterilized = *u.IsSterilized
	}
	if u.IsUnderCare != nil {
		a.IsUnderCare = *u.IsUnderCare
	}
	if u.HaveDocuments != nil {
		a.HaveDocuments = *u.HaveDocuments
	}

	a.touch(now)
	return nil
}

func (a *Animal) ReplaceHealthConditions(tags []string, now time.Time) {
	a.HealthConditions = dedupeTags(tags)
	a.touch(now)
}

func (a *Animal) ReplaceSpecialNeeds(tags []string, now time.Time) {
	a.SpecialNeeds = dedupeTags(tags)
	a.touch(now)
}

func (a *Animal) ReplaceTemperaments(tags []string, now time.Time) {
	a.Temperaments = dedupeTags(tags)
	a.touch(now)
}

func (a *Animal) UpdateSize(size Size, now time.Time) error {
	if !size.Valid() {
		return validationErr("size: unknown value %q", size)
	}
	a.Size = size
	a.touch(now)
	return nil
}

func (a *Animal) UpdateCareCost(cost CareCost, now time.Time) error {
	if !cost.Valid() {
		return validationErr("care_cost: unknown value %q", cost)
	}
	a.CareCost = cost
	a.touch(now)
	return nil
}

// UpdateBreed cambia la raza. Que la raza exista lo verifica el service.
func (a *Animal) UpdateBreed(breedID string, now time.Time) error {
	breedID = strings.TrimSpace(breedID)
	if breedID == "" {
		return validationErr("breed_id is required")
	}
	a.BreedID = breedID
	a.touch(now)
	return nil
}

// AddPhoto es idempotente: si la URL ya está, no cambia nada.
func (a *Animal) AddPhoto(url string, now time.Time) error {
	return a.addMedia(&a.Photos, "photo", url, now)
}

func (a *Animal) AddVideo(url string, now time.Time) error {
	return a.addMedia(&a.Videos, "video", url, now)
}

// RemovePhoto devuelve true solo si la URL estaba y se quitó.
func (a *Animal) RemovePhoto(url string, now time.Time) bool {
	return a.removeMedia(&a.Photos, url, now)
}

func (a *Animal) RemoveVideo(url string, now time.Time) bool {
	return a.removeMedia(&a.Videos, url, now)
}

func (a *Animal) HasPhoto(url string) bool { return indexOf(a.Photos, strings.TrimSpace(url)) >= 0 }
func (a *Animal) HasVideo(url string) bool { return indexOf(a.Videos, strings.TrimSpace(url)) >= 0 }

func (a *Animal) addMedia(list *[]string, kind, url string, now time.Time) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return validationErr("%s url is required", kind)
	}
	if indexOf(*list, url) >= 0 {
		return nil
	}
	*list = append(*list, url)
	a.touch(now)
	return nil
}

func (a *Animal) removeMedia(list *[]string, url string, now time.Time) bool {
	i := indexOf(*list, strings.TrimSpace(url))
	if i < 0 {
		return false
	}
	next := make([]string, 0, len(*list)-1)
	next = append(next, (*list)[:i]...)
	next = append(next, (*list)[i+1:]...)
	*list = next
	a.touch(now)
	return true
}

// Subscribe falla con ErrConflict si el usuario ya sigue al animal.
func (a *Animal) Subscribe(userID string, now time.Time) (Subscription, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Subscription{}, validationErr("user_id is required")
	}
	if a.IsSubscribed(userID) {
		return Subscription{}, conflictErr("user %s is already subscribed to animal %s", userID, a.ID)
	}
	s := Subscription{
		ID:        uuid.NewString(),
		AnimalID:  a.ID,
		UserID:    userID,
		CreatedAt: now,
	}
	a.Subscribers = append(a.Subscribers, s)
	return s, nil
}

// Unsubscribe devuelve la suscripción quitada o nil si no existía (no es error).
func (a *Animal) Unsubscribe(userID string) *Subscription {
	userID = strings.TrimSpace(userID)
	for i, s := range a.Subscribers {
		if s.UserID != userID {
			continue
		}
		removed := s
		next := make([]Subscription, 0, len(a.Subscribers)-1)
		next = append(next, a.Subscribers[:i]...)
		next = append(next, a.Subscribers[i+1:]...)
		a.Subscribers = next
		return &removed
	}
	return nil
}

func (a *Animal) IsSubscribed(userID string) bool {
	for _, s := range a.Subscribers {
		if s.UserID == userID {
			return true
		}
	}
	return false
}

// IsDead ordena al final en los listados.
func (a *Animal) IsDead() bool { return a.Status == StatusDead }

func (a *Animal) touch(now time.Time) {
	a.UpdatedAt = now
}

func indexOf(list []string, v string) int {
	for i, x := range list {
		if x == v {
			return i
		}
	}
	return -1
}
