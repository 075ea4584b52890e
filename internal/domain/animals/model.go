package animals

import (
	"strings"
	"time"
)

// Gender
// @Enum male, female, unknown
type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderUnknown Gender = "unknown"
)

// Size
// @Enum small, medium, medium_plus, large
type Size string

const (
	SizeSmall      Size = "small"
	SizeMedium     Size = "medium"
	SizeMediumPlus Size = "medium_plus"
	SizeLarge      Size = "large"
)

// Status es el estado de adopción. "dead" siempre va al final de los listados.
// @Enum available, adopted, reserved, in_treatment, dead, euthanized
type Status string

const (
	StatusAvailable   Status = "available"
	StatusAdopted     Status = "adopted"
	StatusReserved    Status = "reserved"
	StatusInTreatment Status = "in_treatment"
	StatusDead        Status = "dead"
	StatusEuthanized  Status = "euthanized"
)

// CareCost es la franja de costo mensual de cuidado (UAH).
// @Enum up_to_300, up_to_600, up_to_1000, up_to_2000, over_2000
type CareCost string

const (
	CareCostUpTo300  CareCost = "up_to_300"
	CareCostUpTo600  CareCost = "up_to_600"
	CareCostUpTo1000 CareCost = "up_to_1000"
	CareCostUpTo2000 CareCost = "up_to_2000"
	CareCostOver2000 CareCost = "over_2000"
)

var (
	allGenders   = []Gender{GenderMale, GenderFemale, GenderUnknown}
	allSizes     = []Size{SizeSmall, SizeMedium, SizeMediumPlus, SizeLarge}
	allStatuses  = []Status{StatusAvailable, StatusAdopted, StatusReserved, StatusInTreatment, StatusDead, StatusEuthanized}
	allCareCosts = []CareCost{CareCostUpTo300, CareCostUpTo600, CareCostUpTo1000, CareCostUpTo2000, CareCostOver2000}
)

func (g Gender) Valid() bool   { return oneOf(g, allGenders) }
func (s Size) Valid() bool     { return oneOf(s, allSizes) }
func (s Status) Valid() bool   { return oneOf(s, allStatuses) }
func (c CareCost) Valid() bool { return oneOf(c, allCareCosts) }

func ParseGender(s string) (Gender, error)     { return parseEnum[Gender]("gender", s, allGenders) }
func ParseSize(s string) (Size, error)         { return parseEnum[Size]("size", s, allSizes) }
func ParseStatus(s string) (Status, error)     { return parseEnum[Status]("status", s, allStatuses) }
func ParseCareCost(s string) (CareCost, error) { return parseEnum[CareCost]("care_cost", s, allCareCosts) }

func oneOf[T ~string](v T, all []T) bool {
	for _, x := range all {
		if x == v {
			return true
		}
	}
	return false
}

func parseEnum[T ~string](field, raw string, all []T) (T, error) {
	v := T(strings.ToLower(strings.TrimSpace(raw)))
	if !oneOf(v, all) {
		var zero T
		return zero, validationErr("%s: unknown value %q", field, raw)
	}
	return v, nil
}

// Animal es la raíz del agregado. Los campos se leen directo; las mutaciones
// pasan por los métodos de animal.go, que validan antes de tocar nada.
type Animal struct {
	ID   string
	Slug string

	Name     string
	BreedID  string
	Birthday *time.Time // solo fecha (UTC 00:00)

	// SpeciesID viene del join con breeds; no se persiste en animals.
	SpeciesID string

	Gender   Gender
	Size     Size
	Status   Status
	CareCost CareCost

	IsSterilized  bool
	IsUnderCare   bool
	HaveDocuments bool

	Weight *float64 // kg
	Height *float64 // cm

	Color                string
	Description          string
	MicrochipID          string
	AdoptionRequirements string

	Photos []string
	Videos []string

	HealthConditions []string
	SpecialNeeds     []string
	Temperaments     []string

	ShelterID       string
	CreatedByUserID string

	Subscribers []Subscription

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Subscription es el "seguir" de un usuario sobre un animal.
// Solo nace desde Animal.Subscribe.
type Subscription struct {
	ID        string
	AnimalID  string
	UserID    string
	CreatedAt time.Time
}

// Clone devuelve una copia profunda (slices y punteros propios).
func (a Animal) Clone() Animal {
	out := a
	out.Birthday = cloneTime(a.Birthday)
	out.Weight = cloneFloat(a.Weight)
	out.Height = cloneFloat(a.Height)
	out.Photos = cloneStrings(a.Photos)
	out.Videos = cloneStrings(a.Videos)
	out.HealthConditions = cloneStrings(a.HealthConditions)
	out.SpecialNeeds = cloneStrings(a.SpecialNeeds)
	out.Temperaments = cloneStrings(a.Temperaments)
	if a.Subscribers != nil {
		out.Subscribers = append([]Subscription(nil), a.Subscribers...)
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
