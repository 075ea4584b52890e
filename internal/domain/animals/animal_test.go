package animals

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var t0 = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func validInput() CreateInput {
	return CreateInput{
		Name:      "  Rex ",
		BreedID:   "breed-1",
		ShelterID: "shelter-1",
		Gender:    GenderMale,
		Size:      SizeMedium,
		Status:    StatusAvailable,
		CareCost:  CareCostUpTo600,
	}
}

func ptr[T any](v T) *T { return &v }

func TestNewAnimal_Valid(t *testing.T) {
	in := validInput()
	in.Birthday = ptr(time.Date(2020, 3, 1, 18, 30, 0, 0, time.UTC))
	in.Weight = ptr(12.5)
	in.Temperaments = []string{"calm", " calm ", "", "playful"}

	a, err := NewAnimal(in, t0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID == "" {
		t.Fatalf("expected id")
	}
	if a.Name != "Rex" {
		t.Fatalf("expected trimmed name, got %q", a.Name)
	}
	if !strings.HasPrefix(a.Slug, "rex-") {
		t.Fatalf("unexpected slug %q", a.Slug)
	}
	if a.Version != 1 {
		t.Fatalf("expected version 1, got %d", a.Version)
	}
	if !a.CreatedAt.Equal(t0) || !a.UpdatedAt.Equal(t0) {
		t.Fatalf("timestamps not set from clock")
	}
	if got := a.Birthday.Format("2006-01-02 15:04"); got != "2020-03-01 00:00" {
		t.Fatalf("birthday should be truncated to date, got %s", got)
	}
	if len(a.Temperaments) != 2 || a.Temperaments[0] != "calm" || a.Temperaments[1] != "playful" {
		t.Fatalf("tags not deduped: %v", a.Temperaments)
	}
	if a.Subscribers == nil || len(a.Subscribers) != 0 {
		t.Fatalf("expected empty subscriber set")
	}
}

func TestNewAnimal_Validation(t *testing.T) {
	cases := map[string]func(in *CreateInput){
		"empty name":      func(in *CreateInput) { in.Name = "   " },
		"long name":       func(in *CreateInput) { in.Name = strings.Repeat("a", 101) },
		"no breed":        func(in *CreateInput) { in.BreedID = "" },
		"no shelter":      func(in *CreateInput) { in.ShelterID = " " },
		"zero weight":     func(in *CreateInput) { in.Weight = ptr(0.0) },
		"negative height": func(in *CreateInput) { in.Height = ptr(-3.0) },
		"future birthday": func(in *CreateInput) { in.Birthday = ptr(t0.AddDate(0, 0, 1)) },
		"bad gender":      func(in *CreateInput) { in.Gender = "x" },
		"bad size":        func(in *CreateInput) { in.Size = "huge" },
		"bad status":      func(in *CreateInput) { in.Status = "lost" },
		"bad care cost":   func(in *CreateInput) { in.CareCost = "free" },
		"zero time bday":  func(in *CreateInput) { in.Birthday = &time.Time{} },
	}
	for name, mutate := range cases {
		in := validInput()
		mutate(&in)
		if _, err := NewAnimal(in, t0); !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected ErrValidation, got %v", name, err)
		}
	}
}

func TestNewAnimal_BirthdayTodayIsValid(t *testing.T) {
	in := validInput()
	in.Birthday = ptr(t0)
	if _, err := NewAnimal(in, t0); err != nil {
		t.Fatalf("birthday today should be valid: %v", err)
	}
}

func TestUpdateCore_AllOrNothing(t *testing.T) {
	a, _ := NewAnimal(validInput(), t0)
	before := a.Clone()

	err := a.UpdateCore(CoreUpdate{
		Name:   ptr("Max"),
		Weight: ptr(-1.0),
	}, t0.Add(time.Hour))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if a.Name != before.Name || a.Slug != before.Slug || !a.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("aggregate changed after failed update")
	}
}

func TestUpdateCore_AppliesFieldsAndSlug(t *testing.T) {
	a, _ := NewAnimal(validInput(), t0)
	later := t0.Add(time.Hour)

	err := a.UpdateCore(CoreUpdate{
		Name:         ptr("Max Power"),
		Status:       ptr(StatusReserved),
		IsSterilized: ptr(true),
		Description:  ptr("  friendly  "),
	}, later)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Name != "Max Power" || a.Status != StatusReserved || !a.IsSterilized {
		t.Fatalf("fields not applied: %+v", a)
	}
	if a.Description != "friendly" {
		t.Fatalf("description not trimmed: %q", a.Description)
	}
	if !strings.HasPrefix(a.Slug, "max-power-") {
		t.Fatalf("slug not recomputed: %q", a.Slug)
	}
	if !a.UpdatedAt.Equal(later) {
		t.Fatalf("updated_at not bumped")
	}
}

func TestAddPhoto_Idempotent(t *testing.T) {
	a, _ := NewAnimal(validInput(), t0)

	if err := a.AddPhoto("https://cdn/x.jpg", t0); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := a.AddPhoto(" https://cdn/x.jpg ", t0); err != nil {
		t.Fatalf("add again: %v", err)
	}
	if len(a.Photos) != 1 {
		t.Fatalf("expected 1 photo, got %v", a.Photos)
	}
	if err := a.AddPhoto("  ", t0); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for empty url, got %v", err)
	}
}

func TestRemovePhoto_ReportsRemoval(t *testing.T) {
	a, _ := NewAnimal(validInput(), t0)
	_ = a.AddPhoto("a.jpg", t0)
	_ = a.AddPhoto("b.jpg", t0)

	if a.RemovePhoto("missing.jpg", t0) {
		t.Fatalf("removing absent url should report false")
	}
	if !a.RemovePhoto("a.jpg", t0) {
		t.Fatalf("removing present url should report true")
	}
	if len(a.Photos) != 1 || a.Photos[0] != "b.jpg" {
		t.Fatalf("unexpected photos %v", a.Photos)
	}

	_ = a.AddVideo("v.mp4", t0)
	if !a.RemoveVideo("v.mp4", t0) || len(a.Videos) != 0 {
		t.Fatalf("video not removed")
	}
}

func TestSubscribe_ConflictAndUnsubscribe(t *testing.T) {
	a, _ := NewAnimal(validInput(), t0)

	s, err := a.Subscribe("user-1", t0)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if s.AnimalID != a.ID || s.UserID != "user-1" || s.ID == "" {
		t.Fatalf("bad subscription %+v", s)
	}
	if _, err := a.Subscribe("user-1", t0); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := a.Subscribe("", t0); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	if got := a.Unsubscribe("user-2"); got != nil {
		t.Fatalf("expected nil for absent subscription")
	}
	got := a.Unsubscribe("user-1")
	if got == nil || got.ID != s.ID {
		t.Fatalf("expected removed subscription, got %+v", got)
	}
	if a.IsSubscribed("user-1") {
		t.Fatalf("still subscribed")
	}
}

func TestUpdateSizeAndCareCost(t *testing.T) {
	a, _ := NewAnimal(validInput(), t0)

	if err := a.UpdateSize("giant", t0); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if err := a.UpdateCareCost(CareCostOver2000, t0); err != nil || a.CareCost != CareCostOver2000 {
		t.Fatalf("care cost not updated: %v", err)
	}
	a.ReplaceHealthConditions([]string{"diabetes", "diabetes"}, t0)
	if len(a.HealthConditions) != 1 {
		t.Fatalf("health conditions not deduped: %v", a.HealthConditions)
	}
}

func TestNewSlug(t *testing.T) {
	id := "1234abcd-0000-0000-0000-000000000000"
	cases := map[string]string{
		"Café Olé":     "cafe-ole-1234abcd",
		"  Rex!!  ":    "rex-1234abcd",
		"Барсик":       "animal-1234abcd",
		"Mr. Whiskers": "mr-whiskers-1234abcd",
	}
	for in, want := range cases {
		if got := NewSlug(in, id); got != want {
			t.Fatalf("NewSlug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseEnums(t *testing.T) {
	if g, err := ParseGender(" Female "); err != nil || g != GenderFemale {
		t.Fatalf("ParseGender: %v %v", g, err)
	}
	if _, err := ParseStatus("gone"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
