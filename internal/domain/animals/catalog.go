package animals

import (
	"sort"
	"strings"
	"time"
)

// ListQuery es el pedido completo del catálogo. Todo campo vacío/nil = sin restricción.
type ListQuery struct {
	Page     int // 1-based
	PageSize int

	Sizes        []Size
	Genders      []Gender
	MinAge       *int // años cumplidos
	MaxAge       *int
	CareCosts    []CareCost
	IsSterilized *bool
	IsUnderCare  *bool
	ShelterID    string
	Statuses     []Status
	SpeciesID    string
	BreedID      string
	Search       string
}

// StoreFilter es la parte del pedido que el store evalúa nativamente
// (igualdad / pertenencia sobre columnas de animals o del join con breeds).
type StoreFilter struct {
	Sizes        []Size
	Genders      []Gender
	CareCosts    []CareCost
	IsSterilized *bool
	IsUnderCare  *bool
	ShelterID    string
	Statuses     []Status
	SpeciesID    string
	BreedID      string
}

// ListResult.Total cuenta los animales que pasan todos los filtros, antes de paginar.
type ListResult struct {
	Items    []Animal
	Total    int
	Page     int
	PageSize int
}

// Validate corre antes de tocar el store.
func (q ListQuery) Validate() error {
	if q.Page < 1 {
		return validationErr("page must be >= 1")
	}
	if q.PageSize < 1 {
		return validationErr("page_size must be >= 1")
	}
	if q.MinAge != nil && *q.MinAge < 0 {
		return validationErr("min_age must be >= 0")
	}
	if q.MaxAge != nil && *q.MaxAge < 0 {
		return validationErr("max_age must be >= 0")
	}
	if q.MinAge != nil && q.MaxAge != nil && *q.MinAge > *q.MaxAge {
		return validationErr("min_age cannot be greater than max_age")
	}
	for _, s := range q.Sizes {
		if !s.Valid() {
			return validationErr("size: unknown value %q", s)
		}
	}
	for _, g := range q.Genders {
		if !g.Valid() {
			return validationErr("gender: unknown value %q", g)
		}
	}
	for _, c := range q.CareCosts {
		if !c.Valid() {
			return validationErr("care_cost: unknown value %q", c)
		}
	}
	for _, s := range q.Statuses {
		if !s.Valid() {
			return validationErr("status: unknown value %q", s)
		}
	}
	return nil
}

// StoreFilter extrae la fase 1 (push-down).
func (q ListQuery) StoreFilter() StoreFilter {
	return StoreFilter{
		Sizes:        q.Sizes,
		Genders:      q.Genders,
		CareCosts:    q.CareCosts,
		IsSterilized: q.IsSterilized,
		IsUnderCare:  q.IsUnderCare,
		ShelterID:    strings.TrimSpace(q.ShelterID),
		Statuses:     q.Statuses,
		SpeciesID:    strings.TrimSpace(q.SpeciesID),
		BreedID:      strings.TrimSpace(q.BreedID),
	}
}

// Matches evalúa el StoreFilter en memoria. Lo usa el repo in-memory y sirve
// como referencia de la semántica que tiene que reproducir el SQL.
func (f StoreFilter) Matches(a Animal) bool {
	if len(f.Sizes) > 0 && !oneOf(a.Size, f.Sizes) {
		return false
	}
	if len(f.Genders) > 0 && !oneOf(a.Gender, f.Genders) {
		return false
	}
	if len(f.CareCosts) > 0 && !oneOf(a.CareCost, f.CareCosts) {
		return false
	}
	if f.IsSterilized != nil && a.IsSterilized != *f.IsSterilized {
		return false
	}
	if f.IsUnderCare != nil && a.IsUnderCare != *f.IsUnderCare {
		return false
	}
	if f.ShelterID != "" && a.ShelterID != f.ShelterID {
		return false
	}
	if len(f.Statuses) > 0 && !oneOf(a.Status, f.Statuses) {
		return false
	}
	if f.SpeciesID != "" && a.SpeciesID != f.SpeciesID {
		return false
	}
	if f.BreedID != "" && a.BreedID != f.BreedID {
		return false
	}
	return true
}

type residual func(a *Animal) bool

// residuals arma la fase 2: edad (derivada del birthday) y búsqueda de texto.
// Un animal sin birthday nunca pasa un filtro de edad.
func (q ListQuery) residuals(now time.Time) []residual {
	out := make([]residual, 0, 3)
	today := dateOf(now)

	if q.MinAge != nil {
		limit := today.AddDate(-*q.MinAge, 0, 0)
		out = append(out, func(a *Animal) bool {
			return a.Birthday != nil && !a.Birthday.After(limit)
		})
	}
	if q.MaxAge != nil {
		limit := today.AddDate(-*q.MaxAge, 0, 0)
		out = append(out, func(a *Animal) bool {
			return a.Birthday != nil && !a.Birthday.Before(limit)
		})
	}
	if term := strings.ToLower(strings.TrimSpace(q.Search)); term != "" {
		out = append(out, func(a *Animal) bool {
			return strings.Contains(strings.ToLower(a.Name), term) ||
				strings.Contains(strings.ToLower(a.Description), term)
		})
	}

	return out
}

// applyResiduals filtra in place sobre una copia del slice.
func applyResiduals(items []Animal, preds []residual) []Animal {
	if len(preds) == 0 {
		return items
	}
	out := make([]Animal, 0, len(items))
next:
	for i := range items {
		for _, p := range preds {
			if !p(&items[i]) {
				continue next
			}
		}
		out = append(out, items[i])
	}
	return out
}

// sortCatalog: no-muertos primero, después created_at desc. El id desempata
// para que la paginación sea estable entre requests.
func sortCatalog(items []Animal) {
	sort.SliceStable(items, func(i, j int) bool {
		di, dj := items[i].IsDead(), items[j].IsDead()
		if di != dj {
			return !di
		}
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
}

func paginate(items []Animal, page, pageSize int) []Animal {
	if page-1 > len(items)/pageSize {
		return []Animal{}
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []Animal{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
