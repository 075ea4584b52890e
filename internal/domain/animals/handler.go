package animals

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/arakviel/petcare/internal/middleware"
	"github.com/arakviel/petcare/internal/ports/storage"

	"github.com/go-chi/chi/v5"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	maxUploadBytes  = 50 << 20
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/animals", func(ar chi.Router) {
		// Catálogo público
		ar.Get("/", listAnimalsHandler(svc))
		ar.Get("/slug/{slug}", getAnimalBySlugHandler(svc))
		ar.Get("/{animalID}", getAnimalHandler(svc))
		ar.Get("/{animalID}/media-url", mediaURLHandler(svc))

		// Escritura (requiere usuario)
		ar.Post("/", createAnimalHandler(svc))
		ar.Patch("/{animalID}", updateAnimalHandler(svc))
		ar.Delete("/{animalID}", deleteAnimalHandler(svc))

		ar.Post("/{animalID}/photos", addMediaHandler(svc, false))
		ar.Delete("/{animalID}/photos", removeMediaHandler(svc, false))
		ar.Post("/{animalID}/videos", addMediaHandler(svc, true))
		ar.Delete("/{animalID}/videos", removeMediaHandler(svc, true))
		ar.Post("/{animalID}/media", uploadMediaHandler(svc))

		ar.Post("/{animalID}/subscription", subscribeHandler(svc))
		ar.Delete("/{animalID}/subscription", unsubscribeHandler(svc))
	})

	// Animales que sigo
	r.Get("/me/subscriptions", listMySubscriptionsHandler(svc))
}

type createAnimalRequest struct {
	Name     string `json:"name"`
	BreedID  string `json:"breed_id"`
	Birthday string `json:"birthday"` // YYYY-MM-DD opcional

	Gender   string `json:"gender"`
	Size     string `json:"size"`
	Status   string `json:"status"`
	CareCost string `json:"care_cost"`

	IsSterilized  bool `json:"is_sterilized"`
	IsUnderCare   bool `json:"is_under_care"`
	HaveDocuments bool `json:"have_documents"`

	Weight *float64 `json:"weight"`
	Height *float64 `json:"height"`

	Color                string `json:"color"`
	Description          string `json:"description"`
	MicrochipID          string `json:"microchip_id"`
	AdoptionRequirements string `json:"adoption_requirements"`

	Photos           []string `json:"photos"`
	Videos           []string `json:"videos"`
	HealthConditions []string `json:"health_conditions"`
	SpecialNeeds     []string `json:"special_needs"`
	Temperaments     []string `json:"temperaments"`

	ShelterID string `json:"shelter_id"`
}

// updateAnimalRequest: punteros para PATCH real, nil = no tocar.
type updateAnimalRequest struct {
	Name                 *string  `json:"name"`
	Birthday             *string  `json:"birthday"`
	Gender               *string  `json:"gender"`
	Description          *string  `json:"description"`
	Status               *string  `json:"status"`
	AdoptionRequirements *string  `json:"adoption_requirements"`
	MicrochipID          *string  `json:"microchip_id"`
	Weight               *float64 `json:"weight"`
	Height               *float64 `json:"height"`
	Color                *string  `json:"color"`
	IsSterilized         *bool    `json:"is_sterilized"`
	IsUnderCare          *bool    `json:"is_under_care"`
	HaveDocuments        *bool    `json:"have_documents"`

	BreedID  *string `json:"breed_id"`
	Size     *string `json:"size"`
	CareCost *string `json:"care_cost"`

	HealthConditions *[]string `json:"health_conditions"`
	SpecialNeeds     *[]string `json:"special_needs"`
	Temperaments     *[]string `json:"temperaments"`
}

type mediaRequest struct {
	URL string `json:"url"`
}

type animalResponse struct {
	ID        string     `json:"id"`
	Slug      string     `json:"slug"`
	Name      string     `json:"name"`
	BreedID   string     `json:"breed_id"`
	SpeciesID string     `json:"species_id,omitempty"`
	Birthday  *time.Time `json:"birthday,omitempty"`

	Gender   Gender   `json:"gender"`
	Size     Size     `json:"size"`
	Status   Status   `json:"status"`
	CareCost CareCost `json:"care_cost"`

	IsSterilized  bool `json:"is_sterilized"`
	IsUnderCare   bool `json:"is_under_care"`
	HaveDocuments bool `json:"have_documents"`

	Weight *float64 `json:"weight,omitempty"`
	Height *float64 `json:"height,omitempty"`

	Color                string `json:"color"`
	Description          string `json:"description"`
	MicrochipID          string `json:"microchip_id,omitempty"`
	AdoptionRequirements string `json:"adoption_requirements"`

	Photos           []string `json:"photos"`
	Videos           []string `json:"videos"`
	HealthConditions []string `json:"health_conditions"`
	SpecialNeeds     []string `json:"special_needs"`
	Temperaments     []string `json:"temperaments"`

	ShelterID        string `json:"shelter_id"`
	SubscribersCount int    `json:"subscribers_count"`
	IsSubscribed     bool   `json:"is_subscribed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type listResponse struct {
	Items    []animalResponse `json:"items"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

type subscriptionResponse struct {
	ID        string    `json:"id"`
	AnimalID  string    `json:"animal_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func listAnimalsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := parseListQuery(r)
		if err != nil {
			writeError(w, err)
			return
		}

		res, err := svc.List(r.Context(), q)
		if err != nil {
			writeError(w, err)
			return
		}

		viewer := currentUserID(r)
		out := listResponse{
			Items:    make([]animalResponse, 0, len(res.Items)),
			Total:    res.Total,
			Page:     res.Page,
			PageSize: res.PageSize,
		}
		for _, a := range res.Items {
			out.Items = append(out.Items, toAnimalResponse(a, viewer))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getAnimalHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := svc.GetByID(r.Context(), chi.URLParam(r, "animalID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAnimalResponse(a, currentUserID(r)))
	}
}

func getAnimalBySlugHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := svc.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAnimalResponse(a, currentUserID(r)))
	}
}

func createAnimalHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		var req createAnimalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		in := CreateInput{
			Name:                 req.Name,
			BreedID:              req.BreedID,
			IsSterilized:         req.IsSterilized,
			IsUnderCare:          req.IsUnderCare,
			HaveDocuments:        req.HaveDocuments,
			Weight:               req.Weight,
			Height:               req.Height,
			Color:                req.Color,
			Description:          req.Description,
			MicrochipID:          req.MicrochipID,
			AdoptionRequirements: req.AdoptionRequirements,
			Photos:               req.Photos,
			Videos:               req.Videos,
			HealthConditions:     req.HealthConditions,
			SpecialNeeds:         req.SpecialNeeds,
			Temperaments:         req.Temperaments,
			ShelterID:            req.ShelterID,
			CreatedByUserID:      userID,
		}

		// El staff carga animales en su propio refugio si no indica otro.
		if strings.TrimSpace(in.ShelterID) == "" {
			if claims, ok := middleware.GetClaims(r.Context()); ok {
				in.ShelterID = claims.ShelterID
			}
		}

		var err error
		if in.Birthday, err = parseDate("birthday", req.Birthday); err != nil {
			writeError(w, err)
			return
		}
		// Defaults iguales a los de la tabla.
		if in.Gender, err = parseEnumOr(req.Gender, GenderUnknown, ParseGender); err != nil {
			writeError(w, err)
			return
		}
		if in.Size, err = parseEnumOr(req.Size, SizeMedium, ParseSize); err != nil {
			writeError(w, err)
			return
		}
		if in.Status, err = parseEnumOr(req.Status, StatusAvailable, ParseStatus); err != nil {
			writeError(w, err)
			return
		}
		if in.CareCost, err = parseEnumOr(req.CareCost, CareCostUpTo600, ParseCareCost); err != nil {
			writeError(w, err)
			return
		}

		a, err := svc.Create(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAnimalResponse(a, userID))
	}
}

func updateAnimalHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		var req updateAnimalRequest
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		in, err := req.toInput()
		if err != nil {
			writeError(w, err)
			return
		}

		a, err := svc.Update(r.Context(), chi.URLParam(r, "animalID"), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAnimalResponse(a, userID))
	}
}

func (req updateAnimalRequest) toInput() (UpdateInput, error) {
	in := UpdateInput{
		Core: CoreUpdate{
			Name:                 req.Name,
			Description:          req.Description,
			AdoptionRequirements: req.AdoptionRequirements,
			MicrochipID:          req.MicrochipID,
			Weight:               req.Weight,
			Height:               req.Height,
			Color:                req.Color,
			IsSterilized:         req.IsSterilized,
			IsUnderCare:          req.IsUnderCare,
			HaveDocuments:        req.HaveDocuments,
		},
		BreedID:          req.BreedID,
		HealthConditions: req.HealthConditions,
		SpecialNeeds:     req.SpecialNeeds,
		Temperaments:     req.Temperaments,
	}

	if req.Birthday != nil {
		bd, err := parseDate("birthday", *req.Birthday)
		if err != nil {
			return UpdateInput{}, err
		}
		if bd == nil {
			return UpdateInput{}, validationErr("birthday must be YYYY-MM-DD")
		}
		in.Core.Birthday = bd
	}
	if req.Gender != nil {
		g, err := ParseGender(*req.Gender)
		if err != nil {
			return UpdateInput{}, err
		}
		in.Core.Gender = &g
	}
	if req.Status != nil {
		st, err := ParseStatus(*req.Status)
		if err != nil {
			return UpdateInput{}, err
		}
		in.Core.Status = &st
	}
	if req.Size != nil {
		sz, err := ParseSize(*req.Size)
		if err != nil {
			return UpdateInput{}, err
		}
		in.Size = &sz
	}
	if req.CareCost != nil {
		cc, err := ParseCareCost(*req.CareCost)
		if err != nil {
			return UpdateInput{}, err
		}
		in.CareCost = &cc
	}
	return in, nil
}

func deleteAnimalHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireUser(w, r); !ok {
			return
		}
		if err := svc.Delete(r.Context(), chi.URLParam(r, "animalID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addMediaHandler(svc *Service, video bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		var req mediaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		id := chi.URLParam(r, "animalID")
		var (
			a   Animal
			err error
		)
		if video {
			a, err = svc.AddVideo(r.Context(), id, req.URL)
		} else {
			a, err = svc.AddPhoto(r.Context(), id, req.URL)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAnimalResponse(a, userID))
	}
}

func removeMediaHandler(svc *Service, video bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		// La URL viaja como query param: DELETE sin body.
		url := r.URL.Query().Get("url")
		id := chi.URLParam(r, "animalID")

		var (
			a       Animal
			removed bool
			err     error
		)
		if video {
			a, removed, err = svc.RemoveVideo(r.Context(), id, url)
		} else {
			a, removed, err = svc.RemovePhoto(r.Context(), id, url)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"removed": removed,
			"animal":  toAnimalResponse(a, userID),
		})
	}
}

func uploadMediaHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "multipart field \"file\" is required", http.StatusBadRequest)
			return
		}
		defer file.Close()

		contentType := header.Header.Get("Content-Type")
		a, url, err := svc.UploadMedia(r.Context(), chi.URLParam(r, "animalID"), header.Filename, contentType, file)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"url":    url,
			"animal": toAnimalResponse(a, userID),
		})
	}
}

func mediaURLHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ttl time.Duration
		if raw := strings.TrimSpace(r.URL.Query().Get("ttl")); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil {
				http.Error(w, "ttl must be a duration (e.g. 10m)", http.StatusBadRequest)
				return
			}
			ttl = d
		}

		signed, err := svc.MediaURL(r.Context(), chi.URLParam(r, "animalID"), r.URL.Query().Get("url"), ttl)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": signed})
	}
}

func subscribeHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		sub, err := svc.Subscribe(r.Context(), chi.URLParam(r, "animalID"), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toSubscriptionResponse(sub))
	}
}

func unsubscribeHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		removed, err := svc.Unsubscribe(r.Context(), chi.URLParam(r, "animalID"), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"removed": removed != nil})
	}
}

func listMySubscriptionsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		items, err := svc.ListSubscribedAnimals(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]animalResponse, 0, len(items))
		for _, a := range items {
			out = append(out, toAnimalResponse(a, userID))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// parseListQuery acepta listas repetidas (?size=small&size=large) o separadas
// por coma (?size=small,large).
func parseListQuery(r *http.Request) (ListQuery, error) {
	v := r.URL.Query()
	q := ListQuery{Page: 1, PageSize: defaultPageSize}

	var err error
	if q.Page, err = intParam(v.Get("page"), 1); err != nil {
		return ListQuery{}, validationErr("page must be an integer")
	}
	if q.PageSize, err = intParam(v.Get("page_size"), defaultPageSize); err != nil {
		return ListQuery{}, validationErr("page_size must be an integer")
	}
	if q.PageSize > maxPageSize {
		q.PageSize = maxPageSize
	}

	if q.Sizes, err = enumList(v["size"], ParseSize); err != nil {
		return ListQuery{}, err
	}
	if q.Genders, err = enumList(v["gender"], ParseGender); err != nil {
		return ListQuery{}, err
	}
	if q.CareCosts, err = enumList(v["care_cost"], ParseCareCost); err != nil {
		return ListQuery{}, err
	}
	if q.Statuses, err = enumList(v["status"], ParseStatus); err != nil {
		return ListQuery{}, err
	}

	if q.MinAge, err = optInt("min_age", v.Get("min_age")); err != nil {
		return ListQuery{}, err
	}
	if q.MaxAge, err = optInt("max_age", v.Get("max_age")); err != nil {
		return ListQuery{}, err
	}
	if q.IsSterilized, err = optBool("is_sterilized", v.Get("is_sterilized")); err != nil {
		return ListQuery{}, err
	}
	if q.IsUnderCare, err = optBool("is_under_care", v.Get("is_under_care")); err != nil {
		return ListQuery{}, err
	}

	q.ShelterID = v.Get("shelter_id")
	q.SpeciesID = v.Get("species_id")
	q.BreedID = v.Get("breed_id")
	q.Search = v.Get("search")
	return q, nil
}

func intParam(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func optInt(field, raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, validationErr("%s must be an integer", field)
	}
	return &n, nil
}

func optBool(field, raw string) (*bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, validationErr("%s must be true or false", field)
	}
	return &b, nil
}

func enumList[T ~string](raw []string, parse func(string) (T, error)) ([]T, error) {
	var out []T
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			v, err := parse(part)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	}
	return out, nil
}

func parseEnumOr[T ~string](raw string, def T, parse func(string) (T, error)) (T, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	return parse(raw)
}

func parseDate(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, validationErr("%s must be YYYY-MM-DD", field)
	}
	return &t, nil
}

func currentUserID(r *http.Request) string {
	return middleware.UserID(r.Context())
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid := currentUserID(r)
	if uid == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", false
	}
	return uid, true
}

func toAnimalResponse(a Animal, viewerID string) animalResponse {
	return animalResponse{
		ID:                   a.ID,
		Slug:                 a.Slug,
		Name:                 a.Name,
		BreedID:              a.BreedID,
		SpeciesID:            a.SpeciesID,
		Birthday:             a.Birthday,
		Gender:               a.Gender,
		Size:                 a.Size,
		Status:               a.Status,
		CareCost:             a.CareCost,
		IsSterilized:         a.IsSterilized,
		IsUnderCare:          a.IsUnderCare,
		HaveDocuments:        a.HaveDocuments,
		Weight:               a.Weight,
		Height:               a.Height,
		Color:                a.Color,
		Description:          a.Description,
		MicrochipID:          a.MicrochipID,
		AdoptionRequirements: a.AdoptionRequirements,
		Photos:               nonNil(a.Photos),
		Videos:               nonNil(a.Videos),
		HealthConditions:     nonNil(a.HealthConditions),
		SpecialNeeds:         nonNil(a.SpecialNeeds),
		Temperaments:         nonNil(a.Temperaments),
		ShelterID:            a.ShelterID,
		SubscribersCount:     len(a.Subscribers),
		IsSubscribed:         viewerID != "" && a.IsSubscribed(viewerID),
		CreatedAt:            a.CreatedAt,
		UpdatedAt:            a.UpdatedAt,
	}
}

func toSubscriptionResponse(s Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:        s.ID,
		AnimalID:  s.AnimalID,
		UserID:    s.UserID,
		CreatedAt: s.CreatedAt,
	}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

// writeError traduce la taxonomía de errores a status HTTP.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, storage.ErrNotConfigured):
		http.Error(w, "media storage not configured", http.StatusServiceUnavailable)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
