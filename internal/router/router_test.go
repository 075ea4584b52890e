package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	memstore "github.com/arakviel/petcare/internal/adapters/objectstore/memory"
	"github.com/arakviel/petcare/internal/router"
)

func TestHTTP_EndToEnd_AnimalCatalog(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{Storage: memstore.New()}))
	defer ts.Close()

	staffID := "staff-1"
	fanID := "fan-1"

	// 1) Alta de especie y raza
	speciesID := createID(t, ts.URL, staffID, "/species", map[string]any{"name": "Dog"})
	breedID := createID(t, ts.URL, staffID, "/species/"+speciesID+"/breeds", map[string]any{"name": "Labrador"})

	// 2) Sin usuario no se puede crear
	{
		st, _ := doReq(t, ts.URL, "POST", "/animals", "", map[string]any{"name": "Rex"})
		if st != http.StatusUnauthorized {
			t.Fatalf("expected 401 without user, got %d", st)
		}
	}

	// 3) Alta de animales
	rexID := createID(t, ts.URL, staffID, "/animals", map[string]any{
		"name":       "Rex",
		"breed_id":   breedID,
		"shelter_id": "shelter-1",
		"birthday":   "2018-04-01",
		"size":       "large",
	})
	lunaID := createID(t, ts.URL, staffID, "/animals", map[string]any{
		"name":        "Luna",
		"breed_id":    breedID,
		"shelter_id":  "shelter-1",
		"description": "Very calm",
	})

	// 4) Raza inexistente => 404
	{
		st, body := doReq(t, ts.URL, "POST", "/animals", staffID, map[string]any{
			"name":       "Ghost",
			"breed_id":   "missing",
			"shelter_id": "shelter-1",
		})
		if st != http.StatusNotFound {
			t.Fatalf("expected 404 for unknown breed, got %d body=%s", st, string(body))
		}
	}

	// 5) Catálogo filtrado por especie y tamaño (público)
	{
		st, body := doReq(t, ts.URL, "GET", "/animals?species_id="+speciesID+"&size=small,large", "", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 list, got %d body=%s", st, string(body))
		}
		list := decodeList(t, body)
		if list.Total != 1 || len(list.Items) != 1 || list.Items[0].ID != rexID {
			t.Fatalf("unexpected list %+v", list)
		}
		if list.Page != 1 || list.PageSize != 10 {
			t.Fatalf("unexpected paging defaults %d/%d", list.Page, list.PageSize)
		}
	}

	// 6) Filtro por edad y búsqueda de texto
	{
		_, body := doReq(t, ts.URL, "GET", "/animals?min_age=3", "", nil)
		if list := decodeList(t, body); list.Total != 1 || list.Items[0].ID != rexID {
			t.Fatalf("min_age filter: %+v", list)
		}
		_, body = doReq(t, ts.URL, "GET", "/animals?search=CALM", "", nil)
		if list := decodeList(t, body); list.Total != 1 || list.Items[0].ID != lunaID {
			t.Fatalf("search filter: %+v", list)
		}
	}

	// 7) Query inválida => 400
	{
		st, _ := doReq(t, ts.URL, "GET", "/animals?min_age=5&max_age=2", "", nil)
		if st != http.StatusBadRequest {
			t.Fatalf("expected 400 for min_age > max_age, got %d", st)
		}
		st, _ = doReq(t, ts.URL, "GET", "/animals?status=lost", "", nil)
		if st != http.StatusBadRequest {
			t.Fatalf("expected 400 for unknown status, got %d", st)
		}
	}

	// 8) PATCH: marcar muerto mueve al final
	{
		st, body := doReq(t, ts.URL, "PATCH", "/animals/"+lunaID, staffID, map[string]any{"status": "dead"})
		if st != http.StatusOK {
			t.Fatalf("expected 200 patch, got %d body=%s", st, string(body))
		}
		_, body = doReq(t, ts.URL, "GET", "/animals", "", nil)
		list := decodeList(t, body)
		if len(list.Items) != 2 || list.Items[1].ID != lunaID {
			t.Fatalf("dead animal should be last: %+v", list.Items)
		}
	}

	// 9) PATCH con campo desconocido => 400
	{
		st, _ := doReq(t, ts.URL, "PATCH", "/animals/"+rexID, staffID, map[string]any{"owner": "x"})
		if st != http.StatusBadRequest {
			t.Fatalf("expected 400 for unknown field, got %d", st)
		}
	}

	// 10) Suscripción
	{
		st, body := doReq(t, ts.URL, "POST", "/animals/"+rexID+"/subscription", fanID, nil)
		if st != http.StatusCreated {
			t.Fatalf("expected 201 subscribe, got %d body=%s", st, string(body))
		}
		st, _ = doReq(t, ts.URL, "POST", "/animals/"+rexID+"/subscription", fanID, nil)
		if st != http.StatusConflict {
			t.Fatalf("expected 409 on second subscribe, got %d", st)
		}

		st, body = doReq(t, ts.URL, "GET", "/animals/"+rexID, fanID, nil)
		var a animalJSON
		_ = json.Unmarshal(body, &a)
		if st != http.StatusOK || a.SubscribersCount != 1 || !a.IsSubscribed {
			t.Fatalf("subscription not reflected: %d %+v", st, a)
		}

		st, body = doReq(t, ts.URL, "GET", "/me/subscriptions", fanID, nil)
		if st != http.StatusOK || !strings.Contains(string(body), rexID) {
			t.Fatalf("expected rex in my subscriptions, got %d body=%s", st, string(body))
		}

		st, body = doReq(t, ts.URL, "DELETE", "/animals/"+rexID+"/subscription", fanID, nil)
		if st != http.StatusOK || !strings.Contains(string(body), `"removed":true`) {
			t.Fatalf("unsubscribe: %d body=%s", st, string(body))
		}
		st, body = doReq(t, ts.URL, "DELETE", "/animals/"+rexID+"/subscription", fanID, nil)
		if st != http.StatusOK || !strings.Contains(string(body), `"removed":false`) {
			t.Fatalf("second unsubscribe should not fail: %d body=%s", st, string(body))
		}
	}

	// 11) Upload de foto, URL firmada y borrado
	{
		st, body := upload(t, ts.URL, "/animals/"+rexID+"/media", staffID, "rex.png", "image/png", []byte("png"))
		if st != http.StatusCreated {
			t.Fatalf("expected 201 upload, got %d body=%s", st, string(body))
		}
		var resp struct {
			URL string `json:"url"`
		}
		_ = json.Unmarshal(body, &resp)
		if resp.URL == "" {
			t.Fatalf("upload: missing url body=%s", string(body))
		}

		q := "?url=" + url.QueryEscape(resp.URL)
		st, body = doReq(t, ts.URL, "GET", "/animals/"+rexID+"/media-url"+q, "", nil)
		if st != http.StatusOK || !strings.Contains(string(body), "expires=") {
			t.Fatalf("media url: %d body=%s", st, string(body))
		}

		st, body = doReq(t, ts.URL, "DELETE", "/animals/"+rexID+"/photos"+q, staffID, nil)
		if st != http.StatusOK || !strings.Contains(string(body), `"removed":true`) {
			t.Fatalf("remove photo: %d body=%s", st, string(body))
		}

		st, _ = upload(t, ts.URL, "/animals/"+rexID+"/media", staffID, "doc.pdf", "application/pdf", []byte("pdf"))
		if st != http.StatusBadRequest {
			t.Fatalf("expected 400 for pdf upload, got %d", st)
		}
	}

	// 12) Borrado
	{
		st, _ := doReq(t, ts.URL, "DELETE", "/animals/"+rexID, staffID, nil)
		if st != http.StatusNoContent {
			t.Fatalf("expected 204 delete, got %d", st)
		}
		st, _ = doReq(t, ts.URL, "GET", "/animals/"+rexID, "", nil)
		if st != http.StatusNotFound {
			t.Fatalf("expected 404 after delete, got %d", st)
		}
	}
}

func TestHTTP_Pagination(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{}))
	defer ts.Close()

	speciesID := createID(t, ts.URL, "u", "/species", map[string]any{"name": "Cat"})
	breedID := createID(t, ts.URL, "u", "/species/"+speciesID+"/breeds", map[string]any{"name": "Siamese"})
	for i := 0; i < 15; i++ {
		createID(t, ts.URL, "u", "/animals", map[string]any{
			"name":       "Cat",
			"breed_id":   breedID,
			"shelter_id": "s",
		})
	}

	st, body := doReq(t, ts.URL, "GET", "/animals?page=2&page_size=10", "", nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", st, string(body))
	}
	list := decodeList(t, body)
	if list.Total != 15 || len(list.Items) != 5 || list.Page != 2 {
		t.Fatalf("unexpected page: total=%d items=%d page=%d", list.Total, len(list.Items), list.Page)
	}

	st, _ = doReq(t, ts.URL, "GET", "/animals?page=0", "", nil)
	if st != http.StatusBadRequest {
		t.Fatalf("expected 400 for page=0, got %d", st)
	}

	// Sin storage configurado el upload no está disponible.
	st, _ = upload(t, ts.URL, "/animals/x/media", "u", "a.png", "image/png", []byte("png"))
	if st != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without storage, got %d", st)
	}
}

type animalJSON struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	SubscribersCount int    `json:"subscribers_count"`
	IsSubscribed     bool   `json:"is_subscribed"`
}

type listJSON struct {
	Items    []animalJSON `json:"items"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

func decodeList(t *testing.T, body []byte) listJSON {
	t.Helper()
	var out listJSON
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode list: %v body=%s", err, string(body))
	}
	return out
}

func createID(t *testing.T, baseURL, userID, path string, payload map[string]any) string {
	t.Helper()

	st, body := doReq(t, baseURL, "POST", path, userID, payload)
	if st != http.StatusCreated {
		t.Fatalf("expected 201 POST %s, got %d body=%s", path, st, string(body))
	}

	var resp struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(body, &resp)
	if resp.ID == "" {
		t.Fatalf("POST %s: missing id body=%s", path, string(body))
	}
	return resp.ID
}

func upload(t *testing.T, baseURL, path, userID, filename, contentType string, data []byte) (int, []byte) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
	h["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write(data)
	_ = mw.Close()

	req, err := http.NewRequest("POST", baseURL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if userID != "" {
		req.Header.Set("X-Debug-User-ID", userID)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()

	respBody, _ := io.ReadAll(res.Body)
	return res.StatusCode, respBody
}

func doReq(t *testing.T, baseURL, method, path, debugUserID string, body any) (int, []byte) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if debugUserID != "" {
		req.Header.Set("X-Debug-User-ID", debugUserID)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()

	respBody, _ := io.ReadAll(res.Body)
	return res.StatusCode, respBody
}
