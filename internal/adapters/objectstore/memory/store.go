package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/arakviel/petcare/internal/ports/storage"
)

const baseURL = "memory://objects/"

type object struct {
	data        []byte
	contentType string
}

// Store guarda objetos en memoria. Dev mode y tests.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object
	now     func() time.Time
}

func New() *Store {
	return &Store{objects: make(map[string]object), now: time.Now}
}

func (s *Store) Upload(ctx context.Context, objectName string, r io.Reader, contentType string) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectName] = object{data: buf.Bytes(), contentType: contentType}
	return baseURL + objectName, nil
}

func (s *Store) Delete(ctx context.Context, objectName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[objectName]; !ok {
		return storage.ErrObjectNotFound
	}
	delete(s.objects, objectName)
	return nil
}

func (s *Store) PresignedURL(ctx context.Context, objectName string, ttl time.Duration) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.objects[objectName]; !ok {
		return "", storage.ErrObjectNotFound
	}
	return fmt.Sprintf("%s%s?expires=%d", baseURL, objectName, s.now().Add(ttl).Unix()), nil
}

func (s *Store) ObjectName(url string) (string, bool) {
	if !strings.HasPrefix(url, baseURL) {
		return "", false
	}
	name := strings.TrimPrefix(url, baseURL)
	return name, name != ""
}

// Get devuelve el contenido y el content type guardados.
func (s *Store) Get(objectName string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.objects[objectName]
	if !ok {
		return nil, "", false
	}
	return append([]byte(nil), o.data...), o.contentType, true
}
