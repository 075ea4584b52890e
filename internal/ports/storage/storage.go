package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrNotConfigured  = errors.New("object storage not configured")
	ErrObjectNotFound = errors.New("object not found")
)

// ObjectStorage guarda binarios (fotos/videos) y devuelve su URL pública.
type ObjectStorage interface {
	Upload(ctx context.Context, objectName string, r io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, objectName string) error
	PresignedURL(ctx context.Context, objectName string, ttl time.Duration) (string, error)

	// ObjectName traduce una URL devuelta por Upload al nombre del objeto.
	// ok=false si la URL no pertenece a este storage (links externos).
	ObjectName(url string) (name string, ok bool)
}
