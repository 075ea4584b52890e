package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	portstorage "github.com/arakviel/petcare/internal/ports/storage"
)

const publicHost = "https://storage.googleapis.com"

type Config struct {
	Bucket          string
	CredentialsFile string // vacío = Application Default Credentials

	// Para firmar URLs fuera de GCP. Si faltan, el cliente usa las credenciales.
	SignerEmail   string
	SignerKeyFile string
}

// Store guarda fotos y videos en un bucket de GCS.
type Store struct {
	client     *storage.Client
	bucket     string
	signer     string
	privateKey []byte
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("gcs: bucket is required")
	}

	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs: create client: %w", err)
	}

	s := &Store{client: client, bucket: bucket, signer: strings.TrimSpace(cfg.SignerEmail)}
	if cfg.SignerKeyFile != "" {
		key, err := os.ReadFile(cfg.SignerKeyFile)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("gcs: read signer key: %w", err)
		}
		s.privateKey = key
	}
	return s, nil
}

func (s *Store) Upload(ctx context.Context, objectName string, r io.Reader, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs: write %q: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs: close writer %q: %w", objectName, err)
	}
	return s.publicURL(objectName), nil
}

func (s *Store) Delete(ctx context.Context, objectName string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := s.client.Bucket(s.bucket).Object(objectName).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return portstorage.ErrObjectNotFound
	}
	if err != nil {
		return fmt.Errorf("gcs: delete %q in bucket %q: %w", objectName, s.bucket, err)
	}
	return nil
}

func (s *Store) PresignedURL(ctx context.Context, objectName string, ttl time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
	}
	if s.signer != "" {
		opts.GoogleAccessID = s.signer
	}
	if len(s.privateKey) > 0 {
		opts.PrivateKey = s.privateKey
	}
	u, err := s.client.Bucket(s.bucket).SignedURL(objectName, opts)
	if err != nil {
		return "", fmt.Errorf("gcs: sign %q: %w", objectName, err)
	}
	return u, nil
}

func (s *Store) ObjectName(url string) (string, bool) {
	prefix := s.publicURL("")
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(url, prefix)
	return name, name != ""
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) publicURL(objectName string) string {
	return fmt.Sprintf("%s/%s/%s", publicHost, s.bucket, strings.TrimLeft(objectName, "/"))
}
