package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	portstorage "github.com/arakviel/petcare/internal/ports/storage"
)

const destroyNotFound = "not found"

type Config struct {
	URL string // CLOUDINARY_URL; si viene, tiene prioridad

	CloudName string
	APIKey    string
	APISecret string

	Folder string
}

func (c Config) Validate() error {
	if c.URL != "" {
		return nil
	}
	if c.CloudName == "" || c.APIKey == "" || c.APISecret == "" {
		return fmt.Errorf("cloudinary: cloud name, api key and api secret are required")
	}
	return nil
}

// Store sube fotos y videos a Cloudinary. Los nombres de objeto son
// "<resource_type>/<public_id>", que es lo que hace falta para borrar o firmar.
type Store struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		cld *cloudinary.Cloudinary
		err error
	)
	if cfg.URL != "" {
		cld, err = cloudinary.NewFromURL(cfg.URL)
	} else {
		cld, err = cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	}
	if err != nil {
		return nil, fmt.Errorf("cloudinary: init: %w", err)
	}
	return &Store{cld: cld, folder: strings.Trim(cfg.Folder, "/")}, nil
}

func (s *Store) Upload(ctx context.Context, objectName string, r io.Reader, contentType string) (string, error) {
	publicID := strings.TrimSuffix(objectName, path.Ext(objectName))
	if s.folder != "" {
		publicID = s.folder + "/" + publicID
	}

	res, err := s.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		PublicID:     publicID,
		ResourceType: resourceType(contentType),
		Overwrite:    api.Bool(false),
		Tags:         api.CldAPIArray{"petcare", "animal"},
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary: upload %q: %w", publicID, err)
	}
	if res == nil || res.PublicID == "" {
		if res != nil && res.Error.Message != "" {
			return "", fmt.Errorf("cloudinary: upload %q: %s", publicID, res.Error.Message)
		}
		return "", fmt.Errorf("cloudinary: upload %q: empty public id", publicID)
	}
	return res.SecureURL, nil
}

func (s *Store) Delete(ctx context.Context, objectName string) error {
	kind, publicID, ok := strings.Cut(objectName, "/")
	if !ok || publicID == "" {
		return fmt.Errorf("cloudinary: bad object name %q", objectName)
	}

	res, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: kind,
		Invalidate:   api.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("cloudinary: destroy %q: %w", publicID, err)
	}
	if res != nil && res.Result == destroyNotFound {
		return portstorage.ErrObjectNotFound
	}
	return nil
}

// PresignedURL devuelve una URL de entrega firmada. Cloudinary no expira
// estas URLs, así que ttl no se usa.
func (s *Store) PresignedURL(ctx context.Context, objectName string, ttl time.Duration) (string, error) {
	kind, publicID, ok := strings.Cut(objectName, "/")
	if !ok || publicID == "" {
		return "", fmt.Errorf("cloudinary: bad object name %q", objectName)
	}

	var (
		u   string
		err error
	)
	switch kind {
	case "video":
		asset, aerr := s.cld.Video(publicID)
		if aerr != nil {
			return "", aerr
		}
		asset.Config.URL.Secure = true
		asset.Config.URL.SignURL = true
		u, err = asset.String()
	default:
		asset, aerr := s.cld.Image(publicID)
		if aerr != nil {
			return "", aerr
		}
		asset.Config.URL.Secure = true
		asset.Config.URL.SignURL = true
		u, err = asset.String()
	}
	if err != nil {
		return "", fmt.Errorf("cloudinary: build url %q: %w", publicID, err)
	}
	return u, nil
}

// ObjectName entiende URLs de la forma
// https://res.cloudinary.com/{cloud}/{image|video}/upload/v{version}/{public_id}.{ext}
func (s *Store) ObjectName(url string) (string, bool) {
	if !strings.Contains(url, "res.cloudinary.com/") {
		return "", false
	}
	head, tail, ok := strings.Cut(url, "/upload/")
	if !ok {
		return "", false
	}
	kind := path.Base(head)
	if kind != "image" && kind != "video" {
		return "", false
	}

	parts := strings.Split(tail, "/")
	if len(parts) > 1 && isVersion(parts[0]) {
		parts = parts[1:]
	}
	withExt := strings.Join(parts, "/")
	publicID := strings.TrimSuffix(withExt, path.Ext(withExt))
	if publicID == "" {
		return "", false
	}
	return kind + "/" + publicID, true
}

// isVersion reconoce el segmento v{digits}; una carpeta como "vets" no lo es.
func isVersion(seg string) bool {
	digits, ok := strings.CutPrefix(seg, "v")
	if !ok || digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func resourceType(contentType string) string {
	if strings.HasPrefix(strings.ToLower(contentType), "video/") {
		return "video"
	}
	return "image"
}
