package animals

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxNameLen       = 100
	slugSuffixLen    = 8
	slugFallbackBase = "animal"
)

// NormalizeName recorta espacios y valida 1..100 caracteres.
func NormalizeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", validationErr("name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return "", validationErr("name must be at most %d characters", maxNameLen)
	}
	return name, nil
}

// NormalizeBirthday trunca a fecha UTC y rechaza fechas futuras respecto de now.
func NormalizeBirthday(t time.Time, now time.Time) (time.Time, error) {
	if t.IsZero() {
		return time.Time{}, validationErr("birthday is empty")
	}
	d := dateOf(t)
	if d.After(dateOf(now)) {
		return time.Time{}, validationErr("birthday cannot be in the future")
	}
	return d, nil
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func positiveMeasure(field string, v *float64) error {
	if v != nil && *v <= 0 {
		return validationErr("%s must be positive", field)
	}
	return nil
}

var slugFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NewSlug arma "<nombre-ascii>-<sufijo del id>". El sufijo garantiza unicidad
// aunque dos animales tengan el mismo nombre; nombres sin letras latinas
// (p.ej. cirílico) caen a "animal-<sufijo>".
func NewSlug(name, id string) string {
	folded, _, err := transform.String(slugFolder, strings.ToLower(name))
	if err != nil {
		folded = strings.ToLower(name)
	}

	var sb strings.Builder
	dash := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash && sb.Len() > 0 {
			sb.WriteByte('-')
			dash = true
		}
	}
	base := strings.Trim(sb.String(), "-")
	if base == "" {
		base = slugFallbackBase
	}

	suffix := strings.ReplaceAll(id, "-", "")
	if len(suffix) > slugSuffixLen {
		suffix = suffix[:slugSuffixLen]
	}
	if suffix == "" {
		return base
	}
	return base + "-" + suffix
}

// dedupeTags recorta, descarta vacíos y elimina duplicados manteniendo el orden.
func dedupeTags(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, raw := range in {
		t := strings.TrimSpace(raw)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
