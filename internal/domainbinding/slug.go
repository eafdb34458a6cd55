package domainbinding

import (
	"errors"
	"fmt"
	"strings"

	"github.com/asaskevich/govalidator"

	"github.com/schoolhub/schoolhub-backend/db/router"
)

// MaxSlugLength leaves room for a collision suffix inside the 50 characters a schema name may carry after its prefix.
const MaxSlugLength = 40

var ErrInvalidSeed = errors.New("cannot derive a domain from an empty name")

// Slugify lowercases seed and keeps ASCII letters and digits, joining every other run of characters into a single
// dash.
func Slugify(seed string) (string, error) {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(seed) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			pendingDash = b.Len() > 0
			continue
		}
		if pendingDash {
			b.WriteByte('-')
			pendingDash = false
		}
		b.WriteRune(r)
	}

	slug := b.String()
	if len(slug) > MaxSlugLength {
		slug = strings.TrimRight(slug[:MaxSlugLength], "-")
	}
	if slug == "" {
		return "", ErrInvalidSeed
	}
	if !govalidator.IsDNSName(slug) {
		return "", fmt.Errorf("%q is not a valid domain label", slug)
	}
	return slug, nil
}

// Candidate returns the domain tried on the given attempt: the slug itself first, then slug-2, slug-3 and so on.
func Candidate(slug string, attempt int) string {
	if attempt == 0 {
		return slug
	}
	return fmt.Sprintf("%s-%d", slug, attempt+1)
}

// DatabaseNameFor derives the tenant schema name of a domain.
func DatabaseNameFor(domain string) string {
	return router.SchoolSchemaPrefix + strings.ReplaceAll(domain, "-", "_")
}
