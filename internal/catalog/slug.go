package catalog

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pelorus-marine/pelorus/internal/platform/httpx"
)

var titleCaser = cases.Title(language.English)

// NormalizeSlug lowercases the slug and strips every character that is
// not a letter, digit or dot. Normalization happens before validation,
// so "Vessels.Edit " and "vessels.edit" land on the same catalog entry.
func NormalizeSlug(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateSlug checks the <resource>.<action> shape of a normalized slug.
func ValidateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("%w: slug is required", httpx.ErrValidation)
	}
	resource, action, ok := strings.Cut(slug, ".")
	if !ok {
		return fmt.Errorf("%w: slug %q must be <resource>.<action>", httpx.ErrValidation, slug)
	}
	if resource == "" || action == "" {
		return fmt.Errorf("%w: slug %q has an empty segment", httpx.ErrValidation, slug)
	}
	return nil
}

// DisplayName derives a human-readable name from a slug when the batch
// entry omits one, e.g. "vessels.edit" becomes "Vessels Edit".
func DisplayName(slug string) string {
	return titleCaser.String(strings.ReplaceAll(slug, ".", " "))
}
