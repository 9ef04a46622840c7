package utils

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// SlugTimestampLayout is appended to a taken slug to disambiguate it.
const SlugTimestampLayout = "2006-01-02 15:04:05.000000"

// bound on numbered candidates before falling back to a random suffix
const maxSlugAttempts = 100

var (
	separatorRuns   = regexp.MustCompile(`[-_]+`)
	camelBoundary   = regexp.MustCompile(`([a-z])([A-Z])`)
	nonSlugChars    = regexp.MustCompile(`[^a-z0-9_\s-]`)
	slugSeparators  = regexp.MustCompile(`[-\s]+`)
	invalidFileChar = regexp.MustCompile(`[^-\p{L}\p{N}_.]`)
)

// SlugChecker reports whether a slug is already used by an entity of one kind.
type SlugChecker interface {
	SlugExists(slug string) (bool, error)
}

// SlugCheckerFunc adapts a plain function to SlugChecker.
type SlugCheckerFunc func(slug string) (bool, error)

func (f SlugCheckerFunc) SlugExists(slug string) (bool, error) {
	return f(slug)
}

// PrettyTitle turns a filename stem into a readable title. Stems without spaces
// have their '-'/'_' runs replaced by a single space, stems with spaces get
// camelCase boundaries split. A changed string is capitalized, an unchanged one
// is returned as is.
func PrettyTitle(original string) string {
	s := original
	if !strings.Contains(s, " ") {
		s = separatorRuns.ReplaceAllString(s, " ")
	} else {
		s = camelBoundary.ReplaceAllString(s, "$1 $2")
	}
	if s != original {
		return capitalize(s)
	}
	return original
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

// Slugify converts s into a lowercase ASCII slug of letters, digits, '_' and '-'.
// Accented characters are reduced to their base letter, everything else that
// cannot be represented is dropped.
func Slugify(s string) string {
	decomposed := norm.NFKD.String(s)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
		}
	}

	slug := strings.ToLower(b.String())
	slug = nonSlugChars.ReplaceAllString(slug, "")
	slug = slugSeparators.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-_")
}

// UniqueSlug slugifies title and makes the result unique for checker. A taken
// slug gets a timestamp suffix, and a numeric counter after that if needed.
func UniqueSlug(checker SlugChecker, title string, now time.Time) (string, error) {
	base := Slugify(title)
	if base == "" {
		base = Slugify(now.Format(SlugTimestampLayout))
	}
	return uniqueFrom(checker, base, now)
}

// ResolveSlug implements the edit form fallback chain: the submitted slug, then
// one derived from fallbackTitle, then one synthesized from the record id and
// the current time. The result is made unique for checker.
func ResolveSlug(checker SlugChecker, submitted, fallbackTitle string, id uint, now time.Time) (string, error) {
	base := Slugify(submitted)
	if base == "" {
		base = Slugify(fallbackTitle)
	}
	if base == "" {
		base = Slugify(fmt.Sprintf("%d_%d", id, now.Unix()))
	}
	return uniqueFrom(checker, base, now)
}

func uniqueFrom(checker SlugChecker, base string, now time.Time) (string, error) {
	taken, err := checker.SlugExists(base)
	if err != nil {
		return "", fmt.Errorf("failed to check slug '%s': %w", base, err)
	}
	if !taken {
		return base, nil
	}

	stamped := Slugify(base + "-" + now.Format(SlugTimestampLayout))
	candidate := stamped
	for n := 2; n <= maxSlugAttempts; n++ {
		taken, err = checker.SlugExists(candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check slug '%s': %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", stamped, n)
	}

	return fmt.Sprintf("%s-%s", stamped, uuid.NewString()[:8]), nil
}

// ParseTags splits a comma separated tag string, trimming whitespace and
// dropping empty and case-insensitively duplicated tags.
func ParseTags(s string) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, part := range strings.Split(s, ",") {
		tag := strings.TrimSpace(part)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		tags = append(tags, tag)
	}
	return tags
}

// NormalizeTags returns the canonical comma separated form of a tag string.
func NormalizeTags(s string) string {
	return strings.Join(ParseTags(s), ", ")
}

// SanitizeFilename makes a storage-safe file name: spaces become underscores and
// anything other than letters, digits, '-', '_' and '.' is removed.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	name = invalidFileChar.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, ".")
	return name
}
