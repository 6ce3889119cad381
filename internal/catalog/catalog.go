// Package catalog serves the static, localized course list.
package catalog

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/fos7a/institute-api/internal/models"
)

//go:embed courses.yaml
var embeddedCourses []byte

var supported = []language.Tag{
	language.English,
	language.Arabic,
	language.Indonesian,
}

var localeByTag = map[language.Tag]models.Locale{
	language.English:    models.LocaleEnglish,
	language.Arabic:     models.LocaleArabic,
	language.Indonesian: models.LocaleIndonesian,
}

// Catalog is an immutable set of courses per locale.
type Catalog struct {
	courses map[models.Locale][]models.Course
	matcher language.Matcher
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(embeddedCourses)
}

// Load reads a catalog file from disk.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close() //nolint:errcheck
	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML document keyed by locale. The English list is required and
// every locale must carry the same course ids.
func Parse(raw []byte) (*Catalog, error) {
	var doc map[models.Locale][]models.Course
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	base, ok := doc[models.LocaleEnglish]
	if !ok || len(base) == 0 {
		return nil, fmt.Errorf("catalog: %q locale required", models.LocaleEnglish)
	}
	ids := make(map[string]struct{}, len(base))
	for _, c := range base {
		if c.ID == "" {
			return nil, fmt.Errorf("catalog: course without id")
		}
		if c.Capacity < 0 {
			return nil, fmt.Errorf("catalog: course %s has negative capacity", c.ID)
		}
		for _, p := range c.Plans {
			if _, ok := models.NormalizePlanDays(p.ID); !ok {
				return nil, fmt.Errorf("catalog: course %s has invalid plan %q", c.ID, p.ID)
			}
		}
		ids[c.ID] = struct{}{}
	}
	for locale, list := range doc {
		if len(list) != len(base) {
			return nil, fmt.Errorf("catalog: locale %s lists %d courses, want %d", locale, len(list), len(base))
		}
		for _, c := range list {
			if _, ok := ids[c.ID]; !ok {
				return nil, fmt.Errorf("catalog: locale %s has unknown course %s", locale, c.ID)
			}
		}
	}
	return &Catalog{courses: doc, matcher: language.NewMatcher(supported)}, nil
}

// Locale resolves a lang query value or Accept-Language header to a supported locale.
func (c *Catalog) Locale(preferences ...string) models.Locale {
	for _, pref := range preferences {
		if pref == "" {
			continue
		}
		tags, _, err := language.ParseAcceptLanguage(pref)
		if err != nil || len(tags) == 0 {
			continue
		}
		_, idx, confidence := c.matcher.Match(tags...)
		if confidence == language.No {
			continue
		}
		if locale, ok := localeByTag[supported[idx]]; ok {
			return locale
		}
	}
	return models.LocaleEnglish
}

// List returns the courses for a locale, falling back to English.
func (c *Catalog) List(locale models.Locale) []models.Course {
	list, ok := c.courses[locale]
	if !ok {
		list = c.courses[models.LocaleEnglish]
	}
	out := make([]models.Course, len(list))
	copy(out, list)
	return out
}

// Find returns a course by id in the given locale.
func (c *Catalog) Find(locale models.Locale, id string) (*models.Course, bool) {
	for _, course := range c.List(locale) {
		if course.ID == id {
			course := course
			return &course, true
		}
	}
	return nil, false
}

// Exists reports whether id is a catalog course.
func (c *Catalog) Exists(id string) bool {
	_, ok := c.Find(models.LocaleEnglish, id)
	return ok
}
