package memory

import (
	"context"
	"fmt"
	"os"
	"time"

	"citegraph/domain/core/entities"

	"gopkg.in/yaml.v3"
)

// Fixture is a static catalog of papers and citations loaded at startup
type Fixture struct {
	Papers    []FixturePaper    `yaml:"papers"`
	Citations []FixtureCitation `yaml:"citations"`
}

// FixturePaper is one paper entry in a fixture file
type FixturePaper struct {
	ID       string   `yaml:"id"`
	Title    string   `yaml:"title"`
	Authors  []string `yaml:"authors"`
	Abstract string   `yaml:"abstract"`
	Year     int      `yaml:"year"`
	URL      string   `yaml:"url"`
	Keywords []string `yaml:"keywords"`
}

// FixtureCitation is one citation entry in a fixture file
type FixtureCitation struct {
	ID     string `yaml:"id"`
	Citing string `yaml:"citing"`
	Cited  string `yaml:"cited"`
}

// LoadFixture reads a YAML fixture file
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("memory: read fixture: %w", err)
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("memory: parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// NewStoreFromFixture builds a store pre-populated with the fixture.
// Papers listed earlier are treated as created earlier.
func NewStoreFromFixture(f *Fixture) (*Store, error) {
	s := NewStore()
	ctx := context.Background()
	base := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, fp := range f.Papers {
		p := &entities.Paper{
			ID:        fp.ID,
			Title:     fp.Title,
			Authors:   fp.Authors,
			Abstract:  fp.Abstract,
			Year:      fp.Year,
			URL:       fp.URL,
			Keywords:  fp.Keywords,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if p.Title == "" {
			return nil, fmt.Errorf("memory: fixture paper %d has no title", i)
		}
		if err := s.Papers().Save(ctx, p); err != nil {
			return nil, fmt.Errorf("memory: fixture paper %q: %w", fp.ID, err)
		}
	}

	for i, fc := range f.Citations {
		c, err := entities.NewCitation(fc.Citing, fc.Cited, nil)
		if err != nil {
			return nil, fmt.Errorf("memory: fixture citation %d: %w", i, err)
		}
		c.ID = fc.ID
		if err := s.Citations().Save(ctx, c); err != nil {
			return nil, fmt.Errorf("memory: fixture citation %d: %w", i, err)
		}
	}
	return s, nil
}
