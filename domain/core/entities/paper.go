package entities

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"citegraph/domain/config"
	pkgerrors "citegraph/pkg/errors"
)

// Paper is an ingested publication. Papers are immutable once stored.
type Paper struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Authors   []string  `json:"authors"`
	Abstract  string    `json:"abstract"`
	Year      int       `json:"year"`
	URL       string    `json:"url"`
	Keywords  []string  `json:"keywords"`
	CreatedAt time.Time `json:"created_at"`
}

// PaperInput carries the caller-supplied fields of a new paper
type PaperInput struct {
	Title    string
	Authors  []string
	Abstract string
	Year     int
	URL      string
	Keywords []string
}

// NewPaper validates input and returns a paper without an id.
// The store assigns the id on save.
func NewPaper(in PaperInput, cfg *config.DomainConfig) (*Paper, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, pkgerrors.NewValidationError("title is required")
	}
	if utf8.RuneCountInString(title) > cfg.MaxTitleLength {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("title exceeds maximum length of %d characters", cfg.MaxTitleLength))
	}

	authors := cleanList(in.Authors)
	if len(authors) == 0 {
		return nil, pkgerrors.NewValidationError("at least one author is required")
	}
	if len(authors) > cfg.MaxAuthors {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("too many authors: maximum %d", cfg.MaxAuthors))
	}

	keywords := cleanList(in.Keywords)
	if len(keywords) > cfg.MaxKeywords {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("too many keywords: maximum %d", cfg.MaxKeywords))
	}

	abstract := strings.TrimSpace(in.Abstract)
	if utf8.RuneCountInString(abstract) > cfg.MaxAbstractLength {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("abstract exceeds maximum length of %d characters", cfg.MaxAbstractLength))
	}

	if in.Year < 0 {
		return nil, pkgerrors.NewValidationError("year cannot be negative")
	}

	return &Paper{
		Title:     title,
		Authors:   authors,
		Abstract:  abstract,
		Year:      in.Year,
		URL:       strings.TrimSpace(in.URL),
		Keywords:  keywords,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Matches reports whether the lowercase query occurs in the title, abstract,
// keywords or authors of the paper.
func (p *Paper) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(p.Title), q) || strings.Contains(strings.ToLower(p.Abstract), q) {
		return true
	}
	for _, k := range p.Keywords {
		if strings.Contains(strings.ToLower(k), q) {
			return true
		}
	}
	for _, a := range p.Authors {
		if strings.Contains(strings.ToLower(a), q) {
			return true
		}
	}
	return false
}

// LessInListing orders papers newest year first, then newest created, then by id.
func LessInListing(a, b *Paper) bool {
	if a.Year != b.Year {
		return a.Year > b.Year
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// Clone returns a deep copy so callers cannot mutate stored slices
func (p *Paper) Clone() *Paper {
	cp := *p
	cp.Authors = append([]string(nil), p.Authors...)
	cp.Keywords = append([]string(nil), p.Keywords...)
	return &cp
}
