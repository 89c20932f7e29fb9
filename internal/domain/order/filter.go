package order

import (
	"time"

	"github.com/go-faster/errors"
)

// SortKey enumerates the columns admin order listings may sort by. Free-form
// sort strings from the API layer are parsed into this set and rejected
// otherwise.
type SortKey string

const (
	SortByCreatedAt SortKey = "created_at"
	SortByTotal     SortKey = "total"
)

// SortDirection enumerates allowed sort directions.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ToSortKey parses a sort key string.
func ToSortKey(s string) (SortKey, error) {
	switch SortKey(s) {
	case SortByCreatedAt, SortByTotal:
		return SortKey(s), nil
	}
	return "", errors.Errorf("invalid sort key %q", s)
}

// ToSortDirection parses a sort direction string.
func ToSortDirection(s string) (SortDirection, error) {
	switch SortDirection(s) {
	case SortAsc, SortDesc:
		return SortDirection(s), nil
	}
	return "", errors.Errorf("invalid sort direction %q", s)
}

// Filter narrows and sorts admin order listings. Zero fields fall back to
// newest-first with no date bounds.
type Filter struct {
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	SortBy        SortKey
	SortDir       SortDirection
}

// Normalize fills defaults and validates the time range.
func (f *Filter) Normalize() error {
	if f.SortBy == "" {
		f.SortBy = SortByCreatedAt
	}
	if f.SortDir == "" {
		f.SortDir = SortDesc
	}
	if _, err := ToSortKey(string(f.SortBy)); err != nil {
		return err
	}
	if _, err := ToSortDirection(string(f.SortDir)); err != nil {
		return err
	}
	if f.CreatedAfter != nil && f.CreatedBefore != nil && f.CreatedBefore.Before(*f.CreatedAfter) {
		return errors.New("created-before precedes created-after")
	}
	return nil
}

// Page is a 1-based pagination window.
type Page struct {
	Number int
	Size   int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Normalize clamps the page to sane bounds.
func (p *Page) Normalize() {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = defaultPageSize
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
}

// Offset returns the row offset of the page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}
