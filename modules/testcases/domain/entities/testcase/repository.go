package testcase

import (
	"context"

	"github.com/google/uuid"
)

type SortField string

const (
	SortByName       SortField = "name"
	SortByCreatedAt  SortField = "created_at"
	SortByDurationMs SortField = "duration_ms"
	SortByPriority   SortField = "priority"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// FindParams filters the catalog. Active defaults to true when nil.
type FindParams struct {
	Category   string    `form:"category"`
	Protocol   string    `form:"protocol"`
	TestType   string    `form:"test_type"`
	Complexity string    `form:"complexity"`
	Search     string    `form:"search"`
	Tags       []string  `form:"tags"`
	Active     *bool     `form:"active"`
	Page       int       `form:"page"`
	Limit      int       `form:"limit"`
	Sort       SortField `form:"sort"`
	Order      string    `form:"order"`
}

func (p *FindParams) Normalize() {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Page <= 0 {
		p.Page = 1
	}
	switch p.Sort {
	case SortByName, SortByCreatedAt, SortByDurationMs, SortByPriority:
	default:
		p.Sort = SortByName
	}
	if p.Order != "desc" {
		p.Order = "asc"
	}
	if p.Active == nil {
		active := true
		p.Active = &active
	}
}

func (p *FindParams) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Facets counts matching records per category, test type and complexity.
type Facets struct {
	Categories   map[string]int `json:"categories"`
	TestTypes    map[string]int `json:"test_types"`
	Complexities map[string]int `json:"complexities"`
}

func NewFacets() Facets {
	return Facets{
		Categories:   map[string]int{},
		TestTypes:    map[string]int{},
		Complexities: map[string]int{},
	}
}

func (f Facets) Add(t TestCase) {
	if t.Category != "" {
		f.Categories[t.Category]++
	}
	if t.TestType != "" {
		f.TestTypes[t.TestType]++
	}
	if t.Complexity != "" {
		f.Complexities[string(t.Complexity)]++
	}
}

type Repository interface {
	Find(ctx context.Context, params *FindParams) ([]TestCase, int64, error)
	Facets(ctx context.Context, params *FindParams) (Facets, error)
	GetByID(ctx context.Context, id uuid.UUID) (TestCase, error)
	GetByTestCaseID(ctx context.Context, testCaseID string) (TestCase, error)
	All(ctx context.Context) ([]TestCase, error)
	Create(ctx context.Context, t TestCase) (TestCase, error)
	Update(ctx context.Context, t TestCase) (TestCase, error)
	// Upsert inserts or replaces by TestCaseID and reports whether a row was created.
	Upsert(ctx context.Context, t TestCase) (TestCase, bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
