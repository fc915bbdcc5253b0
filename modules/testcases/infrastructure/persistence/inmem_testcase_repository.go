package persistence

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/labx-platform/testbed/modules/testcases/domain/entities/testcase"
)

// InmemTestCaseRepository keeps test cases by uuid with a TestCaseID index.
// Both maps change together under mu.
type InmemTestCaseRepository struct {
	mu    sync.RWMutex
	cases map[uuid.UUID]testcase.TestCase
	byID  map[string]uuid.UUID
}

func NewInmemTestCaseRepository() testcase.Repository {
	return &InmemTestCaseRepository{
		cases: map[uuid.UUID]testcase.TestCase{},
		byID:  map[string]uuid.UUID{},
	}
}

func (r *InmemTestCaseRepository) values() []testcase.TestCase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]testcase.TestCase, 0, len(r.cases))
	for _, t := range r.cases {
		out = append(out, t)
	}
	return out
}

// searchRank returns the best fuzzy distance of q against the searchable
// fields, or -1 when nothing matches.
func searchRank(q string, t testcase.TestCase) int {
	best := -1
	for _, r := range fuzzy.RankFindNormalizedFold(q, []string{t.Name, t.TestCaseID}) {
		if best < 0 || r.Distance < best {
			best = r.Distance
		}
	}
	if best < 0 && strings.Contains(strings.ToLower(t.Description), strings.ToLower(q)) {
		best = len(t.Description)
	}
	return best
}

func matches(params *testcase.FindParams, t testcase.TestCase) bool {
	if params.Category != "" && !strings.EqualFold(t.Category, params.Category) {
		return false
	}
	if params.Protocol != "" && !strings.EqualFold(t.Protocol, params.Protocol) {
		return false
	}
	if params.TestType != "" && !strings.EqualFold(t.TestType, params.TestType) {
		return false
	}
	if params.Complexity != "" && !strings.EqualFold(string(t.Complexity), params.Complexity) {
		return false
	}
	if params.Active != nil && t.IsActive != *params.Active {
		return false
	}
	return t.HasAnyTag(params.Tags)
}

func (r *InmemTestCaseRepository) filter(params *testcase.FindParams) []testcase.TestCase {
	rankBySearch := strings.TrimSpace(params.Search) != "" && params.Sort == ""
	params.Normalize()

	q := strings.TrimSpace(params.Search)
	ranks := map[uuid.UUID]int{}
	out := []testcase.TestCase{}
	for _, t := range r.values() {
		if !matches(params, t) {
			continue
		}
		if q != "" {
			rank := searchRank(q, t)
			if rank < 0 {
				continue
			}
			ranks[t.ID] = rank
		}
		out = append(out, t)
	}

	less := lessFunc(params.Sort)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if rankBySearch && ranks[a.ID] != ranks[b.ID] {
			return ranks[a.ID] < ranks[b.ID]
		}
		if params.Order == "desc" {
			a, b = b, a
		}
		if less(a, b) {
			return true
		}
		if less(b, a) {
			return false
		}
		return out[i].TestCaseID < out[j].TestCaseID
	})
	return out
}

func lessFunc(field testcase.SortField) func(a, b testcase.TestCase) bool {
	switch field {
	case testcase.SortByCreatedAt:
		return func(a, b testcase.TestCase) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case testcase.SortByDurationMs:
		return func(a, b testcase.TestCase) bool { return a.DurationMs < b.DurationMs }
	case testcase.SortByPriority:
		return func(a, b testcase.TestCase) bool { return a.Priority.Rank() < b.Priority.Rank() }
	default:
		return func(a, b testcase.TestCase) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	}
}

func (r *InmemTestCaseRepository) Find(_ context.Context, params *testcase.FindParams) ([]testcase.TestCase, int64, error) {
	if params == nil {
		params = &testcase.FindParams{}
	}
	all := r.filter(params)
	total := int64(len(all))
	start := min(params.Offset(), len(all))
	end := min(start+params.Limit, len(all))
	return all[start:end], total, nil
}

func (r *InmemTestCaseRepository) Facets(_ context.Context, params *testcase.FindParams) (testcase.Facets, error) {
	if params == nil {
		params = &testcase.FindParams{}
	}
	facets := testcase.NewFacets()
	for _, t := range r.filter(params) {
		facets.Add(t)
	}
	return facets, nil
}

func (r *InmemTestCaseRepository) GetByID(_ context.Context, id uuid.UUID) (testcase.TestCase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.cases[id]
	if !ok {
		return testcase.TestCase{}, testcase.ErrNotFound
	}
	return t, nil
}

func (r *InmemTestCaseRepository) GetByTestCaseID(_ context.Context, testCaseID string) (testcase.TestCase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byID[strings.TrimSpace(testCaseID)]
	if !ok {
		return testcase.TestCase{}, testcase.ErrNotFound
	}
	return r.cases[id], nil
}

func (r *InmemTestCaseRepository) All(_ context.Context) ([]testcase.TestCase, error) {
	out := r.values()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].TestCaseID < out[j].TestCaseID
	})
	return out, nil
}

func (r *InmemTestCaseRepository) Create(_ context.Context, t testcase.TestCase) (testcase.TestCase, error) {
	t.Normalize()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createLocked(t)
}

func (r *InmemTestCaseRepository) createLocked(t testcase.TestCase) (testcase.TestCase, error) {
	_, exists := r.cases[t.ID]
	if _, taken := r.byID[t.TestCaseID]; exists || taken {
		return testcase.TestCase{}, testcase.ErrDuplicateID.WithDetails(t.TestCaseID)
	}
	r.cases[t.ID] = t
	r.byID[t.TestCaseID] = t.ID
	return t, nil
}

func (r *InmemTestCaseRepository) Update(_ context.Context, t testcase.TestCase) (testcase.TestCase, error) {
	t.Normalize()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateLocked(t)
}

func (r *InmemTestCaseRepository) updateLocked(t testcase.TestCase) (testcase.TestCase, error) {
	existing, ok := r.cases[t.ID]
	if !ok {
		return testcase.TestCase{}, testcase.ErrNotFound
	}
	if owner, taken := r.byID[t.TestCaseID]; taken && owner != t.ID {
		return testcase.TestCase{}, testcase.ErrDuplicateID.WithDetails(t.TestCaseID)
	}
	t.CreatedAt = existing.CreatedAt
	delete(r.byID, existing.TestCaseID)
	r.cases[t.ID] = t
	r.byID[t.TestCaseID] = t.ID
	return t, nil
}

func (r *InmemTestCaseRepository) Upsert(_ context.Context, t testcase.TestCase) (testcase.TestCase, bool, error) {
	t.Normalize()
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byID[t.TestCaseID]; ok {
		t.ID = id
		updated, err := r.updateLocked(t)
		return updated, false, err
	}
	created, err := r.createLocked(t)
	return created, err == nil, err
}

func (r *InmemTestCaseRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.cases[id]
	if !ok {
		return testcase.ErrNotFound
	}
	delete(r.cases, id)
	delete(r.byID, t.TestCaseID)
	return nil
}
