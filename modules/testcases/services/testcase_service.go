package services

import (
	"context"
	"encoding/json"
	"math/rand"
	"strings"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/wI2L/jsondiff"

	"github.com/labx-platform/testbed/modules/testcases/domain/entities/testcase"
	"github.com/labx-platform/testbed/modules/testcases/domain/generators"
	"github.com/labx-platform/testbed/pkg/composables"
	"github.com/labx-platform/testbed/pkg/serrors"
)

type ListResult struct {
	Items  []testcase.TestCase `json:"items"`
	Total  int64               `json:"total"`
	Page   int                 `json:"page"`
	Limit  int                 `json:"limit"`
	Facets testcase.Facets     `json:"facets"`
}

type UpdateResult struct {
	TestCase testcase.TestCase `json:"test_case"`
	Changes  jsondiff.Patch    `json:"changes"`
}

type GenerateResult struct {
	Suite   string              `json:"suite"`
	Count   int                 `json:"count"`
	Created int                 `json:"created"`
	Updated int                 `json:"updated"`
	Items   []testcase.TestCase `json:"items"`
}

type TestCaseService struct {
	repo    testcase.Repository
	now     func() time.Time
	newRand func() *rand.Rand
}

type Option func(*TestCaseService)

// WithRandSource makes generated catalogs reproducible.
func WithRandSource(fn func() *rand.Rand) Option {
	return func(s *TestCaseService) {
		s.newRand = fn
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *TestCaseService) {
		s.now = now
	}
}

func NewTestCaseService(repo testcase.Repository, opts ...Option) *TestCaseService {
	s := &TestCaseService{
		repo: repo,
		now:  time.Now,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TestCaseService) List(ctx context.Context, params *testcase.FindParams) (ListResult, error) {
	if params == nil {
		params = &testcase.FindParams{}
	}
	params.Normalize()
	items, total, err := s.repo.Find(ctx, params)
	if err != nil {
		return ListResult{}, err
	}
	// Facets ignore paging but honour the other filters.
	facetParams := *params
	facetParams.Page, facetParams.Limit = 1, testcase.MaxLimit
	facets, err := s.repo.Facets(ctx, &facetParams)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{
		Items:  items,
		Total:  total,
		Page:   params.Page,
		Limit:  params.Limit,
		Facets: facets,
	}, nil
}

// Get resolves either a uuid or a human test case id.
func (s *TestCaseService) Get(ctx context.Context, key string) (testcase.TestCase, error) {
	key = strings.TrimSpace(key)
	if id, err := uuid.Parse(key); err == nil {
		t, err := s.repo.GetByID(ctx, id)
		if err == nil || !errors.Is(err, testcase.ErrNotFound) {
			return t, err
		}
	}
	return s.repo.GetByTestCaseID(ctx, key)
}

func (s *TestCaseService) Create(ctx context.Context, dto *testcase.CreateDTO) (testcase.TestCase, error) {
	if dto == nil {
		return testcase.TestCase{}, errors.New("missing dto")
	}
	dto.Normalize()
	if verrs := serrors.ValidateStruct(dto); verrs != nil {
		return testcase.TestCase{}, verrs
	}
	entity := dto.ToEntity(s.now())
	if err := entity.Validate(); err != nil {
		return testcase.TestCase{}, err
	}
	created, err := s.repo.Create(ctx, entity)
	if err != nil {
		return testcase.TestCase{}, err
	}
	composables.UseLogger(ctx).WithField("test_case_id", created.TestCaseID).Info("test case created")
	return created, nil
}

// Update applies an RFC 7386 merge patch and returns the RFC 6902 operations
// that turned the stored record into the new one.
func (s *TestCaseService) Update(ctx context.Context, key string, patch []byte) (UpdateResult, error) {
	existing, err := s.Get(ctx, key)
	if err != nil {
		return UpdateResult{}, err
	}
	original, err := json.Marshal(existing)
	if err != nil {
		return UpdateResult{}, errors.Wrap(err, "encode test case")
	}
	merged, err := jsonpatch.MergePatch(original, patch)
	if err != nil {
		return UpdateResult{}, testcase.ErrInvalidPatch.WithDetails(err.Error())
	}

	var updated testcase.TestCase
	if err := json.Unmarshal(merged, &updated); err != nil {
		return UpdateResult{}, testcase.ErrInvalidPatch.WithDetails(err.Error())
	}
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = existing.UpdatedAt
	updated.Normalize()
	if err := updated.Validate(); err != nil {
		return UpdateResult{}, err
	}

	normalized, err := json.Marshal(updated)
	if err != nil {
		return UpdateResult{}, errors.Wrap(err, "encode patched test case")
	}
	changes, err := jsondiff.CompareJSON(original, normalized)
	if err != nil {
		return UpdateResult{}, errors.Wrap(err, "diff test case")
	}
	if len(changes) == 0 {
		return UpdateResult{TestCase: existing, Changes: changes}, nil
	}

	updated.UpdatedAt = s.now()
	saved, err := s.repo.Update(ctx, updated)
	if err != nil {
		return UpdateResult{}, err
	}
	return UpdateResult{TestCase: saved, Changes: changes}, nil
}

// Delete deactivates the test case, or removes it when hard is set.
func (s *TestCaseService) Delete(ctx context.Context, key string, hard bool) (testcase.TestCase, error) {
	existing, err := s.Get(ctx, key)
	if err != nil {
		return testcase.TestCase{}, err
	}
	if hard {
		return existing, s.repo.Delete(ctx, existing.ID)
	}
	existing.IsActive = false
	existing.UpdatedAt = s.now()
	return s.repo.Update(ctx, existing)
}

func (s *TestCaseService) Generate(ctx context.Context, suite string, persist bool) (GenerateResult, error) {
	suite = strings.ToLower(strings.TrimSpace(suite))
	if suite == "" {
		suite = generators.SuiteLTE
	}
	items, err := generators.NewLTEGenerator(s.newRand()).Generate(suite)
	if err != nil {
		return GenerateResult{}, err
	}
	res := GenerateResult{Suite: suite, Count: len(items), Items: items}
	if !persist {
		return res, nil
	}
	for i, t := range items {
		saved, created, err := s.repo.Upsert(ctx, t)
		if err != nil {
			return GenerateResult{}, errors.Wrapf(err, "persist %s", t.TestCaseID)
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
		res.Items[i] = saved
	}
	composables.UseLogger(ctx).WithFields(logrus.Fields{
		"suite":   suite,
		"created": res.Created,
		"updated": res.Updated,
	}).Info("generated test cases persisted")
	return res, nil
}

func (s *TestCaseService) CellSearchTemplate() generators.CellSearchTemplate {
	return generators.NewCellSearchTemplate()
}

// SeedCatalog stores the generated LTE catalog and the cell search template.
func (s *TestCaseService) SeedCatalog(ctx context.Context) error {
	if _, err := s.Generate(ctx, generators.SuiteLTE, true); err != nil {
		return err
	}
	if _, _, err := s.repo.Upsert(ctx, s.CellSearchTemplate().ToTestCase(s.now())); err != nil {
		return errors.Wrap(err, "persist cell search template")
	}
	return nil
}

func (s *TestCaseService) Categories(ctx context.Context) ([]testcase.Category, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]testcase.TestCase, 0, len(all))
	for _, t := range all {
		if t.IsActive {
			active = append(active, t)
		}
	}
	return testcase.CountCategories(active), nil
}
