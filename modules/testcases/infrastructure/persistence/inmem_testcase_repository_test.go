package persistence_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labx-platform/testbed/modules/testcases/domain/entities/testcase"
	"github.com/labx-platform/testbed/modules/testcases/infrastructure/persistence"
)

func newCase(id, name, category string, opts ...func(*testcase.TestCase)) testcase.TestCase {
	tc := testcase.TestCase{
		ID:         uuid.New(),
		TestCaseID: id,
		Name:       name,
		Category:   category,
		TestType:   "functional",
		Complexity: testcase.ComplexityMedium,
		Priority:   testcase.PriorityMedium,
		IsActive:   true,
		CreatedAt:  time.Now(),
	}
	for _, opt := range opts {
		opt(&tc)
	}
	return tc
}

func seed(t *testing.T, r testcase.Repository, cases ...testcase.TestCase) {
	t.Helper()
	for _, c := range cases {
		_, err := r.Create(context.Background(), c)
		require.NoError(t, err)
	}
}

func TestInmemRepository_FilterByCategoryAndActive(t *testing.T) {
	ctx := context.Background()
	r := persistence.NewInmemTestCaseRepository()
	seed(t, r,
		newCase("RRC-1", "RRC Setup", "4G_LTE_RRC"),
		newCase("RRC-2", "RRC Release", "4G_LTE_RRC"),
		newCase("NAS-1", "Attach", "4G_LTE_NAS"),
		newCase("NAS-2", "Detach", "4G_LTE_NAS", func(tc *testcase.TestCase) { tc.IsActive = false }),
	)

	items, total, err := r.Find(ctx, &testcase.FindParams{Category: "4G_LTE_RRC"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	for _, it := range items {
		assert.Equal(t, "4G_LTE_RRC", it.Category)
	}

	_, total, err = r.Find(ctx, &testcase.FindParams{Category: "4G_LTE_NAS"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	inactive := false
	items, _, err = r.Find(ctx, &testcase.FindParams{Active: &inactive})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "NAS-2", items[0].TestCaseID)
}

func TestInmemRepository_SearchTagsAndPaging(t *testing.T) {
	ctx := context.Background()
	r := persistence.NewInmemTestCaseRepository()
	seed(t, r,
		newCase("A-1", "Handover Preparation", "4G_LTE_RRC", func(tc *testcase.TestCase) { tc.Tags = []string{"handover"} }),
		newCase("A-2", "Measurement Report", "4G_LTE_RRC", func(tc *testcase.TestCase) { tc.Tags = []string{"rrc"} }),
		newCase("A-3", "Security Mode Command", "4G_LTE_NAS", func(tc *testcase.TestCase) {
			tc.Description = "ciphering setup"
			tc.Tags = []string{"nas", "rrc"}
		}),
	)

	items, _, err := r.Find(ctx, &testcase.FindParams{Search: "handover"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "A-1", items[0].TestCaseID)

	items, _, err = r.Find(ctx, &testcase.FindParams{Search: "ciphering"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "A-3", items[0].TestCaseID)

	items, total, err := r.Find(ctx, &testcase.FindParams{Tags: []string{"rrc"}, Limit: 1, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 1)
	assert.Equal(t, "Security Mode Command", items[0].Name)
}

func TestInmemRepository_SortByDurationDesc(t *testing.T) {
	r := persistence.NewInmemTestCaseRepository()
	seed(t, r,
		newCase("D-1", "short", "X", func(tc *testcase.TestCase) { tc.DurationMs = 10 }),
		newCase("D-2", "long", "X", func(tc *testcase.TestCase) { tc.DurationMs = 1000 }),
		newCase("D-3", "mid", "X", func(tc *testcase.TestCase) { tc.DurationMs = 100 }),
	)
	items, _, err := r.Find(context.Background(), &testcase.FindParams{Sort: testcase.SortByDurationMs, Order: "desc"})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"D-2", "D-3", "D-1"}, []string{items[0].TestCaseID, items[1].TestCaseID, items[2].TestCaseID})
}

func TestInmemRepository_UniqueTestCaseID(t *testing.T) {
	ctx := context.Background()
	r := persistence.NewInmemTestCaseRepository()
	seed(t, r, newCase("DUP", "first", "X"))

	_, err := r.Create(ctx, newCase("DUP", "second", "X"))
	require.ErrorIs(t, err, testcase.ErrDuplicateID)

	other := newCase("OTHER", "other", "X")
	seed(t, r, other)
	other.TestCaseID = "DUP"
	_, err = r.Update(ctx, other)
	require.ErrorIs(t, err, testcase.ErrDuplicateID)
}

func TestInmemRepository_ConcurrentCreateKeepsTestCaseIDUnique(t *testing.T) {
	ctx := context.Background()
	r := persistence.NewInmemTestCaseRepository()
	for i := 0; i < 500; i++ {
		seed(t, r, newCase(fmt.Sprintf("BG-%d", i), "background", "X"))
	}

	const writers = 8
	var created atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := r.Create(ctx, newCase("DUP-1", "racer", "X")); err == nil {
				created.Add(1)
			} else {
				assert.ErrorIs(t, err, testcase.ErrDuplicateID)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	items, total, err := r.Find(ctx, &testcase.FindParams{Search: "racer"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, "DUP-1", items[0].TestCaseID)
}

func TestInmemRepository_RenameReleasesOldTestCaseID(t *testing.T) {
	ctx := context.Background()
	r := persistence.NewInmemTestCaseRepository()
	tc := newCase("OLD-1", "renamed", "X")
	seed(t, r, tc)

	tc.TestCaseID = "NEW-1"
	_, err := r.Update(ctx, tc)
	require.NoError(t, err)

	_, err = r.GetByTestCaseID(ctx, "OLD-1")
	require.ErrorIs(t, err, testcase.ErrNotFound)
	got, err := r.GetByTestCaseID(ctx, "NEW-1")
	require.NoError(t, err)
	assert.Equal(t, tc.ID, got.ID)

	seed(t, r, newCase("OLD-1", "reused", "X"))
}

func TestInmemRepository_BulkUpsert(t *testing.T) {
	ctx := context.Background()
	r := persistence.NewInmemTestCaseRepository()
	for round := 0; round < 2; round++ {
		for i := 0; i < 2000; i++ {
			_, created, err := r.Upsert(ctx, newCase(fmt.Sprintf("BULK-%d", i), fmt.Sprintf("round %d", round), "X"))
			require.NoError(t, err)
			assert.Equal(t, round == 0, created)
		}
	}
	all, err := r.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2000)
	got, err := r.GetByTestCaseID(ctx, "BULK-1999")
	require.NoError(t, err)
	assert.Equal(t, "round 1", got.Name)
}

func TestInmemRepository_UpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	r := persistence.NewInmemTestCaseRepository()

	first, created, err := r.Upsert(ctx, newCase("U-1", "v1", "X"))
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := r.Upsert(ctx, newCase("U-1", "v2", "X"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	got, err := r.GetByTestCaseID(ctx, "U-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Name)

	require.NoError(t, r.Delete(ctx, got.ID))
	require.ErrorIs(t, r.Delete(ctx, got.ID), testcase.ErrNotFound)
	_, err = r.GetByID(ctx, got.ID)
	require.ErrorIs(t, err, testcase.ErrNotFound)
}

func TestInmemRepository_Facets(t *testing.T) {
	r := persistence.NewInmemTestCaseRepository()
	seed(t, r,
		newCase("F-1", "a", "4G_LTE_RRC"),
		newCase("F-2", "b", "4G_LTE_RRC", func(tc *testcase.TestCase) { tc.Complexity = testcase.ComplexityHigh }),
		newCase("F-3", "c", "4G_LTE_PHY", func(tc *testcase.TestCase) { tc.TestType = "rf" }),
	)
	facets, err := r.Facets(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, facets.Categories["4G_LTE_RRC"])
	assert.Equal(t, 1, facets.TestTypes["rf"])
	assert.Equal(t, 1, facets.Complexities["high"])
}
