package services_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labx-platform/testbed/modules/testcases/domain/entities/testcase"
	"github.com/labx-platform/testbed/modules/testcases/infrastructure/persistence"
	"github.com/labx-platform/testbed/modules/testcases/services"
	"github.com/labx-platform/testbed/pkg/serrors"
)

func newService(t *testing.T) (*services.TestCaseService, *time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := services.NewTestCaseService(
		persistence.NewInmemTestCaseRepository(),
		services.WithClock(func() time.Time { return now }),
		services.WithRandSource(func() *rand.Rand { return rand.New(rand.NewSource(7)) }),
	)
	return svc, &now
}

func validDTO(id string) *testcase.CreateDTO {
	return &testcase.CreateDTO{
		TestCaseID: id,
		Name:       "RRC Connection Setup",
		Category:   "4G_LTE_RRC",
		TestType:   "functional",
		DurationMs: 1500,
		MessageFlow: []testcase.MessageStepDTO{
			{TimestampMs: 0, Direction: "ul", Layer: "RRC", Message: "RRCConnectionRequest"},
			{TimestampMs: 100, Direction: "DL", Layer: "RRC", Message: "RRCConnectionSetup"},
		},
	}
}

func TestTestCaseService_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	created, err := svc.Create(ctx, validDTO("TC-RRC-1"))
	require.NoError(t, err)
	assert.True(t, created.IsActive)
	assert.Equal(t, testcase.DirectionUL, created.MessageFlow[0].Direction)

	byKey, err := svc.Get(ctx, "TC-RRC-1")
	require.NoError(t, err)
	byID, err := svc.Get(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, byKey.ID, byID.ID)

	_, err = svc.Create(ctx, validDTO("TC-RRC-1"))
	require.ErrorIs(t, err, testcase.ErrDuplicateID)
}

func TestTestCaseService_CreateValidation(t *testing.T) {
	svc, _ := newService(t)
	dto := validDTO("")
	dto.Name = " "
	dto.DurationMs = -1
	dto.MessageFlow[0].Direction = "sideways"

	_, err := svc.Create(context.Background(), dto)
	var verrs serrors.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs, "Name")
	assert.Contains(t, verrs, "DurationMs")
	assert.Contains(t, verrs, "MessageFlow[0].Direction")
}

func TestTestCaseService_UpdateMergePatch(t *testing.T) {
	ctx := context.Background()
	svc, now := newService(t)
	created, err := svc.Create(ctx, validDTO("TC-PATCH"))
	require.NoError(t, err)

	*now = now.Add(time.Hour)
	res, err := svc.Update(ctx, "TC-PATCH", []byte(`{"name":"Renamed","priority":"HIGH"}`))
	require.NoError(t, err)
	assert.Equal(t, "Renamed", res.TestCase.Name)
	assert.Equal(t, testcase.PriorityHigh, res.TestCase.Priority)
	assert.Equal(t, created.ID, res.TestCase.ID)
	assert.Equal(t, created.CreatedAt, res.TestCase.CreatedAt)
	assert.True(t, res.TestCase.UpdatedAt.After(created.UpdatedAt))

	paths := map[string]string{}
	for _, op := range res.Changes {
		paths[op.Path] = op.Type
	}
	assert.Equal(t, map[string]string{"/name": "replace", "/priority": "replace"}, paths)

	noop, err := svc.Update(ctx, "TC-PATCH", []byte(`{"name":"Renamed"}`))
	require.NoError(t, err)
	assert.Empty(t, noop.Changes)
}

func TestTestCaseService_UpdateRejectsBadPatch(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, err := svc.Create(ctx, validDTO("TC-BAD"))
	require.NoError(t, err)

	_, err = svc.Update(ctx, "TC-BAD", []byte(`{not json`))
	require.ErrorIs(t, err, testcase.ErrInvalidPatch)

	_, err = svc.Update(ctx, "TC-BAD", []byte(`{"category":null}`))
	var verrs serrors.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs, "category")

	_, err = svc.Update(ctx, "missing", []byte(`{}`))
	require.ErrorIs(t, err, testcase.ErrNotFound)
}

func TestTestCaseService_SoftAndHardDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, err := svc.Create(ctx, validDTO("TC-DEL"))
	require.NoError(t, err)

	soft, err := svc.Delete(ctx, "TC-DEL", false)
	require.NoError(t, err)
	assert.False(t, soft.IsActive)

	list, err := svc.List(ctx, &testcase.FindParams{})
	require.NoError(t, err)
	assert.Zero(t, list.Total)

	_, err = svc.Delete(ctx, "TC-DEL", true)
	require.NoError(t, err)
	_, err = svc.Get(ctx, "TC-DEL")
	require.ErrorIs(t, err, testcase.ErrNotFound)
}

func TestTestCaseService_GeneratePersistsIdempotently(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	first, err := svc.Generate(ctx, "lte-rrc", true)
	require.NoError(t, err)
	assert.Equal(t, 50, first.Count)
	assert.Equal(t, 50, first.Created)

	second, err := svc.Generate(ctx, "LTE-RRC", true)
	require.NoError(t, err)
	assert.Zero(t, second.Created)
	assert.Equal(t, 50, second.Updated)

	list, err := svc.List(ctx, &testcase.FindParams{Category: "4G_LTE_RRC", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(50), list.Total)
	assert.Len(t, list.Items, 10)
	assert.Equal(t, 50, list.Facets.Categories["4G_LTE_RRC"])

	_, err = svc.Generate(ctx, "lte-nope", false)
	require.ErrorIs(t, err, testcase.ErrUnknownSuite)
}

func TestTestCaseService_CategoriesAfterSeed(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	require.NoError(t, svc.SeedCatalog(ctx))

	tree, err := svc.Categories(ctx)
	require.NoError(t, err)
	for _, c := range tree {
		if c.Key == "4G_LTE" {
			assert.Equal(t, 151, c.TotalCount)
			continue
		}
		assert.Zero(t, c.TotalCount, c.Key)
	}

	tmpl, err := svc.Get(ctx, "LTE-001-COMPLETE")
	require.NoError(t, err)
	assert.Len(t, tmpl.MessageFlow, 10)
}

func TestTestCaseService_ExportImportWorkbook(t *testing.T) {
	ctx := context.Background()
	src, _ := newService(t)
	_, err := src.Create(ctx, validDTO("TC-X1"))
	require.NoError(t, err)
	second := validDTO("TC-X2")
	second.Tags = []string{"rrc", "setup"}
	_, err = src.Create(ctx, second)
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := src.Export(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	dst, _ := newService(t)
	res, err := dst.Import(ctx, buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "xlsx", res.Format)
	assert.Equal(t, 2, res.Created)
	assert.Zero(t, res.Failed)

	got, err := dst.Get(ctx, "TC-X2")
	require.NoError(t, err)
	assert.Equal(t, []string{"rrc", "setup"}, got.Tags)
	require.Len(t, got.MessageFlow, 2)
	assert.Equal(t, "RRCConnectionSetup", got.MessageFlow[1].Message)

	again, err := dst.Import(ctx, buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 2, again.Updated)
}

func TestTestCaseService_ImportJSONCountsFailures(t *testing.T) {
	svc, _ := newService(t)
	payload, err := json.Marshal([]testcase.CreateDTO{*validDTO("TC-J1"), {TestCaseID: "TC-J2"}})
	require.NoError(t, err)

	res, err := svc.Import(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "json", res.Format)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 2, res.Errors[0].Row)
	assert.Equal(t, "TC-J2", res.Errors[0].TestCaseID)

	_, err = svc.Import(context.Background(), []byte("just some text"))
	require.ErrorIs(t, err, testcase.ErrUnsupportedFmt)
}
