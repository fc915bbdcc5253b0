package testcase_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labx-platform/testbed/modules/testcases/domain/entities/testcase"
	"github.com/labx-platform/testbed/pkg/serrors"
)

func TestCreateDTO_ToEntityDefaults(t *testing.T) {
	dto := &testcase.CreateDTO{
		Name:     "  Attach  ",
		Category: "4G_LTE_NAS",
		MessageFlow: []testcase.MessageStepDTO{
			{Direction: "ul", Layer: "NAS", Message: "Attach Request"},
		},
	}
	dto.Normalize()
	tc := dto.ToEntity(time.Unix(0, 0))

	assert.Equal(t, "Attach", tc.Name)
	assert.True(t, tc.IsActive)
	assert.Equal(t, testcase.ComplexityMedium, tc.Complexity)
	assert.Equal(t, testcase.PriorityMedium, tc.Priority)
	assert.Equal(t, testcase.DirectionUL, tc.MessageFlow[0].Direction)
	assert.NotEmpty(t, tc.TestCaseID)
	assert.NotNil(t, tc.Tags)
	require.NoError(t, tc.Validate())
}

func TestTestCase_Validate(t *testing.T) {
	tc := testcase.TestCase{
		DurationMs:  -1,
		Complexity:  "trivial",
		MessageFlow: []testcase.MessageStep{{Direction: "XX"}},
	}
	err := tc.Validate()
	require.Error(t, err)

	var verrs serrors.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs, "name")
	assert.Contains(t, verrs, "category")
	assert.Contains(t, verrs, "duration_ms")
	assert.Contains(t, verrs, "complexity")
	assert.Contains(t, verrs, "message_flow[0].direction")
	assert.Contains(t, verrs, "message_flow[0].message")
}

func TestFindParams_Normalize(t *testing.T) {
	p := &testcase.FindParams{Limit: 10000, Sort: "bogus", Order: "sideways"}
	p.Normalize()
	assert.Equal(t, testcase.MaxLimit, p.Limit)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, testcase.SortByName, p.Sort)
	assert.Equal(t, "asc", p.Order)
	require.NotNil(t, p.Active)
	assert.True(t, *p.Active)
	assert.Equal(t, 0, p.Offset())

	p = &testcase.FindParams{Page: 3, Limit: 20}
	p.Normalize()
	assert.Equal(t, 40, p.Offset())
}

func TestCountCategories(t *testing.T) {
	tree := testcase.CountCategories([]testcase.TestCase{
		{Category: "4G_LTE_RRC", TestType: "functional"},
		{Category: "4G_LTE_PHY", TestType: "rf"},
		{Category: "5G_NR", TestType: "performance"},
		{Category: "UNKNOWN"},
	})
	byKey := map[string]testcase.Category{}
	for _, c := range tree {
		byKey[c.Key] = c
	}
	assert.Equal(t, 2, byKey["4G_LTE"].TotalCount)
	assert.Equal(t, 1, byKey["4G_LTE"].Subcategories[0].Count)
	assert.Equal(t, 1, byKey["4G_LTE"].Subcategories[2].Count)
	assert.Equal(t, 1, byKey["5G_NR"].TotalCount)
	assert.Equal(t, 0, byKey["NTN"].TotalCount)
}

func TestPriority_Rank(t *testing.T) {
	assert.Less(t, testcase.PriorityLow.Rank(), testcase.PriorityCritical.Rank())
	assert.Equal(t, 4, testcase.Priority("CRITICAL").Rank())
	assert.Equal(t, 0, testcase.Priority("").Rank())
}
