package generators_test

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labx-platform/testbed/modules/testcases/domain/entities/testcase"
	"github.com/labx-platform/testbed/modules/testcases/domain/generators"
)

func TestTestCaseID(t *testing.T) {
	assert.Equal(t, "LTE4GLTRR_4G_LTE_0001", generators.TestCaseID("4G_LTE_RRC", 1))
	assert.Equal(t, "LTE4GLTNA_4G_LTE_0050", generators.TestCaseID("4G_LTE_NAS", 50))
	assert.Equal(t, "LTE4GLTMA_4G_LTE_0007", generators.TestCaseID("4G_LTE_MAC", 7))
}

func TestLTEGenerator_SuiteSizes(t *testing.T) {
	g := generators.NewLTEGenerator(rand.New(rand.NewSource(1)))

	cases := []struct {
		suite string
		count int
	}{
		{generators.SuiteLTERRC, 50},
		{generators.SuiteLTENAS, 50},
		{generators.SuiteLTEPHY, 25},
		{generators.SuiteLTEMAC, 25},
		{generators.SuiteLTE, 150},
	}
	for _, tc := range cases {
		t.Run(tc.suite, func(t *testing.T) {
			out, err := g.Generate(tc.suite)
			require.NoError(t, err)
			assert.Len(t, out, tc.count)
		})
	}

	_, err := g.Generate("5g-nr")
	require.ErrorIs(t, err, testcase.ErrUnknownSuite)
}

func TestLTEGenerator_RRCFixedTemplates(t *testing.T) {
	out := generators.NewLTEGenerator(rand.New(rand.NewSource(7))).RRC()

	first := out[0]
	assert.Equal(t, "LTE4GLTRR_4G_LTE_0001", first.TestCaseID)
	assert.Equal(t, "LTE Initial Access - RRC Connection Request", first.Name)
	assert.Equal(t, int64(30000), first.DurationMs)
	assert.Equal(t, testcase.PriorityHigh, first.Priority)
	require.Len(t, first.MessageFlow, 5)
	assert.Equal(t, "PRACH Preamble Transmission", first.MessageFlow[0].Message)
	assert.Equal(t, int64(20), first.MessageFlow[4].TimestampMs)

	assert.Equal(t, "LTE RRC Connection Reconfiguration", out[1].Name)
	assert.Equal(t, testcase.ComplexityLow, out[1].Complexity)

	third := out[2]
	assert.Equal(t, "LTE Handover Preparation", third.Name)
	assert.Equal(t, []string{"handover-preparation", "rrc", "connected-mode"}, third.Tags)
	assert.Equal(t, "Handover Preparation Response", third.MessageFlow[1].Message)
}

func TestLTEGenerator_InvariantsHold(t *testing.T) {
	all := generators.NewLTEGenerator(rand.New(rand.NewSource(42))).All()
	seen := map[string]bool{}
	for _, tc := range all {
		require.NoError(t, tc.Validate(), tc.TestCaseID)
		assert.False(t, seen[tc.TestCaseID], "duplicate id %s", tc.TestCaseID)
		seen[tc.TestCaseID] = true
		assert.True(t, tc.IsActive)
		assert.Equal(t, generators.ProtocolVersionLTE, tc.ProtocolVersion)
		assert.True(t, strings.HasPrefix(tc.Category, "4G_LTE_"))

		if phy, ok := tc.Layers["PHY"].(map[string]any); ok {
			pci := phy["pci"].(int)
			assert.GreaterOrEqual(t, pci, 0)
			assert.Less(t, pci, 504)
		}
		if tc.Category == generators.CategoryMAC {
			assert.GreaterOrEqual(t, tc.DurationMs, int64(1000))
			assert.Less(t, tc.DurationMs, int64(4000))
		}
	}
}

func TestLTEGenerator_DeterministicWithSeed(t *testing.T) {
	a := generators.NewLTEGenerator(rand.New(rand.NewSource(99))).NAS()
	b := generators.NewLTEGenerator(rand.New(rand.NewSource(99))).NAS()

	ignore := cmpopts.IgnoreFields(testcase.TestCase{}, "ID", "CreatedAt", "UpdatedAt")
	if diff := cmp.Diff(a, b, ignore); diff != "" {
		t.Fatalf("seeded generators diverged (-a +b):\n%s", diff)
	}
}

func TestCellSearchTemplate(t *testing.T) {
	tpl := generators.NewCellSearchTemplate()
	assert.Equal(t, generators.CellSearchTemplateID, tpl.TestCaseID)
	assert.Equal(t, 60, tpl.DurationSeconds)
	require.Len(t, tpl.Steps, 10)
	for i, s := range tpl.Steps {
		assert.Equal(t, i+1, s.StepNumber)
		assert.NotEmpty(t, s.IEs, s.StepID)
		assert.NotEmpty(t, s.LayerParameters, s.StepID)
		assert.NotEmpty(t, s.Conditions, s.StepID)
		if i > 0 {
			assert.Greater(t, s.TimestampMs, tpl.Steps[i-1].TimestampMs)
		}
	}
	assert.Equal(t, "LTE-001-STEP-010", tpl.Steps[9].StepID)
	assert.Len(t, tpl.LayerParameters["PHY"], 4)

	tc := tpl.ToTestCase(time.Unix(0, 0))
	require.NoError(t, tc.Validate())
	assert.Equal(t, int64(60000), tc.DurationMs)
	assert.Equal(t, testcase.PriorityCritical, tc.Priority)
	require.Len(t, tc.MessageFlow, 10)
	assert.Equal(t, testcase.DirectionDL, tc.MessageFlow[3].Direction)
	assert.Equal(t, 123, tc.MessageFlow[2].Values["PCI"])
	assert.Equal(t, tc.ID, tpl.ToTestCase(time.Now()).ID)
}
