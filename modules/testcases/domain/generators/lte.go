package generators

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/labx-platform/testbed/modules/testcases/domain/entities/testcase"
)

const (
	CategoryRRC = "4G_LTE_RRC"
	CategoryNAS = "4G_LTE_NAS"
	CategoryPHY = "4G_LTE_PHY"
	CategoryMAC = "4G_LTE_MAC"

	ProtocolVersionLTE = "4G LTE"
)

// Suite names accepted by Generate.
const (
	SuiteLTE    = "lte"
	SuiteLTERRC = "lte-rrc"
	SuiteLTENAS = "lte-nas"
	SuiteLTEPHY = "lte-phy"
	SuiteLTEMAC = "lte-mac"
)

func Suites() []string {
	return []string{SuiteLTE, SuiteLTERRC, SuiteLTENAS, SuiteLTEPHY, SuiteLTEMAC}
}

var (
	rrcProcedures = []string{
		"Handover Preparation", "RRC Connection Release", "RRC Connection Reestablishment", "Measurement Configuration",
		"Measurement Report", "UE Capability Information", "UE Information Request", "Security Mode Command",
		"RRC Connection Reconfiguration", "RRC Connection Setup", "RRC Connection Reject", "RRC Connection Release",
		"RRC Connection Reestablishment", "RRC Connection Reestablishment Reject", "UE Capability Enquiry",
		"UE Capability Information", "UE Information Request", "UE Information Response", "Counter Check",
		"Counter Check Response", "UE Assistance Information", "UE Assistance Information Response",
		"RRC Reconfiguration", "RRC Reconfiguration Complete", "RRC Reconfiguration Failure",
		"RRC Reestablishment Request", "RRC Reestablishment", "RRC Reestablishment Complete",
		"RRC Reestablishment Reject", "RRC Setup Request", "RRC Setup", "RRC Setup Complete",
		"RRC Setup Reject", "RRC Reject", "RRC Release", "RRC Release Complete",
		"RRC Release Request", "RRC Release Response", "RRC Release Indication",
		"RRC Release Indication Response", "RRC Release Indication Complete",
	}

	nasProcedures = []string{
		"Attach Procedure", "Detach Procedure", "Service Request", "Authentication Request",
		"Authentication Response", "Security Mode Command", "Security Mode Complete",
		"Identity Request", "Identity Response", "Configuration Update Command",
		"Configuration Update Complete", "UE Configuration Update", "UE Configuration Update Complete",
		"UE Configuration Update Failure", "UE Capability Information", "UE Capability Information Response",
		"UE Information Request", "UE Information Response", "UE Information Failure",
		"UE Assistance Information", "UE Assistance Information Response", "UE Assistance Information Failure",
		"UE Policy Association", "UE Policy Association Response", "UE Policy Association Failure",
		"UE Policy Disassociation", "UE Policy Disassociation Response", "UE Policy Disassociation Failure",
		"UE Policy Update", "UE Policy Update Response", "UE Policy Update Failure",
		"UE Policy Provisioning", "UE Policy Provisioning Response", "UE Policy Provisioning Failure",
		"UE Policy Retrieval", "UE Policy Retrieval Response", "UE Policy Retrieval Failure",
		"UE Policy Validation", "UE Policy Validation Response", "UE Policy Validation Failure",
		"UE Policy Enforcement", "UE Policy Enforcement Response", "UE Policy Enforcement Failure",
		"UE Policy Monitoring", "UE Policy Monitoring Response", "UE Policy Monitoring Failure",
	}

	phyProcedures = []string{
		"PRACH Preamble Transmission", "RAR Reception", "PUSCH Transmission", "PDSCH Reception",
		"PUCCH Transmission", "PDCCH Reception", "SRS Transmission", "CSI-RS Reception",
		"SSB Reception", "PBCH Reception", "PSS/SSS Reception", "DMRS Transmission",
		"PTRS Transmission", "PTRS Reception", "TRS Reception", "BWP Configuration",
		"Carrier Aggregation", "MIMO Configuration", "Beam Management", "Power Control",
		"Timing Advance", "Frequency Offset", "Channel Estimation", "Equalization",
		"Modulation/Demodulation",
	}

	macProcedures = []string{
		"HARQ Process Management", "Scheduling Request", "Buffer Status Report", "Power Headroom Report",
		"Random Access Procedure", "UL Grant Processing", "DL Assignment Processing", "HARQ ACK/NACK",
		"HARQ Retransmission", "MAC PDU Construction", "MAC PDU Deconstruction", "Logical Channel Prioritization",
		"Multiplexing", "Demultiplexing", "Padding", "MAC Control Element", "MAC Header Processing",
		"MAC Payload Processing", "MAC CRC Check", "MAC Sequence Number", "MAC Timing Advance",
		"MAC Power Control", "MAC Beam Management", "MAC Carrier Aggregation", "MAC MIMO Configuration",
	}

	whitespace = regexp.MustCompile(`\s+`)

	simpleComplexities = []testcase.Complexity{testcase.ComplexityLow, testcase.ComplexityMedium, testcase.ComplexityHigh}
	allPriorities      = []testcase.Priority{testcase.PriorityLow, testcase.PriorityMedium, testcase.PriorityHigh, testcase.PriorityCritical}
)

// LTEGenerator builds the static 4G LTE catalog. It is not safe for concurrent use
// because *rand.Rand is not.
type LTEGenerator struct {
	rnd *rand.Rand
	now func() time.Time
}

func NewLTEGenerator(rnd *rand.Rand) *LTEGenerator {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &LTEGenerator{rnd: rnd, now: time.Now}
}

// TestCaseID builds LTE<prefix>_4G_LTE_<NNNN>, the prefix being the first two
// characters of every "_"-separated part of the category.
func TestCaseID(category string, index int) string {
	var prefix strings.Builder
	for _, part := range strings.Split(category, "_") {
		if len(part) > 2 {
			part = part[:2]
		}
		prefix.WriteString(part)
	}
	return fmt.Sprintf("LTE%s_4G_LTE_%04d", prefix.String(), index)
}

func slug(procedure string) string {
	return whitespace.ReplaceAllString(strings.ToLower(procedure), "-")
}

func pick[T any](rnd *rand.Rand, values []T) T {
	return values[rnd.Intn(len(values))]
}

func (g *LTEGenerator) Generate(suite string) ([]testcase.TestCase, error) {
	switch suite {
	case SuiteLTE, "":
		return g.All(), nil
	case SuiteLTERRC:
		return g.RRC(), nil
	case SuiteLTENAS:
		return g.NAS(), nil
	case SuiteLTEPHY:
		return g.PHY(), nil
	case SuiteLTEMAC:
		return g.MAC(), nil
	default:
		return nil, testcase.ErrUnknownSuite.WithDetails(suite)
	}
}

func (g *LTEGenerator) All() []testcase.TestCase {
	out := make([]testcase.TestCase, 0, 150)
	out = append(out, g.RRC()...)
	out = append(out, g.NAS()...)
	out = append(out, g.PHY()...)
	out = append(out, g.MAC()...)
	return out
}

func (g *LTEGenerator) newCase(category string, index int) testcase.TestCase {
	now := g.now()
	return testcase.TestCase{
		ID:              uuid.New(),
		TestCaseID:      TestCaseID(category, index),
		Category:        category,
		Protocol:        "LTE",
		ProtocolVersion: ProtocolVersionLTE,
		TestType:        "functional",
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func procedureFlow(layer, procedure string, responseAt int64) []testcase.MessageStep {
	return []testcase.MessageStep{
		{TimestampMs: 0, Direction: testcase.DirectionUL, Layer: layer, Message: procedure, Values: map[string]any{"procedure_type": strings.ToLower(procedure)}},
		{TimestampMs: responseAt, Direction: testcase.DirectionDL, Layer: layer, Message: procedure + " Response", Values: map[string]any{"status": "success"}},
	}
}

func (g *LTEGenerator) RRC() []testcase.TestCase {
	out := make([]testcase.TestCase, 0, 50)

	initial := []struct {
		name        string
		description string
		flow        []testcase.MessageStep
		durationMs  int64
		complexity  testcase.Complexity
		tags        []string
		priority    testcase.Priority
	}{
		{
			name:        "LTE Initial Access - RRC Connection Request",
			description: "UE performs initial access and sends RRC Connection Request with establishment cause mo-Data",
			flow: []testcase.MessageStep{
				{TimestampMs: 0, Direction: testcase.DirectionUL, Layer: "PHY", Message: "PRACH Preamble Transmission", Values: map[string]any{"preamble_id": 23, "power": 23}},
				{TimestampMs: 5, Direction: testcase.DirectionDL, Layer: "PHY", Message: "RAR (Random Access Response)", Values: map[string]any{"ra_rnti": 17921, "ta": 31}},
				{TimestampMs: 10, Direction: testcase.DirectionUL, Layer: "RRC", Message: "RRC Connection Request", Values: map[string]any{"establishment_cause": "mo-Data", "ue_identity": "001010123456789"}},
				{TimestampMs: 15, Direction: testcase.DirectionDL, Layer: "RRC", Message: "RRC Connection Setup", Values: map[string]any{"srb1_config": "configured"}},
				{TimestampMs: 20, Direction: testcase.DirectionUL, Layer: "RRC", Message: "RRC Connection Setup Complete", Values: map[string]any{"selected_plmn": "001-01"}},
			},
			durationMs: 30000,
			complexity: testcase.ComplexityMedium,
			tags:       []string{"initial-access", "rrc-setup", "random-access", "establishment-cause"},
			priority:   testcase.PriorityHigh,
		},
		{
			name:        "LTE RRC Connection Reconfiguration",
			description: "UE receives RRC Connection Reconfiguration to modify radio bearer configuration",
			flow: []testcase.MessageStep{
				{TimestampMs: 0, Direction: testcase.DirectionDL, Layer: "RRC", Message: "RRC Connection Reconfiguration", Values: map[string]any{"radio_bearer_config": "modified"}},
				{TimestampMs: 5, Direction: testcase.DirectionUL, Layer: "RRC", Message: "RRC Connection Reconfiguration Complete", Values: map[string]any{}},
			},
			durationMs: 5000,
			complexity: testcase.ComplexityLow,
			tags:       []string{"rrc-reconfiguration", "radio-bearer", "connected-mode"},
			priority:   testcase.PriorityMedium,
		},
	}

	for i, tpl := range initial {
		tc := g.newCase(CategoryRRC, i+1)
		tc.Name = tpl.name
		tc.Description = tpl.description
		tc.MessageFlow = tpl.flow
		tc.DurationMs = tpl.durationMs
		tc.Complexity = tpl.complexity
		tc.Tags = tpl.tags
		tc.Priority = tpl.priority
		tc.Layers = mergeLayers(g.phyLayer(), g.macLayer(), g.rlcLayer(), g.pdcpLayer(), g.rrcLayer())
		tc.Prerequisites = map[string]any{"network_available": true, "ue_powered_on": true, "sim_inserted": true}
		tc.ExpectedResults = map[string]any{"rrc_connection_established": true, "srb1_configured": true, "ta_updated": true}
		tc.SuccessCriteria = map[string]any{"rrc_setup_time_ms": "< 100", "random_access_time_ms": "< 50"}
		tc.FailureScenarios = map[string]any{"rrc_setup_failure": "RRC setup timeout", "random_access_failure": "PRACH failure"}
		tc.PerformanceMetrics = map[string]any{"throughput_mbps": "> 50", "latency_ms": "< 20", "packet_loss_percent": "< 0.1"}
		tc.TestEnvironment = fddEnvironment()
		out = append(out, tc)
	}

	for i := 3; i <= 50; i++ {
		procedure := rrcProcedures[(i-3)%len(rrcProcedures)]
		tc := g.newCase(CategoryRRC, i)
		tc.Name = "LTE " + procedure
		tc.Description = fmt.Sprintf("UE performs %s procedure in LTE network", strings.ToLower(procedure))
		tc.Layers = mergeLayers(g.phyLayer(), g.macLayer(), g.rlcLayer(), g.pdcpLayer(), g.rrcLayer())
		tc.MessageFlow = procedureFlow("RRC", procedure, 10)
		tc.DurationMs = int64(g.rnd.Intn(20000) + 5000)
		tc.Complexity = pick(g.rnd, simpleComplexities)
		tc.Tags = []string{slug(procedure), "rrc", "connected-mode"}
		tc.Prerequisites = map[string]any{"network_available": true, "ue_powered_on": true, "sim_inserted": true}
		tc.ExpectedResults = map[string]any{"procedure_successful": true, "rrc_state_updated": true}
		tc.SuccessCriteria = map[string]any{"procedure_time_ms": "< 1000", "success_rate_percent": "> 95"}
		tc.FailureScenarios = map[string]any{"procedure_failure": "Timeout", "invalid_configuration": "Configuration error"}
		tc.PerformanceMetrics = map[string]any{"latency_ms": "< 50", "success_rate_percent": "> 95"}
		tc.TestEnvironment = fddEnvironment()
		tc.Priority = pick(g.rnd, allPriorities)
		out = append(out, tc)
	}
	return out
}

func (g *LTEGenerator) NAS() []testcase.TestCase {
	out := make([]testcase.TestCase, 0, 50)
	for i := 1; i <= 50; i++ {
		procedure := nasProcedures[(i-1)%len(nasProcedures)]
		tc := g.newCase(CategoryNAS, i)
		tc.Name = "LTE " + procedure
		tc.Description = fmt.Sprintf("UE performs %s procedure in LTE network", strings.ToLower(procedure))
		tc.Layers = mergeLayers(g.pdcpLayer(), g.rrcLayer(), g.nasLayer())
		tc.MessageFlow = procedureFlow("NAS", procedure, 100)
		tc.DurationMs = int64(g.rnd.Intn(30000) + 5000)
		tc.Complexity = pick(g.rnd, simpleComplexities)
		tc.Tags = []string{slug(procedure), "nas", "eps"}
		tc.Prerequisites = map[string]any{"network_available": true, "ue_powered_on": true, "sim_inserted": true}
		tc.ExpectedResults = map[string]any{"procedure_successful": true, "nas_state_updated": true}
		tc.SuccessCriteria = map[string]any{"procedure_time_ms": "< 5000", "success_rate_percent": "> 95"}
		tc.FailureScenarios = map[string]any{"procedure_failure": "Network rejection", "authentication_failure": "Invalid credentials"}
		tc.PerformanceMetrics = map[string]any{"latency_ms": "< 100", "success_rate_percent": "> 95"}
		tc.TestEnvironment = map[string]any{"frequency_band": "B3", "attach_type": "EPS_ATTACH"}
		tc.Priority = pick(g.rnd, allPriorities)
		out = append(out, tc)
	}
	return out
}

func (g *LTEGenerator) PHY() []testcase.TestCase {
	out := make([]testcase.TestCase, 0, 25)
	for i := 1; i <= 25; i++ {
		procedure := phyProcedures[(i-1)%len(phyProcedures)]
		tc := g.newCase(CategoryPHY, i)
		tc.Name = "LTE " + procedure
		tc.Description = fmt.Sprintf("UE performs %s procedure in LTE physical layer", strings.ToLower(procedure))
		tc.TestType = "rf"
		tc.Layers = g.phyLayer()
		tc.MessageFlow = procedureFlow("PHY", procedure, 1)
		tc.DurationMs = int64(g.rnd.Intn(5000) + 1000)
		tc.Complexity = pick(g.rnd, simpleComplexities)
		tc.Tags = []string{slug(procedure), "phy", "physical-layer"}
		tc.Prerequisites = map[string]any{"network_available": true, "ue_powered_on": true, "rf_configured": true}
		tc.ExpectedResults = map[string]any{"procedure_successful": true, "phy_parameters_updated": true}
		tc.SuccessCriteria = map[string]any{"procedure_time_ms": "< 100", "success_rate_percent": "> 95"}
		tc.FailureScenarios = map[string]any{"procedure_failure": "PHY error", "rf_failure": "RF configuration error"}
		tc.PerformanceMetrics = map[string]any{"latency_ms": "< 10", "success_rate_percent": "> 95"}
		tc.TestEnvironment = fddEnvironment()
		tc.Priority = pick(g.rnd, allPriorities)
		out = append(out, tc)
	}
	return out
}

func (g *LTEGenerator) MAC() []testcase.TestCase {
	out := make([]testcase.TestCase, 0, 25)
	for i := 1; i <= 25; i++ {
		procedure := macProcedures[(i-1)%len(macProcedures)]
		tc := g.newCase(CategoryMAC, i)
		tc.Name = "LTE " + procedure
		tc.Description = fmt.Sprintf("UE performs %s procedure in LTE MAC layer", strings.ToLower(procedure))
		tc.Layers = mergeLayers(g.phyLayer(), g.macLayer())
		tc.MessageFlow = procedureFlow("MAC", procedure, 1)
		tc.DurationMs = int64(g.rnd.Intn(3000) + 1000)
		tc.Complexity = pick(g.rnd, simpleComplexities)
		tc.Tags = []string{slug(procedure), "mac", "medium-access-control"}
		tc.Prerequisites = map[string]any{"network_available": true, "ue_powered_on": true, "mac_configured": true}
		tc.ExpectedResults = map[string]any{"procedure_successful": true, "mac_parameters_updated": true}
		tc.SuccessCriteria = map[string]any{"procedure_time_ms": "< 50", "success_rate_percent": "> 95"}
		tc.FailureScenarios = map[string]any{"procedure_failure": "MAC error", "scheduling_failure": "Scheduling error"}
		tc.PerformanceMetrics = map[string]any{"latency_ms": "< 5", "success_rate_percent": "> 95"}
		tc.TestEnvironment = fddEnvironment()
		tc.Priority = pick(g.rnd, allPriorities)
		out = append(out, tc)
	}
	return out
}

func fddEnvironment() map[string]any {
	return map[string]any{"frequency_band": "B3", "bandwidth_mhz": 20, "duplex_mode": "FDD"}
}
