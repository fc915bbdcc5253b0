package generators

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/labx-platform/testbed/modules/testcases/domain/entities/testcase"
)

const (
	CellSearchTemplateID = "LTE-001-COMPLETE"
	CellSearchCategory   = "4G_LTE_CELL_SEARCH"
)

type StepDirection string

const (
	UEToNetwork StepDirection = "UE_TO_NETWORK"
	NetworkToUE StepDirection = "NETWORK_TO_UE"
	Internal    StepDirection = "INTERNAL"
)

type InformationElement struct {
	ID                string `json:"ieId"`
	Name              string `json:"name"`
	Type              string `json:"type"`
	Value             any    `json:"value"`
	Description       string `json:"description"`
	Mandatory         bool   `json:"mandatory"`
	StandardReference string `json:"standardReference"`
	Layer             string `json:"layer"`
	Protocol          string `json:"protocol"`
	Encoding          string `json:"encoding"`
	Size              int    `json:"size"`
	Criticality       string `json:"criticality"`
}

type LayerParameterUpdate struct {
	Layer             string  `json:"layer"`
	ParameterName     string  `json:"parameterName"`
	CurrentValue      float64 `json:"currentValue"`
	PreviousValue     float64 `json:"previousValue"`
	Change            float64 `json:"change"`
	ChangePercent     float64 `json:"changePercent"`
	Unit              string  `json:"unit"`
	Timestamp         int64   `json:"timestamp"`
	Trend             string  `json:"trend"`
	Criticality       string  `json:"criticality"`
	Description       string  `json:"description"`
	MeasurementMethod string  `json:"measurementMethod"`
}

type MessageContent struct {
	Hex     string         `json:"hex"`
	Decoded map[string]any `json:"decoded"`
	ASN1    string         `json:"asn1"`
}

type Trigger struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	TimeoutMs   int64  `json:"timeout,omitempty"`
	Description string `json:"description"`
}

type Condition struct {
	Name           string `json:"name"`
	Expression     string `json:"expression"`
	ExpectedResult bool   `json:"expectedResult"`
	Description    string `json:"description"`
	Criticality    string `json:"criticality"`
}

type CellSearchStep struct {
	StepID          string                 `json:"stepId"`
	StepNumber      int                    `json:"stepNumber"`
	StepName        string                 `json:"stepName"`
	Description     string                 `json:"description"`
	Layer           string                 `json:"layer"`
	Protocol        string                 `json:"protocol"`
	Direction       StepDirection          `json:"direction"`
	TimestampMs     int64                  `json:"timestamp"`
	DurationMs      int64                  `json:"duration"`
	IEs             []InformationElement   `json:"informationElements"`
	LayerParameters []LayerParameterUpdate `json:"layerParameters"`
	MessageContent  MessageContent         `json:"messageContent"`
	SuccessCriteria []string               `json:"successCriteria"`
	FailureCriteria []string               `json:"failureCriteria"`
	Triggers        []Trigger              `json:"triggers"`
	Conditions      []Condition            `json:"conditions"`
}

type ParameterChange struct {
	TimestampMs   int64   `json:"timestamp"`
	Value         float64 `json:"value"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Trend         string  `json:"trend"`
	Trigger       string  `json:"trigger"`
	Description   string  `json:"description"`
}

type Thresholds struct {
	Warning  float64 `json:"warning"`
	Error    float64 `json:"error"`
	Critical float64 `json:"critical"`
}

type LayerParameter struct {
	Name               string            `json:"parameterName"`
	Description        string            `json:"description"`
	Unit               string            `json:"unit"`
	CurrentValue       float64           `json:"currentValue"`
	BaseValue          float64           `json:"baseValue"`
	MinValue           float64           `json:"minValue"`
	MaxValue           float64           `json:"maxValue"`
	TypicalValue       float64           `json:"typicalValue"`
	Variation          float64           `json:"variation"`
	UpdateIntervalMs   int64             `json:"updateInterval"`
	CriticalThresholds Thresholds        `json:"criticalThresholds"`
	MeasurementMethod  string            `json:"measurementMethod"`
	StandardReference  string            `json:"standardReference"`
	DynamicChanges     []ParameterChange `json:"dynamicChanges"`
}

type NetworkElement struct {
	Name          string         `json:"name"`
	Type          string         `json:"type"`
	Role          string         `json:"role"`
	Configuration map[string]any `json:"configuration"`
	Capabilities  []string       `json:"capabilities"`
	Interfaces    []string       `json:"interfaces"`
}

type TestEnvironment struct {
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	NetworkTopology string           `json:"networkTopology"`
	Equipment       []string         `json:"equipment"`
	Configuration   map[string]any   `json:"configuration"`
	Constraints     []string         `json:"constraints"`
	NetworkElements []NetworkElement `json:"networkElements"`
}

type CellSearchTemplate struct {
	TestCaseID      string                      `json:"testCaseId"`
	Name            string                      `json:"name"`
	Description     string                      `json:"description"`
	Technology      string                      `json:"technology"`
	Category        string                      `json:"category"`
	Subcategory     string                      `json:"subcategory"`
	Priority        string                      `json:"priority"`
	Complexity      string                      `json:"complexity"`
	DurationSeconds int                         `json:"duration"`
	Steps           []CellSearchStep            `json:"cellSearchFlow"`
	LayerParameters map[string][]LayerParameter `json:"layerParameters"`
	TestEnvironment TestEnvironment             `json:"testEnvironment"`
}

func phyIE(id, name, typ string, value any, description, ref string, size int) InformationElement {
	return InformationElement{
		ID:                id,
		Name:              name,
		Type:              typ,
		Value:             value,
		Description:       description,
		Mandatory:         true,
		StandardReference: ref,
		Layer:             "PHY",
		Protocol:          "PHY",
		Encoding:          "BER",
		Size:              size,
		Criticality:       "REJECT",
	}
}

func update(layer, name string, current, previous, changePercent float64, unit string, ts int64, trend, description, method string) LayerParameterUpdate {
	return LayerParameterUpdate{
		Layer:             layer,
		ParameterName:     name,
		CurrentValue:      current,
		PreviousValue:     previous,
		Change:            current - previous,
		ChangePercent:     changePercent,
		Unit:              unit,
		Timestamp:         ts,
		Trend:             trend,
		Criticality:       "NORMAL",
		Description:       description,
		MeasurementMethod: method,
	}
}

func timer(name string, timeoutMs int64, description string) []Trigger {
	return []Trigger{{Type: "TIMER", Name: name, TimeoutMs: timeoutMs, Description: description}}
}

func condition(name, expression, description string) []Condition {
	return []Condition{{Name: name, Expression: expression, ExpectedResult: true, Description: description, Criticality: "REJECT"}}
}

func stepID(n int) string {
	return fmt.Sprintf("LTE-001-STEP-%03d", n)
}

// NewCellSearchTemplate returns the complete LTE cell search and sync template.
func NewCellSearchTemplate() CellSearchTemplate {
	scan := []map[string]any{
		{"earfcn": 1850, "rssi": -85.2, "cellId": "CELL-001"},
		{"earfcn": 1850, "rssi": -92.1, "cellId": "CELL-002"},
		{"earfcn": 1850, "rssi": -88.7, "cellId": "CELL-003"},
	}
	phichConfig := map[string]any{"duration": "NORMAL", "resource": "ONE_SIXTH"}
	plmns := []map[string]any{{"mcc": "001", "mnc": "01"}}

	steps := []CellSearchStep{
		{
			StepID: stepID(1), StepNumber: 1,
			StepName:    "RSSI Scanning Multiple Cells",
			Description: "UE performs RSSI scanning across multiple cells to identify potential candidates",
			Layer:       "PHY", Protocol: "PHY", Direction: UEToNetwork,
			TimestampMs: 0, DurationMs: 5000,
			IEs: []InformationElement{
				phyIE("RSSI-SCAN-RESULT", "RSSI Scan Result", "SEQUENCE", scan, "RSSI scan results for multiple cells", "3GPP TS 36.101", 24),
				phyIE("SCANNED-EARFCN", "Scanned EARFCN", "INTEGER", 1850, "E-UTRA Absolute Radio Frequency Channel Number", "3GPP TS 36.101", 16),
				phyIE("SCAN-DURATION", "Scan Duration", "INTEGER", 5000, "Duration of RSSI scan in milliseconds", "3GPP TS 36.101", 16),
			},
			LayerParameters: []LayerParameterUpdate{
				update("PHY", "rssi", -85.2, -100.0, 14.8, "dBm", 0, "INCREASING", "Received Signal Strength Indicator", "RSSI measurement"),
				update("PHY", "scan_progress", 100.0, 0.0, 100.0, "%", 0, "INCREASING", "RSSI scan progress percentage", "Progress tracking"),
			},
			MessageContent: MessageContent{
				Hex:     "0x1A2B3C4D5E6F",
				Decoded: map[string]any{"scanResults": scan, "scanDuration": 5000},
				ASN1:    "RSSI-Scan-Result ::= SEQUENCE { earfcn INTEGER, rssi INTEGER, cellId OCTET STRING }",
			},
			SuccessCriteria: []string{"RSSI scan completed", "Multiple cells detected", "Best cell identified"},
			FailureCriteria: []string{"RSSI scan timeout", "No cells detected", "Scan failure"},
			Triggers:        timer("RSSI Scan Timer", 10000, "Maximum time for RSSI scanning"),
			Conditions:      condition("RSSI Threshold", "rssi > -100", "RSSI must be above -100 dBm"),
		},
		{
			StepID: stepID(2), StepNumber: 2,
			StepName:    "PSS Detection and Sync",
			Description: "UE detects Primary Synchronization Signal and achieves time synchronization",
			Layer:       "PHY", Protocol: "PHY", Direction: UEToNetwork,
			TimestampMs: 5000, DurationMs: 2000,
			IEs: []InformationElement{
				phyIE("PSS-INDEX", "PSS Index", "INTEGER", 0, "Primary Synchronization Signal Index (0-2)", "3GPP TS 36.211", 2),
				phyIE("PSS-CORRELATION", "PSS Correlation", "REAL", 0.95, "PSS correlation peak value", "3GPP TS 36.211", 16),
				phyIE("PSS-TIMING", "PSS Timing", "INTEGER", 1234, "PSS timing offset in samples", "3GPP TS 36.211", 16),
			},
			LayerParameters: []LayerParameterUpdate{
				update("PHY", "pss_correlation", 0.95, 0.0, 95.0, "ratio", 5000, "INCREASING", "PSS correlation peak value", "Correlation analysis"),
				update("PHY", "timing_offset", 1234, 0, 100.0, "samples", 5000, "STABLE", "Timing offset from PSS detection", "Timing measurement"),
			},
			MessageContent: MessageContent{
				Hex:     "0x2B3C4D5E",
				Decoded: map[string]any{"pssIndex": 0, "correlation": 0.95, "timing": 1234},
				ASN1:    "PSS-Index ::= 0, PSS-Correlation ::= 0.95, PSS-Timing ::= 1234",
			},
			SuccessCriteria: []string{"PSS detected", "Timing sync achieved", "Correlation > 0.8"},
			FailureCriteria: []string{"PSS detection failed", "Timing sync failed", "Low correlation"},
			Triggers:        timer("PSS Detection Timer", 5000, "Maximum time for PSS detection"),
			Conditions:      condition("PSS Correlation Threshold", "pss_correlation > 0.8", "PSS correlation must be above 0.8"),
		},
		{
			StepID: stepID(3), StepNumber: 3,
			StepName:    "SSS Detection and PCI Calculation",
			Description: "UE detects Secondary Synchronization Signal and calculates Physical Cell ID",
			Layer:       "PHY", Protocol: "PHY", Direction: UEToNetwork,
			TimestampMs: 7000, DurationMs: 1500,
			IEs: []InformationElement{
				phyIE("SSS-INDEX", "SSS Index", "INTEGER", 0, "Secondary Synchronization Signal Index (0-167)", "3GPP TS 36.211", 8),
				phyIE("PCI", "Physical Cell ID", "INTEGER", 123, "Physical Cell Identifier (0-503)", "3GPP TS 36.211", 9),
				phyIE("SSS-CORRELATION", "SSS Correlation", "REAL", 0.92, "SSS correlation peak value", "3GPP TS 36.211", 16),
			},
			LayerParameters: []LayerParameterUpdate{
				update("PHY", "sss_correlation", 0.92, 0.0, 92.0, "ratio", 7000, "INCREASING", "SSS correlation peak value", "Correlation analysis"),
				update("PHY", "pci", 123, 0, 100.0, "id", 7000, "STABLE", "Physical Cell ID", "PCI calculation"),
			},
			MessageContent: MessageContent{
				Hex:     "0x3C4D5E6F",
				Decoded: map[string]any{"sssIndex": 0, "pci": 123, "correlation": 0.92},
				ASN1:    "SSS-Index ::= 0, PCI ::= 123, SSS-Correlation ::= 0.92",
			},
			SuccessCriteria: []string{"SSS detected", "PCI calculated", "Correlation > 0.8"},
			FailureCriteria: []string{"SSS detection failed", "PCI calculation failed", "Low correlation"},
			Triggers:        timer("SSS Detection Timer", 3000, "Maximum time for SSS detection"),
			Conditions:      condition("SSS Correlation Threshold", "sss_correlation > 0.8", "SSS correlation must be above 0.8"),
		},
		{
			StepID: stepID(4), StepNumber: 4,
			StepName:    "DMRS Detection",
			Description: "UE detects Demodulation Reference Signal for channel estimation",
			Layer:       "PHY", Protocol: "PHY", Direction: NetworkToUE,
			TimestampMs: 8500, DurationMs: 1000,
			IEs: []InformationElement{
				phyIE("DMRS-SEQUENCE", "DMRS Sequence", "BIT_STRING", "1101010101010101", "DMRS sequence bits", "3GPP TS 36.211", 16),
				phyIE("DMRS-POWER", "DMRS Power", "REAL", -85.5, "DMRS received power in dBm", "3GPP TS 36.211", 16),
				phyIE("DMRS-SNR", "DMRS SNR", "REAL", 15.2, "DMRS Signal to Noise Ratio in dB", "3GPP TS 36.211", 16),
			},
			LayerParameters: []LayerParameterUpdate{
				update("PHY", "dmrs_power", -85.5, -90.0, 5.0, "dBm", 8500, "INCREASING", "DMRS received power", "Power measurement"),
				update("PHY", "dmrs_snr", 15.2, 12.0, 26.7, "dB", 8500, "INCREASING", "DMRS Signal to Noise Ratio", "SNR measurement"),
			},
			MessageContent: MessageContent{
				Hex:     "0x4D5E6F70",
				Decoded: map[string]any{"dmrsSequence": "1101010101010101", "power": -85.5, "snr": 15.2},
				ASN1:    "DMRS-Sequence ::= BIT STRING, DMRS-Power ::= -85.5, DMRS-SNR ::= 15.2",
			},
			SuccessCriteria: []string{"DMRS detected", "Channel estimation successful", "SNR > 10 dB"},
			FailureCriteria: []string{"DMRS detection failed", "Channel estimation failed", "Low SNR"},
			Triggers:        timer("DMRS Detection Timer", 2000, "Maximum time for DMRS detection"),
			Conditions:      condition("DMRS SNR Threshold", "dmrs_snr > 10", "DMRS SNR must be above 10 dB"),
		},
		{
			StepID: stepID(5), StepNumber: 5,
			StepName:    "PBCH-MIB Decode",
			Description: "UE decodes Physical Broadcast Channel to obtain Master Information Block",
			Layer:       "PHY", Protocol: "PHY", Direction: NetworkToUE,
			TimestampMs: 9500, DurationMs: 2000,
			IEs: []InformationElement{
				phyIE("DL-BANDWIDTH", "DL Bandwidth", "ENUMERATED", "n100", "Downlink bandwidth configuration (n6, n15, n25, n50, n75, n100)", "3GPP TS 36.331", 3),
				phyIE("PHICH-CONFIG", "PHICH Configuration", "SEQUENCE", phichConfig, "PHICH configuration parameters", "3GPP TS 36.331", 8),
				phyIE("SYSTEM-FRAME-NUMBER", "System Frame Number", "INTEGER", 1234, "System Frame Number (0-1023)", "3GPP TS 36.331", 10),
			},
			LayerParameters: []LayerParameterUpdate{
				update("PHY", "mib_decode_success", 1, 0, 100.0, "boolean", 9500, "STABLE", "MIB decode success flag", "Decode verification"),
				update("PHY", "dl_bandwidth", 100, 0, 100.0, "MHz", 9500, "STABLE", "Downlink bandwidth", "MIB decode"),
			},
			MessageContent: MessageContent{
				Hex:     "0x5E6F7081",
				Decoded: map[string]any{"dlBandwidth": "n100", "phichConfig": phichConfig, "sfn": 1234},
				ASN1:    "DL-Bandwidth ::= n100, PHICH-Config ::= { duration NORMAL, resource ONE_SIXTH }, SFN ::= 1234",
			},
			SuccessCriteria: []string{"MIB decoded successfully", "Bandwidth identified", "SFN obtained"},
			FailureCriteria: []string{"MIB decode failed", "Invalid bandwidth", "SFN error"},
			Triggers:        timer("MIB Decode Timer", 5000, "Maximum time for MIB decode"),
			Conditions:      condition("MIB Decode Success", "mib_decode_success == 1", "MIB must be decoded successfully"),
		},
		{
			StepID: stepID(6), StepNumber: 6,
			StepName:    "PHICH Decode",
			Description: "UE decodes the Physical HARQ Indicator Channel using the MIB PHICH configuration",
			Layer:       "PHY", Protocol: "PHY", Direction: NetworkToUE,
			TimestampMs: 11500, DurationMs: 1000,
			IEs: []InformationElement{
				phyIE("PHICH-DURATION", "PHICH Duration", "ENUMERATED", "NORMAL", "PHICH duration (NORMAL, EXTENDED)", "3GPP TS 36.211", 1),
				phyIE("PHICH-RESOURCE", "PHICH Resource", "ENUMERATED", "ONE_SIXTH", "PHICH resource Ng (ONE_SIXTH, HALF, ONE, TWO)", "3GPP TS 36.211", 2),
				phyIE("PHICH-GROUPS", "PHICH Groups", "INTEGER", 4, "Number of PHICH groups", "3GPP TS 36.211", 8),
			},
			LayerParameters: []LayerParameterUpdate{
				update("PHY", "phich_groups", 4, 0, 100.0, "count", 11500, "STABLE", "Number of PHICH groups", "PHICH decode"),
			},
			MessageContent: MessageContent{
				Hex:     "0x6F708192",
				Decoded: map[string]any{"phichDuration": "NORMAL", "phichResource": "ONE_SIXTH", "phichGroups": 4},
				ASN1:    "PHICH-Duration ::= normal, PHICH-Resource ::= oneSixth",
			},
			SuccessCriteria: []string{"PHICH decoded", "PHICH groups derived"},
			FailureCriteria: []string{"PHICH decode failed", "Invalid PHICH configuration"},
			Triggers:        timer("PHICH Decode Timer", 2000, "Maximum time for PHICH decode"),
			Conditions:      condition("PHICH Groups Present", "phich_groups > 0", "At least one PHICH group must be configured"),
		},
		{
			StepID: stepID(7), StepNumber: 7,
			StepName:    "PCFICH Decode",
			Description: "UE decodes the Physical Control Format Indicator Channel to obtain the control region size",
			Layer:       "PHY", Protocol: "PHY", Direction: NetworkToUE,
			TimestampMs: 12500, DurationMs: 500,
			IEs: []InformationElement{
				phyIE("CFI", "Control Format Indicator", "INTEGER", 2, "Number of OFDM symbols used for PDCCH (1-3)", "3GPP TS 36.211", 2),
				phyIE("PCFICH-REG-COUNT", "PCFICH REG Count", "INTEGER", 4, "Resource element groups carrying PCFICH", "3GPP TS 36.211", 4),
			},
			LayerParameters: []LayerParameterUpdate{
				update("PHY", "cfi", 2, 0, 100.0, "symbols", 12500, "STABLE", "Control Format Indicator", "PCFICH decode"),
			},
			MessageContent: MessageContent{
				Hex:     "0x708192A3",
				Decoded: map[string]any{"cfi": 2, "regCount": 4},
				ASN1:    "CFI ::= 2",
			},
			SuccessCriteria: []string{"PCFICH decoded", "CFI obtained"},
			FailureCriteria: []string{"PCFICH decode failed", "Invalid CFI"},
			Triggers:        timer("PCFICH Decode Timer", 1000, "Maximum time for PCFICH decode"),
			Conditions:      condition("CFI Range", "cfi >= 1 && cfi <= 3", "CFI must be between 1 and 3"),
		},
		{
			StepID: stepID(8), StepNumber: 8,
			StepName:    "PDCCH Blind Decode",
			Description: "UE blind decodes PDCCH candidates in the common search space for SI-RNTI",
			Layer:       "PHY", Protocol: "PHY", Direction: NetworkToUE,
			TimestampMs: 13000, DurationMs: 1500,
			IEs: []InformationElement{
				phyIE("DCI-FORMAT", "DCI Format", "ENUMERATED", "1A", "Downlink control information format", "3GPP TS 36.212", 4),
				phyIE("SI-RNTI", "SI-RNTI", "INTEGER", 65535, "System information RNTI", "3GPP TS 36.321", 16),
				phyIE("AGGREGATION-LEVEL", "Aggregation Level", "INTEGER", 4, "CCE aggregation level (1, 2, 4, 8)", "3GPP TS 36.213", 4),
				phyIE("CCE-INDEX", "CCE Index", "INTEGER", 0, "First control channel element of the candidate", "3GPP TS 36.213", 8),
			},
			LayerParameters: []LayerParameterUpdate{
				update("PHY", "pdcch_decode_success", 1, 0, 100.0, "boolean", 13000, "STABLE", "PDCCH decode success flag", "Blind decoding"),
				update("PHY", "aggregation_level", 4, 0, 100.0, "cce", 13000, "STABLE", "PDCCH aggregation level", "Blind decoding"),
			},
			MessageContent: MessageContent{
				Hex:     "0x8192A3B4",
				Decoded: map[string]any{"dciFormat": "1A", "rnti": 65535, "aggregationLevel": 4, "cceIndex": 0},
				ASN1:    "DCI-Format1A ::= SEQUENCE { rnti SI-RNTI, aggregationLevel 4 }",
			},
			SuccessCriteria: []string{"PDCCH decoded", "DCI for SI-RNTI found", "PDSCH allocation obtained"},
			FailureCriteria: []string{"PDCCH decode failed", "CRC mismatch", "No DCI found"},
			Triggers:        timer("PDCCH Decode Timer", 3000, "Maximum time for PDCCH blind decoding"),
			Conditions:      condition("PDCCH Decode Success", "pdcch_decode_success == 1", "PDCCH must be decoded successfully"),
		},
		{
			StepID: stepID(9), StepNumber: 9,
			StepName:    "PDSCH-SIB1 Decode",
			Description: "UE decodes SystemInformationBlockType1 on PDSCH to obtain PLMN and cell access information",
			Layer:       "RRC", Protocol: "RRC", Direction: NetworkToUE,
			TimestampMs: 14500, DurationMs: 3000,
			IEs: []InformationElement{
				rrcIE("PLMN-IDENTITY-LIST", "PLMN Identity List", "SEQUENCE", plmns, "Broadcast PLMN identities", 24),
				rrcIE("TRACKING-AREA-CODE", "Tracking Area Code", "BIT_STRING", 1, "Tracking area of the cell", 16),
				rrcIE("CELL-IDENTITY", "Cell Identity", "BIT_STRING", "0x1234567", "E-UTRAN cell identity", 28),
				rrcIE("CELL-BARRED", "Cell Barred", "ENUMERATED", "notBarred", "Cell barring status", 1),
				rrcIE("Q-RX-LEV-MIN", "Q-RxLevMin", "INTEGER", -70, "Minimum required RX level (x2 dBm)", 7),
				rrcIE("SI-WINDOW-LENGTH", "SI Window Length", "ENUMERATED", "ms20", "System information window length", 3),
			},
			LayerParameters: []LayerParameterUpdate{
				update("RRC", "sib1_decode_success", 1, 0, 100.0, "boolean", 14500, "STABLE", "SIB1 decode success flag", "Decode verification"),
				update("RRC", "q_rx_lev_min", -140, 0, 100.0, "dBm", 14500, "STABLE", "Minimum required RX level", "SIB1 decode"),
			},
			MessageContent: MessageContent{
				Hex: "0x92A3B4C5",
				Decoded: map[string]any{
					"plmnIdentityList": plmns,
					"trackingAreaCode": 1,
					"cellIdentity":     "0x1234567",
					"cellBarred":       "notBarred",
					"qRxLevMin":        -70,
					"siWindowLength":   "ms20",
				},
				ASN1: "SystemInformationBlockType1 ::= SEQUENCE { cellAccessRelatedInfo, cellSelectionInfo, si-WindowLength }",
			},
			SuccessCriteria: []string{"SIB1 decoded", "PLMN list obtained", "Cell not barred"},
			FailureCriteria: []string{"SIB1 decode failed", "Cell barred", "Missing PLMN list"},
			Triggers:        timer("SIB1 Decode Timer", 8000, "Maximum time for SIB1 acquisition"),
			Conditions:      condition("SIB1 Decode Success", "sib1_decode_success == 1", "SIB1 must be decoded successfully"),
		},
		{
			StepID: stepID(10), StepNumber: 10,
			StepName:    "PLMN Selection and Match",
			Description: "UE matches the broadcast PLMN against its selected PLMN and evaluates the cell selection criterion",
			Layer:       "NAS", Protocol: "NAS", Direction: Internal,
			TimestampMs: 17500, DurationMs: 2500,
			IEs: []InformationElement{
				nasIE("SELECTED-PLMN", "Selected PLMN", "OCTET_STRING", "001-01", "PLMN selected by the NAS", 24),
				nasIE("PLMN-MATCH", "PLMN Match", "BOOLEAN", true, "Broadcast PLMN matches the selected PLMN", 1),
				nasIE("SRXLEV", "Cell Selection RX Level", "REAL", 25.0, "Cell selection criterion S value in dB", 16),
			},
			LayerParameters: []LayerParameterUpdate{
				update("NAS", "plmn_match", 1, 0, 100.0, "boolean", 17500, "STABLE", "PLMN match flag", "PLMN comparison"),
				update("NAS", "srxlev", 25.0, 0, 100.0, "dB", 17500, "INCREASING", "Cell selection criterion S", "Cell selection evaluation"),
			},
			MessageContent: MessageContent{
				Hex:     "0xA3B4C5D6",
				Decoded: map[string]any{"selectedPlmn": "001-01", "plmnMatch": true, "srxlev": 25.0},
				ASN1:    "PLMN-Identity ::= SEQUENCE { mcc 001, mnc 01 }",
			},
			SuccessCriteria: []string{"PLMN matched", "Cell selection criterion fulfilled", "Cell camped"},
			FailureCriteria: []string{"PLMN mismatch", "Srxlev below zero", "Cell selection failure"},
			Triggers:        timer("PLMN Selection Timer", 5000, "Maximum time for PLMN selection"),
			Conditions:      condition("Suitable Cell", "srxlev > 0 && plmn_match == 1", "Cell must be suitable for camping"),
		},
	}

	return CellSearchTemplate{
		TestCaseID:      CellSearchTemplateID,
		Name:            "LTE Cell Search & Sync Complete",
		Description:     "Complete LTE cell search procedure: RSSI scanning, PSS/SSS sync, PCI, DMRS, PBCH-MIB, PHICH, PCFICH, PDCCH, PDSCH-SIB1, PLMN match",
		Technology:      "LTE",
		Category:        "CELL_SEARCH",
		Subcategory:     "COMPLETE",
		Priority:        "CRITICAL",
		Complexity:      "VERY_COMPLEX",
		DurationSeconds: 60,
		Steps:           steps,
		LayerParameters: cellSearchLayerParameters(),
		TestEnvironment: cellSearchEnvironment(),
	}
}

func rrcIE(id, name, typ string, value any, description string, size int) InformationElement {
	ie := phyIE(id, name, typ, value, description, "3GPP TS 36.331", size)
	ie.Layer, ie.Protocol, ie.Encoding = "RRC", "RRC", "PER"
	return ie
}

func nasIE(id, name, typ string, value any, description string, size int) InformationElement {
	ie := phyIE(id, name, typ, value, description, "3GPP TS 23.122", size)
	ie.Layer, ie.Protocol, ie.Encoding = "NAS", "NAS", "JSON"
	ie.Criticality = "NOTIFY"
	return ie
}

func change(ts int64, value, delta, percent float64, trend, trigger, description string) ParameterChange {
	return ParameterChange{TimestampMs: ts, Value: value, Change: delta, ChangePercent: percent, Trend: trend, Trigger: trigger, Description: description}
}

func cellSearchLayerParameters() map[string][]LayerParameter {
	return map[string][]LayerParameter{
		"PHY": {
			{
				Name: "rssi", Description: "Received Signal Strength Indicator", Unit: "dBm",
				CurrentValue: -85.2, BaseValue: -100.0, MinValue: -140.0, MaxValue: -44.0, TypicalValue: -85.0, Variation: 5.0,
				UpdateIntervalMs:   100,
				CriticalThresholds: Thresholds{Warning: -90.0, Error: -100.0, Critical: -110.0},
				MeasurementMethod:  "RSSI measurement", StandardReference: "3GPP TS 36.101",
				DynamicChanges: []ParameterChange{
					change(0, -100.0, 0.0, 0.0, "STABLE", "Initial measurement", "Initial RSSI measurement"),
					change(1000, -95.0, 5.0, 5.0, "INCREASING", "Signal improvement", "RSSI improving during scan"),
					change(2000, -90.0, 5.0, 5.3, "INCREASING", "Better cell found", "RSSI improving with better cell"),
					change(3000, -85.2, 4.8, 5.3, "INCREASING", "Best cell selected", "RSSI at best cell"),
				},
			},
			{
				Name: "rsrp", Description: "Reference Signal Received Power", Unit: "dBm",
				CurrentValue: -95.2, BaseValue: -100.0, MinValue: -140.0, MaxValue: -44.0, TypicalValue: -95.0, Variation: 3.0,
				UpdateIntervalMs:   200,
				CriticalThresholds: Thresholds{Warning: -100.0, Error: -110.0, Critical: -120.0},
				MeasurementMethod:  "RSRP measurement", StandardReference: "3GPP TS 36.101",
				DynamicChanges: []ParameterChange{
					change(5000, -100.0, 0.0, 0.0, "STABLE", "PSS detection start", "RSRP measurement during PSS detection"),
					change(6000, -98.5, 1.5, 1.5, "INCREASING", "PSS sync achieved", "RSRP improving with PSS sync"),
					change(7000, -96.0, 2.5, 2.5, "INCREASING", "SSS detection", "RSRP improving with SSS detection"),
					change(8000, -95.2, 0.8, 0.8, "INCREASING", "DMRS detection", "RSRP stable after DMRS detection"),
				},
			},
			{
				Name: "rsrq", Description: "Reference Signal Received Quality", Unit: "dB",
				CurrentValue: -10.5, BaseValue: -15.0, MinValue: -20.0, MaxValue: -3.0, TypicalValue: -10.0, Variation: 2.0,
				UpdateIntervalMs:   200,
				CriticalThresholds: Thresholds{Warning: -12.0, Error: -15.0, Critical: -18.0},
				MeasurementMethod:  "RSRQ measurement", StandardReference: "3GPP TS 36.101",
				DynamicChanges: []ParameterChange{
					change(5000, -15.0, 0.0, 0.0, "STABLE", "PSS detection start", "RSRQ measurement during PSS detection"),
					change(6000, -13.5, 1.5, 10.0, "INCREASING", "PSS sync achieved", "RSRQ improving with PSS sync"),
					change(7000, -12.0, 1.5, 11.1, "INCREASING", "SSS detection", "RSRQ improving with SSS detection"),
					change(8000, -10.5, 1.5, 12.5, "INCREASING", "DMRS detection", "RSRQ stable after DMRS detection"),
				},
			},
			{
				Name: "sinr", Description: "Signal to Interference plus Noise Ratio", Unit: "dB",
				CurrentValue: 15.3, BaseValue: 10.0, MinValue: -5.0, MaxValue: 30.0, TypicalValue: 15.0, Variation: 3.0,
				UpdateIntervalMs:   200,
				CriticalThresholds: Thresholds{Warning: 5.0, Error: 0.0, Critical: -5.0},
				MeasurementMethod:  "SINR measurement", StandardReference: "3GPP TS 36.101",
				DynamicChanges: []ParameterChange{
					change(5000, 10.0, 0.0, 0.0, "STABLE", "PSS detection start", "SINR measurement during PSS detection"),
					change(6000, 12.5, 2.5, 25.0, "INCREASING", "PSS sync achieved", "SINR improving with PSS sync"),
					change(7000, 14.0, 1.5, 12.0, "INCREASING", "SSS detection", "SINR improving with SSS detection"),
					change(8000, 15.3, 1.3, 9.3, "INCREASING", "DMRS detection", "SINR stable after DMRS detection"),
				},
			},
		},
		"MAC": {{
			Name: "throughput", Description: "MAC layer throughput", Unit: "Mbps",
			MaxValue: 150.0, TypicalValue: 50.0, Variation: 10.0, UpdateIntervalMs: 1000,
			CriticalThresholds: Thresholds{Warning: 10.0, Error: 5.0, Critical: 1.0},
			MeasurementMethod:  "MAC throughput measurement", StandardReference: "3GPP TS 36.321",
			DynamicChanges:     []ParameterChange{},
		}},
		"RLC": {{
			Name: "buffer_occupancy", Description: "RLC buffer occupancy", Unit: "bytes",
			MaxValue: 1000000, TypicalValue: 10000, Variation: 1000, UpdateIntervalMs: 50,
			CriticalThresholds: Thresholds{Warning: 800000, Error: 900000, Critical: 950000},
			MeasurementMethod:  "RLC buffer measurement", StandardReference: "3GPP TS 36.322",
			DynamicChanges:     []ParameterChange{},
		}},
		"PDCP": {{
			Name: "sequence_number", Description: "PDCP sequence number", Unit: "count",
			MaxValue: 4095, Variation: 1, UpdateIntervalMs: 10,
			CriticalThresholds: Thresholds{Warning: 4000, Error: 4090, Critical: 4095},
			MeasurementMethod:  "PDCP sequence tracking", StandardReference: "3GPP TS 36.323",
			DynamicChanges:     []ParameterChange{},
		}},
		"RRC": {{
			Name: "connection_state", Description: "RRC connection state", Unit: "state",
			MaxValue: 2, TypicalValue: 1, Variation: 1, UpdateIntervalMs: 1000,
			MeasurementMethod: "RRC state tracking", StandardReference: "3GPP TS 36.331",
			DynamicChanges:    []ParameterChange{},
		}},
		"NAS": {{
			Name: "attach_state", Description: "NAS attach state", Unit: "state",
			MaxValue: 3, TypicalValue: 2, Variation: 1, UpdateIntervalMs: 5000,
			MeasurementMethod: "NAS state tracking", StandardReference: "3GPP TS 24.301",
			DynamicChanges:    []ParameterChange{},
		}},
	}
}

func enodeB(name, role string, pci, power int, capabilities ...string) NetworkElement {
	return NetworkElement{
		Name:          name,
		Type:          "eNodeB",
		Role:          role,
		Configuration: map[string]any{"earfcn": 1850, "bandwidth": 20, "pci": pci, "power": power},
		Capabilities:  capabilities,
		Interfaces:    []string{"S1-MME", "S1-U", "X2"},
	}
}

func cellSearchEnvironment() TestEnvironment {
	return TestEnvironment{
		Name:            "LTE Cell Search Complete Environment",
		Description:     "Complete LTE cell search environment with multiple cells and full monitoring",
		NetworkTopology: "Multiple eNodeBs with EPC",
		Equipment:       []string{"eNodeB-001", "eNodeB-002", "eNodeB-003", "MME", "SGW", "PGW", "UE", "Spectrum Analyzer"},
		Configuration: map[string]any{
			"earfcn":    1850,
			"bandwidth": 20,
			"cells": []map[string]any{
				{"cellId": "CELL-001", "pci": 123, "power": 46},
				{"cellId": "CELL-002", "pci": 456, "power": 43},
				{"cellId": "CELL-003", "pci": 789, "power": 40},
			},
		},
		Constraints: []string{"Multiple cells", "No interference", "Complete cell search monitoring"},
		NetworkElements: []NetworkElement{
			enodeB("eNodeB-001", "Primary Cell", 123, 46, "LTE", "MIMO", "CA"),
			enodeB("eNodeB-002", "Secondary Cell", 456, 43, "LTE", "MIMO"),
			enodeB("eNodeB-003", "Tertiary Cell", 789, 40, "LTE", "MIMO"),
		},
	}
}

func (d StepDirection) messageDirection() testcase.Direction {
	if d == NetworkToUE {
		return testcase.DirectionDL
	}
	return testcase.DirectionUL
}

// ToTestCase flattens the template into a catalog record. Each step becomes one
// message whose values carry the step's IEs and parameter updates.
func (t CellSearchTemplate) ToTestCase(now time.Time) testcase.TestCase {
	flow := make([]testcase.MessageStep, 0, len(t.Steps))
	success := map[string]any{}
	failure := map[string]any{}
	for _, s := range t.Steps {
		values := map[string]any{
			"step_id":     s.StepID,
			"direction":   string(s.Direction),
			"duration_ms": s.DurationMs,
			"hex":         s.MessageContent.Hex,
		}
		for _, ie := range s.IEs {
			values[ie.ID] = ie.Value
		}
		for _, p := range s.LayerParameters {
			values[p.ParameterName] = p.CurrentValue
		}
		flow = append(flow, testcase.MessageStep{
			TimestampMs: s.TimestampMs,
			Direction:   s.Direction.messageDirection(),
			Layer:       s.Layer,
			Message:     s.StepName,
			Values:      values,
		})
		success[s.StepID] = s.SuccessCriteria
		failure[s.StepID] = s.FailureCriteria
	}

	layers := map[string]any{}
	for layer, params := range t.LayerParameters {
		byName := map[string]any{}
		for _, p := range params {
			byName[p.Name] = p.CurrentValue
		}
		layers[layer] = byName
	}

	return testcase.TestCase{
		ID:                 uuid.NewSHA1(uuid.NameSpaceOID, []byte(t.TestCaseID)),
		TestCaseID:         t.TestCaseID,
		Name:               t.Name,
		Description:        t.Description,
		Category:           CellSearchCategory,
		Protocol:           t.Technology,
		ProtocolVersion:    ProtocolVersionLTE,
		TestType:           "functional",
		Complexity:         testcase.ComplexityExpert,
		Priority:           testcase.PriorityCritical,
		DurationMs:         int64(t.DurationSeconds) * 1000,
		Tags:               []string{"cell-search", "synchronization", "system-information", "plmn-selection"},
		MessageFlow:        flow,
		Layers:             layers,
		Prerequisites:      map[string]any{"ue_powered_on": true, "sim_inserted": true, "rf_configured": true},
		ExpectedResults:    map[string]any{"cell_selected": true, "mib_decoded": true, "sib1_decoded": true, "plmn_matched": true},
		SuccessCriteria:    success,
		FailureScenarios:   failure,
		PerformanceMetrics: map[string]any{"cell_search_time_ms": "< 20000", "rsrp_dbm": "> -100"},
		TestEnvironment: map[string]any{
			"name":             t.TestEnvironment.Name,
			"network_topology": t.TestEnvironment.NetworkTopology,
			"equipment":        t.TestEnvironment.Equipment,
			"configuration":    t.TestEnvironment.Configuration,
		},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
