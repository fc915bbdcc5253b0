package services

import (
	"strings"
	"time"

	"github.com/labx-platform/testbed/modules/execution/domain/entities/dataflow"
	"github.com/labx-platform/testbed/pkg/eventbus"
)

// SimulatedUE is the fixed device every UE-analysis message is attributed to.
var SimulatedUE = struct {
	Identity     dataflow.UEIdentity
	Location     dataflow.UELocation
	Signal       dataflow.UESignal
	Capabilities dataflow.UECapabilities
	Power        dataflow.UEPower
}{
	Identity: dataflow.UEIdentity{
		IMSI:   "123456789012345",
		IMEI:   "123456789012345",
		MSISDN: "+1234567890",
		SUPI:   "imsi-123456789012345",
		GUTI:   "310-410-1234-56-12345678",
		TMSI:   "12345678",
	},
	Location: dataflow.UELocation{
		Latitude: 40.7128, Longitude: -74.0060, Altitude: 10,
		CellID: 12345, TAC: 67890, PLMN: "310-410",
	},
	Signal: dataflow.UESignal{RSRP: -85, RSRQ: -10, SINR: 15, RSSI: -75, PathLoss: 95},
	Capabilities: dataflow.UECapabilities{
		MIMO:               "4x4",
		Bands:              []int{1, 2, 3, 7, 38, 41, 78},
		MaxThroughput:      "1Gbps",
		CarrierAggregation: true,
		MIMOSupport:        true,
		QAM256:             true,
		LAA:                true,
	},
	Power: dataflow.UEPower{BatteryLevel: 85, PowerHeadroom: 15, ULTxPowerDbm: 20},
}

var ueEventRules = []struct {
	fragment  string
	eventType string
}{
	{"handover", eventbus.UEHandover},
	{"attach", eventbus.UERegistration},
	{"registration", eventbus.UERegistration},
	{"register", eventbus.UERegistration},
	{"servicerequest", eventbus.UEServiceRequest},
	{"invite", eventbus.UECallSetup},
	{"180ringing", eventbus.UECallSetup},
	{"bye", eventbus.UECallRelease},
	{"release", eventbus.UEDisconnected},
	{"detach", eventbus.UEDisconnected},
	{"security", eventbus.UESecurityEvent},
	{"authentication", eventbus.UESecurityEvent},
	{"trackingarea", eventbus.UEMobilityUpdate},
	{"mobility", eventbus.UEMobilityUpdate},
	{"rrcsetupcomplete", eventbus.UEConnected},
	{"connectionsetupcomplete", eventbus.UEConnected},
}

// UEEventType classifies a protocol message into a UE analysis event type.
func UEEventType(messageType string) string {
	key := messageKey(messageType)
	for _, rule := range ueEventRules {
		if strings.Contains(key, rule.fragment) {
			return rule.eventType
		}
	}
	return eventbus.UEPerformanceUpdate
}

// NormalizeDirection maps the spellings used by message flows onto UL/DL.
// Internal steps are reported as uplink.
func NormalizeDirection(d string) string {
	switch strings.ToUpper(strings.TrimSpace(d)) {
	case "DL", "DOWNLINK", "NETWORK_TO_UE":
		return "DL"
	case "UL", "UPLINK", "UE_TO_NETWORK", "INTERNAL":
		return "UL"
	}
	return strings.ToUpper(strings.TrimSpace(d))
}

// ToUELogMessage converts a protocol message into the UE analysis view.
func ToUELogMessage(executionID, id, layer, direction, messageType string, values map[string]any, at time.Time) dataflow.UELogMessage {
	ue := SimulatedUE
	return dataflow.UELogMessage{
		ID:           id,
		Timestamp:    at,
		EventType:    UEEventType(messageType),
		Layer:        layer,
		Direction:    NormalizeDirection(direction),
		MessageType:  messageType,
		Identity:     ue.Identity,
		Location:     ue.Location,
		Signal:       ue.Signal,
		Capabilities: ue.Capabilities,
		Power:        ue.Power,
		Values:       values,
		ExecutionID:  executionID,
	}
}
