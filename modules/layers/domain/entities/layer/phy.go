package layer

import "strings"

type Signal struct {
	RSRP float64 `json:"rsrp"`
	RSRQ float64 `json:"rsrq"`
	SINR float64 `json:"sinr"`
	CQI  int     `json:"cqi"`
	RI   int     `json:"ri"`
	PMI  int     `json:"pmi"`
}

type CellSync struct {
	PSSDetected  bool `json:"pssDetection"`
	SSSDetected  bool `json:"sssDetection"`
	PCI          int  `json:"pciDetected"`
	DMRSDetected bool `json:"dmrsDetection"`
	MIBDecoded   bool `json:"mibDecode"`
	SIBDecoded   bool `json:"sibDecode"`
}

type MIMO struct {
	Layers             int      `json:"mimoCapability"`
	AntennaPorts       int      `json:"antennaPorts"`
	TransmissionMode   int      `json:"transmissionMode"`
	BeamformingCapable bool     `json:"beamformingCapable"`
	CACapable          bool     `json:"caCapable"`
	CABands            []string `json:"caBands"`
}

type UEPower struct {
	TxPower       float64 `json:"txPower"`
	MaxTxPower    float64 `json:"maxTxPower"`
	PowerHeadroom float64 `json:"powerHeadroom"`
	BatteryLevel  float64 `json:"batteryLevel"`
	ThermalState  string  `json:"thermalState"`
}

type NeighborCell struct {
	PCI      int     `json:"pci"`
	RSRP     float64 `json:"rsrp"`
	RSRQ     float64 `json:"rsrq"`
	Strength Grade   `json:"strength"`
}

type HandoverCandidate struct {
	PCI      int     `json:"pci"`
	RSRP     float64 `json:"rsrp"`
	Priority int     `json:"priority"`
}

type ChannelMeasurements struct {
	ServingCellRSRP    float64             `json:"servingCellRsrp"`
	NeighborCells      []NeighborCell      `json:"neighborCells"`
	HandoverCandidates []HandoverCandidate `json:"handoverCandidates"`
}

type UEPerformance struct {
	ThroughputDL       float64 `json:"throughputDl"`
	ThroughputUL       float64 `json:"throughputUl"`
	Latency            float64 `json:"latency"`
	PacketLoss         float64 `json:"packetLoss"`
	RetransmissionRate float64 `json:"retransmissionRate"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

type Mobility struct {
	State     string   `json:"mobilityState"`
	Velocity  float64  `json:"velocity"`
	Direction float64  `json:"direction"`
	Location  Location `json:"location"`
}

// UEPhyLayerData is the PHY view of one layer update as seen by the UE.
type UEPhyLayerData struct {
	Signal      Signal              `json:"signal"`
	CellSync    CellSync            `json:"cellSync"`
	MIMO        MIMO                `json:"mimo"`
	Power       UEPower             `json:"power"`
	Channel     ChannelMeasurements `json:"channel"`
	Performance UEPerformance       `json:"performance"`
	Mobility    Mobility            `json:"mobility"`
}

// ue returns the lookup order for a UE parameter: ue_<name>, <name>, then any aliases.
func ue(name string, aliases ...string) []string {
	keys := []string{"ue_" + name, name}
	return append(keys, aliases...)
}

func defaultNeighbors() []NeighborCell {
	return []NeighborCell{
		{PCI: 124, RSRP: -98, RSRQ: -12},
		{PCI: 125, RSRP: -102, RSRQ: -15},
		{PCI: 126, RSRP: -105, RSRQ: -18},
	}
}

func defaultCandidates() []HandoverCandidate {
	return []HandoverCandidate{
		{PCI: 124, RSRP: -98, Priority: 1},
		{PCI: 125, RSRP: -102, Priority: 2},
	}
}

// ParseUEPhyLayerData reads UE PHY information elements. Each parameter is looked
// up as ue_<name> first and <name> second; absent or mistyped values take defaults.
func ParseUEPhyLayerData(ies map[string]any) UEPhyLayerData {
	m := IEMap(ies)
	d := UEPhyLayerData{
		Signal: Signal{
			RSRP: m.Float(-95, ue("rsrp")...),
			RSRQ: m.Float(-10, ue("rsrq")...),
			SINR: m.Float(15, ue("sinr")...),
			CQI:  m.Int(12, ue("cqi")...),
			RI:   m.Int(1, ue("ri")...),
			PMI:  m.Int(0, ue("pmi")...),
		},
		CellSync: CellSync{
			PSSDetected:  m.Bool(true, ue("pss_detection", "pss_detection_success")...),
			SSSDetected:  m.Bool(true, ue("sss_detection", "sss_detection_success")...),
			PCI:          m.Int(123, ue("pci_detected", "pci")...),
			DMRSDetected: m.Bool(true, ue("dmrs_detection")...),
			MIBDecoded:   m.Bool(true, ue("mib_decode", "mib_decode_success")...),
			SIBDecoded:   m.Bool(true, ue("sib_decode", "sib1_decode_success")...),
		},
		MIMO: MIMO{
			Layers:             m.Int(2, ue("mimo_capability", "mimo_layers")...),
			AntennaPorts:       m.Int(2, ue("antenna_ports")...),
			TransmissionMode:   m.Int(4, ue("transmission_mode")...),
			BeamformingCapable: m.Bool(true, ue("beamforming_capable")...),
			CACapable:          m.Bool(true, ue("ca_capable")...),
			CABands:            m.Strings([]string{"B1", "B3", "B7"}, ue("ca_bands")...),
		},
		Power: UEPower{
			TxPower:       m.Float(20.5, ue("tx_power")...),
			MaxTxPower:    m.Float(23, ue("max_tx_power")...),
			PowerHeadroom: m.Float(2.5, ue("power_headroom")...),
			BatteryLevel:  m.Float(85, ue("battery_level")...),
			ThermalState:  strings.ToUpper(m.String("NORMAL", ue("thermal_state")...)),
		},
		Channel: ChannelMeasurements{
			ServingCellRSRP:    m.Float(-95, ue("serving_cell_rsrp")...),
			NeighborCells:      defaultNeighbors(),
			HandoverCandidates: defaultCandidates(),
		},
		Performance: UEPerformance{
			ThroughputDL:       m.Float(45.2, ue("throughput_dl")...),
			ThroughputUL:       m.Float(12.8, ue("throughput_ul")...),
			Latency:            m.Float(15.3, ue("latency")...),
			PacketLoss:         m.Float(0.1, ue("packet_loss")...),
			RetransmissionRate: m.Float(0.05, ue("retransmission_rate")...),
		},
		Mobility: Mobility{
			State:     m.String("STATIONARY", ue("mobility_state")...),
			Velocity:  m.Float(0, ue("velocity")...),
			Direction: m.Float(0, ue("direction")...),
			Location:  Location{Latitude: 37.7749, Longitude: -122.4194, Accuracy: 5},
		},
	}
	if cells, ok := m.maps(ue("neighbor_cells")...); ok {
		d.Channel.NeighborCells = make([]NeighborCell, 0, len(cells))
		for _, c := range cells {
			d.Channel.NeighborCells = append(d.Channel.NeighborCells, NeighborCell{
				PCI:  c.Int(0, "pci"),
				RSRP: c.Float(-140, "rsrp"),
				RSRQ: c.Float(-20, "rsrq"),
			})
		}
	}
	for i := range d.Channel.NeighborCells {
		d.Channel.NeighborCells[i].Strength = NeighborStrength(d.Channel.NeighborCells[i].RSRP)
	}
	if cands, ok := m.maps(ue("handover_candidates")...); ok {
		d.Channel.HandoverCandidates = make([]HandoverCandidate, 0, len(cands))
		for i, c := range cands {
			d.Channel.HandoverCandidates = append(d.Channel.HandoverCandidates, HandoverCandidate{
				PCI:      c.Int(0, "pci"),
				RSRP:     c.Float(-140, "rsrp"),
				Priority: c.Int(i+1, "priority"),
			})
		}
	}
	if loc, ok := m.object(ue("location")...); ok {
		d.Mobility.Location = Location{
			Latitude:  loc.Float(d.Mobility.Location.Latitude, "latitude"),
			Longitude: loc.Float(d.Mobility.Location.Longitude, "longitude"),
			Accuracy:  loc.Float(d.Mobility.Location.Accuracy, "accuracy"),
		}
	}
	return d
}

// PhyReport is UEPhyLayerData with its derived grades.
type PhyReport struct {
	UEPhyLayerData
	SignalStatus  Grade `json:"signalStatus"`
	PowerStatus   Grade `json:"powerStatus"`
	BatteryStatus Grade `json:"batteryStatus"`
	ThermalStatus Grade `json:"thermalStatus"`
}

func NewPhyReport(d UEPhyLayerData) PhyReport {
	return PhyReport{
		UEPhyLayerData: d,
		SignalStatus:   SignalQuality(d.Signal.RSRP, d.Signal.SINR),
		PowerStatus:    PowerStatus(d.Power.TxPower, d.Power.MaxTxPower),
		BatteryStatus:  BatteryStatus(d.Power.BatteryLevel),
		ThermalStatus:  ThermalStatus(d.Power.ThermalState),
	}
}
