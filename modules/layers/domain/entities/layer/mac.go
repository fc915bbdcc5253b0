package layer

type HARQ struct {
	ProcessID           int    `json:"processId"`
	RedundancyVersion   int    `json:"redundancyVersion"`
	NewDataIndicator    bool   `json:"newDataIndicator"`
	AckNack             string `json:"ackNack"`
	RetransmissionCount int    `json:"retransmissionCount"`
	MaxRetransmissions  int    `json:"maxRetransmissions"`
}

type Scheduling struct {
	SchedulingRequest   bool `json:"schedulingRequest"`
	BufferStatusReport  int  `json:"bufferStatusReport"`
	PowerHeadroomReport int  `json:"powerHeadroomReport"`
	CQI                 int  `json:"cqiReport"`
	RI                  int  `json:"riReport"`
	PMI                 int  `json:"pmiReport"`
}

type PowerControl struct {
	TPCCommand         int     `json:"tpcCommand"`
	PowerHeadroom      float64 `json:"powerHeadroom"`
	PowerControlOffset float64 `json:"powerControlOffset"`
	MaxTxPower         float64 `json:"maxTxPower"`
	CurrentTxPower     float64 `json:"currentTxPower"`
}

type ResourceAllocation struct {
	AllocatedRBs       int     `json:"allocatedRbs"`
	TotalRBs           int     `json:"totalRbs"`
	Utilization        float64 `json:"rbUtilization"`
	SchedulingPriority int     `json:"schedulingPriority"`
}

type MacStatistics struct {
	PDUCount   int     `json:"pduCount"`
	PDUErrors  int     `json:"pduErrors"`
	Throughput float64 `json:"throughput"`
	Latency    float64 `json:"latency"`
}

type RandomAccess struct {
	Attempts      int     `json:"attempts"`
	SuccessRate   float64 `json:"successRate"`
	PreambleIndex int     `json:"preambleIndex"`
	PowerRamping  int     `json:"powerRamping"`
}

type DRX struct {
	CycleLength         int `json:"cycleLength"`
	InactivityTimer     int `json:"inactivityTimer"`
	RetransmissionTimer int `json:"retransmissionTimer"`
	ShortCycleTimer     int `json:"shortCycleTimer"`
}

// MacLayerData is the MAC view of one layer update.
type MacLayerData struct {
	HARQ       HARQ               `json:"harq"`
	Scheduling Scheduling         `json:"scheduling"`
	Power      PowerControl       `json:"power"`
	Resources  ResourceAllocation `json:"resources"`
	Statistics MacStatistics      `json:"statistics"`
	RACH       RandomAccess       `json:"rach"`
	DRX        DRX                `json:"drx"`
}

// ParseMacLayerData reads MAC information elements, substituting defaults for
// keys that are absent or carry a value of the wrong type. Values are not range checked.
func ParseMacLayerData(ies map[string]any) MacLayerData {
	m := IEMap(ies)
	return MacLayerData{
		HARQ: HARQ{
			ProcessID:           m.Int(0, "harq_process_id"),
			RedundancyVersion:   m.Int(0, "harq_redundancy_version"),
			NewDataIndicator:    m.Bool(true, "harq_new_data_indicator"),
			AckNack:             m.String("ACK", "harq_ack_nack"),
			RetransmissionCount: m.Int(0, "harq_retransmission_count"),
			MaxRetransmissions:  m.Int(4, "harq_max_retransmissions"),
		},
		Scheduling: Scheduling{
			SchedulingRequest:   m.Bool(false, "scheduling_request"),
			BufferStatusReport:  m.Int(0, "buffer_status_report"),
			PowerHeadroomReport: m.Int(0, "power_headroom_report"),
			CQI:                 m.Int(12, "cqi_report"),
			RI:                  m.Int(1, "ri_report"),
			PMI:                 m.Int(0, "pmi_report"),
		},
		Power: PowerControl{
			TPCCommand:         m.Int(1, "tpc_command"),
			PowerHeadroom:      m.Float(2.5, "power_headroom"),
			PowerControlOffset: m.Float(1.2, "power_control_offset"),
			MaxTxPower:         m.Float(23, "max_tx_power"),
			CurrentTxPower:     m.Float(20.5, "current_tx_power"),
		},
		Resources: ResourceAllocation{
			AllocatedRBs:       m.Int(5, "allocated_rbs"),
			TotalRBs:           m.Int(100, "total_rbs"),
			Utilization:        m.Float(0.05, "rb_utilization"),
			SchedulingPriority: m.Int(1, "scheduling_priority"),
		},
		Statistics: MacStatistics{
			PDUCount:   m.Int(0, "mac_pdu_count"),
			PDUErrors:  m.Int(0, "mac_pdu_errors"),
			Throughput: m.Float(0, "mac_throughput"),
			Latency:    m.Float(0, "mac_latency"),
		},
		RACH: RandomAccess{
			Attempts:      m.Int(1, "rach_attempts"),
			SuccessRate:   m.Float(1.0, "rach_success_rate"),
			PreambleIndex: m.Int(3, "rach_preamble_index"),
			PowerRamping:  m.Int(0, "rach_power_ramping"),
		},
		DRX: DRX{
			CycleLength:         m.Int(10, "drx_cycle_length"),
			InactivityTimer:     m.Int(10, "drx_inactivity_timer"),
			RetransmissionTimer: m.Int(8, "drx_retransmission_timer"),
			ShortCycleTimer:     m.Int(2, "drx_short_cycle_timer"),
		},
	}
}

// HARQSuccessRate is 1 without retransmissions and decays linearly towards the retransmission limit.
func (d MacLayerData) HARQSuccessRate() float64 {
	if d.HARQ.RetransmissionCount == 0 {
		return 1
	}
	if d.HARQ.MaxRetransmissions <= 0 {
		return 0
	}
	return max(0, 1-float64(d.HARQ.RetransmissionCount)/float64(d.HARQ.MaxRetransmissions))
}

// MacReport is MacLayerData with its derived grades.
type MacReport struct {
	MacLayerData
	HARQStatus  Grade `json:"harqStatus"`
	PowerStatus Grade `json:"powerStatus"`
}

func NewMacReport(d MacLayerData) MacReport {
	return MacReport{
		MacLayerData: d,
		HARQStatus:   HARQStatus(d.HARQ.RetransmissionCount, d.HARQ.MaxRetransmissions),
		PowerStatus:  PowerStatus(d.Power.CurrentTxPower, d.Power.MaxTxPower),
	}
}
