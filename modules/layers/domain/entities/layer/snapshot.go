package layer

import "time"

// TrendWindow is the number of samples kept per trend.
const TrendWindow = 20

type MacSample struct {
	Time            time.Time `json:"time"`
	SuccessRate     float64   `json:"successRate"`
	Retransmissions int       `json:"retransmissions"`
	Throughput      float64   `json:"throughput"`
}

type PhySample struct {
	Time         time.Time `json:"time"`
	RSRP         float64   `json:"rsrp"`
	RSRQ         float64   `json:"rsrq"`
	SINR         float64   `json:"sinr"`
	ThroughputDL float64   `json:"dl"`
	ThroughputUL float64   `json:"ul"`
}

// UEActivity summarises the UE-analysis events seen for an execution.
type UEActivity struct {
	IMSI          string         `json:"imsi,omitempty"`
	LastEventType string         `json:"lastEventType"`
	LastLayer     string         `json:"lastLayer"`
	BatteryLevel  int            `json:"batteryLevel"`
	PowerHeadroom float64        `json:"powerHeadroom"`
	EventCounts   map[string]int `json:"eventCounts"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

type MacView struct {
	ExecutionID string      `json:"executionId"`
	Latest      MacReport   `json:"latest"`
	Trend       []MacSample `json:"trend"`
	Samples     int         `json:"samples"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

type PhyView struct {
	ExecutionID string      `json:"executionId"`
	Latest      PhyReport   `json:"latest"`
	Trend       []PhySample `json:"trend"`
	Samples     int         `json:"samples"`
	UE          *UEActivity `json:"ue,omitempty"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Snapshot is everything recorded for one execution.
type Snapshot struct {
	ExecutionID string
	Mac         *MacView
	Phy         *PhyView
	UE          *UEActivity
	UpdatedAt   time.Time
}

func (s *Snapshot) AddMac(d MacLayerData, at time.Time) {
	if s.Mac == nil {
		s.Mac = &MacView{ExecutionID: s.ExecutionID}
	}
	s.Mac.Latest = NewMacReport(d)
	s.Mac.Samples++
	s.Mac.UpdatedAt = at
	s.Mac.Trend = appendWindow(s.Mac.Trend, MacSample{
		Time:            at,
		SuccessRate:     d.HARQSuccessRate(),
		Retransmissions: d.HARQ.RetransmissionCount,
		Throughput:      d.Statistics.Throughput,
	})
	s.UpdatedAt = at
}

func (s *Snapshot) AddPhy(d UEPhyLayerData, at time.Time) {
	if s.Phy == nil {
		s.Phy = &PhyView{ExecutionID: s.ExecutionID}
	}
	s.Phy.Latest = NewPhyReport(d)
	s.Phy.Samples++
	s.Phy.UpdatedAt = at
	s.Phy.Trend = appendWindow(s.Phy.Trend, PhySample{
		Time:         at,
		RSRP:         d.Signal.RSRP,
		RSRQ:         d.Signal.RSRQ,
		SINR:         d.Signal.SINR,
		ThroughputDL: d.Performance.ThroughputDL,
		ThroughputUL: d.Performance.ThroughputUL,
	})
	s.UpdatedAt = at
}

// Clone copies the snapshot deeply enough for readers to hold it without locks.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Mac != nil {
		mac := *s.Mac
		mac.Trend = append([]MacSample(nil), s.Mac.Trend...)
		out.Mac = &mac
	}
	if s.UE != nil {
		ue := *s.UE
		ue.EventCounts = make(map[string]int, len(s.UE.EventCounts))
		for k, v := range s.UE.EventCounts {
			ue.EventCounts[k] = v
		}
		out.UE = &ue
	}
	if s.Phy != nil {
		phy := *s.Phy
		phy.Trend = append([]PhySample(nil), s.Phy.Trend...)
		phy.UE = out.UE
		out.Phy = &phy
	}
	return out
}

func appendWindow[T any](trend []T, sample T) []T {
	trend = append(trend, sample)
	if len(trend) > TrendWindow {
		trend = append([]T(nil), trend[len(trend)-TrendWindow:]...)
	}
	return trend
}
