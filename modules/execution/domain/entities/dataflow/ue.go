package dataflow

import "time"

type UEIdentity struct {
	IMSI   string `json:"imsi"`
	IMEI   string `json:"imei"`
	MSISDN string `json:"msisdn"`
	SUPI   string `json:"supi"`
	GUTI   string `json:"guti"`
	TMSI   string `json:"tmsi"`
}

type UELocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
	CellID    int     `json:"cellId"`
	TAC       int     `json:"tac"`
	PLMN      string  `json:"plmn"`
}

type UESignal struct {
	RSRP     float64 `json:"rsrp"`
	RSRQ     float64 `json:"rsrq"`
	SINR     float64 `json:"sinr"`
	RSSI     float64 `json:"rssi"`
	PathLoss float64 `json:"pathLoss"`
}

type UECapabilities struct {
	MIMO               string `json:"mimo"`
	Bands              []int  `json:"supportedBands"`
	MaxThroughput      string `json:"maxThroughput"`
	CarrierAggregation bool   `json:"carrierAggregation"`
	MIMOSupport        bool   `json:"mimoSupport"`
	QAM256             bool   `json:"qam256"`
	LAA                bool   `json:"laa"`
}

type UEPower struct {
	BatteryLevel  int     `json:"batteryLevel"`
	PowerHeadroom float64 `json:"powerHeadroom"`
	ULTxPowerDbm  float64 `json:"uplinkTxPower"`
}

// UELogMessage is the UE-analysis view of a protocol message.
type UELogMessage struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	EventType    string         `json:"eventType"`
	Layer        string         `json:"layer"`
	Direction    string         `json:"direction"`
	MessageType  string         `json:"messageType"`
	Identity     UEIdentity     `json:"ueIdentity"`
	Location     UELocation     `json:"location"`
	Signal       UESignal       `json:"signalQuality"`
	Capabilities UECapabilities `json:"capabilities"`
	Power        UEPower        `json:"power"`
	Values       map[string]any `json:"values,omitempty"`
	ExecutionID  string         `json:"executionId"`
}
