package layer

type Grade string

const (
	GradeExcellent Grade = "EXCELLENT"
	GradeGood      Grade = "GOOD"
	GradeFair      Grade = "FAIR"
	GradePoor      Grade = "POOR"

	PowerLow     Grade = "LOW"
	PowerOptimal Grade = "OPTIMAL"
	PowerHigh    Grade = "HIGH"
	PowerMaximum Grade = "MAXIMUM"

	BatteryHigh     Grade = "HIGH"
	BatteryMedium   Grade = "MEDIUM"
	BatteryLow      Grade = "LOW"
	BatteryCritical Grade = "CRITICAL"

	CellStrong   Grade = "STRONG"
	CellWeak     Grade = "WEAK"
	CellVeryWeak Grade = "VERY_WEAK"

	ThermalUnknown Grade = "UNKNOWN"
)

// HARQStatus grades the retransmission rate count/limit. A non-positive limit counts as exhausted.
func HARQStatus(retransmissions, limit int) Grade {
	if retransmissions == 0 {
		return GradeExcellent
	}
	if limit <= 0 {
		return GradePoor
	}
	rate := float64(retransmissions) / float64(limit)
	switch {
	case rate < 0.25:
		return GradeGood
	case rate < 0.5:
		return GradeFair
	default:
		return GradePoor
	}
}

func PowerStatus(current, maxPower float64) Grade {
	if maxPower <= 0 {
		return PowerMaximum
	}
	ratio := current / maxPower
	switch {
	case ratio < 0.5:
		return PowerLow
	case ratio < 0.8:
		return PowerOptimal
	case ratio < 0.95:
		return PowerHigh
	default:
		return PowerMaximum
	}
}

// SignalQuality grades RSRP (dBm), requiring a matching SINR (dB) for the upper grades.
func SignalQuality(rsrp, sinr float64) Grade {
	switch {
	case rsrp > -70 && sinr > 20:
		return GradeExcellent
	case rsrp > -85 && sinr > 10:
		return GradeGood
	case rsrp > -100 && sinr > 0:
		return GradeFair
	default:
		return GradePoor
	}
}

func BatteryStatus(level float64) Grade {
	switch {
	case level > 80:
		return BatteryHigh
	case level > 50:
		return BatteryMedium
	case level > 20:
		return BatteryLow
	default:
		return BatteryCritical
	}
}

func ThermalStatus(state string) Grade {
	switch g := Grade(state); g {
	case "NORMAL", "WARM", "HOT", "CRITICAL":
		return g
	default:
		return ThermalUnknown
	}
}

func NeighborStrength(rsrp float64) Grade {
	switch {
	case rsrp > -100:
		return CellStrong
	case rsrp > -110:
		return CellWeak
	default:
		return CellVeryWeak
	}
}
