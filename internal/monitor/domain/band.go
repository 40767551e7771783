package monitor

// Band is an ordered temperature category determined by configured
// upper bounds.
type Band string

const (
	BandUnknown Band = ""
	BandCold    Band = "cold"
	BandCool    Band = "cool"
	BandAverage Band = "average"
	BandWarm    Band = "warm"
	BandHot     Band = "hot"
)

// Rank returns the band's position in ascending temperature order.
func (b Band) Rank() int {
	switch b {
	case BandCold:
		return 1
	case BandCool:
		return 2
	case BandAverage:
		return 3
	case BandWarm:
		return 4
	case BandHot:
		return 5
	default:
		return 0
	}
}

// Classify maps a calibrated value to a band. It is a pure function of the
// value and the configured bounds: the lowest band whose upper bound is at
// or above the value wins; values above WarmMax are hot. Values below
// MinRealistic are not a band at all — ok is false and the caller decides
// the misposition semantics.
func (t Thresholds) Classify(calibrated float64) (Band, bool) {
	if calibrated < t.MinRealistic {
		return BandUnknown, false
	}
	switch {
	case calibrated <= t.ColdMax:
		return BandCold, true
	case calibrated <= t.CoolMax:
		return BandCool, true
	case calibrated <= t.AverageMax:
		return BandAverage, true
	case calibrated <= t.WarmMax:
		return BandWarm, true
	default:
		return BandHot, true
	}
}
