package series

// Band is the risk band for a total score, used uniformly for point
// coloring, row highlighting, and background shading.
type Band struct {
	Token string
	Hex   string
}

// Bands in descending threshold order.
var (
	BandCritical = Band{Token: "critical", Hex: "#7f1d1d"}
	BandSevere   = Band{Token: "severe", Hex: "#dc2626"}
	BandHigh     = Band{Token: "high", Hex: "#ea580c"}
	BandElevated = Band{Token: "elevated", Hex: "#d97706"}
	BandGuarded  = Band{Token: "guarded", Hex: "#ca8a04"}
	BandLow      = Band{Token: "low", Hex: "#16a34a"}
	BandNone     = Band{Token: "none", Hex: "#6b7280"}
)

// bandThresholds are checked in order; the first match wins.
var bandThresholds = []struct {
	min  float64
	band Band
}{
	{90, BandCritical},
	{80, BandSevere},
	{70, BandHigh},
	{55, BandElevated},
	{40, BandGuarded},
}

// BandFor maps a total score to its band. A missing value yields BandNone.
func BandFor(total *float64) Band {
	if total == nil {
		return BandNone
	}
	for _, t := range bandThresholds {
		if *total >= t.min {
			return t.band
		}
	}
	return BandLow
}
