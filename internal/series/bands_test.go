package series

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBandForThresholds(t *testing.T) {
	cases := []struct {
		value float64
		want  Band
	}{
		{95, BandCritical},
		{90, BandCritical},
		{89.9, BandSevere},
		{80, BandSevere},
		{75, BandHigh},
		{70, BandHigh},
		{60, BandElevated},
		{55, BandElevated},
		{45, BandGuarded},
		{40, BandGuarded},
		{39.9, BandLow},
		{10, BandLow},
		{0, BandLow},
	}

	for _, tc := range cases {
		v := tc.value
		assert.Equal(t, tc.want.Token, BandFor(&v).Token, "value %v", tc.value)
	}
}

func TestBandForNil(t *testing.T) {
	assert.Equal(t, BandNone.Token, BandFor(nil).Token)
}
