package costs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var bought = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

func TestCapitalGainsTax(t *testing.T) {
	t.Parallel()
	c := DefaultCapitalGains()

	tests := []struct {
		name     string
		exit     float64
		days     int
		units    int64
		wantType TaxType
		wantTax  float64
		wantNet  float64
	}{
		{"short term", 150, 100, 100, STCG, 1000, 4000},
		{"long term above exemption", 2100, 400, 100, LTCG, 9375, 190625},
		{"long term inside exemption", 1100, 400, 100, LTCG, 0, 100000},
		{"loss", 80, 30, 100, NoGain, 0, -2000},
		{"flat", 100, 30, 100, NoGain, 0, 0},
		{"boundary is long term", 150, 365, 100, LTCG, 0, 5000},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := c.CapitalGainsTax(100, tt.exit, bought, bought.AddDate(0, 0, tt.days), tt.units)
			assert.Equal(t, tt.wantType, got.TaxType)
			assert.InDelta(t, tt.wantTax, got.Tax, 1e-9)
			assert.InDelta(t, tt.wantNet, got.NetGain, 1e-9)
			assert.Equal(t, tt.days, got.HoldingDays)
		})
	}
}

func TestHoldForLTCG(t *testing.T) {
	t.Parallel()
	c := DefaultCapitalGains()

	assert.False(t, c.HoldForLTCG(bought, bought.AddDate(0, 0, 200), 80))
	assert.True(t, c.HoldForLTCG(bought, bought.AddDate(0, 0, 320), 55))
	assert.False(t, c.HoldForLTCG(bought, bought.AddDate(0, 0, 320), 45))
	assert.False(t, c.HoldForLTCG(bought, bought.AddDate(0, 0, 365), 90))
}

func TestCapitalGainsValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultCapitalGains().Validate())
	c := DefaultCapitalGains()
	c.STCGRate = 1.5
	assert.Error(t, c.Validate())
	c = DefaultCapitalGains()
	c.LTCGDays = 0
	assert.Error(t, c.Validate())
}

func TestZeroTax(t *testing.T) {
	t.Parallel()

	got := Zero{}.CapitalGainsTax(100, 120, bought, bought.AddDate(0, 0, 10), 10)
	assert.Zero(t, got.Tax)
	assert.InDelta(t, 200, got.NetGain, 1e-9)
	assert.Equal(t, STCG, got.TaxType)
}
