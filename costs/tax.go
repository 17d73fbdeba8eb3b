package costs

import (
	"fmt"
	"time"
)

// TaxType classifies a realized gain.
type TaxType string

const (
	NoGain TaxType = "no_gain"
	STCG   TaxType = "STCG"
	LTCG   TaxType = "LTCG"
)

// Tax is the capital gains outcome of one sale.
type Tax struct {
	Gain        float64 `json:"gain"`
	HoldingDays int     `json:"holding_days"`
	TaxType     TaxType `json:"tax_type"`
	Tax         float64 `json:"tax"`
	NetGain     float64 `json:"net_gain"`
}

// CapitalGains applies Indian listed-equity capital gains rules per trade.
type CapitalGains struct {
	STCGRate      float64 `json:"stcg_rate" yaml:"stcg_rate"`
	LTCGRate      float64 `json:"ltcg_rate" yaml:"ltcg_rate"`
	LTCGExemption float64 `json:"ltcg_exemption" yaml:"ltcg_exemption"`
	LTCGDays      int     `json:"ltcg_holding_days" yaml:"ltcg_holding_days"`
	// HoldWindowStart is the holding age from which a position close to
	// LTCG is kept rather than sold on a weak score.
	HoldWindowStart int     `json:"tax_hold_window_start" yaml:"tax_hold_window_start"`
	HoldMinScore    float64 `json:"tax_hold_min_score" yaml:"tax_hold_min_score"`
}

func DefaultCapitalGains() CapitalGains {
	return CapitalGains{
		STCGRate:        0.20,
		LTCGRate:        0.125,
		LTCGExemption:   125000,
		LTCGDays:        365,
		HoldWindowStart: 300,
		HoldMinScore:    50,
	}
}

func holdingDays(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

// CapitalGainsTax computes the tax due on selling units bought at entry.
func (c CapitalGains) CapitalGainsTax(entryPrice, exitPrice float64, entryDate, exitDate time.Time, units int64) Tax {
	t := Tax{
		Gain:        (exitPrice - entryPrice) * float64(units),
		HoldingDays: holdingDays(entryDate, exitDate),
	}
	if t.Gain <= 0 {
		t.TaxType = NoGain
		t.NetGain = t.Gain
		return t
	}

	if t.HoldingDays < c.LTCGDays {
		t.TaxType = STCG
		t.Tax = t.Gain * c.STCGRate
	} else {
		t.TaxType = LTCG
		taxable := t.Gain - c.LTCGExemption
		if taxable > 0 {
			t.Tax = taxable * c.LTCGRate
		}
	}
	t.NetGain = t.Gain - t.Tax
	return t
}

// HoldForLTCG reports whether a position should be kept because it is
// about to qualify for long-term treatment and still scores well.
func (c CapitalGains) HoldForLTCG(entryDate, now time.Time, score float64) bool {
	days := holdingDays(entryDate, now)
	return days >= c.HoldWindowStart && days < c.LTCGDays && score >= c.HoldMinScore
}

func (c CapitalGains) Validate() error {
	if c.STCGRate < 0 || c.STCGRate > 1 || c.LTCGRate < 0 || c.LTCGRate > 1 {
		return fmt.Errorf("tax rates must be within [0,1]")
	}
	if c.LTCGExemption < 0 {
		return fmt.Errorf("tax.ltcg_exemption must not be negative")
	}
	if c.LTCGDays <= 0 {
		return fmt.Errorf("tax.ltcg_holding_days must be positive")
	}
	return nil
}

// CapitalGainsTax on Zero reports the gain untaxed.
func (Zero) CapitalGainsTax(entryPrice, exitPrice float64, entryDate, exitDate time.Time, units int64) Tax {
	gain := (exitPrice - entryPrice) * float64(units)
	t := Tax{Gain: gain, HoldingDays: holdingDays(entryDate, exitDate), TaxType: NoGain, NetGain: gain}
	if gain > 0 {
		t.TaxType = STCG
		if t.HoldingDays >= 365 {
			t.TaxType = LTCG
		}
	}
	return t
}
