// Package costs models Indian equity delivery charges and capital gains tax.
package costs

import (
	"fmt"
	"math"

	"github.com/rustyeddy/momentum/market"
)

const crore = 1e7

// Delivery holds the statutory and broker charges for delivery trades.
// Percent fields are fractions: 0.001 is 0.1%.
type Delivery struct {
	BrokeragePercent float64 `json:"brokerage_percent" yaml:"brokerage_percent"`
	BrokerageCap     float64 `json:"brokerage_cap" yaml:"brokerage_cap"`
	STTBuyPercent    float64 `json:"stt_buy_percent" yaml:"stt_buy_percent"`
	STTSellPercent   float64 `json:"stt_sell_percent" yaml:"stt_sell_percent"`
	ExchangePercent  float64 `json:"exchange_percent" yaml:"exchange_percent"`
	SEBIPerCrore     float64 `json:"sebi_per_crore" yaml:"sebi_per_crore"`
	StampDutyPercent float64 `json:"stamp_duty_percent" yaml:"stamp_duty_percent"`
	GSTPercent       float64 `json:"gst_percent" yaml:"gst_percent"`
	IPFPerCrore      float64 `json:"ipf_per_crore" yaml:"ipf_per_crore"`
	DPCharge         float64 `json:"dp_charge" yaml:"dp_charge"`
}

// DefaultDelivery returns current NSE delivery charges with zero brokerage.
func DefaultDelivery() Delivery {
	return Delivery{
		STTBuyPercent:    0.001,
		STTSellPercent:   0.001,
		ExchangePercent:  0.0000345,
		SEBIPerCrore:     10,
		StampDutyPercent: 0.00015,
		GSTPercent:       0.18,
		IPFPerCrore:      10,
		DPCharge:         13,
	}
}

// Breakdown itemizes the charges on one trade.
type Breakdown struct {
	Brokerage float64 `json:"brokerage"`
	STT       float64 `json:"stt"`
	Exchange  float64 `json:"exchange"`
	SEBI      float64 `json:"sebi"`
	Stamp     float64 `json:"stamp"`
	GST       float64 `json:"gst"`
	IPF       float64 `json:"ipf"`
	DP        float64 `json:"dp"`
	Total     float64 `json:"total"`
}

// Breakdown computes every charge for a trade of value on side.
func (d Delivery) Breakdown(value float64, side market.Side) Breakdown {
	if value <= 0 {
		return Breakdown{}
	}

	b := Breakdown{
		Brokerage: math.Min(value*d.BrokeragePercent, d.BrokerageCap),
		Exchange:  value * d.ExchangePercent,
		SEBI:      value * d.SEBIPerCrore / crore,
		IPF:       value * d.IPFPerCrore / crore,
	}
	switch side {
	case market.Buy:
		b.STT = value * d.STTBuyPercent
		b.Stamp = value * d.StampDutyPercent
	case market.Sell:
		b.STT = value * d.STTSellPercent
		b.DP = d.DPCharge
	}
	b.GST = (b.Brokerage + b.Exchange + b.SEBI) * d.GSTPercent
	b.Total = b.Brokerage + b.STT + b.Exchange + b.SEBI + b.Stamp + b.GST + b.IPF + b.DP
	return b
}

// TransactionCost is the total charge for a trade.
func (d Delivery) TransactionCost(value float64, side market.Side) float64 {
	return d.Breakdown(value, side).Total
}

func (d Delivery) Validate() error {
	for name, v := range map[string]float64{
		"brokerage_percent":  d.BrokeragePercent,
		"brokerage_cap":      d.BrokerageCap,
		"stt_buy_percent":    d.STTBuyPercent,
		"stt_sell_percent":   d.STTSellPercent,
		"exchange_percent":   d.ExchangePercent,
		"sebi_per_crore":     d.SEBIPerCrore,
		"stamp_duty_percent": d.StampDutyPercent,
		"gst_percent":        d.GSTPercent,
		"ipf_per_crore":      d.IPFPerCrore,
		"dp_charge":          d.DPCharge,
	} {
		if v < 0 {
			return fmt.Errorf("costs.%s must not be negative", name)
		}
	}
	return nil
}

// ImpactTier charges Bps for orders below UpTo of average daily value.
type ImpactTier struct {
	UpTo float64 `json:"up_to" yaml:"up_to"`
	Bps  float64 `json:"bps" yaml:"bps"`
}

// Impact estimates market impact from order size relative to ADV.
type Impact struct {
	Tiers []ImpactTier `json:"tiers" yaml:"tiers"`
	// AboveBps applies past the last tier.
	AboveBps float64 `json:"above_bps" yaml:"above_bps"`
}

func DefaultImpact() Impact {
	return Impact{
		Tiers: []ImpactTier{
			{UpTo: 0.05, Bps: 15},
			{UpTo: 0.10, Bps: 35},
			{UpTo: 0.15, Bps: 60},
		},
		AboveBps: 150,
	}
}

// Rate returns the impact as a fraction of trade value for an order that is
// fracADV of average daily traded value.
func (im Impact) Rate(fracADV float64) float64 {
	for _, t := range im.Tiers {
		if fracADV < t.UpTo {
			return t.Bps / 10000
		}
	}
	return im.AboveBps / 10000
}

// RoundTrip is the cost of buying and later selling value.
type RoundTrip struct {
	Buy     Breakdown `json:"buy"`
	Sell    Breakdown `json:"sell"`
	Impact  float64   `json:"impact"`
	Total   float64   `json:"total"`
	Percent float64   `json:"percent"`
}

// RoundTrip prices a full buy and sell of value with symmetric impact.
func (d Delivery) RoundTrip(value, fracADV float64, im Impact) RoundTrip {
	rt := RoundTrip{
		Buy:    d.Breakdown(value, market.Buy),
		Sell:   d.Breakdown(value, market.Sell),
		Impact: 2 * value * im.Rate(fracADV),
	}
	rt.Total = rt.Buy.Total + rt.Sell.Total + rt.Impact
	if value > 0 {
		rt.Percent = rt.Total / value * 100
	}
	return rt
}

// Zero is a cost and tax model that charges nothing.
type Zero struct{}

func (Zero) TransactionCost(float64, market.Side) float64 { return 0 }
