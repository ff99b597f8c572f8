package domain

import (
	"github.com/shopspring/decimal"
)

// FeeSchedule is the three-tier card fee table. The breakpoints and rates are
// deployment configuration, not business law: operators have historically run
// this shop with different tiers, so nothing here is hardcoded beyond the
// defaults in config.
type FeeSchedule struct {
	LowThreshold  int64           // amounts below this pay HighRate
	HighThreshold int64           // amounts at or above this pay MidRate
	HighRate      decimal.Decimal // below LowThreshold
	LowRate       decimal.Decimal // between the thresholds
	MidRate       decimal.Decimal // at or above HighThreshold
}

// CardRate returns the fee rate for a card top-up of the given amount.
func (f FeeSchedule) CardRate(amount int64) decimal.Decimal {
	switch {
	case amount < f.LowThreshold:
		return f.HighRate
	case amount >= f.HighThreshold:
		return f.MidRate
	default:
		return f.LowRate
	}
}

// NetCredit computes floor(amount * (1 - rate)) using decimal arithmetic so
// the result is deterministic and reproducible for any rate.
func NetCredit(amount int64, rate decimal.Decimal) int64 {
	net := decimal.NewFromInt(amount).Mul(decimal.NewFromInt(1).Sub(rate))
	return net.Floor().IntPart()
}
