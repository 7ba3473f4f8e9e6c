// Package money splits integer amounts expressed in minor currency units.
package money

import (
	"errors"
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	ErrNoRatios      = errors.New("at least one ratio is required")
	ErrNegativeRatio = errors.New("ratios must not be negative")
	ErrZeroRatios    = errors.New("ratios must not sum to zero")
	ErrOutOfRange    = errors.New("amount has no positive counterpart")
)

// Allocate splits amount into len(ratios) parts proportional to ratios.
// The parts always sum to amount: the units lost to flooring are handed out
// one by one to the parts with the largest remainders, ties going to the
// earlier part.
func Allocate(amount int64, ratios ...decimal.Decimal) ([]int64, error) {
	if len(ratios) == 0 {
		return nil, ErrNoRatios
	}

	total := decimal.Zero
	for _, r := range ratios {
		if r.IsNegative() {
			return nil, ErrNegativeRatio
		}
		total = total.Add(r)
	}
	if total.IsZero() {
		return nil, ErrZeroRatios
	}

	if amount == math.MinInt64 {
		return nil, ErrOutOfRange
	}

	if amount < 0 {
		parts, err := Allocate(-amount, ratios...)
		if err != nil {
			return nil, err
		}
		for i := range parts {
			parts[i] = -parts[i]
		}
		return parts, nil
	}

	whole := decimal.NewFromInt(amount)
	parts := make([]int64, len(ratios))
	rems := make([]decimal.Decimal, len(ratios))

	var allocated int64
	for i, r := range ratios {
		q, rem := whole.Mul(r).QuoRem(total, 0)
		parts[i] = q.IntPart()
		rems[i] = rem
		allocated += parts[i]
	}

	order := make([]int, len(ratios))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return rems[order[a]].GreaterThan(rems[order[b]])
	})

	for i := 0; allocated < amount; i++ {
		parts[order[i%len(order)]]++
		allocated++
	}

	return parts, nil
}

// Split is Allocate with the two-bucket ratio [1-rate, rate] and returns the
// second bucket, the share taken by rate.
func Split(amount int64, rate decimal.Decimal) (int64, error) {
	parts, err := Allocate(amount, decimal.NewFromInt(1).Sub(rate), rate)
	if err != nil {
		return 0, err
	}
	return parts[1], nil
}
