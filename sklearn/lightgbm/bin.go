package lightgbm

import (
	"math"
	"sort"
)

// BinMapper maps raw feature values to histogram bins. Bin b holds values
// in (UpperBounds[b-1], UpperBounds[b]]; the last bound is +Inf.
type BinMapper struct {
	UpperBounds []float64
}

// NewBinMapper builds at most maxBin equal-frequency bins from values.
// NaN values are ignored here and mapped to bin 0 by ValueToBin.
func NewBinMapper(values []float64, maxBin int) *BinMapper {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	sort.Float64s(sorted)

	distinct := make([]float64, 0, len(sorted))
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			distinct = append(distinct, v)
		}
	}
	if len(distinct) <= 1 {
		return &BinMapper{UpperBounds: []float64{math.Inf(1)}}
	}

	var bounds []float64
	if len(distinct) <= maxBin {
		bounds = make([]float64, 0, len(distinct))
		for i := 0; i+1 < len(distinct); i++ {
			bounds = append(bounds, (distinct[i]+distinct[i+1])/2)
		}
	} else {
		n := len(sorted)
		for b := 1; b < maxBin; b++ {
			q := sorted[b*n/maxBin]
			j := sort.SearchFloat64s(distinct, q)
			if j+1 >= len(distinct) {
				continue
			}
			mid := (distinct[j] + distinct[j+1]) / 2
			if len(bounds) == 0 || mid > bounds[len(bounds)-1] {
				bounds = append(bounds, mid)
			}
		}
	}
	bounds = append(bounds, math.Inf(1))
	return &BinMapper{UpperBounds: bounds}
}

// NumBins returns the number of bins.
func (b *BinMapper) NumBins() int { return len(b.UpperBounds) }

// ValueToBin returns the bin index of v.
func (b *BinMapper) ValueToBin(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return sort.SearchFloat64s(b.UpperBounds, v)
}
