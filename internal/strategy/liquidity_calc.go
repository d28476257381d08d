package strategy

import (
	"math"
	"math/rand"
	"sort"

	"tradebotengine/internal/exchange"
)

// liquiditySide is BUY or SELL, used to keep the zone-generation math
// symmetric between the two sides of the book.
type liquiditySide string

const (
	liquiditySideBuy  liquiditySide = "BUY"
	liquiditySideSell liquiditySide = "SELL"
)

// depthWithin sums price*qty over levels whose price lies in [lo, hi].
func depthWithin(levels []exchange.Level, lo, hi float64) float64 {
	var sum float64
	for _, l := range levels {
		if l.Price >= lo && l.Price <= hi {
			sum += l.Price * l.Quantity
		}
	}
	return sum
}

// top20Depth sums price*qty over the first 20 levels of a side.
func top20Depth(levels []exchange.Level) float64 {
	n := len(levels)
	if n > 20 {
		n = 20
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += levels[i].Price * levels[i].Quantity
	}
	return sum
}

// maxAdjacentGap finds the largest adjacent-level gap ratio within the
// top 20 of a side. bidSide controls gap direction: for bids the gap is
// (p_i - p_{i+1})/p_i (descending), for asks (p_{i+1} - p_i)/p_i
// (ascending) — spec §4.5.6 step 2.
func maxAdjacentGap(levels []exchange.Level, bidSide bool) float64 {
	n := len(levels)
	if n > 20 {
		n = 20
	}
	var maxGap float64
	for i := 0; i < n-1; i++ {
		var gap float64
		if bidSide {
			gap = (levels[i].Price - levels[i+1].Price) / levels[i].Price
		} else {
			gap = (levels[i+1].Price - levels[i].Price) / levels[i].Price
		}
		if gap > maxGap {
			maxGap = gap
		}
	}
	return maxGap
}

// spreadPercent computes (bestAsk-bestBid)/mid * 100.
func spreadPercent(bestBid, bestAsk, mid float64) float64 {
	if mid == 0 {
		return 0
	}
	return (bestAsk - bestBid) / mid * 100
}

// zoneOrder is one order the zone generator proposes.
type zoneOrder struct {
	Price    float64
	USDValue float64
}

// generateZonePrices returns n candidate price levels for a side/zone,
// skipping prices already in held. Zone 1 steps linearly; zone 2 steps
// geometrically at 0.5% (spec §4.5.6 step 8).
func generateZonePrices(side liquiditySide, mid float64, zoneLo, zoneHi float64, n int, geometric bool, held map[float64]bool) []float64 {
	var prices []float64
	if n <= 0 {
		return prices
	}

	if geometric {
		step := 0.005
		p := zoneLo
		if side == liquiditySideBuy {
			p = zoneHi // start closest to mid, walk outward
		} else {
			p = zoneLo
		}
		for len(prices) < n {
			rounded := math.Round(p*1e8) / 1e8
			if side == liquiditySideBuy && rounded < zoneLo {
				break
			}
			if side == liquiditySideSell && rounded > zoneHi {
				break
			}
			if !held[rounded] {
				prices = append(prices, rounded)
			}
			if side == liquiditySideBuy {
				p = p * (1 - step)
			} else {
				p = p * (1 + step)
			}
		}
		return prices
	}

	stepSize := (zoneHi - zoneLo) / float64(n)
	for i := 0; i < n; i++ {
		var p float64
		if side == liquiditySideBuy {
			p = zoneHi - float64(i)*stepSize // walk down from mid edge
		} else {
			p = zoneLo + float64(i)*stepSize // walk up from mid edge
		}
		rounded := math.Round(p*1e8) / 1e8
		if !held[rounded] {
			prices = append(prices, rounded)
		}
	}
	return prices
}

// weightedSplit assigns each price a random weight in [0.5, 1.5) and
// splits budget proportionally (spec §4.5.6 step 8).
func weightedSplit(prices []float64, budget float64, rng *rand.Rand) []zoneOrder {
	if len(prices) == 0 || budget <= 0 {
		return nil
	}
	weights := make([]float64, len(prices))
	var total float64
	for i := range prices {
		weights[i] = 0.5 + rng.Float64()
		total += weights[i]
	}
	orders := make([]zoneOrder, len(prices))
	for i, p := range prices {
		orders[i] = zoneOrder{Price: p, USDValue: budget * weights[i] / total}
	}
	return orders
}

// allocateWithinBalance greedily keeps orders closest to mid when the
// available balance can't cover the full generated set, sizing the last
// affordable order to the residual budget (spec §4.5.6 step 9).
func allocateWithinBalance(orders []zoneOrder, mid float64, available float64, minValue float64) []zoneOrder {
	sorted := append([]zoneOrder(nil), orders...)
	sort.Slice(sorted, func(i, j int) bool {
		return math.Abs(sorted[i].Price-mid) < math.Abs(sorted[j].Price-mid)
	})

	var out []zoneOrder
	remaining := available
	for _, o := range sorted {
		if remaining <= 0 {
			break
		}
		if o.USDValue <= remaining {
			out = append(out, o)
			remaining -= o.USDValue
			continue
		}
		if remaining >= minValue {
			out = append(out, zoneOrder{Price: o.Price, USDValue: remaining})
			remaining = 0
		}
		break
	}
	return out
}
