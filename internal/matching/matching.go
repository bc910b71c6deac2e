// Package matching оценивает ставку покупателя относительно цен слота и
// выбирает слот с ближайшей ценой.
package matching

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/Leganyst/openslots/internal/discovery"
)

type MatchLikelihood string

const (
	VeryHigh MatchLikelihood = "VeryHigh"
	High     MatchLikelihood = "High"
	Low      MatchLikelihood = "Low"
	VeryLow  MatchLikelihood = "VeryLow"
)

var lowBandFactor = decimal.RequireFromString("0.9")

// Likelihood раскладывает ставку по диапазону цен слота [min, max]. Значения
// сравниваются как есть, без округления. NaN в любом аргументе — VeryLow.
func Likelihood(bid, minPrice, maxPrice float64) MatchLikelihood {
	if bid <= 0 || math.IsNaN(bid) || math.IsNaN(minPrice) || math.IsNaN(maxPrice) {
		return VeryLow
	}

	// перевёрнутый диапазон — ошибка данных: max служит обеими границами, полосы Low нет
	if minPrice > maxPrice {
		if bid >= maxPrice {
			return VeryHigh
		}
		return High
	}

	switch {
	case bid >= maxPrice:
		return VeryHigh
	case bid >= minPrice:
		return High
	case math.IsInf(minPrice, 1):
		return VeryLow
	}
	// 0.9 * min в десятичной арифметике: во float 0.9*70 != 63
	if decimal.NewFromFloat(bid).GreaterThanOrEqual(decimal.NewFromFloat(minPrice).Mul(lowBandFactor)) {
		return Low
	}
	return VeryLow
}

// Selection — лучшее предложение в выдаче.
type Selection struct {
	ProviderID string
	SlotID     string
	PriceCents int64
}

// BestOffer возвращает слот, чья цена со скидкой ближе всего к bid. При
// равенстве побеждает меньшая цена, затем более ранняя позиция в выдаче.
// ok == false, если слотов нет.
func BestOffer(results []discovery.ProviderResult, bid float64) (sel Selection, ok bool) {
	bestDiff := math.Inf(1)
	for _, p := range results {
		for _, s := range p.Slots {
			price := s.MaxDiscountedPriceCents
			diff := math.Abs(float64(price) - bid)
			if !ok || diff < bestDiff || (diff == bestDiff && price < sel.PriceCents) {
				sel = Selection{ProviderID: p.ProviderID, SlotID: s.SlotID, PriceCents: price}
				bestDiff = diff
				ok = true
			}
		}
	}
	return sel, ok
}
