package prices

import "github.com/guarzo/pkmprice/internal/model"

// NoPrice is returned when a card carries no usable price. It is negative so
// it can't be confused with a real zero price.
const NoPrice = -99.9

// Source names the field a price was taken from.
type Source string

const (
	SourceCardmarketAverageSell Source = "cardmarket.averageSellPrice"
	SourceCardmarketAvg1        Source = "cardmarket.avg1"
	SourceCardmarketAvg30       Source = "cardmarket.avg30"
	SourceTCGPlayerMarket       Source = "tcgplayer.normal.market"
	SourceTCGPlayerMid          Source = "tcgplayer.normal.mid"
	SourceTCGPlayerHigh         Source = "tcgplayer.normal.high"
	SourceTCGPlayerLow          Source = "tcgplayer.normal.low"
	SourceNone                  Source = "none"
)

// Extract returns the card's price, or NoPrice.
func Extract(card model.Card) float64 {
	p, _ := ExtractWithSource(card)
	return p
}

// ExtractWithSource returns the first populated price in this order:
// cardmarket averageSellPrice, avg1, avg30, then tcgplayer normal market,
// mid, high, low.
func ExtractWithSource(card model.Card) (float64, Source) {
	for _, c := range candidates(card) {
		if c.value != nil {
			return *c.value, c.source
		}
	}
	return NoPrice, SourceNone
}

type candidate struct {
	source Source
	value  *float64
}

func candidates(card model.Card) []candidate {
	var out []candidate

	if cm := card.Cardmarket; cm != nil && cm.Prices != nil {
		out = append(out,
			candidate{SourceCardmarketAverageSell, cm.Prices.AverageSellPrice},
			candidate{SourceCardmarketAvg1, cm.Prices.Avg1},
			candidate{SourceCardmarketAvg30, cm.Prices.Avg30},
		)
	}

	if tcg := card.TCGPlayer; tcg != nil && tcg.Prices != nil && tcg.Prices.Normal != nil {
		n := tcg.Prices.Normal
		out = append(out,
			candidate{SourceTCGPlayerMarket, n.Market},
			candidate{SourceTCGPlayerMid, n.Mid},
			candidate{SourceTCGPlayerHigh, n.High},
			candidate{SourceTCGPlayerLow, n.Low},
		)
	}

	return out
}

// Priced reports whether p is a real price rather than NoPrice.
func Priced(p float64) bool {
	return p != NoPrice
}
