package testutil

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/go-faker/faker/v4"

	"github.com/guarzo/pkmprice/internal/model"
)

// Float returns a pointer to v, for filling optional price fields.
func Float(v float64) *float64 {
	return &v
}

// CardOption adjusts a card built by NewCard.
type CardOption func(*model.Card)

// NewCard builds a card with id and name and no pricing data.
func NewCard(id, name string, opts ...CardOption) model.Card {
	c := model.Card{ID: id, Name: name}
	if i := strings.LastIndex(id, "-"); i >= 0 {
		c.Number = id[i+1:]
		c.Set = &model.Set{ID: id[:i]}
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithCardmarket sets the cardmarket averages; nil leaves a field empty.
func WithCardmarket(averageSell, avg1, avg30 *float64) CardOption {
	return func(c *model.Card) {
		c.Cardmarket = &model.CardmarketBlock{
			URL: "https://prices.pokemontcg.io/cardmarket/" + c.ID,
			Prices: &model.CardmarketPrices{
				AverageSellPrice: averageSell,
				Avg1:             avg1,
				Avg30:            avg30,
			},
		}
	}
}

// WithTCGPlayerNormal sets the tcgplayer normal price block.
func WithTCGPlayerNormal(market, mid, high, low *float64) CardOption {
	return func(c *model.Card) {
		c.TCGPlayer = &model.TCGPlayerBlock{
			URL: "https://prices.pokemontcg.io/tcgplayer/" + c.ID,
			Prices: &model.TCGPlayerPrices{
				Normal: &model.TCGPrice{Market: market, Mid: mid, High: high, Low: low},
			},
		}
	}
}

// Factory generates random pricing fixtures. The same seed gives the same
// numbers and prices; names come from faker.
type Factory struct {
	rand *rand.Rand
}

// NewFactory creates a factory; a zero seed uses the clock.
func NewFactory(seed int64) *Factory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{rand: rand.New(rand.NewSource(seed))}
}

// Request returns a request for a random card in setID.
func (f *Factory) Request(setID, setCode string, line int) model.PricingRequest {
	return model.PricingRequest{
		Name:    faker.FirstName() + " ex",
		SetCode: setCode,
		Number:  uint32(f.rand.Intn(250) + 1),
		SetID:   setID,
		Line:    line,
	}
}

// PricedCard returns the catalog card for req with a tcgplayer market price
// between 0.10 and 500.
func (f *Factory) PricedCard(req model.PricingRequest) model.Card {
	price := float64(f.rand.Intn(50000)+10) / 100
	return NewCard(req.CardID(), req.Name, WithTCGPlayerNormal(Float(price), nil, nil, nil))
}

// PricingFile renders requests in the pricing file format.
func PricingFile(reqs ...model.PricingRequest) string {
	var b strings.Builder
	for _, r := range reqs {
		fmt.Fprintf(&b, "'%s' %s %d\n", r.Name, r.SetCode, r.Number)
	}
	return b.String()
}
