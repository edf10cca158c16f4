package model

import (
	"fmt"
	"time"
)

// Set is an expansion as the catalog describes it.
type Set struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Series       string      `json:"series,omitempty"`
	PrintedTotal int         `json:"printedTotal,omitempty"`
	Total        int         `json:"total,omitempty"`
	Legalities   *Legalities `json:"legalities,omitempty"`
	PtcgoCode    string      `json:"ptcgoCode,omitempty"`
	ReleaseDate  string      `json:"releaseDate,omitempty"`
	UpdatedAt    string      `json:"updatedAt,omitempty"`
	Images       *SetImages  `json:"images,omitempty"`
}

func (Set) ResourcePath() string { return "sets" }
func (Set) Findable() bool       { return true }

// Card is the full catalog record for a single card. Only the two pricing
// blocks matter for pricing; the rest is kept so `card` can show it.
type Card struct {
	ID                     string      `json:"id"`
	Name                   string      `json:"name"`
	Supertype              string      `json:"supertype,omitempty"`
	Subtypes               []string    `json:"subtypes,omitempty"`
	HP                     string      `json:"hp,omitempty"`
	Types                  []string    `json:"types,omitempty"`
	EvolvesFrom            string      `json:"evolvesFrom,omitempty"`
	EvolvesTo              []string    `json:"evolvesTo,omitempty"`
	Rules                  []string    `json:"rules,omitempty"`
	Abilities              []Ability   `json:"abilities,omitempty"`
	Attacks                []Attack    `json:"attacks,omitempty"`
	Weaknesses             []Weakness  `json:"weaknesses,omitempty"`
	RetreatCost            []string    `json:"retreatCost,omitempty"`
	ConvertedRetreatCost   int         `json:"convertedRetreatCost,omitempty"`
	Set                    *Set        `json:"set,omitempty"`
	Number                 string      `json:"number"`
	Artist                 string      `json:"artist,omitempty"`
	Rarity                 string      `json:"rarity,omitempty"`
	FlavorText             string      `json:"flavorText,omitempty"`
	NationalPokedexNumbers []int       `json:"nationalPokedexNumbers,omitempty"`
	Legalities             *Legalities `json:"legalities,omitempty"`
	Images                 *CardImages `json:"images,omitempty"`

	TCGPlayer  *TCGPlayerBlock  `json:"tcgplayer,omitempty"`  // may be nil
	Cardmarket *CardmarketBlock `json:"cardmarket,omitempty"` // may be nil
}

func (Card) ResourcePath() string { return "cards" }
func (Card) Findable() bool       { return true }

type Ability struct {
	Name string `json:"name"`
	Text string `json:"text"`
	Type string `json:"type"`
}

type Attack struct {
	Name                string   `json:"name"`
	Cost                []string `json:"cost,omitempty"`
	ConvertedEnergyCost int      `json:"convertedEnergyCost,omitempty"`
	Damage              string   `json:"damage,omitempty"`
	Text                string   `json:"text,omitempty"`
}

type Weakness struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type Legalities struct {
	Unlimited string `json:"unlimited,omitempty"`
	Standard  string `json:"standard,omitempty"`
	Expanded  string `json:"expanded,omitempty"`
}

type SetImages struct {
	Symbol string `json:"symbol,omitempty"`
	Logo   string `json:"logo,omitempty"`
}

type CardImages struct {
	Small string `json:"small,omitempty"`
	Large string `json:"large,omitempty"`
}

// TCGPlayerBlock holds tcgplayer prices keyed by printing.
type TCGPlayerBlock struct {
	URL       string           `json:"url,omitempty"`
	UpdatedAt string           `json:"updatedAt,omitempty"`
	Prices    *TCGPlayerPrices `json:"prices,omitempty"`
}

type TCGPlayerPrices struct {
	Normal               *TCGPrice `json:"normal,omitempty"`
	Holofoil             *TCGPrice `json:"holofoil,omitempty"`
	ReverseHolofoil      *TCGPrice `json:"reverseHolofoil,omitempty"`
	FirstEditionHolofoil *TCGPrice `json:"1stEditionHolofoil,omitempty"`
	FirstEditionNormal   *TCGPrice `json:"1stEditionNormal,omitempty"`
}

type TCGPrice struct {
	Low       *float64 `json:"low,omitempty"`
	Mid       *float64 `json:"mid,omitempty"`
	High      *float64 `json:"high,omitempty"`
	Market    *float64 `json:"market,omitempty"`
	DirectLow *float64 `json:"directLow,omitempty"`
}

// CardmarketBlock holds the cardmarket (EUR) price guide for a card.
type CardmarketBlock struct {
	URL       string            `json:"url,omitempty"`
	UpdatedAt string            `json:"updatedAt,omitempty"`
	Prices    *CardmarketPrices `json:"prices,omitempty"`
}

type CardmarketPrices struct {
	AverageSellPrice *float64 `json:"averageSellPrice,omitempty"`
	LowPrice         *float64 `json:"lowPrice,omitempty"`
	TrendPrice       *float64 `json:"trendPrice,omitempty"`
	GermanProLow     *float64 `json:"germanProLow,omitempty"`
	SuggestedPrice   *float64 `json:"suggestedPrice,omitempty"`
	ReverseHoloSell  *float64 `json:"reverseHoloSell,omitempty"`
	ReverseHoloLow   *float64 `json:"reverseHoloLow,omitempty"`
	ReverseHoloTrend *float64 `json:"reverseHoloTrend,omitempty"`
	LowPriceExPlus   *float64 `json:"lowPriceExPlus,omitempty"`
	Avg1             *float64 `json:"avg1,omitempty"`
	Avg7             *float64 `json:"avg7,omitempty"`
	Avg30            *float64 `json:"avg30,omitempty"`
	ReverseHoloAvg1  *float64 `json:"reverseHoloAvg1,omitempty"`
	ReverseHoloAvg7  *float64 `json:"reverseHoloAvg7,omitempty"`
	ReverseHoloAvg30 *float64 `json:"reverseHoloAvg30,omitempty"`
}

// The catalog lists these as plain strings and has no per-id endpoint for them.
type (
	Type      string
	Subtype   string
	Supertype string
	Rarity    string
)

func (Type) ResourcePath() string      { return "types" }
func (Type) Findable() bool            { return false }
func (Subtype) ResourcePath() string   { return "subtypes" }
func (Subtype) Findable() bool         { return false }
func (Supertype) ResourcePath() string { return "supertypes" }
func (Supertype) Findable() bool       { return false }
func (Rarity) ResourcePath() string    { return "rarities" }
func (Rarity) Findable() bool          { return false }

// PricingRequest is one matched line of a pricing file.
type PricingRequest struct {
	Name    string
	SetCode string
	Number  uint32
	SetID   string
	Line    int
}

// CardID is the catalog id of the requested card, e.g. "sv1-123".
func (r PricingRequest) CardID() string {
	return fmt.Sprintf("%s-%d", r.SetID, r.Number)
}

// PriceRecord is one observed price, appended to the sinks.
type PriceRecord struct {
	CardName   string
	CardID     string
	Number     string
	Price      float64
	RecordedAt time.Time
}

// Line renders the record the way the price log stores it.
func (r PriceRecord) Line() string {
	return fmt.Sprintf("%s %s %s %v", r.CardName, r.CardID, r.Number, r.Price)
}
