package marketplace

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/resell/backend/internal/domain/shared/valueobject"
)

func TestCode_IsValid(t *testing.T) {
	assert.True(t, CodeEbay.IsValid())
	assert.True(t, CodeYahooAuction.IsValid())
	assert.True(t, CodeMercari.IsValid())
	assert.False(t, Code("AMAZON").IsValid())
	assert.False(t, Code("").IsValid())
}

func TestListingFormat_IsValid(t *testing.T) {
	assert.True(t, FormatAuction.IsValid())
	assert.True(t, FormatFixedPrice.IsValid())
	assert.False(t, ListingFormat("CLASSIFIED").IsValid())
}

func TestCapabilities_SupportsFormat(t *testing.T) {
	auctionOnly := Capabilities{SupportsAuction: true}
	assert.True(t, auctionOnly.SupportsFormat(FormatAuction))
	assert.False(t, auctionOnly.SupportsFormat(FormatFixedPrice))

	both := Capabilities{SupportsAuction: true, SupportsFixedPrice: true}
	assert.True(t, both.SupportsFormat(FormatFixedPrice))
	assert.False(t, both.SupportsFormat(ListingFormat("CLASSIFIED")))
}

func TestCreateListingPayload_Validate(t *testing.T) {
	valid := CreateListingPayload{
		SKU:        "ABC-1",
		Title:      "Vintage camera",
		Format:     FormatFixedPrice,
		Price:      decimal.NewFromInt(120),
		Currency:   valueobject.USD,
		Quantity:   1,
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(p *CreateListingPayload)
	}{
		{"missing sku", func(p *CreateListingPayload) { p.SKU = "" }},
		{"missing title", func(p *CreateListingPayload) { p.Title = "" }},
		{"bad format", func(p *CreateListingPayload) { p.Format = "CLASSIFIED" }},
		{"bad currency", func(p *CreateListingPayload) { p.Currency = "BTC" }},
		{"zero quantity", func(p *CreateListingPayload) { p.Quantity = 0 }},
		{"fixed price without price", func(p *CreateListingPayload) { p.Price = decimal.Zero }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidPayload)
		})
	}

	auction := valid
	auction.Format = FormatAuction
	auction.Duration = 7 * 24 * time.Hour
	assert.ErrorIs(t, auction.Validate(), ErrInvalidPayload, "auction needs a start price")

	auction.StartPrice = decimal.NewFromInt(50)
	assert.NoError(t, auction.Validate())
}
