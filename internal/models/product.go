package models

import "time"

// Platform is the marketplace a product was sourced from
type Platform string

const (
	PlatformShopee       Platform = "Shopee"
	PlatformAmazon       Platform = "Amazon"
	PlatformAliExpress   Platform = "AliExpress"
	PlatformMercadoLivre Platform = "Mercado Livre"
	PlatformOther        Platform = "Other"
)

// Product represents a catalogued affiliate offer
type Product struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Title         string    `json:"title"`
	Price         float64   `json:"price"`
	Image         string    `json:"image"`
	AffiliateLink string    `json:"affiliate_link"`
	Platform      Platform  `json:"platform"`
	Active        bool      `json:"active"`
	SalesCopy     string    `json:"sales_copy,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Eligible reports whether the product may be picked for an automated send.
// Inactive or unpriced products stay in the catalog but are never broadcast.
func (p *Product) Eligible() bool {
	return p.Active && p.Price > 0
}

// EligibleIDs returns the ids of eligible products, preserving order
func EligibleIDs(products []Product) []string {
	ids := make([]string, 0, len(products))
	for i := range products {
		if products[i].Eligible() {
			ids = append(ids, products[i].ID)
		}
	}
	return ids
}

// ProductFilter for filtering products
type ProductFilter struct {
	UserID     string
	ActiveOnly bool
	Limit      int
	Offset     int
}
