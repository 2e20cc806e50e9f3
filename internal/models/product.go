package models

import "math"

// Currency is the currency every catalog price is quoted in.
const Currency = "EGP"

// Product is a catalog entry. Products are never edited in place: the admin
// removes one and adds a replacement.
type Product struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Description        string  `json:"description"`
	Price              float64 `json:"price"`
	Category           string  `json:"category"`
	ImageURL           string  `json:"imageUrl"`
	DiscountPercentage float64 `json:"discountPercentage,omitempty"`
}

// FinalPrice applies the discount and rounds to the nearest piastre.
func (p Product) FinalPrice() float64 {
	final := p.Price * (1 - p.DiscountPercentage/100)
	return math.Round(final*100) / 100
}

// DefaultProducts returns the three-candle starter catalog. A fresh slice is
// built on every call so callers may modify it.
func DefaultProducts() []Product {
	return []Product{
		{
			ID:                 "1",
			Name:               "Lavender Bliss Signature",
			Description:        "Calming French lavender fields captured in a soy-wax blend for ultimate relaxation.",
			Price:              200,
			Category:           "Relaxation",
			ImageURL:           "https://images.unsplash.com/photo-1603006905003-be475563bc59?auto=format&fit=crop&w=800&q=80",
			DiscountPercentage: 5,
		},
		{
			ID:                 "2",
			Name:               "Midnight Jasmine Glow",
			Description:        "Enchanting floral notes that bloom at night, creating a romantic and mysterious ambiance.",
			Price:              275,
			Category:           "Floral",
			ImageURL:           "https://images.unsplash.com/photo-1602872030219-cbf917a55be3?auto=format&fit=crop&w=800&q=80",
			DiscountPercentage: 5,
		},
		{
			ID:                 "3",
			Name:               "Golden Sandalwood",
			Description:        "Warm, earthy, and sophisticated. A timeless scent for the modern home.",
			Price:              350,
			Category:           "Earthy",
			ImageURL:           "https://images.unsplash.com/photo-1596433809252-260c2745dfdd?auto=format&fit=crop&w=800&q=80",
			DiscountPercentage: 5,
		},
	}
}
