// Package models defines the storefront records shared by the store, the
// gateway and the HTTP layer.
//
// JSON tags use the camelCase names of the persisted records so that a record
// written by any backend reads back unchanged.
package models

// DefaultHeroImage is used for the hero banner and as the image of products
// added without one.
const (
	DefaultHeroImage    = "https://images.unsplash.com/photo-1570831739435-6601aa3fa4fb?auto=format&fit=crop&w=1600&q=80"
	DefaultProductImage = "https://images.unsplash.com/photo-1570831739435-6601aa3fa4fb?auto=format&fit=crop&w=800&q=80"
)

// SiteConfig is the single branding and lock record.
//
// MasterPasscode is a shared secret compared by exact string equality. It is
// stored in the clear; the demo shop never hashed it and neither do we.
type SiteConfig struct {
	SiteName       string `json:"siteName"`
	HeroTitle      string `json:"heroTitle"`
	HeroSubtitle   string `json:"heroSubtitle"`
	HeroImageURL   string `json:"heroImageUrl"`
	PrimaryColor   string `json:"primaryColor"`
	MasterPasscode string `json:"masterPasscode"`
	IsPublic       bool   `json:"isPublic"`
}

// PublicView strips the passcode before the config leaves the admin surface.
func (c SiteConfig) PublicView() SiteConfig {
	c.MasterPasscode = ""
	return c
}

// DefaultSiteConfig returns the record used on first run.
func DefaultSiteConfig() SiteConfig {
	return SiteConfig{
		SiteName:       "Mizo Candle",
		HeroTitle:      "Illuminate Your Soul",
		HeroSubtitle:   "Handcrafted artisanal candles that transform any space into a sanctuary of peace.",
		HeroImageURL:   DefaultHeroImage,
		PrimaryColor:   "#d97706",
		MasterPasscode: "552008",
		IsPublic:       true,
	}
}
