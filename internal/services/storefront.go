package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Moaaz208/Mizo-Candle/internal/models"
	"github.com/rs/zerolog/log"
)

var (
	// ErrUnknownField is returned for a config key that does not exist.
	ErrUnknownField = errors.New("unknown config field")

	// ErrInvalidValue is returned when a config value has the wrong type.
	ErrInvalidValue = errors.New("invalid config value")

	// ErrInvalidPasscode is returned when a new passcode is not made of
	// exactly the configured number of digits.
	ErrInvalidPasscode = errors.New("invalid passcode")

	// ErrInvalidProduct wraps product validation failures.
	ErrInvalidProduct = errors.New("invalid product")

	// ErrProductNotFound is returned when deleting an unknown product.
	ErrProductNotFound = errors.New("product not found")
)

// Editable site config keys.
const (
	FieldSiteName       = "siteName"
	FieldHeroTitle      = "heroTitle"
	FieldHeroSubtitle   = "heroSubtitle"
	FieldHeroImageURL   = "heroImageUrl"
	FieldPrimaryColor   = "primaryColor"
	FieldMasterPasscode = "masterPasscode"
	FieldIsPublic       = "isPublic"
)

// Catalog defaults for products added without these fields.
const (
	DefaultCategory = "Candles"
	DefaultPrice    = 200.0
)

// ProductView is a catalog entry with its discounted price worked out.
type ProductView struct {
	models.Product
	FinalPrice float64 `json:"finalPrice"`
	Currency   string  `json:"currency"`
}

// Storefront is the public shop: branding without the passcode, and the
// catalog.
type Storefront struct {
	Config   models.SiteConfig `json:"config"`
	Products []ProductView     `json:"products"`
}

// NewProduct is the admin's input for a catalog entry. Nil pointers and
// empty strings take the catalog defaults.
type NewProduct struct {
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	Category           string   `json:"category"`
	ImageURL           string   `json:"imageUrl"`
	Price              *float64 `json:"price"`
	DiscountPercentage *float64 `json:"discountPercentage"`
}

// Storefront returns the shop as the public sees it.
func (s *AppService) Storefront() Storefront {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Storefront{
		Config:   s.site.PublicView(),
		Products: productViews(s.products),
	}
}

// SiteConfig returns the full config, passcode included. Admin only.
func (s *AppService) SiteConfig() models.SiteConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.site
}

// UpdateField sets one config field and persists the whole record.
func (s *AppService) UpdateField(ctx context.Context, key string, value interface{}) (models.SiteConfig, error) {
	return s.UpdateFields(ctx, map[string]interface{}{key: value})
}

// UpdateFields applies several fields at once. Either every field is valid
// and the record is written once, or nothing changes.
func (s *AppService) UpdateFields(ctx context.Context, fields map[string]interface{}) (models.SiteConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.site
	for key, value := range fields {
		if err := s.applyField(&next, key, value); err != nil {
			return s.site, err
		}
	}

	s.site = next
	s.store.SaveSiteConfig(ctx, next)

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	log.Info().Strs("fields", keys).Msg("Site config updated")

	return next, nil
}

func (s *AppService) applyField(cfg *models.SiteConfig, key string, value interface{}) error {
	if key == FieldIsPublic {
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("%w: %s must be a boolean", ErrInvalidValue, key)
		}
		cfg.IsPublic = b
		return nil
	}

	var target *string
	switch key {
	case FieldSiteName:
		target = &cfg.SiteName
	case FieldHeroTitle:
		target = &cfg.HeroTitle
	case FieldHeroSubtitle:
		target = &cfg.HeroSubtitle
	case FieldHeroImageURL:
		target = &cfg.HeroImageURL
	case FieldPrimaryColor:
		target = &cfg.PrimaryColor
	case FieldMasterPasscode:
		target = &cfg.MasterPasscode
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, key)
	}

	str, ok := value.(string)
	if !ok {
		return fmt.Errorf("%w: %s must be a string", ErrInvalidValue, key)
	}
	if key == FieldMasterPasscode && !s.validPasscode(str) {
		return fmt.Errorf("%w: must be exactly %d digits", ErrInvalidPasscode, s.gate.PasscodeLength)
	}

	*target = str
	return nil
}

func (s *AppService) validPasscode(code string) bool {
	if len(code) != s.gate.PasscodeLength {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// GenerateHeroCopy asks the AI writer for a new hero headline and subtitle
// and stores them.
func (s *AppService) GenerateHeroCopy(ctx context.Context) models.SiteConfig {
	s.mu.RLock()
	name := s.site.SiteName
	s.mu.RUnlock()

	hero := s.ai.GenerateHeroCopy(ctx, name)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.site.HeroTitle = hero.Title
	s.site.HeroSubtitle = hero.Subtitle
	s.store.SaveSiteConfig(ctx, s.site)

	log.Info().Str("title", hero.Title).Msg("Hero copy generated")
	return s.site
}

// ListProducts returns the catalog in display order.
func (s *AppService) ListProducts() []ProductView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return productViews(s.products)
}

// AddProduct validates input, fills in defaults and appends the product.
func (s *AppService) AddProduct(ctx context.Context, in NewProduct) (models.Product, error) {
	p := models.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		ImageURL:    strings.TrimSpace(in.ImageURL),
		Price:       DefaultPrice,
	}

	if p.Name == "" {
		return models.Product{}, fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if p.Description == "" {
		return models.Product{}, fmt.Errorf("%w: description is required", ErrInvalidProduct)
	}
	if p.Category == "" {
		p.Category = DefaultCategory
	}
	if p.ImageURL == "" {
		p.ImageURL = models.DefaultProductImage
	}
	if in.Price != nil {
		if *in.Price <= 0 {
			return models.Product{}, fmt.Errorf("%w: price must be positive", ErrInvalidProduct)
		}
		p.Price = *in.Price
	}
	if in.DiscountPercentage != nil {
		if *in.DiscountPercentage < 0 || *in.DiscountPercentage > 100 {
			return models.Product{}, fmt.Errorf("%w: discount must be between 0 and 100", ErrInvalidProduct)
		}
		p.DiscountPercentage = *in.DiscountPercentage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.nextProductID()

	products := make([]models.Product, 0, len(s.products)+1)
	products = append(products, s.products...)
	products = append(products, p)

	s.products = products
	s.store.SaveProducts(ctx, products)

	log.Info().Str("product_id", p.ID).Str("name", p.Name).Msg("Product added")
	return p, nil
}

// nextProductID uses the current Unix time in milliseconds, bumped past any
// ID already taken. Callers hold s.mu.
func (s *AppService) nextProductID() string {
	id := time.Now().UnixMilli()
	for {
		candidate := strconv.FormatInt(id, 10)
		taken := false
		for _, existing := range s.products {
			if existing.ID == candidate {
				taken = true
				break
			}
		}
		if !taken {
			return candidate
		}
		id++
	}
}

// DeleteProduct removes a product by ID.
func (s *AppService) DeleteProduct(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	products := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.ID != id {
			products = append(products, p)
		}
	}
	if len(products) == len(s.products) {
		return ErrProductNotFound
	}

	s.products = products
	s.store.SaveProducts(ctx, products)

	log.Info().Str("product_id", id).Msg("Product deleted")
	return nil
}

// DescribeProduct drafts marketing copy for a product that is being added.
func (s *AppService) DescribeProduct(ctx context.Context, name, category string) string {
	if category == "" {
		category = DefaultCategory
	}
	return s.ai.GenerateText(ctx, name, category)
}

// VisitorLogs returns the persisted visitor log, newest first.
func (s *AppService) VisitorLogs(ctx context.Context) []models.VisitorLog {
	return s.store.LoadVisitorLogs(ctx)
}

// AI exposes the AI capability for the studio handlers.
func (s *AppService) AI() AIService {
	return s.ai
}

func productViews(products []models.Product) []ProductView {
	views := make([]ProductView, len(products))
	for i, p := range products {
		views[i] = ProductView{Product: p, FinalPrice: p.FinalPrice(), Currency: models.Currency}
	}
	return views
}
