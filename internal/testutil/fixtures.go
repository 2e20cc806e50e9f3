// Package testutil provides common testing utilities, fixtures, and helpers
// for use across all test files in the Mizo Candle project.
package testutil

import (
	"time"

	"github.com/Moaaz208/Mizo-Candle/internal/models"
)

// TestPasscode is the passcode of TestSiteConfig.
const TestPasscode = "552008"

// TestSiteConfig returns the default site config, locked or public.
func TestSiteConfig(public bool) models.SiteConfig {
	cfg := models.DefaultSiteConfig()
	cfg.MasterPasscode = TestPasscode
	cfg.IsPublic = public
	return cfg
}

// TestProduct creates a catalog entry with default values
func TestProduct() models.Product {
	return models.Product{
		ID:                 "1700000000000",
		Name:               "Amber Ember",
		Description:        "Smoky amber with a hint of vanilla.",
		Price:              240,
		Category:           "Candles",
		ImageURL:           models.DefaultProductImage,
		DiscountPercentage: 10,
	}
}

// TestProductWithID creates a catalog entry with a specific ID
func TestProductWithID(id string) models.Product {
	p := TestProduct()
	p.ID = id
	return p
}

// TestVisitorLog creates a visitor snapshot with a distinguishable IP
func TestVisitorLog(ip string) models.VisitorLog {
	return models.VisitorLog{
		IP:               ip,
		Country:          "Egypt",
		UserAgent:        UserAgents.Chrome,
		Language:         "en-US",
		Platform:         "Win32",
		ScreenResolution: "1920x1080",
		ViewportSize:     "1280x720",
		ConnectionType:   "4g",
		Timestamp:        time.Date(2024, 1, 20, 15, 0, 0, 0, time.UTC).Format(time.RFC3339),
		Timezone:         "Africa/Cairo",
		BatteryLevel:     "87%",
		Cores:            IntPtr(8),
		Memory:           Float64Ptr(16),
		DeviceType:       models.DeviceComputer,
	}
}

// IntPtr returns a pointer to the given int
func IntPtr(i int) *int {
	return &i
}

// Float64Ptr returns a pointer to the given float64
func Float64Ptr(f float64) *float64 {
	return &f
}

// UserAgents provides common user agent strings for testing
var UserAgents = struct {
	Chrome       string
	Safari       string
	Firefox      string
	Edge         string
	MobileChrome string
	MobileSafari string
	IPad         string
	Unknown      string
}{
	Chrome:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	Safari:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
	Firefox:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	Edge:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
	MobileChrome: "Mozilla/5.0 (Linux; Android 13) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.144 Mobile Safari/537.36",
	MobileSafari: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
	IPad:         "Mozilla/5.0 (iPad; CPU OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
	Unknown:      "",
}

// IPAddresses provides test IP addresses
var IPAddresses = struct {
	Public     string
	Private    string
	Localhost  string
	Private10  string
	Private172 string
}{
	Public:     "203.0.113.42",
	Private:    "192.168.1.100",
	Localhost:  "127.0.0.1",
	Private10:  "10.0.0.1",
	Private172: "172.16.0.1",
}
