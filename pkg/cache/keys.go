package cache

import "fmt"

// Key prefixes and record names. Storefront records live under a
// configurable namespace ("nexus" by default), so the full key of the site
// config is "nexus:config".
const (
	GeoLocationPrefix = "geo:"
	RateLimitPrefix   = "ratelimit:"

	ConfigRecord      = "config"
	ProductsRecord    = "products"
	VisitorLogsRecord = "visitor-logs"
)

// RecordKey builds the key of a persisted storefront record.
//
// Example: "nexus:visitor-logs"
func RecordKey(namespace, record string) string {
	return fmt.Sprintf("%s:%s", namespace, record)
}

// GeoLocationKey generates a cache key for geo-IP results by address.
//
// Example: "geo:203.0.113.42"
func GeoLocationKey(ipAddress string) string {
	return fmt.Sprintf("%s%s", GeoLocationPrefix, ipAddress)
}

// RateLimitKey generates the counter key for an IP and endpoint group.
//
// Example: "ratelimit:203.0.113.42:gate"
func RateLimitKey(ip, endpoint string) string {
	return fmt.Sprintf("%s%s:%s", RateLimitPrefix, ip, endpoint)
}
