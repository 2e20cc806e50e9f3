package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Moaaz208/Mizo-Candle/internal/models"
	"github.com/Moaaz208/Mizo-Candle/pkg/cache"
	"github.com/Moaaz208/Mizo-Candle/pkg/config"
	"github.com/Moaaz208/Mizo-Candle/pkg/utils"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// GeoResult is the public address and country of a visitor.
type GeoResult struct {
	IP      string `json:"ip"`
	Country string `json:"country"`
}

// unknownGeo is recorded whenever the lookup fails.
var unknownGeo = GeoResult{IP: models.Unknown, Country: models.Unknown}

// GeoIPService resolves an address to a country through an ipapi.co style
// JSON endpoint. Lookups are attempted once; a failure is not retried.
type GeoIPService struct {
	baseURL  string
	client   *http.Client
	cache    *cache.Cache
	cacheTTL time.Duration
}

// NewGeoIPService creates the lookup client. c may be nil to disable caching.
// A zero cfg.Timeout leaves requests unbounded apart from the caller's context.
func NewGeoIPService(cfg *config.GeoIPConfig, c *cache.Cache) *GeoIPService {
	return &GeoIPService{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		client:   &http.Client{Timeout: cfg.Timeout},
		cache:    c,
		cacheTTL: cfg.CacheTTL,
	}
}

// Lookup resolves ip. Private and loopback addresses are resolved as the
// server's own public address, the way a browser calling the endpoint
// directly would see it. It never fails: any error yields "Unknown".
func (s *GeoIPService) Lookup(ctx context.Context, ip string) GeoResult {
	public := ip != "" && !utils.IsPrivateIP(ip)

	key := cache.GeoLocationKey(ip)
	if public && s.cache != nil {
		var cached GeoResult
		err := s.cache.Get(ctx, key, &cached)
		switch {
		case err == nil && cached.Country != models.Unknown:
			return cached
		case err == nil:
			// partial answers are looked up again
			if err := s.cache.Delete(ctx, key); err != nil {
				log.Warn().Err(err).Str("ip", ip).Msg("Geo cache eviction failed")
			}
		case !errors.Is(err, cache.ErrCacheMiss):
			log.Warn().Err(err).Str("ip", ip).Msg("Geo cache read failed")
		}
	}

	result, err := s.fetch(ctx, ip, public)
	if err != nil {
		log.Warn().Err(err).Str("ip", ip).Msg("Geo-IP lookup failed")
		return unknownGeo
	}

	if public && s.cache != nil && result.Country != models.Unknown {
		if err := s.cache.Set(ctx, key, result, s.cacheTTL); err != nil {
			log.Warn().Err(err).Str("ip", ip).Msg("Geo cache write failed")
		}
	}

	return result
}

func (s *GeoIPService) fetch(ctx context.Context, ip string, public bool) (GeoResult, error) {
	endpoint := s.baseURL + "/json/"
	if public {
		endpoint = fmt.Sprintf("%s/%s/json/", s.baseURL, ip)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return GeoResult{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return GeoResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return GeoResult{}, fmt.Errorf("geo-IP lookup returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return GeoResult{}, err
	}
	if !gjson.ValidBytes(body) {
		return GeoResult{}, fmt.Errorf("geo-IP lookup returned invalid JSON")
	}

	parsed := gjson.ParseBytes(body)
	if parsed.Get("error").Bool() {
		return GeoResult{}, fmt.Errorf("geo-IP lookup refused: %s", parsed.Get("reason").String())
	}

	result := GeoResult{
		IP:      parsed.Get("ip").String(),
		Country: parsed.Get("country_name").String(),
	}
	if result.IP == "" {
		result.IP = models.Unknown
	}
	if result.Country == "" {
		result.Country = models.Unknown
	}
	return result, nil
}
