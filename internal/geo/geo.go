// Package geo provides best-effort reverse geocoding. A geocoder failure is
// never fatal: callers leave the resolved address unset and move on.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"civico/backend/internal/config"
)

// Geocoder turns coordinates into a display address. ok=false means the
// service had no answer (or was unavailable); that is not an error condition
// for callers.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (address string, ok bool)
}

// Cache is the small caching surface the cached geocoder needs; satisfied by
// storage.Service.
type Cache interface {
	CacheGet(ctx context.Context, key string) (string, bool, error)
	CacheSet(ctx context.Context, key, value string, ttl time.Duration) error
}

// Cached wraps a Geocoder with a coordinate-keyed cache. Coordinates are
// rounded to ~10m so nearby lookups share an entry.
type Cached struct {
	Inner Geocoder
	Cache Cache
}

// NewCached wraps inner with the given cache.
func NewCached(inner Geocoder, cache Cache) *Cached {
	return &Cached{Inner: inner, Cache: cache}
}

func (c *Cached) ReverseGeocode(ctx context.Context, lat, lng float64) (string, bool) {
	key := fmt.Sprintf("geocode:%.4f,%.4f", lat, lng)
	if val, ok, err := c.Cache.CacheGet(ctx, key); err == nil && ok {
		return val, true
	}
	addr, ok := c.Inner.ReverseGeocode(ctx, lat, lng)
	if !ok {
		return "", false
	}
	_ = c.Cache.CacheSet(ctx, key, addr, config.GeocodeCacheTTL)
	return addr, true
}

// Nominatim reverse-geocodes against the OpenStreetMap Nominatim API.
type Nominatim struct {
	BaseURL   string
	UserAgent string
	Client    *http.Client
}

// NewNominatim builds a client with the standard 6 second budget.
func NewNominatim(userAgent string) *Nominatim {
	return &Nominatim{
		BaseURL:   "https://nominatim.openstreetmap.org/reverse",
		UserAgent: userAgent,
		Client:    &http.Client{Timeout: config.GeocodeTimeout},
	}
}

// ReverseGeocode queries Nominatim. Any failure (network, non-200, empty
// body) yields ok=false.
func (n *Nominatim) ReverseGeocode(ctx context.Context, lat, lng float64) (string, bool) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", fmt.Sprintf("%f", lat))
	q.Set("lon", fmt.Sprintf("%f", lng))
	q.Set("zoom", "18")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("User-Agent", n.UserAgent)

	resp, err := n.Client.Do(req)
	if err != nil {
		log.Printf("ERROR: Reverse geocode request failed: %v", err)
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false
	}

	var body struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", false
	}
	if body.DisplayName == "" {
		return "", false
	}
	return body.DisplayName, true
}
