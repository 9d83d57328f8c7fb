package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/your-org/photobomb/internal/config"
)

// Geocoder resolves GPS coordinates into a display name via a
// Nominatim-compatible reverse endpoint.
type Geocoder struct {
	baseURL string
	enabled bool
	client  *http.Client
}

func NewGeocoder(cfg config.GeocoderConfig) *Geocoder {
	return &Geocoder{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		enabled: cfg.Enabled && cfg.BaseURL != "",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type reverseResponse struct {
	Address struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		State   string `json:"state"`
		Country string `json:"country"`
	} `json:"address"`
	DisplayName string `json:"display_name"`
}

// Reverse returns "city, region, country" for a coordinate pair. Lookup
// problems are logged and swallowed; a photo is never failed over a
// missing place name.
func (g *Geocoder) Reverse(ctx context.Context, lat, lng float64) string {
	if !g.enabled {
		return ""
	}

	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%f", lat))
	q.Set("lon", fmt.Sprintf("%f", lng))
	q.Set("format", "jsonv2")
	q.Set("zoom", "10")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		slog.Warn("geocode request build failed", "error", err)
		return ""
	}
	req.Header.Set("User-Agent", "photobomb/1.0")

	resp, err := g.client.Do(req)
	if err != nil {
		slog.Warn("geocode lookup failed", "lat", lat, "lng", lng, "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("geocode lookup rejected", "status", resp.StatusCode)
		return ""
	}

	var rr reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		slog.Warn("geocode response decode failed", "error", err)
		return ""
	}

	city := rr.Address.City
	if city == "" {
		city = rr.Address.Town
	}
	if city == "" {
		city = rr.Address.Village
	}

	var parts []string
	for _, p := range []string{city, rr.Address.State, rr.Address.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return rr.DisplayName
	}
	return strings.Join(parts, ", ")
}
