package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/your-org/photobomb/internal/config"
)

func TestGeocoderReverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"address":{"town":"Trento","state":"Trentino","country":"Italy"}}`))
	}))
	defer srv.Close()

	g := NewGeocoder(config.GeocoderConfig{BaseURL: srv.URL, Enabled: true})
	got := g.Reverse(context.Background(), 46.07, 11.12)
	if got != "Trento, Trentino, Italy" {
		t.Errorf("Reverse = %q; want %q", got, "Trento, Trentino, Italy")
	}
}

func TestGeocoderDisabled(t *testing.T) {
	g := NewGeocoder(config.GeocoderConfig{})
	if got := g.Reverse(context.Background(), 1, 2); got != "" {
		t.Errorf("disabled geocoder returned %q", got)
	}
}

func TestGeocoderSoftFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := NewGeocoder(config.GeocoderConfig{BaseURL: srv.URL, Enabled: true})
	if got := g.Reverse(context.Background(), 1, 2); got != "" {
		t.Errorf("rate-limited lookup returned %q; want empty", got)
	}
}
