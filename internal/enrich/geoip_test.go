package enrich

import (
	"io"
	"log/slog"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestNewGeoIPDisabled(t *testing.T) {
	g, err := NewGeoIP(domain.GeoIPConfig{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("empty path must not error: %v", err)
	}
	if g != nil {
		t.Fatal("expected nil enricher when disabled")
	}

	// Nil enricher is safe to use.
	tx := &domain.TransactionInput{ClientIP: "203.0.113.9"}
	g.Enrich(tx)
	if tx.Location != nil {
		t.Error("disabled enricher must not set location")
	}
	if err := g.Close(); err != nil {
		t.Errorf("nil close must succeed: %v", err)
	}
}

func TestNewGeoIPMissingDatabase(t *testing.T) {
	_, err := NewGeoIP(domain.GeoIPConfig{CityDBPath: "/nonexistent/GeoLite2-City.mmdb"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil {
		t.Error("expected error for missing database file")
	}
}

func TestEnrichPreservesExistingLocation(t *testing.T) {
	var g *GeoIP

	loc := &domain.Location{Lat: 1, Lng: 2}
	tx := &domain.TransactionInput{ClientIP: "203.0.113.9", Location: loc}
	g.Enrich(tx)
	if tx.Location != loc {
		t.Error("existing location must be preserved")
	}
}
