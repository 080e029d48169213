// Package enrich fills in missing transaction attributes from external
// data sources before scoring.
package enrich

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/oschwald/geoip2-golang"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// GeoIP resolves client IPs to coordinates using a local MaxMind City
// database. A nil GeoIP is valid and enriches nothing.
type GeoIP struct {
	reader *geoip2.Reader
	logger *slog.Logger
}

// NewGeoIP opens the configured database. An empty path disables
// enrichment and returns nil without error.
func NewGeoIP(cfg domain.GeoIPConfig, logger *slog.Logger) (*GeoIP, error) {
	if cfg.CityDBPath == "" {
		return nil, nil
	}

	reader, err := geoip2.Open(cfg.CityDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open geoip database: %w", err)
	}

	return &GeoIP{
		reader: reader,
		logger: logger.With("component", "geoip"),
	}, nil
}

// Enrich fills the transaction's location from its client IP. Existing
// locations are never overwritten; lookup failures leave the
// transaction unchanged.
func (g *GeoIP) Enrich(tx *domain.TransactionInput) {
	if g == nil || tx.Location != nil || tx.ClientIP == "" {
		return
	}

	ip := net.ParseIP(tx.ClientIP)
	if ip == nil {
		return
	}

	city, err := g.reader.City(ip)
	if err != nil {
		g.logger.Warn("geoip lookup failed", "ip", tx.ClientIP, "error", err)
		return
	}
	if city.Location.Latitude == 0 && city.Location.Longitude == 0 {
		return
	}

	tx.Location = &domain.Location{
		Lat: city.Location.Latitude,
		Lng: city.Location.Longitude,
	}
}

// Close releases the database handle.
func (g *GeoIP) Close() error {
	if g == nil {
		return nil
	}
	return g.reader.Close()
}
