package geoip

import (
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// UnknownCountry groups addresses the database cannot place.
const UnknownCountry = "unknown"

var ErrInvalidIP = errors.New("invalid ip address")

// Locator resolves an address to its ISO country code.
type Locator interface {
	Country(ip string) (string, error)
	Close() error
}

type reader struct {
	db *geoip2.Reader
}

// Open loads a GeoLite2/GeoIP2 Country or City database.
func Open(path string) (Locator, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geoip database: %w", err)
	}
	return &reader{db: db}, nil
}

func (r *reader) Country(ip string) (string, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidIP, ip)
	}
	record, err := r.db.Country(parsed)
	if err != nil {
		return "", err
	}
	if record.Country.IsoCode == "" {
		return UnknownCountry, nil
	}
	return record.Country.IsoCode, nil
}

func (r *reader) Close() error {
	return r.db.Close()
}

// CountByCountry resolves every address and counts them per country. Lookup
// failures are counted as unknown.
func CountByCountry(locator Locator, ips []string) map[string]int {
	out := make(map[string]int)
	for _, ip := range ips {
		code, err := locator.Country(ip)
		if err != nil || code == "" {
			code = UnknownCountry
		}
		out[code]++
	}
	return out
}
