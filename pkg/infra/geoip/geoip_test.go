package geoip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLocator map[string]string

func (s staticLocator) Country(ip string) (string, error) {
	if code, ok := s[ip]; ok {
		return code, nil
	}
	return "", ErrInvalidIP
}

func (s staticLocator) Close() error { return nil }

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open("/nonexistent/GeoLite2-Country.mmdb")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open geoip database")
}

func TestCountByCountry(t *testing.T) {
	loc := staticLocator{"1.1.1.1": "AU", "8.8.8.8": "US", "8.8.4.4": "US"}
	counts := CountByCountry(loc, []string{"1.1.1.1", "8.8.8.8", "8.8.4.4", "203.0.113.1"})
	assert.Equal(t, map[string]int{"AU": 1, "US": 2, UnknownCountry: 1}, counts)
}
