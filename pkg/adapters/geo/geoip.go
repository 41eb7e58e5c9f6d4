// Package geo resolves client addresses to countries with a MaxMind database.
package geo

import (
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"

	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

var ErrInvalidIP = errors.New("invalid ip address")

// countryReader is the part of *geoip2.Reader the locator needs
type countryReader interface {
	Country(ip net.IP) (*geoip2.Country, error)
	Close() error
}

type GeoIPLocator struct {
	db countryReader
}

// Open loads a GeoLite2/GeoIP2 Country or City database
func Open(path string) (*GeoIPLocator, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &GeoIPLocator{db: db}, nil
}

// Country returns the English country name, falling back to the ISO code
func (l *GeoIPLocator) Country(ip string) (string, error) {
	addr := net.ParseIP(ip)
	if addr == nil {
		return "", ErrInvalidIP
	}

	record, err := l.db.Country(addr)
	if err != nil {
		return "", err
	}
	if name, ok := record.Country.Names["en"]; ok {
		return name, nil
	}
	return record.Country.IsoCode, nil
}

func (l *GeoIPLocator) Close() error {
	return l.db.Close()
}

var _ ports.Locator = (*GeoIPLocator)(nil)
