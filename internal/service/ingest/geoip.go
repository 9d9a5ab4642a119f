package ingest

import (
	"errors"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// ErrInvalidIP is returned when the client IP cannot be parsed.
var ErrInvalidIP = errors.New("invalid IP address")

// Locator resolves a client IP to a coarse location. Optional: a nil Locator
// just skips enrichment.
type Locator interface {
	Locate(ip string) (country, city string, err error)
	Close() error
}

type maxmindLocator struct {
	db *geoip2.Reader
}

// NewMaxmindLocator opens a GeoLite2/GeoIP2 city database.
func NewMaxmindLocator(dbPath string) (Locator, error) {
	db, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, err
	}
	return &maxmindLocator{db: db}, nil
}

func (l *maxmindLocator) Locate(ip string) (string, string, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", "", ErrInvalidIP
	}

	record, err := l.db.City(parsed)
	if err != nil {
		return "", "", err
	}

	country := record.Country.Names["en"]
	city := ""
	if len(record.City.Names) > 0 {
		city = record.City.Names["en"]
	}
	return country, city, nil
}

func (l *maxmindLocator) Close() error {
	return l.db.Close()
}
