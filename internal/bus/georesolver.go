package bus

import (
	"hash/fnv"
	"net"

	"github.com/oschwald/geoip2-golang"
	"github.com/sirupsen/logrus"
)

// GeoResolver is the pluggable country/city derivation collaborator named by
// the Event Bus Producer: initially a deterministic synthetic mapping,
// optionally an IP-geolocation library.
type GeoResolver interface {
	Resolve(ip string) (country, city string)
}

var syntheticCountries = []struct {
	code, name string
}{
	{"US", "United States"}, {"GB", "United Kingdom"}, {"DE", "Germany"},
	{"FR", "France"}, {"IN", "India"}, {"BR", "Brazil"}, {"JP", "Japan"},
	{"CA", "Canada"}, {"AU", "Australia"}, {"ZA", "South Africa"},
}

// SyntheticGeoResolver derives a deterministic, stable pair from an FNV hash
// of the IP address: a country code and, in the city slot, that country's
// full name. It makes no network or file system calls
// and is the default when no MaxMind database is configured.
type SyntheticGeoResolver struct{}

func NewSyntheticGeoResolver() *SyntheticGeoResolver {
	return &SyntheticGeoResolver{}
}

func (SyntheticGeoResolver) Resolve(ip string) (string, string) {
	h := fnv.New32a()
	h.Write([]byte(ip))
	idx := int(h.Sum32()) % len(syntheticCountries)
	if idx < 0 {
		idx += len(syntheticCountries)
	}
	entry := syntheticCountries[idx]
	return entry.code, entry.name
}

// MaxMindGeoResolver resolves against a local GeoLite2/GeoIP2 City database.
type MaxMindGeoResolver struct {
	db *geoip2.Reader
}

func NewMaxMindGeoResolver(dbPath string) (*MaxMindGeoResolver, error) {
	db, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, err
	}
	return &MaxMindGeoResolver{db: db}, nil
}

func (r *MaxMindGeoResolver) Resolve(ipStr string) (string, string) {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return "", ""
	}

	record, err := r.db.City(ip)
	if err != nil {
		logrus.WithError(err).WithField("ip", ipStr).Debug("geoip lookup failed")
		return "", ""
	}

	country := record.Country.IsoCode
	city := ""
	if name, ok := record.City.Names["en"]; ok {
		city = name
	}
	return country, city
}

func (r *MaxMindGeoResolver) Close() error {
	return r.db.Close()
}
