package analyzer

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// CountryResolver 本地地理库查询国家名
type CountryResolver interface {
	Country(ip string) (string, error)
}

type countryReader interface {
	Country(ip net.IP) (*geoip2.Country, error)
}

// GeoResolver 基于 GeoLite2/GeoIP2 Country 或 City 库
type GeoResolver struct {
	reader countryReader
}

func NewGeoResolver(reader *geoip2.Reader) *GeoResolver {
	return &GeoResolver{reader: reader}
}

// Country 返回英文国家名，库中无记录时返回空串
func (g *GeoResolver) Country(ipStr string) (string, error) {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return "", fmt.Errorf("无效的IP地址: %s", ipStr)
	}
	record, err := g.reader.Country(ip)
	if err != nil {
		return "", err
	}
	return record.Country.Names["en"], nil
}
