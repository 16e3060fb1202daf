package analyzer

import (
	"errors"
	"net"
	"testing"

	"github.com/oschwald/geoip2-golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCountryReader struct {
	names map[string]string
}

func (s stubCountryReader) Country(ip net.IP) (*geoip2.Country, error) {
	name, ok := s.names[ip.String()]
	if !ok {
		return nil, errors.New("lookup failed")
	}
	rec := &geoip2.Country{}
	rec.Country.Names = map[string]string{"en": name, "zh-CN": "澳大利亚"}
	return rec, nil
}

func TestGeoResolverCountry(t *testing.T) {
	g := &GeoResolver{reader: stubCountryReader{names: map[string]string{"1.1.1.1": "Australia"}}}

	c, err := g.Country("1.1.1.1")
	require.NoError(t, err)
	assert.Equal(t, "Australia", c)

	_, err = g.Country("2.2.2.2")
	assert.Error(t, err)

	_, err = g.Country("not-an-ip")
	assert.Error(t, err)
}
