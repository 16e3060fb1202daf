package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWhitelistContainsIP(t *testing.T) {
	w := NewWhitelist([]string{"127.0.0.0/8", " 10.1.2.3 ", "::1", "fd00::/8", "not-an-ip"})

	assert.True(t, w.ContainsIP("127.0.0.1"))
	assert.True(t, w.ContainsIP("10.1.2.3"))
	assert.False(t, w.ContainsIP("10.1.2.4"))
	assert.True(t, w.ContainsIP("::1"))
	assert.True(t, w.ContainsIP("fd12:3456::1"))
	assert.False(t, w.ContainsIP("2001:db8::1"))
	assert.False(t, w.ContainsIP("bogus"))
}

func TestWhitelistEmpty(t *testing.T) {
	w := NewWhitelist(nil)
	assert.False(t, w.ContainsIP("127.0.0.1"))

	w.Update([]string{"192.168.0.0/16"})
	assert.True(t, w.ContainsIP("192.168.3.4"))
}
