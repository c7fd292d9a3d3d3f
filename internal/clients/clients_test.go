package clients

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// well-known test key from the go-ethereum docs
const testKey = "fad9c8855b740a0b7ed4c221dbad0f33a83a49cad6b3fe8d5817ac83d38b6a19"

func TestParsePrivateKey(t *testing.T) {
	k1, err := parsePrivateKey(testKey)
	require.NoError(t, err)
	k2, err := parsePrivateKey("0x" + testKey)
	require.NoError(t, err)
	assert.True(t, k1.Equal(k2))

	a1, err := accountAddress(k1)
	require.NoError(t, err)
	assert.Len(t, a1, 42)

	eph, err := parsePrivateKey("")
	require.NoError(t, err)
	assert.False(t, eph.Equal(k1))

	_, err = parsePrivateKey("zz")
	assert.Error(t, err)
}

func TestNewBinanceClient(t *testing.T) {
	c := NewBinanceClient("", "", "http://127.0.0.1:1")
	assert.Equal(t, "http://127.0.0.1:1", c.BaseURL)

	c = NewBinanceClient("", "", "")
	assert.NotEmpty(t, c.BaseURL)
}
