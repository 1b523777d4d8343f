package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSigningMode(t *testing.T) {
	for _, valid := range []string{"eoa", "proxy", "safe"} {
		mode, err := ParseSigningMode(valid)
		require.NoError(t, err)
		assert.Equal(t, SigningMode(valid), mode)
	}

	_, err := ParseSigningMode("")
	assert.Error(t, err)
	_, err = ParseSigningMode("magic")
	assert.Error(t, err)
}

func TestSigningMode_SignatureType(t *testing.T) {
	// un EOA nunca debe producir órdenes firmadas en modo proxy
	assert.Equal(t, 0, SigningEOA.SignatureType())
	assert.Equal(t, 1, SigningProxy.SignatureType())
	assert.Equal(t, 2, SigningSafe.SignatureType())

	assert.False(t, SigningEOA.UsesProxy())
	assert.True(t, SigningProxy.UsesProxy())
	assert.True(t, SigningSafe.UsesProxy())
}

func TestWallet_Maker(t *testing.T) {
	eoa := Wallet{Address: "0xSigner", FunderAddress: "0xFunder", Mode: SigningEOA}
	assert.Equal(t, "0xSigner", eoa.Maker(), "EOA firma con su propia dirección")

	proxy := Wallet{Address: "0xSigner", FunderAddress: "0xFunder", Mode: SigningProxy}
	assert.Equal(t, "0xFunder", proxy.Maker(), "proxy usa el funder como maker")

	// proxy sin funder configurado cae a la dirección del signer
	incomplete := Wallet{Address: "0xSigner", Mode: SigningProxy}
	assert.Equal(t, "0xSigner", incomplete.Maker())
}
