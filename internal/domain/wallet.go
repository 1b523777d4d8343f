package domain

import "fmt"

// SigningMode determina cómo se firma una orden en el CLOB.
// Usar el modo equivocado produce rechazo de firma en el venue, así que
// la selección viene siempre de la configuración del wallet y nunca de
// un fallback silencioso.
type SigningMode string

const (
	// SigningEOA: wallet controlado directamente por private key.
	// maker == signer, signature type 0.
	SigningEOA SigningMode = "eoa"
	// SigningProxy: wallet proxy de Polymarket (custodiado por browser).
	// maker = funder address, signer = EOA, signature type 1.
	SigningProxy SigningMode = "proxy"
	// SigningSafe: Gnosis Safe. maker = funder, signer = EOA, type 2.
	SigningSafe SigningMode = "safe"
)

// ParseSigningMode valida el modo configurado. Un modo desconocido es un
// defecto de configuración y debe abortar el arranque.
func ParseSigningMode(s string) (SigningMode, error) {
	switch SigningMode(s) {
	case SigningEOA, SigningProxy, SigningSafe:
		return SigningMode(s), nil
	case "":
		return "", fmt.Errorf("signing mode vacío: configurar wallet.signing_mode (eoa|proxy|safe)")
	}
	return "", fmt.Errorf("signing mode desconocido %q (eoa|proxy|safe)", s)
}

// SignatureType devuelve el signature type del protocolo de órdenes:
// EOA=0, POLY_PROXY=1, POLY_GNOSIS_SAFE=2.
func (m SigningMode) SignatureType() int {
	switch m {
	case SigningProxy:
		return 1
	case SigningSafe:
		return 2
	}
	return 0
}

// UsesProxy devuelve true si las órdenes se firman en nombre de un
// funder distinto del signer.
func (m SigningMode) UsesProxy() bool {
	return m == SigningProxy || m == SigningSafe
}

// Wallet es la identidad de trading configurada.
type Wallet struct {
	Address       string // EOA que firma
	FunderAddress string // dirección que custodia los fondos (proxy/safe)
	Mode          SigningMode
}

// Maker devuelve la dirección que actúa como maker en las órdenes.
func (w Wallet) Maker() string {
	if w.Mode.UsesProxy() && w.FunderAddress != "" {
		return w.FunderAddress
	}
	return w.Address
}
