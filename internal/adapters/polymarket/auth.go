package polymarket

// auth.go — cliente autenticado del CLOB.
//
// Dos niveles de auth:
//   L1: firma EIP-712 con la private key del wallet → deriva credenciales API
//   L2: HMAC-SHA256 sobre cada request autenticado

import (
	"context"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/polymarket/go-order-utils/pkg/builder"
	gomodel "github.com/polymarket/go-order-utils/pkg/model"

	"github.com/alejandrodnm/polyfarm/internal/domain"
)

const (
	polygonChainID = int64(137)

	// Dominio EIP-712 de auth del CLOB
	clobDomainName    = "ClobAuthDomain"
	clobDomainVersion = "1"
	// Mensaje firmado para derivar API keys
	clobAuthMessage = "This message attests that I control the given wallet"
)

// apiCredentials son las credenciales del CLOB derivadas de un wallet.
type apiCredentials struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// AuthClient envuelve el Client base con capacidades de auth L1/L2.
// El signing mode del wallet viene de configuración y determina cómo se
// firman las órdenes (ver trading.go).
type AuthClient struct {
	*Client
	privateKey   *ecdsa.PrivateKey
	address      common.Address
	wallet       domain.Wallet
	orderBuilder builder.ExchangeOrderBuilder
	creds        *apiCredentials
}

// NewAuthClient crea un cliente autenticado de trading.
// privateKeyHex es la private key de Polygon sin prefijo 0x. El funder y
// el signing mode vienen del wallet configurado; un mode inválido ya fue
// rechazado al cargar la config.
func NewAuthClient(client *Client, privateKeyHex, funderAddress string, mode domain.SigningMode) (*AuthClient, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("auth: invalid private key: %w", err)
	}

	addr := crypto.PubkeyToAddress(key.PublicKey)
	ob := builder.NewExchangeOrderBuilderImpl(big.NewInt(polygonChainID), nil)

	return &AuthClient{
		Client:       client,
		privateKey:   key,
		address:      addr,
		orderBuilder: ob,
		wallet: domain.Wallet{
			Address:       addr.Hex(),
			FunderAddress: funderAddress,
			Mode:          mode,
		},
	}, nil
}

// Address devuelve la dirección del wallet firmante.
func (ac *AuthClient) Address() string {
	return ac.address.Hex()
}

// Wallet devuelve la identidad de trading configurada.
func (ac *AuthClient) Wallet() domain.Wallet {
	return ac.wallet
}

// EnsureCreds deriva (o re-deriva) credenciales API via L1 auth.
// Llamar una vez al arrancar; las credenciales quedan cacheadas.
func (ac *AuthClient) EnsureCreds(ctx context.Context) error {
	if ac.creds != nil {
		return nil
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig, err := ac.signClobAuth(ts, "0")
	if err != nil {
		return fmt.Errorf("auth: sign l1: %w", err)
	}

	url := fmt.Sprintf("%s/auth/derive-api-key", ac.clobBase)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("auth: derive-api-key request: %w", err)
	}
	req.Header.Set("POLY_ADDRESS", ac.address.Hex())
	req.Header.Set("POLY_SIGNATURE", sig)
	req.Header.Set("POLY_TIMESTAMP", ts)
	req.Header.Set("POLY_NONCE", "0")

	resp, err := ac.http.Do(req)
	if err != nil {
		return fmt.Errorf("auth: derive-api-key: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth: derive-api-key status %d: %s", resp.StatusCode, body)
	}

	var creds apiCredentials
	if err := json.Unmarshal(body, &creds); err != nil {
		return fmt.Errorf("auth: parse creds: %w", err)
	}
	ac.creds = &creds
	return nil
}

// Type hashes EIP-712 (calculados una vez).
var (
	eip712DomainTypeHash = crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId)",
	))
	clobAuthTypeHash = crypto.Keccak256Hash([]byte(
		"ClobAuth(address address,string timestamp,uint256 nonce,string message)",
	))
)

// clobAuthDomainSeparator calcula el domain separator EIP-712 de ClobAuthDomain.
func clobAuthDomainSeparator() common.Hash {
	var buf []byte
	buf = append(buf, eip712DomainTypeHash.Bytes()...)
	buf = append(buf, crypto.Keccak256Hash([]byte(clobDomainName)).Bytes()...)
	buf = append(buf, crypto.Keccak256Hash([]byte(clobDomainVersion)).Bytes()...)
	buf = append(buf, common.LeftPadBytes(big.NewInt(polygonChainID).Bytes(), 32)...)
	return crypto.Keccak256Hash(buf)
}

// signClobAuth firma el typed data ClobAuth EIP-712 para L1 auth.
func (ac *AuthClient) signClobAuth(timestamp, nonce string) (string, error) {
	nonceInt, ok := new(big.Int).SetString(nonce, 10)
	if !ok {
		return "", fmt.Errorf("invalid nonce: %s", nonce)
	}

	var structBuf []byte
	structBuf = append(structBuf, clobAuthTypeHash.Bytes()...)
	structBuf = append(structBuf, common.LeftPadBytes(ac.address.Bytes(), 32)...)
	structBuf = append(structBuf, crypto.Keccak256Hash([]byte(timestamp)).Bytes()...)
	structBuf = append(structBuf, common.LeftPadBytes(nonceInt.Bytes(), 32)...)
	structBuf = append(structBuf, crypto.Keccak256Hash([]byte(clobAuthMessage)).Bytes()...)
	structHash := crypto.Keccak256Hash(structBuf)

	var rawBuf []byte
	rawBuf = append(rawBuf, 0x19, 0x01)
	rawBuf = append(rawBuf, clobAuthDomainSeparator().Bytes()...)
	rawBuf = append(rawBuf, structHash.Bytes()...)
	msgHash := crypto.Keccak256Hash(rawBuf)

	sig, err := crypto.Sign(msgHash.Bytes(), ac.privateKey)
	if err != nil {
		return "", err
	}
	sig[64] += 27
	return "0x" + fmt.Sprintf("%x", sig), nil
}

// Needed by zero-taker public orders.
const zeroAddress = "0x0000000000000000000000000000000000000000"

// buildSignedOrder crea una orden EIP-712 firmada.
// price está en USDC por share y size en shares. Se usa aritmética entera
// para que makerAmount == price * takerAmount exacto, que es lo que el CLOB
// verifica. El maker es el funder (proxy/safe) o el EOA según el signing
// mode; el signer es siempre el EOA que controla la private key.
func (ac *AuthClient) buildSignedOrder(tokenID string, price, size float64, side domain.Side, negRisk bool) (*gomodel.SignedOrder, error) {
	pricePrecision := detectPricePrecision(price)
	priceInt := int64(math.Round(price * float64(pricePrecision)))
	sharesCents := int64(math.Round(size * 100))

	amountFactor := int64(1_000_000) / (100 * pricePrecision)
	usdcMicro := sharesCents * priceInt * amountFactor
	sharesMicro := sharesCents * 10000

	if usdcMicro <= 0 || sharesMicro <= 0 {
		return nil, fmt.Errorf("invalid amounts: usdc=%d shares=%d (price=%.4f size=%.4f)", usdcMicro, sharesMicro, price, size)
	}

	// BUY: maker entrega USDC y recibe shares. SELL: al revés.
	var makerAmount, takerAmount int64
	var gmSide gomodel.Side
	switch side {
	case domain.SideBuy:
		gmSide = gomodel.BUY
		makerAmount, takerAmount = usdcMicro, sharesMicro
	case domain.SideSell:
		gmSide = gomodel.SELL
		makerAmount, takerAmount = sharesMicro, usdcMicro
	default:
		return nil, fmt.Errorf("invalid side: %q", side)
	}

	var verifyingContract gomodel.VerifyingContract
	if negRisk {
		verifyingContract = gomodel.NegRiskCTFExchange
	} else {
		verifyingContract = gomodel.CTFExchange
	}

	orderData := &gomodel.OrderData{
		Maker:         ac.wallet.Maker(),
		Taker:         zeroAddress,
		TokenId:       tokenID,
		MakerAmount:   strconv.FormatInt(makerAmount, 10),
		TakerAmount:   strconv.FormatInt(takerAmount, 10),
		FeeRateBps:    "0",
		Nonce:         "0",
		Signer:        ac.address.Hex(),
		Expiration:    "0",
		Side:          gmSide,
		SignatureType: gomodel.SignatureType(ac.wallet.Mode.SignatureType()),
	}

	signed, err := ac.orderBuilder.BuildSignedOrder(ac.privateKey, orderData, verifyingContract)
	if err != nil {
		return nil, fmt.Errorf("build signed order: %w", err)
	}
	return signed, nil
}

// detectPricePrecision devuelve el multiplicador que corresponde al tick
// size del mercado. price=0.60 → 100 (tick 0.01), price=0.673 → 1000.
func detectPricePrecision(price float64) int64 {
	for _, prec := range []int64{100, 1000, 10000} {
		rounded := math.Round(price * float64(prec))
		if math.Abs(rounded/float64(prec)-price) < 1e-10 {
			return prec
		}
	}
	return 100
}

// l2Headers devuelve los headers autenticados para llamadas L2.
func (ac *AuthClient) l2Headers(method, path, body string) (map[string]string, error) {
	if ac.creds == nil {
		return nil, fmt.Errorf("auth: credentials not derived yet")
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	msg := ts + strings.ToUpper(method) + path + body

	secretBytes, err := base64.URLEncoding.DecodeString(ac.creds.Secret)
	if err != nil {
		return nil, fmt.Errorf("auth: decode secret: %w", err)
	}

	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(msg))
	sig := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"POLY_ADDRESS":    ac.address.Hex(),
		"POLY_SIGNATURE":  sig,
		"POLY_TIMESTAMP":  ts,
		"POLY_API_KEY":    ac.creds.APIKey,
		"POLY_PASSPHRASE": ac.creds.Passphrase,
	}, nil
}

// doL2 ejecuta un request HTTP autenticado L2 con rate limiting.
// Los headers HMAC se regeneran en cada intento para que el timestamp
// siga fresco.
func (ac *AuthClient) doL2(ctx context.Context, method, path string, reqBody, out any) error {
	var bodyStr string

	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		bodyStr = string(b)
	}

	fullURL := ac.clobBase + path

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ac.clobLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		headers, err := ac.l2Headers(method, path, bodyStr)
		if err != nil {
			return err
		}

		var bodyReader io.Reader
		if bodyStr != "" {
			bodyReader = strings.NewReader(bodyStr)
		}

		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := ac.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w: %w", maxRetries, domain.ErrTransient, err)
			}
			ac.sleep(ctx, attempt)
			continue
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			ac.sleep(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 500 {
			if attempt == maxRetries {
				return fmt.Errorf("server error %d: %w: %s", resp.StatusCode, domain.ErrTransient, respBody)
			}
			ac.sleep(ctx, attempt)
			continue
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			// Defecto de configuración (credenciales o signing mode): nunca
			// reintentar a ciegas, escalar al operador.
			return fmt.Errorf("auth error %d: %w: %s", resp.StatusCode, domain.ErrSignature, respBody)
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("client error %d: %s", resp.StatusCode, respBody)
		}

		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries: %w", maxRetries, domain.ErrTransient)
}
