package polymarket

// trading.go — ejecución real de órdenes via CLOB API.
//
// Implementa ports.OrderExecutor sobre AuthClient. Todas las órdenes
// maker se colocan como GTC (good-till-cancelled) limit.

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alejandrodnm/polyfarm/internal/domain"
)

// clobOrderRequest es el body JSON de POST /order.
type clobOrderRequest struct {
	Order     clobOrderBody `json:"order"`
	Owner     string        `json:"owner"`
	OrderType string        `json:"orderType"`
}

type clobOrderBody struct {
	Salt          json.Number `json:"salt"`
	Maker         string      `json:"maker"`
	Signer        string      `json:"signer"`
	Taker         string      `json:"taker"`
	TokenID       string      `json:"tokenId"`
	MakerAmount   string      `json:"makerAmount"`
	TakerAmount   string      `json:"takerAmount"`
	Expiration    string      `json:"expiration"`
	Nonce         string      `json:"nonce"`
	FeeRateBps    string      `json:"feeRateBps"`
	Side          string      `json:"side"`
	SignatureType int         `json:"signatureType"`
	Signature     string      `json:"signature"`
}

type clobOrderResponse struct {
	ErrorMsg     string `json:"errorMsg"`
	OrderID      string `json:"orderID"`
	TakingAmount string `json:"takingAmount"`
	MakingAmount string `json:"makingAmount"`
	Status       string `json:"status"`
	Success      bool   `json:"success"`
}

type clobOpenOrder struct {
	ID           string `json:"id"`
	AssetID      string `json:"asset_id"`
	Market       string `json:"market"`
	Side         string `json:"side"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	Price        string `json:"price"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
	Outcome      string `json:"outcome"`
}

type clobOrdersResponse struct {
	Data       []clobOpenOrder `json:"data"`
	NextCursor string          `json:"next_cursor"`
}

type clobNegRiskResponse struct {
	NegRisk bool `json:"neg_risk"`
}

const usdcEAddress = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"

var balanceOfABI abi.ABI

func init() {
	var err error
	balanceOfABI, err = abi.JSON(strings.NewReader(`[{
		"name":"balanceOf","type":"function",
		"inputs":[{"name":"account","type":"address"}],
		"outputs":[{"name":"","type":"uint256"}]
	}]`))
	if err != nil {
		panic("balanceOf abi: " + err.Error())
	}
}

// TradingClient implementa ports.OrderExecutor.
type TradingClient struct {
	auth      *AuthClient
	rpcClient *ethclient.Client
}

// NewTradingClient crea el executor de órdenes. rpcURL es opcional y solo
// se usa para consultar el balance USDC on-chain al arrancar.
func NewTradingClient(auth *AuthClient, rpcURL string) (*TradingClient, error) {
	tc := &TradingClient{auth: auth}
	if rpcURL != "" {
		rpc, err := ethclient.Dial(rpcURL)
		if err != nil {
			return nil, fmt.Errorf("trading: dial rpc: %w", err)
		}
		tc.rpcClient = rpc
	}
	return tc, nil
}

// PlaceOrder firma y envía una orden limit maker (BUY o SELL) al CLOB.
// Los rechazos del venue se clasifican: problemas de firma o auth nunca
// se reintentan (indican mala configuración del signing mode), el resto
// de rechazos se reportan como ErrVenueRejected.
func (tc *TradingClient) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (domain.PlacedOrder, error) {
	if err := tc.auth.EnsureCreds(ctx); err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("place order: creds: %w", err)
	}

	signed, err := tc.auth.buildSignedOrder(req.TokenID, req.Price, req.Size, req.Side, req.NegRisk)
	if err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("place order: sign: %w: %w", domain.ErrSignature, err)
	}

	body := clobOrderRequest{
		Order: clobOrderBody{
			Salt:          json.Number(signed.Order.Salt.String()),
			Maker:         signed.Order.Maker.Hex(),
			Signer:        signed.Order.Signer.Hex(),
			Taker:         signed.Order.Taker.Hex(),
			TokenID:       req.TokenID,
			MakerAmount:   signed.Order.MakerAmount.String(),
			TakerAmount:   signed.Order.TakerAmount.String(),
			Expiration:    signed.Order.Expiration.String(),
			Nonce:         signed.Order.Nonce.String(),
			FeeRateBps:    signed.Order.FeeRateBps.String(),
			Side:          string(req.Side),
			SignatureType: int(signed.Order.SignatureType.Int64()),
			Signature:     "0x" + hex.EncodeToString(signed.Signature),
		},
		Owner:     tc.auth.creds.APIKey,
		OrderType: "GTC",
	}

	var resp clobOrderResponse
	if err := tc.auth.doL2(ctx, http.MethodPost, "/order", body, &resp); err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("place order: post: %w", err)
	}

	if !resp.Success || resp.ErrorMsg != "" {
		return domain.PlacedOrder{}, classifyVenueError(resp.ErrorMsg)
	}

	return domain.PlacedOrder{
		VenueOrderID: resp.OrderID,
		Status:       resp.Status,
		MadeAmount:   parseUSDC(resp.MakingAmount),
		TakenAmount:  parseUSDC(resp.TakingAmount),
	}, nil
}

// classifyVenueError mapea el errorMsg del CLOB a los sentinels de dominio.
func classifyVenueError(msg string) error {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "signature") || strings.Contains(lower, "unauthorized") {
		return fmt.Errorf("clob rejected: %w: %s", domain.ErrSignature, msg)
	}
	return fmt.Errorf("clob rejected: %w: %s", domain.ErrVenueRejected, msg)
}

// CancelOrder cancela una orden por su venue order ID.
func (tc *TradingClient) CancelOrder(ctx context.Context, venueOrderID string) error {
	if err := tc.auth.EnsureCreds(ctx); err != nil {
		return fmt.Errorf("cancel order: creds: %w", err)
	}

	path := "/order/" + venueOrderID
	if err := tc.auth.doL2(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("cancel order %s: %w", venueOrderID, err)
	}
	return nil
}

// GetOpenOrders devuelve las órdenes abiertas del wallet según el CLOB.
// Es la fuente de verdad para reconciliar el estado local.
func (tc *TradingClient) GetOpenOrders(ctx context.Context) ([]domain.VenueOrder, error) {
	if err := tc.auth.EnsureCreds(ctx); err != nil {
		return nil, fmt.Errorf("get orders: creds: %w", err)
	}

	var resp clobOrdersResponse
	if err := tc.auth.doL2(ctx, http.MethodGet, "/orders", nil, &resp); err != nil {
		return nil, fmt.Errorf("get orders: %w", err)
	}

	orders := make([]domain.VenueOrder, 0, len(resp.Data))
	for _, o := range resp.Data {
		orders = append(orders, mapOpenOrder(o))
	}
	return orders, nil
}

// IsNegRisk consulta si un token opera sobre el adapter NegRisk, lo que
// cambia el verifying contract de la firma.
func (tc *TradingClient) IsNegRisk(ctx context.Context, tokenID string) (bool, error) {
	url := fmt.Sprintf("%s/neg-risk?token_id=%s", tc.auth.clobBase, tokenID)

	var resp clobNegRiskResponse
	if err := tc.auth.get(ctx, tc.auth.clobLimiter, url, &resp); err != nil {
		return false, fmt.Errorf("neg-risk check: %w", err)
	}
	return resp.NegRisk, nil
}

// GetBalance devuelve el balance USDC.e on-chain del maker.
// Requiere rpcURL configurado; sin RPC devuelve -1 sin error.
func (tc *TradingClient) GetBalance(ctx context.Context) (float64, error) {
	if tc.rpcClient == nil {
		return -1, nil
	}

	maker := common.HexToAddress(tc.auth.wallet.Maker())
	callData, err := balanceOfABI.Pack("balanceOf", maker)
	if err != nil {
		return 0, fmt.Errorf("get balance: pack: %w", err)
	}

	token := common.HexToAddress(usdcEAddress)
	result, err := tc.rpcClient.CallContract(ctx, ethereum.CallMsg{
		To:   &token,
		Data: callData,
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("get balance: rpc call: %w", err)
	}

	vals, err := balanceOfABI.Unpack("balanceOf", result)
	if err != nil || len(vals) == 0 {
		return 0, fmt.Errorf("get balance: unpack: %w", err)
	}

	raw := vals[0].(*big.Int)
	bal, _ := new(big.Float).Quo(new(big.Float).SetInt(raw), big.NewFloat(1e6)).Float64()
	return bal, nil
}

// mapOpenOrder convierte una orden del CLOB API al tipo de dominio.
func mapOpenOrder(o clobOpenOrder) domain.VenueOrder {
	side := domain.SideBuy
	if strings.EqualFold(o.Side, "SELL") {
		side = domain.SideSell
	}
	return domain.VenueOrder{
		VenueOrderID: o.ID,
		ConditionID:  o.Market,
		TokenID:      o.AssetID,
		Side:         side,
		Price:        parseFloat(o.Price),
		Size:         parseFloat(o.OriginalSize),
		FilledSize:   parseFloat(o.SizeMatched),
		Outcome:      o.Outcome,
	}
}

// parseUSDC convierte micro-USDC ("1000000") a USDC float.
func parseUSDC(s string) float64 {
	if s == "" {
		return 0
	}
	n := new(big.Int)
	n.SetString(s, 10)
	f, _ := new(big.Float).SetInt(n).Float64()
	return f / 1_000_000
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	var f float64
	fmt.Sscanf(s, "%f", &f)
	return f
}

