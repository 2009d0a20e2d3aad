package futures

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Adamcza88/ai-matic-bot-sub002/pkg/exchanges/common"
)

// Config holds Binance USDT-M futures credentials.
type Config struct {
	APIKey     string
	APISecret  string
	Testnet    bool
	RecvWindow int64 // ms
}

// Client is the Binance USDT-M futures gateway. It implements
// common.Gateway plus the position/balance reader extensions.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	timeSync   *common.TimeSync
	weight     *common.WeightTracker

	// pollInterval governs WaitForFill order-status polling.
	pollInterval time.Duration
}

// NewClient creates a USDT-M futures client.
func NewClient(cfg Config) *Client {
	base := "https://fapi.binance.com"
	if cfg.Testnet {
		base = "https://testnet.binancefuture.com"
	}
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = 5000
	}
	c := &Client{
		cfg:          cfg,
		baseURL:      base,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		weight:       common.NewWeightTracker(2400, time.Minute),
		pollInterval: 250 * time.Millisecond,
	}
	c.timeSync = common.NewTimeSync(c.GetServerTime)
	return c
}

// StartTimeSync begins background clock synchronization.
func (c *Client) StartTimeSync(ctx context.Context) {
	c.timeSync.Start(ctx)
}

func (c *Client) now() int64 {
	if c.timeSync.Offset() != 0 {
		return c.timeSync.Now()
	}
	return time.Now().UnixMilli()
}

// SubmitOrder places an order.
func (c *Client) SubmitOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return common.OrderResult{}, errors.New("binance futures: API key/secret required")
	}
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", string(req.Type))
	if req.Qty > 0 {
		params.Set("quantity", formatFloat(req.Qty))
	}

	if req.Type == common.OrderTypeLimit {
		params.Set("price", formatFloat(req.Price))
		tif := req.TimeInForce
		if tif == "" {
			tif = common.TIFGTC
		}
		params.Set("timeInForce", string(tif))
	}

	if req.Type == common.OrderTypeStopMarket || req.Type == common.OrderTypeTakeProfitMarket {
		params.Set("stopPrice", formatFloat(req.StopPrice))
		if req.WorkingType != "" {
			params.Set("workingType", req.WorkingType)
		}
	}

	if req.ClientID != "" {
		params.Set("newClientOrderId", req.ClientID)
	}
	if req.ReduceOnly {
		params.Set("reduceOnly", "true")
	}
	params.Set("timestamp", strconv.FormatInt(c.now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))

	body, err := c.doSigned(ctx, http.MethodPost, "/fapi/v1/order", params, "submit order")
	if err != nil {
		return common.OrderResult{}, err
	}
	var resp orderResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return common.OrderResult{}, fmt.Errorf("decode order: %w", err)
	}
	return common.OrderResult{
		ExchangeOrderID: strconv.FormatInt(resp.OrderID, 10),
		Status:          mapStatus(resp.Status),
		ClientID:        resp.ClientOrderID,
	}, nil
}

// CancelOrder cancels an order by symbol and exchange order id.
func (c *Client) CancelOrder(ctx context.Context, symbol, exchangeOrderID string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", exchangeOrderID)
	params.Set("timestamp", strconv.FormatInt(c.now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))
	_, err := c.doSigned(ctx, http.MethodDelete, "/fapi/v1/order", params, "cancel order")
	return err
}

type queriedOrder struct {
	result common.OrderResult
	side   common.Side
	qty    float64
	avg    float64
}

func (c *Client) queryOrder(ctx context.Context, symbol, exchangeOrderID string) (queriedOrder, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", exchangeOrderID)
	params.Set("timestamp", strconv.FormatInt(c.now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))
	body, err := c.doSigned(ctx, http.MethodGet, "/fapi/v1/order", params, "query order")
	if err != nil {
		return queriedOrder{}, err
	}
	var resp struct {
		OrderID       int64  `json:"orderId"`
		ClientOrderID string `json:"clientOrderId"`
		Status        string `json:"status"`
		Side          string `json:"side"`
		ExecutedQty   string `json:"executedQty"`
		AvgPrice      string `json:"avgPrice"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return queriedOrder{}, fmt.Errorf("decode query order: %w", err)
	}
	qty, _ := strconv.ParseFloat(resp.ExecutedQty, 64)
	avg, _ := strconv.ParseFloat(resp.AvgPrice, 64)
	return queriedOrder{
		result: common.OrderResult{
			ExchangeOrderID: strconv.FormatInt(resp.OrderID, 10),
			Status:          mapStatus(resp.Status),
			ClientID:        resp.ClientOrderID,
		},
		side: common.Side(resp.Side),
		qty:  qty,
		avg:  avg,
	}, nil
}

// QueryOrder fetches current order status.
func (c *Client) QueryOrder(ctx context.Context, symbol, exchangeOrderID string) (common.OrderResult, error) {
	q, err := c.queryOrder(ctx, symbol, exchangeOrderID)
	if err != nil {
		return common.OrderResult{}, err
	}
	return q.result, nil
}

// WaitForFill polls order status until FILLED or the timeout elapses.
// On timeout the order is left as-is; callers cancel explicitly.
func (c *Client) WaitForFill(ctx context.Context, symbol, exchangeOrderID string, timeout time.Duration) (common.Fill, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		if c.weight.ShouldDelay() {
			// Near the weight cap: skip this poll round rather than
			// spend budget the order path may need.
			if time.Now().After(deadline) {
				return common.Fill{}, fmt.Errorf("wait for fill %s: %w", exchangeOrderID, context.DeadlineExceeded)
			}
			select {
			case <-ctx.Done():
				return common.Fill{}, ctx.Err()
			case <-ticker.C:
			}
			continue
		}

		q, err := c.queryOrder(ctx, symbol, exchangeOrderID)
		if err == nil {
			switch q.result.Status {
			case common.StatusFilled:
				return common.Fill{
					ExchangeOrderID: exchangeOrderID,
					Symbol:          symbol,
					Side:            q.side,
					Qty:             q.qty,
					Price:           q.avg,
				}, nil
			case common.StatusCanceled, common.StatusRejected, common.StatusExpired:
				return common.Fill{}, &common.Error{
					Op:      "wait for fill",
					Message: fmt.Sprintf("order %s terminal status %s", exchangeOrderID, q.result.Status),
				}
			}
		}

		if time.Now().After(deadline) {
			return common.Fill{}, fmt.Errorf("wait for fill %s: %w", exchangeOrderID, context.DeadlineExceeded)
		}
		select {
		case <-ctx.Done():
			return common.Fill{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// SetProtection attaches a reduce-only STOP_MARKET and optional
// TAKE_PROFIT_MARKET legs for a filled position. The stop leg is placed
// first; if any leg fails the whole call fails.
func (c *Client) SetProtection(ctx context.Context, req common.ProtectionRequest) error {
	closeSide := req.Side.Opposite()
	workingType := req.WorkingType
	if workingType == "" {
		workingType = "MARK_PRICE"
	}

	stop := common.OrderRequest{
		Symbol:      req.Symbol,
		Side:        closeSide,
		Type:        common.OrderTypeStopMarket,
		Qty:         req.Qty,
		StopPrice:   req.StopLoss,
		ReduceOnly:  true,
		WorkingType: workingType,
	}
	if _, err := c.SubmitOrder(ctx, stop); err != nil {
		return fmt.Errorf("protection stop: %w", err)
	}

	for _, tp := range req.TakeProfits {
		leg := common.OrderRequest{
			Symbol:      req.Symbol,
			Side:        closeSide,
			Type:        common.OrderTypeTakeProfitMarket,
			Qty:         req.Qty * tp.SizePct,
			StopPrice:   tp.Price,
			ReduceOnly:  true,
			WorkingType: workingType,
		}
		if _, err := c.SubmitOrder(ctx, leg); err != nil {
			return fmt.Errorf("protection take-profit @%s: %w", formatFloat(tp.Price), err)
		}
	}
	return nil
}

// CancelAllOpenOrders cancels every open order on a symbol, including
// resting protection legs.
func (c *Client) CancelAllOpenOrders(ctx context.Context, symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("timestamp", strconv.FormatInt(c.now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))
	_, err := c.doSigned(ctx, http.MethodDelete, "/fapi/v1/allOpenOrders", params, "cancel all orders")
	return err
}

// ListPositions returns open positions; symbol optional.
func (c *Client) ListPositions(ctx context.Context, symbol string) ([]common.PositionInfo, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	params.Set("timestamp", strconv.FormatInt(c.now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))
	body, err := c.doSigned(ctx, http.MethodGet, "/fapi/v2/positionRisk", params, "list positions")
	if err != nil {
		return nil, err
	}
	var raw []struct {
		Symbol      string `json:"symbol"`
		PositionAmt string `json:"positionAmt"`
		EntryPrice  string `json:"entryPrice"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}
	out := make([]common.PositionInfo, 0, len(raw))
	for _, p := range raw {
		amt, _ := strconv.ParseFloat(p.PositionAmt, 64)
		if amt == 0 {
			continue
		}
		entry, _ := strconv.ParseFloat(p.EntryPrice, 64)
		side := common.SideBuy
		if amt < 0 {
			side = common.SideSell
			amt = -amt
		}
		out = append(out, common.PositionInfo{
			Symbol:     p.Symbol,
			Side:       side,
			Qty:        amt,
			EntryPrice: entry,
		})
	}
	return out, nil
}

// GetBalance returns futures margin balances.
func (c *Client) GetBalance(ctx context.Context) ([]common.AccountBalance, error) {
	params := url.Values{}
	params.Set("timestamp", strconv.FormatInt(c.now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))
	body, err := c.doSigned(ctx, http.MethodGet, "/fapi/v2/balance", params, "get balance")
	if err != nil {
		return nil, err
	}
	var raw []struct {
		Asset            string `json:"asset"`
		Balance          string `json:"balance"`
		AvailableBalance string `json:"availableBalance"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode balance: %w", err)
	}
	out := make([]common.AccountBalance, 0, len(raw))
	for _, b := range raw {
		total, _ := strconv.ParseFloat(b.Balance, 64)
		avail, _ := strconv.ParseFloat(b.AvailableBalance, 64)
		out = append(out, common.AccountBalance{Asset: b.Asset, Available: avail, Total: total})
	}
	return out, nil
}

// GetServerTime fetches venue server time in milliseconds.
func (c *Client) GetServerTime(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/fapi/v1/time", nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("server time status %d: %s", resp.StatusCode, string(b))
	}
	var res struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return 0, err
	}
	return res.ServerTime, nil
}

// CreateListenKey opens a user-data stream key.
func (c *Client) CreateListenKey(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/fapi/v1/listenKey", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)
	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return "", fmt.Errorf("create listen key status %d: %s", res.StatusCode, string(b))
	}
	var out struct {
		ListenKey string `json:"listenKey"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.ListenKey, nil
}

// KeepAliveListenKey extends listen key life; Binance expires keys after
// 60 minutes without a ping.
func (c *Client) KeepAliveListenKey(ctx context.Context, listenKey string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/fapi/v1/listenKey?listenKey="+listenKey, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)
	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("keepalive listen key status %d: %s", res.StatusCode, string(b))
	}
	return nil
}

func (c *Client) doSigned(ctx context.Context, method, path string, params url.Values, op string) ([]byte, error) {
	params.Set("signature", sign(params.Encode(), c.cfg.APISecret))
	encoded := params.Encode()
	endpoint := c.baseURL + path

	var (
		req *http.Request
		err error
	)
	switch method {
	case http.MethodGet, http.MethodDelete:
		req, err = http.NewRequestWithContext(ctx, method, endpoint+"?"+encoded, nil)
	default:
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(encoded))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		// Network-level failure: retryable by the execution layer.
		return nil, &common.Error{Op: op, Message: err.Error(), Temporary: true}
	}
	defer res.Body.Close()

	c.weight.Observe(res.Header.Get("X-MBX-USED-WEIGHT-1M"))

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode >= 300 {
		return nil, apiError(op, res.StatusCode, body)
	}
	return body, nil
}

type orderResp struct {
	Symbol        string `json:"symbol"`
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Status        string `json:"status"`
}
