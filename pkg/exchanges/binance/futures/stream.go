package futures

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Adamcza88/ai-matic-bot-sub002/pkg/exchanges/common"
)

const (
	wsBase        = "wss://fstream.binance.com"
	wsBaseTestnet = "wss://stream.binancefuture.com"
)

func (c *Client) wsURL() string {
	if c.cfg.Testnet {
		return wsBaseTestnet
	}
	return wsBase
}

// MarkPriceTick is one mark-price update from the venue stream.
type MarkPriceTick struct {
	Symbol string
	Price  float64
	Time   time.Time
}

// StreamMarkPrices subscribes to mark-price updates for the given symbols
// and invokes onTick for each. Reconnects with backoff until ctx is
// cancelled.
func (c *Client) StreamMarkPrices(ctx context.Context, symbols []string, onTick func(MarkPriceTick)) {
	streams := make([]string, 0, len(symbols))
	for _, s := range symbols {
		streams = append(streams, strings.ToLower(s)+"@markPrice@1s")
	}
	url := c.wsURL() + "/stream?streams=" + strings.Join(streams, "/")

	go func() {
		backoff := time.Second
		for ctx.Err() == nil {
			if err := c.runMarkPriceConn(ctx, url, onTick); err != nil && ctx.Err() == nil {
				log.Printf("[stream] mark price disconnected: %v (retry in %s)", err, backoff)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
		}
	}()
}

func (c *Client) runMarkPriceConn(ctx context.Context, url string, onTick func(MarkPriceTick)) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var frame struct {
			Data struct {
				EventType string `json:"e"`
				Symbol    string `json:"s"`
				MarkPrice string `json:"p"`
				EventTime int64  `json:"E"`
			} `json:"data"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			return err
		}
		if frame.Data.EventType != "markPriceUpdate" {
			continue
		}
		price, err := strconv.ParseFloat(frame.Data.MarkPrice, 64)
		if err != nil {
			continue
		}
		onTick(MarkPriceTick{
			Symbol: frame.Data.Symbol,
			Price:  price,
			Time:   time.UnixMilli(frame.Data.EventTime),
		})
	}
}

// StreamUserData opens the user-data stream and invokes onFill for each
// FILLED order-trade update. The listen key is kept alive every 30
// minutes. Runs until ctx is cancelled.
func (c *Client) StreamUserData(ctx context.Context, onFill func(common.Fill)) error {
	listenKey, err := c.CreateListenKey(ctx)
	if err != nil {
		return fmt.Errorf("user stream: %w", err)
	}

	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.KeepAliveListenKey(ctx, listenKey); err != nil {
					log.Printf("[stream] listen key keepalive failed: %v", err)
				}
			}
		}
	}()

	go func() {
		url := c.wsURL() + "/ws/" + listenKey
		backoff := time.Second
		for ctx.Err() == nil {
			if err := c.runUserDataConn(ctx, url, onFill); err != nil && ctx.Err() == nil {
				log.Printf("[stream] user data disconnected: %v (retry in %s)", err, backoff)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
		}
	}()
	return nil
}

func (c *Client) runUserDataConn(ctx context.Context, url string, onFill func(common.Fill)) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var frame struct {
			EventType string `json:"e"`
			Order     struct {
				Symbol      string `json:"s"`
				Side        string `json:"S"`
				Status      string `json:"X"`
				OrderID     int64  `json:"i"`
				TradeID     int64  `json:"t"`
				FilledQty   string `json:"z"`
				AvgPrice    string `json:"ap"`
				ExecType    string `json:"x"`
				OrderType   string `json:"o"`
				StopPrice   string `json:"sp"`
				Commission  string `json:"n"`
				RealizedPnl string `json:"rp"`
			} `json:"o"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			return err
		}
		if frame.EventType != "ORDER_TRADE_UPDATE" || frame.Order.Status != "FILLED" {
			continue
		}
		qty, _ := strconv.ParseFloat(frame.Order.FilledQty, 64)
		avg, _ := strconv.ParseFloat(frame.Order.AvgPrice, 64)
		fee, _ := strconv.ParseFloat(frame.Order.Commission, 64)
		onFill(common.Fill{
			ExchangeOrderID: strconv.FormatInt(frame.Order.OrderID, 10),
			TradeID:         strconv.FormatInt(frame.Order.TradeID, 10),
			Symbol:          frame.Order.Symbol,
			Side:            common.Side(frame.Order.Side),
			Qty:             qty,
			Price:           avg,
			Fee:             fee,
		})
	}
}
