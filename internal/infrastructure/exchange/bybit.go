package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vitos/level_leverage_guard/internal/domain"
)

const (
	BybitBaseURL = "https://api.bybit.com"
	BybitWSURL   = "wss://stream.bybit.com/v5/public/linear"

	maxKlineLimit = 1000
)

// KlineCallback fires once per confirmed (closed) candle.
type KlineCallback func(symbol, interval string, candle domain.Candle)

type BybitAdapter struct {
	apiKey         string
	apiSecret      string
	baseURL        string
	wsURL          string
	client         *http.Client
	logger         *zap.Logger
	pingInterval   time.Duration
	wsConn         *websocket.Conn
	wsDone         chan struct{}
	klineCallbacks []KlineCallback
	mu             sync.Mutex
	writeMu        sync.Mutex
}

func NewBybitAdapter(apiKey, apiSecret, baseURL, wsURL string, logger *zap.Logger) *BybitAdapter {
	if baseURL == "" {
		baseURL = BybitBaseURL
	}
	if wsURL == "" {
		wsURL = BybitWSURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BybitAdapter{
		apiKey:       apiKey,
		apiSecret:    apiSecret,
		baseURL:      baseURL,
		wsURL:        wsURL,
		client:       &http.Client{Timeout: 10 * time.Second},
		logger:       logger,
		pingInterval: 20 * time.Second,
	}
}

// --- REST API ---

func (b *BybitAdapter) sign(params string, timestamp int64, recvWindow int) string {
	// timestamp + apiKey + recvWindow + params
	toSign := fmt.Sprintf("%d%s%d%s", timestamp, b.apiKey, recvWindow, params)
	h := hmac.New(sha256.New, []byte(b.apiSecret))
	h.Write([]byte(toSign))
	return hex.EncodeToString(h.Sum(nil))
}

// sendRequest signs the call only when credentials are configured; market
// data endpoints are public.
func (b *BybitAdapter) sendRequest(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, bytes.NewBuffer(nil))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	if b.apiKey != "" {
		timestamp := time.Now().UnixMilli()
		recvWindow := 5000
		var paramsStr string
		if idx := strings.Index(path, "?"); idx != -1 {
			paramsStr = path[idx+1:]
		}
		req.Header.Set("X-BAPI-API-KEY", b.apiKey)
		req.Header.Set("X-BAPI-TIMESTAMP", strconv.FormatInt(timestamp, 10))
		req.Header.Set("X-BAPI-SIGN", b.sign(paramsStr, timestamp, recvWindow))
		req.Header.Set("X-BAPI-RECV-WINDOW", strconv.Itoa(recvWindow))
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error: %s", string(respBody))
	}

	return respBody, nil
}

// GetCandles implements domain.CandleProvider. Bybit returns newest first;
// the result is oldest first with unix-second timestamps.
func (b *BybitAdapter) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	if limit <= 0 || limit > maxKlineLimit {
		limit = maxKlineLimit
	}
	path := fmt.Sprintf("/v5/market/kline?category=linear&symbol=%s&interval=%s&limit=%d", symbol, interval, limit)
	resp, err := b.sendRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var result struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
		Result  struct {
			List [][]string `json:"list"`
		} `json:"result"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, err
	}

	if result.RetCode != 0 {
		return nil, fmt.Errorf("bybit kline error %d: %s", result.RetCode, result.RetMsg)
	}

	candles := make([]domain.Candle, 0, len(result.Result.List))
	for _, raw := range result.Result.List {
		// Format: [startTime, open, high, low, close, volume, turnover]
		if len(raw) < 6 {
			continue
		}
		c, err := parseKlineRow(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse kline row for %s: %w", symbol, err)
		}
		candles = append(candles, c)
	}

	// Reverse candles to be chronological (Oldest -> Newest)
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}

	return candles, nil
}

func parseKlineRow(raw []string) (domain.Candle, error) {
	ts, err := strconv.ParseInt(raw[0], 10, 64)
	if err != nil {
		return domain.Candle{}, err
	}
	values := make([]float64, 5)
	for i := range values {
		if values[i], err = strconv.ParseFloat(raw[i+1], 64); err != nil {
			return domain.Candle{}, err
		}
	}
	return domain.Candle{
		Time:   ts / 1000,
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}

// --- WebSocket ---

func (b *BybitAdapter) OnCandleClose(callback KlineCallback) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.klineCallbacks = append(b.klineCallbacks, callback)
}

// SubscribeKlines connects on first use and subscribes to kline.<interval>.<symbol>.
func (b *BybitAdapter) SubscribeKlines(symbols []string, interval string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.wsConn == nil {
		c, _, err := websocket.DefaultDialer.Dial(b.wsURL, nil)
		if err != nil {
			return fmt.Errorf("failed to dial %s: %w", b.wsURL, err)
		}
		b.wsConn = c
		b.wsDone = make(chan struct{})
		go b.readLoop(c, b.wsDone)
		go b.pingLoop(c, b.wsDone)
	}

	return b.subscribe(symbols, interval)
}

// Done is closed when the current stream connection drops.
func (b *BybitAdapter) Done() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.wsDone
}

func (b *BybitAdapter) Close() error {
	b.mu.Lock()
	conn := b.wsConn
	b.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (b *BybitAdapter) subscribe(symbols []string, interval string) error {
	if len(symbols) == 0 {
		return nil
	}
	args := make([]string, len(symbols))
	for i, s := range symbols {
		args[i] = fmt.Sprintf("kline.%s.%s", interval, s)
	}
	return b.writeJSON(b.wsConn, map[string]interface{}{
		"op":   "subscribe",
		"args": args,
	})
}

func (b *BybitAdapter) writeJSON(conn *websocket.Conn, v interface{}) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return conn.WriteJSON(v)
}

func (b *BybitAdapter) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(b.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := b.writeJSON(conn, map[string]string{"op": "ping"}); err != nil {
				b.logger.Warn("WS ping failed", zap.Error(err))
				return
			}
		}
	}
}

type klineMessage struct {
	Topic string `json:"topic"`
	Data  []struct {
		Start    int64  `json:"start"`
		Interval string `json:"interval"`
		Open     string `json:"open"`
		High     string `json:"high"`
		Low      string `json:"low"`
		Close    string `json:"close"`
		Volume   string `json:"volume"`
		Confirm  bool   `json:"confirm"`
	} `json:"data"`
}

func (b *BybitAdapter) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer func() {
		conn.Close()
		b.mu.Lock()
		if b.wsConn == conn {
			b.wsConn = nil
		}
		b.mu.Unlock()
		close(done)
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				b.logger.Warn("WS read error", zap.Error(err))
			}
			return
		}

		var msg klineMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			b.logger.Debug("WS unmarshal error", zap.Error(err))
			continue
		}

		// kline.<interval>.<symbol>
		parts := strings.Split(msg.Topic, ".")
		if len(parts) != 3 || parts[0] != "kline" {
			continue
		}
		interval, symbol := parts[1], parts[2]

		for _, k := range msg.Data {
			if !k.Confirm {
				continue
			}
			candle, err := parseKlineRow([]string{strconv.FormatInt(k.Start, 10), k.Open, k.High, k.Low, k.Close, k.Volume})
			if err != nil {
				b.logger.Warn("Bad kline payload", zap.String("topic", msg.Topic), zap.Error(err))
				continue
			}

			b.mu.Lock()
			callbacks := make([]KlineCallback, len(b.klineCallbacks))
			copy(callbacks, b.klineCallbacks)
			b.mu.Unlock()

			for _, cb := range callbacks {
				cb(symbol, interval, candle)
			}
		}
	}
}
