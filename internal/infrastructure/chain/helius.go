package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/denggit/crypto-trading/internal/domain"
)

const (
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	usdtMint = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"

	maxBackoff = 30 * time.Second
)

// quoteCurrency reports whether mint is one of the currencies trades are
// priced in. We only copy the token leg of a swap, never the quote leg.
func quoteCurrency(mint string) bool {
	return mint == domain.WSOLMint || mint == usdcMint || mint == usdtMint
}

// WalletMonitor follows one wallet over the Helius websocket and reports its
// swaps as typed trades. Reconnects forever until the context is cancelled.
type WalletMonitor struct {
	wsEndpoint   string
	txEndpoint   string
	apiKey       string
	targetWallet string
	client       *http.Client
	handler      func(ctx context.Context, trade domain.WalletTrade)
	logger       *zap.Logger
}

func NewWalletMonitor(wsEndpoint, txEndpoint, apiKey, targetWallet string,
	handler func(ctx context.Context, trade domain.WalletTrade), logger *zap.Logger) *WalletMonitor {
	return &WalletMonitor{
		wsEndpoint:   wsEndpoint,
		txEndpoint:   txEndpoint,
		apiKey:       apiKey,
		targetWallet: targetWallet,
		client:       &http.Client{Timeout: 15 * time.Second},
		handler:      handler,
		logger:       logger,
	}
}

// Run connects and processes notifications until ctx is cancelled. Every
// disconnect is retried with exponential backoff.
func (m *WalletMonitor) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		err := m.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.logger.Warn("wallet stream disconnected", zap.Error(err), zap.Duration("retry_in", backoff))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (m *WalletMonitor) runOnce(ctx context.Context) error {
	url := m.wsEndpoint
	if m.apiKey != "" {
		url += "/?api-key=" + m.apiKey
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	sub := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "logsSubscribe",
		"params": []interface{}{
			map[string]interface{}{"mentions": []string{m.targetWallet}},
			map[string]string{"commitment": "confirmed"},
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	m.logger.Info("wallet stream connected", zap.String("target", m.targetWallet))

	// Unblock ReadMessage on shutdown. The watcher must also exit when this
	// connection dies on its own, or one goroutine leaks per reconnect.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		m.handleMessage(ctx, message)
	}
}

type logsNotification struct {
	Params struct {
		Result struct {
			Value struct {
				Signature string   `json:"signature"`
				Err       any      `json:"err"`
				Logs      []string `json:"logs"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

func (m *WalletMonitor) handleMessage(ctx context.Context, message []byte) {
	var note logsNotification
	if err := json.Unmarshal(message, &note); err != nil {
		return
	}
	val := note.Params.Result.Value
	if val.Signature == "" || val.Err != nil {
		return
	}
	if !looksLikeSwap(val.Logs) {
		return
	}

	trade, ok, err := m.fetchTrade(ctx, val.Signature)
	if err != nil {
		m.logger.Warn("fetch transaction failed", zap.String("signature", val.Signature), zap.Error(err))
		return
	}
	if !ok {
		return
	}

	m.logger.Info("target trade observed",
		zap.String("action", string(trade.Action)),
		zap.String("mint", trade.Mint),
		zap.Uint64("amount", trade.Amount),
		zap.Uint64("sol_spent", trade.SolSpent),
		zap.String("signature", trade.Signature))

	m.handler(ctx, trade)
}

func looksLikeSwap(logs []string) bool {
	for _, l := range logs {
		if strings.Contains(l, "Swap") || strings.Contains(l, "swap") {
			return true
		}
	}
	return false
}

type enhancedTx struct {
	Signature   string `json:"signature"`
	AccountData []struct {
		Account             string `json:"account"`
		NativeBalanceChange int64  `json:"nativeBalanceChange"`
		TokenBalanceChanges []struct {
			UserAccount    string `json:"userAccount"`
			Mint           string `json:"mint"`
			RawTokenAmount struct {
				TokenAmount string `json:"tokenAmount"`
			} `json:"rawTokenAmount"`
		} `json:"tokenBalanceChanges"`
	} `json:"accountData"`
}

// fetchTrade resolves a signature into a typed trade through the enhanced
// transaction API. ok=false means the transaction is not a trade we copy
// (no token leg for the target wallet, or only quote currencies moved).
func (m *WalletMonitor) fetchTrade(ctx context.Context, signature string) (domain.WalletTrade, bool, error) {
	var zero domain.WalletTrade

	payload, err := json.Marshal(map[string]interface{}{"transactions": []string{signature}})
	if err != nil {
		return zero, false, err
	}
	url := m.txEndpoint
	if m.apiKey != "" {
		url += "?api-key=" + m.apiKey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return zero, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return zero, false, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, false, err
	}
	if resp.StatusCode >= 400 {
		return zero, false, fmt.Errorf("tx api: http %d: %s", resp.StatusCode, string(body))
	}

	var txs []enhancedTx
	if err := json.Unmarshal(body, &txs); err != nil {
		return zero, false, fmt.Errorf("tx api: decode: %w", err)
	}
	if len(txs) == 0 {
		return zero, false, nil
	}
	return m.parseTrade(txs[0])
}

// parseTrade extracts the target wallet's token leg. A positive raw change in
// a non-quote mint is a buy, a negative one a sell. SOL spent is the target's
// native balance decrease, buys only.
func (m *WalletMonitor) parseTrade(tx enhancedTx) (domain.WalletTrade, bool, error) {
	var zero domain.WalletTrade

	var mint string
	var change int64
	var nativeChange int64

	for _, acc := range tx.AccountData {
		if acc.Account == m.targetWallet {
			nativeChange = acc.NativeBalanceChange
		}
		for _, tc := range acc.TokenBalanceChanges {
			if tc.UserAccount != m.targetWallet || quoteCurrency(tc.Mint) {
				continue
			}
			delta, err := strconv.ParseInt(tc.RawTokenAmount.TokenAmount, 10, 64)
			if err != nil {
				return zero, false, fmt.Errorf("parse token change %q: %w", tc.RawTokenAmount.TokenAmount, err)
			}
			if delta == 0 {
				continue
			}
			// Multiple non-quote legs means an exotic route; take the largest.
			if mint == "" || abs64(delta) > abs64(change) {
				mint = tc.Mint
				change = delta
			}
		}
	}

	if mint == "" {
		return zero, false, nil
	}

	trade := domain.WalletTrade{
		Mint:       mint,
		Signature:  tx.Signature,
		ObservedAt: time.Now(),
	}
	if change > 0 {
		trade.Action = domain.ActionBuy
		trade.Amount = uint64(change)
		if nativeChange < 0 {
			trade.SolSpent = uint64(-nativeChange)
		}
	} else {
		trade.Action = domain.ActionSell
		trade.Amount = uint64(-change)
	}
	return trade, true, nil
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
