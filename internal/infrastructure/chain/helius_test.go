package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/denggit/crypto-trading/internal/domain"
)

const target = "TargetWallet1111111111111111111111111111111"

func testMonitor() *WalletMonitor {
	return NewWalletMonitor("", "", "", target, nil, zap.NewNop())
}

func decodeTx(t *testing.T, raw string) enhancedTx {
	t.Helper()
	var tx enhancedTx
	require.NoError(t, json.Unmarshal([]byte(raw), &tx))
	return tx
}

func TestParseTradeBuy(t *testing.T) {
	tx := decodeTx(t, `{
		"signature": "sig1",
		"accountData": [
			{
				"account": "`+target+`",
				"nativeBalanceChange": -2000000000,
				"tokenBalanceChanges": []
			},
			{
				"account": "SomeTokenAccount",
				"nativeBalanceChange": 0,
				"tokenBalanceChanges": [
					{
						"userAccount": "`+target+`",
						"mint": "MemeMint111",
						"rawTokenAmount": {"tokenAmount": "500000"}
					}
				]
			}
		]
	}`)

	trade, ok, err := testMonitor().parseTrade(tx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.ActionBuy, trade.Action)
	require.Equal(t, "MemeMint111", trade.Mint)
	require.Equal(t, uint64(500000), trade.Amount)
	require.Equal(t, uint64(2000000000), trade.SolSpent)
	require.Equal(t, "sig1", trade.Signature)
}

func TestParseTradeSell(t *testing.T) {
	tx := decodeTx(t, `{
		"signature": "sig2",
		"accountData": [
			{
				"account": "`+target+`",
				"nativeBalanceChange": 900000000,
				"tokenBalanceChanges": [
					{
						"userAccount": "`+target+`",
						"mint": "MemeMint111",
						"rawTokenAmount": {"tokenAmount": "-250000"}
					}
				]
			}
		]
	}`)

	trade, ok, err := testMonitor().parseTrade(tx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.ActionSell, trade.Action)
	require.Equal(t, uint64(250000), trade.Amount)
	require.Equal(t, uint64(0), trade.SolSpent)
}

func TestParseTradeIgnoresQuoteCurrencies(t *testing.T) {
	tx := decodeTx(t, `{
		"signature": "sig3",
		"accountData": [
			{
				"account": "`+target+`",
				"nativeBalanceChange": -5000,
				"tokenBalanceChanges": [
					{
						"userAccount": "`+target+`",
						"mint": "`+domain.WSOLMint+`",
						"rawTokenAmount": {"tokenAmount": "-1000000"}
					},
					{
						"userAccount": "`+target+`",
						"mint": "`+usdcMint+`",
						"rawTokenAmount": {"tokenAmount": "42"}
					}
				]
			}
		]
	}`)

	_, ok, err := testMonitor().parseTrade(tx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestParseTradeIgnoresOtherWallets(t *testing.T) {
	tx := decodeTx(t, `{
		"signature": "sig4",
		"accountData": [
			{
				"account": "SomebodyElse",
				"nativeBalanceChange": -100,
				"tokenBalanceChanges": [
					{
						"userAccount": "SomebodyElse",
						"mint": "MemeMint111",
						"rawTokenAmount": {"tokenAmount": "999"}
					}
				]
			}
		]
	}`)

	_, ok, err := testMonitor().parseTrade(tx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestParseTradePicksLargestLeg(t *testing.T) {
	tx := decodeTx(t, `{
		"signature": "sig5",
		"accountData": [
			{
				"account": "`+target+`",
				"nativeBalanceChange": -1000,
				"tokenBalanceChanges": [
					{
						"userAccount": "`+target+`",
						"mint": "RouteHopMint",
						"rawTokenAmount": {"tokenAmount": "10"}
					},
					{
						"userAccount": "`+target+`",
						"mint": "MemeMint111",
						"rawTokenAmount": {"tokenAmount": "900000"}
					}
				]
			}
		]
	}`)

	trade, ok, err := testMonitor().parseTrade(tx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "MemeMint111", trade.Mint)
}

func TestLooksLikeSwap(t *testing.T) {
	require.True(t, looksLikeSwap([]string{"Program log: Instruction: Swap"}))
	require.True(t, looksLikeSwap([]string{"Program log: ray_log swap"}))
	require.False(t, looksLikeSwap([]string{"Program log: Instruction: Transfer"}))
}

func TestRunOnceWatcherExitsWithConnection(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Accept the subscription, then drop the connection.
		_, _, _ = conn.ReadMessage()
		conn.Close()
	}))
	defer srv.Close()

	m := NewWalletMonitor("ws"+strings.TrimPrefix(srv.URL, "http"), "", "", target, nil, zap.NewNop())

	before := runtime.NumGoroutine()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Simulate a run of dropped connections. Each returns an error without
	// the context being cancelled.
	for i := 0; i < 5; i++ {
		require.Error(t, m.runOnce(ctx))
	}

	// The shutdown watcher of every dead connection must be gone.
	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+1
	}, 2*time.Second, 10*time.Millisecond)
}
