package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/denggit/crypto-trading/internal/domain"
)

// JupiterTrader executes swaps through the Jupiter aggregator and reads
// balances through the Solana RPC. It implements domain.Trader.
type JupiterTrader struct {
	quoteURL string
	swapURL  string
	apiKey   string
	client   *http.Client
	rpc      *RPCClient
	wallet   *Wallet
	breaker  *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

func NewJupiterTrader(quoteURL, swapURL, apiKey string, rpc *RPCClient, wallet *Wallet, logger *zap.Logger) *JupiterTrader {
	settings := gobreaker.Settings{
		Name:    "jupiter",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &JupiterTrader{
		quoteURL: quoteURL,
		swapURL:  swapURL,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 15 * time.Second},
		rpc:      rpc,
		wallet:   wallet,
		breaker:  gobreaker.NewCircuitBreaker(settings),
		logger:   logger,
	}
}

func (j *JupiterTrader) WalletAddress() string { return j.wallet.Address() }

type quoteResponse struct {
	InAmount  string `json:"inAmount"`
	OutAmount string `json:"outAmount"`
	Raw       json.RawMessage
}

func (j *JupiterTrader) do(req *http.Request) ([]byte, error) {
	if j.apiKey != "" {
		req.Header.Set("x-api-key", j.apiKey)
	}
	body, err := j.breaker.Execute(func() (interface{}, error) {
		resp, err := j.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("jupiter: http %d: %s", resp.StatusCode, string(respBody))
		}
		return respBody, nil
	})
	if err != nil {
		return nil, err
	}
	return body.([]byte), nil
}

func (j *JupiterTrader) fetchQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*quoteResponse, error) {
	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", strconv.FormatUint(amount, 10))
	q.Set("slippageBps", strconv.Itoa(slippageBps))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.quoteURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	body, err := j.do(req)
	if err != nil {
		return nil, err
	}

	var quote quoteResponse
	if err := json.Unmarshal(body, &quote); err != nil {
		return nil, fmt.Errorf("jupiter: decode quote: %w", err)
	}
	quote.Raw = body
	return &quote, nil
}

// GetQuote returns the estimated out amount for swapping amount of inputMint
// into outputMint. Used as a price oracle, so slippage is irrelevant here.
func (j *JupiterTrader) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64) (uint64, error) {
	quote, err := j.fetchQuote(ctx, inputMint, outputMint, amount, 50)
	if err != nil {
		return 0, err
	}
	out, err := strconv.ParseUint(quote.OutAmount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("jupiter: parse outAmount %q: %w", quote.OutAmount, err)
	}
	return out, nil
}

// ExecuteSwap quotes, requests a swap transaction, signs it and submits it.
// The returned amount is the quote's estimate, not the settled fill.
func (j *JupiterTrader) ExecuteSwap(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (uint64, error) {
	quote, err := j.fetchQuote(ctx, inputMint, outputMint, amount, slippageBps)
	if err != nil {
		return 0, err
	}
	out, err := strconv.ParseUint(quote.OutAmount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("jupiter: parse outAmount %q: %w", quote.OutAmount, err)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"quoteResponse":             json.RawMessage(quote.Raw),
		"userPublicKey":             j.wallet.Address(),
		"wrapAndUnwrapSol":          true,
		"dynamicComputeUnitLimit":   true,
		"prioritizationFeeLamports": "auto",
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.swapURL, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := j.do(req)
	if err != nil {
		return 0, err
	}

	var swapResp struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.Unmarshal(body, &swapResp); err != nil {
		return 0, fmt.Errorf("jupiter: decode swap response: %w", err)
	}
	if swapResp.SwapTransaction == "" {
		return 0, fmt.Errorf("jupiter: swap response has no transaction")
	}

	signed, err := j.wallet.SignTransaction(swapResp.SwapTransaction)
	if err != nil {
		return 0, err
	}

	signature, err := j.rpc.SendTransaction(ctx, signed)
	if err != nil {
		return 0, err
	}

	j.logger.Info("swap submitted",
		zap.String("input_mint", inputMint),
		zap.String("output_mint", outputMint),
		zap.Uint64("amount", amount),
		zap.Uint64("est_out", out),
		zap.String("signature", signature))

	return out, nil
}

// GetBalanceRaw reads the owner's confirmed balance of mint. Wrapped SOL is
// answered with the native lamport balance.
func (j *JupiterTrader) GetBalanceRaw(ctx context.Context, owner, mint string) (uint64, error) {
	if mint == domain.WSOLMint {
		return j.rpc.GetSOLBalance(ctx, owner)
	}
	return j.rpc.GetTokenBalance(ctx, owner, mint)
}

// CloseTokenAccount reclaims rent from the wallet's emptied token accounts
// for mint. Accounts still holding a balance are left alone.
func (j *JupiterTrader) CloseTokenAccount(ctx context.Context, mint string) error {
	accounts, err := j.rpc.getTokenAccounts(ctx, j.wallet.Address(), mint)
	if err != nil {
		return err
	}
	for _, acc := range accounts {
		if acc.Amount != 0 {
			continue
		}
		blockhash, err := j.rpc.GetLatestBlockhash(ctx)
		if err != nil {
			return err
		}
		tx, err := j.wallet.BuildCloseAccountTx(acc.Pubkey, blockhash)
		if err != nil {
			return err
		}
		signature, err := j.rpc.SendTransaction(ctx, tx)
		if err != nil {
			return err
		}
		j.logger.Info("token account closed",
			zap.String("mint", mint),
			zap.String("account", acc.Pubkey),
			zap.String("signature", signature))
	}
	return nil
}
