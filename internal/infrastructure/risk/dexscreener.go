package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.dexscreener.com/latest/dex/tokens"

// DexScreenerChecker answers pre-buy token screening from the DexScreener
// public API. It implements domain.RiskChecker.
type DexScreenerChecker struct {
	baseURL string
	client  *http.Client
}

func NewDexScreenerChecker() *DexScreenerChecker {
	return &DexScreenerChecker{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type pairInfo struct {
	ChainID   string `json:"chainId"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	FDV float64 `json:"fdv"`
}

// CheckToken returns the liquidity and FDV of the deepest Solana pool for
// mint. ok=false means DexScreener knows no tradable pool for it.
func (d *DexScreenerChecker) CheckToken(ctx context.Context, mint string) (bool, float64, float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/"+mint, nil)
	if err != nil {
		return false, 0, 0, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return false, 0, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, 0, 0, err
	}
	if resp.StatusCode >= 400 {
		return false, 0, 0, fmt.Errorf("dexscreener: http %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Pairs []pairInfo `json:"pairs"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return false, 0, 0, fmt.Errorf("dexscreener: decode: %w", err)
	}

	best := pairInfo{}
	found := false
	for _, p := range result.Pairs {
		if p.ChainID != "solana" {
			continue
		}
		if !found || p.Liquidity.USD > best.Liquidity.USD {
			best = p
			found = true
		}
	}
	if !found {
		return false, 0, 0, nil
	}
	return true, best.Liquidity.USD, best.FDV, nil
}
