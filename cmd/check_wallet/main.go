// Command check_wallet verifies the configured credentials: it derives the
// wallet address from the private key, pings the RPC for the SOL balance and
// prints the target wallet's balance of an optional mint.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/denggit/crypto-trading/internal/config"
	"github.com/denggit/crypto-trading/internal/infrastructure/exchange"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	mint := flag.String("mint", "", "optional mint to query on the target wallet")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	wallet, err := exchange.NewWallet(cfg.Wallet.PrivateKey)
	if err != nil {
		fmt.Printf("Failed to load wallet: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wallet address: %s\n", wallet.Address())
	if wallet.Address() != cfg.Wallet.Address {
		fmt.Printf("WARNING: WALLET_ADDRESS env is %s, key derives %s\n",
			cfg.Wallet.Address, wallet.Address())
	}

	rpcURL := cfg.RPC.Endpoint
	if cfg.RPC.APIKey != "" {
		rpcURL += "/?api-key=" + cfg.RPC.APIKey
	}
	rpc := exchange.NewRPCClient(rpcURL)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	lamports, err := rpc.GetSOLBalance(ctx, wallet.Address())
	if err != nil {
		fmt.Printf("Failed to fetch SOL balance: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("SOL balance: %.4f SOL (%d lamports)\n", float64(lamports)/1e9, lamports)

	if *mint != "" {
		balance, err := rpc.GetTokenBalance(ctx, cfg.Wallet.TargetWallet, *mint)
		if err != nil {
			fmt.Printf("Failed to fetch target token balance: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Target %s holds %d raw units of %s\n", cfg.Wallet.TargetWallet, balance, *mint)
	}
}
