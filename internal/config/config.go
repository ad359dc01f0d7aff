package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full bot configuration. Strategy numbers live in the yaml
// file; secrets (keys, wallet addresses, tokens) come from the environment so
// the yaml can be committed.
type Config struct {
	RPC struct {
		Endpoint   string `yaml:"endpoint"`
		WSEndpoint string `yaml:"ws_endpoint"`
		TxEndpoint string `yaml:"tx_endpoint"`
		APIKey     string `yaml:"-"`
	} `yaml:"rpc"`

	Jupiter struct {
		QuoteURL string `yaml:"quote_url"`
		SwapURL  string `yaml:"swap_url"`
		APIKey   string `yaml:"-"`
	} `yaml:"jupiter"`

	Wallet struct {
		PrivateKey   string `yaml:"-"`
		Address      string `yaml:"-"`
		TargetWallet string `yaml:"-"`
	} `yaml:"wallet"`

	Strategy Strategy `yaml:"strategy"`

	Risk struct {
		MinLiquidityUSD float64 `yaml:"min_liquidity_usd"`
		MinFDV          float64 `yaml:"min_fdv"`
		MaxFDV          float64 `yaml:"max_fdv"`
	} `yaml:"risk"`

	Storage struct {
		SnapshotDir string `yaml:"snapshot_dir"`
		ArchivePath string `yaml:"archive_path"`
	} `yaml:"storage"`

	Telegram struct {
		Token  string `yaml:"-"`
		ChatID string `yaml:"-"`
	} `yaml:"telegram"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"` // optional log file, additional to stderr
	} `yaml:"logging"`

	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

// Strategy holds the trading knobs. The 0.90 / 0.05 exit thresholds are
// empirically chosen business constants carried over as-is; they are
// configuration, not invariants.
type Strategy struct {
	CopyAmountLamports     uint64   `yaml:"copy_amount_lamports"`
	MinTargetSpendLamports uint64   `yaml:"min_target_spend_lamports"`
	MaxBuysPerToken        int      `yaml:"max_buys_per_token"`
	SlippageBuyBps         int      `yaml:"slippage_buy_bps"`
	SlippageSellBps        int      `yaml:"slippage_sell_bps"`
	DustBalance            uint64   `yaml:"dust_balance"`
	MinSellAmount          uint64   `yaml:"min_sell_amount"`
	MinSellValueLamports   uint64   `yaml:"min_sell_value_lamports"`
	NearTotalExitRatio     float64  `yaml:"near_total_exit_ratio"`
	TinySellExemptRatio    float64  `yaml:"tiny_sell_exempt_ratio"`
	TakeProfitROI          float64  `yaml:"take_profit_roi"`
	TakeProfitSellPct      float64  `yaml:"take_profit_sell_pct"`
	StopLossROI            float64  `yaml:"stop_loss_roi"`
	ProfitPollInterval     Duration `yaml:"profit_poll_interval"`
	StopLossPollInterval   Duration `yaml:"stop_loss_poll_interval"`
	ProfitCooldown         Duration `yaml:"profit_cooldown"`
	WatchdogInterval       Duration `yaml:"watchdog_interval"`
	WatchdogConfirmDelay   Duration `yaml:"watchdog_confirm_delay"`
	ReconcileGracePeriod   Duration `yaml:"reconcile_grace_period"`
	ReconcileTolerance     float64  `yaml:"reconcile_tolerance"`
	DailyReportHour        int      `yaml:"daily_report_hour"`
}

// Duration wraps time.Duration so yaml values like "20s" or "5m" decode.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Load reads the yaml file at path, fills in defaults, then overlays secrets
// from the environment (a .env file is honored when present).
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg := defaults()
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	cfg.RPC.APIKey = os.Getenv("HELIUS_API_KEY")
	cfg.Jupiter.APIKey = os.Getenv("JUPITER_API_KEY")
	cfg.Wallet.PrivateKey = os.Getenv("WALLET_PRIVATE_KEY")
	cfg.Wallet.Address = os.Getenv("WALLET_ADDRESS")
	cfg.Wallet.TargetWallet = os.Getenv("TARGET_WALLET")
	cfg.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.Telegram.ChatID = os.Getenv("TELEGRAM_CHAT_ID")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.RPC.Endpoint = "https://mainnet.helius-rpc.com"
	cfg.RPC.WSEndpoint = "wss://mainnet.helius-rpc.com"
	cfg.RPC.TxEndpoint = "https://api.helius.xyz/v0/transactions"
	cfg.Jupiter.QuoteURL = "https://api.jup.ag/swap/v1/quote"
	cfg.Jupiter.SwapURL = "https://api.jup.ag/swap/v1/swap"
	cfg.Storage.SnapshotDir = "data"
	cfg.Storage.ArchivePath = "data/archive.db"
	cfg.Logging.Level = "info"
	cfg.Server.Port = 8080

	s := &cfg.Strategy
	s.CopyAmountLamports = 100_000_000 // 0.1 SOL
	s.MinTargetSpendLamports = 1_000_000_000
	s.MaxBuysPerToken = 3
	s.SlippageBuyBps = 1000
	s.SlippageSellBps = 2000
	s.DustBalance = 100
	s.MinSellAmount = 100
	s.MinSellValueLamports = 1_000_000 // 0.001 SOL
	s.NearTotalExitRatio = 0.90
	s.TinySellExemptRatio = 0.05
	s.TakeProfitROI = 10.0
	s.TakeProfitSellPct = 0.5
	s.StopLossROI = 0.5
	s.ProfitPollInterval = Duration{10 * time.Second}
	s.StopLossPollInterval = Duration{10 * time.Second}
	s.ProfitCooldown = Duration{5 * time.Minute}
	s.WatchdogInterval = Duration{20 * time.Second}
	s.WatchdogConfirmDelay = Duration{5 * time.Second}
	s.ReconcileGracePeriod = Duration{2 * time.Minute}
	s.ReconcileTolerance = 0.005
	s.DailyReportHour = 9

	cfg.Risk.MinLiquidityUSD = 3000
	cfg.Risk.MinFDV = 0
	cfg.Risk.MaxFDV = 5_000_000
	return cfg
}

func (c *Config) validate() error {
	if c.Wallet.TargetWallet == "" {
		return fmt.Errorf("TARGET_WALLET is not set")
	}
	if c.Wallet.Address == "" {
		return fmt.Errorf("WALLET_ADDRESS is not set")
	}
	if c.Strategy.NearTotalExitRatio <= 0 || c.Strategy.NearTotalExitRatio > 1 {
		return fmt.Errorf("near_total_exit_ratio must be in (0, 1]")
	}
	if c.Strategy.TinySellExemptRatio < 0 || c.Strategy.TinySellExemptRatio >= c.Strategy.NearTotalExitRatio {
		return fmt.Errorf("tiny_sell_exempt_ratio must be below near_total_exit_ratio")
	}
	if c.Strategy.TakeProfitSellPct <= 0 || c.Strategy.TakeProfitSellPct > 1 {
		return fmt.Errorf("take_profit_sell_pct must be in (0, 1]")
	}
	return nil
}
