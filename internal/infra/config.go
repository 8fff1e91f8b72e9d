package infra

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	// currentUserAgent is protected by a mutex so it can be swapped at
	// runtime (tests pin it to a deterministic string).
	uaMu             sync.RWMutex
	currentUserAgent = GetPlatformUserAgent()
)

// GetUserAgent returns the current active User-Agent string used by the
// transport package's WS dial and any REST calls. Thread-safe.
func GetUserAgent() string {
	uaMu.RLock()
	defer uaMu.RUnlock()
	return currentUserAgent
}

// SetUserAgent overrides the global User-Agent string. Thread-safe.
func SetUserAgent(ua string) {
	uaMu.Lock()
	defer uaMu.Unlock()
	currentUserAgent = ua
}

// GetPlatformUserAgent generates a browser-like User-Agent string based
// on the current OS, since Hyperliquid's edge occasionally rate-limits
// bare Go http.Client user agents more aggressively than browser ones.
func GetPlatformUserAgent() string {
	chromeVer := "120.0.0.0"
	goos := runtime.GOOS
	arch := runtime.GOARCH

	switch goos {
	case "windows":
		return fmt.Sprintf("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", chromeVer)
	case "linux":
		linuxArch := "x86_64"
		if arch == "arm64" {
			linuxArch = "aarch64"
		}
		return fmt.Sprintf("Mozilla/5.0 (X11; Linux %s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", linuxArch, chromeVer)
	case "darwin":
		return fmt.Sprintf("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", chromeVer)
	default:
		return "Mozilla/5.0 (compatible; hyperliquidity/1.0)"
	}
}

// Config is hyperliquidity's full configuration surface: which market to
// quote, the HIP-2 strategy parameters, allocation ceilings, and tuning
// knobs for the order differ and tick loop.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Trading struct {
		Mode string `yaml:"mode"` // PAPER, TESTNET, MAINNET
	} `yaml:"trading"`

	Market struct {
		Coin    string `yaml:"coin"`
		WSURL   string `yaml:"ws_url"`
		RestURL string `yaml:"rest_url"`
	} `yaml:"market"`

	Strategy struct {
		StartPx       float64 `yaml:"start_px"`
		NOrders       int     `yaml:"n_orders"`
		OrderSz       float64 `yaml:"order_sz"`
		NSeededLevels int     `yaml:"n_seeded_levels"`
		TickSize      float64 `yaml:"tick_size"`
	} `yaml:"strategy"`

	Allocation struct {
		AllocatedToken float64 `yaml:"allocated_token"`
		AllocatedUSDC  float64 `yaml:"allocated_usdc"`
	} `yaml:"allocation"`

	Tuning struct {
		IntervalS         float64 `yaml:"interval_s"`
		DeadZoneBps       float64 `yaml:"dead_zone_bps"`
		PriceToleranceBps float64 `yaml:"price_tolerance_bps"`
		SizeTolerancePct  float64 `yaml:"size_tolerance_pct"`
		ReconcileEvery    int     `yaml:"reconcile_every"`
		MinNotional       float64 `yaml:"min_notional"`
	} `yaml:"tuning"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	// Wallet address is not a secret (it's public on-chain) so it may
	// live in the config file, but HYPERLIQUIDITY_WALLET always wins if
	// set. The private key is never read from the file — only the env.
	Wallet struct {
		Address string `yaml:"address"`
	} `yaml:"wallet"`
}

// tuningDefaults mirror cli.py's applied defaults for the tuning block.
const (
	defaultIntervalS         = 3.0
	defaultDeadZoneBps       = 5.0
	defaultPriceToleranceBps = 1.0
	defaultSizeTolerancePct  = 1.0
	defaultReconcileEvery    = 20
	defaultMinNotional       = 0.0
)

// LoadConfig reads and parses the YAML config file at path, applies
// tuning defaults, overrides secrets from the environment, and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyTuningDefaults()
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyTuningDefaults() {
	if c.Tuning.IntervalS == 0 {
		c.Tuning.IntervalS = defaultIntervalS
	}
	if c.Tuning.DeadZoneBps == 0 {
		c.Tuning.DeadZoneBps = defaultDeadZoneBps
	}
	if c.Tuning.PriceToleranceBps == 0 {
		c.Tuning.PriceToleranceBps = defaultPriceToleranceBps
	}
	if c.Tuning.SizeTolerancePct == 0 {
		c.Tuning.SizeTolerancePct = defaultSizeTolerancePct
	}
	if c.Tuning.ReconcileEvery == 0 {
		c.Tuning.ReconcileEvery = defaultReconcileEvery
	}
	// MinNotional's default is 0, so nothing to apply.
}

// Validate checks required fields, matching cli.py's _validate_config.
// Returns an aggregated multi-error rather than exiting the process.
func (c *Config) Validate() error {
	var errs []string

	if c.Market.Coin == "" {
		errs = append(errs, "market.coin is required")
	}
	if c.Strategy.StartPx <= 0 {
		errs = append(errs, "strategy.start_px must be > 0")
	}
	if c.Strategy.NOrders <= 0 {
		errs = append(errs, "strategy.n_orders must be > 0")
	}
	if c.Strategy.OrderSz <= 0 {
		errs = append(errs, "strategy.order_sz must be > 0")
	}
	if c.Allocation.AllocatedToken <= 0 {
		errs = append(errs, "allocation.allocated_token must be > 0")
	}
	if c.Allocation.AllocatedUSDC <= 0 {
		errs = append(errs, "allocation.allocated_usdc must be > 0")
	}

	if len(errs) == 0 {
		return nil
	}
	msg := errs[0]
	for _, e := range errs[1:] {
		msg += "; " + e
	}
	return fmt.Errorf("%s", msg)
}

// overrideWithEnv lets HYPERLIQUIDITY_WALLET override or complete the
// config file's wallet address, mirroring cli.py::_load_env.
// The private key is never read from the config struct — this only
// stamps the wallet address here; internal/walletsecret owns the key.
func overrideWithEnv(cfg *Config) {
	if addr := os.Getenv("HYPERLIQUIDITY_WALLET"); addr != "" {
		cfg.Wallet.Address = addr
	}
}

// LogSafe logs the resolved configuration with nothing secret in it —
// the private key is never part of Config to begin with, and the
// wallet address is logged in full because it isn't a secret.
func (c *Config) LogSafe(log *slog.Logger) {
	log.Info("resolved configuration",
		"coin", c.Market.Coin,
		"mode", c.Trading.Mode,
		"start_px", c.Strategy.StartPx,
		"n_orders", c.Strategy.NOrders,
		"order_sz", c.Strategy.OrderSz,
		"wallet", c.Wallet.Address,
	)
}
