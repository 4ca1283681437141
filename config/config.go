package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/poolbid/internal/domain"
)

// Config is the complete bidder configuration.
type Config struct {
	Bidder   BidderConfig       `yaml:"bidder"`
	API      APIConfig          `yaml:"api"`
	Chain    ChainConfig        `yaml:"chain"`
	Storage  StorageConfig      `yaml:"storage"`
	Notify   NotifyConfig       `yaml:"notify"`
	Metrics  MetricsConfig      `yaml:"metrics"`
	Log      LogConfig          `yaml:"log"`
	Defaults CollectionSettings `yaml:"defaults"`

	// Overrides holds per-collection settings keyed by contract address.
	Overrides map[string]CollectionOverride `yaml:"overrides"`
}

// BidderConfig controls what is bid on and how.
type BidderConfig struct {
	PrivateKeys    []string `yaml:"private_keys"`
	Collections    []string `yaml:"collections"`
	DryRun         bool     `yaml:"dry_run"`
	NoFeed         bool     `yaml:"no_feed"`
	PollIntervalMS int      `yaml:"poll_interval_ms"` // failsafe poll period
}

// APIConfig holds the marketplace endpoints.
type APIConfig struct {
	BaseURL   string  `yaml:"base_url"`
	WSServer  string  `yaml:"ws_server"`
	APIKey    string  `yaml:"api_key"`
	RateLimit float64 `yaml:"rate_limit"` // requests per second, process wide
}

// ChainConfig points at the node used for balance reads.
type ChainConfig struct {
	RPCURL      string `yaml:"rpc_url"`
	PoolAddress string `yaml:"pool_address"`
}

// StorageConfig controls where state is persisted.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite file path or ":memory:"
}

// NotifyConfig configures operator alerts.
type NotifyConfig struct {
	DiscordHook string `yaml:"discord_hook"` // empty logs alerts only
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables /metrics
}

// LogConfig controls logging format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// CollectionSettings is the bidding policy as written in YAML. FloorLimitPct
// is a percentage over the floor; domain.CollectionConfig stores the multiplier.
// It stays nil until set so a floor check without a limit can be rejected.
type CollectionSettings struct {
	MaxPoolToBid            int     `yaml:"max_pool_to_bid"`
	PoolSizeLimitBid        float64 `yaml:"pool_size_limit_bid"`
	PoolSizeLimitCancel     float64 `yaml:"pool_size_limit_cancel"`
	BidToPool1              bool    `yaml:"bid_to_pool_1"`
	BidToSamePool           bool    `yaml:"bid_to_same_pool"`
	SamePoolSizeLimitBid    float64 `yaml:"same_pool_size_limit_bid"`
	SamePoolSizeLimitCancel float64 `yaml:"same_pool_size_limit_cancel"`
	UseMaxQuantity          bool    `yaml:"use_max_quantity"`
	MaxQuantity             int     `yaml:"max_quantity"`
	BidExpirationMinutes    int     `yaml:"bid_expiration"`
	FloorCheck              bool    `yaml:"floor_check"`
	FloorLimitPct           *float64 `yaml:"floor_limit,omitempty"`
}

// CollectionOverride replaces individual default settings for one
// collection. Nil fields inherit the default.
type CollectionOverride struct {
	Slug                    string   `yaml:"slug,omitempty"`
	MaxPoolToBid            *int     `yaml:"max_pool_to_bid,omitempty"`
	PoolSizeLimitBid        *float64 `yaml:"pool_size_limit_bid,omitempty"`
	PoolSizeLimitCancel     *float64 `yaml:"pool_size_limit_cancel,omitempty"`
	BidToPool1              *bool    `yaml:"bid_to_pool_1,omitempty"`
	BidToSamePool           *bool    `yaml:"bid_to_same_pool,omitempty"`
	SamePoolSizeLimitBid    *float64 `yaml:"same_pool_size_limit_bid,omitempty"`
	SamePoolSizeLimitCancel *float64 `yaml:"same_pool_size_limit_cancel,omitempty"`
	UseMaxQuantity          *bool    `yaml:"use_max_quantity,omitempty"`
	MaxQuantity             *int     `yaml:"max_quantity,omitempty"`
	BidExpirationMinutes    *int     `yaml:"bid_expiration,omitempty"`
	FloorCheck              *bool    `yaml:"floor_check,omitempty"`
	FloorLimitPct           *float64 `yaml:"floor_limit,omitempty"`
}

// Load reads the YAML file at path and the .env file if present. Environment
// variables override YAML values. An empty path skips the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	setDefaults(&cfg)
	cfg.normalize()

	return &cfg, nil
}

// PollInterval returns the failsafe poll period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Bidder.PollIntervalMS) * time.Millisecond
}

// CollectionConfig returns the effective policy for address: the defaults
// with that collection's override applied.
func (c *Config) CollectionConfig(address string) domain.CollectionConfig {
	return c.settingsFor(address).toDomain()
}

func (c *Config) settingsFor(address string) CollectionSettings {
	s := c.Defaults
	if o, ok := c.Overrides[domain.NormalizeAddress(address)]; ok {
		s = o.apply(s)
	}
	return s
}

// Validate returns every invalid setting found.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Bidder.PrivateKeys) == 0 {
		errs = append(errs, errors.New("no private keys configured (PRIVATE_KEYS)"))
	}
	if len(c.Bidder.Collections) == 0 {
		errs = append(errs, errors.New("no collections configured (COLLECTIONS)"))
	}
	if !c.Bidder.NoFeed && c.API.WSServer == "" {
		errs = append(errs, errors.New("ws server is required unless the feed is disabled (WS_SERVER)"))
	}
	if c.API.RateLimit <= 0 {
		errs = append(errs, fmt.Errorf("rate limit must be positive (got %g)", c.API.RateLimit))
	}
	if err := c.Defaults.validate(); err != nil {
		errs = append(errs, fmt.Errorf("defaults: %w", err))
	}
	for addr := range c.Overrides {
		if err := c.settingsFor(addr).validate(); err != nil {
			errs = append(errs, fmt.Errorf("collection %s: %w", addr, err))
		}
	}

	return errors.Join(errs...)
}

func (s CollectionSettings) validate() error {
	var errs []error
	if s.FloorCheck && s.FloorLimitPct == nil {
		errs = append(errs, errors.New("floor limit is required when floor check is enabled (FLOOR_LIMIT)"))
	}
	if err := s.toDomain().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s CollectionSettings) toDomain() domain.CollectionConfig {
	var pct float64
	if s.FloorLimitPct != nil {
		pct = *s.FloorLimitPct
	}
	return domain.CollectionConfig{
		MaxPoolToBid:            s.MaxPoolToBid,
		PoolSizeLimitBid:        s.PoolSizeLimitBid,
		PoolSizeLimitCancel:     s.PoolSizeLimitCancel,
		BidToPool1:              s.BidToPool1,
		BidToSamePool:           s.BidToSamePool,
		SamePoolSizeLimitBid:    s.SamePoolSizeLimitBid,
		SamePoolSizeLimitCancel: s.SamePoolSizeLimitCancel,
		UseMaxQuantity:          s.UseMaxQuantity,
		MaxQuantity:             s.MaxQuantity,
		BidExpirationMinutes:    s.BidExpirationMinutes,
		FloorCheck:              s.FloorCheck,
		FloorLimit:              domain.FloorLimitFromPct(pct),
	}
}

func (o CollectionOverride) apply(s CollectionSettings) CollectionSettings {
	setIf(&s.MaxPoolToBid, o.MaxPoolToBid)
	setIf(&s.PoolSizeLimitBid, o.PoolSizeLimitBid)
	setIf(&s.PoolSizeLimitCancel, o.PoolSizeLimitCancel)
	setIf(&s.BidToPool1, o.BidToPool1)
	setIf(&s.BidToSamePool, o.BidToSamePool)
	setIf(&s.SamePoolSizeLimitBid, o.SamePoolSizeLimitBid)
	setIf(&s.SamePoolSizeLimitCancel, o.SamePoolSizeLimitCancel)
	setIf(&s.UseMaxQuantity, o.UseMaxQuantity)
	setIf(&s.MaxQuantity, o.MaxQuantity)
	setIf(&s.BidExpirationMinutes, o.BidExpirationMinutes)
	setIf(&s.FloorCheck, o.FloorCheck)
	if o.FloorLimitPct != nil {
		pct := *o.FloorLimitPct
		s.FloorLimitPct = &pct
	}
	return s
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// OverrideFrom builds a fully populated override from s, used when
// generating per-collection config files.
func OverrideFrom(slug string, s CollectionSettings) CollectionOverride {
	return CollectionOverride{
		Slug:                    slug,
		MaxPoolToBid:            &s.MaxPoolToBid,
		PoolSizeLimitBid:        &s.PoolSizeLimitBid,
		PoolSizeLimitCancel:     &s.PoolSizeLimitCancel,
		BidToPool1:              &s.BidToPool1,
		BidToSamePool:           &s.BidToSamePool,
		SamePoolSizeLimitBid:    &s.SamePoolSizeLimitBid,
		SamePoolSizeLimitCancel: &s.SamePoolSizeLimitCancel,
		UseMaxQuantity:          &s.UseMaxQuantity,
		MaxQuantity:             &s.MaxQuantity,
		BidExpirationMinutes:    &s.BidExpirationMinutes,
		FloorCheck:              &s.FloorCheck,
		FloorLimitPct:           s.FloorLimitPct,
	}
}

// normalize lower-cases addresses and drops empty list entries.
func (c *Config) normalize() {
	c.Bidder.Collections = cleanList(c.Bidder.Collections, domain.NormalizeAddress)
	c.Bidder.PrivateKeys = cleanList(c.Bidder.PrivateKeys, strings.TrimSpace)

	if len(c.Overrides) > 0 {
		m := make(map[string]CollectionOverride, len(c.Overrides))
		for addr, o := range c.Overrides {
			m[domain.NormalizeAddress(addr)] = o
		}
		c.Overrides = m
	}
}

func cleanList(in []string, f func(string) string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		v = f(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// applyEnvOverrides overrides values with environment variables when set.
func applyEnvOverrides(cfg *Config) error {
	var errs []error

	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v := os.Getenv(key); v != "" {
			*dst = strings.Split(v, ",")
		}
	}
	flag := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "1" || strings.EqualFold(v, "true")
		}
	}
	num := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	integer := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	list("PRIVATE_KEYS", &cfg.Bidder.PrivateKeys)
	list("COLLECTIONS", &cfg.Bidder.Collections)
	flag("DRY_RUN", &cfg.Bidder.DryRun)
	flag("NO_WS", &cfg.Bidder.NoFeed)

	str("API_BASE_URL", &cfg.API.BaseURL)
	str("WS_SERVER", &cfg.API.WSServer)
	str("X_NFT_API_KEY", &cfg.API.APIKey)
	num("BLUR_RATE_LIMIT", &cfg.API.RateLimit)

	str("RPC_URL", &cfg.Chain.RPCURL)
	str("DB_PATH", &cfg.Storage.DSN)
	str("DISCORD_HOOK", &cfg.Notify.DiscordHook)
	str("METRICS_ADDR", &cfg.Metrics.Addr)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)

	d := &cfg.Defaults
	integer("MAX_POOL_TO_BID", &d.MaxPoolToBid)
	num("POOL_SIZE_LIMIT_BID", &d.PoolSizeLimitBid)
	num("POOL_SIZE_LIMIT_CANCEL", &d.PoolSizeLimitCancel)
	flag("BID_TO_POOL_1", &d.BidToPool1)
	flag("BID_TO_SAME_POOL", &d.BidToSamePool)
	num("SAME_POOL_SIZE_LIMIT_BID", &d.SamePoolSizeLimitBid)
	num("SAME_POOL_SIZE_LIMIT_CANCEL", &d.SamePoolSizeLimitCancel)
	flag("USE_MAX_QUANTITY", &d.UseMaxQuantity)
	integer("MAX_QUANTITY", &d.MaxQuantity)
	integer("BID_EXPIRATION", &d.BidExpirationMinutes)
	flag("FLOOR_CHECK", &d.FloorCheck)
	if os.Getenv("FLOOR_LIMIT") != "" {
		var pct float64
		num("FLOOR_LIMIT", &pct)
		d.FloorLimitPct = &pct
	}

	return errors.Join(errs...)
}

// setDefaults fills unset values with production defaults.
func setDefaults(cfg *Config) {
	if cfg.Bidder.PollIntervalMS <= 0 {
		cfg.Bidder.PollIntervalMS = 1000
	}
	if cfg.API.RateLimit <= 0 {
		cfg.API.RateLimit = 3
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "poolbid.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	d := &cfg.Defaults
	if d.MaxPoolToBid == 0 {
		d.MaxPoolToBid = 3
	}
	if d.PoolSizeLimitBid == 0 {
		d.PoolSizeLimitBid = 500
	}
	if d.PoolSizeLimitCancel == 0 {
		d.PoolSizeLimitCancel = 450
	}
	if d.SamePoolSizeLimitBid == 0 {
		d.SamePoolSizeLimitBid = 500
	}
	if d.SamePoolSizeLimitCancel == 0 {
		d.SamePoolSizeLimitCancel = 450
	}
	if d.BidExpirationMinutes == 0 {
		d.BidExpirationMinutes = 30
	}
}
