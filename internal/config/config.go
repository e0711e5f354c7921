package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/helmtrade/helm/internal/breaker"
	"github.com/helmtrade/helm/internal/core"
	"github.com/helmtrade/helm/internal/meta"
	"github.com/helmtrade/helm/internal/regime"
	"github.com/helmtrade/helm/internal/risk"
)

type Config struct {
	Symbols       []string                  `mapstructure:"symbols"`
	Strategies    map[string]StrategyConfig `mapstructure:"strategies"`
	Regime        RegimeConfig              `mapstructure:"regime"`
	Hygiene       HygieneConfig             `mapstructure:"hygiene"`
	Confluence    ConfluenceConfig          `mapstructure:"confluence"`
	Risk          RiskConfig                `mapstructure:"risk"`
	Breaker       BreakerConfig             `mapstructure:"breaker"`
	Store         StoreConfig               `mapstructure:"store"`
	Archive       ArchiveConfig             `mapstructure:"archive"`
	Notifiers     map[string]NotifierConfig `mapstructure:"notifiers"`
	Observability ObservabilityConfig       `mapstructure:"observability"`
}

// StrategyConfig holds per-strategy arbitration parameters.
type StrategyConfig struct {
	Enabled       bool               `mapstructure:"enabled"`
	Params        map[string]any     `mapstructure:"params"`
	ScaleMult     float64            `mapstructure:"scale_mult"`
	ScaleOffset   float64            `mapstructure:"scale_offset"`
	BaseWeight    float64            `mapstructure:"base_weight"`
	RegimeWeights map[string]float64 `mapstructure:"regime_weights"`
}

// RegimeConfig mirrors the regime scorer thresholds.
type RegimeConfig struct {
	TrendADX       float64 `mapstructure:"trend_adx"`
	RangeADX       float64 `mapstructure:"range_adx"`
	RangeBandWidth float64 `mapstructure:"range_band_width"`
	HighVolATRPct  float64 `mapstructure:"high_vol_atr_pct"`
	FlatATRSlope   float64 `mapstructure:"flat_atr_slope"`
	ChopDISpread   float64 `mapstructure:"chop_di_spread"`
	SlopeLookback  int     `mapstructure:"slope_lookback"`
	LabelCutoff    float64 `mapstructure:"label_cutoff"`
	HighVolCutoff  float64 `mapstructure:"high_vol_cutoff"`
}

type HygieneConfig struct {
	MaxSpreadPct         float64       `mapstructure:"max_spread_pct"`
	MaxATRPct            float64       `mapstructure:"max_atr_pct"`
	MaxBookAge           time.Duration `mapstructure:"max_book_age"`
	AllowAnomalyOverride bool          `mapstructure:"allow_anomaly_override"`
}

type ConfluenceConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	NeutralMultiplier float64 `mapstructure:"neutral_multiplier"`
}

// RiskConfig holds the hard risk limits. Values are plain numbers in the
// config file and converted to decimals when materialized.
type RiskConfig struct {
	RiskPerTradePct    float64 `mapstructure:"risk_per_trade_pct"`
	MaxLeverage        float64 `mapstructure:"max_leverage"`
	MaxNotionalUSD     float64 `mapstructure:"max_notional_usd"`
	MaxOpenExposureUSD float64 `mapstructure:"max_open_exposure_usd"`
	MaxDailyLossPct    float64 `mapstructure:"max_daily_loss_pct"`
	MaxOpenPositions   int     `mapstructure:"max_open_positions"`
	MinStopDistancePct float64 `mapstructure:"min_stop_distance_pct"`
}

type BreakerConfig struct {
	Volatility VolatilityConfig `mapstructure:"volatility"`
	Losses     LossesConfig     `mapstructure:"losses"`
}

type VolatilityConfig struct {
	MinSamples    int           `mapstructure:"min_samples"`
	MaxSamples    int           `mapstructure:"max_samples"`
	ATRMultiplier float64       `mapstructure:"atr_multiplier"`
	ThresholdPct  float64       `mapstructure:"threshold_pct"`
	HaltDuration  time.Duration `mapstructure:"halt_duration"`
}

type LossesConfig struct {
	Window                     time.Duration `mapstructure:"window"`
	AlertOnLosses              int           `mapstructure:"alert_on_losses"`
	ConsecutiveLossesThreshold int           `mapstructure:"consecutive_losses_threshold"`
	DailyLossKillPct           float64       `mapstructure:"daily_loss_kill_pct"`
}

type StoreConfig struct {
	MaxDecisions int `mapstructure:"max_decisions"`
}

// ArchiveConfig selects the cold storage backend for decision archives.
type ArchiveConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Type    string   `mapstructure:"type"` // "localfs" or "s3"
	Path    string   `mapstructure:"path"` // For localfs
	S3      S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type NotifierConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

type ObservabilityConfig struct {
	Development bool          `mapstructure:"development"`
	LogLevel    string        `mapstructure:"log_level"`
	Metrics     MetricsConfig `mapstructure:"metrics"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	th := regime.DefaultThresholds()
	hy := meta.DefaultHygieneConfig()
	cf := meta.DefaultConfluenceConfig()
	lim := risk.DefaultLimits()
	vol := breaker.DefaultVolatilitySettings()
	losses := breaker.DefaultLossStreakSettings()

	return &Config{
		Regime: RegimeConfig{
			TrendADX:       th.TrendADX,
			RangeADX:       th.RangeADX,
			RangeBandWidth: th.RangeBandWidth,
			HighVolATRPct:  th.HighVolATRPct,
			FlatATRSlope:   th.FlatATRSlope,
			ChopDISpread:   th.ChopDISpread,
			SlopeLookback:  th.SlopeLookback,
			LabelCutoff:    th.LabelCutoff,
			HighVolCutoff:  th.HighVolCutoff,
		},
		Hygiene: HygieneConfig{
			MaxSpreadPct: hy.MaxSpreadPct,
			MaxATRPct:    hy.MaxATRPct,
			MaxBookAge:   hy.MaxBookAge,
		},
		Confluence: ConfluenceConfig{
			Enabled:           cf.Enabled,
			NeutralMultiplier: cf.NeutralMultiplier,
		},
		Risk: RiskConfig{
			RiskPerTradePct:    lim.RiskPerTradePct.InexactFloat64(),
			MaxLeverage:        lim.MaxLeverage.InexactFloat64(),
			MaxNotionalUSD:     lim.MaxNotionalUSD.InexactFloat64(),
			MaxOpenExposureUSD: lim.MaxOpenExposureUSD.InexactFloat64(),
			MaxDailyLossPct:    lim.MaxDailyLossPct.InexactFloat64(),
			MaxOpenPositions:   lim.MaxOpenPositions,
			MinStopDistancePct: lim.MinStopDistancePct.InexactFloat64(),
		},
		Breaker: BreakerConfig{
			Volatility: VolatilityConfig{
				MinSamples:    vol.MinSamples,
				MaxSamples:    vol.MaxSamples,
				ATRMultiplier: vol.ATRMultiplier,
				ThresholdPct:  vol.ThresholdPct,
				HaltDuration:  vol.HaltDuration,
			},
			Losses: LossesConfig{
				Window:                     losses.Window,
				AlertOnLosses:              losses.AlertOnLosses,
				ConsecutiveLossesThreshold: losses.ConsecutiveLossesThreshold,
				DailyLossKillPct:           losses.DailyLossKillPct,
			},
		},
		Store: StoreConfig{MaxDecisions: 1000},
		Archive: ArchiveConfig{
			Type: "localfs",
			Path: "archive",
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			Metrics: MetricsConfig{
				Enabled: true,
				Listen:  "127.0.0.1:9090",
				Path:    "/metrics",
			},
		},
	}
}

// Thresholds materializes the regime scorer thresholds.
func (c *Config) Thresholds() regime.Thresholds {
	return regime.Thresholds{
		TrendADX:       c.Regime.TrendADX,
		RangeADX:       c.Regime.RangeADX,
		RangeBandWidth: c.Regime.RangeBandWidth,
		HighVolATRPct:  c.Regime.HighVolATRPct,
		FlatATRSlope:   c.Regime.FlatATRSlope,
		ChopDISpread:   c.Regime.ChopDISpread,
		SlopeLookback:  c.Regime.SlopeLookback,
		LabelCutoff:    c.Regime.LabelCutoff,
		HighVolCutoff:  c.Regime.HighVolCutoff,
	}
}

// HygieneFilter materializes the hygiene gate config.
func (c *Config) HygieneFilter() meta.HygieneConfig {
	return meta.HygieneConfig{
		MaxSpreadPct:         c.Hygiene.MaxSpreadPct,
		MaxATRPct:            c.Hygiene.MaxATRPct,
		MaxBookAge:           c.Hygiene.MaxBookAge,
		AllowAnomalyOverride: c.Hygiene.AllowAnomalyOverride,
	}
}

// ConfluenceGate materializes the confluence gate config.
func (c *Config) ConfluenceGate() meta.ConfluenceConfig {
	return meta.ConfluenceConfig{
		Enabled:           c.Confluence.Enabled,
		NeutralMultiplier: c.Confluence.NeutralMultiplier,
	}
}

// Limits materializes the risk limits as decimals.
func (c *Config) Limits() risk.Limits {
	return risk.Limits{
		RiskPerTradePct:    decimal.NewFromFloat(c.Risk.RiskPerTradePct),
		MaxLeverage:        decimal.NewFromFloat(c.Risk.MaxLeverage),
		MaxNotionalUSD:     decimal.NewFromFloat(c.Risk.MaxNotionalUSD),
		MaxOpenExposureUSD: decimal.NewFromFloat(c.Risk.MaxOpenExposureUSD),
		MaxDailyLossPct:    decimal.NewFromFloat(c.Risk.MaxDailyLossPct),
		MaxOpenPositions:   c.Risk.MaxOpenPositions,
		MinStopDistancePct: decimal.NewFromFloat(c.Risk.MinStopDistancePct),
	}
}

// BreakerSettings materializes the circuit breaker settings.
func (c *Config) BreakerSettings() (breaker.VolatilitySettings, breaker.LossStreakSettings) {
	return breaker.VolatilitySettings{
			MinSamples:    c.Breaker.Volatility.MinSamples,
			MaxSamples:    c.Breaker.Volatility.MaxSamples,
			ATRMultiplier: c.Breaker.Volatility.ATRMultiplier,
			ThresholdPct:  c.Breaker.Volatility.ThresholdPct,
			HaltDuration:  c.Breaker.Volatility.HaltDuration,
		}, breaker.LossStreakSettings{
			Window:                     c.Breaker.Losses.Window,
			AlertOnLosses:              c.Breaker.Losses.AlertOnLosses,
			ConsecutiveLossesThreshold: c.Breaker.Losses.ConsecutiveLossesThreshold,
			DailyLossKillPct:           c.Breaker.Losses.DailyLossKillPct,
		}
}

// Scalings materializes the per-strategy confidence scalings for enabled
// strategies.
func (c *Config) Scalings() map[string]meta.Scaling {
	out := make(map[string]meta.Scaling, len(c.Strategies))
	for name, sc := range c.Strategies {
		if !sc.Enabled {
			continue
		}
		s := meta.NeutralScaling()
		if sc.ScaleMult != 0 {
			s.Multiplier = sc.ScaleMult
		}
		s.Offset = sc.ScaleOffset
		out[name] = s
	}
	return out
}

// Weights materializes the base and per-regime strategy weights. A disabled
// strategy keeps an explicit base weight of 0: it still enters arbitration
// alongside everything else but can never win. Disabling is by weight, not
// by omission.
func (c *Config) Weights() (map[string]float64, map[string]map[core.RegimeLabel]float64) {
	base := make(map[string]float64, len(c.Strategies))
	regimes := make(map[string]map[core.RegimeLabel]float64)
	for name, sc := range c.Strategies {
		if !sc.Enabled {
			base[name] = 0
			continue
		}
		if sc.BaseWeight != 0 {
			base[name] = sc.BaseWeight
		}
		if len(sc.RegimeWeights) > 0 {
			m := make(map[core.RegimeLabel]float64, len(sc.RegimeWeights))
			for label, w := range sc.RegimeWeights {
				m[core.RegimeLabel(label)] = w
			}
			regimes[name] = m
		}
	}
	return base, regimes
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.Limits().Validate(); err != nil {
		return err
	}

	vol, losses := c.BreakerSettings()
	if err := vol.Validate(); err != nil {
		return err
	}
	if err := losses.Validate(); err != nil {
		return err
	}

	if c.Hygiene.MaxSpreadPct <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("hygiene max_spread_pct must be positive, got %f", c.Hygiene.MaxSpreadPct))
	}
	if c.Hygiene.MaxATRPct <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("hygiene max_atr_pct must be positive, got %f", c.Hygiene.MaxATRPct))
	}
	if c.Hygiene.MaxBookAge <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("hygiene max_book_age must be positive, got %s", c.Hygiene.MaxBookAge))
	}

	if c.Confluence.NeutralMultiplier < 0 || c.Confluence.NeutralMultiplier > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("confluence neutral_multiplier must be in [0,1], got %f", c.Confluence.NeutralMultiplier))
	}

	if c.Store.MaxDecisions <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("store max_decisions must be positive, got %d", c.Store.MaxDecisions))
	}

	switch c.Archive.Type {
	case "", "localfs":
		if c.Archive.Enabled && c.Archive.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("archive path required for localfs backend"))
		}
	case "s3":
		if c.Archive.Enabled && c.Archive.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("s3 bucket required for s3 archive backend"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown archive type %q", c.Archive.Type))
	}

	for name, sc := range c.Strategies {
		if sc.Enabled && sc.BaseWeight < 0 {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("strategy %s base_weight cannot be negative, got %f", name, sc.BaseWeight))
		}
	}

	for name, nc := range c.Notifiers {
		if nc.Enabled && nc.URL == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("notifier %s requires a url", name))
		}
	}

	return nil
}
