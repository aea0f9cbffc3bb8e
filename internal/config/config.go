package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Exchange    ExchangeConfig    `yaml:"exchange"`
	Symbols     []string          `yaml:"symbols"`
	Interval    string            `yaml:"interval"`
	CandleLimit int               `yaml:"candle_limit"`
	Direction   string            `yaml:"direction"`
	Detection   DetectionConfig   `yaml:"detection"`
	Selection   SelectionConfig   `yaml:"selection"`
	Enhancement EnhancementConfig `yaml:"enhancement"`
	SLTP        SLTPConfig        `yaml:"sltp"`
	Leverage    LeverageConfig    `yaml:"leverage"`
	Correlation CorrelationConfig `yaml:"correlation"`
	Market      MarketConfig      `yaml:"market"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Cache       CacheConfig       `yaml:"cache"`
	Storage     StorageConfig     `yaml:"storage"`
	Logging     LoggingConfig     `yaml:"logging"`
	Server      ServerConfig      `yaml:"server"`
}

type ExchangeConfig struct {
	Name         string `yaml:"name"`
	APIKey       string `yaml:"api_key"`
	APISecret    string `yaml:"api_secret"`
	WSEndpoint   string `yaml:"ws_endpoint"`
	RESTEndpoint string `yaml:"rest_endpoint"`
	StreamKlines bool   `yaml:"stream_klines"`
}

// StrengthWeights are the empirically chosen coefficients of the level strength formula.
type StrengthWeights struct {
	Touch       float64 `yaml:"touch"`
	Bounce      float64 `yaml:"bounce"`
	TimeSpan    float64 `yaml:"time_span"`
	Recency     float64 `yaml:"recency"`
	VolumeSpike float64 `yaml:"volume_spike"`
	Divisor     float64 `yaml:"divisor"`
}

type DetectionConfig struct {
	Window           int             `yaml:"window"`
	ClusterTolerance float64         `yaml:"cluster_tolerance"`
	MinTouches       int             `yaml:"min_touches"`
	MinBars          int             `yaml:"min_bars"`
	VolumeLookback   int             `yaml:"volume_lookback"`
	Weights          StrengthWeights `yaml:"weights"`
}

type SelectionConfig struct {
	MinDistance     float64 `yaml:"min_distance"`
	ProximityCap    float64 `yaml:"proximity_cap"`
	PerSide         int     `yaml:"per_side"`
	StrengthWeight  float64 `yaml:"strength_weight"`
	ProximityWeight float64 `yaml:"proximity_weight"`
	MLWeight        float64 `yaml:"ml_weight"`
	DefaultMLScore  float64 `yaml:"default_ml_score"`
}

type EnhancementConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Tolerance     float64 `yaml:"tolerance"`
	Lookahead     int     `yaml:"lookahead"`
	StrengthBlend float64 `yaml:"strength_blend"`
	MinSamples    int     `yaml:"min_samples"`
}

type SLTPConfig struct {
	Strategy string `yaml:"strategy"`
}

type LeverageConfig struct {
	MaxLeverage          float64 `yaml:"max_leverage"`
	MaxLossFraction      float64 `yaml:"max_loss_fraction"`
	MinRiskReward        float64 `yaml:"min_risk_reward"`
	RiskRewardBase       float64 `yaml:"risk_reward_base"`
	VolatilityBudget     float64 `yaml:"volatility_budget"`
	SafetyMargin         float64 `yaml:"safety_margin"`
	PlanningLeverage     float64 `yaml:"planning_leverage"`
	ProbabilityTolerance float64 `yaml:"probability_tolerance"`
}

type CorrelationConfig struct {
	ReferenceSymbol   string             `yaml:"reference_symbol"`
	Window            int                `yaml:"window"`
	CrashScenariosPct map[string]float64 `yaml:"crash_scenarios_pct"`
	ReferenceLeverage float64            `yaml:"reference_leverage"`
}

type MarketConfig struct {
	VolatilityWindow int `yaml:"volatility_window"`
	FastEMA          int `yaml:"fast_ema"`
	SlowEMA          int `yaml:"slow_ema"`
}

type SchedulerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Spec    string `yaml:"spec"`
	Workers int    `yaml:"workers"`
	LogFile string `yaml:"log_file"`
}

type CacheConfig struct {
	Size int `yaml:"size"`
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Default returns a configuration with every tunable populated.
func Default() Config {
	return Config{
		Exchange: ExchangeConfig{
			Name:         "bybit",
			RESTEndpoint: "https://api.bybit.com",
			WSEndpoint:   "wss://stream.bybit.com/v5/public/linear",
		},
		Symbols:     []string{"BTCUSDT", "ETHUSDT"},
		Interval:    "60",
		CandleLimit: 200,
		Direction:   "long",
		Detection: DetectionConfig{
			Window:           5,
			ClusterTolerance: 0.01,
			MinTouches:       1,
			MinBars:          20,
			VolumeLookback:   20,
			Weights: StrengthWeights{
				Touch:       3,
				Bounce:      50,
				TimeSpan:    0.05,
				Recency:     0.02,
				VolumeSpike: 10,
				Divisor:     200,
			},
		},
		Selection: SelectionConfig{
			MinDistance:     0.005,
			ProximityCap:    0.05,
			PerSide:         3,
			StrengthWeight:  0.4,
			ProximityWeight: 0.4,
			MLWeight:        0.2,
			DefaultMLScore:  0.5,
		},
		Enhancement: EnhancementConfig{
			Enabled:       true,
			Tolerance:     0.003,
			Lookahead:     3,
			StrengthBlend: 0.3,
			MinSamples:    3,
		},
		SLTP: SLTPConfig{Strategy: "default"},
		Leverage: LeverageConfig{
			MaxLeverage:          20,
			MaxLossFraction:      0.10,
			MinRiskReward:        1.5,
			RiskRewardBase:       10,
			VolatilityBudget:     0.10,
			SafetyMargin:         0.10,
			PlanningLeverage:     5,
			ProbabilityTolerance: 0.05,
		},
		Correlation: CorrelationConfig{
			ReferenceSymbol: "BTCUSDT",
			Window:          100,
			CrashScenariosPct: map[string]float64{
				"1h":  3,
				"4h":  6,
				"24h": 12,
			},
			ReferenceLeverage: 10,
		},
		Market: MarketConfig{
			VolatilityWindow: 20,
			FastEMA:          9,
			SlowEMA:          21,
		},
		Scheduler: SchedulerConfig{
			Enabled: true,
			Spec:    "0 */15 * * * *",
			Workers: 4,
		},
		Cache:   CacheConfig{Size: 64},
		Storage: StorageConfig{Path: "leverage_guard.db"},
		Logging: LoggingConfig{Level: "info"},
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

// Load decodes a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := Default()
	// yaml.v3 merges into existing maps; a configured scenario set replaces the defaults.
	defaultScenarios := cfg.Correlation.CrashScenariosPct
	cfg.Correlation.CrashScenariosPct = nil

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	if len(cfg.Correlation.CrashScenariosPct) == 0 {
		cfg.Correlation.CrashScenariosPct = defaultScenarios
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate returns the first invalid setting.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return errors.New("symbols must not be empty")
	}
	if c.Interval == "" {
		return errors.New("interval must be set")
	}
	if c.Direction != "long" && c.Direction != "short" {
		return fmt.Errorf("direction %q must be long or short", c.Direction)
	}
	if c.Detection.Window <= 0 {
		return errors.New("detection.window must be positive")
	}
	if c.Detection.ClusterTolerance <= 0 || c.Detection.ClusterTolerance >= 1 {
		return fmt.Errorf("detection.cluster_tolerance (%f) must be in (0, 1)", c.Detection.ClusterTolerance)
	}
	if c.Detection.MinBars < 2*c.Detection.Window+1 {
		return fmt.Errorf("detection.min_bars (%d) must cover at least one full fractal window", c.Detection.MinBars)
	}
	if c.CandleLimit < c.Detection.MinBars {
		return fmt.Errorf("candle_limit (%d) must be >= detection.min_bars (%d)", c.CandleLimit, c.Detection.MinBars)
	}
	if c.Detection.Weights.Divisor <= 0 {
		return errors.New("detection.weights.divisor must be positive")
	}
	if c.Selection.PerSide <= 0 {
		return errors.New("selection.per_side must be positive")
	}
	if c.Selection.MinDistance < 0 || c.Selection.ProximityCap <= 0 {
		return errors.New("selection distances must be non-negative with a positive proximity cap")
	}
	if c.Selection.DefaultMLScore < 0 || c.Selection.DefaultMLScore > 1 {
		return fmt.Errorf("selection.default_ml_score (%f) must be in [0, 1]", c.Selection.DefaultMLScore)
	}
	switch c.SLTP.Strategy {
	case "default", "conservative", "aggressive":
	default:
		return fmt.Errorf("sltp.strategy %q is not one of default, conservative, aggressive", c.SLTP.Strategy)
	}
	if c.Leverage.MaxLeverage < 1 {
		return fmt.Errorf("leverage.max_leverage (%f) must be >= 1", c.Leverage.MaxLeverage)
	}
	if c.Leverage.MaxLossFraction <= 0 || c.Leverage.MaxLossFraction > 1 {
		return fmt.Errorf("leverage.max_loss_fraction (%f) must be in (0, 1]", c.Leverage.MaxLossFraction)
	}
	if c.Leverage.SafetyMargin < 0 || c.Leverage.SafetyMargin >= 1 {
		return fmt.Errorf("leverage.safety_margin (%f) must be in [0, 1)", c.Leverage.SafetyMargin)
	}
	if c.Leverage.MinRiskReward <= 0 || c.Leverage.PlanningLeverage < 1 {
		return errors.New("leverage.min_risk_reward must be positive and planning_leverage >= 1")
	}
	if c.Correlation.ReferenceSymbol == "" {
		return errors.New("correlation.reference_symbol must be set")
	}
	if len(c.Correlation.CrashScenariosPct) == 0 {
		return errors.New("correlation.crash_scenarios_pct must not be empty")
	}
	if c.Scheduler.Workers <= 0 {
		return errors.New("scheduler.workers must be positive")
	}
	if c.Cache.Size <= 0 {
		return errors.New("cache.size must be positive")
	}
	return nil
}
