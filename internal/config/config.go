package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Connect  ConnectConfig  `yaml:"connect" mapstructure:"connect"`
	Scoring  ScoringConfig  `yaml:"scoring" mapstructure:"scoring"`
	Legacy   LegacyConfig   `yaml:"legacy" mapstructure:"legacy"`
	Strategy StrategyConfig `yaml:"strategy" mapstructure:"strategy"`
	Matching MatchingConfig `yaml:"matching" mapstructure:"matching"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// CacheConfig configures the strategy matrix cache.
type CacheConfig struct {
	Driver     string      `yaml:"driver" mapstructure:"driver"`
	TTLMinutes int         `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
	Redis      RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr      string `yaml:"addr" mapstructure:"addr"`
	Password  string `yaml:"password" mapstructure:"password"`
	DB        int    `yaml:"db" mapstructure:"db"`
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// ConnectConfig controls retries while opening the store and cache.
type ConnectConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
}

// TierMultipliers scale raw answer quality by the best linked evidence tier.
type TierMultipliers struct {
	Tier0 float64 `yaml:"tier_0" mapstructure:"tier_0"`
	Tier1 float64 `yaml:"tier_1" mapstructure:"tier_1"`
	Tier2 float64 `yaml:"tier_2" mapstructure:"tier_2"`
}

// BandThresholds are the minimum overall scores for each risk band. Scores
// below High fall into Critical.
type BandThresholds struct {
	Low    float64 `yaml:"low" mapstructure:"low"`
	Medium float64 `yaml:"medium" mapstructure:"medium"`
	High   float64 `yaml:"high" mapstructure:"high"`
}

// ScoringConfig configures the weighted question/section/overall scorer.
type ScoringConfig struct {
	TierMultipliers TierMultipliers `yaml:"tier_multipliers" mapstructure:"tier_multipliers"`
	Bands           BandThresholds  `yaml:"bands" mapstructure:"bands"`
	WeightTolerance float64         `yaml:"weight_tolerance" mapstructure:"weight_tolerance"`
}

// SeverityPoints assigns a point value per severity or risk level.
type SeverityPoints struct {
	Critical float64 `yaml:"critical" mapstructure:"critical"`
	High     float64 `yaml:"high" mapstructure:"high"`
	Medium   float64 `yaml:"medium" mapstructure:"medium"`
	Low      float64 `yaml:"low" mapstructure:"low"`
}

// LegacyConfig configures the gap/risk component scorer.
type LegacyConfig struct {
	ComplianceWeight           float64        `yaml:"compliance_weight" mapstructure:"compliance_weight"`
	RiskWeight                 float64        `yaml:"risk_weight" mapstructure:"risk_weight"`
	MaturityWeight             float64        `yaml:"maturity_weight" mapstructure:"maturity_weight"`
	DocumentationWeight        float64        `yaml:"documentation_weight" mapstructure:"documentation_weight"`
	GapDeductions              SeverityPoints `yaml:"gap_deductions" mapstructure:"gap_deductions"`
	RiskDeductions             SeverityPoints `yaml:"risk_deductions" mapstructure:"risk_deductions"`
	MaturityDeductions         SeverityPoints `yaml:"maturity_deductions" mapstructure:"maturity_deductions"`
	DocumentationDeductions    SeverityPoints `yaml:"documentation_deductions" mapstructure:"documentation_deductions"`
	ControlEffectivenessWeight float64        `yaml:"control_effectiveness_weight" mapstructure:"control_effectiveness_weight"`
	DocumentationCategories    []string       `yaml:"documentation_categories" mapstructure:"documentation_categories"`
}

// CostMidpoints holds the euro midpoint used for each cost bucket.
type CostMidpoints struct {
	Under10K       float64 `yaml:"under_10k" mapstructure:"under_10k"`
	From10KTo50K   float64 `yaml:"range_10k_50k" mapstructure:"range_10k_50k"`
	From50KTo100K  float64 `yaml:"range_50k_100k" mapstructure:"range_50k_100k"`
	From100KTo250K float64 `yaml:"range_100k_250k" mapstructure:"range_100k_250k"`
	Over250K       float64 `yaml:"over_250k" mapstructure:"over_250k"`
}

// StrategyConfig configures the strategy matrix partitioner.
type StrategyConfig struct {
	CostMidpoints       CostMidpoints `yaml:"cost_midpoints" mapstructure:"cost_midpoints"`
	UncertaintyBand     float64       `yaml:"uncertainty_band" mapstructure:"uncertainty_band"`
	CurrencySymbol      string        `yaml:"currency_symbol" mapstructure:"currency_symbol"`
	MaxVendorsPerBucket int           `yaml:"max_vendors_per_bucket" mapstructure:"max_vendors_per_bucket"`
}

// PriorityBoosts are the points for matching the organization's ranked
// priorities, #1 first.
type PriorityBoosts struct {
	First  float64 `yaml:"first" mapstructure:"first"`
	Second float64 `yaml:"second" mapstructure:"second"`
	Third  float64 `yaml:"third" mapstructure:"third"`
}

// InsightThresholds decide when two vendors differ enough to call it out.
type InsightThresholds struct {
	TotalScorePct  float64 `yaml:"total_score_pct" mapstructure:"total_score_pct"`
	CoveragePoints float64 `yaml:"coverage_points" mapstructure:"coverage_points"`
	PricePoints    float64 `yaml:"price_points" mapstructure:"price_points"`
	BoostPoints    float64 `yaml:"boost_points" mapstructure:"boost_points"`
}

// MatchingConfig configures the vendor match scorer.
type MatchingConfig struct {
	RiskAreaMax       float64           `yaml:"risk_area_max" mapstructure:"risk_area_max"`
	SizeExact         float64           `yaml:"size_exact" mapstructure:"size_exact"`
	SizeAdjacent      float64           `yaml:"size_adjacent" mapstructure:"size_adjacent"`
	GeoMax            float64           `yaml:"geo_max" mapstructure:"geo_max"`
	PriceFit          float64           `yaml:"price_fit" mapstructure:"price_fit"`
	PriceUnknown      float64           `yaml:"price_unknown" mapstructure:"price_unknown"`
	PriorityBoosts    PriorityBoosts    `yaml:"priority_boosts" mapstructure:"priority_boosts"`
	FeatureMax        float64           `yaml:"feature_max" mapstructure:"feature_max"`
	DeploymentBoost   float64           `yaml:"deployment_boost" mapstructure:"deployment_boost"`
	SpeedBoost        float64           `yaml:"speed_boost" mapstructure:"speed_boost"`
	ImmediateMaxWeeks int               `yaml:"immediate_max_weeks" mapstructure:"immediate_max_weeks"`
	StandardMaxWeeks  int               `yaml:"standard_max_weeks" mapstructure:"standard_max_weeks"`
	Insights          InsightThresholds `yaml:"insights" mapstructure:"insights"`
}

// BatchConfig configures batch scoring.
type BatchConfig struct {
	MaxConcurrentAssessments int `yaml:"max_concurrent_assessments" mapstructure:"max_concurrent_assessments"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	RateLimit      float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("POSTURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "posture.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.ttl_minutes", 60)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.key_prefix", "posture:matrix:")
	v.SetDefault("connect.max_attempts", 5)
	v.SetDefault("connect.initial_backoff_ms", 500)
	v.SetDefault("connect.max_backoff_ms", 10000)
	v.SetDefault("connect.multiplier", 2.0)
	v.SetDefault("batch.max_concurrent_assessments", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	s := DefaultScoring()
	v.SetDefault("scoring.tier_multipliers.tier_0", s.TierMultipliers.Tier0)
	v.SetDefault("scoring.tier_multipliers.tier_1", s.TierMultipliers.Tier1)
	v.SetDefault("scoring.tier_multipliers.tier_2", s.TierMultipliers.Tier2)
	v.SetDefault("scoring.bands.low", s.Bands.Low)
	v.SetDefault("scoring.bands.medium", s.Bands.Medium)
	v.SetDefault("scoring.bands.high", s.Bands.High)
	v.SetDefault("scoring.weight_tolerance", s.WeightTolerance)

	l := DefaultLegacy()
	v.SetDefault("legacy.compliance_weight", l.ComplianceWeight)
	v.SetDefault("legacy.risk_weight", l.RiskWeight)
	v.SetDefault("legacy.maturity_weight", l.MaturityWeight)
	v.SetDefault("legacy.documentation_weight", l.DocumentationWeight)
	setSeverityDefaults(v, "legacy.gap_deductions", l.GapDeductions)
	setSeverityDefaults(v, "legacy.risk_deductions", l.RiskDeductions)
	setSeverityDefaults(v, "legacy.maturity_deductions", l.MaturityDeductions)
	setSeverityDefaults(v, "legacy.documentation_deductions", l.DocumentationDeductions)
	v.SetDefault("legacy.control_effectiveness_weight", l.ControlEffectivenessWeight)
	v.SetDefault("legacy.documentation_categories", l.DocumentationCategories)

	st := DefaultStrategy()
	v.SetDefault("strategy.cost_midpoints.under_10k", st.CostMidpoints.Under10K)
	v.SetDefault("strategy.cost_midpoints.range_10k_50k", st.CostMidpoints.From10KTo50K)
	v.SetDefault("strategy.cost_midpoints.range_50k_100k", st.CostMidpoints.From50KTo100K)
	v.SetDefault("strategy.cost_midpoints.range_100k_250k", st.CostMidpoints.From100KTo250K)
	v.SetDefault("strategy.cost_midpoints.over_250k", st.CostMidpoints.Over250K)
	v.SetDefault("strategy.uncertainty_band", st.UncertaintyBand)
	v.SetDefault("strategy.currency_symbol", st.CurrencySymbol)
	v.SetDefault("strategy.max_vendors_per_bucket", st.MaxVendorsPerBucket)

	m := DefaultMatching()
	v.SetDefault("matching.risk_area_max", m.RiskAreaMax)
	v.SetDefault("matching.size_exact", m.SizeExact)
	v.SetDefault("matching.size_adjacent", m.SizeAdjacent)
	v.SetDefault("matching.geo_max", m.GeoMax)
	v.SetDefault("matching.price_fit", m.PriceFit)
	v.SetDefault("matching.price_unknown", m.PriceUnknown)
	v.SetDefault("matching.priority_boosts.first", m.PriorityBoosts.First)
	v.SetDefault("matching.priority_boosts.second", m.PriorityBoosts.Second)
	v.SetDefault("matching.priority_boosts.third", m.PriorityBoosts.Third)
	v.SetDefault("matching.feature_max", m.FeatureMax)
	v.SetDefault("matching.deployment_boost", m.DeploymentBoost)
	v.SetDefault("matching.speed_boost", m.SpeedBoost)
	v.SetDefault("matching.immediate_max_weeks", m.ImmediateMaxWeeks)
	v.SetDefault("matching.standard_max_weeks", m.StandardMaxWeeks)
	v.SetDefault("matching.insights.total_score_pct", m.Insights.TotalScorePct)
	v.SetDefault("matching.insights.coverage_points", m.Insights.CoveragePoints)
	v.SetDefault("matching.insights.price_points", m.Insights.PricePoints)
	v.SetDefault("matching.insights.boost_points", m.Insights.BoostPoints)
}

func setSeverityDefaults(v *viper.Viper, prefix string, p SeverityPoints) {
	v.SetDefault(prefix+".critical", p.Critical)
	v.SetDefault(prefix+".high", p.High)
	v.SetDefault(prefix+".medium", p.Medium)
	v.SetDefault(prefix+".low", p.Low)
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
