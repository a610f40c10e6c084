package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks the policy sections and the settings required by mode.
// Supported modes: "offline" (no store), "store", "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "offline":
	case "store":
		errs = append(errs, c.validateStore()...)
	case "serve":
		errs = append(errs, c.validateStore()...)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server.rate_limit must be >= 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	errs = append(errs, c.Scoring.validate()...)
	errs = append(errs, c.Legacy.validate()...)
	errs = append(errs, c.Strategy.validate()...)
	errs = append(errs, c.Matching.validate()...)

	switch c.Cache.Driver {
	case "memory", "none":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			errs = append(errs, "cache.redis.addr is required for the redis cache")
		}
	default:
		errs = append(errs, fmt.Sprintf("cache.driver %q must be memory, redis or none", c.Cache.Driver))
	}
	if c.Cache.TTLMinutes < 0 {
		errs = append(errs, "cache.ttl_minutes must be >= 0")
	}

	if c.Connect.MaxAttempts < 1 {
		errs = append(errs, "connect.max_attempts must be >= 1")
	}
	if c.Connect.InitialBackoffMs < 0 || c.Connect.MaxBackoffMs < c.Connect.InitialBackoffMs {
		errs = append(errs, "connect backoff must satisfy 0 <= initial_backoff_ms <= max_backoff_ms")
	}

	if c.Batch.MaxConcurrentAssessments < 1 || c.Batch.MaxConcurrentAssessments > 64 {
		errs = append(errs, "batch.max_concurrent_assessments must be between 1 and 64")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	return errs
}

func (s ScoringConfig) validate() []string {
	var errs []string
	m := s.TierMultipliers
	if m.Tier0 <= 0 || m.Tier2 > 1 || m.Tier0 >= m.Tier1 || m.Tier1 >= m.Tier2 {
		errs = append(errs, "scoring.tier_multipliers must satisfy 0 < tier_0 < tier_1 < tier_2 <= 1")
	}
	b := s.Bands
	if !(b.Low > b.Medium && b.Medium > b.High && b.High > 0 && b.Low <= 100) {
		errs = append(errs, "scoring.bands must satisfy 100 >= low > medium > high > 0")
	}
	if s.WeightTolerance < 0 {
		errs = append(errs, "scoring.weight_tolerance must be >= 0")
	}
	return errs
}

func (l LegacyConfig) validate() []string {
	var errs []string
	weights := map[string]float64{
		"compliance_weight":    l.ComplianceWeight,
		"risk_weight":          l.RiskWeight,
		"maturity_weight":      l.MaturityWeight,
		"documentation_weight": l.DocumentationWeight,
	}
	for _, name := range []string{"compliance_weight", "risk_weight", "maturity_weight", "documentation_weight"} {
		if weights[name] < 0 {
			errs = append(errs, fmt.Sprintf("legacy.%s must be >= 0", name))
		}
	}
	sum := l.ComplianceWeight + l.RiskWeight + l.MaturityWeight + l.DocumentationWeight
	if math.Abs(sum-1) > 0.001 {
		errs = append(errs, fmt.Sprintf("legacy weights should sum to 1, got %.3f", sum))
	}
	for name, p := range map[string]SeverityPoints{
		"gap_deductions":           l.GapDeductions,
		"risk_deductions":          l.RiskDeductions,
		"maturity_deductions":      l.MaturityDeductions,
		"documentation_deductions": l.DocumentationDeductions,
	} {
		if !p.monotonic() {
			errs = append(errs, fmt.Sprintf("legacy.%s must satisfy critical >= high >= medium >= low >= 0", name))
		}
	}
	if l.ControlEffectivenessWeight < 0 || l.ControlEffectivenessWeight > 1 {
		errs = append(errs, "legacy.control_effectiveness_weight must be between 0 and 1")
	}
	return errs
}

func (p SeverityPoints) monotonic() bool {
	return p.Critical >= p.High && p.High >= p.Medium && p.Medium >= p.Low && p.Low >= 0
}

func (s StrategyConfig) validate() []string {
	var errs []string
	m := s.CostMidpoints
	if m.Under10K < 0 || m.From10KTo50K < m.Under10K || m.From50KTo100K < m.From10KTo50K ||
		m.From100KTo250K < m.From50KTo100K || m.Over250K < m.From100KTo250K {
		errs = append(errs, "strategy.cost_midpoints must be non-negative and ascending")
	}
	if s.UncertaintyBand < 0 || s.UncertaintyBand >= 1 {
		errs = append(errs, "strategy.uncertainty_band must be in [0, 1)")
	}
	if s.MaxVendorsPerBucket < 0 {
		errs = append(errs, "strategy.max_vendors_per_bucket must be >= 0")
	}
	return errs
}

func (m MatchingConfig) validate() []string {
	var errs []string
	if m.SizeAdjacent > m.SizeExact {
		errs = append(errs, "matching.size_adjacent must be <= matching.size_exact")
	}
	if m.PriceUnknown > m.PriceFit {
		errs = append(errs, "matching.price_unknown must be <= matching.price_fit")
	}
	for name, v := range map[string]float64{
		"risk_area_max":    m.RiskAreaMax,
		"geo_max":          m.GeoMax,
		"feature_max":      m.FeatureMax,
		"deployment_boost": m.DeploymentBoost,
		"speed_boost":      m.SpeedBoost,
	} {
		if v < 0 {
			errs = append(errs, fmt.Sprintf("matching.%s must be >= 0", name))
		}
	}
	if m.ImmediateMaxWeeks <= 0 || m.StandardMaxWeeks < m.ImmediateMaxWeeks {
		errs = append(errs, "matching weeks must satisfy 0 < immediate_max_weeks <= standard_max_weeks")
	}
	return errs
}
