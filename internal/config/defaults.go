package config

// Risk band cut points on the 0-100 overall score.
const (
	DefaultLowBandMin    = 80.0
	DefaultMediumBandMin = 60.0
	DefaultHighBandMin   = 40.0
)

// Evidence tier multipliers.
const (
	DefaultTier0Multiplier = 0.6
	DefaultTier1Multiplier = 0.8
	DefaultTier2Multiplier = 1.0
)

// DefaultScoring returns the weighted scorer policy.
func DefaultScoring() ScoringConfig {
	return ScoringConfig{
		TierMultipliers: TierMultipliers{
			Tier0: DefaultTier0Multiplier,
			Tier1: DefaultTier1Multiplier,
			Tier2: DefaultTier2Multiplier,
		},
		Bands: BandThresholds{
			Low:    DefaultLowBandMin,
			Medium: DefaultMediumBandMin,
			High:   DefaultHighBandMin,
		},
		WeightTolerance: 0.001,
	}
}

// DefaultLegacy returns the gap/risk component scorer policy. Blend weights
// sum to 1.
func DefaultLegacy() LegacyConfig {
	return LegacyConfig{
		ComplianceWeight:    0.30,
		RiskWeight:          0.40,
		MaturityWeight:      0.20,
		DocumentationWeight: 0.10,

		GapDeductions:           SeverityPoints{Critical: 15, High: 10, Medium: 5, Low: 2},
		RiskDeductions:          SeverityPoints{Critical: 20, High: 12, Medium: 6, Low: 2},
		MaturityDeductions:      SeverityPoints{Critical: 10, High: 6, Medium: 3, Low: 1},
		DocumentationDeductions: SeverityPoints{Critical: 25, High: 15, Medium: 10, Low: 5},

		ControlEffectivenessWeight: 0.4,
		DocumentationCategories:    []string{"documentation", "policy", "policies", "records"},
	}
}

// DefaultStrategy returns the strategy matrix policy.
func DefaultStrategy() StrategyConfig {
	return StrategyConfig{
		CostMidpoints: CostMidpoints{
			Under10K:       5_000,
			From10KTo50K:   30_000,
			From50KTo100K:  75_000,
			From100KTo250K: 175_000,
			Over250K:       375_000,
		},
		UncertaintyBand:     0.30,
		CurrencySymbol:      "€",
		MaxVendorsPerBucket: 5,
	}
}

// DefaultMatching returns the vendor match policy. Base components sum to 100.
func DefaultMatching() MatchingConfig {
	return MatchingConfig{
		RiskAreaMax:  40,
		SizeExact:    20,
		SizeAdjacent: 15,
		GeoMax:       20,
		PriceFit:     20,
		PriceUnknown: 10,

		PriorityBoosts:  PriorityBoosts{First: 20, Second: 15, Third: 10},
		FeatureMax:      10,
		DeploymentBoost: 5,
		SpeedBoost:      5,

		ImmediateMaxWeeks: 4,
		StandardMaxWeeks:  12,

		Insights: InsightThresholds{
			TotalScorePct:  10,
			CoveragePoints: 5,
			PricePoints:    10,
			BoostPoints:    5,
		},
	}
}

// Default returns a fully populated Config without reading files or the
// environment.
func Default() *Config {
	return &Config{
		Store:    StoreConfig{Driver: "sqlite", DatabaseURL: "posture.db", MaxConns: 10, MinConns: 2},
		Cache:    CacheConfig{Driver: "memory", TTLMinutes: 60, Redis: RedisConfig{Addr: "localhost:6379", KeyPrefix: "posture:matrix:"}},
		Connect:  ConnectConfig{MaxAttempts: 5, InitialBackoffMs: 500, MaxBackoffMs: 10000, Multiplier: 2},
		Scoring:  DefaultScoring(),
		Legacy:   DefaultLegacy(),
		Strategy: DefaultStrategy(),
		Matching: DefaultMatching(),
		Batch:    BatchConfig{MaxConcurrentAssessments: 4},
		Server:   ServerConfig{Port: 8080, RateLimit: 20, RateBurst: 40, AllowedOrigins: []string{"*"}},
		Log:      LogConfig{Level: "info", Format: "json"},
	}
}
