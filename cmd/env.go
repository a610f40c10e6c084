package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/posture/internal/assessment"
	"github.com/sells-group/posture/internal/fixture"
	"github.com/sells-group/posture/internal/report"
	"github.com/sells-group/posture/internal/resilience"
	"github.com/sells-group/posture/internal/store"
	"github.com/sells-group/posture/internal/strategy"
)

// engineEnv holds the engine and the resources behind it.
type engineEnv struct {
	Engine  *assessment.Engine
	Store   store.Store
	closers []func() error
}

// Close releases every resource in reverse order of acquisition.
func (e *engineEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			zap.L().Warn("close resource", zap.Error(err))
		}
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "posture.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return resilience.DoVal(ctx, resilience.FromConfig(cfg.Connect), "open postgres", func(ctx context.Context) (store.Store, error) {
			st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
				MaxConns: cfg.Store.MaxConns,
				MinConns: cfg.Store.MinConns,
			})
			if err != nil {
				return nil, err
			}
			return st, nil
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initCache(ctx context.Context) (strategy.Cache, func() error, error) {
	ttl := time.Duration(cfg.Cache.TTLMinutes) * time.Minute
	switch cfg.Cache.Driver {
	case "none":
		return strategy.NopCache{}, func() error { return nil }, nil
	case "memory", "":
		return strategy.NewMemoryCache(ttl), func() error { return nil }, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		c := strategy.NewRedisCache(client, ttl, cfg.Cache.Redis.KeyPrefix)
		if err := resilience.Do(ctx, resilience.FromConfig(cfg.Connect), "ping redis", c.Ping); err != nil {
			client.Close() //nolint:errcheck
			return nil, nil, eris.Wrap(err, "connect redis cache")
		}
		return c, client.Close, nil
	default:
		return nil, nil, eris.Errorf("unsupported cache driver: %s", cfg.Cache.Driver)
	}
}

// initEngine opens the configured store and cache. With a fixture path
// the store is a throwaway in-memory SQLite database seeded from the bundle,
// the cache is private to the run, and the returned ID is the bundle's
// assessment.
func initEngine(ctx context.Context, fixturePath string) (*engineEnv, string, error) {
	mode := "store"
	if fixturePath != "" {
		mode = "offline"
	}
	if err := cfg.Validate(mode); err != nil {
		return nil, "", err
	}

	env := &engineEnv{}
	var (
		st  store.Store
		err error
	)
	if fixturePath != "" {
		st, err = store.NewSQLite(":memory:")
		if err == nil {
			err = st.Migrate(ctx)
		}
	} else {
		st, err = initStore(ctx)
	}
	if err != nil {
		return nil, "", eris.Wrap(err, "init store")
	}
	env.Store = st
	env.closers = append(env.closers, st.Close)

	var cache strategy.Cache
	if fixturePath != "" {
		// A throwaway store must never touch a shared cache.
		cache = strategy.NewMemoryCache(time.Duration(cfg.Cache.TTLMinutes) * time.Minute)
	} else {
		c, closeCache, err := initCache(ctx)
		if err != nil {
			env.Close()
			return nil, "", err
		}
		cache = c
		env.closers = append(env.closers, closeCache)
	}
	env.Engine = assessment.NewEngine(st, cache, cfg)

	if fixturePath == "" {
		return env, "", nil
	}
	b, err := fixture.Load(fixturePath)
	if err != nil {
		env.Close()
		return nil, "", err
	}
	if _, err := env.Engine.Import(ctx, b); err != nil {
		env.Close()
		return nil, "", eris.Wrap(err, "seed fixture")
	}
	return env, b.Assessment.ID, nil
}

// assessmentArg resolves the assessment ID from args or the fixture.
func assessmentArg(args []string, fixtureID string) (string, error) {
	switch {
	case len(args) == 1:
		return args[0], nil
	case fixtureID != "":
		return fixtureID, nil
	default:
		return "", eris.New("an assessment id or --fixture is required")
	}
}

type outputFlags struct {
	format  string
	output  string
	color   bool
	fixture string
}

func (o *outputFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.format, "format", "table", "output format: table, csv, json or xlsx")
	f.StringVarP(&o.output, "output", "o", "", "output file path (default: stdout)")
	f.BoolVar(&o.color, "color", true, "colorize risk labels in table output")
	f.StringVar(&o.fixture, "fixture", "", "score a YAML bundle instead of the configured store")
}

// open returns the output writer, its closer and the render settings.
func (o *outputFlags) open() (io.Writer, func() error, report.Format, report.Options, error) {
	f, err := report.ParseFormat(o.format)
	if err != nil {
		return nil, nil, "", report.Options{}, err
	}
	opts := report.Options{Color: o.color && o.output == ""}
	if o.output == "" {
		return os.Stdout, func() error { return nil }, f, opts, nil
	}
	file, err := os.Create(o.output)
	if err != nil {
		return nil, nil, "", report.Options{}, eris.Wrapf(err, "create output %s", o.output)
	}
	return file, file.Close, f, opts, nil
}
