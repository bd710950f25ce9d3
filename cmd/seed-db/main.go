// Command seed-db loads catalog and customer fixtures into PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"

	"github.com/cristalhq/aconfig"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/seed"
	"github.com/xenking/storefront/internal/storage/postgres"
)

type config struct {
	DatabaseURL string   `usage:"PostgreSQL connection URL (or DATABASE_URL env)" flag:"database-url"`
	Fixtures    []string `default:"db/seed/storefront.json" usage:"Fixture files (.json or .json.gz)" flag:"fixtures"`
	BcryptCost  int      `default:"10" usage:"bcrypt cost for seeded passwords" flag:"bcrypt-cost"`
}

func main() {
	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = zctx.Base(ctx, lg)

	if err := run(ctx, lg); err != nil {
		lg.Error("Seed failed", zap.Error(err))
		os.Exit(1)
	}
	lg.Info("Seed completed")
}

func loadConfig() (*config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}
	var cfg config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix:        "STOREFRONT_SEED",
		SkipFiles:        true,
		AllowUnknownEnvs: true,
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set --database-url or DATABASE_URL")
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return nil, errors.Errorf("bcrypt cost %d out of range [%d, %d]", cfg.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &cfg, nil
}

func run(ctx context.Context, lg *zap.Logger) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Decode all fixtures concurrently, merge in argument order.
	fixtures := make([]*seed.Fixture, len(cfg.Fixtures))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range cfg.Fixtures {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fx, err := seed.Open(path)
			if err != nil {
				return err
			}
			lg.Info("Fixture decoded", zap.String("path", path))
			fixtures[i] = fx
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "read fixtures")
	}
	all := &seed.Fixture{}
	for _, fx := range fixtures {
		all.Merge(fx)
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolConfig{MaxConns: 4})
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	stats, err := seed.NewLoader(pool, cfg.BcryptCost, runtime.GOMAXPROCS(0)).Load(ctx, all)
	if err != nil {
		return errors.Wrap(err, "load fixtures")
	}
	lg.Info("Fixtures loaded",
		zap.Int("categories", stats.Categories),
		zap.Int("products", stats.Products),
		zap.Int("variants", stats.Variants),
		zap.Int("users", stats.Users),
		zap.Int("addresses", stats.Addresses),
	)
	return nil
}
