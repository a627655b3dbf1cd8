// Command seed-db loads catalog products, customers, coupons and an admin
// API key from a JSON seed file.
package main

import (
	"context"
	"os"

	"github.com/cristalhq/aconfig"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/xenking/shopdesk/internal/domain/auth"
	"github.com/xenking/shopdesk/internal/storage/postgres"
)

type config struct {
	DatabaseURL  string `usage:"PostgreSQL connection URL (or DATABASE_URL env)" flag:"database-url"`
	SeedFile     string `default:"db/seed/seed.json" usage:"Path to the seed JSON file" flag:"seed-file"`
	APIKey       string `usage:"Admin API key to seed (SHOPDESK_SEED_API_KEY)" flag:"api-key" env:"SEED_API_KEY"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (SHOPDESK_API_KEY_PEPPER)" flag:"api-key-pepper"`
}

func loadConfig() (*config, error) {
	var cfg config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOPDESK",
		SkipFiles: true,
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	switch {
	case cfg.DatabaseURL == "":
		return nil, errors.New("database URL is required: set --database-url or DATABASE_URL")
	case cfg.APIKey == "":
		return nil, errors.New("API key is required: set --api-key or SHOPDESK_SEED_API_KEY")
	case cfg.APIKeyPepper == "":
		return nil, errors.New("API key pepper is required: set --api-key-pepper or SHOPDESK_API_KEY_PEPPER")
	}
	return &cfg, nil
}

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := run(ctx, lg, cfg); err != nil {
			return errors.Wrap(err, "seed")
		}
		lg.Info("Seed completed")
		return nil
	})
}

func run(ctx context.Context, lg *zap.Logger, cfg *config) error {
	data, err := os.ReadFile(cfg.SeedFile)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}
	seed, err := parseSeed(data)
	if err != nil {
		return errors.Wrapf(err, "parse %s", cfg.SeedFile)
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	products := postgres.NewProductRepository(pool)
	for i := range seed.Products {
		p := &seed.Products[i]
		if err := products.Upsert(ctx, p); err != nil {
			return err
		}
		lg.Info("Upserted product", zap.String("id", p.ID), zap.Stringer("promotion", p.Promotion))
	}

	customers := postgres.NewCustomerRepository(pool)
	for i := range seed.Customers {
		c := &seed.Customers[i]
		if err := customers.Upsert(ctx, c); err != nil {
			return err
		}
		lg.Info("Upserted customer", zap.String("id", c.ID), zap.Stringer("member_discount", c.MemberDiscount))
	}

	coupons := postgres.NewCouponRepository(pool)
	for i := range seed.Coupons {
		rule := &seed.Coupons[i]
		if err := coupons.Upsert(ctx, rule); err != nil {
			return err
		}
		lg.Info("Upserted coupon", zap.String("code", rule.Code), zap.Stringer("discount", rule.Discount))
	}

	key := &auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.HashKey([]byte(cfg.APIKeyPepper), cfg.APIKey),
		Name:    "Default admin key",
		Scopes:  []string{"admin"},
	}
	if err := postgres.NewAPIKeyRepository(pool).Upsert(ctx, key); err != nil {
		return err
	}
	lg.Info("Upserted API key", zap.String("id", key.ID), zap.Strings("scopes", key.Scopes))

	return nil
}
