// Command coupon-ingest bulk-loads coupon codes from gzip files of
// "CODE,value" lines. The value follows the single-number convention: up to
// 1 is a fraction, larger values are amounts.
package main

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/cristalhq/aconfig"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/xenking/shopdesk/internal/storage/postgres"
)

type config struct {
	DatabaseURL   string   `usage:"PostgreSQL connection URL (or DATABASE_URL env)" flag:"database-url"`
	Files         []string `usage:"Gzip files to ingest; overrides --glob" flag:"files"`
	Glob          string   `default:"data/*.gz" usage:"Glob of gzip files to ingest" flag:"glob"`
	DefaultValue  string   `default:"0.1" usage:"Discount for lines without a value" flag:"default-value"`
	Description   string   `default:"Imported promo code" usage:"Description stored on imported coupons" flag:"description"`
	BatchSize     int      `default:"10000" usage:"Rows per COPY batch" flag:"batch-size"`
	ExpectedCodes uint     `default:"1000000" usage:"Expected number of stored plus imported codes, sizes the bloom filter" flag:"expected-codes"`
	FalsePositive float64  `default:"0.001" usage:"Bloom filter false positive rate" flag:"false-positive"`
}

func loadConfig() (*config, error) {
	var cfg config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOPDESK_INGEST",
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
	case cfg.BatchSize <= 0:
		return nil, errors.Errorf("invalid batch size %d", cfg.BatchSize)
	case cfg.FalsePositive <= 0 || cfg.FalsePositive >= 1:
		return nil, errors.Errorf("invalid false positive rate %g", cfg.FalsePositive)
	}
	return &cfg, nil
}

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return run(ctx, lg, cfg)
	})
}

func run(ctx context.Context, lg *zap.Logger, cfg *config) error {
	files := cfg.Files
	if len(files) == 0 {
		matches, err := filepath.Glob(cfg.Glob)
		if err != nil {
			return errors.Wrapf(err, "glob %q", cfg.Glob)
		}
		sort.Strings(matches)
		files = matches
	}
	if len(files) == 0 {
		return errors.Errorf("no input files match %q", cfg.Glob)
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	in, err := newIngester(lg, postgres.NewCouponRepository(pool), options{
		DefaultValue:  cfg.DefaultValue,
		Description:   cfg.Description,
		BatchSize:     cfg.BatchSize,
		ExpectedCodes: cfg.ExpectedCodes,
		FalsePositive: cfg.FalsePositive,
	})
	if err != nil {
		return err
	}
	if err := in.loadExisting(ctx); err != nil {
		return errors.Wrap(err, "load existing codes")
	}

	stats, err := in.ingest(ctx, files)
	if err != nil {
		return errors.Wrap(err, "ingest")
	}
	lg.Info("Coupon ingest completed",
		zap.Int("files", len(files)),
		zap.Int64("inserted", stats.Inserted),
		zap.Int64("upserted", stats.Upserted),
		zap.Int64("skipped", stats.Skipped),
	)
	return nil
}
