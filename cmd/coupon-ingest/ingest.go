package main

import (
	"bufio"
	"context"
	"os"
	"strings"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/shopdesk/internal/domain/coupon"
	"github.com/xenking/shopdesk/internal/domain/pricing"
)

const (
	minCodeLen    = 4
	maxCodeLen    = 32
	progressEvery = 1_000_000
)

// couponStore is the subset of the coupon repository used for ingest.
type couponStore interface {
	EachCode(ctx context.Context, fn func(code string) error) error
	CopyInsert(ctx context.Context, rules []coupon.Rule) (int64, error)
	UpsertDiscount(ctx context.Context, rule *coupon.Rule) error
}

type options struct {
	DefaultValue  string
	Description   string
	BatchSize     int
	ExpectedCodes uint
	FalsePositive float64
}

type stats struct {
	Inserted int64
	Upserted int64
	Skipped  int64
}

// ingester routes codes by bloom filter membership: codes the filter has
// never seen cannot exist yet and are bulk-copied, the rest only get their
// discount replaced. Within a pending batch the last occurrence of a code wins.
type ingester struct {
	lg       *zap.Logger
	store    couponStore
	opts     options
	fallback pricing.Discount

	filter     *bloom.BloomFilter
	pending    []coupon.Rule
	pendingIdx map[string]int
	stats      stats
	// skipped is shared by the concurrent readers.
	skipped atomic.Int64
}

func newIngester(lg *zap.Logger, store couponStore, opts options) (*ingester, error) {
	fallback := pricing.FromLegacy(pricing.ParseAmount(opts.DefaultValue))
	if fallback.IsZero() {
		return nil, errors.Errorf("default value %q is not a discount", opts.DefaultValue)
	}
	return &ingester{
		lg:         lg,
		store:      store,
		opts:       opts,
		fallback:   fallback,
		filter:     bloom.NewWithEstimates(max(opts.ExpectedCodes, 1), opts.FalsePositive),
		pendingIdx: make(map[string]int, opts.BatchSize),
	}, nil
}

// loadExisting adds every stored code to the filter.
func (in *ingester) loadExisting(ctx context.Context) error {
	var n int
	err := in.store.EachCode(ctx, func(code string) error {
		in.filter.AddString(strings.ToUpper(code))
		n++
		return nil
	})
	if err != nil {
		return err
	}
	in.lg.Info("Loaded existing codes", zap.Int("count", n))
	return nil
}

// ingest streams files concurrently into a single classifier.
func (in *ingester) ingest(ctx context.Context, files []string) (stats, error) {
	rules := make(chan coupon.Rule, in.opts.BatchSize)

	g, gctx := errgroup.WithContext(ctx)
	readers, rctx := errgroup.WithContext(gctx)
	for _, path := range files {
		readers.Go(func() error {
			return in.readFile(rctx, path, rules)
		})
	}
	g.Go(func() error {
		defer close(rules)
		return readers.Wait()
	})
	g.Go(func() error {
		for rule := range rules {
			if err := in.add(gctx, rule); err != nil {
				return err
			}
		}
		return in.flush(gctx)
	})

	err := g.Wait()
	in.stats.Skipped = in.skipped.Load()
	return in.stats, err
}

func (in *ingester) readFile(ctx context.Context, path string, out chan<- coupon.Rule) error {
	var lines, skipped int64
	err := streamGzFile(ctx, path, func(line string) error {
		lines++
		if lines%progressEvery == 0 {
			in.lg.Info("Ingest progress", zap.String("file", path), zap.Int64("lines", lines))
		}
		rule, ok := in.parseLine(line)
		if !ok {
			skipped++
			return nil
		}
		select {
		case out <- rule:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	in.skipped.Add(skipped)
	in.lg.Info("File read", zap.String("file", path), zap.Int64("lines", lines), zap.Int64("skipped", skipped))
	return nil
}

// parseLine reads "CODE" or "CODE,value". Blank lines, comments and codes
// outside [A-Z0-9] of allowed length are rejected.
func (in *ingester) parseLine(line string) (coupon.Rule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return coupon.Rule{}, false
	}
	code, value, hasValue := strings.Cut(line, ",")
	code = strings.ToUpper(strings.TrimSpace(code))
	if !validCode(code) {
		return coupon.Rule{}, false
	}

	discount := in.fallback
	if hasValue {
		discount = pricing.FromLegacy(pricing.ParseAmount(value))
		if discount.IsZero() {
			return coupon.Rule{}, false
		}
	}
	return coupon.Rule{
		Code:        code,
		Discount:    discount,
		Description: in.opts.Description,
		Active:      true,
	}, true
}

func validCode(code string) bool {
	if len(code) < minCodeLen || len(code) > maxCodeLen {
		return false
	}
	for i := range len(code) {
		c := code[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// add is called from a single goroutine.
func (in *ingester) add(ctx context.Context, rule coupon.Rule) error {
	if i, ok := in.pendingIdx[rule.Code]; ok {
		in.pending[i] = rule
		return nil
	}
	if in.filter.TestString(rule.Code) {
		if err := in.store.UpsertDiscount(ctx, &rule); err != nil {
			return errors.Wrapf(err, "upsert %s", rule.Code)
		}
		in.stats.Upserted++
		return nil
	}

	in.filter.AddString(rule.Code)
	in.pendingIdx[rule.Code] = len(in.pending)
	in.pending = append(in.pending, rule)
	if len(in.pending) >= in.opts.BatchSize {
		return in.flush(ctx)
	}
	return nil
}

func (in *ingester) flush(ctx context.Context) error {
	if len(in.pending) == 0 {
		return nil
	}
	n, err := in.store.CopyInsert(ctx, in.pending)
	if err != nil {
		return errors.Wrapf(err, "copy %d coupons", len(in.pending))
	}
	in.stats.Inserted += n
	in.pending = in.pending[:0]
	clear(in.pendingIdx)
	return nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(scanner.Text()); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
