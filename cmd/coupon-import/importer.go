package main

import (
	"bufio"
	"context"
	"math/bits"
	"os"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
	"github.com/xenking/coupon-engine/internal/wire"
)

const (
	bloomFPR    = 0.001
	maxLineSize = 1 << 20
	// maxFiles bounds the per-code file bitmask.
	maxFiles = bits.UintSize
)

// Stats summarizes an import run.
type Stats struct {
	Records   int64
	Added     int64
	Invalid   int64
	CrossFile int64
	Existing  int64
}

// Importer loads coupons from gzip-compressed JSON-lines files into a
// catalog. When a code appears in several files, the first file listed
// wins and later copies are skipped without touching the catalog.
type Importer struct {
	catalog coupon.Catalog
	lg      *zap.Logger
	// Expected coupons per file, used to size the bloom filters.
	Capacity uint
}

// NewImporter returns an Importer writing to catalog.
func NewImporter(catalog coupon.Catalog, lg *zap.Logger) *Importer {
	return &Importer{catalog: catalog, lg: lg, Capacity: 1_000_000}
}

// Run imports files in three passes:
//  1. build a bloom filter of codes per file, concurrently;
//  2. for codes that some other file's filter may contain, record which
//     files really contain them, giving an exact duplicate set;
//  3. add every valid coupon owned by its file, concurrently per file.
func (im *Importer) Run(ctx context.Context, files []string) (Stats, error) {
	if len(files) > maxFiles {
		return Stats{}, errors.Errorf("too many files: %d, at most %d", len(files), maxFiles)
	}

	filters, err := im.buildFilters(ctx, files)
	if err != nil {
		return Stats{}, errors.Wrap(err, "build bloom filters")
	}

	owners, err := im.findOwners(ctx, files, filters)
	if err != nil {
		return Stats{}, errors.Wrap(err, "find duplicate codes")
	}
	im.lg.Info("Duplicate scan complete", zap.Int("shared_codes", len(owners)))

	return im.load(ctx, files, owners)
}

func (im *Importer) buildFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(im.Capacity, bloomFPR)
			var n int
			err := streamCoupons(ctx, path, func(_ int, c coupon.Coupon, err error) error {
				if err == nil {
					filter.AddString(c.Code)
					n++
				}
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "scan %s", path)
			}
			im.lg.Info("Bloom filter built", zap.String("file", path), zap.Int("codes", n))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// findOwners returns, for every code present in two or more files, the
// index of the first file containing it.
func (im *Importer) findOwners(ctx context.Context, files []string, filters []*bloom.BloomFilter) (map[string]int, error) {
	masks := make([]map[string]uint, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			found := make(map[string]uint)
			bit := uint(1) << uint(i)
			err := streamCoupons(ctx, path, func(_ int, c coupon.Coupon, err error) error {
				if err != nil {
					return nil
				}
				for j, f := range filters {
					if j != i && f.TestString(c.Code) {
						found[c.Code] |= bit
						break
					}
				}
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "scan %s", path)
			}
			masks[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, m := range masks {
		for code, bit := range m {
			merged[code] |= bit
		}
	}

	owners := make(map[string]int)
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			owners[code] = bits.TrailingZeros(mask)
		}
	}
	return owners, nil
}

func (im *Importer) load(ctx context.Context, files []string, owners map[string]int) (Stats, error) {
	var records, added, invalid, crossFile, existing atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			return streamCoupons(ctx, path, func(line int, c coupon.Coupon, err error) error {
				records.Add(1)
				if err == nil {
					err = c.Validate()
				}
				if err != nil {
					invalid.Add(1)
					im.lg.Warn("Skipping invalid coupon",
						zap.String("file", path),
						zap.Int("line", line),
						zap.Error(err),
					)
					return nil
				}
				if owner, shared := owners[c.Code]; shared && owner != i {
					crossFile.Add(1)
					return nil
				}

				if err := im.catalog.Add(ctx, c); err != nil {
					if errors.Is(err, coupon.ErrDuplicateCode) {
						existing.Add(1)
						return nil
					}
					return errors.Wrapf(err, "%s:%d: add %q", path, line, c.Code)
				}
				added.Add(1)
				return nil
			})
		})
	}
	err := g.Wait()

	return Stats{
		Records:   records.Load(),
		Added:     added.Load(),
		Invalid:   invalid.Load(),
		CrossFile: crossFile.Load(),
		Existing:  existing.Load(),
	}, err
}

// streamCoupons decodes one coupon per non-empty line of a gzip file. Decode
// errors are handed to fn; an error returned by fn stops the scan.
func streamCoupons(ctx context.Context, path string, fn func(line int, c coupon.Coupon, err error) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrap(err, "create gzip reader")
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		c, err := wire.DecodeCoupon(jx.DecodeBytes(raw))
		if err := fn(line, c, err); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "scan")
	}
	return nil
}
