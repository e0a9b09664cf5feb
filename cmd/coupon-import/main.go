// Command coupon-import bulk-loads coupons from gzip-compressed JSON-lines
// files into PostgreSQL.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/coupon-engine/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		databaseURL string
		capacity    uint
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory with *.jsonl.gz files, used when no files are given")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&capacity, "capacity", 1_000_000, "expected coupons per file, sizes the bloom filters")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set -database-url or DATABASE_URL")
	}

	files := flag.Args()
	if len(files) == 0 {
		files, err = filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
		if err != nil {
			lg.Fatal("Glob data dir", zap.Error(err))
		}
		sort.Strings(files)
	}
	if len(files) == 0 {
		lg.Fatal("No input files", zap.String("data_dir", dataDir))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, files, capacity); err != nil {
		lg.Fatal("Import failed", zap.Error(err))
	}
}

func run(ctx context.Context, lg *zap.Logger, databaseURL string, files []string, capacity uint) error {
	start := time.Now()

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	im := NewImporter(postgres.NewStore(pool), lg)
	im.Capacity = capacity

	stats, err := im.Run(ctx, files)
	lg.Info("Import finished",
		zap.Int("files", len(files)),
		zap.Int64("records", stats.Records),
		zap.Int64("added", stats.Added),
		zap.Int64("invalid", stats.Invalid),
		zap.Int64("cross_file_duplicates", stats.CrossFile),
		zap.Int64("already_present", stats.Existing),
		zap.Duration("elapsed", time.Since(start)),
	)
	return err
}
