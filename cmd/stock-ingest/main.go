// Command stock-ingest applies supplier replenishment feeds to variant stock.
// Feeds are gzip-compressed CSV files with one shipment per line:
//
//	shipment_id,variant_id,quantity
//
// Suppliers resend feeds on retry, so the same shipment can appear in more
// than one file. Shipment ids are deduplicated with a bloom filter before the
// quantities are summed per variant and applied as stock increments.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/nveliz/tienda-backend/internal/domain/catalog"
	"github.com/nveliz/tienda-backend/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.0001
	progressEvery = 1_000_000
)

func main() {
	var (
		feedDir     string
		databaseURL string
	)

	flag.StringVar(&feedDir, "feed-dir", "feeds", "directory containing *.csv.gz stock feeds")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, feedDir, databaseURL); err != nil {
		slog.Error("stock ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("stock ingest completed successfully")
}

func run(ctx context.Context, feedDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(feedDir, "*.csv.gz"))
	if err != nil {
		return errors.Wrap(err, "list feed files")
	}
	if len(files) == 0 {
		slog.Info("no feed files found", slog.String("dir", feedDir))
		return nil
	}

	slog.Info("reading feeds", slog.Int("files", len(files)))

	increments, err := collectIncrements(ctx, files)
	if err != nil {
		return errors.Wrap(err, "collect increments")
	}

	slog.Info("shipments aggregated", slog.Int("variants", len(increments)))

	if len(increments) == 0 {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	return applyIncrements(ctx, postgres.NewStore(pool).Inventory(), increments)
}

// collectIncrements streams all feed files concurrently and returns the total
// quantity to add per variant, with duplicate shipments dropped.
func collectIncrements(ctx context.Context, files []string) (map[uuid.UUID]int, error) {
	var (
		mu         sync.Mutex
		seen       = bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		increments = make(map[uuid.UUID]int)
		duplicates uint64
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, path := range files {
		g.Go(func() error {
			var count uint64

			err := streamGzFile(ctx, path, func(line string) error {
				shipmentID, variantID, qty, err := parseShipment(line)
				if err != nil {
					slog.Warn("skipping malformed line",
						slog.String("file", filepath.Base(path)),
						slog.String("error", err.Error()),
					)
					return nil
				}

				mu.Lock()
				if seen.TestAndAddString(shipmentID) {
					duplicates++
				} else {
					increments[variantID] += qty
				}
				mu.Unlock()

				count++
				if count%progressEvery == 0 {
					slog.Info("feed progress",
						slog.String("file", filepath.Base(path)),
						slog.Uint64("lines", count),
					)
				}
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "stream %s", path)
			}

			slog.Info("feed complete",
				slog.String("file", filepath.Base(path)),
				slog.Uint64("lines", count),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.Info("dedup complete", slog.Uint64("duplicates_dropped", duplicates))
	return increments, nil
}

// parseShipment parses one "shipment_id,variant_id,quantity" line.
func parseShipment(line string) (shipmentID string, variantID uuid.UUID, qty int, err error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != 3 {
		return "", uuid.Nil, 0, errors.Errorf("expected 3 fields, got %d", len(parts))
	}

	shipmentID = strings.TrimSpace(parts[0])
	if shipmentID == "" {
		return "", uuid.Nil, 0, errors.New("empty shipment id")
	}

	variantID, err = uuid.Parse(strings.TrimSpace(parts[1]))
	if err != nil {
		return "", uuid.Nil, 0, errors.Wrap(err, "parse variant id")
	}

	qty, err = strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return "", uuid.Nil, 0, errors.Wrap(err, "parse quantity")
	}
	if qty <= 0 {
		return "", uuid.Nil, 0, errors.Errorf("non-positive quantity %d", qty)
	}

	return shipmentID, variantID, qty, nil
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

	return errors.Wrapf(scanner.Err(), "scan %s", path)
}

// applyIncrements adds the aggregated quantities to variant stock. Unknown
// variants are logged and skipped so one stale feed line does not block the
// rest of the ingest.
func applyIncrements(ctx context.Context, inv catalog.Inventory, increments map[uuid.UUID]int) error {
	slog.Info("applying stock increments", slog.Int("variants", len(increments)))

	applied := 0
	for variantID, qty := range increments {
		if err := inv.AdjustStock(ctx, variantID, qty); err != nil {
			if errors.Is(err, catalog.ErrVariantNotFound) {
				slog.Warn("unknown variant in feed", slog.String("variant_id", variantID.String()))
				continue
			}
			return errors.Wrapf(err, "adjust stock for %s", variantID)
		}

		applied++
		if applied%100 == 0 || applied == len(increments) {
			slog.Info("apply progress", slog.Int("applied", applied), slog.Int("total", len(increments)))
		}
	}

	return nil
}
