package coupon

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// fileLoader implements Loader for reading gzipped coupon files.
type fileLoader struct {
	logger zerolog.Logger
}

// NewFileLoader creates a new file-based coupon loader.
func NewFileLoader(logger zerolog.Logger) Loader {
	return &fileLoader{
		logger: logger.With().Str("component", "coupon-loader").Logger(),
	}
}

// Load reads a gzipped coupon file.
// The file is expected to contain one JSON coupon definition per line.
func (l *fileLoader) Load(ctx context.Context, filePath string) ([]Coupon, error) {
	l.logger.Info().Str("file", filePath).Msg("loading coupon file")

	file, err := os.Open(filePath)
	if err != nil {
		l.logger.Error().Err(err).Str("file", filePath).Msg("failed to open coupon file")
		return nil, fmt.Errorf("failed to open coupon file %s: %w", filePath, err)
	}
	defer file.Close()

	coupons, err := decodeCoupons(ctx, file)
	if err != nil {
		l.logger.Error().Err(err).Str("file", filePath).Msg("error reading coupon file")
		return nil, fmt.Errorf("error reading coupon file %s: %w", filePath, err)
	}

	l.logger.Info().
		Str("file", filePath).
		Int("coupons_loaded", len(coupons)).
		Msg("coupon file loaded successfully")

	return coupons, nil
}

// decodeCoupons reads gzipped JSON lines. Blank lines are skipped.
func decodeCoupons(ctx context.Context, r io.Reader) ([]Coupon, error) {
	gzipReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	scanner := bufio.NewScanner(gzipReader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var coupons []Coupon
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%10_000 == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var c Coupon
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := c.Check(); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		coupons = append(coupons, c)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return coupons, nil
}

// Seed loads every path concurrently and stores the coupons in store. It
// fails on the first unreadable file or rejected coupon.
func Seed(ctx context.Context, store Store, loader Loader, paths []string, logger zerolog.Logger) (int, error) {
	logger = logger.With().Str("component", "coupon-seed").Logger()

	type loadResult struct {
		index   int
		coupons []Coupon
		err     error
	}

	resultChan := make(chan loadResult, len(paths))
	var wg sync.WaitGroup

	for i, path := range paths {
		wg.Add(1)
		go func(index int, path string) {
			defer wg.Done()
			coupons, err := loader.Load(ctx, path)
			resultChan <- loadResult{index: index, coupons: coupons, err: err}
		}(i, path)
	}

	wg.Wait()
	close(resultChan)

	// Collect results in order so duplicates are reported deterministically
	results := make([]loadResult, len(paths))
	for result := range resultChan {
		results[result.index] = result
	}

	total := 0
	for i, result := range results {
		if result.err != nil {
			logger.Error().Err(result.err).Str("file", paths[i]).Msg("failed to load coupon file")
			return total, fmt.Errorf("failed to load coupon file %s: %w", paths[i], result.err)
		}
		for j := range result.coupons {
			if err := store.Put(ctx, &result.coupons[j]); err != nil {
				return total, fmt.Errorf("failed to store coupon %s from %s: %w", result.coupons[j].Code, paths[i], err)
			}
			total++
		}
	}

	logger.Info().Int("file_count", len(paths)).Int("total_coupons", total).Msg("coupon catalog seeded")
	return total, nil
}
