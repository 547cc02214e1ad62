// Package selftest exercises a live world store through the access layer:
// palette verification and the cache round-trip test.
package selftest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/iggydv12/voxelink/internal/lookup"
	"github.com/iggydv12/voxelink/internal/storage"
	"github.com/iggydv12/voxelink/internal/transport"
	"github.com/iggydv12/voxelink/internal/world"
)

// ConsistencyError reports a block that differs from what the test expected.
type ConsistencyError struct {
	Coord  world.Coord
	Want   world.Block
	Got    world.Block
	Reason string
}

func (e *ConsistencyError) Error() string {
	if e.Want.IsZero() {
		return fmt.Sprintf("%s at %s (got %s)", e.Reason, e.Coord, e.Got)
	}
	return fmt.Sprintf("%s at %s: want %s, got %s", e.Reason, e.Coord, e.Want, e.Got)
}

// Config tunes a Runner.
type Config struct {
	// Size is the edge length of the square test bed.
	Size int
	// Seed drives the random pattern; zero picks a time-based seed.
	Seed int64
	// BuildArea, when set, is pushed to the server before the suite runs.
	BuildArea *world.Box
}

// Failure is one failed test of a suite run.
type Failure struct {
	Test string
	Err  error
}

// Report summarises a suite run.
type Report struct {
	Tests    int
	Failures []Failure
}

// Passed reports whether every test succeeded.
func (r Report) Passed() bool { return len(r.Failures) == 0 }

// Runner runs the self-test suite against one transport.
type Runner struct {
	transport transport.Transport
	catalogue *lookup.Catalogue
	cfg       Config
	rng       *rand.Rand
	logger    *zap.Logger
}

// NewRunner creates a Runner.
func NewRunner(t transport.Transport, catalogue *lookup.Catalogue, cfg Config, logger *zap.Logger) *Runner {
	if cfg.Size <= 0 {
		cfg.Size = 16
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return &Runner{
		transport: t,
		catalogue: catalogue,
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		logger:    logger,
	}
}

// Run executes every test and collects failures. Only errors from setting
// up the suite are returned directly.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	if r.cfg.BuildArea != nil {
		if err := r.transport.SetBuildArea(ctx, *r.cfg.BuildArea); err != nil {
			return Report{}, fmt.Errorf("set build area: %w", err)
		}
	}

	tests := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"verifyPalette", r.VerifyPalette},
		{"cache", r.CacheTest},
	}
	r.logger.Info("Beginning test suite", zap.Int("tests", len(tests)), zap.Int64("seed", r.cfg.Seed))

	var rep Report
	for _, tt := range tests {
		rep.Tests++
		if err := tt.fn(ctx); err != nil {
			r.logger.Error("test failed", zap.String("test", tt.name), zap.Error(err))
			rep.Failures = append(rep.Failures, Failure{Test: tt.name, Err: err})
			continue
		}
		r.logger.Info("test passed", zap.String("test", tt.name))
	}
	r.logger.Info("Test suite completed", zap.Int("failed", len(rep.Failures)))
	return rep, nil
}

// VerifyPalette places every catalogue block at the origin of the build
// area and fails if any is duplicated or refused.
func (r *Runner) VerifyPalette(ctx context.Context) error {
	tester := storage.New(r.transport, storage.Config{}, r.logger)
	area, err := tester.RequestBuildArea(ctx)
	if err != nil {
		return err
	}
	spot := area.Min

	var (
		checked, bad int
		seen         = make(map[string]bool)
	)
	for _, name := range r.catalogue.All() {
		checked++
		block, err := world.ParseBlock(name)
		if err != nil {
			bad++
			r.logger.Warn("cannot parse palette block", zap.String("block", name), zap.Error(err))
			continue
		}
		if seen[block.String()] {
			bad++
			r.logger.Warn("palette block duplicated", zap.Stringer("block", block))
			continue
		}
		seen[block.String()] = true
		if _, err := tester.SetBlock(ctx, spot, block); err != nil {
			if errors.Is(err, storage.ErrOutOfBounds) {
				return err
			}
			bad++
			r.logger.Warn("cannot verify block", zap.Stringer("block", block), zap.Error(err))
		}
	}
	if _, err := tester.SetBlock(ctx, spot, world.Air); err != nil {
		return fmt.Errorf("reset spot: %w", err)
	}
	if bad > 0 {
		return fmt.Errorf("%d/%d blocks duplicate or could not be verified; check the server runs version %s",
			bad, checked, r.catalogue.Version)
	}
	r.logger.Info("all palette blocks verified", zap.Int("blocks", checked))
	return nil
}
