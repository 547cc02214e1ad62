// Package node runs the reference world server: a pebble-backed block
// store behind the REST API.
package node

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iggydv12/voxelink/internal/api/rest"
	"github.com/iggydv12/voxelink/internal/config"
	"github.com/iggydv12/voxelink/internal/lookup"
	"github.com/iggydv12/voxelink/internal/world"
	"github.com/iggydv12/voxelink/internal/worldstore"
)

// defaultArea is the build area of a fresh store with none configured.
var defaultArea = world.NewBox(world.C(0, 0, 0), world.C(255, 255, 255))

// Controller wires the world server components and runs until shutdown.
type Controller struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewController creates a Controller.
func NewController(cfg *config.Config, logger *zap.Logger) *Controller {
	return &Controller{cfg: cfg, logger: logger}
}

// Run opens the store, serves the API and blocks until SIGINT/SIGTERM or
// ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	sc := c.cfg.Server

	defaultBlock, err := world.ParseBlock(sc.DefaultBlock)
	if err != nil {
		return fmt.Errorf("default block: %w", err)
	}
	area := defaultArea
	if box := c.cfg.BuildArea.Box(); box != nil {
		area = *box
	}

	// --- 1. Palette ---
	var catalogue *lookup.Catalogue
	if sc.StrictPalette {
		if sc.PaletteFile != "" {
			catalogue, err = lookup.Load(sc.PaletteFile)
		} else {
			catalogue, err = lookup.Default()
		}
		if err != nil {
			return fmt.Errorf("palette: %w", err)
		}
		c.logger.Info("Strict palette enabled", zap.Int("blocks", len(catalogue.All())))
	}

	// --- 2. Storage ---
	store := worldstore.NewPebbleStore(sc.DBPath, defaultBlock, area, c.logger)
	if err := store.Init(); err != nil {
		return fmt.Errorf("storage init: %w", err)
	}
	defer store.Close()

	if sc.Reset {
		if err := store.Truncate(); err != nil {
			return fmt.Errorf("reset world: %w", err)
		}
		c.logger.Info("World reset", zap.String("db", sc.DBPath))
	}

	if box := c.cfg.BuildArea.Box(); box != nil {
		if err := store.SetBuildArea(*box); err != nil {
			return fmt.Errorf("build area: %w", err)
		}
	}

	// --- 3. Serve until a shutdown signal ---
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := rest.New(store, catalogue, c.logger)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx, sc.Addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		c.logger.Info("Shutdown signal received")
		return nil
	})

	c.logger.Info("World server running",
		zap.String("addr", sc.Addr),
		zap.String("db", sc.DBPath),
		zap.Stringer("defaultBlock", defaultBlock),
	)
	return g.Wait()
}
