package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iggydv12/voxelink/internal/api/clients"
	"github.com/iggydv12/voxelink/internal/api/wire"
	"github.com/iggydv12/voxelink/internal/config"
	"github.com/iggydv12/voxelink/internal/lookup"
	"github.com/iggydv12/voxelink/internal/node"
	"github.com/iggydv12/voxelink/internal/selftest"
	"github.com/iggydv12/voxelink/internal/storage"
	"github.com/iggydv12/voxelink/internal/world"
)

var (
	cfgFile string
	debug   bool
	reset   bool
	caching bool
	buffer  bool
	size    int
	seed    int64
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "voxelink",
		Short:        "Voxelink: cached, buffered block access to a remote voxel world",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to config file (default: configs/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Development logging")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference world server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().BoolVar(&reset, "reset", false, "Clear every stored block before serving")

	selftestCmd := &cobra.Command{
		Use:   "selftest",
		Short: "Run the palette and cache tests against a world server",
		Args:  cobra.NoArgs,
		RunE:  runSelfTest,
	}
	selftestCmd.Flags().IntVar(&size, "size", 0, "Test bed edge length (default from config)")
	selftestCmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (default from config, 0 = time based)")

	getCmd := &cobra.Command{
		Use:   "get X Y Z",
		Short: "Read one block",
		Args:  cobra.ExactArgs(3),
		RunE:  runGet,
	}

	setCmd := &cobra.Command{
		Use:   "set X Y Z BLOCK",
		Short: "Write one block",
		Args:  cobra.ExactArgs(4),
		RunE:  runSet,
	}

	fillCmd := &cobra.Command{
		Use:   "fill X1 Y1 Z1 X2 Y2 Z2 BLOCK",
		Short: "Fill a box with one block",
		Args:  cobra.ExactArgs(7),
		RunE:  runFill,
	}

	for _, cmd := range []*cobra.Command{getCmd, setCmd, fillCmd} {
		cmd.Flags().BoolVar(&caching, "caching", false, "Enable the client cache (overrides config)")
		cmd.Flags().BoolVar(&buffer, "buffering", false, "Enable write buffering (overrides config)")
	}

	rootCmd.AddCommand(serveCmd, selftestCmd, getCmd, setCmd, fillCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the config and builds the logger every command shares.
func setup() (*config.Config, *zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("logger init: %w", err)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("config load: %w", err)
	}
	return cfg, logger, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cmd.Flags().Changed("reset") {
		cfg.Server.Reset = reset
	}
	logger.Info("Starting world server")
	return node.NewController(cfg, logger).Run(cmd.Context())
}

func runSelfTest(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	if err := client.WaitReady(ctx, 5); err != nil {
		return fmt.Errorf("world server %s: %w", client.Target(), err)
	}

	catalogue, err := loadCatalogue(cfg)
	if err != nil {
		return err
	}

	tc := selftest.Config{Size: cfg.SelfTest.Size, Seed: cfg.SelfTest.Seed, BuildArea: cfg.BuildArea.Box()}
	if cmd.Flags().Changed("size") {
		tc.Size = size
	}
	if cmd.Flags().Changed("seed") {
		tc.Seed = seed
	}

	rep, err := selftest.NewRunner(client, catalogue, tc, logger).Run(ctx)
	if err != nil {
		return err
	}
	if !rep.Passed() {
		for _, f := range rep.Failures {
			fmt.Fprintf(cmd.ErrOrStderr(), "FAIL %s: %v\n", f.Test, f.Err)
		}
		return fmt.Errorf("%d/%d tests failed", len(rep.Failures), rep.Tests)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d tests passed\n", rep.Tests)
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	c, err := parseCoord(args[0:3])
	if err != nil {
		return err
	}
	return withInterface(cmd, func(ctx context.Context, si *storage.Interface) error {
		b, err := si.GetBlock(ctx, c)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), b)
		return nil
	})
}

func runSet(cmd *cobra.Command, args []string) error {
	c, err := parseCoord(args[0:3])
	if err != nil {
		return err
	}
	b, err := world.ParseBlock(args[3])
	if err != nil {
		return err
	}
	return withInterface(cmd, func(ctx context.Context, si *storage.Interface) error {
		_, err := si.SetBlock(ctx, c, b)
		return err
	})
}

func runFill(cmd *cobra.Command, args []string) error {
	from, err := parseCoord(args[0:3])
	if err != nil {
		return err
	}
	to, err := parseCoord(args[3:6])
	if err != nil {
		return err
	}
	b, err := world.ParseBlock(args[6])
	if err != nil {
		return err
	}
	return withInterface(cmd, func(ctx context.Context, si *storage.Interface) error {
		_, err := si.Fill(ctx, from, to, b)
		return err
	})
}

// withInterface runs fn against an access layer connected to the configured
// server and flushes pending writes afterwards.
func withInterface(cmd *cobra.Command, fn func(context.Context, *storage.Interface) error) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	sc := cfg.Storage()
	if cmd.Flags().Changed("caching") {
		sc.Caching = caching
	}
	if cmd.Flags().Changed("buffering") {
		sc.Buffering = buffer
	}

	ctx := cmd.Context()
	si := storage.New(client, sc, logger)
	return errors.Join(fn(ctx, si), si.Close(ctx))
}

func newClient(cfg *config.Config, logger *zap.Logger) (*clients.WorldClient, error) {
	client, err := clients.NewWorldClient(cfg.Client.ServerURL, cfg.Client.Timeout, logger)
	if err != nil {
		return nil, err
	}
	client.SetMaxRegionVolume(cfg.Client.MaxRegionVolume)
	return client, nil
}

func loadCatalogue(cfg *config.Config) (*lookup.Catalogue, error) {
	if cfg.Server.PaletteFile != "" {
		return lookup.Load(cfg.Server.PaletteFile)
	}
	return lookup.Default()
}

func parseCoord(args []string) (world.Coord, error) {
	var v [3]int
	for i, a := range args {
		n, err := wire.ParseAxis(a)
		if err != nil {
			return world.Coord{}, err
		}
		v[i] = n
	}
	return world.C(v[0], v[1], v[2]), nil
}
