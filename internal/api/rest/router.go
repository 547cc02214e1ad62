// Package rest provides the Gin-based world store HTTP API.
package rest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/iggydv12/voxelink/internal/api/wire"
	"github.com/iggydv12/voxelink/internal/lookup"
	"github.com/iggydv12/voxelink/internal/world"
	"github.com/iggydv12/voxelink/internal/worldstore"
)

// Server is the REST API server.
type Server struct {
	engine    *gin.Engine
	store     worldstore.BlockStore
	catalogue *lookup.Catalogue // nil accepts any well-formed identifier
	logger    *zap.Logger
}

// New creates a REST Server. When catalogue is non-nil, writes of blocks
// outside it are rejected.
func New(store worldstore.BlockStore, catalogue *lookup.Catalogue, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:    engine,
		store:     store,
		catalogue: catalogue,
		logger:    logger,
	}
	s.registerRoutes()
	return s
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler { return s.engine }

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("REST API listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	s.engine.GET("/swagger-ui/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	s.engine.GET("/blocks", s.getBlock)
	s.engine.PUT("/blocks", s.putBlocks)
	s.engine.GET("/region", s.getRegion)

	s.engine.GET("/buildarea", s.getBuildArea)
	s.engine.POST("/buildarea", s.setBuildArea)
}

// --- Block handlers ---

// @Summary Read one block
// @Tags blocks
// @Produce plain
// @Param x query int true "X"
// @Param y query int true "Y"
// @Param z query int true "Z"
// @Success 200 {string} string "block identifier"
// @Router /blocks [get]
func (s *Server) getBlock(c *gin.Context) {
	coord, err := queryCoord(c, "x", "y", "z")
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	b, err := s.store.Get(coord)
	if err != nil {
		s.logger.Error("get block failed", zap.Stringer("coord", coord), zap.Error(err))
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.String(http.StatusOK, b.String())
}

// putBlocks applies one placement per body line and answers one line per
// input: the ack sequence number, or the reason the line was rejected.
//
// @Summary Place blocks
// @Tags blocks
// @Accept plain
// @Produce plain
// @Param placements body string true "One \"x y z block\" per line"
// @Success 200 {string} string "one ack or error per line"
// @Router /blocks [put]
func (s *Server) putBlocks(c *gin.Context) {
	var (
		lines   []string
		valid   []world.Placement
		lineIdx []int
	)
	sc := bufio.NewScanner(c.Request.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		p, err := wire.ParsePlacement(line)
		switch {
		case err != nil:
			lines = append(lines, err.Error())
			continue
		case s.catalogue != nil && !s.catalogue.Known(p.Block):
			lines = append(lines, fmt.Sprintf("unknown block %s", p.Block.Name))
			continue
		}
		lineIdx = append(lineIdx, len(lines))
		lines = append(lines, "")
		valid = append(valid, p)
	}
	if err := sc.Err(); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	if len(valid) > 0 {
		acks, err := s.store.Put(valid)
		if err != nil {
			s.logger.Error("put blocks failed", zap.Int("placements", len(valid)), zap.Error(err))
			c.String(http.StatusInternalServerError, err.Error())
			return
		}
		for i, ack := range acks {
			lines[lineIdx[i]] = strconv.FormatUint(uint64(ack), 10)
		}
	}
	if rejected := len(lines) - len(valid); rejected > 0 {
		s.logger.Warn("rejected placements", zap.Int("rejected", rejected))
	}
	c.String(http.StatusOK, strings.Join(lines, "\n"))
}

// @Summary Read a palette-compressed region
// @Tags blocks
// @Produce application/cbor
// @Param x query int true "Origin X"
// @Param y query int true "Origin Y"
// @Param z query int true "Origin Z"
// @Param dx query int true "Size X"
// @Param dy query int true "Size Y"
// @Param dz query int true "Size Z"
// @Success 200 {object} world.Region
// @Failure 413 {string} string "region too large"
// @Router /region [get]
func (s *Server) getRegion(c *gin.Context) {
	origin, err := queryCoord(c, "x", "y", "z")
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	size, err := queryCoord(c, "dx", "dy", "dz")
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	if size.X < 1 || size.Y < 1 || size.Z < 1 {
		c.String(http.StatusBadRequest, "region size must be positive")
		return
	}
	box := world.NewBox(origin, origin.Add(world.C(size.X-1, size.Y-1, size.Z-1)))
	if err := wire.CheckCoord(box.Max); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	if box.Volume() > wire.MaxRegionVolume {
		c.String(http.StatusRequestEntityTooLarge, fmt.Sprintf("region volume %d exceeds %d", box.Volume(), wire.MaxRegionVolume))
		return
	}

	blocks, err := s.store.Region(box)
	if err != nil {
		s.logger.Error("region read failed", zap.Stringer("box", box), zap.Error(err))
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	data, err := cbor.Marshal(world.EncodeRegion(box, blocks))
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(http.StatusOK, wire.ContentTypeCBOR, data)
}

// --- Build area handlers ---

// @Summary Get the build area
// @Tags buildarea
// @Produce json
// @Success 200 {object} wire.BuildArea
// @Router /buildarea [get]
func (s *Server) getBuildArea(c *gin.Context) {
	box, err := s.store.BuildArea()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, wire.FromBox(box))
}

// @Summary Set the build area
// @Tags buildarea
// @Accept json
// @Produce json
// @Param area body wire.BuildArea true "Build area"
// @Success 200 {object} wire.BuildArea
// @Router /buildarea [post]
func (s *Server) setBuildArea(c *gin.Context) {
	var body wire.BuildArea
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, corner := range []world.Coord{body.Box().Min, body.Box().Max} {
		if err := wire.CheckCoord(corner); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if err := s.store.SetBuildArea(body.Box()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.logger.Info("build area changed", zap.Stringer("area", body.Box()))
	c.JSON(http.StatusOK, wire.FromBox(body.Box()))
}

func queryCoord(c *gin.Context, kx, ky, kz string) (world.Coord, error) {
	var xyz [3]int
	for i, k := range [3]string{kx, ky, kz} {
		raw, ok := c.GetQuery(k)
		if !ok {
			return world.Coord{}, errors.New("missing query parameter " + k)
		}
		v, err := wire.ParseAxis(raw)
		if err != nil {
			return world.Coord{}, fmt.Errorf("query parameter %s: %w", k, err)
		}
		xyz[i] = v
	}
	return world.C(xyz[0], xyz[1], xyz[2]), nil
}
