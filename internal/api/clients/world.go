// Package clients provides the HTTP client for the world store REST API.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/fxamacker/cbor/v2"
	"go.uber.org/zap"

	"github.com/iggydv12/voxelink/internal/api/wire"
	"github.com/iggydv12/voxelink/internal/transport"
	"github.com/iggydv12/voxelink/internal/world"
)

// WorldClient implements transport.Transport over the world store REST API.
type WorldClient struct {
	base      *url.URL
	http      *http.Client
	maxRegion int
	logger    *zap.Logger
}

var _ transport.Transport = (*WorldClient)(nil)

// NewWorldClient returns a client for the server at baseURL. Every round
// trip fails once timeout elapses.
func NewWorldClient(baseURL string, timeout time.Duration, logger *zap.Logger) (*WorldClient, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("server url %q: scheme and host required", baseURL)
	}
	return &WorldClient{
		base:      u,
		http:      &http.Client{Timeout: timeout},
		maxRegion: wire.MaxRegionVolume,
		logger:    logger,
	}, nil
}

// SetMaxRegionVolume caps the blocks asked for in one region request.
// Values outside 1..wire.MaxRegionVolume fall back to the server limit.
func (c *WorldClient) SetMaxRegionVolume(n int) {
	if n < 1 || n > wire.MaxRegionVolume {
		n = wire.MaxRegionVolume
	}
	c.maxRegion = n
}

// Target returns the server base URL.
func (c *WorldClient) Target() string { return c.base.String() }

// HealthCheck pings the server.
func (c *WorldClient) HealthCheck(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/health", nil, nil, "")
	return err
}

// WaitReady polls HealthCheck until the server answers, backing off
// between attempts.
func (c *WorldClient) WaitReady(ctx context.Context, attempts uint) error {
	return retry.Do(func() error {
		return c.HealthCheck(ctx)
	},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(100*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("World server not ready", zap.String("target", c.Target()), zap.Uint("attempt", n), zap.Error(err))
		}),
	)
}

// FetchRead reads a single block.
func (c *WorldClient) FetchRead(ctx context.Context, coord world.Coord) (world.Block, error) {
	body, err := c.do(ctx, http.MethodGet, "/blocks", coordQuery(coord), nil, "")
	if err != nil {
		return world.Block{}, err
	}
	b, err := world.ParseBlock(string(body))
	if err != nil {
		return world.Block{}, fmt.Errorf("decode block at %s: %w", coord, err)
	}
	return b, nil
}

// FetchRegion reads box. Boxes larger than the region limit are fetched
// piecewise and joined.
func (c *WorldClient) FetchRegion(ctx context.Context, box world.Box) (world.Region, error) {
	parts := box.Split(c.maxRegion)
	if len(parts) == 1 {
		return c.fetchRegion(ctx, box)
	}

	c.logger.Debug("fetching region in parts", zap.Stringer("box", box), zap.Int("parts", len(parts)))
	regions := make([]world.Region, len(parts))
	for i, p := range parts {
		r, err := c.fetchRegion(ctx, p)
		if err != nil {
			return world.Region{}, err
		}
		regions[i] = r
	}
	return world.JoinRegions(box, regions)
}

func (c *WorldClient) fetchRegion(ctx context.Context, box world.Box) (world.Region, error) {
	size := box.Size()
	q := coordQuery(box.Min)
	q.Set("dx", strconv.Itoa(size.X))
	q.Set("dy", strconv.Itoa(size.Y))
	q.Set("dz", strconv.Itoa(size.Z))

	body, err := c.do(ctx, http.MethodGet, "/region", q, nil, "")
	if err != nil {
		return world.Region{}, err
	}
	var r world.Region
	if err := cbor.Unmarshal(body, &r); err != nil {
		return world.Region{}, fmt.Errorf("decode region: %w", err)
	}
	if r.Box != box {
		return world.Region{}, fmt.Errorf("region: asked for %s, got %s", box, r.Box)
	}
	if err := r.Validate(); err != nil {
		return world.Region{}, err
	}
	return r, nil
}

// TransmitWrite places one block.
func (c *WorldClient) TransmitWrite(ctx context.Context, p world.Placement) (transport.Ack, error) {
	return c.TransmitBatch(ctx, []world.Placement{p})
}

// TransmitBatch places every block in one request. Any placement rejected
// by the server fails the whole call with the server's message.
func (c *WorldClient) TransmitBatch(ctx context.Context, ps []world.Placement) (transport.Ack, error) {
	if len(ps) == 0 {
		return 0, nil
	}
	var buf bytes.Buffer
	for _, p := range ps {
		buf.WriteString(wire.FormatPlacement(p))
		buf.WriteByte('\n')
	}

	body, err := c.do(ctx, http.MethodPut, "/blocks", nil, &buf, "text/plain")
	if err != nil {
		return 0, err
	}
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) != len(ps) {
		return 0, fmt.Errorf("put blocks: %d results for %d placements", len(lines), len(ps))
	}

	var (
		last     transport.Ack
		rejected []string
	)
	for i, line := range lines {
		ack, err := strconv.ParseUint(strings.TrimSpace(line), 10, 64)
		if err != nil {
			rejected = append(rejected, fmt.Sprintf("%s: %s", ps[i], line))
			continue
		}
		last = max(last, transport.Ack(ack))
	}
	if len(rejected) > 0 {
		c.logger.Debug("placements rejected", zap.Int("rejected", len(rejected)), zap.Int("sent", len(ps)))
		return last, fmt.Errorf("%d of %d placements rejected: %s", len(rejected), len(ps), strings.Join(rejected, "; "))
	}
	return last, nil
}

// SetBuildArea changes the server's build area.
func (c *WorldClient) SetBuildArea(ctx context.Context, box world.Box) error {
	data, err := json.Marshal(wire.FromBox(box))
	if err != nil {
		return fmt.Errorf("marshal build area: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, "/buildarea", nil, bytes.NewReader(data), "application/json")
	return err
}

// BuildArea returns the server's build area.
func (c *WorldClient) BuildArea(ctx context.Context) (world.Box, error) {
	body, err := c.do(ctx, http.MethodGet, "/buildarea", nil, nil, "")
	if err != nil {
		return world.Box{}, err
	}
	var a wire.BuildArea
	if err := json.Unmarshal(body, &a); err != nil {
		return world.Box{}, fmt.Errorf("decode build area: %w", err)
	}
	return a.Box(), nil
}

func (c *WorldClient) do(ctx context.Context, method, path string, q url.Values, body io.Reader, contentType string) ([]byte, error) {
	u := *c.base
	u.Path += path
	if q != nil {
		u.RawQuery = q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	c.logger.Debug("round trip",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(data)))
	}
	return data, nil
}

func coordQuery(c world.Coord) url.Values {
	q := url.Values{}
	q.Set("x", strconv.Itoa(c.X))
	q.Set("y", strconv.Itoa(c.Y))
	q.Set("z", strconv.Itoa(c.Z))
	return q
}
