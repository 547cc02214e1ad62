package worldstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/fxamacker/cbor/v2"
	"go.uber.org/zap"

	"github.com/iggydv12/voxelink/internal/transport"
	"github.com/iggydv12/voxelink/internal/world"
)

const (
	blockPrefix = 'b'
	metaPrefix  = 'm'
)

var (
	seqKey  = []byte{metaPrefix, 's', 'e', 'q'}
	areaKey = []byte{metaPrefix, 'a', 'r', 'e', 'a'}
)

// PebbleStore is a Pebble LSM-tree backed BlockStore. Blocks are keyed by
// their coordinate in x, y, z order so a row along z is one contiguous scan.
type PebbleStore struct {
	mu           sync.Mutex // serialises writers so acks stay monotonic
	db           *pebble.DB
	path         string
	defaultBlock world.Block
	defaultArea  world.Box
	seq          transport.Ack
	logger       *zap.Logger
}

// NewPebbleStore creates a PebbleStore instance (not yet opened). Unwritten
// coordinates read as defaultBlock; defaultArea is used until a build area
// has been stored.
func NewPebbleStore(dbPath string, defaultBlock world.Block, defaultArea world.Box, logger *zap.Logger) *PebbleStore {
	return &PebbleStore{
		path:         dbPath,
		defaultBlock: defaultBlock,
		defaultArea:  defaultArea,
		logger:       logger,
	}
}

// Init opens the Pebble database and restores the ack sequence.
func (p *PebbleStore) Init() error {
	opts := &pebble.Options{
		Logger: &pebbleLogger{p.logger},
	}
	db, err := pebble.Open(p.path, opts)
	if err != nil {
		return fmt.Errorf("pebble open %s: %w", p.path, err)
	}
	p.db = db

	data, closer, err := db.Get(seqKey)
	switch {
	case err == nil:
		p.seq = transport.Ack(binary.BigEndian.Uint64(data))
		closer.Close()
	case !errors.Is(err, pebble.ErrNotFound):
		return fmt.Errorf("pebble get seq: %w", err)
	}

	p.logger.Info("Pebble world store opened", zap.String("path", p.path), zap.Uint64("seq", uint64(p.seq)))
	return nil
}

// Close flushes and closes the database.
func (p *PebbleStore) Close() error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

// Get returns the block at c.
func (p *PebbleStore) Get(c world.Coord) (world.Block, error) {
	if p.db == nil {
		return world.Block{}, ErrClosed
	}
	data, closer, err := p.db.Get(blockKey(c))
	if errors.Is(err, pebble.ErrNotFound) {
		return p.defaultBlock, nil
	}
	if err != nil {
		return world.Block{}, fmt.Errorf("pebble get: %w", err)
	}
	defer closer.Close()
	return decodeBlock(data)
}

// Put writes all placements in one synced batch.
func (p *PebbleStore) Put(ps []world.Placement) ([]transport.Ack, error) {
	if p.db == nil {
		return nil, ErrClosed
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	batch := p.db.NewBatch()
	defer batch.Close()

	acks := make([]transport.Ack, len(ps))
	seq := p.seq
	for i, pl := range ps {
		data, err := cbor.Marshal(pl.Block)
		if err != nil {
			return nil, fmt.Errorf("marshal: %w", err)
		}
		if err := batch.Set(blockKey(pl.Coord), data, nil); err != nil {
			return nil, fmt.Errorf("pebble batch set: %w", err)
		}
		seq++
		acks[i] = seq
	}
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], uint64(seq))
	if err := batch.Set(seqKey, seqBuf[:], nil); err != nil {
		return nil, fmt.Errorf("pebble batch set: %w", err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return nil, fmt.Errorf("pebble commit: %w", err)
	}
	p.seq = seq
	return acks, nil
}

// Region reads box one z-row at a time.
func (p *PebbleStore) Region(box world.Box) ([]world.Block, error) {
	if p.db == nil {
		return nil, ErrClosed
	}
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: blockKey(box.Min),
		UpperBound: successor(blockKey(box.Max)),
	})
	if err != nil {
		return nil, fmt.Errorf("pebble iter: %w", err)
	}
	defer iter.Close()

	out := make([]world.Block, box.Volume())
	for i := range out {
		out[i] = p.defaultBlock
	}
	for x := box.Min.X; x <= box.Max.X; x++ {
		for y := box.Min.Y; y <= box.Max.Y; y++ {
			end := blockKey(world.C(x, y, box.Max.Z))
			for iter.SeekGE(blockKey(world.C(x, y, box.Min.Z))); iter.Valid(); iter.Next() {
				if bytes.Compare(iter.Key(), end) > 0 {
					break
				}
				b, err := decodeBlock(iter.Value())
				if err != nil {
					return nil, err
				}
				out[box.Index(coordOf(iter.Key()))] = b
			}
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("pebble iter: %w", err)
	}
	return out, nil
}

// BuildArea returns the stored build area or the configured default.
func (p *PebbleStore) BuildArea() (world.Box, error) {
	if p.db == nil {
		return world.Box{}, ErrClosed
	}
	data, closer, err := p.db.Get(areaKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return p.defaultArea, nil
	}
	if err != nil {
		return world.Box{}, fmt.Errorf("pebble get area: %w", err)
	}
	defer closer.Close()
	var box world.Box
	if err := cbor.Unmarshal(data, &box); err != nil {
		return world.Box{}, fmt.Errorf("unmarshal area: %w", err)
	}
	return box, nil
}

// SetBuildArea persists box.
func (p *PebbleStore) SetBuildArea(box world.Box) error {
	if p.db == nil {
		return ErrClosed
	}
	data, err := cbor.Marshal(box)
	if err != nil {
		return fmt.Errorf("marshal area: %w", err)
	}
	if err := p.db.Set(areaKey, data, pebble.Sync); err != nil {
		return fmt.Errorf("pebble set area: %w", err)
	}
	return nil
}

// Truncate deletes every stored block. The build area and ack sequence are kept.
func (p *PebbleStore) Truncate() error {
	if p.db == nil {
		return ErrClosed
	}
	if err := p.db.DeleteRange([]byte{blockPrefix}, []byte{blockPrefix + 1}, pebble.Sync); err != nil {
		return fmt.Errorf("pebble delete range: %w", err)
	}
	return nil
}

// blockKey encodes c so that byte order equals x, y, z numeric order.
func blockKey(c world.Coord) []byte {
	k := make([]byte, 13)
	k[0] = blockPrefix
	binary.BigEndian.PutUint32(k[1:], uint32(int32(c.X))^0x80000000)
	binary.BigEndian.PutUint32(k[5:], uint32(int32(c.Y))^0x80000000)
	binary.BigEndian.PutUint32(k[9:], uint32(int32(c.Z))^0x80000000)
	return k
}

func coordOf(k []byte) world.Coord {
	return world.Coord{
		X: int(int32(binary.BigEndian.Uint32(k[1:]) ^ 0x80000000)),
		Y: int(int32(binary.BigEndian.Uint32(k[5:]) ^ 0x80000000)),
		Z: int(int32(binary.BigEndian.Uint32(k[9:]) ^ 0x80000000)),
	}
}

func successor(k []byte) []byte {
	return append(append([]byte(nil), k...), 0)
}

func decodeBlock(data []byte) (world.Block, error) {
	var b world.Block
	if err := cbor.Unmarshal(data, &b); err != nil {
		return world.Block{}, fmt.Errorf("unmarshal block: %w", err)
	}
	return b, nil
}

// pebbleLogger adapts zap.Logger to the pebble.Logger interface.
type pebbleLogger struct {
	z *zap.Logger
}

func (l *pebbleLogger) Infof(format string, args ...any) {
	l.z.Sugar().Infof(format, args...)
}

func (l *pebbleLogger) Errorf(format string, args ...any) {
	l.z.Sugar().Errorf(format, args...)
}

func (l *pebbleLogger) Fatalf(format string, args ...any) {
	l.z.Sugar().Fatalf(format, args...)
}
