package world

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// DefaultNamespace is applied to block names given without one.
const DefaultNamespace = "minecraft"

var (
	namespaceRe = regexp.MustCompile(`^[a-z0-9_.-]+$`)
	pathRe      = regexp.MustCompile(`^[a-z0-9_./-]+$`)
	stateKeyRe  = regexp.MustCompile(`^[a-z0-9_]+$`)
)

// Block is the content of one coordinate. It is a comparable value: two
// blocks are the same block iff they are ==.
type Block struct {
	// Name is the namespaced identifier, e.g. "minecraft:stone".
	Name string `json:"name" cbor:"1,keyasint"`
	// States is the canonical "k=v,k=v" list sorted by key.
	States string `json:"states,omitempty" cbor:"2,keyasint,omitempty"`
	// Data is an opaque SNBT compound including its braces.
	Data string `json:"data,omitempty" cbor:"3,keyasint,omitempty"`
}

// Air is the empty block.
var Air = Block{Name: DefaultNamespace + ":air"}

// ParseBlock parses "ns:name[k=v,...]{...}". The namespace, states and data
// parts are optional.
func ParseBlock(s string) (Block, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Block{}, fmt.Errorf("empty block identifier")
	}

	var b Block
	rest := s
	if i := strings.IndexByte(rest, '{'); i >= 0 {
		if !strings.HasSuffix(rest, "}") {
			return Block{}, fmt.Errorf("block %q: unterminated data", s)
		}
		b.Data = rest[i:]
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '['); i >= 0 {
		if !strings.HasSuffix(rest, "]") {
			return Block{}, fmt.Errorf("block %q: unterminated states", s)
		}
		states, err := canonicalStates(rest[i+1 : len(rest)-1])
		if err != nil {
			return Block{}, fmt.Errorf("block %q: %w", s, err)
		}
		b.States = states
		rest = rest[:i]
	}

	ns, path, ok := strings.Cut(rest, ":")
	if !ok {
		ns, path = DefaultNamespace, rest
	}
	if !namespaceRe.MatchString(ns) || !pathRe.MatchString(path) {
		return Block{}, fmt.Errorf("block %q: invalid identifier", s)
	}
	b.Name = ns + ":" + path
	return b, nil
}

// MustParseBlock is ParseBlock for literals; it panics on error.
func MustParseBlock(s string) Block {
	b, err := ParseBlock(s)
	if err != nil {
		panic(err)
	}
	return b
}

func canonicalStates(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	parts := strings.Split(s, ",")
	seen := make(map[string]bool, len(parts))
	for i, p := range parts {
		k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || !stateKeyRe.MatchString(k) || v == "" {
			return "", fmt.Errorf("invalid state %q", p)
		}
		if seen[k] {
			return "", fmt.Errorf("duplicate state %q", k)
		}
		seen[k] = true
		parts[i] = k + "=" + v
	}
	sort.Strings(parts)
	return strings.Join(parts, ","), nil
}

// IsZero reports whether b is the zero Block (not air).
func (b Block) IsZero() bool {
	return b == Block{}
}

// BaseName returns the identifier without its namespace.
func (b Block) BaseName() string {
	_, path, ok := strings.Cut(b.Name, ":")
	if !ok {
		return b.Name
	}
	return path
}

func (b Block) String() string {
	var sb strings.Builder
	sb.WriteString(b.Name)
	if b.States != "" {
		sb.WriteByte('[')
		sb.WriteString(b.States)
		sb.WriteByte(']')
	}
	sb.WriteString(b.Data)
	return sb.String()
}

// Placement is a single write: a block at a coordinate.
type Placement struct {
	Coord Coord `json:"coord" cbor:"1,keyasint"`
	Block Block `json:"block" cbor:"2,keyasint"`
}

func (p Placement) String() string {
	return p.Coord.String() + " " + p.Block.String()
}
