// Package wire holds the payloads exchanged between the REST world store and
// its HTTP client.
package wire

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/iggydv12/voxelink/internal/world"
)

// ContentTypeCBOR is the media type of region payloads.
const ContentTypeCBOR = "application/cbor"

// MaxRegionVolume bounds a single region request. Larger boxes are
// fetched in pieces, see world.Box.Split.
const MaxRegionVolume = 1 << 22

// BuildArea is the JSON form of the build area.
type BuildArea struct {
	XFrom int `json:"xFrom"`
	YFrom int `json:"yFrom"`
	ZFrom int `json:"zFrom"`
	XTo   int `json:"xTo"`
	YTo   int `json:"yTo"`
	ZTo   int `json:"zTo"`
}

// FromBox converts a box to its JSON form.
func FromBox(b world.Box) BuildArea {
	return BuildArea{
		XFrom: b.Min.X, YFrom: b.Min.Y, ZFrom: b.Min.Z,
		XTo: b.Max.X, YTo: b.Max.Y, ZTo: b.Max.Z,
	}
}

// Box returns the normalised box.
func (a BuildArea) Box() world.Box {
	return world.NewBox(world.C(a.XFrom, a.YFrom, a.ZFrom), world.C(a.XTo, a.YTo, a.ZTo))
}

// ParseAxis parses one coordinate component. Components are stored as
// 32-bit integers, so larger values are rejected.
func ParseAxis(s string) (int, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("malformed coordinate %q", s)
	}
	return int(v), nil
}

// CheckCoord rejects coordinates with a component outside the 32-bit range.
func CheckCoord(c world.Coord) error {
	for _, v := range [3]int{c.X, c.Y, c.Z} {
		if v < math.MinInt32 || v > math.MaxInt32 {
			return fmt.Errorf("coordinate %s out of range", c)
		}
	}
	return nil
}

// FormatPlacement renders one line of a PUT /blocks body.
func FormatPlacement(p world.Placement) string {
	return p.String()
}

// ParsePlacement parses one "x y z block" line.
func ParsePlacement(line string) (world.Placement, error) {
	fields := strings.SplitN(strings.TrimSpace(line), " ", 4)
	if len(fields) != 4 {
		return world.Placement{}, fmt.Errorf("malformed placement %q", line)
	}
	var xyz [3]int
	for i := range xyz {
		v, err := ParseAxis(fields[i])
		if err != nil {
			return world.Placement{}, err
		}
		xyz[i] = v
	}
	b, err := world.ParseBlock(fields[3])
	if err != nil {
		return world.Placement{}, err
	}
	return world.Placement{Coord: world.C(xyz[0], xyz[1], xyz[2]), Block: b}, nil
}
