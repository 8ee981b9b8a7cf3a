package preview

import (
	"fmt"
	"strings"
)

// Mode is the calibration mode pushed to the tracker.
type Mode string

const (
	Mode2D Mode = "2d"
	Mode3D Mode = "3d"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Mode2D:
		return Mode2D, nil
	case Mode3D:
		return Mode3D, nil
	default:
		return "", fmt.Errorf("unknown calibration mode %q, must be one of %q, %q", s, Mode2D, Mode3D)
	}
}

// DepthRadius is one ring of calibration targets.
type DepthRadius struct {
	Depth  float64 `json:"depth" yaml:"depth"`
	Radius float64 `json:"radius" yaml:"radius"`
}

// Geometry describes where calibration targets appear. For 2D calibration
// the center is a viewport point; for 3D it is in camera space.
type Geometry struct {
	Center      Vector3       `json:"center" yaml:"center"`
	DepthRadius []DepthRadius `json:"depthRadius" yaml:"depthRadius"`
}

// GeometrySource supplies the calibration geometry for a mode.
type GeometrySource interface {
	Geometry(mode Mode) Geometry
}

// StaticSource is a fixed table of geometries.
type StaticSource map[Mode]Geometry

func (s StaticSource) Geometry(mode Mode) Geometry {
	return s[mode]
}

// DefaultGeometry matches the HMD calibration types of the tracker.
func DefaultGeometry() StaticSource {
	return StaticSource{
		Mode2D: {
			Center:      Vector3{X: 0.5, Y: 0.5},
			DepthRadius: []DepthRadius{{Depth: 2, Radius: 0.07}},
		},
		Mode3D: {
			Center:      Vector3{Y: -0.05},
			DepthRadius: []DepthRadius{{Depth: 1, Radius: 0.24}},
		},
	}
}

// WithOverrides returns a copy of s where every non-empty geometry in o
// replaces the default.
func (s StaticSource) WithOverrides(o map[Mode]Geometry) StaticSource {
	r := make(StaticSource, len(s))
	for k, v := range s {
		r[k] = v
	}
	for k, v := range o {
		if len(v.DepthRadius) == 0 {
			continue
		}
		r[k] = v
	}
	return r
}
