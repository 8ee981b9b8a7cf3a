package preview

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

const scaleFactor = 0.2

// Marker is the local transform of one preview circle, relative to the
// camera it is parented to.
type Marker struct {
	Position Vector3 `json:"position"`
	Scale    Vector3 `json:"scale"`
	Rotation Vector3 `json:"rotation"`
}

// Render computes one marker per depth/radius entry of g. Every entry starts
// from the unmodified geometry center.
func Render(g Geometry, cam Camera, mode Mode) []Marker {
	if len(g.DepthRadius) == 0 {
		return nil
	}

	markers := make([]Marker, 0, len(g.DepthRadius))
	for _, dr := range g.DepthRadius {
		center := g.Center
		s := (center.X + dr.Radius) * scaleFactor

		if mode == Mode2D {
			center.Z = g.DepthRadius[0].Depth
			view := cam.WorldToCameraMatrix()
			edge := view.MultiplyPoint3x4(cam.ViewportToWorldPoint(center.Add(Right.Scale(dr.Radius))))
			s = edge.X * scaleFactor
			center = view.MultiplyPoint3x4(cam.ViewportToWorldPoint(center))
		}

		markers = append(markers, Marker{
			Position: Vector3{X: center.X, Y: center.Y, Z: dr.Depth},
			Scale:    Vector3{X: s, Y: s / cam.Aspect, Z: 1},
			Rotation: Zero,
		})
	}
	return markers
}

// Spawner instantiates markers under a parent object.
type Spawner interface {
	SpawnMarkers(ctx context.Context, parent string, markers []Marker) error
}

// Renderer renders the preview for the current camera and spawns it.
type Renderer struct {
	Source  GeometrySource
	Camera  Camera
	Spawner Spawner
	// Parent is the engine object the markers are attached to.
	Parent string
}

func (r *Renderer) Show(ctx context.Context, mode Mode) ([]Marker, error) {
	markers := Render(r.Source.Geometry(mode), r.Camera, mode)
	if len(markers) == 0 {
		logrus.WithField("mode", mode).Warn("no calibration geometry, preview skipped")
		return nil, nil
	}
	if r.Spawner == nil {
		return markers, nil
	}
	if err := r.Spawner.SpawnMarkers(ctx, r.Parent, markers); err != nil {
		return nil, fmt.Errorf("failed to spawn %d preview markers: %w", len(markers), err)
	}
	return markers, nil
}
