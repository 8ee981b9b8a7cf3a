package preview

import (
	"context"
	"errors"
	"math"
	"testing"
)

const eps = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func nearVec(a, b Vector3) bool { return near(a.X, b.X) && near(a.Y, b.Y) && near(a.Z, b.Z) }

func TestRender(t *testing.T) {
	cam := Camera{FieldOfView: 90, Aspect: 1.6, LocalToWorld: Identity()}

	tests := []struct {
		name string
		geo  Geometry
		mode Mode
		want []Marker
	}{
		{
			name: "empty geometry",
			geo:  Geometry{Center: Vector3{X: 0.5, Y: 0.5}},
			mode: Mode2D,
			want: nil,
		},
		{
			name: "3d uses raw values",
			geo:  DefaultGeometry()[Mode3D],
			mode: Mode3D,
			want: []Marker{{
				Position: Vector3{X: 0, Y: -0.05, Z: 1},
				Scale:    Vector3{X: 0.048, Y: 0.048 / 1.6, Z: 1},
			}},
		},
		{
			name: "2d projects through the camera",
			geo:  DefaultGeometry()[Mode2D],
			mode: Mode2D,
			want: []Marker{{
				Position: Vector3{X: 0, Y: 0, Z: 2},
				Scale:    Vector3{X: 0.0896, Y: 0.056, Z: 1},
			}},
		},
		{
			name: "2d projects every ring at the first depth",
			geo: Geometry{
				Center:      Vector3{X: 0.5, Y: 0.5},
				DepthRadius: []DepthRadius{{Depth: 2, Radius: 0.07}, {Depth: 3, Radius: 0.1}},
			},
			mode: Mode2D,
			want: []Marker{
				{Position: Vector3{Z: 2}, Scale: Vector3{X: 0.0896, Y: 0.056, Z: 1}},
				{Position: Vector3{Z: 3}, Scale: Vector3{X: 0.128, Y: 0.08, Z: 1}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render(tt.geo, cam, tt.mode)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d markers, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if !nearVec(got[i].Position, tt.want[i].Position) {
					t.Errorf("marker %d position = %+v, want %+v", i, got[i].Position, tt.want[i].Position)
				}
				if !nearVec(got[i].Scale, tt.want[i].Scale) {
					t.Errorf("marker %d scale = %+v, want %+v", i, got[i].Scale, tt.want[i].Scale)
				}
				if got[i].Rotation != Zero {
					t.Errorf("marker %d rotation = %+v, want zero", i, got[i].Rotation)
				}
			}
		})
	}
}

func TestRenderIndependentOfCameraPose(t *testing.T) {
	still := Camera{FieldOfView: 60, Aspect: 16.0 / 9.0, LocalToWorld: Identity()}
	moved := still
	moved.LocalToWorld = Translate(Vector3{X: 1, Y: 2, Z: -3}).Mul(RotateY(30)).Mul(RotateX(-15))

	geo := DefaultGeometry()[Mode2D]
	a := Render(geo, still, Mode2D)
	b := Render(geo, moved, Mode2D)
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("expected one marker each, got %d and %d", len(a), len(b))
	}
	if !nearVec(a[0].Position, b[0].Position) || !nearVec(a[0].Scale, b[0].Scale) {
		t.Fatalf("camera pose changed local markers: %+v vs %+v", a[0], b[0])
	}
}

func TestRigidInverse(t *testing.T) {
	m := Translate(Vector3{X: 4, Y: -1, Z: 2}).Mul(RotateY(45)).Mul(RotateX(20))
	p := Vector3{X: 0.3, Y: 1.2, Z: -7}
	back := m.RigidInverse().MultiplyPoint3x4(m.MultiplyPoint3x4(p))
	if !nearVec(back, p) {
		t.Fatalf("inverse(m)*m*p = %+v, want %+v", back, p)
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"2d": Mode2D, "3D": Mode3D, " 2D ": Mode2D} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %q, %v, want %q", in, got, err, want)
		}
	}
	if _, err := ParseMode("4d"); err == nil {
		t.Errorf("expected error for unknown mode")
	}
}

type recordingSpawner struct {
	parent  string
	markers []Marker
	err     error
}

func (s *recordingSpawner) SpawnMarkers(_ context.Context, parent string, markers []Marker) error {
	s.parent = parent
	s.markers = append(s.markers, markers...)
	return s.err
}

func TestRendererShow(t *testing.T) {
	sp := &recordingSpawner{}
	r := &Renderer{Source: DefaultGeometry(), Camera: DefaultCamera(), Spawner: sp, Parent: "Camera"}

	markers, err := r.Show(context.Background(), Mode3D)
	if err != nil {
		t.Fatalf("Show returned error: %v", err)
	}
	if len(markers) != 1 || len(sp.markers) != 1 || sp.parent != "Camera" {
		t.Fatalf("unexpected spawn: markers=%d spawned=%d parent=%q", len(markers), len(sp.markers), sp.parent)
	}

	sp.err = errors.New("engine down")
	if _, err := r.Show(context.Background(), Mode3D); !errors.Is(err, sp.err) {
		t.Fatalf("expected spawn error, got %v", err)
	}

	empty := &Renderer{Source: StaticSource{}, Camera: DefaultCamera(), Spawner: sp}
	markers, err = empty.Show(context.Background(), Mode2D)
	if err != nil || markers != nil {
		t.Fatalf("empty geometry: markers=%v err=%v", markers, err)
	}
}
