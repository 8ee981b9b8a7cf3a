package preview

import "math"

// Camera is a perspective camera. In its local space it looks down +Z.
type Camera struct {
	// FieldOfView is the vertical field of view in degrees.
	FieldOfView float64
	// Aspect is width divided by height.
	Aspect float64
	// LocalToWorld is the camera pose. It must be rigid.
	LocalToWorld Matrix4
}

func DefaultCamera() Camera {
	return Camera{
		FieldOfView:  90,
		Aspect:       16.0 / 9.0,
		LocalToWorld: Identity(),
	}
}

// ViewportToWorldPoint maps a viewport point (x and y in [0,1], z the
// distance in front of the camera) to world space.
func (c Camera) ViewportToWorldPoint(p Vector3) Vector3 {
	halfHeight := p.Z * math.Tan(c.FieldOfView*math.Pi/360)
	halfWidth := halfHeight * c.Aspect
	local := Vector3{
		X: (2*p.X - 1) * halfWidth,
		Y: (2*p.Y - 1) * halfHeight,
		Z: p.Z,
	}
	return c.LocalToWorld.MultiplyPoint3x4(local)
}

// WorldToCameraMatrix maps world space to camera space, where the camera
// looks down -Z.
func (c Camera) WorldToCameraMatrix() Matrix4 {
	return ScaleMatrix(Vector3{1, 1, -1}).Mul(c.LocalToWorld.RigidInverse())
}
