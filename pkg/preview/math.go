package preview

import "math"

// Vector3 is a point or direction in a left-handed, Y-up space.
type Vector3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

var (
	Zero  = Vector3{}
	Right = Vector3{X: 1}
)

func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vector3) Scale(f float64) Vector3 {
	return Vector3{v.X * f, v.Y * f, v.Z * f}
}

// Matrix4 is a row-major affine transform. Only the upper 3x4 block is used
// for points; the last row is kept so matrices compose.
type Matrix4 [4][4]float64

func Identity() Matrix4 {
	return Matrix4{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

func Translate(v Vector3) Matrix4 {
	m := Identity()
	m[0][3], m[1][3], m[2][3] = v.X, v.Y, v.Z
	return m
}

func ScaleMatrix(v Vector3) Matrix4 {
	m := Identity()
	m[0][0], m[1][1], m[2][2] = v.X, v.Y, v.Z
	return m
}

// RotateY rotates by deg degrees around the Y axis (yaw).
func RotateY(deg float64) Matrix4 {
	s, c := math.Sincos(deg * math.Pi / 180)
	return Matrix4{
		{c, 0, s, 0},
		{0, 1, 0, 0},
		{-s, 0, c, 0},
		{0, 0, 0, 1},
	}
}

// RotateX rotates by deg degrees around the X axis (pitch).
func RotateX(deg float64) Matrix4 {
	s, c := math.Sincos(deg * math.Pi / 180)
	return Matrix4{
		{1, 0, 0, 0},
		{0, c, -s, 0},
		{0, s, c, 0},
		{0, 0, 0, 1},
	}
}

// Mul returns m*o, i.e. o is applied first.
func (m Matrix4) Mul(o Matrix4) Matrix4 {
	var r Matrix4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			for k := 0; k < 4; k++ {
				r[i][j] += m[i][k] * o[k][j]
			}
		}
	}
	return r
}

// MultiplyPoint3x4 transforms p, ignoring any projective part.
func (m Matrix4) MultiplyPoint3x4(p Vector3) Vector3 {
	return Vector3{
		X: m[0][0]*p.X + m[0][1]*p.Y + m[0][2]*p.Z + m[0][3],
		Y: m[1][0]*p.X + m[1][1]*p.Y + m[1][2]*p.Z + m[1][3],
		Z: m[2][0]*p.X + m[2][1]*p.Y + m[2][2]*p.Z + m[2][3],
	}
}

// RigidInverse inverts a rotation+translation matrix. The result is wrong
// for matrices carrying scale or shear.
func (m Matrix4) RigidInverse() Matrix4 {
	r := Identity()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[j][i]
		}
	}
	t := Vector3{m[0][3], m[1][3], m[2][3]}
	for i := 0; i < 3; i++ {
		r[i][3] = -(r[i][0]*t.X + r[i][1]*t.Y + r[i][2]*t.Z)
	}
	return r
}
