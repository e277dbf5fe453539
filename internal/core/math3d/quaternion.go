package math3d

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Quaternion is a rotation stored as W, X, Y, Z components.
type Quaternion struct {
	W float32
	X float32
	Y float32
	Z float32
}

// QuaternionIdentity is the identity rotation.
var QuaternionIdentity = Quaternion{W: 1}

// QuaternionFromAxisAngle returns the rotation of angle radians around axis.
func QuaternionFromAxisAngle(axis Vector3, angle float32) Quaternion {
	norm := axis.Normalized()
	half := angle * 0.5
	sin := math32.Sin(half)
	return Quaternion{
		W: math32.Cos(half),
		X: norm.X * sin,
		Y: norm.Y * sin,
		Z: norm.Z * sin,
	}
}

// QuaternionFromEuler returns the rotation built from Euler angles in radians,
// applied in Z (roll), X (pitch), Y (yaw) order.
func QuaternionFromEuler(x, y, z float32) Quaternion {
	x *= 0.5
	y *= 0.5
	z *= 0.5
	sinX, cosX := math32.Sin(x), math32.Cos(x)
	sinY, cosY := math32.Sin(y), math32.Cos(y)
	sinZ, cosZ := math32.Sin(z), math32.Cos(z)

	return Quaternion{
		W: cosY*cosX*cosZ + sinY*sinX*sinZ,
		X: cosY*sinX*cosZ + sinY*cosX*sinZ,
		Y: sinY*cosX*cosZ - cosY*sinX*sinZ,
		Z: cosY*cosX*sinZ - sinY*sinX*cosZ,
	}
}

// Mul returns the combined rotation q followed by other (standard Hamilton product).
func (q Quaternion) Mul(other Quaternion) Quaternion {
	return Quaternion{
		W: q.W*other.W - q.X*other.X - q.Y*other.Y - q.Z*other.Z,
		X: q.W*other.X + q.X*other.W + q.Y*other.Z - q.Z*other.Y,
		Y: q.W*other.Y + q.Y*other.W + q.Z*other.X - q.X*other.Z,
		Z: q.W*other.Z + q.Z*other.W + q.X*other.Y - q.Y*other.X,
	}
}

// RotateVec returns v rotated by q.
func (q Quaternion) RotateVec(v Vector3) Vector3 {
	qv := Vector3{q.X, q.Y, q.Z}
	cross1 := qv.Cross(v)
	cross2 := qv.Cross(cross1)
	return v.Add(cross1.MulScalar(2 * q.W)).Add(cross2.MulScalar(2))
}

// LengthSquared returns the squared norm of q.
func (q Quaternion) LengthSquared() float32 {
	return q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z
}

// Normalized returns q scaled to unit norm. A zero quaternion becomes identity.
func (q Quaternion) Normalized() Quaternion {
	lenSq := q.LengthSquared()
	if lenSq < Epsilon*Epsilon {
		return QuaternionIdentity
	}
	inv := 1 / math32.Sqrt(lenSq)
	return Quaternion{q.W * inv, q.X * inv, q.Y * inv, q.Z * inv}
}

// Inverse returns the inverse rotation of q.
func (q Quaternion) Inverse() Quaternion {
	lenSq := q.LengthSquared()
	if lenSq < Epsilon*Epsilon {
		return QuaternionIdentity
	}
	inv := 1 / lenSq
	return Quaternion{q.W * inv, -q.X * inv, -q.Y * inv, -q.Z * inv}
}

// Dot returns the four-component dot product of q and other.
func (q Quaternion) Dot(other Quaternion) float32 {
	return q.W*other.W + q.X*other.X + q.Y*other.Y + q.Z*other.Z
}

// Equals reports whether q and other represent the same component values within Epsilon.
func (q Quaternion) Equals(other Quaternion) bool {
	return math32.Abs(q.W-other.W) < Epsilon &&
		math32.Abs(q.X-other.X) < Epsilon &&
		math32.Abs(q.Y-other.Y) < Epsilon &&
		math32.Abs(q.Z-other.Z) < Epsilon
}

// String returns the space-separated "w x y z" form used by the text codecs.
func (q Quaternion) String() string {
	return fmt.Sprintf("%g %g %g %g", q.W, q.X, q.Y, q.Z)
}
