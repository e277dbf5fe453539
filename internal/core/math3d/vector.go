package math3d

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Epsilon is the tolerance used by the approximate comparisons in this package.
const Epsilon = 1e-6

// DegToRad converts degrees to radians.
func DegToRad(deg float32) float32 { return deg * (math32.Pi / 180) }

// RadToDeg converts radians to degrees.
func RadToDeg(rad float32) float32 { return rad * (180 / math32.Pi) }

// Vector2 is a two-dimensional float32 vector.
type Vector2 struct {
	X float32
	Y float32
}

// V2 returns a new Vector2 from the given components.
func V2(x, y float32) Vector2 { return Vector2{X: x, Y: y} }

// Add returns the component-wise sum of v and other.
func (v Vector2) Add(other Vector2) Vector2 { return Vector2{v.X + other.X, v.Y + other.Y} }

// Sub returns the component-wise difference of v and other.
func (v Vector2) Sub(other Vector2) Vector2 { return Vector2{v.X - other.X, v.Y - other.Y} }

// MulScalar returns v scaled by s.
func (v Vector2) MulScalar(s float32) Vector2 { return Vector2{v.X * s, v.Y * s} }

// Dot returns the dot product of v and other.
func (v Vector2) Dot(other Vector2) float32 { return v.X*other.X + v.Y*other.Y }

// Length returns the vector length.
func (v Vector2) Length() float32 { return math32.Sqrt(v.X*v.X + v.Y*v.Y) }

// Equals reports whether v and other are equal within Epsilon.
func (v Vector2) Equals(other Vector2) bool {
	return math32.Abs(v.X-other.X) < Epsilon && math32.Abs(v.Y-other.Y) < Epsilon
}

// String returns the space-separated component form used by the text codecs.
func (v Vector2) String() string { return fmt.Sprintf("%g %g", v.X, v.Y) }

// Vector3 is a three-dimensional float32 vector.
type Vector3 struct {
	X float32
	Y float32
	Z float32
}

// Common Vector3 constants.
var (
	Zero3   = Vector3{0, 0, 0}
	One3    = Vector3{1, 1, 1}
	Right   = Vector3{1, 0, 0}
	Up      = Vector3{0, 1, 0}
	Forward = Vector3{0, 0, 1}
)

// V3 returns a new Vector3 from the given components.
func V3(x, y, z float32) Vector3 { return Vector3{X: x, Y: y, Z: z} }

// Add returns the component-wise sum of v and other.
func (v Vector3) Add(other Vector3) Vector3 {
	return Vector3{v.X + other.X, v.Y + other.Y, v.Z + other.Z}
}

// Sub returns the component-wise difference of v and other.
func (v Vector3) Sub(other Vector3) Vector3 {
	return Vector3{v.X - other.X, v.Y - other.Y, v.Z - other.Z}
}

// Mul returns the component-wise product of v and other.
func (v Vector3) Mul(other Vector3) Vector3 {
	return Vector3{v.X * other.X, v.Y * other.Y, v.Z * other.Z}
}

// MulScalar returns v scaled by s.
func (v Vector3) MulScalar(s float32) Vector3 { return Vector3{v.X * s, v.Y * s, v.Z * s} }

// Neg returns the negation of v.
func (v Vector3) Neg() Vector3 { return Vector3{-v.X, -v.Y, -v.Z} }

// Dot returns the dot product of v and other.
func (v Vector3) Dot(other Vector3) float32 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Cross returns the cross product of v and other.
func (v Vector3) Cross(other Vector3) Vector3 {
	return Vector3{
		v.Y*other.Z - v.Z*other.Y,
		v.Z*other.X - v.X*other.Z,
		v.X*other.Y - v.Y*other.X,
	}
}

// Length returns the vector length.
func (v Vector3) Length() float32 {
	return math32.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// LengthSquared returns the squared vector length, avoiding the square root.
func (v Vector3) LengthSquared() float32 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

// Normalized returns v scaled to unit length. The zero vector is returned unchanged.
func (v Vector3) Normalized() Vector3 {
	lenSq := v.LengthSquared()
	if lenSq < Epsilon*Epsilon {
		return v
	}
	return v.MulScalar(1 / math32.Sqrt(lenSq))
}

// Lerp returns the linear interpolation between v and other by t.
func (v Vector3) Lerp(other Vector3, t float32) Vector3 {
	return Vector3{
		v.X + (other.X-v.X)*t,
		v.Y + (other.Y-v.Y)*t,
		v.Z + (other.Z-v.Z)*t,
	}
}

// Equals reports whether v and other are equal within Epsilon.
func (v Vector3) Equals(other Vector3) bool {
	return math32.Abs(v.X-other.X) < Epsilon &&
		math32.Abs(v.Y-other.Y) < Epsilon &&
		math32.Abs(v.Z-other.Z) < Epsilon
}

// String returns the space-separated component form used by the text codecs.
func (v Vector3) String() string { return fmt.Sprintf("%g %g %g", v.X, v.Y, v.Z) }
