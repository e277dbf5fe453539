package math3d

import "github.com/chewxy/math32"

// Matrix3x4 is a row-major 3x4 affine transform matrix. The implicit fourth
// row is (0 0 0 1), which keeps world-transform caching at twelve floats.
type Matrix3x4 struct {
	M00, M01, M02, M03 float32
	M10, M11, M12, M13 float32
	M20, M21, M22, M23 float32
}

// MatrixIdentity is the identity transform.
var MatrixIdentity = Matrix3x4{
	M00: 1, M11: 1, M22: 1,
}

// MatrixFromTRS composes translation, rotation and scale into one transform.
func MatrixFromTRS(t Vector3, r Quaternion, s Vector3) Matrix3x4 {
	x, y, z, w := r.X, r.Y, r.Z, r.W

	r00 := 1 - 2*(y*y+z*z)
	r01 := 2 * (x*y - w*z)
	r02 := 2 * (x*z + w*y)
	r10 := 2 * (x*y + w*z)
	r11 := 1 - 2*(x*x+z*z)
	r12 := 2 * (y*z - w*x)
	r20 := 2 * (x*z - w*y)
	r21 := 2 * (y*z + w*x)
	r22 := 1 - 2*(x*x+y*y)

	return Matrix3x4{
		M00: r00 * s.X, M01: r01 * s.Y, M02: r02 * s.Z, M03: t.X,
		M10: r10 * s.X, M11: r11 * s.Y, M12: r12 * s.Z, M13: t.Y,
		M20: r20 * s.X, M21: r21 * s.Y, M22: r22 * s.Z, M23: t.Z,
	}
}

// Mul returns the transform that applies rhs first, then m.
func (m Matrix3x4) Mul(rhs Matrix3x4) Matrix3x4 {
	return Matrix3x4{
		M00: m.M00*rhs.M00 + m.M01*rhs.M10 + m.M02*rhs.M20,
		M01: m.M00*rhs.M01 + m.M01*rhs.M11 + m.M02*rhs.M21,
		M02: m.M00*rhs.M02 + m.M01*rhs.M12 + m.M02*rhs.M22,
		M03: m.M00*rhs.M03 + m.M01*rhs.M13 + m.M02*rhs.M23 + m.M03,
		M10: m.M10*rhs.M00 + m.M11*rhs.M10 + m.M12*rhs.M20,
		M11: m.M10*rhs.M01 + m.M11*rhs.M11 + m.M12*rhs.M21,
		M12: m.M10*rhs.M02 + m.M11*rhs.M12 + m.M12*rhs.M22,
		M13: m.M10*rhs.M03 + m.M11*rhs.M13 + m.M12*rhs.M23 + m.M13,
		M20: m.M20*rhs.M00 + m.M21*rhs.M10 + m.M22*rhs.M20,
		M21: m.M20*rhs.M01 + m.M21*rhs.M11 + m.M22*rhs.M21,
		M22: m.M20*rhs.M02 + m.M21*rhs.M12 + m.M22*rhs.M22,
		M23: m.M20*rhs.M03 + m.M21*rhs.M13 + m.M22*rhs.M23 + m.M23,
	}
}

// MulPoint transforms a point, applying rotation, scale and translation.
func (m Matrix3x4) MulPoint(v Vector3) Vector3 {
	return Vector3{
		m.M00*v.X + m.M01*v.Y + m.M02*v.Z + m.M03,
		m.M10*v.X + m.M11*v.Y + m.M12*v.Z + m.M13,
		m.M20*v.X + m.M21*v.Y + m.M22*v.Z + m.M23,
	}
}

// MulDirection transforms a direction, ignoring translation.
func (m Matrix3x4) MulDirection(v Vector3) Vector3 {
	return Vector3{
		m.M00*v.X + m.M01*v.Y + m.M02*v.Z,
		m.M10*v.X + m.M11*v.Y + m.M12*v.Z,
		m.M20*v.X + m.M21*v.Y + m.M22*v.Z,
	}
}

// Translation returns the translation column.
func (m Matrix3x4) Translation() Vector3 {
	return Vector3{m.M03, m.M13, m.M23}
}

// ScaleFactor returns the per-axis scale encoded in the basis columns.
func (m Matrix3x4) ScaleFactor() Vector3 {
	return Vector3{
		math32.Sqrt(m.M00*m.M00 + m.M10*m.M10 + m.M20*m.M20),
		math32.Sqrt(m.M01*m.M01 + m.M11*m.M11 + m.M21*m.M21),
		math32.Sqrt(m.M02*m.M02 + m.M12*m.M12 + m.M22*m.M22),
	}
}

// Rotation returns the rotation with scale removed.
func (m Matrix3x4) Rotation() Quaternion {
	s := m.ScaleFactor()
	invX, invY, invZ := float32(1), float32(1), float32(1)
	if s.X > Epsilon {
		invX = 1 / s.X
	}
	if s.Y > Epsilon {
		invY = 1 / s.Y
	}
	if s.Z > Epsilon {
		invZ = 1 / s.Z
	}
	return quaternionFromRotation(
		m.M00*invX, m.M01*invY, m.M02*invZ,
		m.M10*invX, m.M11*invY, m.M12*invZ,
		m.M20*invX, m.M21*invY, m.M22*invZ,
	)
}

// Decompose splits the transform back into translation, rotation and scale.
func (m Matrix3x4) Decompose() (Vector3, Quaternion, Vector3) {
	return m.Translation(), m.Rotation(), m.ScaleFactor()
}

// Inverse returns the inverse transform.
func (m Matrix3x4) Inverse() Matrix3x4 {
	det := m.M00*m.M11*m.M22 +
		m.M10*m.M21*m.M02 +
		m.M20*m.M01*m.M12 -
		m.M20*m.M11*m.M02 -
		m.M10*m.M01*m.M22 -
		m.M00*m.M21*m.M12
	invDet := 1 / det

	var inv Matrix3x4
	inv.M00 = (m.M11*m.M22 - m.M21*m.M12) * invDet
	inv.M01 = -(m.M01*m.M22 - m.M21*m.M02) * invDet
	inv.M02 = (m.M01*m.M12 - m.M11*m.M02) * invDet
	inv.M03 = -(m.M03*inv.M00 + m.M13*inv.M01 + m.M23*inv.M02)
	inv.M10 = -(m.M10*m.M22 - m.M20*m.M12) * invDet
	inv.M11 = (m.M00*m.M22 - m.M20*m.M02) * invDet
	inv.M12 = -(m.M00*m.M12 - m.M10*m.M02) * invDet
	inv.M13 = -(m.M03*inv.M10 + m.M13*inv.M11 + m.M23*inv.M12)
	inv.M20 = (m.M10*m.M21 - m.M20*m.M11) * invDet
	inv.M21 = -(m.M00*m.M21 - m.M20*m.M01) * invDet
	inv.M22 = (m.M00*m.M11 - m.M10*m.M01) * invDet
	inv.M23 = -(m.M03*inv.M20 + m.M13*inv.M21 + m.M23*inv.M22)
	return inv
}

// Equals reports whether m and other are equal within Epsilon.
func (m Matrix3x4) Equals(other Matrix3x4) bool {
	return math32.Abs(m.M00-other.M00) < Epsilon && math32.Abs(m.M01-other.M01) < Epsilon &&
		math32.Abs(m.M02-other.M02) < Epsilon && math32.Abs(m.M03-other.M03) < Epsilon &&
		math32.Abs(m.M10-other.M10) < Epsilon && math32.Abs(m.M11-other.M11) < Epsilon &&
		math32.Abs(m.M12-other.M12) < Epsilon && math32.Abs(m.M13-other.M13) < Epsilon &&
		math32.Abs(m.M20-other.M20) < Epsilon && math32.Abs(m.M21-other.M21) < Epsilon &&
		math32.Abs(m.M22-other.M22) < Epsilon && math32.Abs(m.M23-other.M23) < Epsilon
}

func quaternionFromRotation(r00, r01, r02, r10, r11, r12, r20, r21, r22 float32) Quaternion {
	var q Quaternion
	t := r00 + r11 + r22
	if t > 0 {
		invS := 0.5 / math32.Sqrt(1+t)
		q.X = (r21 - r12) * invS
		q.Y = (r02 - r20) * invS
		q.Z = (r10 - r01) * invS
		q.W = 0.25 / invS
	} else if r00 > r11 && r00 > r22 {
		invS := 0.5 / math32.Sqrt(1+r00-r11-r22)
		q.X = 0.25 / invS
		q.Y = (r01 + r10) * invS
		q.Z = (r20 + r02) * invS
		q.W = (r21 - r12) * invS
	} else if r11 > r22 {
		invS := 0.5 / math32.Sqrt(1+r11-r00-r22)
		q.X = (r01 + r10) * invS
		q.Y = 0.25 / invS
		q.Z = (r12 + r21) * invS
		q.W = (r02 - r20) * invS
	} else {
		invS := 0.5 / math32.Sqrt(1+r22-r00-r11)
		q.X = (r02 + r20) * invS
		q.Y = (r12 + r21) * invS
		q.Z = 0.25 / invS
		q.W = (r10 - r01) * invS
	}
	return q
}
