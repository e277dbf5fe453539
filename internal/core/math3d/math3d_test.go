package math3d

import (
	"testing"

	"github.com/chewxy/math32"
)

func TestVector3Arithmetic(t *testing.T) {
	a := V3(1, 2, 3)
	b := V3(4, 5, 6)

	if got := a.Add(b); !got.Equals(V3(5, 7, 9)) {
		t.Errorf("Add = %v", got)
	}
	if got := b.Sub(a); !got.Equals(V3(3, 3, 3)) {
		t.Errorf("Sub = %v", got)
	}
	if got := a.Dot(b); math32.Abs(got-32) > Epsilon {
		t.Errorf("Dot = %v", got)
	}
	if got := Right.Cross(Up); !got.Equals(Forward) {
		t.Errorf("Cross = %v, want forward", got)
	}
	if got := V3(3, 4, 0).Length(); math32.Abs(got-5) > Epsilon {
		t.Errorf("Length = %v", got)
	}
	if got := V3(0, 0, 9).Normalized(); !got.Equals(V3(0, 0, 1)) {
		t.Errorf("Normalized = %v", got)
	}
}

func TestVector3Lerp(t *testing.T) {
	got := Zero3.Lerp(V3(10, 20, 30), 0.5)
	if !got.Equals(V3(5, 10, 15)) {
		t.Errorf("Lerp = %v", got)
	}
}

func TestQuaternionAxisAngle(t *testing.T) {
	// 90 degrees about Y sends +X to -Z (right-handed).
	q := QuaternionFromAxisAngle(Up, DegToRad(90))
	got := q.RotateVec(Right)
	if !got.Equals(V3(0, 0, -1)) {
		t.Errorf("rotated = %v, want (0 0 -1)", got)
	}
}

func TestQuaternionEulerMatchesAxisAngle(t *testing.T) {
	fromEuler := QuaternionFromEuler(0, DegToRad(45), 0)
	fromAxis := QuaternionFromAxisAngle(Up, DegToRad(45))
	if math32.Abs(math32.Abs(fromEuler.Dot(fromAxis))-1) > Epsilon {
		t.Errorf("euler %v and axis-angle %v disagree", fromEuler, fromAxis)
	}
}

func TestQuaternionInverse(t *testing.T) {
	q := QuaternionFromEuler(DegToRad(30), DegToRad(60), DegToRad(15))
	v := V3(1, 2, 3)
	back := q.Inverse().RotateVec(q.RotateVec(v))
	if !back.Equals(v) {
		t.Errorf("inverse round trip = %v, want %v", back, v)
	}
}

func TestMatrixTRSDecompose(t *testing.T) {
	trans := V3(10, -4, 2.5)
	rot := QuaternionFromEuler(DegToRad(20), DegToRad(45), DegToRad(-10))
	scale := V3(2, 3, 0.5)

	m := MatrixFromTRS(trans, rot, scale)
	gotT, gotR, gotS := m.Decompose()

	if !gotT.Equals(trans) {
		t.Errorf("translation = %v, want %v", gotT, trans)
	}
	if !gotS.Equals(scale) {
		t.Errorf("scale = %v, want %v", gotS, scale)
	}
	// q and -q encode the same rotation.
	if math32.Abs(math32.Abs(gotR.Dot(rot))-1) > Epsilon {
		t.Errorf("rotation = %v, want %v", gotR, rot)
	}
}

func TestMatrixChainTranslation(t *testing.T) {
	step := MatrixFromTRS(V3(1, 0, 0), QuaternionIdentity, One3)

	world := step
	for i := 0; i < 2; i++ {
		world = world.Mul(step)
	}
	if got := world.Translation(); !got.Equals(V3(3, 0, 0)) {
		t.Errorf("chained translation = %v, want (3 0 0)", got)
	}
}

func TestMatrixMulPoint(t *testing.T) {
	m := MatrixFromTRS(V3(0, 1, 0), QuaternionFromAxisAngle(Up, DegToRad(90)), One3)
	got := m.MulPoint(Right)
	if !got.Equals(V3(0, 1, -1)) {
		t.Errorf("point = %v, want (0 1 -1)", got)
	}
}

func TestMatrixInverse(t *testing.T) {
	m := MatrixFromTRS(V3(5, 6, 7), QuaternionFromEuler(DegToRad(10), DegToRad(80), DegToRad(-30)), V3(2, 2, 2))
	round := m.Mul(m.Inverse())
	if !round.Equals(MatrixIdentity) {
		t.Errorf("m * m^-1 = %+v, want identity", round)
	}
}
