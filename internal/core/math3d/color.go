package math3d

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Color is an RGBA color with float32 channels in [0,1].
type Color struct {
	R, G, B, A float32
}

var (
	ColorWhite = Color{1, 1, 1, 1}
	ColorBlack = Color{0, 0, 0, 1}
)

// RGB builds an opaque color.
func RGB(r, g, b float32) Color { return Color{r, g, b, 1} }

// Lerp interpolates toward other by t.
func (c Color) Lerp(other Color, t float32) Color {
	return Color{
		c.R + (other.R-c.R)*t,
		c.G + (other.G-c.G)*t,
		c.B + (other.B-c.B)*t,
		c.A + (other.A-c.A)*t,
	}
}

// Equals reports near-equality within Epsilon.
func (c Color) Equals(other Color) bool {
	return math32.Abs(c.R-other.R) < Epsilon &&
		math32.Abs(c.G-other.G) < Epsilon &&
		math32.Abs(c.B-other.B) < Epsilon &&
		math32.Abs(c.A-other.A) < Epsilon
}

// String renders "r g b a" scene-file form.
func (c Color) String() string {
	return fmt.Sprintf("%g %g %g %g", c.R, c.G, c.B, c.A)
}
