package types

import "math"

// An RGB color with unbounded float channels. Channels are only clamped to the
// displayable [0, 1] range right before they are written to a frame.
type Color struct {
	R, G, B float64
}

var (
	Black = Color{}
	White = Color{1, 1, 1}
)

// Define a color.
func RGB(r, g, b float64) Color {
	return Color{r, g, b}
}

// Add a color.
func (c Color) Add(c2 Color) Color {
	return Color{c.R + c2.R, c.G + c2.G, c.B + c2.B}
}

// Component-wise color multiplication.
func (c Color) Mul(c2 Color) Color {
	return Color{c.R * c2.R, c.G * c2.G, c.B * c2.B}
}

// Multiply color with a scalar.
func (c Color) Scale(s float64) Color {
	return Color{c.R * s, c.G * s, c.B * s}
}

// Saturate each channel to [0, 1]. NaN channels become 0.
func (c Color) Clamp() Color {
	return Color{clamp01(c.R), clamp01(c.G), clamp01(c.B)}
}

// Convert a clamped channel value to its 8-bit representation.
func (c Color) RGB8() (uint8, uint8, uint8) {
	cc := c.Clamp()
	return uint8(cc.R * 255), uint8(cc.G * 255), uint8(cc.B * 255)
}

// Check if two colors are equal within the given per-channel tolerance.
func (c Color) ApproxEqual(c2 Color, epsilon float64) bool {
	return math.Abs(c.R-c2.R) <= epsilon &&
		math.Abs(c.G-c2.G) <= epsilon &&
		math.Abs(c.B-c2.B) <= epsilon
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
