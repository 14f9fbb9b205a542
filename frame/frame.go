package frame

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/achilleasa/darkray/types"
)

var (
	ErrOutOfRange     = errors.New("frame: pixel coordinates out of range")
	ErrInvalidFrameSz = errors.New("frame: invalid frame dimensions")
)

// A fixed-size 2D color grid that serves as the render target. Pixels are
// stored in row-major order; x addresses columns and y addresses rows.
type Frame struct {
	width  int
	height int
	pixels []types.Color
}

// Allocate a new frame with all pixels set to opaque black.
func New(width, height int) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidFrameSz, width, height)
	}

	return &Frame{
		width:  width,
		height: height,
		pixels: make([]types.Color, width*height),
	}, nil
}

// Frame width in pixels.
func (f *Frame) Width() int {
	return f.width
}

// Frame height in pixels.
func (f *Frame) Height() int {
	return f.height
}

// Set the color of pixel (x, y).
func (f *Frame) SetPixel(x, y int, c types.Color) error {
	if !f.inBounds(x, y) {
		return fmt.Errorf("%w: (%d, %d) not in %dx%d", ErrOutOfRange, x, y, f.width, f.height)
	}
	f.pixels[y*f.width+x] = c
	return nil
}

// Get the color of pixel (x, y).
func (f *Frame) Pixel(x, y int) (types.Color, error) {
	if !f.inBounds(x, y) {
		return types.Black, fmt.Errorf("%w: (%d, %d) not in %dx%d", ErrOutOfRange, x, y, f.width, f.height)
	}
	return f.pixels[y*f.width+x], nil
}

// Fill all pixels with the given color.
func (f *Frame) Fill(c types.Color) {
	for i := range f.pixels {
		f.pixels[i] = c
	}
}

// Convert the frame to an 8-bit RGBA image. Channels are clamped before
// being quantized.
func (f *Frame) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.width, f.height))
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			r, g, b := f.pixels[y*f.width+x].RGB8()
			img.SetRGBA(x, y, color.RGBA{r, g, b, 0xff})
		}
	}
	return img
}

func (f *Frame) inBounds(x, y int) bool {
	return x >= 0 && x < f.width && y >= 0 && y < f.height
}
