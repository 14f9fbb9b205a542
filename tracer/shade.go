package tracer

import (
	"fmt"

	"github.com/achilleasa/darkray/frame"
	"github.com/achilleasa/darkray/scene"
	"github.com/achilleasa/darkray/types"
)

// Calculate the final pixel color for an intersection. Misses get the scene
// background; hits are shaded with the scene material and clamped to [0, 1].
func ShadePixel(sc *scene.Scene, it scene.Intersection) types.Color {
	if !it.Hit {
		return sc.Background.Clamp()
	}
	return sc.Material().Shade(it, sc.Lights).Clamp()
}

// Ensure that the frame dimensions match the scene camera resolution.
func CheckFrame(sc *scene.Scene, f *frame.Frame) error {
	if f.Width() != sc.Camera.HRes || f.Height() != sc.Camera.VRes {
		return fmt.Errorf(
			"%w: frame is %dx%d; camera is %dx%d",
			ErrFrameMismatch, f.Width(), f.Height(), sc.Camera.HRes, sc.Camera.VRes,
		)
	}
	return nil
}
