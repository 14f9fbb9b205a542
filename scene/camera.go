package scene

import (
	"errors"
	"fmt"
	"math"

	"github.com/achilleasa/darkray/types"
)

var (
	ErrPixelOutOfRange = errors.New("camera: pixel coordinates out of range")
	ErrInvalidCamera   = errors.New("camera: invalid camera configuration")
)

// A pinhole camera. The camera is immutable once created so that ray
// generation is a pure function of the pixel coordinates.
type Camera struct {
	Eye    types.Vec3
	LookAt types.Vec3
	Up     types.Vec3

	// Vertical field of view in degrees.
	FOV float64

	// Frame resolution.
	HRes int
	VRes int

	// Orthonormal camera basis; w points away from the view direction.
	u, v, w types.Vec3

	// Image plane half extents at distance 1.
	halfW, halfH float64
}

// Create a camera and precompute its basis.
func NewCamera(eye, lookAt, up types.Vec3, fov float64, hres, vres int) (*Camera, error) {
	if hres <= 0 || vres <= 0 {
		return nil, fmt.Errorf("%w: resolution must be positive; got %dx%d", ErrInvalidCamera, hres, vres)
	}
	if !(fov > 0 && fov < 180) {
		return nil, fmt.Errorf("%w: fov must be in (0, 180) degrees; got %f", ErrInvalidCamera, fov)
	}

	w := eye.Sub(lookAt).Normalize()
	if w == (types.Vec3{}) {
		return nil, fmt.Errorf("%w: eye and look-at positions coincide", ErrInvalidCamera)
	}
	u := up.Cross(w).Normalize()
	if u == (types.Vec3{}) {
		return nil, fmt.Errorf("%w: up vector is parallel to the view direction", ErrInvalidCamera)
	}

	halfH := math.Tan(fov * math.Pi / 360.0)
	return &Camera{
		Eye:    eye,
		LookAt: lookAt,
		Up:     up,
		FOV:    fov,
		HRes:   hres,
		VRes:   vres,
		u:      u,
		v:      w.Cross(u),
		w:      w,
		halfW:  halfH * float64(hres) / float64(vres),
		halfH:  halfH,
	}, nil
}

// Number of rays generated for a full frame.
func (c *Camera) NumRays() int {
	return c.HRes * c.VRes
}

// Generate the primary ray that passes through the center of pixel (row, col).
func (c *Camera) Ray(row, col int) (Ray, error) {
	if row < 0 || row >= c.VRes || col < 0 || col >= c.HRes {
		return Ray{}, fmt.Errorf("%w: (row %d, col %d) not in %dx%d", ErrPixelOutOfRange, row, col, c.HRes, c.VRes)
	}

	px := (2.0*(float64(col)+0.5)/float64(c.HRes) - 1.0) * c.halfW
	py := (1.0 - 2.0*(float64(row)+0.5)/float64(c.VRes)) * c.halfH

	dir := c.u.Mul(px).Add(c.v.Mul(py)).Sub(c.w)
	return NewRay(c.Eye, dir), nil
}

// Generate the primary rays for all pixels in raster order (row-major, top to bottom).
func (c *Camera) Rays() []Ray {
	rays := make([]Ray, 0, c.NumRays())
	for row := 0; row < c.VRes; row++ {
		for col := 0; col < c.HRes; col++ {
			ray, _ := c.Ray(row, col)
			rays = append(rays, ray)
		}
	}
	return rays
}

func (c *Camera) String() string {
	return fmt.Sprintf(
		"eye: (%3.3f, %3.3f, %3.3f), look-at: (%3.3f, %3.3f, %3.3f), fov: %3.1f, resolution: %dx%d",
		c.Eye[0], c.Eye[1], c.Eye[2],
		c.LookAt[0], c.LookAt[1], c.LookAt[2],
		c.FOV, c.HRes, c.VRes,
	)
}
