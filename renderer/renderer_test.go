package renderer

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/achilleasa/darkray/scene"
	"github.com/achilleasa/darkray/tracer"
	"github.com/achilleasa/darkray/tracer/intersect"
	"github.com/achilleasa/darkray/types"
)

func TestOptionsValidate(t *testing.T) {
	type spec struct {
		mutate func(o *Options)
		expErr bool
	}
	specs := []spec{
		{func(o *Options) {}, false},
		{func(o *Options) { o.Workers = 0 }, true},
		{func(o *Options) { o.Backend = BackendAccelerated; o.Workers = 0 }, false},
		{func(o *Options) { o.Backend = BackendAccelerated; o.DeviceDriver = "" }, true},
		{func(o *Options) { o.Backend = BackendAccelerated; o.DeviceDriver = "no-such-driver" }, true},
		{func(o *Options) { o.Backend = BackendAccelerated; o.PollTimeout = 0 }, true},
		{func(o *Options) { o.Backend = Backend(9) }, true},
		{func(o *Options) { o.OutputFile = "frame.jpg" }, true},
		{func(o *Options) { o.OutputFile = "frame.png" }, false},
		{func(o *Options) { o.Engine = intersect.KindBVH }, false},
		{func(o *Options) { o.Engine = intersect.Kind(7) }, true},
	}

	for index, s := range specs {
		opts := DefaultOptions()
		s.mutate(&opts)
		err := opts.Validate()
		if s.expErr != (err != nil) {
			t.Fatalf("[spec %d] unexpected validation result: %v", index, err)
		}
		if err != nil && !errors.Is(err, tracer.ErrConfiguration) {
			t.Fatalf("[spec %d] expected ErrConfiguration; got %v", index, err)
		}
	}
}

func TestBackendsProduceSameImage(t *testing.T) {
	sc := testScene(t, 24, 16)

	swOpts := DefaultOptions()
	swOpts.Workers = 3
	gridOpts := DefaultOptions()
	gridOpts.Engine = intersect.KindGrid
	bvhOpts := DefaultOptions()
	bvhOpts.Engine = intersect.KindBVH
	hwOpts := DefaultOptions()
	hwOpts.Backend = BackendAccelerated
	hwOpts.PollTimeout = 10 * time.Second

	var stats []FrameStats
	var frames [][]types.Color
	for index, opts := range []Options{swOpts, gridOpts, bvhOpts, hwOpts} {
		r, err := NewDefault(sc, opts)
		if err != nil {
			t.Fatalf("[spec %d] unexpected error: %v", index, err)
		}

		f, err := r.Render(context.Background())
		if err != nil {
			t.Fatalf("[spec %d] unexpected render error: %v", index, err)
		}

		var pixels []types.Color
		for y := 0; y < f.Height(); y++ {
			for x := 0; x < f.Width(); x++ {
				c, _ := f.Pixel(x, y)
				pixels = append(pixels, c)
			}
		}
		frames = append(frames, pixels)
		stats = append(stats, r.Stats())

		if err = r.Close(); err != nil {
			t.Fatal(err)
		}
		if _, err = r.Render(context.Background()); !errors.Is(err, tracer.ErrTracerClosed) {
			t.Fatalf("[spec %d] expected ErrTracerClosed after Close; got %v", index, err)
		}
	}

	for index, pixels := range frames[1:] {
		for idx, c := range pixels {
			if c != frames[0][idx] {
				t.Fatalf("[spec %d] expected pixel %d to be %v; got %v", index+1, idx, frames[0][idx], c)
			}
		}
	}

	if stats[0].TracerId != "cpu" || stats[3].TracerId != "emu" || stats[3].Backend != BackendAccelerated {
		t.Fatalf("unexpected tracer ids %q, %q", stats[0].TracerId, stats[3].TracerId)
	}
	for index, s := range stats {
		if s.Rays != 24*16 || s.Triangles != 2 || s.Hits == 0 || s.FrameW != 24 || s.FrameH != 16 {
			t.Fatalf("[spec %d] unexpected stats %+v", index, s)
		}
	}
}

func TestUnsupportedDriver(t *testing.T) {
	opts := DefaultOptions()
	opts.Backend = BackendAccelerated
	opts.DeviceDriver = "no-such-driver"

	if err := opts.Validate(); !errors.Is(err, tracer.ErrConfiguration) {
		t.Fatalf("expected Validate to return ErrConfiguration; got %v", err)
	}
	if _, err := NewDefault(testScene(t, 2, 2), opts); !errors.Is(err, tracer.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration; got %v", err)
	}
}

func TestCapacityExceeded(t *testing.T) {
	opts := DefaultOptions()
	opts.Backend = BackendAccelerated

	if _, err := NewDefault(testScene(t, 1000, 1000), opts); !errors.Is(err, tracer.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded; got %v", err)
	}
}

func TestInvalidScene(t *testing.T) {
	if _, err := NewDefault(nil, DefaultOptions()); !errors.Is(err, ErrSceneNotDefined) {
		t.Fatalf("expected ErrSceneNotDefined; got %v", err)
	}

	sc := testScene(t, 2, 2)
	sc.Materials = nil
	if _, err := NewDefault(sc, DefaultOptions()); !errors.Is(err, ErrMaterialNotDefined) {
		t.Fatalf("expected ErrMaterialNotDefined; got %v", err)
	}
}

func TestRenderInterrupted(t *testing.T) {
	r, err := NewDefault(testScene(t, 4, 4), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err = r.Render(ctx); !errors.Is(err, ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted; got %v", err)
	}
}

func TestSave(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "out.ppm")
	opts := DefaultOptions()
	opts.OutputFile = outFile

	r, err := NewDefault(testScene(t, 4, 3), opts)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	f, err := r.Render(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err = r.Save(f); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatal(err)
	}
	expHeader := "P6\n4 3\n255\n"
	if string(data[:len(expHeader)]) != expHeader || len(data) != len(expHeader)+4*3*3 {
		t.Fatalf("unexpected PPM output (%d bytes)", len(data))
	}
}

func testScene(t *testing.T, hres, vres int) *scene.Scene {
	cam, err := scene.NewCamera(types.XYZ(0, 0, 2), types.XYZ(0, 0, 0), types.XYZ(0, 1, 0), 60, hres, vres)
	if err != nil {
		t.Fatal(err)
	}

	mesh := scene.NewMesh("quad")
	mesh.AddTriangle(scene.NewTriangle(types.XYZ(-1, -1, 0), types.XYZ(1, -1, 0), types.XYZ(1, 1, 0)))
	mesh.AddTriangle(scene.NewTriangle(types.XYZ(-1, -1, 0), types.XYZ(1, 1, 0), types.XYZ(-1, 1, -0.5)))

	sc := scene.NewScene()
	sc.SetCamera(cam)
	sc.Background = types.RGB(0.2, 0.2, 0.2)
	if err = sc.AddMesh(mesh); err != nil {
		t.Fatal(err)
	}
	if err = sc.AddMaterial(scene.NewPhong("red", types.RGB(1, 0, 0), 0.2, 0.7, types.White, 0.4, 8)); err != nil {
		t.Fatal(err)
	}
	sc.AddLight(scene.NewAmbientLight(types.White, 1))
	sc.AddLight(scene.NewPointLight(types.White, 3*math.Pi, types.XYZ(1, 1, 3)))
	return sc
}
