package cpu

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/achilleasa/darkray/frame"
	"github.com/achilleasa/darkray/scene"
	"github.com/achilleasa/darkray/tracer"
	"github.com/achilleasa/darkray/tracer/intersect"
	"github.com/achilleasa/darkray/types"
)

func TestRenderSingleTriangle(t *testing.T) {
	bg := types.RGB(0.1, 0.2, 0.3)
	// Only the ray through pixel (row 0, col 1) hits the triangle at (0.25, 0.25, -5).
	expHit := types.White.Scale(5 / math.Sqrt(25.125))

	specs := [][]Option{
		{WithWorkers(1)},
		{WithWorkers(4)},
		{WithWorkers(1), WithEngine(intersect.KindGrid)},
		{WithWorkers(0), WithEngine(intersect.KindGrid)},
		{WithWorkers(2), WithEngine(intersect.KindBVH)},
	}

	for index, opts := range specs {
		sc := singleTriangleScene(t, bg)
		tr, err := NewTracer("cpu", sc, opts...)
		if err != nil {
			t.Fatalf("[spec %d] unexpected error: %v", index, err)
		}

		f := mustFrame(t, 2, 2)
		if err = tr.Render(context.Background(), f); err != nil {
			t.Fatalf("[spec %d] unexpected render error: %v", index, err)
		}

		for row := 0; row < 2; row++ {
			for col := 0; col < 2; col++ {
				exp := bg
				if row == 0 && col == 1 {
					exp = expHit
				}
				got, _ := f.Pixel(col, row)
				if !got.ApproxEqual(exp, 1e-9) {
					t.Fatalf("[spec %d] expected pixel (row %d, col %d) to be %v; got %v", index, row, col, exp, got)
				}
			}
		}

		stats := tr.Stats()
		if stats.Rays != 4 || stats.Hits != 1 || stats.Triangles != 1 {
			t.Fatalf("[spec %d] unexpected stats %+v", index, stats)
		}
		if len(stats.Stages) == 0 || stats.RenderTime <= 0 {
			t.Fatalf("[spec %d] expected render timings to be tracked; got %+v", index, stats)
		}
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	sc := fanScene(t, 40, 30)

	var frames []*frame.Frame
	for _, opts := range [][]Option{{WithWorkers(1)}, {WithWorkers(7)}, {WithWorkers(3), WithEngine(intersect.KindGrid)}, {WithWorkers(5), WithEngine(intersect.KindBVH)}} {
		tr, err := NewTracer("cpu", sc, opts...)
		if err != nil {
			t.Fatal(err)
		}
		f := mustFrame(t, 40, 30)
		if err = tr.Render(context.Background(), f); err != nil {
			t.Fatal(err)
		}
		frames = append(frames, f)
	}

	hits := 0
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			exp, _ := frames[0].Pixel(x, y)
			if exp != sc.Background {
				hits++
			}
			for index, f := range frames[1:] {
				if got, _ := f.Pixel(x, y); got != exp {
					t.Fatalf("[frame %d] expected pixel (%d, %d) to be %v; got %v", index+1, x, y, exp, got)
				}
			}
		}
	}
	if hits == 0 {
		t.Fatal("expected some pixels to hit the mesh")
	}
}

func TestRenderFrameMismatch(t *testing.T) {
	tr, err := NewTracer("cpu", singleTriangleScene(t, types.Black))
	if err != nil {
		t.Fatal(err)
	}

	if err = tr.Render(context.Background(), mustFrame(t, 3, 2)); !errors.Is(err, tracer.ErrFrameMismatch) {
		t.Fatalf("expected ErrFrameMismatch; got %v", err)
	}
}

func TestRenderCancelled(t *testing.T) {
	tr, err := NewTracer("cpu", singleTriangleScene(t, types.Black), WithWorkers(2))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err = tr.Render(ctx, mustFrame(t, 2, 2)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled; got %v", err)
	}
}

func TestRenderAfterClose(t *testing.T) {
	tr, err := NewTracer("cpu", singleTriangleScene(t, types.Black))
	if err != nil {
		t.Fatal(err)
	}
	if err = tr.Close(); err != nil {
		t.Fatal(err)
	}
	if err = tr.Close(); err != nil {
		t.Fatalf("expected a second Close to succeed; got %v", err)
	}

	if err = tr.Render(context.Background(), mustFrame(t, 2, 2)); !errors.Is(err, tracer.ErrTracerClosed) {
		t.Fatalf("expected ErrTracerClosed; got %v", err)
	}
}

func TestNewTracerInvalidScene(t *testing.T) {
	if _, err := NewTracer("cpu", scene.NewScene()); !errors.Is(err, scene.ErrCameraNotDefined) {
		t.Fatalf("expected ErrCameraNotDefined; got %v", err)
	}
}

func singleTriangleScene(t *testing.T, bg types.Color) *scene.Scene {
	fov := 2 * math.Atan(0.1) * 180 / math.Pi
	cam, err := scene.NewCamera(types.XYZ(0, 0, 0), types.XYZ(0, 0, -1), types.XYZ(0, 1, 0), fov, 2, 2)
	if err != nil {
		t.Fatal(err)
	}

	mesh := scene.NewMesh("triangle")
	mesh.AddTriangle(scene.NewTriangle(types.XYZ(0, 0, -5), types.XYZ(1, 0, -5), types.XYZ(0, 1, -5)))

	sc := scene.NewScene()
	sc.SetCamera(cam)
	sc.Background = bg
	mustAdd(t, sc.AddMesh(mesh))
	mustAdd(t, sc.AddMaterial(scene.NewMatte("white", types.White, 0, 1)))
	sc.AddLight(scene.NewPointLight(types.White, math.Pi, types.XYZ(0, 0, 0)))
	return sc
}

// A triangle fan around the view axis with overlapping layers.
func fanScene(t *testing.T, hres, vres int) *scene.Scene {
	cam, err := scene.NewCamera(types.XYZ(0, 0, 3), types.XYZ(0, 0, 0), types.XYZ(0, 1, 0), 60, hres, vres)
	if err != nil {
		t.Fatal(err)
	}

	mesh := scene.NewMesh("fan")
	for layer := 0; layer < 2; layer++ {
		z := -float64(layer) * 0.5
		for i := 0; i < 12; i++ {
			a0 := float64(i) * 2 * math.Pi / 12
			a1 := float64(i+1) * 2 * math.Pi / 12
			r := 1.0 + float64(layer)
			mesh.AddTriangle(scene.NewTriangle(
				types.XYZ(0, 0, z),
				types.XYZ(r*math.Cos(a0), r*math.Sin(a0), z+0.2*float64(i%3)),
				types.XYZ(r*math.Cos(a1), r*math.Sin(a1), z),
			))
		}
	}

	sc := scene.NewScene()
	sc.SetCamera(cam)
	sc.Background = types.RGB(0, 0, 0.5)
	mustAdd(t, sc.AddMesh(mesh))
	mustAdd(t, sc.AddMaterial(scene.NewPhong("glossy", types.RGB(1, 0.5, 0.25), 0.1, 0.8, types.White, 0.3, 20)))
	sc.AddLight(scene.NewAmbientLight(types.White, 1))
	sc.AddLight(scene.NewPointLight(types.White, 4, types.XYZ(2, 2, 4)))
	sc.AddLight(scene.NewDirectionalLight(types.RGB(0.5, 0.5, 1), 1, types.XYZ(0, -1, -1)))
	return sc
}

func mustFrame(t *testing.T, w, h int) *frame.Frame {
	f, err := frame.New(w, h)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func mustAdd(t *testing.T, err error) {
	if err != nil {
		t.Fatal(err)
	}
}

func TestUnknownEngine(t *testing.T) {
	_, err := NewTracer("cpu", singleTriangleScene(t, types.Black), WithEngine(intersect.Kind(9)))
	if !errors.Is(err, tracer.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration; got %v", err)
	}
}
