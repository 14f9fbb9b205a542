package accel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/achilleasa/darkray/frame"
	"github.com/achilleasa/darkray/scene"
	"github.com/achilleasa/darkray/tracer"
	"github.com/achilleasa/darkray/tracer/accel/device"
	"github.com/achilleasa/darkray/tracer/accel/device/emu"
	"github.com/achilleasa/darkray/tracer/accel/layout"
	"github.com/achilleasa/darkray/tracer/cpu"
	"github.com/achilleasa/darkray/types"
)

func TestMatchesSoftwareBackend(t *testing.T) {
	specs := []*scene.Scene{
		singleTriangleScene(t),
		fanScene(t, 32, 24),
	}

	for index, sc := range specs {
		swTracer, err := cpu.NewTracer("cpu", sc, cpu.WithWorkers(1))
		if err != nil {
			t.Fatal(err)
		}
		hwTracer, err := NewWithDevice("accel", sc, emu.New())
		if err != nil {
			t.Fatal(err)
		}

		exp := mustFrame(t, sc.Camera.HRes, sc.Camera.VRes)
		got := mustFrame(t, sc.Camera.HRes, sc.Camera.VRes)
		if err = swTracer.Render(context.Background(), exp); err != nil {
			t.Fatalf("[spec %d] software render failed: %v", index, err)
		}
		if err = hwTracer.Render(context.Background(), got); err != nil {
			t.Fatalf("[spec %d] accelerated render failed: %v", index, err)
		}

		for y := 0; y < exp.Height(); y++ {
			for x := 0; x < exp.Width(); x++ {
				expPixel, _ := exp.Pixel(x, y)
				gotPixel, _ := got.Pixel(x, y)
				if expPixel != gotPixel {
					t.Fatalf("[spec %d] expected pixel (%d, %d) to be %v; got %v", index, x, y, expPixel, gotPixel)
				}
			}
		}

		if swTracer.Stats().Hits != hwTracer.Stats().Hits {
			t.Fatalf("[spec %d] expected %d hits; got %d", index, swTracer.Stats().Hits, hwTracer.Stats().Hits)
		}
		if hwTracer.State() != Idle {
			t.Fatalf("[spec %d] expected tracer to return to Idle; got %s", index, hwTracer.State())
		}
		if err = hwTracer.Close(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRenderTwice(t *testing.T) {
	sc := singleTriangleScene(t)
	dev := emu.New()
	tr, err := NewWithDevice("accel", sc, dev)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	for i := 0; i < 2; i++ {
		if err = tr.Render(context.Background(), mustFrame(t, 2, 2)); err != nil {
			t.Fatalf("render %d failed: %v", i, err)
		}
	}
	if dev.Runs() != 2 {
		t.Fatalf("expected 2 core runs; got %d", dev.Runs())
	}
}

func TestStateTransitions(t *testing.T) {
	var got []string
	hook := func(from, to State) {
		got = append(got, fmt.Sprintf("%s->%s", from, to))
	}

	tr, err := NewWithDevice("accel", singleTriangleScene(t), emu.New(emu.WithLatency(2*time.Millisecond)), WithTransitionHook(hook))
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	if err = tr.Render(context.Background(), mustFrame(t, 2, 2)); err != nil {
		t.Fatal(err)
	}

	exp := []string{
		"Idle->BuffersAllocated",
		"BuffersAllocated->DataTransferred",
		"DataTransferred->Started",
		"Started->Polling",
		"Polling->ResultsTransferred",
		"ResultsTransferred->Shaded",
		"Shaded->Idle",
	}
	if strings.Join(got, ",") != strings.Join(exp, ",") {
		t.Fatalf("expected transitions:\n%v\ngot:\n%v", exp, got)
	}
}

func TestRegisterProtocol(t *testing.T) {
	sc := singleTriangleScene(t)
	dev := &recordingDevice{Device: emu.New(emu.WithLatency(2 * time.Millisecond))}
	tr, err := NewWithDevice("accel", sc, dev, WithPollInterval(0))
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	if err = tr.Render(context.Background(), mustFrame(t, 2, 2)); err != nil {
		t.Fatal(err)
	}

	memMap := layout.DefaultMemoryMap
	expPrefix := []string{
		"read AP_CTRL",
		"write TRI_COUNT=1",
		fmt.Sprintf("write TRI_IDS=%d", memMap.TriIds),
		fmt.Sprintf("write TRI_DATA=%d", memMap.Tris),
		"write RAY_COUNT=4",
		fmt.Sprintf("write RAY_DATA=%d", memMap.Rays),
		fmt.Sprintf("write OUT_IDS=%d", memMap.OutIds),
		fmt.Sprintf("write OUT_T=%d", memMap.OutT),
		fmt.Sprintf("dma-write %d:%d", memMap.Tris, layout.TriangleStride),
		fmt.Sprintf("dma-write %d:%d", memMap.TriIds, layout.TriIdStride),
		fmt.Sprintf("dma-write %d:%d", memMap.Rays, 4*layout.RayStride),
		"write AP_CTRL=1",
		"read AP_CTRL",
	}
	expSuffix := []string{
		"read AP_CTRL",
		fmt.Sprintf("dma-read %d:%d", memMap.OutIds, 4*layout.OutIdStride),
		fmt.Sprintf("dma-read %d:%d", memMap.OutT, 4*layout.OutTStride),
	}

	ops := dev.ops
	if len(ops) < len(expPrefix)+len(expSuffix) {
		t.Fatalf("expected at least %d device operations; got %v", len(expPrefix)+len(expSuffix), ops)
	}
	for idx, exp := range expPrefix {
		if ops[idx] != exp {
			t.Fatalf("expected operation %d to be %q; got %q (all ops: %v)", idx, exp, ops[idx], ops)
		}
	}
	for idx, exp := range expSuffix {
		opIdx := len(ops) - len(expSuffix) + idx
		if ops[opIdx] != exp {
			t.Fatalf("expected operation %d to be %q; got %q (all ops: %v)", opIdx, exp, ops[opIdx], ops)
		}
	}
	for _, op := range ops[len(expPrefix) : len(ops)-len(expSuffix)] {
		if op != "read AP_CTRL" {
			t.Fatalf("expected only AP_CTRL reads while polling; got %q", op)
		}
	}
}

func TestDeviceFailures(t *testing.T) {
	type spec struct {
		name   string
		dev    *faultyDevice
		expErr error
	}
	specs := []spec{
		{"register write", &faultyDevice{failWriteReg: true}, tracer.ErrTransferFailure},
		{"dma write", &faultyDevice{failWriteDMA: true}, tracer.ErrTransferFailure},
		{"dma read", &faultyDevice{failReadDMA: true}, tracer.ErrTransferFailure},
		{"bad hit id", &faultyDevice{badHitId: true}, tracer.ErrTransferFailure},
		{"core run failure", &faultyDevice{badTriCount: true}, tracer.ErrTransferFailure},
		{"busy core", &faultyDevice{busy: true}, tracer.ErrDeviceUnavailable},
		{"stuck core", &faultyDevice{stuck: true}, tracer.ErrDeviceTimeout},
	}

	for index, s := range specs {
		s.dev.Device = emu.New()
		tr, err := NewWithDevice("accel", singleTriangleScene(t), s.dev, WithPollTimeout(20*time.Millisecond))
		if err != nil {
			t.Fatal(err)
		}

		f := mustFrame(t, 2, 2)
		err = tr.Render(context.Background(), f)
		if !errors.Is(err, s.expErr) {
			t.Fatalf("[spec %d: %s] expected error %v; got %v", index, s.name, s.expErr, err)
		}
		if tr.State() != Failed {
			t.Fatalf("[spec %d: %s] expected tracer to be in Failed state; got %s", index, s.name, tr.State())
		}
		if tr.buffers != nil {
			t.Fatalf("[spec %d: %s] expected host buffers to be released", index, s.name)
		}
		if err = tr.Render(context.Background(), f); !errors.Is(err, tracer.ErrTracerFailed) {
			t.Fatalf("[spec %d: %s] expected ErrTracerFailed on retry; got %v", index, s.name, err)
		}

		if err = tr.Close(); err != nil {
			t.Fatal(err)
		}
		if s.dev.closeCount != 1 {
			t.Fatalf("[spec %d: %s] expected device to be closed once; got %d", index, s.name, s.dev.closeCount)
		}
	}
}

func TestRenderCancelledWhilePolling(t *testing.T) {
	dev := &faultyDevice{Device: emu.New(), stuck: true}
	tr, err := NewWithDevice("accel", singleTriangleScene(t), dev, WithPollTimeout(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err = tr.Render(ctx, mustFrame(t, 2, 2)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded; got %v", err)
	}
}

func TestOpenFailures(t *testing.T) {
	sc := singleTriangleScene(t)

	if _, err := New("accel", sc, "no-such-driver", ""); !errors.Is(err, tracer.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration; got %v", err)
	}

	device.Register("test-unavailable", func(string) (device.Device, error) {
		return nil, errors.New("permission denied")
	})
	if _, err := New("accel", sc, "test-unavailable", ""); !errors.Is(err, tracer.ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable; got %v", err)
	}

	tr, err := New("accel", sc, emu.DriverName, "")
	if err != nil {
		t.Fatal(err)
	}
	tr.Close()
}

func TestCapacity(t *testing.T) {
	type spec struct {
		numTris, numRays int
		expErr           bool
	}
	specs := []spec{
		{layout.MaxTriangles, layout.MaxRays, false},
		{layout.MaxTriangles + 1, 1, true},
		{1, layout.MaxRays + 1, true},
	}
	for index, s := range specs {
		err := CheckCapacity(s.numTris, s.numRays)
		if s.expErr != errors.Is(err, tracer.ErrCapacityExceeded) {
			t.Fatalf("[spec %d] unexpected error %v", index, err)
		}
	}

	// 1280x720 fits; 1281x720 does not.
	sc := singleTriangleScene(t)
	cam, err := scene.NewCamera(types.XYZ(0, 0, 0), types.XYZ(0, 0, -1), types.XYZ(0, 1, 0), 60, 1281, 720)
	if err != nil {
		t.Fatal(err)
	}
	sc.SetCamera(cam)

	dev := &faultyDevice{Device: emu.New()}
	if _, err = NewWithDevice("accel", sc, dev); !errors.Is(err, tracer.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded; got %v", err)
	}
	if dev.closeCount != 1 {
		t.Fatalf("expected device to be closed when tracer creation fails")
	}
}

func TestAllocBuffers(t *testing.T) {
	bufs, err := allocBuffers(2, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(bufs.tris) != 144 || len(bufs.triIds) != 8 || len(bufs.rays) != 144 || len(bufs.outT) != 24 || len(bufs.outIds) != 12 {
		t.Fatalf("unexpected buffer sizes")
	}

	if _, err = allocBuffers(-1, 1); !errors.Is(err, tracer.ErrAllocationFailure) {
		t.Fatalf("expected ErrAllocationFailure for a negative size; got %v", err)
	}
	if _, err = allocBuffers(1, math.MaxInt/2); !errors.Is(err, tracer.ErrAllocationFailure) {
		t.Fatalf("expected ErrAllocationFailure for an overflowing size; got %v", err)
	}
}

func TestStateMachine(t *testing.T) {
	type spec struct {
		from, to State
		exp      bool
	}
	specs := []spec{
		{Idle, BuffersAllocated, true},
		{Idle, Started, false},
		{Polling, ResultsTransferred, true},
		{Shaded, Idle, true},
		{Started, Failed, true},
		{Failed, Idle, false},
		{Failed, BuffersAllocated, false},
	}
	for index, s := range specs {
		if got := s.from.CanTransition(s.to); got != s.exp {
			t.Fatalf("[spec %d] expected %s -> %s to be %t; got %t", index, s.from, s.to, s.exp, got)
		}
	}
}

// A device wrapper that records every operation.
type recordingDevice struct {
	device.Device

	mutex sync.Mutex
	ops   []string
}

func (d *recordingDevice) record(op string) {
	d.mutex.Lock()
	d.ops = append(d.ops, op)
	d.mutex.Unlock()
}

func (d *recordingDevice) ReadReg(offset uint32) (uint64, error) {
	d.record("read " + device.RegName(offset))
	return d.Device.ReadReg(offset)
}

func (d *recordingDevice) WriteReg(offset uint32, value uint64) error {
	d.record(fmt.Sprintf("write %s=%d", device.RegName(offset), value))
	return d.Device.WriteReg(offset, value)
}

func (d *recordingDevice) WriteDMA(addr uint64, data []byte) error {
	d.record(fmt.Sprintf("dma-write %d:%d", addr, len(data)))
	return d.Device.WriteDMA(addr, data)
}

func (d *recordingDevice) ReadDMA(addr uint64, data []byte) error {
	d.record(fmt.Sprintf("dma-read %d:%d", addr, len(data)))
	return d.Device.ReadDMA(addr, data)
}

// A device wrapper that injects failures.
type faultyDevice struct {
	device.Device

	failWriteReg bool
	failWriteDMA bool
	failReadDMA  bool
	badHitId     bool
	badTriCount  bool
	busy         bool
	stuck        bool

	started    bool
	closeCount int
}

var errInjected = errors.New("injected failure")

func (d *faultyDevice) ReadReg(offset uint32) (uint64, error) {
	if offset == device.RegApCtrl && (d.busy || (d.stuck && d.started)) {
		return device.CtrlStart, nil
	}
	return d.Device.ReadReg(offset)
}

func (d *faultyDevice) WriteReg(offset uint32, value uint64) error {
	if d.failWriteReg && offset == device.RegRayCount {
		return errInjected
	}
	if d.badTriCount && offset == device.RegTriCount {
		value = layout.MaxTriangles + 1
	}
	if offset == device.RegApCtrl && value&device.CtrlStart != 0 {
		d.started = true
		if d.stuck {
			return nil
		}
	}
	return d.Device.WriteReg(offset, value)
}

func (d *faultyDevice) WriteDMA(addr uint64, data []byte) error {
	if d.failWriteDMA {
		return errInjected
	}
	return d.Device.WriteDMA(addr, data)
}

func (d *faultyDevice) ReadDMA(addr uint64, data []byte) error {
	if d.failReadDMA {
		return errInjected
	}
	if err := d.Device.ReadDMA(addr, data); err != nil {
		return err
	}
	if d.badHitId && addr == layout.DefaultMemoryMap.OutIds {
		layout.PutInt32At(data, 0, 99)
	}
	return nil
}

func (d *faultyDevice) Close() error {
	d.closeCount++
	return d.Device.Close()
}

func singleTriangleScene(t *testing.T) *scene.Scene {
	fov := 2 * math.Atan(0.1) * 180 / math.Pi
	cam, err := scene.NewCamera(types.XYZ(0, 0, 0), types.XYZ(0, 0, -1), types.XYZ(0, 1, 0), fov, 2, 2)
	if err != nil {
		t.Fatal(err)
	}

	mesh := scene.NewMesh("triangle")
	mesh.AddTriangle(scene.NewTriangle(types.XYZ(0, 0, -5), types.XYZ(1, 0, -5), types.XYZ(0, 1, -5)))

	sc := scene.NewScene()
	sc.SetCamera(cam)
	sc.Background = types.RGB(0.1, 0.2, 0.3)
	mustOk(t, sc.AddMesh(mesh))
	mustOk(t, sc.AddMaterial(scene.NewMatte("white", types.White, 0, 1)))
	sc.AddLight(scene.NewPointLight(types.White, math.Pi, types.XYZ(0, 0, 0)))
	return sc
}

func fanScene(t *testing.T, hres, vres int) *scene.Scene {
	cam, err := scene.NewCamera(types.XYZ(0, 0, 3), types.XYZ(0, 0, 0), types.XYZ(0, 1, 0), 60, hres, vres)
	if err != nil {
		t.Fatal(err)
	}

	mesh := scene.NewMesh("fan")
	for layer := 0; layer < 2; layer++ {
		z := -float64(layer) * 0.5
		r := 1.0 + float64(layer)
		for i := 0; i < 12; i++ {
			a0 := float64(i) * 2 * math.Pi / 12
			a1 := float64(i+1) * 2 * math.Pi / 12
			mesh.AddTriangle(scene.NewTriangle(
				types.XYZ(0, 0, z),
				types.XYZ(r*math.Cos(a0), r*math.Sin(a0), z+0.2*float64(i%3)),
				types.XYZ(r*math.Cos(a1), r*math.Sin(a1), z),
			))
		}
	}

	sc := scene.NewScene()
	sc.SetCamera(cam)
	mustOk(t, sc.AddMesh(mesh))
	mustOk(t, sc.AddMaterial(scene.NewPhong("glossy", types.RGB(1, 0.5, 0.25), 0.1, 0.8, types.White, 0.3, 20)))
	sc.AddLight(scene.NewAmbientLight(types.White, 1))
	sc.AddLight(scene.NewPointLight(types.White, 4, types.XYZ(2, 2, 4)))
	return sc
}

func mustFrame(t *testing.T, w, h int) *frame.Frame {
	f, err := frame.New(w, h)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func mustOk(t *testing.T, err error) {
	if err != nil {
		t.Fatal(err)
	}
}
