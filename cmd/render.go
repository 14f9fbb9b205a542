package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/achilleasa/darkray/renderer"
	"github.com/achilleasa/darkray/scene/reader"
	"github.com/achilleasa/darkray/tracer/intersect"
	"github.com/achilleasa/darkray/types"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Render a still frame.
func RenderFrame(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	if ctx.NArg() != 1 {
		return errors.New("missing scene file argument")
	}

	opts, err := renderOptions(ctx)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := reader.ReadScene(runCtx, ctx.Args().First())
	if err != nil {
		return err
	}

	if ctx.IsSet("background") {
		sc.Background, err = parseColor(ctx.String("background"))
		if err != nil {
			return err
		}
	}

	r, err := renderer.NewDefault(sc, opts)
	if err != nil {
		return err
	}
	defer r.Close()

	f, err := r.Render(runCtx)
	if err != nil {
		return err
	}

	if err = r.Save(f); err != nil {
		return err
	}

	logger.Noticef("frame statistics\n%s", formatFrameStats(r.Stats()))
	return nil
}

// Build renderer options from the command line flags.
func renderOptions(ctx *cli.Context) (renderer.Options, error) {
	var err error
	opts := renderer.DefaultOptions()

	if ctx.Bool("accel") {
		opts.Backend = renderer.BackendAccelerated
	}
	if ctx.IsSet("device") {
		opts.DeviceDriver = ctx.String("device")
	}
	opts.DevicePath = ctx.String("device-path")
	if workers := ctx.Int("workers"); workers > 0 {
		opts.Workers = workers
	} else if workers < 0 {
		return opts, fmt.Errorf("invalid worker count %d", workers)
	}
	if opts.Engine, err = intersect.ParseKind(ctx.String("index")); err != nil {
		return opts, err
	}
	if ctx.IsSet("poll-timeout") {
		opts.PollTimeout = ctx.Duration("poll-timeout")
	}
	if out := ctx.String("out"); out != "" {
		opts.OutputFile = out
	}

	return opts, opts.Validate()
}

// Parse an "r,g,b" color triplet.
func parseColor(value string) (types.Color, error) {
	tokens := strings.Split(value, ",")
	if len(tokens) != 3 {
		return types.Color{}, fmt.Errorf("invalid color %q; expected r,g,b", value)
	}

	var rgb [3]float64
	for idx, token := range tokens {
		v, err := strconv.ParseFloat(strings.TrimSpace(token), 64)
		if err != nil {
			return types.Color{}, fmt.Errorf("invalid color %q: %v", value, err)
		}
		rgb[idx] = v
	}
	return types.RGB(rgb[0], rgb[1], rgb[2]), nil
}

func formatFrameStats(stats renderer.FrameStats) string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf(
		"backend: %s (%s), frame: %dx%d, rays: %d, hits: %d, triangles: %d\n",
		stats.Backend, stats.TracerId, stats.FrameW, stats.FrameH, stats.Rays, stats.Hits, stats.Triangles,
	))

	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Stage", "Time", "% of render"})
	for _, stage := range stats.Stages {
		var percent float64
		if stats.RenderTime > 0 {
			percent = 100.0 * float64(stage.Time) / float64(stats.RenderTime)
		}
		table.Append([]string{
			stage.Name,
			stage.Time.String(),
			fmt.Sprintf("%02.1f %%", percent),
		})
	}
	table.Append([]string{"save", stats.SaveTime.String(), ""})
	table.Append([]string{"cpu time", stats.CPUTime.String(), ""})
	table.SetFooter([]string{"", "TOTAL", stats.RenderTime.String()})

	table.Render()
	return buf.String()
}
