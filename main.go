package main

import (
	"os"

	"github.com/achilleasa/darkray/cmd"
	"github.com/achilleasa/darkray/log"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "darkray"
	app.Usage = "render triangle meshes with a software or hardware-accelerated ray tracer"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:   "log-level",
			Usage:  "set the log level explicitly (debug, info, notice, warning, error)",
			EnvVar: "DARKRAY_LOG_LEVEL",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "render",
			Usage: "render a single frame",
			Description: `
Load a .dark scene (or a plain wavefront .obj mesh), trace one primary ray per
pixel and write the shaded frame to the output file. The image format is
selected by the output file extension (.ppm, .png, .bmp, .tif).

Without --accel the frame is rendered by the software tracer. With --accel the
intersection queries run on the accelerator exposed by the selected device
driver; shading always runs on the host.`,
			ArgsUsage: "scene_file",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "out, o",
					Value: "frame.ppm",
					Usage: "image filename for the rendered frame",
				},
				cli.BoolFlag{
					Name:  "accel",
					Usage: "offload intersection queries to an accelerator device",
				},
				cli.StringFlag{
					Name:  "device",
					Value: "emu",
					Usage: "accelerator device driver (emu, xdma, opencl)",
				},
				cli.StringFlag{
					Name:  "device-path",
					Usage: "driver-specific device path (e.g. /dev/xdma0 or an opencl device name)",
				},
				cli.IntFlag{
					Name:  "workers",
					Usage: "number of software tracer workers; 0 uses all CPUs",
				},
				cli.StringFlag{
					Name:  "index",
					Value: "linear",
					Usage: "acceleration structure for software intersection queries (linear, grid, bvh)",
				},
				cli.DurationFlag{
					Name:  "poll-timeout",
					Usage: "maximum time to wait for the accelerator to finish",
				},
				cli.StringFlag{
					Name:  "background",
					Usage: "override the scene background color (r,g,b)",
				},
			},
			Action: cmd.RenderFrame,
		},
		{
			Name:   "list-devices",
			Usage:  "list available accelerator drivers and opencl devices",
			Action: cmd.ListDevices,
		},
		{
			Name:      "scene-info",
			Usage:     "print information about a scene file",
			ArgsUsage: "scene_file",
			Action:    cmd.ShowSceneInfo,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.New("darkray").Error(err)
		os.Exit(1)
	}
}
