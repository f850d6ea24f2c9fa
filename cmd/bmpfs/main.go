// Command bmpfs mounts a single BMP image as a FUSE filesystem, the way
// the teacher's own cmd/main.go drives disk-image operations through a
// single urfave/cli command.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/sena2k/bmpfs/bmpfsconfig"
	"github.com/sena2k/bmpfs/fuseadapter"
	"github.com/sena2k/bmpfs/imagepresets"
	"github.com/sena2k/bmpfs/volume"
)

const (
	defaultWidth  int32 = 2048
	defaultHeight int32 = 2048
)

func main() {
	app := &cli.App{
		Name:      "bmpfs",
		Usage:     "mount a BMP image as a filesystem",
		ArgsUsage: "IMAGE MOUNTPOINT",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "preset",
				Usage: fmt.Sprintf("named canvas size to provision a missing image with (one of: %v)", imagepresets.Slugs()),
			},
			&cli.Int64Flag{
				Name:  "width",
				Usage: "canvas width in pixels, overrides --preset, only used when provisioning",
			},
			&cli.Int64Flag{
				Name:  "height",
				Usage: "canvas height in pixels, overrides --preset, only used when provisioning",
			},
			&cli.BoolFlag{
				Name:  "read-only",
				Usage: "reject any operation that would mutate the image",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "log at debug level",
			},
		},
		Action: mount,
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("bmpfs exited with an error")
	}
}

func mount(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("expected exactly two arguments: IMAGE MOUNTPOINT", 1)
	}
	imagePath := c.Args().Get(0)
	mountpoint := c.Args().Get(1)

	logger := logrus.StandardLogger()
	if c.Bool("debug") {
		logger.SetLevel(logrus.DebugLevel)
	}

	opts := bmpfsconfig.Options{
		ImagePath: imagePath,
		Preset:    c.String("preset"),
		Width:     int32(c.Int64("width")),
		Height:    int32(c.Int64("height")),
		ReadOnly:  c.Bool("read-only"),
	}
	width, height, unknownPreset := opts.ResolveDimensions(defaultWidth, defaultHeight)
	if unknownPreset {
		return cli.Exit(fmt.Sprintf("unknown preset %q, known presets: %v", opts.Preset, imagepresets.Slugs()), 1)
	}

	vol, mountErr := volume.Mount(volume.Options{
		ImagePath:       imagePath,
		ProvisionWidth:  width,
		ProvisionHeight: height,
		Logger:          logger,
	})
	if mountErr != nil {
		return cli.Exit(fmt.Sprintf("mounting %s: %s", imagePath, mountErr.Error()), 1)
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received interrupt, unmounting")
		cancel()
	}()

	logger.WithFields(logrus.Fields{
		"image":      imagePath,
		"mountpoint": mountpoint,
		"read_only":  opts.ReadOnly,
	}).Info("mounting bmpfs")

	if err := fuseadapter.Serve(ctx, vol, mountpoint, opts.ReadOnly); err != nil {
		return cli.Exit(fmt.Sprintf("serving %s: %s", mountpoint, err.Error()), 1)
	}
	return nil
}
