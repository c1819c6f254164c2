// Package main provides the tile-locator command: it follows a single tile
// under a calibrated camera, or extrudes every tile in view to solids.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tile-locator/internal/calibration"
	"tile-locator/internal/capture"
	"tile-locator/internal/config"
	"tile-locator/internal/logging"
	"tile-locator/internal/pipeline"
	"tile-locator/internal/version"
	"tile-locator/ui/display"
	"tile-locator/ui/prefs"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	flagConfig      = "config"
	flagCalibration = "calibration"
	flagInput       = "input"
	flagOutput      = "output"
	flagHeadless    = "headless"
	flagLogLevel    = "log-level"
	flagRectify     = "rectify"
)

func main() {
	app := &cli.App{
		Name:    "tile-locator",
		Usage:   "locate a rectangular tile under a calibrated camera",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "YAML settings file",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "override the configured log level",
			},
			&cli.BoolFlag{
				Name:  flagHeadless,
				Usage: "run without the preview window",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "locate",
				Usage: "follow a single tile and log its world pose",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagCalibration,
						Usage: "calibration document (overrides the config)",
					},
					&cli.StringFlag{
						Name:     flagInput,
						Aliases:  []string{"i"},
						Usage:    "camera index, video file or still image",
						Required: true,
					},
				},
				Action: locateAction,
			},
			{
				Name:  "find",
				Usage: "find every tile in view and save extruded solids on request",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     flagInput,
						Aliases:  []string{"i"},
						Usage:    "camera index, video file or still image",
						Required: true,
					},
					&cli.StringFlag{
						Name:    flagOutput,
						Aliases: []string{"o"},
						Usage:   "mesh document to write (overrides the config)",
					},
					&cli.BoolFlag{
						Name:  flagRectify,
						Usage: "undistort frames with the configured calibration first",
					},
				},
				Action: findAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "tile-locator:", err)
		os.Exit(1)
	}
}

type env struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
}

func setup(c *cli.Context, name string) (*env, error) {
	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	level := cfg.LogLevel
	if l := c.String(flagLogLevel); l != "" {
		level = l
	}
	logger, err := logging.New(name, level)
	if err != nil {
		return nil, err
	}
	logger.Infof("tile-locator %s", version.String())
	return &env{cfg: cfg, logger: logger}, nil
}

// interactive returns the preview window when one is wanted, otherwise a
// fixed input built from the config.
func (e *env) interactive(c *cli.Context) (pipeline.InputProvider, pipeline.Display, func() error, error) {
	initial := pipeline.InputFromParams(e.cfg.DetectionParams())
	if c.Bool(flagHeadless) || !e.cfg.Display.Enabled {
		return pipeline.StaticInput(initial), nil, func() error { return nil }, nil
	}

	palette, err := display.ParsePalette(e.cfg.Display.ContourColor, e.cfg.Display.CornerColor,
		e.cfg.Display.AxisColor, e.cfg.Display.HullColor)
	if err != nil {
		return nil, nil, nil, err
	}
	win := display.NewWindow(display.Options{
		Name:         e.cfg.Display.Window,
		MaxThreshold: e.cfg.Display.MaxThreshold,
		MaxArea:      e.cfg.Display.MaxArea,
		WaitMillis:   e.cfg.Display.WaitMillis,
		Palette:      palette,
		Initial:      initial,
		Prefs:        prefs.Load(),
		Logger:       e.logger,
	})
	return win, win, win.Close, nil
}

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func locateAction(c *cli.Context) (err error) {
	e, err := setup(c, "locate")
	if err != nil {
		return err
	}
	defer e.logger.Sync()

	calibPath := e.cfg.Calibration.File
	if p := c.String(flagCalibration); p != "" {
		calibPath = p
	}
	calib, err := calibration.Load(calibPath)
	if err != nil {
		return err
	}

	src, err := capture.Open(c.String(flagInput), e.cfg.CaptureOptions())
	if err != nil {
		return err
	}

	input, disp, closeUI, err := e.interactive(c)
	if err != nil {
		return multierr.Append(err, src.Release())
	}
	defer func() { err = multierr.Append(err, closeUI()) }()

	loc, err := pipeline.NewLocator(pipeline.LocatorConfig{
		Source:          src,
		Calibration:     calib,
		Anchor:          e.cfg.Anchor(),
		Input:           input,
		Display:         disp,
		Logger:          e.logger,
		Params:          e.cfg.DetectionParams(),
		ArcLengthFactor: e.cfg.Detection.ArcLengthFactor,
		SkipRectify:     !e.cfg.Detection.Rectify,
	})
	if err != nil {
		return multierr.Append(err, src.Release())
	}

	ctx, cancel := signalContext(c)
	defer cancel()
	err = loc.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	if pose, ok := loc.Current(); ok {
		w := pose.World
		e.logger.Infow("Locator: last pose",
			"cycle", pose.Cycle,
			"x", w.Centroid.X, "y", w.Centroid.Y, "z", w.Centroid.Z,
			"orientation", w.Orientation)
	}
	return err
}

func findAction(c *cli.Context) (err error) {
	e, err := setup(c, "find")
	if err != nil {
		return err
	}
	defer e.logger.Sync()

	output := e.cfg.Mesh.Output
	if o := c.String(flagOutput); o != "" {
		output = o
	}

	var rectifier *calibration.Rectifier
	if c.Bool(flagRectify) {
		calib, err := calibration.Load(e.cfg.Calibration.File)
		if err != nil {
			return err
		}
		rectifier = calibration.NewRectifier(calib)
	}

	src, err := capture.Open(c.String(flagInput), e.cfg.CaptureOptions())
	if err != nil {
		if rectifier != nil {
			err = multierr.Append(err, rectifier.Close())
		}
		return err
	}

	input, disp, closeUI, err := e.interactive(c)
	if err != nil {
		err = multierr.Append(err, src.Release())
		if rectifier != nil {
			err = multierr.Append(err, rectifier.Close())
		}
		return err
	}
	defer func() { err = multierr.Append(err, closeUI()) }()

	if disp == nil {
		// nothing would ever request a save without a window
		in := input.NextInput()
		in.ShouldSave = true
		input = &oneShot{in: in}
	}

	f, err := pipeline.NewFinder(pipeline.FinderConfig{
		Source:            src,
		Input:             input,
		Display:           disp,
		Logger:            e.logger,
		Rectifier:         rectifier,
		Params:            e.cfg.DetectionParams(),
		Thickness:         e.cfg.Mesh.Thickness,
		SimplifyTolerance: e.cfg.Mesh.SimplifyTolerance,
		Output:            output,
	})
	if err != nil {
		err = multierr.Append(err, src.Release())
		if rectifier != nil {
			err = multierr.Append(err, rectifier.Close())
		}
		return err
	}

	ctx, cancel := signalContext(c)
	defer cancel()
	err = f.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// oneShot yields a single snapshot and then asks the loop to exit.
type oneShot struct {
	in   pipeline.Input
	used bool
}

func (o *oneShot) NextInput() pipeline.Input {
	if o.used {
		return pipeline.Input{ShouldExit: true}
	}
	o.used = true
	return o.in
}
