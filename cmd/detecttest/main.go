// Command detecttest runs tile detection on a still image and prints what it
// found. With --out it also writes the annotated frame.
package main

import (
	"fmt"
	"os"

	"tile-locator/internal/capture"
	"tile-locator/internal/pipeline"
	"tile-locator/internal/tile"
	"tile-locator/internal/version"
	"tile-locator/pkg/geometry"
	"tile-locator/ui/display"

	"github.com/disintegration/imaging"
	"github.com/urfave/cli/v2"
)

func main() {
	def := tile.DefaultParams()
	app := &cli.App{
		Name:      "detecttest",
		Usage:     "run tile detection on an image",
		UsageText: "detecttest [options] <image>",
		Version:   version.String(),
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "threshold", Aliases: []string{"t"}, Value: def.Threshold, Usage: "binarization threshold"},
			&cli.Float64Flag{Name: "min-area", Value: def.MinArea, Usage: "smallest tile area in px²"},
			&cli.Float64Flag{Name: "max-area", Value: def.MaxArea, Usage: "largest tile area in px²"},
			&cli.StringFlag{Name: "mode", Value: def.Mode.String(), Usage: "binary or to_zero"},
			&cli.Float64Flag{Name: "factor", Value: tile.DefaultArcLengthFactor, Usage: "corner approximation tolerance"},
			&cli.IntFlag{Name: "width", Usage: "resize width (0 keeps the image size)"},
			&cli.IntFlag{Name: "height", Usage: "resize height"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write the annotated frame here"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "detecttest:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.ShowAppHelp(c)
	}
	mode, err := tile.ParseThresholdMode(c.String("mode"))
	if err != nil {
		return err
	}
	p := tile.DefaultParams()
	p.Threshold = c.Int("threshold")
	p.MinArea = c.Float64("min-area")
	p.MaxArea = c.Float64("max-area")
	p.Mode = mode

	src, err := capture.OpenFile(c.Args().First(), capture.Options{Width: c.Int("width"), Height: c.Int("height")})
	if err != nil {
		return err
	}
	defer src.Release()

	frame, err := src.NextFrame()
	if err != nil {
		return err
	}
	defer frame.Close()

	fmt.Printf("=== %s (%dx%d) ===\n", src.Path(), frame.Cols(), frame.Rows())

	all := tile.DetectAll(frame, p)
	fmt.Printf("Contours in area range: %d\n", len(all))
	for i, ct := range all {
		pts := geometry.FromImagePoints(ct)
		fmt.Printf("  [%d] %d points, area %.0f, perimeter %.1f\n",
			i, len(ct), geometry.PolygonMoments(pts).M00, geometry.Perimeter(pts))
	}

	res := pipeline.CycleResult{Cycle: 1, State: pipeline.NoDetection}
	contour, ok := tile.Detect(frame, p)
	if !ok {
		fmt.Println("No single tile found")
	} else {
		res.Contour = contour
		pose, ok, err := tile.ExtractPose(contour, c.Float64("factor"))
		switch {
		case err != nil:
			fmt.Printf("Pose: %v\n", err)
		case !ok:
			fmt.Println("Tile outline does not reduce to four corners")
		default:
			res.State = pipeline.PoseExtracted
			res.Pose = &tile.Pose{Cycle: 1, Pixel: pose}
			fmt.Printf("Centroid:    (%.1f, %.1f)\n", pose.Centroid.X, pose.Centroid.Y)
			fmt.Printf("Orientation: (%.1f, %.1f) length %.1f\n",
				pose.Orientation.X, pose.Orientation.Y, pose.Orientation.Length())
			for i, corner := range pose.Corners {
				fmt.Printf("Corner %d:    (%.0f, %.0f)\n", i, corner.X, corner.Y)
			}
		}
	}

	out := c.String("out")
	if out == "" {
		return nil
	}
	palette, err := display.ParsePalette("#00ff00", "#ff0000", "#0000ff", "#ffff00")
	if err != nil {
		return err
	}
	canvas := display.Overlay(frame, res, palette)
	defer canvas.Close()
	img, err := capture.MatToImage(canvas)
	if err != nil {
		return err
	}
	if err := imaging.Save(img, out); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", out)
	return nil
}
