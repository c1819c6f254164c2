// Command calibinfo loads a calibration document, prints its derived values
// and converts pixels to world points on the calibration plane.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"tile-locator/internal/calibration"
	"tile-locator/internal/version"
	"tile-locator/pkg/geometry"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gonum.org/v1/gonum/mat"
)

func main() {
	app := &cli.App{
		Name:      "calibinfo",
		Usage:     "inspect a camera calibration",
		UsageText: "calibinfo [--anchor x,y,z] [--pixel u,v ...] <calibration.yaml>",
		Version:   version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "anchor",
				Usage: "anchor point on the calibration plane as x,y,z",
				Value: formatVector(calibration.DefaultAnchor),
			},
			&cli.StringSliceFlag{
				Name:    "pixel",
				Aliases: []string{"p"},
				Usage:   "pixel u,v to project (repeatable)",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "calibinfo:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.ShowAppHelp(c)
	}

	calib, err := calibration.Load(c.Args().First())
	if err != nil {
		return err
	}
	anchor, err := parseFloats(c.String("anchor"), 3)
	if err != nil {
		return errors.Wrap(err, "anchor")
	}
	if err := calib.Finalize(r3.Vector{X: anchor[0], Y: anchor[1], Z: anchor[2]}); err != nil {
		return err
	}

	fmt.Println(calib.Summary())
	fmt.Printf("\nK =\n%v\n", mat.Formatted(calib.CameraMatrix, mat.Prefix("    "), mat.Squeeze()))
	fmt.Printf("NK =\n%v\n", mat.Formatted(calib.OptimizedCameraMatrix, mat.Prefix("     "), mat.Squeeze()))
	if rot, err := calib.InverseRotation(); err == nil {
		fmt.Printf("R^-1 =\n%v\n", mat.Formatted(rot, mat.Prefix("       "), mat.Squeeze()))
	}

	pixels := c.StringSlice("pixel")
	if len(pixels) == 0 {
		return nil
	}

	fmt.Printf("\n%-18s %-30s %s\n", "pixel", "world", "reprojected")
	for _, s := range pixels {
		uv, err := parseFloats(s, 2)
		if err != nil {
			return errors.Wrapf(err, "pixel %q", s)
		}
		p := geometry.Point2D{X: uv[0], Y: uv[1]}
		w, err := calib.PixelToWorld(p)
		if err != nil {
			return err
		}
		back, err := calib.WorldToPixel(w)
		if err != nil {
			return err
		}
		fmt.Printf("(%7.1f, %7.1f) %-30s (%7.2f, %7.2f)\n", p.X, p.Y, formatVector(w), back.X, back.Y)
	}
	return nil
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, errors.Errorf("want %d comma separated values, got %d", n, len(parts))
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func formatVector(v r3.Vector) string {
	return fmt.Sprintf("%.2f,%.2f,%.2f", v.X, v.Y, v.Z)
}
