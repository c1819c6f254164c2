// Package config loads the YAML settings shared by the commands.
package config

import (
	"os"

	"tile-locator/internal/calibration"
	"tile-locator/internal/capture"
	"tile-locator/internal/tile"

	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// ErrInvalid marks every validation problem.
var ErrInvalid = errors.New("invalid config")

// Config is the full settings document.
type Config struct {
	LogLevel    string            `yaml:"log_level"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Capture     CaptureConfig     `yaml:"capture"`
	Detection   DetectionConfig   `yaml:"detection"`
	Mesh        MeshConfig        `yaml:"mesh"`
	Display     DisplayConfig     `yaml:"display"`
}

// CalibrationConfig locates the calibration document and the anchor point
// the scaling factor is taken from.
type CalibrationConfig struct {
	File   string     `yaml:"file"`
	Anchor [3]float64 `yaml:"anchor"`
}

// CaptureConfig sizes captured frames. Zero keeps the native size.
type CaptureConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// DetectionConfig holds the detector defaults. Threshold and the area limits
// are only starting values when a window with sliders is shown.
type DetectionConfig struct {
	Threshold       int     `yaml:"threshold"`
	MinArea         float64 `yaml:"min_area"`
	MaxArea         float64 `yaml:"max_area"`
	Mode            string  `yaml:"mode"`
	MedianKernel    int     `yaml:"median_kernel"`
	ArcLengthFactor float64 `yaml:"arc_length_factor"`
	Rectify         bool    `yaml:"rectify"`
}

// MeshConfig controls extrusion of found tiles.
type MeshConfig struct {
	Thickness         float64 `yaml:"thickness"`
	SimplifyTolerance float64 `yaml:"simplify_tolerance"`
	Output            string  `yaml:"output"`
}

// DisplayConfig sets up the preview window.
type DisplayConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Window       string `yaml:"window"`
	MaxThreshold int    `yaml:"max_threshold"`
	MaxArea      int    `yaml:"max_area"`
	WaitMillis   int    `yaml:"wait_ms"`
	ContourColor string `yaml:"contour_color"`
	CornerColor  string `yaml:"corner_color"`
	AxisColor    string `yaml:"axis_color"`
	HullColor    string `yaml:"hull_color"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	p := tile.DefaultParams()
	opts := capture.DefaultOptions()
	return &Config{
		LogLevel: "info",
		Calibration: CalibrationConfig{
			File:   "calibration.yaml",
			Anchor: [3]float64{calibration.DefaultAnchor.X, calibration.DefaultAnchor.Y, calibration.DefaultAnchor.Z},
		},
		Capture: CaptureConfig{Width: opts.Width, Height: opts.Height},
		Detection: DetectionConfig{
			Threshold:       p.Threshold,
			MinArea:         p.MinArea,
			MaxArea:         p.MaxArea,
			Mode:            p.Mode.String(),
			MedianKernel:    p.MedianKernel,
			ArcLengthFactor: tile.DefaultArcLengthFactor,
			Rectify:         true,
		},
		Mesh: MeshConfig{
			Thickness:         0.5,
			SimplifyTolerance: 2,
			Output:            "tiles.json",
		},
		Display: DisplayConfig{
			Enabled:      true,
			Window:       "Tiles",
			MaxThreshold: 255,
			MaxArea:      200000,
			WaitMillis:   30,
			ContourColor: "#00ff00",
			CornerColor:  "#ff0000",
			AxisColor:    "#0000ff",
			HullColor:    "#ffff00",
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a YAML document over the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs error
	invalid := func(format string, args ...interface{}) {
		errs = multierr.Append(errs, errors.Wrapf(ErrInvalid, format, args...))
	}

	d := c.Detection
	if d.Threshold < 0 || d.Threshold > 255 {
		invalid("detection.threshold %d outside [0, 255]", d.Threshold)
	}
	if d.MinArea < 0 {
		invalid("detection.min_area %v is negative", d.MinArea)
	}
	if d.MaxArea <= d.MinArea {
		invalid("detection.max_area %v must exceed min_area %v", d.MaxArea, d.MinArea)
	}
	if _, err := tile.ParseThresholdMode(d.Mode); err != nil {
		invalid("detection.mode: %v", err)
	}
	if d.MedianKernel < 0 {
		invalid("detection.median_kernel %d is negative", d.MedianKernel)
	}
	if d.ArcLengthFactor <= 0 || d.ArcLengthFactor >= 1 {
		invalid("detection.arc_length_factor %v outside (0, 1)", d.ArcLengthFactor)
	}

	if c.Capture.Width < 0 || c.Capture.Height < 0 {
		invalid("capture size %dx%d is negative", c.Capture.Width, c.Capture.Height)
	}
	if c.Mesh.Thickness <= 0 {
		invalid("mesh.thickness %v must be positive", c.Mesh.Thickness)
	}
	if c.Mesh.SimplifyTolerance < 0 {
		invalid("mesh.simplify_tolerance %v is negative", c.Mesh.SimplifyTolerance)
	}

	disp := c.Display
	if disp.MaxThreshold < 1 || disp.MaxThreshold > 255 {
		invalid("display.max_threshold %d outside [1, 255]", disp.MaxThreshold)
	}
	if disp.MaxArea < 1 {
		invalid("display.max_area %d must be positive", disp.MaxArea)
	}
	if disp.WaitMillis < 1 {
		invalid("display.wait_ms %d must be positive", disp.WaitMillis)
	}
	for name, hex := range map[string]string{
		"contour_color": disp.ContourColor,
		"corner_color":  disp.CornerColor,
		"axis_color":    disp.AxisColor,
		"hull_color":    disp.HullColor,
	} {
		if _, err := colorful.Hex(hex); err != nil {
			invalid("display.%s %q is not a hex color", name, hex)
		}
	}
	return errs
}

// DetectionParams converts the detection section.
func (c *Config) DetectionParams() tile.Params {
	mode, _ := tile.ParseThresholdMode(c.Detection.Mode)
	return tile.Params{
		Threshold:    c.Detection.Threshold,
		MinArea:      c.Detection.MinArea,
		MaxArea:      c.Detection.MaxArea,
		Mode:         mode,
		MedianKernel: c.Detection.MedianKernel,
	}
}

// Anchor returns the calibration anchor point.
func (c *Config) Anchor() r3.Vector {
	a := c.Calibration.Anchor
	return r3.Vector{X: a[0], Y: a[1], Z: a[2]}
}

// CaptureOptions converts the capture section.
func (c *Config) CaptureOptions() capture.Options {
	return capture.Options{Width: c.Capture.Width, Height: c.Capture.Height}
}
