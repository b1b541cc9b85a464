package facemark

import (
	"encoding/json"
	"os"
	"runtime"

	"github.com/esimov/facemark/utils"
	"github.com/pkg/errors"
)

// maxWorkers sets the maximum number of concurrently running workers.
const maxWorkers = 20

// Config holds the tunables of the detection core.
// Fields may be loaded from a JSON file and overridden by command-line flags.
type Config struct {
	// Cascade parameters
	MinSize      int     `json:"min_size"`
	MaxSize      int     `json:"max_size"` // 0 means the longest image edge
	ShiftFactor  float64 `json:"shift_factor"`
	ScaleFactor  float64 `json:"scale_factor"`
	IoUThreshold float64 `json:"iou_threshold"`
	QThreshold   float64 `json:"q_threshold"` // minimum cluster score kept as a face
	Angle        float64 `json:"angle"`

	// Annotation
	StrokeWidth int    `json:"stroke_width"`
	StrokeColor string `json:"stroke_color"`

	// Preview
	ThumbnailSize int `json:"thumbnail_size"`

	// Model asset
	AssetID        string `json:"asset_id"`
	ScratchDir     string `json:"scratch_dir"`
	CopyBufferSize int    `json:"copy_buffer_size"`

	Workers int `json:"workers"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		MinSize:        20,
		MaxSize:        0,
		ShiftFactor:    0.1,
		ScaleFactor:    1.1,
		IoUThreshold:   0.2,
		QThreshold:     5.0,
		Angle:          0.0,
		StrokeWidth:    3,
		StrokeColor:    "#ffffff",
		ThumbnailSize:  256,
		AssetID:        "facefinder",
		ScratchDir:     "",
		CopyBufferSize: 4096,
		Workers:        utils.Min(runtime.NumCPU(), maxWorkers),
	}
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	if c.MinSize <= 0 {
		c.MinSize = 20
	}
	if c.MaxSize < 0 || (c.MaxSize > 0 && c.MaxSize < c.MinSize) {
		c.MaxSize = 0
	}
	if c.ShiftFactor <= 0 || c.ShiftFactor > 1 {
		c.ShiftFactor = 0.1
	}
	if c.ScaleFactor <= 1 {
		c.ScaleFactor = 1.1
	}
	if c.IoUThreshold <= 0 || c.IoUThreshold >= 1 {
		c.IoUThreshold = 0.2
	}
	if c.QThreshold < 0 {
		c.QThreshold = 5.0
	}
	if c.Angle < 0 || c.Angle > 1 {
		c.Angle = 0
	}
	if c.StrokeWidth <= 0 {
		c.StrokeWidth = 3
	}
	if c.StrokeColor == "" {
		c.StrokeColor = "#ffffff"
	}
	if c.ThumbnailSize <= 0 {
		c.ThumbnailSize = 256
	}
	if c.AssetID == "" {
		return errors.New("config: asset id must not be empty")
	}
	if c.CopyBufferSize <= 0 {
		c.CopyBufferSize = 4096
	}
	// Limit the concurrently running workers to maxWorkers.
	if c.Workers <= 0 || c.Workers > maxWorkers {
		c.Workers = utils.Min(runtime.NumCPU(), maxWorkers)
	}
	return nil
}

// LoadConfig attempts to read configuration from the given JSON file path. If the file does not
// exist it returns DefaultConfig(). On JSON error it returns defaults with the error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrap(err, "unable to open config file")
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return DefaultConfig(), errors.Wrapf(err, "unable to decode config file %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return DefaultConfig(), err
	}
	return cfg, nil
}

// Save writes the configuration to the given path in JSON format.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "unable to create config file")
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
