package viral

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Weights are the divisors applied to one platform's counters before the
// platform's overall divisor.
type Weights struct {
	Views    float64 `yaml:"views" toml:"views"`
	Likes    float64 `yaml:"likes" toml:"likes"`
	Comments float64 `yaml:"comments" toml:"comments"`
	Shares   float64 `yaml:"shares" toml:"shares"`
	Retweets float64 `yaml:"retweets" toml:"retweets"`
	Replies  float64 `yaml:"replies" toml:"replies"`
	Divisor  float64 `yaml:"divisor" toml:"divisor"`
}

// Calibration holds every tunable of the scoring engine.
type Calibration struct {
	YouTube             Weights `yaml:"youtube" toml:"youtube"`
	Instagram           Weights `yaml:"instagram" toml:"instagram"`
	Facebook            Weights `yaml:"facebook" toml:"facebook"`
	Twitter             Weights `yaml:"twitter" toml:"twitter"`
	TikTok              Weights `yaml:"tiktok" toml:"tiktok"`
	RelevanceMultiplier float64 `yaml:"relevance_multiplier" toml:"relevance_multiplier"`
	Threshold           float64 `yaml:"threshold" toml:"threshold"`
	MaxSelected         int     `yaml:"max_selected" toml:"max_selected"`
}

func DefaultCalibration() Calibration {
	social := Weights{Likes: 100, Comments: 10, Shares: 5, Divisor: 50}
	return Calibration{
		YouTube:             Weights{Views: 1000, Likes: 100, Comments: 10, Divisor: 100},
		Instagram:           social,
		Facebook:            social,
		Twitter:             Weights{Retweets: 10, Likes: 50, Replies: 5, Divisor: 20},
		TikTok:              Weights{Views: 10000, Likes: 500, Shares: 100, Divisor: 50},
		RelevanceMultiplier: 10,
		Threshold:           6.0,
		MaxSelected:         15,
	}
}

// LoadCalibration overlays the file at path onto the defaults. The format is
// chosen by extension. An empty path returns the defaults.
func LoadCalibration(path string) (Calibration, error) {
	cal := DefaultCalibration()
	if strings.TrimSpace(path) == "" {
		return cal, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cal, fmt.Errorf("read calibration: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &cal)
	case ".toml":
		_, err = toml.Decode(string(raw), &cal)
	default:
		return cal, fmt.Errorf("unsupported calibration format %q", filepath.Ext(path))
	}
	if err != nil {
		return DefaultCalibration(), fmt.Errorf("decode calibration %s: %w", path, err)
	}
	if err := cal.Validate(); err != nil {
		return DefaultCalibration(), err
	}
	return cal, nil
}

// Validate rejects calibrations that would divide by zero or select nothing.
func (c Calibration) Validate() error {
	for name, w := range map[string]Weights{
		"youtube": c.YouTube, "instagram": c.Instagram, "facebook": c.Facebook,
		"twitter": c.Twitter, "tiktok": c.TikTok,
	} {
		if w.Divisor <= 0 {
			return fmt.Errorf("calibration: %s divisor must be positive", name)
		}
	}
	if c.MaxSelected <= 0 {
		return fmt.Errorf("calibration: max_selected must be positive")
	}
	return nil
}
