package scoring

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	RatingEP  = "EP"
	RatingSP  = "SP"
	RatingAP  = "AP"
	RatingNIP = "NIP"
	RatingWP  = "WP"
)

// Band is one row of the grade table. A score belongs to the band with the
// highest Min that does not exceed it.
type Band struct {
	Letter string  `yaml:"letter" json:"letter"`
	Label  string  `yaml:"label" json:"label"`
	Min    float64 `yaml:"min" json:"min"`
}

type Weights struct {
	Employee   float64 `yaml:"employee" json:"employee"`
	Supervisor float64 `yaml:"supervisor" json:"supervisor"`
}

type Config struct {
	MaxPoints float64            `yaml:"maxPoints" json:"maxPoints"`
	Ratings   map[string]float64 `yaml:"ratings" json:"ratings"`
	Weights   Weights            `yaml:"weights" json:"weights"`
	Grades    []Band             `yaml:"grades" json:"grades"`
}

func DefaultConfig() Config {
	return Config{
		MaxPoints: 20,
		Ratings: map[string]float64{
			RatingEP:  20,
			RatingSP:  17,
			RatingAP:  14,
			RatingNIP: 11,
			RatingWP:  8,
		},
		Weights: Weights{Employee: 0.3, Supervisor: 0.7},
		Grades: []Band{
			{Letter: "A", Label: "Exceptional", Min: 80},
			{Letter: "B", Label: "Strong", Min: 65},
			{Letter: "C", Label: "Average", Min: 50},
			{Letter: "D", Label: "Needs Improvement", Min: 40},
			{Letter: "E", Label: "Weak", Min: 0},
		},
	}
}

// LoadConfig reads a YAML scoring file. Sections left out of the file keep
// their default values. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultConfig(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read scoring config: %w", err)
	}
	return ParseConfig(raw)
}

func ParseConfig(raw []byte) (Config, error) {
	var parsed Config
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return Config{}, fmt.Errorf("parse scoring config: %w", err)
	}

	defaults := DefaultConfig()
	if parsed.MaxPoints == 0 {
		parsed.MaxPoints = defaults.MaxPoints
	}
	if len(parsed.Ratings) == 0 {
		parsed.Ratings = defaults.Ratings
	}
	if parsed.Weights == (Weights{}) {
		parsed.Weights = defaults.Weights
	}
	if len(parsed.Grades) == 0 {
		parsed.Grades = defaults.Grades
	}
	if err := parsed.Validate(); err != nil {
		return Config{}, err
	}
	return parsed, nil
}

func (c Config) Validate() error {
	if c.MaxPoints <= 0 {
		return errors.New("scoring: maxPoints must be positive")
	}
	if len(c.Ratings) == 0 {
		return errors.New("scoring: at least one rating symbol is required")
	}
	for symbol, points := range c.Ratings {
		if strings.TrimSpace(symbol) == "" {
			return errors.New("scoring: rating symbol must not be empty")
		}
		if points < 0 || points > c.MaxPoints {
			return fmt.Errorf("scoring: rating %s must be between 0 and %v points", symbol, c.MaxPoints)
		}
	}
	if c.Weights.Employee < 0 || c.Weights.Supervisor < 0 {
		return errors.New("scoring: weights must not be negative")
	}
	if math.Abs(c.Weights.Employee+c.Weights.Supervisor-1) > 1e-9 {
		return errors.New("scoring: employee and supervisor weights must sum to 1")
	}
	if len(c.Grades) == 0 {
		return errors.New("scoring: at least one grade band is required")
	}
	seen := map[string]struct{}{}
	lowest := math.Inf(1)
	for _, band := range c.Grades {
		if strings.TrimSpace(band.Letter) == "" {
			return errors.New("scoring: grade letter must not be empty")
		}
		if _, ok := seen[band.Letter]; ok {
			return fmt.Errorf("scoring: duplicate grade %s", band.Letter)
		}
		seen[band.Letter] = struct{}{}
		lowest = math.Min(lowest, band.Min)
	}
	if lowest > 0 {
		return errors.New("scoring: the lowest grade band must start at 0")
	}
	return nil
}

// sortedBands returns the grade table ordered from the highest threshold down.
func (c Config) sortedBands() []Band {
	bands := make([]Band, len(c.Grades))
	copy(bands, c.Grades)
	sort.SliceStable(bands, func(i, j int) bool {
		return bands[i].Min > bands[j].Min
	})
	return bands
}

// Symbols lists the configured rating symbols from most to fewest points.
func (c Config) Symbols() []string {
	out := make([]string, 0, len(c.Ratings))
	for symbol := range c.Ratings {
		out = append(out, symbol)
	}
	sort.Slice(out, func(i, j int) bool {
		if c.Ratings[out[i]] == c.Ratings[out[j]] {
			return out[i] < out[j]
		}
		return c.Ratings[out[i]] > c.Ratings[out[j]]
	})
	return out
}
