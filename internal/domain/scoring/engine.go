package scoring

import (
	"github.com/shopspring/decimal"
)

type Result struct {
	EmployeeScore   float64 `json:"employeeScore"`
	SupervisorScore float64 `json:"supervisorScore"`
	FinalScore      float64 `json:"finalScore"`
	Grade           string  `json:"grade"`
	GradeLabel      string  `json:"gradeLabel"`
}

// Engine turns rating symbols into percentage scores and grades. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	cfg   Config
	bands []Band
}

func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, bands: cfg.sortedBands()}, nil
}

func Default() *Engine {
	cfg := DefaultConfig()
	return &Engine{cfg: cfg, bands: cfg.sortedBands()}
}

func (e *Engine) Config() Config {
	return e.cfg
}

func (e *Engine) Known(symbol string) bool {
	_, ok := e.cfg.Ratings[symbol]
	return ok
}

// SubScore averages the points of the rated entries against the maximum.
// Empty or unrecognised symbols count as unrated and are left out of both
// the numerator and the denominator.
func (e *Engine) SubScore(ratings []string) float64 {
	var points float64
	rated := 0
	for _, symbol := range ratings {
		value, ok := e.cfg.Ratings[symbol]
		if !ok {
			continue
		}
		points += value
		rated++
	}
	if rated == 0 {
		return 0
	}
	return Round1(points / (float64(rated) * e.cfg.MaxPoints) * 100)
}

func (e *Engine) FinalScore(employee, supervisor float64) float64 {
	return Round1(employee*e.cfg.Weights.Employee + supervisor*e.cfg.Weights.Supervisor)
}

func (e *Engine) Grade(score float64) Band {
	for _, band := range e.bands {
		if score >= band.Min {
			return band
		}
	}
	return e.bands[len(e.bands)-1]
}

func (e *Engine) Compute(employee, supervisor []string) Result {
	employeeScore := e.SubScore(employee)
	supervisorScore := e.SubScore(supervisor)
	final := e.FinalScore(employeeScore, supervisorScore)
	band := e.Grade(final)
	return Result{
		EmployeeScore:   employeeScore,
		SupervisorScore: supervisorScore,
		FinalScore:      final,
		Grade:           band.Letter,
		GradeLabel:      band.Label,
	}
}

// Round1 rounds half away from zero to one decimal place.
func Round1(value float64) float64 {
	return decimal.NewFromFloat(value).Round(1).InexactFloat64()
}
