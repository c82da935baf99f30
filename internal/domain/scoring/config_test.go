package scoring

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
}

func TestLoadConfigEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Ratings[RatingEP] != 20 || cfg.Weights.Supervisor != 0.7 {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadConfigOverridesWeights(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoring.yaml")
	body := []byte("weights:\n  employee: 0.5\n  supervisor: 0.5\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Weights.Employee != 0.5 {
		t.Fatalf("expected employee weight 0.5, got %v", cfg.Weights.Employee)
	}
	if len(cfg.Grades) != 5 || cfg.Ratings[RatingWP] != 8 {
		t.Fatalf("expected untouched sections to keep defaults, got %+v", cfg)
	}

	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("engine error: %v", err)
	}
	if got := engine.FinalScore(100, 0); got != 50 {
		t.Fatalf("expected 50 with equal weights, got %v", got)
	}
}

func TestParseConfigRejectsBadWeights(t *testing.T) {
	_, err := ParseConfig([]byte("weights:\n  employee: 0.5\n  supervisor: 0.7\n"))
	if err == nil {
		t.Fatal("expected error for weights not summing to 1")
	}
}

func TestParseConfigRejectsGradesWithoutFloor(t *testing.T) {
	raw := []byte("grades:\n  - letter: A\n    label: Top\n    min: 80\n  - letter: B\n    label: Rest\n    min: 10\n")
	if _, err := ParseConfig(raw); err == nil {
		t.Fatal("expected error when no grade band starts at 0")
	}
}

func TestParseConfigRejectsRatingAboveMax(t *testing.T) {
	raw := []byte("maxPoints: 10\n")
	if _, err := ParseConfig(raw); err == nil {
		t.Fatal("expected error when default ratings exceed maxPoints")
	}
}

func TestSymbolsOrderedByPoints(t *testing.T) {
	symbols := DefaultConfig().Symbols()
	want := []string{RatingEP, RatingSP, RatingAP, RatingNIP, RatingWP}
	if len(symbols) != len(want) {
		t.Fatalf("expected %d symbols, got %v", len(want), symbols)
	}
	for i := range want {
		if symbols[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, symbols)
		}
	}
}
