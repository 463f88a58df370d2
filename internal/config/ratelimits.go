package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RateWindow is one enforcement window: at most Times requests per Seconds.
type RateWindow struct {
	Times   int `yaml:"times"`
	Seconds int `yaml:"seconds"`
}

// RateTier stacks three windows so bursts, sustained load and hourly volume
// are limited independently.
type RateTier struct {
	Short  RateWindow `yaml:"short"`
	Medium RateWindow `yaml:"medium"`
	Long   RateWindow `yaml:"long"`
}

// RateLimits maps route classes to tiers.
type RateLimits struct {
	Default RateTier `yaml:"default"`
	Read    RateTier `yaml:"read"`
	Write   RateTier `yaml:"write"`
}

// DefaultRateLimits are used when no YAML file is found.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Default: RateTier{
			Short:  RateWindow{Times: 10, Seconds: 1},
			Medium: RateWindow{Times: 50, Seconds: 30},
			Long:   RateWindow{Times: 1000, Seconds: 3600},
		},
		Read: RateTier{
			Short:  RateWindow{Times: 20, Seconds: 1},
			Medium: RateWindow{Times: 100, Seconds: 30},
			Long:   RateWindow{Times: 1800, Seconds: 3600},
		},
		Write: RateTier{
			Short:  RateWindow{Times: 10, Seconds: 1},
			Medium: RateWindow{Times: 60, Seconds: 30},
			Long:   RateWindow{Times: 1200, Seconds: 3600},
		},
	}
}

// LoadRateLimits reads tiers from the given path, falling back to the
// well-known locations and finally to built-in defaults.
func LoadRateLimits(path string) RateLimits {
	candidates := []string{}
	if path != "" {
		candidates = append(candidates, path)
	}
	candidates = append(candidates, "env/rate_limiters.yaml", "/etc/secrets/rate_limiters.yaml")

	for _, candidate := range candidates {
		limits, err := loadRateLimitsFile(candidate)
		if err == nil {
			return limits
		}
	}
	return DefaultRateLimits()
}

func loadRateLimitsFile(path string) (RateLimits, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RateLimits{}, err
	}

	var limits RateLimits
	if err := yaml.Unmarshal(data, &limits); err != nil {
		return RateLimits{}, fmt.Errorf("parse rate limiters config %s: %w", path, err)
	}

	// Partial files inherit defaults per tier.
	defaults := DefaultRateLimits()
	if limits.Default == (RateTier{}) {
		limits.Default = defaults.Default
	}
	if limits.Read == (RateTier{}) {
		limits.Read = defaults.Read
	}
	if limits.Write == (RateTier{}) {
		limits.Write = defaults.Write
	}
	return limits, nil
}
