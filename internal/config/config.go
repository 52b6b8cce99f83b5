// Package config holds the tunable resource limits of a checking
// session. Limits are loadable from a YAML file, overridable through
// the environment, and validated before use; zero values select the
// built-in defaults.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Limits bounds the work of checking operations. All budgets apply per
// operation, not per session.
type Limits struct {
	// ReductionFuel caps reduction steps per checking operation.
	ReductionFuel int `yaml:"reduction_fuel"`
	// DefEqFuel caps delta unfoldings per equality check.
	DefEqFuel int `yaml:"defeq_fuel"`
	// InstanceDepth caps instance search nesting.
	InstanceDepth int `yaml:"instance_depth"`
	// InstanceIterations caps instance search steps.
	InstanceIterations int `yaml:"instance_iterations"`
	// Workers caps concurrent declaration checks in a batch. Zero
	// selects GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// Default returns the limits used when nothing is configured.
func Default() Limits {
	return Limits{
		ReductionFuel:      100000,
		DefEqFuel:          10000,
		InstanceDepth:      32,
		InstanceIterations: 10000,
		Workers:            runtime.GOMAXPROCS(0),
	}
}

// Load reads limits from a YAML file, filling unset fields with
// defaults and applying environment overrides.
func Load(path string) (Limits, error) {
	limits := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return limits, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &limits); err != nil {
		return limits, fmt.Errorf("parse config %s: %w", path, err)
	}

	limits = limits.withDefaults()
	limits.applyEnv()

	if err := limits.Validate(); err != nil {
		return limits, err
	}

	return limits, nil
}

// FromEnv returns the defaults with environment overrides applied.
func FromEnv() Limits {
	limits := Default()
	limits.applyEnv()

	return limits
}

func (l Limits) withDefaults() Limits {
	d := Default()

	if l.ReductionFuel == 0 {
		l.ReductionFuel = d.ReductionFuel
	}

	if l.DefEqFuel == 0 {
		l.DefEqFuel = d.DefEqFuel
	}

	if l.InstanceDepth == 0 {
		l.InstanceDepth = d.InstanceDepth
	}

	if l.InstanceIterations == 0 {
		l.InstanceIterations = d.InstanceIterations
	}

	if l.Workers == 0 {
		l.Workers = d.Workers
	}

	return l
}

// Environment variable names recognized by applyEnv.
const (
	EnvReductionFuel = "ARBOR_REDUCTION_FUEL"
	EnvDefEqFuel     = "ARBOR_DEFEQ_FUEL"
	EnvInstanceDepth = "ARBOR_INSTANCE_DEPTH"
	EnvWorkers       = "ARBOR_WORKERS"
)

func (l *Limits) applyEnv() {
	overrideInt(EnvReductionFuel, &l.ReductionFuel)
	overrideInt(EnvDefEqFuel, &l.DefEqFuel)
	overrideInt(EnvInstanceDepth, &l.InstanceDepth)
	overrideInt(EnvWorkers, &l.Workers)
}

func overrideInt(key string, dst *int) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return
	}

	*dst = v
}

// Validate rejects nonsensical limits.
func (l Limits) Validate() error {
	if l.ReductionFuel < 0 {
		return fmt.Errorf("reduction_fuel must be positive, got %d", l.ReductionFuel)
	}

	if l.DefEqFuel < 0 {
		return fmt.Errorf("defeq_fuel must be positive, got %d", l.DefEqFuel)
	}

	if l.InstanceDepth < 0 {
		return fmt.Errorf("instance_depth must be positive, got %d", l.InstanceDepth)
	}

	if l.Workers < 0 {
		return fmt.Errorf("workers must be positive, got %d", l.Workers)
	}

	return nil
}
