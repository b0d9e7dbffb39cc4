package coord

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultExecutorBatchCapacity is the number of requests most real backends
// accept in one job.
const DefaultExecutorBatchCapacity = 900

// SampleCount is an initial-sample count: either a fixed number or "max",
// meaning as many points as fit into the init batches.
type SampleCount struct {
	N   int
	Max bool
}

// Samples returns a fixed sample count.
func Samples(n int) SampleCount { return SampleCount{N: n} }

// MaxSamples returns the "max" sample count.
func MaxSamples() SampleCount { return SampleCount{Max: true} }

// ParseSampleCount accepts a positive integer or "max".
func ParseSampleCount(s string) (SampleCount, error) {
	if s == "max" {
		return MaxSamples(), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return SampleCount{}, fmt.Errorf("sample count %q: want an integer or \"max\"", s)
	}
	return Samples(n), nil
}

func (s SampleCount) String() string {
	if s.Max {
		return "max"
	}
	return strconv.Itoa(s.N)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *SampleCount) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseSampleCount(value.Value)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (s SampleCount) MarshalYAML() (interface{}, error) {
	if s.Max {
		return "max", nil
	}
	return s.N, nil
}

// Config is the coordinator configuration, loadable from YAML.
type Config struct {
	SharingMode           string      `yaml:"sharing_mode"`
	ShareInit             bool        `yaml:"share_init"`
	InitialSamples        SampleCount `yaml:"initial_samples"`
	InitBatches           int         `yaml:"init_batches"`            // executor jobs spent on init data when InitialSamples is max
	ExecutorBatchCapacity int         `yaml:"executor_batch_capacity"` // requests per executor job
	RoundSamples          int         `yaml:"round_samples"`           // optimisation rounds after init
	Seed                  int64       `yaml:"seed"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		SharingMode:           string(Shared),
		ShareInit:             true,
		InitialSamples:        Samples(10),
		InitBatches:           1,
		ExecutorBatchCapacity: DefaultExecutorBatchCapacity,
		RoundSamples:          10,
		Seed:                  42,
	}
}

// LoadConfig reads a YAML configuration file on top of DefaultConfig.
// Unknown fields are rejected.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading coordinator config: %w", err)
	}
	cfg := DefaultConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing coordinator config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the sharing mode and all count ranges.
func (c Config) Validate() error {
	if _, err := ParseSharingMode(c.SharingMode); err != nil {
		return err
	}
	if !c.InitialSamples.Max && c.InitialSamples.N < 1 {
		return fmt.Errorf("initial_samples must be >= 1 or \"max\", got %d", c.InitialSamples.N)
	}
	if c.InitialSamples.Max {
		if c.ExecutorBatchCapacity < 1 {
			return fmt.Errorf("executor_batch_capacity must be >= 1, got %d", c.ExecutorBatchCapacity)
		}
		if c.InitBatches < 1 {
			return fmt.Errorf("init_batches must be >= 1, got %d", c.InitBatches)
		}
	}
	if c.RoundSamples < 0 {
		return fmt.Errorf("round_samples must be non-negative, got %d", c.RoundSamples)
	}
	return nil
}

// InitialSampleCount resolves InitialSamples for a cost model that encodes
// every point into requestsPerPoint requests.
func (c Config) InitialSampleCount(requestsPerPoint int) (int, error) {
	if !c.InitialSamples.Max {
		return c.InitialSamples.N, nil
	}
	if requestsPerPoint < 1 {
		return 0, fmt.Errorf("requests per point must be >= 1, got %d", requestsPerPoint)
	}
	n := c.ExecutorBatchCapacity * c.InitBatches / requestsPerPoint
	if n < 1 {
		return 0, fmt.Errorf("initial_samples=max yields no points: capacity %d x %d batches < %d requests per point",
			c.ExecutorBatchCapacity, c.InitBatches, requestsPerPoint)
	}
	return n, nil
}
