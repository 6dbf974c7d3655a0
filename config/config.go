// Package config loads and validates the JSON run configuration for a
// bftsim simulation: validator set, network conditions, consensus
// timing, and output locations.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// RateLimit bounds how many messages a directed sender/receiver pair
// may exchange per second before the simulator cools the pair down.
type RateLimit struct {
	MaxMessagesPerSecond int     `json:"max_messages_per_second"`
	BlockDuration        float64 `json:"block_duration"` // seconds
}

// NetworkConfig describes the simulated channel's unreliability.
type NetworkConfig struct {
	MinDelay      float64   `json:"min_delay"`
	MaxDelay      float64   `json:"max_delay"`
	DropProb      float64   `json:"drop_prob"`
	DuplicateProb float64   `json:"duplicate_prob"`
	RateLimit     RateLimit `json:"rate_limit"`
}

// SimulationConfig controls the run's PRNG seed and its extent in
// virtual (simulated) seconds.
type SimulationConfig struct {
	Seed    int64   `json:"seed"`
	MaxTime float64 `json:"max_time"`
}

// ConsensusConfig tunes per-height retry and timeout behavior.
type ConsensusConfig struct {
	TimeoutPrevote   float64 `json:"timeout_prevote"`
	TimeoutPrecommit float64 `json:"timeout_precommit"`
	RetryCount       int     `json:"retry_count"` // 0 -> node.DefaultRetryCount
}

// Config holds everything needed to compose and run a simulation.
type Config struct {
	Nodes       []string         `json:"nodes"` // validator IDs, in round-robin order; identities are derived from (Simulation.Seed, ID)
	Simulation  SimulationConfig `json:"simulation"`
	Network     NetworkConfig    `json:"network"`
	Consensus   ConsensusConfig  `json:"consensus"`
	DataDir     string           `json:"data_dir"`
	MetricsAddr string           `json:"metrics_addr,omitempty"` // empty -> metrics server disabled
	LogLevel    string           `json:"log_level"`
}

// DefaultConfig returns a small lossless local configuration, the
// same role teacher's DefaultConfig plays for a single dev node.
func DefaultConfig() *Config {
	return &Config{
		Simulation: SimulationConfig{Seed: 1, MaxTime: 10},
		Network: NetworkConfig{
			MinDelay: 0.01,
			MaxDelay: 0.1,
			RateLimit: RateLimit{
				MaxMessagesPerSecond: 100,
				BlockDuration:        1.0,
			},
		},
		Consensus: ConsensusConfig{RetryCount: 4},
		DataDir:   "./data",
		LogLevel:  "info",
	}
}

// Load reads a JSON config file from path, overlays it onto
// DefaultConfig, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required fields are present and
// well-formed.
func (c *Config) Validate() error {
	if len(c.Nodes) == 0 {
		return fmt.Errorf("nodes list must not be empty")
	}
	seen := make(map[string]struct{}, len(c.Nodes))
	for i, n := range c.Nodes {
		if n == "" {
			return fmt.Errorf("nodes[%d]: id must not be empty", i)
		}
		if _, dup := seen[n]; dup {
			return fmt.Errorf("nodes[%d]: duplicate validator id %q", i, n)
		}
		seen[n] = struct{}{}
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Simulation.MaxTime <= 0 {
		return fmt.Errorf("simulation.max_time must be positive, got %v", c.Simulation.MaxTime)
	}
	if c.Network.MaxDelay < c.Network.MinDelay {
		return fmt.Errorf("network.max_delay (%v) must be >= network.min_delay (%v)", c.Network.MaxDelay, c.Network.MinDelay)
	}
	if c.Network.DropProb < 0 || c.Network.DropProb > 1 {
		return fmt.Errorf("network.drop_prob must be in [0,1], got %v", c.Network.DropProb)
	}
	if c.Network.DuplicateProb < 0 || c.Network.DuplicateProb > 1 {
		return fmt.Errorf("network.duplicate_prob must be in [0,1], got %v", c.Network.DuplicateProb)
	}
	return nil
}

// Save writes cfg to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
