// Package config holds the typed, YAML-loaded configuration for every
// kernel component enumerated in §6: Orchestrator, Scheduler, Evolution,
// and Data-lifecycle.
//
// Grounded on the teacher's internal/config/config.go shape (a nested
// struct tree with a DefaultConfig constructor and a file-backed
// Load/Save pair), generalized from JSON tags to YAML tags since this
// config format is YAML (gopkg.in/yaml.v3, already a teacher dependency
// used elsewhere in the pack for descriptor files).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/clawinfra/growthkernel/internal/agents"
)

// Config is the root configuration tree for the growthkernel process.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Evolution    EvolutionConfig    `yaml:"evolution"`
	Lifecycle    LifecycleConfig    `yaml:"lifecycle"`
}

// ServerConfig holds process-level settings.
type ServerConfig struct {
	DataDir  string `yaml:"dataDir"`
	LogLevel string `yaml:"logLevel"`
}

// OrchestratorConfig mirrors §6's Orchestrator configuration block.
type OrchestratorConfig struct {
	AgentsToRun          []agents.AgentID `yaml:"agentsToRun"`
	EnableCrossSynthesis bool             `yaml:"enableCrossSynthesis"`
	SignalTTLHours       int              `yaml:"signalTTLHours"`
	MinConfidenceThreshold float64        `yaml:"minConfidenceThreshold"`
	EnableP1Trigger      bool             `yaml:"enableP1Trigger"`
	EnableP2Trigger      bool             `yaml:"enableP2Trigger"`
}

// SchedulerConfig mirrors §6's Scheduler configuration block.
type SchedulerConfig struct {
	CronExpression    string `yaml:"cronExpression"`
	Timezone          string `yaml:"timezone"`
	MaxRetries        int    `yaml:"maxRetries"`
	RetryDelayMinutes int    `yaml:"retryDelayMinutes"`
	TimeoutMinutes    int    `yaml:"timeoutMinutes"`
}

// EvolutionConfig mirrors §6's Evolution configuration block.
type EvolutionConfig struct {
	ScheduleType       string  `yaml:"scheduleType"` // daily|weekly|feedback|manual
	FeedbackThreshold  int     `yaml:"feedbackThreshold"`
	MaxGenerationsPerRun int   `yaml:"maxGenerationsPerRun"`
	EnableAutoDeploy   bool    `yaml:"enableAutoDeploy"`
	MinFitnessForDeploy float64 `yaml:"minFitnessForDeploy"`
}

// RetentionConfig names per-tier retention and compression knobs for one
// source type in the Data-lifecycle configuration block.
type RetentionConfig struct {
	Source          string        `yaml:"source"`
	RetentionHot    time.Duration `yaml:"retentionHot"`
	RetentionWarm   time.Duration `yaml:"retentionWarm"`
	RetentionCold   time.Duration `yaml:"retentionCold"`
	RetentionFrozen time.Duration `yaml:"retentionFrozen"`
	CompressWarm    bool          `yaml:"compressWarm"`
	CompressCold    bool          `yaml:"compressCold"`
}

// LifecycleConfig mirrors §6's Data-lifecycle configuration block.
type LifecycleConfig struct {
	PerSource []RetentionConfig `yaml:"perSource"`
}

// DefaultConfig returns the spec's stated defaults for every block: 5-field
// daily cron at 06:00 for p0_daily_sync, 48h signal TTL, 0.7 min
// confidence, 3 retries at 30min, 30min timeouts, auto-deploy disabled
// with a 0.7 fitness floor. The weekly p3_evolution schedule is not a
// config field; deps.registerDefaultJobs fixes it at Sunday 02:00.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			DataDir:  "./data",
			LogLevel: "info",
		},
		Orchestrator: OrchestratorConfig{
			AgentsToRun:            agents.AllP0,
			EnableCrossSynthesis:   true,
			SignalTTLHours:         48,
			MinConfidenceThreshold: 0.7,
			EnableP1Trigger:        true,
			EnableP2Trigger:        true,
		},
		Scheduler: SchedulerConfig{
			CronExpression:    "0 6 * * *",
			Timezone:          "UTC",
			MaxRetries:        3,
			RetryDelayMinutes: 30,
			TimeoutMinutes:    30,
		},
		Evolution: EvolutionConfig{
			ScheduleType:         "weekly",
			FeedbackThreshold:    50,
			MaxGenerationsPerRun: 5,
			EnableAutoDeploy:     false,
			MinFitnessForDeploy:  0.7,
		},
		Lifecycle: LifecycleConfig{},
	}
}

// Load reads config from a YAML file, applying DefaultConfig first so an
// omitted field keeps its default rather than zeroing out.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := os.MkdirAll(cfg.Server.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o640)
}
