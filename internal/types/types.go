// Package types holds the entity structs shared across the orchestration
// kernel (Signal, CrossQuadrantSignal, SyncSession, FeedbackRecord,
// LearningState, StrategyGene/AgentStrategy, DataLineage, TriggerRecord,
// MeridianMetrics, Alert). Plain structs with json tags, no behavior beyond
// a default LearningState constructor and its threshold accessor — the same shape the teacher uses for its own
// domain structs (config.AgentDef, evolution.Strategy).
package types

import "time"

// Quadrant is one of the four problem spaces perceived by the pipeline.
type Quadrant string

const (
	Q1 Quadrant = "Q1" // pain
	Q2 Quadrant = "Q2" // emotion
	Q3 Quadrant = "Q3" // trend
	Q4 Quadrant = "Q4" // scene
)

// Layer is one of the five cognitive-pipeline layers.
type Layer string

const (
	LayerP0 Layer = "P0" // Perception
	LayerP1 Layer = "P1" // Judgment
	LayerP2 Layer = "P2" // Relationship
	LayerP3 Layer = "P3" // Evolution
	LayerP4 Layer = "P4" // Data-Lifecycle
)

// SignalKind is the P0 observation category.
type SignalKind string

const (
	KindPain    SignalKind = "pain"
	KindEmotion SignalKind = "emotion"
	KindTrend   SignalKind = "trend"
	KindScene   SignalKind = "scene"
)

// Signal is a perception-layer observation produced by a P0 agent.
type Signal struct {
	SignalID  string                 `json:"signal_id"`
	Quadrant  Quadrant               `json:"quadrant"`
	Kind      SignalKind             `json:"kind"`
	Keywords  []string               `json:"keywords"`
	Score     float64                `json:"score"` // 0-100 urgency/intensity
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// Priority is the urgency label assigned to a synthesized signal.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// SignalType names which pair of quadrants a CrossQuadrantSignal combines.
type SignalType string

const (
	SignalTypePainTrend    SignalType = "pain+trend"
	SignalTypeEmotionScene SignalType = "emotion+scene"
	SignalTypePainEmotion  SignalType = "pain+emotion"
)

// CrossQuadrantSignal is a synthesized multi-source opportunity.
type CrossQuadrantSignal struct {
	SignalID          string     `json:"signal_id"`
	SourceQuadrants   []Quadrant `json:"source_quadrants"`
	SignalType        SignalType `json:"signal_type"`
	Priority          Priority   `json:"priority"`
	Confidence        float64    `json:"confidence"`
	RawSignals        []string   `json:"raw_signals"` // referenced Signal.SignalID
	RecommendedAction string     `json:"recommended_action"`
	TargetLayer       Layer      `json:"target_layer"`
}

// SessionStatus is the lifecycle state of a SyncSession.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// AgentReport is one agent's structured output for a session, or an error
// if the agent failed or timed out. Exactly one of Signals/Assessment/
// Routing is populated, per the agent's layer.
type AgentReport struct {
	AgentID    string           `json:"agent_id"`
	Layer      Layer            `json:"layer"`
	Quadrant   Quadrant         `json:"quadrant"`
	Signals    []Signal         `json:"signals,omitempty"`
	Assessment *ValueAssessment `json:"assessment,omitempty"`
	Routing    *RoutingDecision `json:"routing,omitempty"`
	Error      string           `json:"error,omitempty"`
	Duration   time.Duration    `json:"duration"`
}

// ValueAssessment is a P1 agent's per-dimension scoring of the current
// cycle's signals for its quadrant.
type ValueAssessment struct {
	Dimensions        map[string]float64 `json:"dimensions"` // each in [0,1]
	Priority          Priority           `json:"priority"`
	RecommendedAction string             `json:"recommended_action"`
}

// RoutingDecision is a P2 agent's recommendation for where to forward a
// quadrant's judged output. TargetChannel is opaque to this module — it is
// interpreted by the out-of-scope publishing driver.
type RoutingDecision struct {
	TargetChannel string   `json:"target_channel"`
	Priority      Priority `json:"priority"`
	Rationale     string   `json:"rationale"`
}

// SyncSession is one orchestration cycle, owned exclusively by the
// Orchestrator while running.
type SyncSession struct {
	SessionID          string                 `json:"session_id"`
	StartedAt          time.Time              `json:"started_at"`
	CompletedAt        *time.Time             `json:"completed_at,omitempty"`
	Status             SessionStatus          `json:"status"`
	AgentReports       map[string]AgentReport `json:"agent_reports"`
	SynthesizedSignals []CrossQuadrantSignal  `json:"synthesized_signals"`
	Insights           []string               `json:"insights"`
	DownstreamResults  map[string]AgentReport `json:"downstream_results"`
	Error              string                 `json:"error,omitempty"`
}

// FeedbackKind classifies a FeedbackRecord by which metrics it carries.
type FeedbackKind string

const (
	FeedbackPerformance FeedbackKind = "performance"
	FeedbackQualitative FeedbackKind = "qualitative"
	FeedbackOutcome     FeedbackKind = "outcome"
	FeedbackMeta        FeedbackKind = "meta"
)

// FeedbackRecord is the outcome of one executed plan.
type FeedbackRecord struct {
	FeedbackID     string             `json:"feedback_id"`
	SourcePlanID   string             `json:"source_plan_id"`
	SourceQuadrant Quadrant           `json:"source_quadrant"`
	Kind           FeedbackKind       `json:"kind"`
	Metrics        map[string]float64 `json:"metrics"`
	OutcomeValue   float64            `json:"outcome_value"`
	Timestamp      time.Time          `json:"timestamp"`
}

// LearningState is the versioned tunable threshold/weight configuration
// agents read on each cycle. Single-writer (LearningEngine), multi-reader.
type LearningState struct {
	Version            int                              `json:"version"`
	P0Thresholds       map[string]float64               `json:"p0_thresholds"`
	P1Weights          map[Quadrant]map[string]float64   `json:"p1_weights"`
	SuccessfulPatterns []string                          `json:"successful_patterns"` // bounded to 100
	FailedPatterns     []string                          `json:"failed_patterns"`     // bounded to 100
}

// DefaultLearningState returns the starting configuration.
func DefaultLearningState() *LearningState {
	return &LearningState{
		Version: 1,
		P0Thresholds: map[string]float64{
			"min_urgency_score":       20,
			"min_emotion_intensity":   70,
			"min_confidence_threshold": 0.7,
		},
		P1Weights: map[Quadrant]map[string]float64{
			Q1: {"urgency": 0.3, "confidence": 0.3, "actionability": 0.3},
			Q2: {"urgency": 0.3, "confidence": 0.3, "actionability": 0.3},
			Q3: {"urgency": 0.3, "confidence": 0.3, "actionability": 0.3},
			Q4: {"urgency": 0.3, "confidence": 0.3, "actionability": 0.3},
		},
		SuccessfulPatterns: []string{},
		FailedPatterns:     []string{},
	}
}

// MinConfidenceThreshold is a convenience accessor with the spec default.
func (s *LearningState) MinConfidenceThreshold() float64 {
	if v, ok := s.P0Thresholds["min_confidence_threshold"]; ok {
		return v
	}
	return 0.7
}

// StrategyGene is one evolvable parameter within an AgentStrategy.
type StrategyGene struct {
	ParameterName string  `json:"parameter_name"`
	Value         float64 `json:"value"`
	MutationLow   float64 `json:"mutation_low"`
	MutationHigh  float64 `json:"mutation_high"`
	FitnessScore  float64 `json:"fitness_score"`
	Generation    int     `json:"generation"`
}

// AgentStrategy is one evolvable parameter set owned by EvolutionEngine.
type AgentStrategy struct {
	StrategyID       string                  `json:"strategy_id"`
	AgentType        string                  `json:"agent_type"`
	Quadrant         Quadrant                `json:"quadrant"`
	Genes            map[string]StrategyGene `json:"genes"`
	FitnessScore     float64                 `json:"fitness_score"`
	SuccessCount     int                     `json:"success_count"`
	FailureCount     int                     `json:"failure_count"`
	ParentStrategyID string                  `json:"parent_strategy_id,omitempty"`
	CreatedAt        time.Time               `json:"created_at"`
	Generation       int                     `json:"generation"`
}

// EvolutionReport summarizes one RunGeneration call, persisted under
// p3:evolution_report:{id} (§6) for operators reviewing deployment
// decisions after the fact.
type EvolutionReport struct {
	ReportID       string        `json:"report_id"`
	AgentType      string        `json:"agent_type"`
	Generation     int           `json:"generation"`
	BestStrategyID string        `json:"best_strategy_id"`
	BestFitness    float64       `json:"best_fitness"`
	Deployment     string        `json:"deployment"` // "auto", "pending", "none"
	CreatedAt      time.Time     `json:"created_at"`
}

// CellState is one schedulable unit's run/health bookkeeping, matching
// cell_states (§6). skill_id maps to a Scheduler JobConfig.ID here.
type CellState struct {
	SkillID       string     `json:"skill_id"`
	State         string     `json:"state"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastRun       *time.Time `json:"last_run,omitempty"`
	NextRun       *time.Time `json:"next_run,omitempty"`
	RunCount      int        `json:"run_count"`
	SuccessCount  int        `json:"success_count"`
	FailCount     int        `json:"fail_count"`
	AvgDurationMs float64    `json:"avg_duration_ms"`
	LastError     string     `json:"last_error,omitempty"`
	LastErrorAt   *time.Time `json:"last_error_at,omitempty"`
}

// AgentStatusRecord is one registered agent's energy/stress/performance
// snapshot, matching agent_states (§6).
type AgentStatusRecord struct {
	AgentID           string     `json:"agent_id"`
	Name              string     `json:"name"`
	Status            string     `json:"status"`
	EnergyLevel       float64    `json:"energy_level"`
	StressLevel       float64    `json:"stress_level"`
	TasksCompleted    int        `json:"tasks_completed"`
	TasksFailed       int        `json:"tasks_failed"`
	AvgResponseTimeMs float64    `json:"avg_response_time_ms"`
	LastExecuted      *time.Time `json:"last_executed,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Tier is the storage class of a data item, driven by last-access age.
type Tier string

const (
	TierHot    Tier = "hot"
	TierWarm   Tier = "warm"
	TierCold   Tier = "cold"
	TierFrozen Tier = "frozen"
)

// SourceType is the producer kind that created a DataLineage record.
type SourceType string

const (
	SourceSensor    SourceType = "sensor"
	SourceProcessor SourceType = "processor"
	SourceEvent     SourceType = "event"
	SourceManual    SourceType = "manual"
)

// DataLineage is one produced data item's provenance and tier metadata.
type DataLineage struct {
	DataID        string     `json:"data_id"`
	Source        string     `json:"source"`
	SourceType    SourceType `json:"source_type"`
	CreatedAt     time.Time  `json:"created_at"`
	LastAccessed  time.Time  `json:"last_accessed"`
	CurrentTier   Tier       `json:"current_tier"`
	Dependencies  []string   `json:"dependencies"`
	Consumers     []string   `json:"consumers"`
	QualityScore  *float64   `json:"quality_score,omitempty"`
	SchemaVersion int        `json:"schema_version"`
}

// TriggerStatus is the execution state of a scheduled job fire.
type TriggerStatus string

const (
	TriggerPending  TriggerStatus = "pending"
	TriggerRunning  TriggerStatus = "running"
	TriggerSuccess  TriggerStatus = "success"
	TriggerFailed   TriggerStatus = "failed"
	TriggerRetrying TriggerStatus = "retrying"
)

// TriggerRecord is one scheduled execution.
type TriggerRecord struct {
	ExecutionID    string        `json:"execution_id"`
	TriggerID      string        `json:"trigger_id"`
	ScheduledTime  time.Time     `json:"scheduled_time"`
	StartedAt      *time.Time    `json:"started_at,omitempty"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
	Status         TriggerStatus `json:"status"`
	RetryCount     int           `json:"retry_count"`
	Error          string        `json:"error,omitempty"`
	OutcomeSummary string        `json:"outcome_summary,omitempty"`
}

// MeridianMetrics is a time-series sample for one meridian.
type MeridianMetrics struct {
	MeridianID       string    `json:"meridian_id"`
	Timestamp        time.Time `json:"timestamp"`
	PacketsSent      int64     `json:"packets_sent"`
	PacketsReceived  int64     `json:"packets_received"`
	PacketsDropped   int64     `json:"packets_dropped"`
	QueueSize        int       `json:"queue_size"`
	Blockages        int       `json:"blockages"`
	ThroughputPerSec float64   `json:"throughput_per_sec"`
	LatencyMs        float64   `json:"latency_ms"`
	ErrorRate        float64   `json:"error_rate"`
}

// AlertKind names the category of an Alert.
type AlertKind string

const (
	AlertBackpressure AlertKind = "backpressure"
	AlertErrorRate    AlertKind = "error_rate"
	AlertLatency      AlertKind = "latency"
	AlertQuality      AlertKind = "quality"
)

// Alert is a monitoring or quality-check notification.
type Alert struct {
	AlertID      string    `json:"alert_id"`
	Kind         AlertKind `json:"kind"`
	MeridianID   string    `json:"meridian_id,omitempty"`
	DataID       string    `json:"data_id,omitempty"`
	Severity     string    `json:"severity"`
	Message      string    `json:"message"`
	CreatedAt    time.Time `json:"created_at"`
	Acknowledged bool      `json:"acknowledged"`
}
