// Package config provides structures and utilities for loading and managing
// the application configuration from embedded YAML, .env files and
// environment variables.
package config

// EmbeddedConfig holds the raw content of the configuration file, typically
// passed from main via go:embed.
type EmbeddedConfig []byte

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the scheduling timezone (e.g., "America/New_York").
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// GateConfig configures the dependency gate's readiness checks and poll loop.
type GateConfig struct {
	TimeoutMinutes      int     `yaml:"timeout_minutes"`       // TimeoutMinutes bounds the poll loop.
	PollIntervalSeconds int     `yaml:"poll_interval_seconds"` // PollIntervalSeconds is the fixed re-check interval.
	MinRowCount         int     `yaml:"min_row_count"`         // MinRowCount is the minimum upstream entity count.
	MeanQualityFloor    float64 `yaml:"mean_quality_floor"`    // MeanQualityFloor is the minimum mean quality score.
	MinQualityFloor     float64 `yaml:"min_quality_floor"`     // MinQualityFloor is the minimum per-row quality score.
}

// DispatchConfig configures the batch dispatcher.
type DispatchConfig struct {
	// Mode selects line generation: "SINGLE" (production) or "MULTI" (backtest).
	Mode string `yaml:"mode"`
}

// WorkerConfig configures the worker consume loop and the platform scaling
// parameters the design must tolerate.
type WorkerConfig struct {
	Concurrency       int     `yaml:"concurrency"`        // Concurrency is the number of in-flight items per instance.
	MinInstances      int     `yaml:"min_instances"`      // MinInstances clamps the scaling recommendation.
	MaxInstances      int     `yaml:"max_instances"`      // MaxInstances clamps the scaling recommendation.
	TargetUtilization float64 `yaml:"target_utilization"` // TargetUtilization feeds the scaling divisor.
}

// TrackerConfig configures the completion tracker.
type TrackerConfig struct {
	DeadlineMinutes  int     `yaml:"deadline_minutes"`   // DeadlineMinutes forces TIMED_OUT when it elapses.
	SuccessRateFloor float64 `yaml:"success_rate_floor"` // SuccessRateFloor triggers an alert below it.
}

// MessageRetryConfig holds queue redelivery configuration.
type MessageRetryConfig struct {
	MaxAttempts    int   `yaml:"max_attempts"`    // MaxAttempts is total deliveries including the first.
	BackoffSeconds []int `yaml:"backoff_seconds"` // BackoffSeconds is the per-redelivery delay schedule.
}

// AdapterRetryConfig holds prediction-system call retry configuration.
type AdapterRetryConfig struct {
	MaxAttempts       int `yaml:"max_attempts"`        // MaxAttempts is total attempts including the first.
	InitialIntervalMs int `yaml:"initial_interval_ms"` // InitialIntervalMs is the base exponential backoff interval.
}

// CircuitBreakerConfig holds per-system circuit breaker configuration.
type CircuitBreakerConfig struct {
	Threshold       int `yaml:"threshold"`         // Threshold is the consecutive-failure count that opens the circuit.
	ResetIntervalMs int `yaml:"reset_interval_ms"` // ResetIntervalMs is the open-to-half-open wait.
}

// RetryConfig groups the three independent retry tiers.
type RetryConfig struct {
	Message        MessageRetryConfig   `yaml:"message"`
	Adapter        AdapterRetryConfig   `yaml:"adapter"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// EnsembleConfig configures aggregation thresholds. The two-bucket variance
// confidence is deliberately coarse; its thresholds are configurable rather
// than tuned.
type EnsembleConfig struct {
	Quorum               int     `yaml:"quorum"`                 // Quorum is the minimum base systems for an ensemble.
	LowVarianceThreshold float64 `yaml:"low_variance_threshold"` // LowVarianceThreshold separates the confidence buckets.
	HighConfidence       float64 `yaml:"high_confidence"`        // HighConfidence is assigned below the variance threshold.
	LowConfidence        float64 `yaml:"low_confidence"`         // LowConfidence is assigned at or above it.
	StrongEdgePct        float64 `yaml:"strong_edge_pct"`        // StrongEdgePct is the STRONG_OVER/UNDER edge tier.
	EdgePct              float64 `yaml:"edge_pct"`               // EdgePct is the OVER/UNDER edge tier.
	ConfidenceFloor      float64 `yaml:"confidence_floor"`       // ConfidenceFloor gates the moderate-confidence tier.
}

// SchedulerConfig configures the daily trigger.
type SchedulerConfig struct {
	Enabled bool   `yaml:"enabled"` // Enabled turns the in-process cron trigger on.
	Cron    string `yaml:"cron"`    // Cron is the trigger schedule in the system timezone.
}

// ObservabilityConfig configures tracing export.
type ObservabilityConfig struct {
	TracingEnabled bool   `yaml:"tracing_enabled"` // TracingEnabled turns on OTLP span export.
	OTLPEndpoint   string `yaml:"otlp_endpoint"`   // OTLPEndpoint is the OTLP/gRPC collector address.
	ServiceName    string `yaml:"service_name"`    // ServiceName identifies this service in traces.
}

// QueueConfig configures the Redis-backed work and completion queues.
type QueueConfig struct {
	Addr     string `yaml:"addr"`      // Addr is the Redis server address.
	Password string `yaml:"password"`  // Password for Redis authentication (optional).
	DB       int    `yaml:"db"`        // DB is the Redis database number.
	Prefix   string `yaml:"prefix"`    // Prefix is prepended to all queue keys.
	PoolSize int    `yaml:"pool_size"` // PoolSize is the maximum number of connections.
}

// PropsConfig holds all configuration under the "props" top-level key.
type PropsConfig struct {
	System    SystemConfig    `yaml:"system"`
	Gate      GateConfig      `yaml:"gate"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Worker    WorkerConfig    `yaml:"worker"`
	Tracker   TrackerConfig   `yaml:"tracker"`
	Retry     RetryConfig     `yaml:"retry"`
	Ensemble  EnsembleConfig  `yaml:"ensemble"`
	Queue     QueueConfig     `yaml:"queue"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	// Observability is the tracing export configuration.
	Observability ObservabilityConfig `yaml:"observability"`
	// Database is the driver-keyed database section, bound to a concrete
	// DatabaseConfig through the mapstructure binder.
	Database map[string]interface{} `yaml:"database"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	Props PropsConfig `yaml:"props"`
	// EmbeddedConfig holds the raw embedded bytes, not populated from YAML.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a new Config populated with default values. Embedded
// YAML and environment variables are merged over these defaults.
func NewConfig() *Config {
	return &Config{
		Props: PropsConfig{
			System: SystemConfig{
				Timezone: "America/New_York",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Gate: GateConfig{
				TimeoutMinutes:      15,
				PollIntervalSeconds: 60,
				MinRowCount:         400,
				MeanQualityFloor:    70,
				MinQualityFloor:     60,
			},
			Dispatch: DispatchConfig{Mode: "SINGLE"},
			Worker: WorkerConfig{
				Concurrency:       5,
				MinInstances:      0,
				MaxInstances:      20,
				TargetUtilization: 0.8,
			},
			Tracker: TrackerConfig{
				DeadlineMinutes:  45,
				SuccessRateFloor: 0.90,
			},
			Retry: RetryConfig{
				Message: MessageRetryConfig{
					MaxAttempts:    3,
					BackoffSeconds: []int{10, 30},
				},
				Adapter: AdapterRetryConfig{
					MaxAttempts:       3,
					InitialIntervalMs: 1000,
				},
				CircuitBreaker: CircuitBreakerConfig{
					Threshold:       5,
					ResetIntervalMs: 60000,
				},
			},
			Ensemble: EnsembleConfig{
				Quorum:               2,
				LowVarianceThreshold: 4.0,
				HighConfidence:       85,
				LowConfidence:        60,
				StrongEdgePct:        5.0,
				EdgePct:              3.0,
				ConfidenceFloor:      70,
			},
			Queue: QueueConfig{
				Addr:     "localhost:6379",
				Prefix:   "props:",
				PoolSize: 10,
			},
			Scheduler: SchedulerConfig{
				Enabled: false,
				Cron:    "0 6 * * *",
			},
			Observability: ObservabilityConfig{
				TracingEnabled: false,
				OTLPEndpoint:   "localhost:4317",
				ServiceName:    "props-batch",
			},
			Database: map[string]interface{}{},
		},
	}
}
