package config

import (
	"time"

	"github.com/ajitpratap0/synergy/pkg/logger"
)

// Snapshot is the single validated configuration consumed by every other
// component. It is built once per process by Load and passed by value, so
// concurrent readers need no synchronization.
//
// A Snapshot that fails Validate must not be handed to the store.
type Snapshot struct {
	// Connection identifies the document backend and its collections
	Connection ConnectionConfig `yaml:"connection" json:"connection"`
	// Domains controls per-domain sampling and feature extraction
	Domains DomainConfig `yaml:"domains" json:"domains"`
	// Synergy controls synergy detection
	Synergy SynergyConfig `yaml:"synergy" json:"synergy"`
	// LogLevel sets logging verbosity (DEBUG, INFO, WARNING, ERROR)
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// ConnectionConfig identifies the target backend and the two logical
// collections the application writes to.
type ConnectionConfig struct {
	// ProjectID is the backend identifier; the MongoDB database name
	ProjectID string `yaml:"project_id" json:"project_id"`
	// Collection holds raw domain data points
	Collection string `yaml:"collection" json:"collection"`
	// SynergyCollection holds detected synergy results
	SynergyCollection string `yaml:"synergy_collection" json:"synergy_collection"`
	// URI is the backend connection string. Empty means no real client is configured.
	URI string `yaml:"uri,omitempty" json:"uri,omitempty"`
	// CredentialsFile is an optional JSON file with username, password and auth_source
	CredentialsFile string `yaml:"credentials_file,omitempty" json:"credentials_file,omitempty"`
	// Timeout bounds every backend round trip
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// DomainConfig holds sampling parameters for the financial, social and IoT domains.
type DomainConfig struct {
	FinancialInterval    time.Duration `yaml:"financial_interval" json:"financial_interval"`
	SocialInterval       time.Duration `yaml:"social_interval" json:"social_interval"`
	IoTInterval          time.Duration `yaml:"iot_interval" json:"iot_interval"`
	WindowSize           int           `yaml:"window_size" json:"window_size"`
	CorrelationThreshold float64       `yaml:"correlation_threshold" json:"correlation_threshold"`
}

// SynergyConfig holds synergy-detection parameters.
type SynergyConfig struct {
	MinClusterSize   int     `yaml:"min_cluster_size" json:"min_cluster_size"`
	AnomalyThreshold float64 `yaml:"anomaly_threshold" json:"anomaly_threshold"`
	BatchSize        int     `yaml:"batch_size" json:"batch_size"`
	EnableRealTime   bool    `yaml:"enable_real_time" json:"enable_real_time"`
}

// Default returns the snapshot Load produces when no override is set.
//
// Example:
//
//	cfg := config.Default()
//	cfg.Domains.WindowSize = 20
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
func Default() Snapshot {
	return Snapshot{
		Connection: ConnectionConfig{
			ProjectID:         "cross-domain-synergy",
			Collection:        "domain_data",
			SynergyCollection: "detected_synergies",
			Timeout:           10 * time.Second,
		},
		Domains: DomainConfig{
			FinancialInterval:    60 * time.Second,
			SocialInterval:       300 * time.Second,
			IoTInterval:          30 * time.Second,
			WindowSize:           10,
			CorrelationThreshold: 0.7,
		},
		Synergy: SynergyConfig{
			MinClusterSize:   3,
			AnomalyThreshold: 2.5,
			BatchSize:        100,
			EnableRealTime:   true,
		},
		LogLevel: "INFO",
	}
}

// LoggerConfig maps the snapshot's verbosity onto the logger package.
func (s Snapshot) LoggerConfig() logger.Config {
	return logger.Config{
		Level:    s.LogLevel,
		Encoding: "json",
	}
}

// HasBackend reports whether a real backend client is configured.
func (c ConnectionConfig) HasBackend() bool {
	return c.URI != ""
}
