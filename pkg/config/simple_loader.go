package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Marshal renders a snapshot as a flat YAML document using the same keys
// WithFile reads, so a saved snapshot loads back unchanged.
func Marshal(s Snapshot) ([]byte, error) {
	flat := map[string]interface{}{
		strings.ToLower(KeyProjectID):            s.Connection.ProjectID,
		strings.ToLower(KeyCollection):           s.Connection.Collection,
		strings.ToLower(KeySynergyCollection):    s.Connection.SynergyCollection,
		strings.ToLower(KeyStoreURI):             s.Connection.URI,
		strings.ToLower(KeyCredentialsFile):      s.Connection.CredentialsFile,
		strings.ToLower(KeyStoreTimeout):         int(s.Connection.Timeout / time.Second),
		strings.ToLower(KeyFinancialInterval):    int(s.Domains.FinancialInterval / time.Second),
		strings.ToLower(KeySocialInterval):       int(s.Domains.SocialInterval / time.Second),
		strings.ToLower(KeyIoTInterval):          int(s.Domains.IoTInterval / time.Second),
		strings.ToLower(KeyWindowSize):           s.Domains.WindowSize,
		strings.ToLower(KeyCorrelationThreshold): s.Domains.CorrelationThreshold,
		strings.ToLower(KeyMinClusterSize):       s.Synergy.MinClusterSize,
		strings.ToLower(KeyAnomalyThreshold):     s.Synergy.AnomalyThreshold,
		strings.ToLower(KeyBatchSize):            s.Synergy.BatchSize,
		strings.ToLower(KeyEnableRealTime):       s.Synergy.EnableRealTime,
		strings.ToLower(KeyLogLevel):             s.LogLevel,
	}
	data, err := yaml.Marshal(flat)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return data, nil
}

// Save saves a snapshot to a YAML file
func Save(filePath string, s Snapshot) error {
	data, err := Marshal(s)
	if err != nil {
		return err
	}

	if err := os.WriteFile(filePath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}
