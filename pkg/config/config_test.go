package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ajitpratap0/synergy/pkg/errors"
	"github.com/ajitpratap0/synergy/pkg/testutil"
)

// clearEnv unsets every named override for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	testutil.UnsetEnv(t, Keys...)
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	snap, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), snap)
	assert.NoError(t, snap.Validate())
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(KeyProjectID, "synergy-prod")
	t.Setenv(KeyCollection, "points")
	t.Setenv(KeyStoreURI, "mongodb://db:27017")
	t.Setenv(KeyFinancialInterval, "15")
	t.Setenv(KeyCorrelationThreshold, " 0.55 ")
	t.Setenv(KeyMinClusterSize, "4")
	t.Setenv(KeyAnomalyThreshold, "3")
	t.Setenv(KeyEnableRealTime, "FALSE")
	t.Setenv(KeyLogLevel, "DEBUG")

	snap, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "synergy-prod", snap.Connection.ProjectID)
	assert.Equal(t, "points", snap.Connection.Collection)
	assert.Equal(t, "detected_synergies", snap.Connection.SynergyCollection)
	assert.True(t, snap.Connection.HasBackend())
	assert.Equal(t, 15*time.Second, snap.Domains.FinancialInterval)
	assert.InDelta(t, 0.55, snap.Domains.CorrelationThreshold, 1e-9)
	assert.Equal(t, 4, snap.Synergy.MinClusterSize)
	assert.InDelta(t, 3.0, snap.Synergy.AnomalyThreshold, 1e-9)
	assert.False(t, snap.Synergy.EnableRealTime)
	assert.Equal(t, "DEBUG", snap.LogLevel)
	assert.True(t, snap.Check(zap.NewNop()))
}

func TestLoadBooleanCoercion(t *testing.T) {
	tests := map[string]bool{
		"true": true,
		"TRUE": true,
		"True": true,
		"yes":  false,
		"1":    false,
		"off":  false,
	}
	for raw, want := range tests {
		t.Run(raw, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(KeyEnableRealTime, raw)
			snap, err := Load()
			require.NoError(t, err)
			assert.Equal(t, want, snap.Synergy.EnableRealTime)
		})
	}
}

func TestLoadParseError(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"word", KeyFinancialInterval, "sixty"},
		{"fraction", KeyWindowSize, "1.5"},
		{"decimal point", KeyWindowSize, "60.0"},
		{"not a float", KeyCorrelationThreshold, "high"},
		{"empty int", KeyMinClusterSize, ""},
		{"empty float", KeyAnomalyThreshold, ""},
		{"empty seconds", KeySocialInterval, ""},
		{"unit suffix", KeyStoreTimeout, "10s"},
		{"duration overflow", KeyIoTInterval, "9300000000"},
		{"negative duration overflow", KeyIoTInterval, "-9300000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfigParse))

			var e *errors.Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, tt.key, e.Details["key"])
		})
	}
}

func TestLoadIntegersAreDecimal(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"010", 10},
		{"08", 8},
		{" 12 ", 12},
		{"+7", 7},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(KeyWindowSize, tt.value)
			t.Setenv(KeyFinancialInterval, tt.value)

			snap, err := Load()
			require.NoError(t, err)
			assert.Equal(t, tt.want, snap.Domains.WindowSize)
			assert.Equal(t, time.Duration(tt.want)*time.Second, snap.Domains.FinancialInterval)
		})
	}
}

func TestLoadEmptyStringOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv(KeyProjectID, "")
	t.Setenv(KeyEnableRealTime, "")

	snap, err := Load()
	require.NoError(t, err)
	assert.Empty(t, snap.Connection.ProjectID)
	assert.False(t, snap.Synergy.EnableRealTime)
	assert.NoError(t, snap.Validate())
}

func TestLoadFileAndDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	file := filepath.Join(dir, "synergy.yaml")
	require.NoError(t, os.WriteFile(file, []byte(
		"financial_interval: 120\n"+
			"min_cluster_size: 5\n"+
			"firebase_project_id: ${SYNERGY_TEST_PROJECT}\n"), 0o600))

	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("SOCIAL_INTERVAL=90\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv(KeySocialInterval) })

	t.Setenv("SYNERGY_TEST_PROJECT", "from-file")
	t.Setenv(KeyMinClusterSize, "7")

	snap, err := Load(WithFile(file), WithDotEnv(envFile, filepath.Join(dir, "missing.env")))
	require.NoError(t, err)

	assert.Equal(t, 120*time.Second, snap.Domains.FinancialInterval)
	assert.Equal(t, 90*time.Second, snap.Domains.SocialInterval)
	assert.Equal(t, 7, snap.Synergy.MinClusterSize, "environment wins over file")
	assert.Equal(t, "from-file", snap.Connection.ProjectID)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(WithFile(filepath.Join(t.TempDir(), "nope.yaml")))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfigParse))
}

func TestValidateSingleViolation(t *testing.T) {
	tests := []struct {
		rule   string
		mutate func(*Snapshot)
	}{
		{"financial_interval", func(s *Snapshot) { s.Domains.FinancialInterval = 0 }},
		{"social_interval", func(s *Snapshot) { s.Domains.SocialInterval = -time.Second }},
		{"iot_interval", func(s *Snapshot) { s.Domains.IoTInterval = 0 }},
		{"correlation_threshold", func(s *Snapshot) { s.Domains.CorrelationThreshold = 1.5 }},
		{"correlation_threshold", func(s *Snapshot) { s.Domains.CorrelationThreshold = 0 }},
		{"correlation_threshold", func(s *Snapshot) { s.Domains.CorrelationThreshold = 1 }},
		{"min_cluster_size", func(s *Snapshot) { s.Synergy.MinClusterSize = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			snap := Default()
			tt.mutate(&snap)

			err := snap.Validate()
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.rule, verr.Rule)
			assert.Len(t, verr.Violations, 1)

			log, logs := testutil.ObservedLogger(zapcore.DebugLevel)
			assert.False(t, snap.Check(log))
			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, zapcore.ErrorLevel, entry.Level)
			assert.Equal(t, "Config validation failed: "+verr.Message, entry.Message)
		})
	}
}

func TestValidateReportsFirstViolationInOrder(t *testing.T) {
	snap := Default()
	snap.Synergy.MinClusterSize = 0
	snap.Domains.IoTInterval = 0

	err := snap.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "iot_interval", verr.Rule)
	assert.Len(t, verr.Violations, 2)
	assert.Contains(t, err.Error(), "min_cluster_size")

	typed := AsError(err)
	assert.True(t, errors.IsType(typed, errors.ErrorTypeConfigValidation))
	assert.Nil(t, AsError(nil))
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "out.yaml")
	snap := Default()
	snap.Domains.WindowSize = 25
	snap.Synergy.EnableRealTime = false
	snap.Connection.URI = "mongodb://localhost:27017"
	require.NoError(t, Save(path, snap))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "window_size: 25")

	loaded, err := Load(WithFile(path))
	require.NoError(t, err)
	assert.Equal(t, snap, loaded)
}
