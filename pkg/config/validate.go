package config

import (
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/synergy/pkg/errors"
)

// Rule is a single named configuration invariant.
type Rule struct {
	Name    string
	Message string
	Holds   func(Snapshot) bool
}

// Rules is the fixed, ordered list of invariants Validate evaluates.
var Rules = []Rule{
	{
		Name:    "financial_interval",
		Message: "Financial interval must be positive",
		Holds:   func(s Snapshot) bool { return s.Domains.FinancialInterval > 0 },
	},
	{
		Name:    "social_interval",
		Message: "Social interval must be positive",
		Holds:   func(s Snapshot) bool { return s.Domains.SocialInterval > 0 },
	},
	{
		Name:    "iot_interval",
		Message: "IoT interval must be positive",
		Holds:   func(s Snapshot) bool { return s.Domains.IoTInterval > 0 },
	},
	{
		Name:    "correlation_threshold",
		Message: "Correlation threshold must be between 0 and 1",
		Holds: func(s Snapshot) bool {
			return s.Domains.CorrelationThreshold > 0 && s.Domains.CorrelationThreshold < 1
		},
	},
	{
		Name:    "min_cluster_size",
		Message: "Min cluster size must be > 1",
		Holds:   func(s Snapshot) bool { return s.Synergy.MinClusterSize > 1 },
	},
}

// ValidationError reports the violated rules of a snapshot. Rule and
// Message describe the first violation in evaluation order.
type ValidationError struct {
	Rule       string
	Message    string
	Violations []Rule
}

func (e *ValidationError) Error() string {
	if len(e.Violations) <= 1 {
		return "config validation failed: " + e.Message
	}
	names := make([]string, 0, len(e.Violations))
	for _, r := range e.Violations {
		names = append(names, r.Name)
	}
	return "config validation failed: " + e.Message + " (violated: " + strings.Join(names, ", ") + ")"
}

// Validate evaluates every rule independently and returns a
// *ValidationError describing the violations, or nil.
func (s Snapshot) Validate() error {
	var violations []Rule
	for _, r := range Rules {
		if !r.Holds(s) {
			violations = append(violations, r)
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{
		Rule:       violations[0].Name,
		Message:    violations[0].Message,
		Violations: violations,
	}
}

// Check is the log-and-continue form of Validate. It logs the first
// violated rule at error level and reports whether the snapshot is usable.
func (s Snapshot) Check(log *zap.Logger) bool {
	err := s.Validate()
	if err == nil {
		return true
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		log.Error("Config validation failed: "+verr.Message, zap.String("rule", verr.Rule))
	}
	return false
}

// AsError converts a validation failure into the typed config_validation
// error used at component boundaries.
func AsError(err error) error {
	if err == nil {
		return nil
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	return errors.Wrap(err, errors.ErrorTypeConfigValidation, "invalid configuration snapshot").
		WithDetail("rule", verr.Rule)
}
