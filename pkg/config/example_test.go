package config_test

import (
	"fmt"

	"github.com/ajitpratap0/synergy/pkg/config"
)

// ExampleDefault demonstrates the defaults applied when no override is set.
func ExampleDefault() {
	cfg := config.Default()

	fmt.Printf("Project: %s\n", cfg.Connection.ProjectID)
	fmt.Printf("Financial Interval: %s\n", cfg.Domains.FinancialInterval)
	fmt.Printf("Min Cluster Size: %d\n", cfg.Synergy.MinClusterSize)

	// Output:
	// Project: cross-domain-synergy
	// Financial Interval: 1m0s
	// Min Cluster Size: 3
}

// ExampleSnapshot_Validate shows how a rule violation is reported.
func ExampleSnapshot_Validate() {
	cfg := config.Default()
	cfg.Domains.CorrelationThreshold = 1.5

	if err := cfg.Validate(); err != nil {
		fmt.Println(err)
	}

	// Output:
	// config validation failed: Correlation threshold must be between 0 and 1
}
