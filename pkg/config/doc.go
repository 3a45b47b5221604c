// Package config loads and validates the configuration snapshot for the
// cross-domain synergy application.
//
// A Snapshot groups three typed sections plus a log level:
//
//   - Connection: backend identifier, connection string and collection names
//   - Domains: financial, social and IoT sampling intervals, window size and
//     correlation threshold
//   - Synergy: minimum cluster size, anomaly threshold, batch size and the
//     real-time switch
//
// # Loading
//
// Every field has a named override (FINANCIAL_INTERVAL, MIN_CLUSTER_SIZE, ...)
// and a documented default. Load reads overrides from the environment, from
// optional .env files and from an optional YAML file:
//
//	snap, err := config.Load(config.WithDotEnv(".env"))
//	if err != nil {
//		log.Fatal(err) // config_parse: a value could not be coerced
//	}
//
// # Validation
//
// Validation is soft. Validate returns a *ValidationError naming the first
// violated rule; Check logs that rule and returns false so startup
// diagnostics can continue:
//
//	if !snap.Check(logger) {
//		return // do not hand snap to the store
//	}
//
// Snapshots are immutable values. Load is intended to run once at process
// start and the result passed to dependents explicitly.
package config
