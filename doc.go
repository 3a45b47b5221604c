// Package synergy is the configuration and state-persistence layer of the
// cross-domain synergy application. It turns environment overrides into a
// validated, immutable configuration snapshot and stores keyed records in
// MongoDB, degrading to an in-memory store whenever the backend is absent or
// unreachable.
//
// # Key Packages
//
//	pkg/config        - Snapshot loading (env, .env, YAML), defaults and validation rules
//	pkg/store         - Dual-mode persistence manager (Live MongoDB / Mock in-memory)
//	pkg/synergy       - Typed repository for domain data points and synergy results
//	pkg/errors        - Typed errors shared by every package
//	pkg/logger        - Zap logger construction and the process-wide logger
//	pkg/metrics       - Prometheus instruments for store operations and mode changes
//	pkg/observability - OpenTelemetry tracing around store operations
//	pkg/json          - goccy/go-json codec helpers
//	cmd/synergy       - Command-line tool
//
// # Quick Start
//
//	snap, err := config.Load(config.WithDotEnv(".env"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !snap.Check(logger) {
//	    os.Exit(1)
//	}
//
//	mgr := store.NewManager(logger, store.WithDialer(store.NewMongoDialer(logger)))
//	if err := mgr.InitializeFromSnapshot(ctx, snap); err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Close(ctx)
//
//	repo := synergy.NewRepository(mgr, snap, logger)
//	point, err := repo.SaveDataPoint(ctx, synergy.DataPoint{
//	    Domain: synergy.DomainFinancial,
//	    Values: map[string]float64{"price": 42000.5},
//	})
//
// # Configuration
//
// Every setting has a default and a named override. STORE_URI selects the
// MongoDB deployment; without it the store runs in memory:
//
//	export STORE_URI=mongodb://localhost:27017
//	export FIREBASE_PROJECT_ID=cross-domain-synergy
//	export MIN_CLUSTER_SIZE=3
//
//	synergy config check
//	synergy store put domain_data btc-1 '{"price": 42000.5}'
package synergy
