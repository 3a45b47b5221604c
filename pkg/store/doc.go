// Package store provides the dual-mode persistence manager for the synergy
// application: document-store semantics (collections of keyed records)
// backed by MongoDB when it is configured and reachable, and by an in-memory
// store otherwise.
//
// # Lifecycle
//
//	Uninitialized ──Initialize──▶ Live ──connectivity failure──▶ Mock
//	      │                                                      ▲
//	      ├──────────── no client / unreachable ─────────────────┘
//	      └──────────── unclassified error ──▶ Failed
//
// Callers never see a hard failure only because the remote backend is
// unreachable: Initialize falls back to mock mode, and a connectivity error
// during a live operation switches to mock mode for the rest of the process
// and retries the operation once there. The switch is logged at error level
// because records written before it are not migrated.
//
// # Usage
//
//	mgr := store.NewManager(logger, store.WithDialer(store.NewMongoDialer(logger)))
//	if err := mgr.InitializeFromSnapshot(ctx, snap); err != nil {
//		return err // Failed: unclassified backend error or invalid snapshot
//	}
//	defer mgr.Close(ctx)
//
//	err := mgr.Put(ctx, "domain_data", "btc-usd-1700000000", store.Fields{"price": 42000.5})
//	rec, found, err := mgr.Get(ctx, "domain_data", "btc-usd-1700000000")
//	for rec, err := range mgr.Query(ctx, "domain_data", store.FieldEquals("domain", "financial")) {
//		...
//	}
//
// Any type satisfying Backend can stand in for MongoDB, which is how the
// live path is tested without a server.
package store
