// Package app is the composition layer of the Revibes backend.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	├── storage/            # Store interfaces, memory/ and postgres/ implementations
//	├── services/           # Business logic, one package per domain
//	├── httpapi/            # REST handlers, routing and audit log
//	├── system/             # Lifecycle manager for background services
//	├── runtime/            # Process bootstrap: stores, cache, HTTP server
//	└── metrics/            # Prometheus collectors
//
// # Responsibilities
//
// The app package composes services with their stores and each other. The
// points ledger is shared: logistics, missions, vouchers and exchange all
// move balances through it inside their own storage transactions, and
// report mission events through the missions service in the same
// transaction. Business rules live in services/, never here.
//
// # Lifecycle
//
// Services without background work register as system.NoopService so the
// manager lists them. The maintenance scheduler is the only service with a
// real Start/Stop and is registered when scheduling is enabled.
package app
