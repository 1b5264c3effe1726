// Package infra holds the adapters to external systems: the Postgres store,
// the prediction publishers, metrics exporters and model artifact storage.
// These packages depend only on the interfaces defined in the core packages.
package infra
