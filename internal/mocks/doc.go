// Package mocks provides centralized in-memory store implementations for
// testing.
//
// Instead of defining inline fakes in individual test files, these
// standardized implementations are reused across test packages. They honor
// the same contracts as the Postgres stores - duplicate detection,
// version-checked updates, not-found sentinels - so service-level tests
// exercise real control flow, including the optimistic-concurrency retry
// path.
package mocks
