// Package storage defines the persistence interfaces used by the session
// monitoring components, along with the record types they exchange.
//
// Two in-tree implementations are provided:
//   - memory: a thread-safe in-memory store suitable for single-process
//     deployments, development, and tests.
//   - valkey: a Valkey-backed store for deployments that need persistence
//     across restarts or sharing between processes.
//
// All interface methods accept a context.Context for cancellation and
// timeout propagation.
package storage
