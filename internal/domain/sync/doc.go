// Package sync contains the Sync bounded context.
// This context manages pulling order and product data from upstream
// e-commerce platforms and deriving normalized entities from it.
//
// Key concepts:
//   - RawRecord: Immutable audit copy of one upstream payload, with transform bookkeeping
//   - NormalizedOrder / NormalizedProduct: Query-ready entities derived from raw records
//   - ExecutionLogEntry: Structured record of one pipeline run, with retry scheduling
//   - Client: Port interface for the upstream platform API
//   - Backoff: Retry delay policy shared by the API client and the raw store
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package sync
