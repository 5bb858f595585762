// Package storage defines the usage ledger: one accounting record per
// processed request, appended by the transport after the engine returns.
// Adapters (memory, sqlite, postgres) implement Ledger. The ledger never
// holds conversation content or credentials.
package storage
