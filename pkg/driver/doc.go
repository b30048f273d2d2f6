// Package driver defines the persistence contract backing the ontology
// store, and its implementations.
//
// The contract is deliberately narrow: point-in-time reads, range scans by
// object/link type, incident-link lookup, and an atomic compare-and-swap
// version transition per identity chain. Everything else (validity
// filtering, idempotence, caching, pattern traversal) lives above the
// driver in pkg/ontology.
//
// Three implementations ship:
//   - MemoryDriver: in-process maps, the test and embedding default
//   - BadgerDriver: embedded persistent store on dgraph-io/badger
//   - Neo4jDriver: remote graph database over the Bolt protocol
//
// RetryDriver decorates any of them with bounded exponential backoff for
// transient faults, surfacing UpstreamUnavailable once retries are spent.
// NotFound and Conflict are never retried.
package driver
