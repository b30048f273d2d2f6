// Package utils provides the bounded-concurrency primitives and small
// helpers shared across ontoscore.
//
// Scoring is read-dominant and fans its graph queries out on a semaphore-
// bounded executor; batch recomputation runs companies through a generic
// worker pool under a global concurrency cap. Panics inside worker
// goroutines are recovered and surfaced as PanicError rather than taking
// down sibling work.
package utils
