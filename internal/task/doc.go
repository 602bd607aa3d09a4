// Package task implements the producer/consumer pipeline.
//
// Producers reserve unique ids from a shared IDCounter, build arithmetic
// tasks and push them onto a bounded TaskQueue. Consumers pop tasks and fold
// them into a shared Accumulator one at a time. A Supervisor owns the shared
// state of a run, starts both WorkerPools on a substrate.Runtime, stops
// production when the run window ends and joins every worker after the queue
// has drained.
package task
