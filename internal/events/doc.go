// Package events provides the lifecycle events emitted by a pipeline run and
// the plumbing that delivers them.
//
// Workers emit events without knowing which handlers will process them, so
// logging, metrics and test recorders stay decoupled from the worker loops.
//
// The primary components are:
// - Event: a single lifecycle occurrence (task created, consumed, processed, dropped, run finished)
// - EventHandler: Interface for components that can handle events
// - EventEmitter: Interface for components that can emit events
// - LogHandler: writes the structured log line for each event
// - Recorder: keeps every event in memory for inspection
package events
