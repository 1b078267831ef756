// Package kernel implements the transaction protocol driving append-only,
// atomically committed writes to a table's commit log.
// This package implements:
// - Result: the tagged success/failure envelope of every fallible call
// - Error: the explicitly owned diagnostic payload of failure results
// - Engine: the shared, ref-counted capability provider
// - Transaction: the exclusive, single-use commit state machine
// - EngineData: the exclusive handle to one imported row batch
package kernel
