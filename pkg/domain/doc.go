// Package domain holds the core value types of the survey engine:
// sessions, response records, and the errors that cross the engine boundary.
//
// Types here are storage-agnostic. Adapters serialize them however their
// backend prefers; the engine only ever sees these structs.
package domain
