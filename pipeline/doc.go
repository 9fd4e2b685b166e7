// Package pipeline drives remote data processing units. A unit publishes
// its output schema and the input streams it requires; the runner reads
// those inputs for each eligible user, posts them to the unit and stores
// the derived points back through the gateway.
package pipeline
