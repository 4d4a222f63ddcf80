// Package infra contains technical adapters: prediction sinks, metrics
// recorders and the zerolog logger. They register themselves with the core
// registries on import and depend only on interfaces defined in core.
package infra
