// Package parallel provides the bounded worker fan-out and the resource
// throttle used by the build pipeline.
//
// RunBounded submits items in order and runs at most maxParallelism workers at
// once. Throttle hands out scoped Guards against three independent permit
// pools (CPU, disk IO, network IO); a Guard stored in a context makes nested
// acquisitions of the same kind pass-through instead of deadlocking.
package parallel
