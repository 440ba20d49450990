// Package trace is the operational log for container loading and bytecode
// execution.
//
// # Usage
//
// Enable tracing via command-line flags:
//
//	necro run --trace=- --trace-level=detail movie.swf
//
// # Architecture
//
//   - Nop: zero-overhead tracer when disabled
//   - StreamTracer: immediate write to output (file/stderr)
//   - RingTracer: circular buffer kept for post-mortem dumps
//   - MultiTracer: combines multiple tracers
//
// # Levels
//
//   - LevelOff: no tracing
//   - LevelError: only recovered faults
//   - LevelPhase: driver and module boundaries
//   - LevelDetail: unit invocations
//   - LevelDebug: everything including single instructions
//
// Fault events (skipped opcodes, aborted calls, unresolved symbols) are
// emitted at every level except LevelOff.
//
// # Context Propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	t := trace.FromContext(ctx)
//
//	ctx, span := trace.Start(ctx, t, trace.ScopeUnit, "frame")
//	defer span.End("")
//
// Spans opened with Start under ctx nest below span. Begin takes an
// explicit parent ID instead.
package trace
