// Package orchestrator runs multi-role analysis sessions.
//
// # Overview
//
// A session takes one request and fans it out to every analyst role in
// three ordered work phases, then aggregates the results:
//
//	analysis → design → planning → synthesis → completed
//
// Within a phase every role runs concurrently. The phase ends at a barrier
// and its insights are merged into the session in one atomic step, so a
// reader either sees all of a phase or none of it.
//
// # Key Components
//
//   - Executor fans a phase out to the roles and merges the results.
//   - Gates run at every phase boundary and may stop a session
//     (cancellation, shutdown, token budget).
//   - Synthesize and GenerateRecommendations are pure functions of the
//     insight map.
//   - Registry stores sessions; MemoryRegistry is the in-process
//     implementation.
//   - Orchestrator is the facade used by the HTTP and CLI surfaces.
//
// # Failure Model
//
// Provider failures never fail a session. The executor substitutes a
// deterministic fallback analysis, marks the insight, and counts the error.
// Only internal faults surface as a PhaseExecutionError, which is fatal to
// the session.
//
// # Usage Example
//
//	orch, err := orchestrator.New(orchestrator.Options{
//	    Router:   router,
//	    Registry: orchestrator.NewMemoryRegistry(),
//	    Logger:   logger,
//	})
//	id, err := orch.Start(ctx, orchestrator.Request{Query: "Build a booking app"})
//	snap, err := orch.Status(id)
package orchestrator
