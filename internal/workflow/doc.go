// Package workflow holds the project aggregate and its phase state machine.
//
// Phases are ordered for documentation only. Commands are gated on the
// presence of artifacts (decision matrix, spec-kit, progress state), not on
// strict phase equality, so a driving agent can re-issue an informational or
// later command without re-deriving earlier artifacts. Transition methods
// record the effect of a command; guard methods report what is missing.
//
// A Project is mutated only through a Clone owned by the orchestrator, which
// swaps it into the registry after the change has been persisted.
package workflow
