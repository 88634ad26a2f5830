// Package orchestrator drives a project through the DevForge workflow.
//
// # Overview
//
// The Orchestrator is the only component that mutates project state. It
// receives one command at a time, checks the command's gate against the
// project's artifacts, calls the generator the command needs and commits
// the resulting transition.
//
// # Phases
//
//	requirements → decision_matrix → spec_kit → backend_dev → api_testing
//	→ frontend_prompt → frontend_integration → bdd_testing → complete
//
// Gating is by artifact presence, not by phase equality: a command is valid
// whenever the artifacts it depends on exist. This lets a human re-enter a
// later command (asking the frontend questions again, regenerating the API
// tests) without re-deriving earlier artifacts.
//
// # Commit model
//
// Every command follows the same sequence while holding the project's lock:
//
//  1. look up the committed project and check the command's gate
//  2. call the generator (LLM or template)
//  3. apply the transition to a clone of the project
//  4. write the generated files and the snapshot
//  5. swap the clone into the registry and publish an event
//
// A failure in steps 2 to 4 discards the clone, so the registered project
// is exactly as it was before the command. Re-issuing the command after the
// failure is fixed produces the same transition.
//
// # Checkpoints
//
// complete_task counts one task in the project's ledger. When the number of
// tasks since the last checkpoint reaches the threshold (20 by default) an
// automatic checkpoint is written in the same commit; if that write fails
// the increment is rolled back with it.
package orchestrator
