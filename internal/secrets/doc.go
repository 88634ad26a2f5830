// Package secrets detects and redacts credentials in free text.
//
// Issues reported by the driving agent and continuation prompts are written
// to disk and replayed into fresh sessions, so both pass through a Scrubber
// before they are persisted.
package secrets
