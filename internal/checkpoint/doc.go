// Package checkpoint writes durable progress checkpoints for a project and
// derives the continuation prompt a fresh agent session resumes from.
//
// A checkpoint records the task ids completed since the previous one, the
// task in flight and the issues reported in between. Checkpoints are
// appended to a per-project log and never modified. The Writer mutates the
// project clone it is handed (ledger, progress, issues) and appends the log
// entry; committing the clone is the caller's job.
//
// Automatic checkpoints are taken every DefaultThreshold completed tasks
// unless the orchestrator is configured otherwise.
package checkpoint
