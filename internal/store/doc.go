// Package store keeps projects in memory and on disk.
//
// Registry is the process-wide name -> project map with a lock per project
// name. FileStore is the durable layout under an output directory:
//
//	<root>/<project>/
//	    PROJECT.yaml                       human-readable manifest
//	    .devforge/state.json               snapshot, the commit point
//	    .devforge/checkpoints.jsonl        append-only checkpoint log
//	    .devforge/continuation-prompt.txt  latest continuation prompt
//	    docs/ postman/ tests/ frontend/ ui/  generated artifacts
//
// Every file is written to a temp file, synced and renamed into place, so a
// write either fully succeeds or leaves the previous content.
package store
