// Package ledger counts completed tasks per project and remembers which
// task ids were completed since the last checkpoint.
//
// The ledger is a counter plus an audit log. Task ids are advisory: unknown
// or repeated ids are accepted and counted.
package ledger

// Ledger is embedded in a project snapshot. The zero value is ready to use.
//
// TasksCompleted >= LastCheckpointTask holds after every method call.
type Ledger struct {
	TasksCompleted     int      `json:"tasksCompleted"`
	LastCheckpointTask int      `json:"lastCheckpointTask"`
	Pending            []string `json:"pending,omitempty"`
	History            []string `json:"history,omitempty"`
	LastTaskID         string   `json:"lastTaskId,omitempty"`
}

// RecordCompletion counts one completed task and returns the number of
// tasks completed since the last checkpoint.
func (l *Ledger) RecordCompletion(taskID string) int {
	l.TasksCompleted++
	l.Pending = append(l.Pending, taskID)
	l.History = append(l.History, taskID)
	if taskID != "" {
		l.LastTaskID = taskID
	}
	return l.SinceCheckpoint()
}

// RecordBatch counts len(taskIDs) completed tasks.
func (l *Ledger) RecordBatch(taskIDs []string) {
	for _, id := range taskIDs {
		l.RecordCompletion(id)
	}
}

// SinceCheckpoint returns TasksCompleted - LastCheckpointTask.
func (l *Ledger) SinceCheckpoint() int {
	return l.TasksCompleted - l.LastCheckpointTask
}

// Due reports whether at least threshold tasks completed since the last checkpoint.
func (l *Ledger) Due(threshold int) bool {
	return threshold > 0 && l.SinceCheckpoint() >= threshold
}

// Checkpoint advances LastCheckpointTask to TasksCompleted and returns the
// ids recorded since the previous checkpoint.
func (l *Ledger) Checkpoint() []string {
	delta := l.Pending
	if delta == nil {
		delta = []string{}
	}
	l.Pending = nil
	l.LastCheckpointTask = l.TasksCompleted
	return delta
}

// Clone returns a copy that shares no memory with l.
func (l Ledger) Clone() Ledger {
	if l.Pending != nil {
		l.Pending = append([]string(nil), l.Pending...)
	}
	if l.History != nil {
		l.History = append([]string(nil), l.History...)
	}
	return l
}
