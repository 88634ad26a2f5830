package checkpoint

import (
	"time"
)

// DefaultThreshold is the number of completed tasks between automatic checkpoints.
const DefaultThreshold = 20

// Checkpoint is an immutable progress record.
type Checkpoint struct {
	// ID is a random UUID.
	ID string `json:"id"`

	// Project is the project name.
	Project string `json:"project"`

	// Sequence numbers checkpoints per project starting at 1.
	Sequence int `json:"sequence"`

	Timestamp time.Time `json:"timestamp"`
	Phase     string    `json:"phase"`

	// CompletedTaskIDs are the ids recorded since the previous checkpoint.
	CompletedTaskIDs []string `json:"completedTaskIds"`

	// CurrentTaskID is the task in flight, if any.
	CurrentTaskID *string `json:"currentTaskId"`

	// Issues are the issues reported since the previous checkpoint.
	Issues []string `json:"issues"`

	TasksCompleted  int  `json:"tasksCompleted"`
	OverallProgress int  `json:"overallProgress"`
	Auto            bool `json:"auto"`
}

// Request describes a checkpoint to create.
type Request struct {
	CurrentTaskID *string
	Issues        []string
	Auto          bool
}
