package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBranchProbe checks that every report can be read for every branch.
	TaskBranchProbe = "reports:branch-probe"
)

// BranchProbePayload narrows a probe run. Empty fields mean all.
type BranchProbePayload struct {
	Reports  []string `json:"reports,omitempty"`
	Branches []string `json:"branches,omitempty"`
}

// NewBranchProbeTask constructs an Asynq task.
func NewBranchProbeTask(payload BranchProbePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBranchProbe, data, asynq.Queue(QueueDefault), asynq.MaxRetry(2), asynq.Timeout(5*time.Minute)), nil
}
