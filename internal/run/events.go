package run

import "github.com/zumanm1/netaudit/pkg/models"

// Event topics published by the executor.
const (
	TopicRunStarted    = "run.started"
	TopicJobFinished   = "run.job.finished"
	TopicDeviceSkipped = "run.device.skipped"
	TopicRunCompleted  = "run.completed"
)

// RunStartedPayload is the payload for TopicRunStarted.
type RunStartedPayload struct {
	RunID   string         `json:"run_id"`
	Devices int            `json:"devices"`
	Layers  []models.Layer `json:"layers"`
	Workers int            `json:"workers"`
}

// JobFinishedPayload is the payload for TopicJobFinished. It is published
// once per job, after the job reaches a terminal status.
type JobFinishedPayload struct {
	RunID    string           `json:"run_id"`
	Hostname string           `json:"hostname"`
	Layer    models.Layer     `json:"layer"`
	Status   models.JobStatus `json:"status"`
	Attempts int              `json:"attempts"`
	Error    string           `json:"error,omitempty"`
}

// DeviceSkippedPayload is the payload for TopicDeviceSkipped, published when
// a device's remaining jobs are abandoned after its session could not be
// established.
type DeviceSkippedPayload struct {
	RunID    string `json:"run_id"`
	Hostname string `json:"hostname"`
	Reason   string `json:"reason"`
}

// RunCompletedPayload is the payload for TopicRunCompleted.
type RunCompletedPayload struct {
	RunID     string `json:"run_id"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	Fatal     string `json:"fatal,omitempty"`
}
