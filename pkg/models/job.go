package models

// JobStatus represents the state of one (device, layer) unit of work.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobSkipped   JobStatus = "skipped"
)

// Terminal reports whether the status is a final outcome. Terminal statuses
// never transition further; Failed may only re-enter Running through the
// executor's bounded retry loop before it is recorded.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobSkipped:
		return true
	}
	return false
}

// Job is one scheduled (device, layer) pair. A Job is created Pending by the
// executor and mutated only by the single worker that runs it.
type Job struct {
	Device   *DeviceRecord `json:"device"`
	Layer    Layer         `json:"layer"`
	Status   JobStatus     `json:"status"`
	Attempts int           `json:"attempts"`
	Error    string        `json:"error,omitempty"`
}
