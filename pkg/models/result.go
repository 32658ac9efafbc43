package models

import "time"

// ResultKind classifies the output of one device command.
type ResultKind string

const (
	// ResultSuccess means the command produced usable output.
	ResultSuccess ResultKind = "success"
	// ResultNotConfigured means the device reported the queried feature as
	// absent. This is a successful outcome with an empty payload, never a
	// failure.
	ResultNotConfigured ResultKind = "not_configured"
	// ResultError means the command was rejected or failed to execute.
	ResultError ResultKind = "error"
)

// OK reports whether the kind counts as a successful command outcome.
func (k ResultKind) OK() bool {
	return k == ResultSuccess || k == ResultNotConfigured
}

// CommandResult is the transcript of a single command. Immutable once
// produced by a collector run.
type CommandResult struct {
	Command  string        `json:"command"`
	Output   string        `json:"output"`
	Kind     ResultKind    `json:"kind"`
	Duration time.Duration `json:"duration"`
	Err      string        `json:"error,omitempty"`
}

// LayerResult is the structured record handed to the output sink for one
// (device, layer) collection: ordered per-command transcripts plus a
// layer-specific parsed summary.
type LayerResult struct {
	Hostname  string            `json:"hostname"`
	Layer     Layer             `json:"layer"`
	Platform  Platform          `json:"platform"`
	Timestamp time.Time         `json:"timestamp"`
	Commands  []CommandResult   `json:"commands"`
	Summary   map[string]string `json:"summary,omitempty"`
}

// Failed reports whether any command in the result errored.
func (r *LayerResult) Failed() bool {
	for i := range r.Commands {
		if !r.Commands[i].Kind.OK() {
			return true
		}
	}
	return false
}
