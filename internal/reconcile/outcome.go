// Package reconcile converges remote GitLab state toward declared desired
// state, one resource at a time: check current state, create if absent, and
// interpret creation faults that mean "somebody got there first" as success.
package reconcile

// Status is the terminal state of a single reconciliation call.
type Status string

const (
	StatusCreated          Status = "created"
	StatusAlreadyExists    Status = "already_exists"
	StatusProtected        Status = "protected"
	StatusAlreadyProtected Status = "already_protected"
	StatusFailed           Status = "failed"
)

// Outcome is the tagged result of a create/act attempt. Message carries the
// failure reason for StatusFailed and display text otherwise.
type Outcome struct {
	Status  Status
	Message string
}

// Failure reports whether the outcome is terminal-failed. Already-* statuses
// are non-errors.
func (o Outcome) Failure() bool { return o.Status == StatusFailed }

func failed(err error) Outcome {
	return Outcome{Status: StatusFailed, Message: err.Error()}
}

// Presence is the tri-state result of an existence probe. CheckFailed means
// the probe itself faulted; callers degrade it to "absent" with a logged
// error so existence checks never abort a run.
type Presence int

const (
	Absent Presence = iota
	Present
	CheckFailed
)
