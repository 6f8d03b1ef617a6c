package worker

import (
	"errors"
	"fmt"

	"substore-client/internal/api"
)

// AllArtifacts names the target of a run that syncs every artifact
// flagged for sync.
const AllArtifacts = "*"

// SyncError reports a failed artifact upload or a scheduling failure.
type SyncError struct {
	Stage    string // schedule or sync
	Artifact string // artifact name, AllArtifacts for a full run, empty when scheduling failed
	Status   int    // HTTP status returned by the store, zero when none arrived
	Message  string
	Err      error
}

func (e *SyncError) Error() string {
	target := ""
	if e.Artifact != "" {
		target = fmt.Sprintf(" [artifact %s]", e.Artifact)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s%s: %s (status %d): %v", e.Stage, target, e.Message, e.Status, e.Err)
	}
	return fmt.Sprintf("%s%s: %s: %v", e.Stage, target, e.Message, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Rejected reports whether the store answered with an error status, as
// opposed to being unreachable.
func (e *SyncError) Rejected() bool {
	return e.Status != 0
}

func NewSyncError(stage, artifact, message string, err error) error {
	syncErr := &SyncError{
		Stage:    stage,
		Artifact: artifact,
		Message:  message,
		Err:      err,
	}
	var reqErr *api.RequestError
	if errors.As(err, &reqErr) {
		syncErr.Status = reqErr.Status
	}
	return syncErr
}
