package domain

import (
	"errors"
	"fmt"
)

// The error taxonomy below is returned as typed values so callers can choose
// per-error treatment. Nothing in this service raises past a call boundary.

// LocalPersistenceError means a ConfigStore write failed. Fatal to the
// triggering action; the raw cause is shown to the operator verbatim.
type LocalPersistenceError struct {
	Op  string
	Err error
}

func (e *LocalPersistenceError) Error() string {
	return fmt.Sprintf("local persistence failed during %s: %v", e.Op, e.Err)
}

func (e *LocalPersistenceError) Unwrap() error { return e.Err }

// RemoteProvisioningError means the external create/update/activate call
// failed. The provider's message is retained verbatim for operator display
// and support escalation.
type RemoteProvisioningError struct {
	Op      string
	Message string
}

func (e *RemoteProvisioningError) Error() string {
	return fmt.Sprintf("provisioning call %s failed: %s", e.Op, e.Message)
}

// RemoteSyncError means the local write succeeded but the subsequent remote
// reconciliation did not. Edits are saved locally, not yet live.
type RemoteSyncError struct {
	Op      string
	Message string
}

func (e *RemoteSyncError) Error() string {
	return fmt.Sprintf("saved locally, not yet applied to the live agent: %s failed: %s", e.Op, e.Message)
}

// ValidationError is raised before any remote call is attempted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CapabilityError means the operation was attempted before its prerequisite
// state, e.g. selecting a voice before provisioning. No network call is
// issued.
type CapabilityError struct {
	Message string
}

func (e *CapabilityError) Error() string { return e.Message }

// ErrProvisionFirst is the capability error returned by operations that
// require an existing hosted agent.
var ErrProvisionFirst = &CapabilityError{Message: "agent is not provisioned yet: complete setup and activate first"}

// IsCapabilityError reports whether err is (or wraps) a CapabilityError.
func IsCapabilityError(err error) bool {
	var ce *CapabilityError
	return errors.As(err, &ce)
}

// IsRemoteSyncError reports whether err is (or wraps) a RemoteSyncError.
func IsRemoteSyncError(err error) bool {
	var se *RemoteSyncError
	return errors.As(err, &se)
}
