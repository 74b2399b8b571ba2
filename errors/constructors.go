package errors

import (
	"fmt"
	"os/exec"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *PanelError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *PanelError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// BridgeUnavailable reports that no command execution channel exists,
// as in a preview or development context.
func BridgeUnavailable(cmd string) *PanelError {
	return New(ErrCodeBridgeUnavailable, "command execution channel unavailable").
		WithDetail("command", cmd)
}

// CommandFailed creates a command execution failure error.
// stderr is used as the message when present, mirroring what the
// shell reported.
func CommandFailed(cmd string, stderr string, err error) *PanelError {
	msg := stderr
	if msg == "" {
		msg = fmt.Sprintf("command failed: %s", cmd)
	}
	panelErr := Wrap(err, ErrCodeCommandFailed, msg).
		WithDetail("command", cmd)

	if exitErr, ok := err.(*exec.ExitError); ok {
		panelErr = panelErr.WithDetail("exitCode", exitErr.ExitCode())
	}

	return panelErr
}

// InvalidModuleID creates an error for identifiers that cannot be used
// as a single path component.
func InvalidModuleID(id string, reason string) *PanelError {
	return New(ErrCodeInvalidModuleID, fmt.Sprintf("invalid module id %q: %s", id, reason)).
		WithDetail("module", id)
}

// ModuleNotFound creates a module not found error
func ModuleNotFound(id string) *PanelError {
	return New(ErrCodeModuleNotFound, fmt.Sprintf("module '%s' not found", id)).
		WithDetail("module", id)
}

// UpdatePending reports that a module cannot be changed while an update
// is waiting for reboot.
func UpdatePending(id string) *PanelError {
	return New(ErrCodeUpdatePending, fmt.Sprintf("module '%s' has an update pending", id)).
		WithDetail("module", id)
}

// ToggleFailed wraps a failed marker create/remove.
func ToggleFailed(id string, enable bool, err error) *PanelError {
	action := "disable"
	if enable {
		action = "enable"
	}
	return Wrap(err, ErrCodeToggleFailed, fmt.Sprintf("failed to %s module '%s'", action, id)).
		WithDetail("module", id).
		WithDetail("action", action)
}

// LivePersistFailed wraps a failed live set read or write.
func LivePersistFailed(id string, err error) *PanelError {
	return Wrap(err, ErrCodeLivePersistFailed, fmt.Sprintf("failed to update live patching for '%s'", id)).
		WithDetail("module", id)
}

// LiveApplyFailed wraps a failed run of the live patch binary.
func LiveApplyFailed(id string, err error) *PanelError {
	return Wrap(err, ErrCodeLiveApplyFailed, fmt.Sprintf("failed to live apply module '%s'", id)).
		WithDetail("module", id)
}

// RefreshFailed wraps an unexpected failure of a whole refresh cycle.
func RefreshFailed(surface string, err error) *PanelError {
	return Wrap(err, ErrCodeRefreshFailed, fmt.Sprintf("refresh of %s failed", surface)).
		WithDetail("surface", surface)
}

// DaemonUnavailable reports that the panel daemon could not be reached.
func DaemonUnavailable(addr string, err error) *PanelError {
	return Wrap(err, ErrCodeDaemonUnavailable, fmt.Sprintf("panel daemon not reachable at %s", addr)).
		WithDetail("address", addr)
}
