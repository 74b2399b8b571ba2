package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/metaoverlayfs/panel/errors"
)

// ErrorHandler turns structured errors into user-facing messages.
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to stderr.
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{Verbose: verbose, Out: os.Stderr}
}

// Handle prints err and returns it unchanged.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	out := h.Out
	if out == nil {
		out = os.Stderr
	}

	panelErr, _ := errors.As(err)
	detail := func(key string) interface{} {
		if panelErr == nil {
			return ""
		}
		return panelErr.Details[key]
	}

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(out, "❌ Configuration file not found: %v\n", detail("path"))
	case errors.ErrCodeConfigInvalid:
		fmt.Fprintf(out, "❌ %v\n", err)
		fmt.Fprintln(out, "Run 'metaoverlay config validate' for details.")
	case errors.ErrCodeBridgeUnavailable:
		fmt.Fprintln(out, "❌ No command channel to the device. Set bridge.mode to 'shell' to run commands.")
	case errors.ErrCodeModuleNotFound:
		fmt.Fprintf(out, "❌ Module '%v' not found\n", detail("module"))
		fmt.Fprintln(out, "Run 'metaoverlay modules list' to see installed modules.")
	case errors.ErrCodeUpdatePending:
		fmt.Fprintf(out, "❌ Module '%v' has an update pending; reboot to finish installing it first.\n", detail("module"))
	case errors.ErrCodeInvalidModuleID:
		fmt.Fprintf(out, "❌ %s\n", panelErr.Message)
	case errors.ErrCodeDaemonUnavailable:
		fmt.Fprintf(out, "❌ Panel daemon not reachable at %v\n", detail("address"))
		fmt.Fprintln(out, "Start it with 'metaoverlay serve start'.")
	default:
		fmt.Fprintf(out, "❌ Error: %v\n", err)
	}

	if h.Verbose && panelErr != nil {
		fmt.Fprintf(out, "\nError details:\n%s\n", panelErr.ToJSON())
	}
	return err
}
