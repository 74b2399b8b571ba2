package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metaoverlayfs/panel/errors"
)

func TestErrorHandlerMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not found", errors.ModuleNotFound("foo"), "Module 'foo' not found"},
		{"update pending", errors.UpdatePending("xposed"), "'xposed' has an update pending"},
		{"daemon", errors.DaemonUnavailable("/run/x.sock", assert.AnError), "not reachable at /run/x.sock"},
		{"config", errors.ConfigNotFound("/etc/m.yml"), "/etc/m.yml"},
		{"bridge", errors.BridgeUnavailable("ls"), "No command channel"},
		{"invalid id", errors.InvalidModuleID("a/b", "contains '/'"), `invalid module id "a/b"`},
		{"plain", assert.AnError, "Error: " + assert.AnError.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &ErrorHandler{Out: &buf}

			assert.Equal(t, tt.err, h.Handle(tt.err))
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestErrorHandlerVerboseDetails(t *testing.T) {
	var buf bytes.Buffer
	h := &ErrorHandler{Verbose: true, Out: &buf}

	h.Handle(errors.ModuleNotFound("foo"))
	assert.Contains(t, buf.String(), `"code": "MODULE_NOT_FOUND"`)
	assert.NoError(t, h.Handle(nil))
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		p := &Prompter{In: strings.NewReader(tt.input), Out: &out, Interactive: true}

		ok, err := p.Confirm("warning text", "Enable live?", false)
		require.NoError(t, err)
		assert.Equal(t, tt.want, ok, "input %q", tt.input)
		assert.Contains(t, out.String(), "warning text")
		assert.Contains(t, out.String(), "[y/N]")
	}
}

func TestConfirmNonInteractive(t *testing.T) {
	p := &Prompter{In: strings.NewReader("y\n"), Out: &bytes.Buffer{}}

	_, err := p.Confirm("", "Enable live?", false)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	ok, err := p.Confirm("", "Enable live?", true)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLiveWarnings(t *testing.T) {
	assert.Contains(t, LiveEnableWarning("LSPosed"), "Updates to LSPosed will be applied instantly")
	assert.Contains(t, LiveEnableWarning("LSPosed"), "System Crash Risk")
	assert.Contains(t, LiveDisableWarning("LSPosed"), "Future updates will require a reboot")
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, map[string]int{"live": 2}))
	assert.Equal(t, "{\n  \"live\": 2\n}\n", buf.String())
}
