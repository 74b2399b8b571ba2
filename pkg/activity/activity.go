// Package activity appends user actions to the device log file that the
// overlay binary also writes to.
package activity

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/metaoverlayfs/panel/command"
	"github.com/metaoverlayfs/panel/errors"
)

// Tag identifies panel entries among the lines written by the binary.
const Tag = "[meta-overlayfsx-webui]"

const timestampLayout = "02.01.06 15:04:05"

// Log reads and appends to the device log file.
type Log struct {
	bridge command.Bridge
	cmds   *command.Builder
	path   string
	logger *logrus.Entry
	now    func() time.Time
}

// New creates a Log for the log file of the builder's layout.
func New(bridge command.Bridge, cmds *command.Builder, logger *logrus.Entry) *Log {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Log{
		bridge: bridge,
		cmds:   cmds,
		path:   cmds.Paths().LogFile,
		logger: logger,
		now:    time.Now,
	}
}

// Path returns the device log file.
func (l *Log) Path() string {
	return l.path
}

// Format renders one entry: "dd.mm.yy HH:MM:SS: [tag] - message".
// Newlines in message are flattened so an entry stays on one line.
func Format(t time.Time, message string) string {
	message = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(message)
	return t.Format(timestampLayout) + ": " + Tag + " - " + message
}

// Record appends message to the log file. Failures are logged and
// otherwise ignored; the activity log never blocks the action it records.
func (l *Log) Record(ctx context.Context, message string) {
	entry := Format(l.now(), message)
	if _, err := l.bridge.Execute(ctx, l.cmds.AppendLine(l.path, entry)); err != nil {
		l.logger.WithError(err).Debug("Failed to append activity log entry")
	}
}

// Read returns the whole log file. A missing file reads as empty.
func (l *Log) Read(ctx context.Context) (string, error) {
	out, err := l.bridge.Execute(ctx, l.cmds.ReadFile(l.path))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeCommandFailed, "failed to read log file").
			WithDetail("path", l.path)
	}
	return out, nil
}

// Clear truncates the log file.
func (l *Log) Clear(ctx context.Context) error {
	if _, err := l.bridge.Execute(ctx, l.cmds.Truncate(l.path)); err != nil {
		return errors.Wrap(err, errors.ErrCodeCommandFailed, "failed to clear log file").
			WithDetail("path", l.path)
	}
	l.logger.WithField("path", l.path).Info("Log file cleared")
	return nil
}
