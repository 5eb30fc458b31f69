// Package trace mirrors the teacher's modules/trace: a Debuger
// capability for ad hoc verbose-mode diagnostics, plus
// logrus-structured logging for events an operator needs to correlate
// across a long-running repository (operation publication, GC,
// index rebuilds) rather than user-facing command output.
package trace

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Debuger is the capability a caller holds to print verbose-mode
// diagnostics without checking a verbose flag itself.
type Debuger interface {
	DbgPrint(format string, args ...any)
}

type debuger struct {
	verbose bool
}

// NewDebuger returns a Debuger that prints only when verbose is true.
func NewDebuger(verbose bool) Debuger {
	return &debuger{verbose: verbose}
}

var _ Debuger = &debuger{}

// DbgPrint writes format to stderr unconditionally, one '* '-prefixed
// line per input line.
func DbgPrint(format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	var b strings.Builder
	for _, line := range strings.Split(message, "\n") {
		b.WriteString("* ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	_, _ = os.Stderr.WriteString(b.String())
}

func (d *debuger) DbgPrint(format string, args ...any) {
	if !d.verbose {
		return
	}
	DbgPrint(format, args...)
}

// Log is the package-level structured logger every operational event
// below is published through; callers may reconfigure its level,
// formatter, or output via the returned *logrus.Logger directly.
var Log = logrus.New()

// OperationPublished logs a new operation being appended to the
// operation log (spec §4.4).
func OperationPublished(opId, description string) {
	Log.WithFields(logrus.Fields{"op_id": opId}).Info(description)
}

// GCStarted and GCFinished bracket a garbage-collection pass over the
// object store (spec §4.1 / §4.11).
func GCStarted(keepOlderThan string) {
	Log.WithField("keep_older_than", keepOlderThan).Info("gc: starting")
}

func GCFinished(reclaimed int) {
	Log.WithField("objects_reclaimed", reclaimed).Info("gc: finished")
}

// IndexRebuildStarted and IndexRebuildFinished bracket a commit-index
// rebuild (spec §4.2).
func IndexRebuildStarted(reason string) {
	Log.WithField("reason", reason).Info("index: rebuild starting")
}

func IndexRebuildFinished(commitsIndexed int) {
	Log.WithField("commits_indexed", commitsIndexed).Info("index: rebuild finished")
}
