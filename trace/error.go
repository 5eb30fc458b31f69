package trace

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
)

// Location returns the function name and line number skip frames up
// the call stack, for attributing a logged error to its origin.
func Location(skip int) (string, int) {
	pc, _, line, ok := runtime.Caller(skip)
	if !ok {
		return "?", line
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "?", line
	}
	return fn.Name(), line
}

// Errorf logs a formatted internal error at its call site and returns
// it as a plain error, for the InternalError class of spec §7 (an
// invariant violation the caller cannot recover from but an operator
// should be able to locate in logs).
func Errorf(format string, a ...any) error {
	fn, line := Location(2)
	msg := fmt.Sprintf(format, a...)
	Log.WithFields(logrus.Fields{"func": fn, "line": line}).Error(msg)
	return errors.New(msg)
}
