// Package logging provides a small component-tagged logger used by every
// service and hook in this repository, in place of a structured logging
// library the source tree never pulled in either.
package logging

import (
	"log"
	"os"
)

// Logger writes component-tagged lines to stderr.
type Logger struct {
	tag string
	l   *log.Logger
}

// New returns a Logger tagging every line with "[component]".
func New(component string) *Logger {
	return &Logger{
		tag: "[" + component + "] ",
		l:   log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (lg *Logger) Infof(format string, args ...interface{}) {
	lg.l.Printf(lg.tag+"INFO "+format, args...)
}

func (lg *Logger) Warnf(format string, args ...interface{}) {
	lg.l.Printf(lg.tag+"WARN "+format, args...)
}

func (lg *Logger) Errorf(format string, args ...interface{}) {
	lg.l.Printf(lg.tag+"ERROR "+format, args...)
}
