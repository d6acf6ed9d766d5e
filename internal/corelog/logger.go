// Package corelog provides the leveled logger used across the WARP build
// kernel: a thin interface wrapping the standard log package rather than a
// structured-logging dependency, kept consistent with the rest of the
// ambient stack.
package corelog

import (
	"log"
	"os"
	"runtime/debug"
	"strings"
)

// Logger is the output interface used by every WARP component.
type Logger interface {
	Info(...interface{})
	Infof(string, ...interface{})
	Warn(...interface{})
	Warnf(string, ...interface{})
	Error(...interface{})
	Errorf(string, ...interface{})
	Critical(...interface{})
	Criticalf(string, ...interface{})
}

// Default wraps the standard log library with three leveled writers.
type Default struct {
	I *log.Logger
	W *log.Logger
	E *log.Logger
}

// New returns a configured Default logger writing to stderr.
func New() *Default {
	return &Default{
		I: log.New(os.Stderr, "[INFO] ", log.LstdFlags),
		W: log.New(os.Stderr, "[WARN] ", log.LstdFlags),
		E: log.New(os.Stderr, "[ERROR] ", log.LstdFlags),
	}
}

// Info writes to the "info" logger.
func (d *Default) Info(v ...interface{}) { d.I.Println(v...) }

// Infof writes to the "info" logger with printf-style formatting.
func (d *Default) Infof(f string, v ...interface{}) { d.I.Printf(f, v...) }

// Warn writes to the "warning" logger.
func (d *Default) Warn(v ...interface{}) { d.W.Println(v...) }

// Warnf writes to the "warning" logger with printf-style formatting.
func (d *Default) Warnf(f string, v ...interface{}) { d.W.Printf(f, v...) }

// Error writes to the "error" logger.
func (d *Default) Error(v ...interface{}) { d.E.Println(v...) }

// Errorf writes to the "error" logger with printf-style formatting.
func (d *Default) Errorf(f string, v ...interface{}) { d.E.Printf(f, v...) }

// Critical writes to the "error" logger and appends the current stacktrace.
func (d *Default) Critical(v ...interface{}) {
	d.E.Println(v...)
	d.logStacktrace()
}

// Criticalf writes to the "error" logger with printf-style formatting and
// appends the current stacktrace.
func (d *Default) Criticalf(f string, v ...interface{}) {
	d.E.Printf(f, v...)
	d.logStacktrace()
}

func (d *Default) logStacktrace() {
	d.E.Println("stacktrace:\n" + strings.Join(captureStacktrace(3), "\n"))
}

func captureStacktrace(skip int) []string {
	stack := string(debug.Stack())
	lines := strings.Split(stack, "\n")
	linesToSkip := 2*skip + 1
	if linesToSkip > len(lines) {
		return lines
	}
	return lines[linesToSkip:]
}
