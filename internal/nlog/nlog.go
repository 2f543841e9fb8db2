// Package nlog is the control-plane's leveled logger: package-level
// Infoln/Warningln/Errorln writing prefixed, timestamped lines, in the
// style of the teacher's cmn/nlog. It intentionally has no third-party
// dependency — see DESIGN.md for why this one ambient concern stays on
// primitives close to the standard library.
package nlog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

func (s severity) tag() string {
	switch s {
	case sevWarn:
		return "W"
	case sevErr:
		return "E"
	default:
		return "I"
	}
}

var (
	mu  sync.Mutex
	out io.Writer = os.Stderr
	// minSev is the minimum severity emitted; raised by SetQuiet, lowered
	// by SetVerbose. Default emits everything.
	minSev = sevInfo
)

// SetOutput redirects all log output; used by tests to capture lines.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetQuiet suppresses Infoln/Infof, keeping warnings and errors.
func SetQuiet(quiet bool) {
	mu.Lock()
	defer mu.Unlock()
	if quiet {
		minSev = sevWarn
	} else {
		minSev = sevInfo
	}
}

func log(sev severity, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if sev < minSev {
		return
	}
	ts := time.Now().Format("2026-01-02T15:04:05.000Z07:00")
	var line string
	if format == "" {
		line = fmt.Sprintln(args...)
	} else {
		line = fmt.Sprintf(format, args...) + "\n"
	}
	fmt.Fprintf(out, "%s%s %s", sev.tag(), ts, line)
}

func Infoln(args ...any)                  { log(sevInfo, "", args...) }
func Infof(format string, args ...any)    { log(sevInfo, format, args...) }
func Warningln(args ...any)               { log(sevWarn, "", args...) }
func Warningf(format string, args ...any) { log(sevWarn, format, args...) }
func Errorln(args ...any)                 { log(sevErr, "", args...) }
func Errorf(format string, args ...any)   { log(sevErr, format, args...) }
