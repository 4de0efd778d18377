// Package log provides a small scoped logger used by every layer of the
// transport, protocol, and adapter stack: each package gets its own
// NewLog("scope") instance so DEBUG=engine.io:* style filtering can target
// individual subsystems without a global verbosity knob.
package log

import (
	"io"
	"log"
	"os"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/gookit/color"
)

const (
	Ldate         int = log.Ldate
	Ltime         int = log.Ltime
	Lmicroseconds int = log.Lmicroseconds
	Lshortfile    int = log.Lshortfile
	LUTC          int = log.LUTC
	LstdFlags     int = log.LstdFlags
)

// Global configuration, overridable by tests and by callers that want a
// single process-wide log target.
var (
	DEBUG  bool      = false
	Output io.Writer = os.Stderr
	Prefix string    = ""
	Flags  int       = 0
)

// Log is a scoped logger: all methods funnel through the embedded
// *log.Logger, with gookit/color tagging applied per severity.
type Log struct {
	*log.Logger

	prefix          atomic.Pointer[string]
	namespaceRegexp *regexp.Regexp
}

// NewLog creates a logger scoped to the given namespace, e.g.
// "socket.io:namespace" or "engine.io:polling". If the DEBUG environment
// variable is set to a glob pattern (e.g. "engine.io:*"), Debug calls are
// only emitted for namespaces that match it.
func NewLog(scope string) *Log {
	l := &Log{Logger: log.New(Output, Prefix, Flags)}
	if scope != "" {
		l.SetPrefix(scope)
	}
	if debug := os.Getenv("DEBUG"); debug != "" {
		pattern := "^" + strings.ReplaceAll(regexp.QuoteMeta(strings.TrimSpace(debug)), `\*`, `.*`) + "$"
		l.namespaceRegexp = regexp.MustCompile(pattern)
	}
	return l
}

func (d *Log) matchesDebugFilter() bool {
	if d.namespaceRegexp == nil {
		return true
	}
	return d.namespaceRegexp.MatchString(d.Prefix())
}

func (d *Log) Infof(message string, args ...any)  { d.Logger.Println(color.Info.Sprintf(message, args...)) }
func (d *Log) Successf(message string, args ...any) {
	d.Logger.Println(color.Success.Sprintf(message, args...))
}
func (d *Log) Errorf(message string, args ...any) {
	d.Logger.Println(color.Danger.Sprintf(message, args...))
}
func (d *Log) Warningf(message string, args ...any) {
	d.Logger.Println(color.Warn.Sprintf(message, args...))
}

// Debugf only prints when DEBUG is enabled and the namespace filter (if any)
// matches this logger's prefix.
func (d *Log) Debugf(message string, args ...any) {
	if DEBUG && d.matchesDebugFilter() {
		d.Logger.Println(color.Debug.Sprintf(message, args...))
	}
}

func (d *Log) Info(message string, args ...any)    { d.Infof(message, args...) }
func (d *Log) Success(message string, args ...any) { d.Successf(message, args...) }
func (d *Log) Error(message string, args ...any)   { d.Errorf(message, args...) }
func (d *Log) Warning(message string, args ...any) { d.Warningf(message, args...) }
func (d *Log) Debug(message string, args ...any)   { d.Debugf(message, args...) }

func (d *Log) Prefix() string {
	if v := d.prefix.Load(); v != nil {
		return *v
	}
	return ""
}

func (d *Log) SetPrefix(prefix string) {
	d.prefix.Store(&prefix)
	d.Logger.SetPrefix(prefix + " ")
}
