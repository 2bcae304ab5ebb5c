// Package logger writes Verity's diagnostic output to stderr.
//
// Debug, Info and Warn only print in verbose mode (--verbose). Error always
// prints. Long-running commands such as serve and watch turn on timestamps.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var (
	mu         sync.RWMutex
	verbose    bool
	timestamps bool
	output     io.Writer = os.Stderr
	now                  = time.Now
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetTimestamps prefixes every line with an RFC 3339 time when enabled.
func SetTimestamps(v bool) {
	mu.Lock()
	defer mu.Unlock()
	timestamps = v
}

// SetOutput redirects log output. Defaults to os.Stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func Debug(format string, args ...any) { logf(false, "DEBUG", "", format, args) }
func Info(format string, args ...any)  { logf(false, "INFO", "", format, args) }
func Warn(format string, args ...any)  { logf(false, "WARN", "", format, args) }
func Error(format string, args ...any) { logf(true, "ERROR", "", format, args) }

// Section prints a heading between pipeline stages in verbose mode.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Scope logs on behalf of one component, prefixing each line with its name.
type Scope struct {
	name string
}

// For returns a Scope for the named component.
func For(component string) Scope {
	return Scope{name: component}
}

func (s Scope) Debug(format string, args ...any) { logf(false, "DEBUG", s.name, format, args) }
func (s Scope) Info(format string, args ...any)  { logf(false, "INFO", s.name, format, args) }
func (s Scope) Warn(format string, args ...any)  { logf(false, "WARN", s.name, format, args) }
func (s Scope) Error(format string, args ...any) { logf(true, "ERROR", s.name, format, args) }

func logf(always bool, level, component, format string, args []any) {
	mu.RLock()
	defer mu.RUnlock()
	if !always && !verbose {
		return
	}

	line := "[" + level + "] "
	if component != "" {
		line += component + ": "
	}
	if timestamps {
		line = now().UTC().Format(time.RFC3339) + " " + line
	}
	fmt.Fprintf(output, line+format+"\n", args...)
}
