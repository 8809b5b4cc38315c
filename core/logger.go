package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// ProductionLogger implements Logger with leveled, optionally JSON-formatted
// output and rate-limited error logging so a flapping backend cannot flood
// the terminal.
type ProductionLogger struct {
	level  int
	format string
	output io.Writer
	mu     sync.Mutex

	errorLimiter *rateLimiter
}

const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
)

func parseLevel(level string) int {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return levelDebug
	case "WARN":
		return levelWarn
	case "ERROR":
		return levelError
	default:
		return levelInfo
	}
}

// NewProductionLogger creates a logger writing to stdout. Level and format
// come from the supplied config.
func NewProductionLogger(cfg *Config) *ProductionLogger {
	level, format := "INFO", "text"
	if cfg != nil {
		level, format = cfg.LogLevel, cfg.LogFormat
	}
	return &ProductionLogger{
		level:        parseLevel(level),
		format:       format,
		output:       os.Stdout,
		errorLimiter: newRateLimiter(time.Second),
	}
}

// SetOutput redirects log output. Used by tests.
func (l *ProductionLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
}

func (l *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	l.log(levelInfo, "INFO", msg, fields)
}

func (l *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	l.log(levelWarn, "WARN", msg, fields)
}

func (l *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	if l.errorLimiter != nil && !l.errorLimiter.Allow() {
		return
	}
	l.log(levelError, "ERROR", msg, fields)
}

func (l *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	l.log(levelDebug, "DEBUG", msg, fields)
}

func (l *ProductionLogger) log(level int, name, msg string, fields map[string]interface{}) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.format == "json" {
		entry := map[string]interface{}{
			"time":    time.Now().UTC().Format(time.RFC3339),
			"level":   name,
			"message": msg,
		}
		for k, v := range fields {
			entry[k] = v
		}
		data, err := json.Marshal(entry)
		if err != nil {
			fmt.Fprintf(l.output, "%s %s %s (unmarshalable fields)\n",
				time.Now().UTC().Format(time.RFC3339), name, msg)
			return
		}
		fmt.Fprintln(l.output, string(data))
		return
	}

	var b strings.Builder
	b.WriteString(time.Now().UTC().Format(time.RFC3339))
	b.WriteString(" [")
	b.WriteString(name)
	b.WriteString("] ")
	b.WriteString(msg)
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, fields[k])
		}
	}
	fmt.Fprintln(l.output, b.String())
}

// rateLimiter allows one event per interval.
type rateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

func newRateLimiter(interval time.Duration) *rateLimiter {
	return &rateLimiter{interval: interval}
}

func (r *rateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if now.Sub(r.last) < r.interval {
		return false
	}
	r.last = now
	return true
}
