package ui

import (
	"fmt"
	"io"
	"sync"
)

// ConsoleNotifier implements core.Notifier by printing one line per
// notification. It is the terminal stand-in for toast messages and is
// safe for concurrent use.
type ConsoleNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleNotifier creates a notifier writing to out.
func NewConsoleNotifier(out io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{out: out}
}

// Success prints a success notification.
func (n *ConsoleNotifier) Success(title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.out, "[ok] %s: %s\n", title, message)
}

// Failure prints a failure notification.
func (n *ConsoleNotifier) Failure(title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.out, "[error] %s: %s\n", title, message)
}
