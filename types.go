package sloth

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Notifier delivers a one-time entry code to an address. Implementations
// report failure without detail; callers treat any error as "do not advance
// the session".
type Notifier interface {
	Send(ctx context.Context, to, event, code string) error
}

// Mailer performs the actual email delivery behind the email API route.
type Mailer interface {
	Deliver(ctx context.Context, to, subject, text string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SLOTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SLOTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SLOTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
