package auth

import (
	"context"
	"fmt"
)

// Logger is the minimal logging surface the package depends on. Arguments
// are structured key-value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// TokenService issues and validates session credentials.
type TokenService interface {
	Generate(user *User) (string, error)
	Validate(token string) (*SessionClaims, error)
}

// Mailer delivers verification notifications. Implementations own the
// outbound transport credentials and the base URL used to build links.
type Mailer interface {
	SendVerification(ctx context.Context, to, token string) error
}

// AvatarStore relocates an uploaded file into durable storage and returns
// the public reference for it.
type AvatarStore interface {
	Store(ctx context.Context, name, tempPath, originalName string) (string, error)
}

// DefaultLogger returns the fallback stdout logger used when no logger is
// injected.
func DefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) { d.print("DBG", msg, args) }
func (d defLogger) Info(msg string, args ...any)  { d.print("INF", msg, args) }
func (d defLogger) Warn(msg string, args ...any)  { d.print("WRN", msg, args) }
func (d defLogger) Error(msg string, args ...any) { d.print("ERR", msg, args) }

func (defLogger) print(level, msg string, args []any) {
	if len(args) == 0 {
		fmt.Printf("[%s] AUTH %s\n", level, msg)
		return
	}
	fmt.Printf("[%s] AUTH %s %v\n", level, msg, args)
}
