// Package logging is the structured logger shared by the vaxsync client and
// server. Two backends are available: log/slog and zap.
package logging

import "context"

// Logger writes leveled records. Trailing args are alternating keys and
// values:
//
//	log.Info(ctx, "flush finished", "partition", p, "delivered", n)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a logger that prepends args to every record.
	With(args ...any) Logger
}
