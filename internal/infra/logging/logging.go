// File: internal/infra/logging/logging.go
package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"activation-card-service/internal/config"

	"github.com/rs/zerolog"
)

// New creates a zerolog logger configured from config.
// Supports "trace" | "debug" | "info" | "warn" | "error" levels
// and "json" | "console" formats. Sampling can be enabled to reduce noise in prod.
func New(cfg config.LogConfig, dev bool) *zerolog.Logger {
	level, _ := zerolog.ParseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	var base zerolog.Logger
	if strings.ToLower(cfg.Format) == "console" || dev {
		out := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		base = zerolog.New(out).With().Timestamp().Logger()
	} else {
		base = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	if cfg.Sampling && !dev {
		// Simple sampling: keep first 100, then 1 every 100 thereafter.
		sampled := base.Sample(&zerolog.BasicSampler{N: 100})
		return &sampled
	}
	return &base
}

type ctxKey string

const (
	ctxTraceID ctxKey = "trace_id"
	ctxUserID  ctxKey = "user_id"
	ctxCardID  ctxKey = "card_id"
)

// With attaches common context fields such as trace_id, user_id and card_id.
func With(ctx context.Context, base *zerolog.Logger) *zerolog.Logger {
	l := base.With()
	if v := ctx.Value(ctxTraceID); v != nil {
		l = l.Str("trace_id", v.(string))
	}
	if v := ctx.Value(ctxUserID); v != nil {
		l = l.Str("user_id", v.(string))
	}
	if v := ctx.Value(ctxCardID); v != nil {
		l = l.Str("card_id", v.(string))
	}
	logger := l.Logger()
	return &logger
}

// Helpers to put IDs into context.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxTraceID, id)
}
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxUserID, id)
}
func WithCardID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxCardID, id)
}
