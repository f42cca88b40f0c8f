package logger

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pmplanner/pkg/trace"
)

var Log *zap.Logger

// NewLogger 创建全局 logger；LOG_LEVEL=debug 时使用开发模式
func NewLogger() *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug") {
		l, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		l, err = cfg.Build()
	}
	if err != nil {
		panic(err)
	}
	Log = l
	return l
}

// OrNop 保证组件在未注入 logger 时也能工作
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// WithTrace 从 context 中提取 trace_id 并添加到 logger
func WithTrace(ctx context.Context, l *zap.Logger) *zap.Logger {
	if traceID := trace.FromContext(ctx); traceID != "" {
		return l.With(zap.String("trace_id", traceID))
	}
	return l
}
