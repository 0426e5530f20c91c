// File: internal/pkg/log/log.go
package log

import (
	"context"
	"log/slog"
	"os"

	"idle-rpg-server/internal/pkg/xerrors"
)

// Logger 接口定义（在消费端定义）
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, err error, args ...any)

	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)

	With(args ...any) Logger
	WithGroup(name string) Logger
}

// StructuredLogger slog的包装器
type StructuredLogger struct {
	logger *slog.Logger
}

// 全局logger实例
var globalLogger Logger

// Init 初始化日志器
func Init(level slog.Level, environment string) {
	var handler slog.Handler

	// 根据环境配置不同的handler
	if environment == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:     level,
			AddSource: true, // 开发环境显示源码位置
		})
	}

	// 包装context-aware handler
	contextHandler := NewContextHandler(handler)

	logger := slog.New(contextHandler)
	globalLogger = &StructuredLogger{logger: logger}

	// 设置slog的默认logger
	slog.SetDefault(logger)
}

// GetLogger 获取全局logger
func GetLogger() Logger {
	if globalLogger == nil {
		// 如果没有初始化，使用默认配置
		Init(slog.LevelInfo, "development")
	}
	return globalLogger
}

// NewLogger 创建新的logger实例
func NewLogger(handler slog.Handler) Logger {
	return &StructuredLogger{
		logger: slog.New(handler),
	}
}

// StructuredLogger 方法实现

func (l *StructuredLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

func (l *StructuredLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

func (l *StructuredLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

func (l *StructuredLogger) Error(msg string, err error, args ...any) {
	args = append(args, slog.Any("error", err))
	l.logger.Error(msg, args...)
}

func (l *StructuredLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.logger.DebugContext(ctx, msg, args...)
}

func (l *StructuredLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.logger.InfoContext(ctx, msg, args...)
}

func (l *StructuredLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.logger.WarnContext(ctx, msg, args...)
}

func (l *StructuredLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.logger.ErrorContext(ctx, msg, args...)
}

func (l *StructuredLogger) With(args ...any) Logger {
	return &StructuredLogger{
		logger: l.logger.With(args...),
	}
}

func (l *StructuredLogger) WithGroup(name string) Logger {
	return &StructuredLogger{
		logger: l.logger.WithGroup(name),
	}
}

// ContextHandler 上下文感知的handler
type ContextHandler struct {
	next slog.Handler
}

// NewContextHandler 创建上下文handler
func NewContextHandler(next slog.Handler) *ContextHandler {
	return &ContextHandler{next: next}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	// 预留：从context中提取 trace_id / battle_id 等通用字段
	return h.next.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{next: h.next.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{next: h.next.WithGroup(name)}
}

// 便捷函数，使用全局logger

func Debug(msg string, args ...any) {
	GetLogger().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	GetLogger().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	GetLogger().Warn(msg, args...)
}

func Error(msg string, err error, args ...any) {
	GetLogger().Error(msg, err, args...)
}

// 专门的错误记录函数，与xerrors集成

// LogAppError 记录AppError，利用其LogValue方法
func LogAppError(ctx context.Context, msg string, appErr *xerrors.AppError) {
	logger := GetLogger()

	switch appErr.Level {
	case xerrors.LevelCritical, xerrors.LevelError:
		logger.ErrorContext(ctx, msg, slog.Any("app_error", appErr))
	case xerrors.LevelWarn:
		logger.WarnContext(ctx, msg, slog.Any("app_error", appErr))
	default:
		logger.InfoContext(ctx, msg, slog.Any("app_error", appErr))
	}
}

// LogBattleEvent 记录战斗领域事件（调试追踪用）
func LogBattleEvent(ctx context.Context, event string, battleID string, metadata map[string]interface{}) {
	args := []any{
		slog.String("event", event),
		slog.String("battle_id", battleID),
	}
	if metadata != nil {
		args = append(args, slog.Any("metadata", metadata))
	}
	GetLogger().DebugContext(ctx, "battle event", args...)
}

// LogDatabaseOperation 记录数据库操作日志
func LogDatabaseOperation(ctx context.Context, operation, table string, duration int64, rowsAffected int64, err error) {
	args := []any{
		slog.String("db_operation", operation),
		slog.String("table", table),
		slog.Int64("duration_ms", duration),
		slog.Int64("rows_affected", rowsAffected),
	}

	if err != nil {
		args = append(args, slog.Any("error", err))
		GetLogger().ErrorContext(ctx, "database operation failed", args...)
	} else {
		GetLogger().DebugContext(ctx, "database operation completed", args...)
	}
}
