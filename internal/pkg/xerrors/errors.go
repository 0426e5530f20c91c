// File: internal/pkg/xerrors/errors.go
package xerrors

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/text/language"
)

// ErrorLevel 错误级别
type ErrorLevel int

const (
	LevelInfo ErrorLevel = iota
	LevelWarn
	LevelError
	LevelCritical
)

func (l ErrorLevel) String() string {
	switch l {
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ErrorContext 错误上下文信息
type ErrorContext struct {
	TraceID   string                 `json:"trace_id,omitempty"`
	BattleID  string                 `json:"battle_id,omitempty"`
	HeroID    string                 `json:"hero_id,omitempty"`
	Service   string                 `json:"service,omitempty"`
	Operation string                 `json:"operation,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"` // 支持任意类型
}

// AppError 领域错误
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`

	// 错误分类和级别
	Level    ErrorLevel `json:"level,omitempty"`
	Category string     `json:"category,omitempty"`

	// 业务上下文
	Context   *ErrorContext `json:"context,omitempty"`
	Timestamp time.Time     `json:"timestamp,omitempty"`

	// 调试信息
	Stack string `json:"stack,omitempty"`
	File  string `json:"file,omitempty"`
	Line  int    `json:"line,omitempty"`

	// 业务属性
	Retryable bool `json:"retryable,omitempty"`
}

// Error 实现标准 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 实现 errors.Unwrap 接口
func (e *AppError) Unwrap() error {
	return e.Err
}

// GetLocalizedMessage 获取本地化的错误消息。
// 中文（默认语言）返回构造时携带的具体消息；
// 其它语言返回错误码级别的翻译，缺少翻译时回退到默认消息。
func (e *AppError) GetLocalizedMessage(lang language.Tag) string {
	if lang == language.Chinese || lang == language.Und {
		return e.Message
	}
	return e.Code.LocalizedMessage(lang)
}

// LogValue 实现 slog.LogValuer 接口，避免重复序列化逻辑
func (e *AppError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("code", int(e.Code)),
		slog.String("message", e.Message),
		slog.String("level", e.Level.String()),
		slog.String("category", e.Category),
		slog.Bool("retryable", e.Retryable),
	}

	if e.Context != nil {
		if e.Context.BattleID != "" {
			attrs = append(attrs, slog.String("battle_id", e.Context.BattleID))
		}
		if e.Context.HeroID != "" {
			attrs = append(attrs, slog.String("hero_id", e.Context.HeroID))
		}
		if e.Context.Service != "" {
			attrs = append(attrs, slog.String("service", e.Context.Service))
		}
		if e.Context.Operation != "" {
			attrs = append(attrs, slog.String("operation", e.Context.Operation))
		}
	}

	if e.Err != nil {
		attrs = append(attrs, slog.Any("underlying_error", e.Err))
	}

	return slog.GroupValue(attrs...)
}

// WithContext 添加上下文信息
func (e *AppError) WithContext(ctx *ErrorContext) *AppError {
	newErr := *e
	newErr.Context = ctx
	return &newErr
}

// WithBattle 添加战斗相关信息
func (e *AppError) WithBattle(battleID string) *AppError {
	if e.Context == nil {
		e.Context = &ErrorContext{}
	}
	e.Context.BattleID = battleID
	return e
}

// WithHero 添加角色相关信息
func (e *AppError) WithHero(heroID string) *AppError {
	if e.Context == nil {
		e.Context = &ErrorContext{}
	}
	e.Context.HeroID = heroID
	return e
}

// WithService 添加服务和操作信息
func (e *AppError) WithService(service, operation string) *AppError {
	if e.Context == nil {
		e.Context = &ErrorContext{}
	}
	e.Context.Service = service
	e.Context.Operation = operation
	return e
}

// WithMetadata 添加自定义元数据（支持任意类型）
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = &ErrorContext{}
	}
	if e.Context.Metadata == nil {
		e.Context.Metadata = make(map[string]interface{})
	}
	e.Context.Metadata[key] = value
	return e
}

// IsRetryable 判断是否为可重试错误
func (e *AppError) IsRetryable() bool {
	return e.Retryable
}

// IsCritical 判断是否为严重错误
func (e *AppError) IsCritical() bool {
	return e.Level == LevelCritical
}

// New 创建新的AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Level:     getLevelByCode(code),
		Category:  getCategoryByCode(code),
		Timestamp: time.Now(),
		Retryable: isRetryableByCode(code),
	}
}

// NewWithError 创建包含原始错误的 AppError
func NewWithError(code ErrorCode, message string, err error) *AppError {
	appErr := New(code, message)
	appErr.Err = err

	// 添加调试信息
	if pc, file, line, ok := runtime.Caller(1); ok {
		appErr.File = file
		appErr.Line = line
		if fn := runtime.FuncForPC(pc); fn != nil {
			appErr.Stack = fn.Name()
		}
	}

	return appErr
}

// FromCode 根据错误码创建 AppError
func FromCode(code ErrorCode) *AppError {
	msg, ok := codeMessages[code]
	if !ok {
		msg = codeMessages[CodeInternalError]
	}
	return &AppError{
		Code:      code,
		Message:   msg,
		Level:     getLevelByCode(code),
		Category:  getCategoryByCode(code),
		Timestamp: time.Now(),
		Retryable: isRetryableByCode(code),
	}
}

// 快捷构造函数（专注于业务错误）

func NewValidationError(field, message string) *AppError {
	return FromCode(CodeInvalidParams).
		WithMetadata("field", field).
		WithMetadata("validation_message", message)
}

func NewNotFoundError(resource, identifier string) *AppError {
	return FromCode(CodeResourceNotFound).
		WithMetadata("resource", resource).
		WithMetadata("identifier", identifier)
}

func NewExternalServiceError(service string, err error) *AppError {
	appErr := FromCode(CodeExternalServiceError).
		WithMetadata("external_service", service)
	if err != nil {
		appErr.Err = err
	}
	return appErr
}

func NewDatabaseError(operation, table string, err error) *AppError {
	appErr := FromCode(CodeDatabaseError).
		WithMetadata("db_operation", operation).
		WithMetadata("table", table)
	if err != nil {
		appErr.Err = err
	}
	return appErr
}

// 游戏业务错误快捷构造器

func NewHeroNotFoundError(heroID string) *AppError {
	return FromCode(CodeHeroNotFound).
		WithMetadata("hero_id", heroID)
}

func NewBattleNotFoundError(battleID string) *AppError {
	return FromCode(CodeBattleNotFound).
		WithMetadata("battle_id", battleID)
}

func NewAlreadyInBattleError(heroID, battleID string) *AppError {
	return FromCode(CodeAlreadyInBattle).
		WithMetadata("hero_id", heroID).
		WithMetadata("active_battle_id", battleID)
}

func NewEnemyTemplateNotFoundError(templateID string) *AppError {
	return FromCode(CodeEnemyTemplateNotFound).
		WithMetadata("enemy_template_id", templateID)
}

// 通用错误包装函数

// Wrap 包装标准错误为 AppError(保留堆栈)
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	// 如果已经是 AppError,直接返回
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}

	return NewWithError(code, message, err)
}

// Must 如果 err 不为 nil 就 panic (用于配置初始化等必须成功的场景)
func Must(err error) {
	if err != nil {
		panic(err)
	}
}
