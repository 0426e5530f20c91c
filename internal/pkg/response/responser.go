package response

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"idle-rpg-server/internal/pkg/i18n"
	"idle-rpg-server/internal/pkg/xerrors"
)

// EmptyData 是一个用于在 API 成功响应中表示“无数据”的结构体。
// 使用一个具体的空结构体，比直接返回 nil 或 interface{} 更类型安全、意图更明确。
type EmptyData struct{}

// APIResponse 是通用的API响应结构体
type APIResponse struct {
	Code      int    `json:"code"`            // 业务响应码
	Message   string `json:"message"`         // 响应消息
	Data      any    `json:"data,omitempty"`  // 响应数据，成功时返回
	Error     string `json:"error,omitempty"` // 错误详情，失败时返回
	Timestamp int64  `json:"timestamp"`       // Unix时间戳
}

// Writer 响应写入接口（在消费端定义，便于测试替换）
type Writer interface {
	WriteSuccess(ctx context.Context, w http.ResponseWriter, data any) error
	WriteError(ctx context.Context, w http.ResponseWriter, err error) error
	WriteJSON(ctx context.Context, w http.ResponseWriter, data any, statusCode int) error
}

// JSONWriter 默认的 JSON 响应实现
type JSONWriter struct{}

// NewJSONWriter 构造函数
func NewJSONWriter() *JSONWriter {
	return &JSONWriter{}
}

// WriteSuccess 写入成功响应
func (j *JSONWriter) WriteSuccess(ctx context.Context, w http.ResponseWriter, data any) error {
	resp := &APIResponse{
		Code:      xerrors.CodeSuccess.ToInt(),
		Message:   xerrors.CodeSuccess.Message(),
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	return writeJSON(w, http.StatusOK, resp)
}

// WriteError 写入错误响应,根据 AppError 映射 HTTP 状态码。
// 消息按 context 中的语言偏好本地化（由 i18n 中间件写入）。
func (j *JSONWriter) WriteError(ctx context.Context, w http.ResponseWriter, err error) error {
	appErr := xerrors.Wrap(err, xerrors.CodeInternalError, "未分类的内部错误")
	resp := &APIResponse{
		Code:      appErr.Code.ToInt(),
		Message:   appErr.GetLocalizedMessage(i18n.GetLanguage(ctx)),
		Error:     appErr.Error(),
		Timestamp: time.Now().Unix(),
	}
	return writeJSON(w, xerrors.HTTPStatusByCode(appErr.Code), resp)
}

// WriteJSON 直接写入 JSON 响应(跳过 APIResponse 包装)
func (j *JSONWriter) WriteJSON(ctx context.Context, w http.ResponseWriter, data any, statusCode int) error {
	return writeJSON(w, statusCode, data)
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(body)
}
