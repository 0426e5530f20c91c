// File: internal/pkg/xerrors/codes.go
package xerrors

import "fmt"

// ErrorCode 错误码类型（类型安全）
type ErrorCode int

// IsValid 检查错误码是否在预定义列表中
func (c ErrorCode) IsValid() bool {
	_, exists := codeMessages[c]
	return exists
}

// String 返回错误码的字符串表示
func (c ErrorCode) String() string {
	if msg, ok := codeMessages[c]; ok {
		return fmt.Sprintf("%d (%s)", c, msg)
	}
	return fmt.Sprintf("%d (未定义的错误码)", c)
}

// Message 返回错误码对应的消息
func (c ErrorCode) Message() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return "未知错误"
}

// ToInt 转换为 int（用于 JSON 序列化等场景）
func (c ErrorCode) ToInt() int {
	return int(c)
}

// -----------------------------------------------------------------------------
// 业务错误码统一定义
// 按模块或领域对错误码进行分段，便于管理。
// -----------------------------------------------------------------------------
const (
	// 1xxxxx: 通用错误码
	CodeSuccess           ErrorCode = 100000 // 操作成功
	CodeInternalError     ErrorCode = 100001 // 内部服务错误
	CodeInvalidParams     ErrorCode = 100002 // 参数错误
	CodeInvalidRequest    ErrorCode = 100003 // 请求格式错误
	CodeResourceNotFound  ErrorCode = 100404 // 资源不存在
	CodeDuplicateResource ErrorCode = 100409 // 资源已存在

	// 6xxxxx: 业务逻辑错误码
	CodeBusinessLogicError  ErrorCode = 600001 // 业务逻辑错误
	CodeOperationNotAllowed ErrorCode = 600003 // 操作不被允许

	// 7xxxxx: 外部服务错误码
	CodeExternalServiceError ErrorCode = 700001 // 外部服务错误
	CodeDatabaseError        ErrorCode = 700003 // 数据库错误
	CodeCacheError           ErrorCode = 700004 // 缓存服务错误
	CodeMessageQueueError    ErrorCode = 700005 // 消息队列错误

	// 8xxxxx: 游戏业务错误码
	// 角色相关 (80xxxx)
	CodeHeroNotFound ErrorCode = 800001 // 角色不存在

	// 战斗相关 (84xxxx)
	CodeBattleNotFound        ErrorCode = 840001 // 战斗不存在
	CodeAlreadyInBattle       ErrorCode = 840002 // 角色已在战斗中
	CodeEmptyRoster           ErrorCode = 840003 // 战斗双方不能为空
	CodeEnemyTemplateNotFound ErrorCode = 840004 // 敌人模板不存在
	CodeBattleAlreadyOver     ErrorCode = 840005 // 战斗已结束
	CodeNotInBattle           ErrorCode = 840006 // 角色不在该战斗中
	CodeBattleTypeInvalid     ErrorCode = 840007 // 战斗类型无效
)

// -----------------------------------------------------------------------------
// 错误消息映射
// -----------------------------------------------------------------------------
var codeMessages = map[ErrorCode]string{
	CodeSuccess:           "操作成功",
	CodeInternalError:     "内部服务错误",
	CodeInvalidParams:     "参数错误",
	CodeInvalidRequest:    "请求格式错误",
	CodeResourceNotFound:  "资源不存在",
	CodeDuplicateResource: "资源已存在",

	CodeBusinessLogicError:  "业务逻辑错误",
	CodeOperationNotAllowed: "操作不被允许",

	CodeExternalServiceError: "外部服务错误",
	CodeDatabaseError:        "数据库错误",
	CodeCacheError:           "缓存服务错误",
	CodeMessageQueueError:    "消息队列错误",

	CodeHeroNotFound: "角色不存在",

	CodeBattleNotFound:        "战斗不存在",
	CodeAlreadyInBattle:       "角色已在战斗中",
	CodeEmptyRoster:           "战斗双方不能为空",
	CodeEnemyTemplateNotFound: "敌人模板不存在",
	CodeBattleAlreadyOver:     "战斗已结束",
	CodeNotInBattle:           "角色不在该战斗中",
	CodeBattleTypeInvalid:     "战斗类型无效",
}

// getCategoryByCode 根据错误码获取分类
func getCategoryByCode(code ErrorCode) string {
	switch {
	case code >= 100000 && code < 200000:
		return "system"
	case code >= 600000 && code < 700000:
		return "business"
	case code >= 700000 && code < 800000:
		return "external"
	case code >= 800000 && code < 900000:
		return "game"
	default:
		return "unknown"
	}
}

// getLevelByCode 根据错误码获取级别
func getLevelByCode(code ErrorCode) ErrorLevel {
	switch {
	case code == CodeSuccess:
		return LevelInfo
	case code >= 100001 && code <= 100003: // 参数错误等
		return LevelWarn
	case code >= 700001 && code < 800000: // 外部服务错误
		return LevelCritical
	case code >= 840001: // 战斗请求被拒绝属于预期内错误
		return LevelWarn
	default:
		return LevelError
	}
}

// isRetryableByCode 根据错误码判断是否可重试
func isRetryableByCode(code ErrorCode) bool {
	retryableCodes := map[ErrorCode]bool{
		CodeInternalError:        true,
		CodeExternalServiceError: true,
		CodeDatabaseError:        true,
		CodeCacheError:           true,
		CodeMessageQueueError:    true,
	}
	return retryableCodes[code]
}

// HTTPStatusByCode 根据错误码映射 HTTP 状态码（供响应层使用）
func HTTPStatusByCode(code ErrorCode) int {
	switch code {
	case CodeSuccess:
		return 200
	case CodeInvalidParams, CodeInvalidRequest, CodeEmptyRoster, CodeBattleTypeInvalid:
		return 400
	case CodeResourceNotFound, CodeBattleNotFound, CodeHeroNotFound, CodeEnemyTemplateNotFound:
		return 404
	case CodeDuplicateResource, CodeAlreadyInBattle, CodeBattleAlreadyOver:
		return 409
	case CodeOperationNotAllowed, CodeNotInBattle:
		return 403
	default:
		return 500
	}
}
