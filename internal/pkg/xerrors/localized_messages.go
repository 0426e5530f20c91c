// File: internal/pkg/xerrors/localized_messages.go
package xerrors

import "golang.org/x/text/language"

// localizedMessages 错误码消息的多语言映射。
// 中文是默认语言，由 codeMessages 承载；这里只维护其它语言的翻译。
var localizedMessages = map[language.Tag]map[ErrorCode]string{
	language.English: {
		// 1xxxxx: 通用错误码
		CodeSuccess:           "Operation successful",
		CodeInternalError:     "Internal server error",
		CodeInvalidParams:     "Invalid parameters",
		CodeInvalidRequest:    "Invalid request format",
		CodeResourceNotFound:  "Resource not found",
		CodeDuplicateResource: "Resource already exists",

		// 6xxxxx: 业务逻辑错误码
		CodeBusinessLogicError:  "Business logic error",
		CodeOperationNotAllowed: "Operation not allowed",

		// 7xxxxx: 外部服务错误码
		CodeExternalServiceError: "External service error",
		CodeDatabaseError:        "Database error",
		CodeCacheError:           "Cache service error",
		CodeMessageQueueError:    "Message queue error",

		// 80xxxx: 角色相关
		CodeHeroNotFound: "Hero not found",

		// 84xxxx: 战斗相关
		CodeBattleNotFound:        "Battle not found",
		CodeAlreadyInBattle:       "Hero already in battle",
		CodeEmptyRoster:           "Battle rosters must not be empty",
		CodeEnemyTemplateNotFound: "Enemy template not found",
		CodeBattleAlreadyOver:     "Battle already over",
		CodeNotInBattle:           "Hero not in this battle",
		CodeBattleTypeInvalid:     "Invalid battle type",
	},
}

// LocalizedMessage 返回错误码在指定语言下的消息。
// 没有对应翻译时回退到中文默认消息。
func (c ErrorCode) LocalizedMessage(lang language.Tag) string {
	if messages, ok := localizedMessages[lang]; ok {
		if msg, ok := messages[c]; ok {
			return msg
		}
	}
	return c.Message()
}
