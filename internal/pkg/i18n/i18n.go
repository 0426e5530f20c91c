// File: internal/pkg/i18n/i18n.go
// Package i18n 负责请求级语言偏好的解析与传递，
// 错误码的多语言消息由 xerrors 承载。
package i18n

import (
	"context"
	"strings"

	"golang.org/x/text/language"
)

// 支持的语言
var (
	// 默认语言为中文
	DefaultLanguage = language.Chinese
	// 支持的语言列表
	SupportedLanguages = []language.Tag{
		language.Chinese, // zh
		language.English, // en
	}
	// 语言匹配器
	matcher = language.NewMatcher(SupportedLanguages)
)

type contextKey struct{}

// WithLanguage 在 context 中设置语言偏好
func WithLanguage(ctx context.Context, lang language.Tag) context.Context {
	return context.WithValue(ctx, contextKey{}, lang)
}

// GetLanguage 从 context 中获取语言偏好
func GetLanguage(ctx context.Context) language.Tag {
	if lang, ok := ctx.Value(contextKey{}).(language.Tag); ok {
		return lang
	}
	return DefaultLanguage
}

// ParseAcceptLanguage 解析 Accept-Language 头部
// 例如: "zh-CN,zh;q=0.9,en;q=0.8,en-US;q=0.7"
func ParseAcceptLanguage(acceptLanguage string) language.Tag {
	if acceptLanguage == "" {
		return DefaultLanguage
	}

	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return DefaultLanguage
	}

	// 使用 matcher 找到最佳匹配
	_, index, _ := matcher.Match(tags...)
	return SupportedLanguages[index]
}

// ParseLanguageCode 从语言代码解析 Tag
// 支持: "zh", "zh-CN", "en", "en-US" 等
func ParseLanguageCode(code string) language.Tag {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return DefaultLanguage
	}

	tag, err := language.Parse(code)
	if err != nil {
		return DefaultLanguage
	}

	_, index, _ := matcher.Match(tag)
	return SupportedLanguages[index]
}
