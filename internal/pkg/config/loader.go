package config

import (
	"os"
	"strconv"
	"time"
)

// GetEnvOrDefault 获取环境变量，如果不存在则返回默认值
// 这是配置加载的核心函数：环境变量 > 默认值
func GetEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// MustGetEnv 获取环境变量，如果不存在则 panic
// 用于必须配置的敏感信息（如数据库密码）
func MustGetEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic("环境变量 " + key + " 未设置，但它是必需的")
	}
	return value
}

// GetIntEnv 获取整型环境变量，解析失败时返回默认值
func GetIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// GetFloatEnv 获取浮点环境变量，解析失败时返回默认值
func GetFloatEnv(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

// GetDurationEnv 获取时长环境变量（如 "500ms"、"2m"），解析失败时返回默认值
func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

// GetDatabaseURL 构建数据库连接字符串
// 优先级：环境变量中的完整 URL > 配置文件中的 URL
func GetDatabaseURL(envKey, configValue string) string {
	if url := os.Getenv(envKey); url != "" {
		return url
	}
	if configValue != "" {
		return configValue
	}
	// 如果都没有，返回空字符串（让调用者处理错误）
	return ""
}
