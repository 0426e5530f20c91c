package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config Redis 配置
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Client Redis 客户端封装
type Client struct {
	*redis.Client
}

// Nil 透出 go-redis 的未命中哨兵错误，调用方无需直接依赖驱动包。
const Nil = redis.Nil

// NewClient 创建 Redis 客户端
func NewClient(cfg Config) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	return &Client{Client: rdb}, nil
}

// SetWithTTL 设置键值对，带过期时间
func (c *Client) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Set(ctx, key, value, ttl).Err()
}

// GetString 获取字符串值，不存在时返回空串
func (c *Client) GetString(ctx context.Context, key string) (string, error) {
	result, err := c.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return result, err
}
