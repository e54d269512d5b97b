package spatial

import (
	"time"

	"github.com/dep2p/go-edgeproxy/config"
)

// Config 空间索引配置
type Config struct {
	// RebuildInterval 重建周期
	RebuildInterval time.Duration

	// RebuildBudget 单次重建时间预算
	RebuildBudget time.Duration

	// LeafSize 叶子最大点数
	LeafSize int

	// QueryCacheSize 每个快照的查询缓存条目数，0 表示禁用
	QueryCacheSize int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		RebuildInterval: 50 * time.Millisecond,
		RebuildBudget:   40 * time.Millisecond,
		LeafSize:        DefaultLeafSize,
		QueryCacheSize:  256,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.RebuildInterval <= 0 || c.RebuildBudget <= 0 || c.LeafSize < 1 || c.QueryCacheSize < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ConfigFromUnified 从统一配置创建空间索引配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return Config{
		RebuildInterval: cfg.Spatial.RebuildInterval.Duration(),
		RebuildBudget:   cfg.Spatial.RebuildBudget.Duration(),
		LeafSize:        cfg.Spatial.LeafSize,
		QueryCacheSize:  cfg.Spatial.QueryCacheSize,
	}
}
