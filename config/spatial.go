package config

import (
	"errors"
	"time"
)

// SpatialConfig 空间索引配置
type SpatialConfig struct {
	// RebuildInterval 重建周期（目标：每个模拟 tick 一次）
	RebuildInterval Duration `json:"rebuild_interval"`

	// RebuildBudget 单次重建的时间预算，超时沿用上一个快照
	RebuildBudget Duration `json:"rebuild_budget"`

	// LeafSize BVH 叶子节点最多容纳的点数
	LeafSize int `json:"leaf_size"`

	// QueryCacheSize 每个快照的区域查询缓存条目数，0 表示禁用
	QueryCacheSize int `json:"query_cache_size"`
}

// DefaultSpatialConfig 返回默认空间索引配置
func DefaultSpatialConfig() SpatialConfig {
	return SpatialConfig{
		RebuildInterval: Duration(50 * time.Millisecond),
		RebuildBudget:   Duration(40 * time.Millisecond),
		LeafSize:        8,
		QueryCacheSize:  256,
	}
}

// Validate 验证空间索引配置
func (c SpatialConfig) Validate() error {
	if c.RebuildInterval <= 0 {
		return errors.New("spatial: rebuild_interval must be positive")
	}
	if c.RebuildBudget <= 0 {
		return errors.New("spatial: rebuild_budget must be positive")
	}
	if c.LeafSize < 1 {
		return errors.New("spatial: leaf_size must be at least 1")
	}
	if c.QueryCacheSize < 0 {
		return errors.New("spatial: query_cache_size must be non-negative")
	}
	return nil
}
