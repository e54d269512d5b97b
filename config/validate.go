package config

import "errors"

// ValidateAll 验证整个配置的有效性
func ValidateAll(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	return c.Validate()
}

// ValidateAndFix 验证配置并修复常见问题
//
// 可修复的问题：
//   - 重建预算大于重建周期 -> 截断为周期
//   - 批量大小大于队列容量 -> 截断为容量
//   - 启用速率限制但未设置突发量 -> 突发量取速率上取整
func ValidateAndFix(c *Config) (*Config, error) {
	if c == nil {
		return NewConfig(), nil
	}

	if c.Spatial.RebuildBudget > c.Spatial.RebuildInterval {
		c.Spatial.RebuildBudget = c.Spatial.RebuildInterval
	}
	if c.Queue.MaxBatch > c.Queue.Capacity {
		c.Queue.MaxBatch = c.Queue.Capacity
	}
	if c.Ingress.PacketsPerSecond > 0 && c.Ingress.Burst == 0 {
		burst := int(c.Ingress.PacketsPerSecond)
		if float64(burst) < c.Ingress.PacketsPerSecond {
			burst++
		}
		c.Ingress.Burst = burst
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
