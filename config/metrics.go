package config

import "errors"

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	// Enabled 是否收集指标
	Enabled bool `json:"enabled"`

	// ListenAddr /metrics HTTP 监听地址，为空则只收集不暴露
	ListenAddr string `json:"listen_addr,omitempty"`

	// Path 指标路径
	Path string `json:"path"`

	// Namespace 指标命名空间
	Namespace string `json:"namespace"`
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Path:      "/metrics",
		Namespace: "edgeproxy",
	}
}

// Validate 验证指标配置
func (c MetricsConfig) Validate() error {
	if c.ListenAddr != "" && c.Path == "" {
		return errors.New("metrics: path is required when listen_addr is set")
	}
	if c.Enabled && c.Namespace == "" {
		return errors.New("metrics: namespace is required")
	}
	return nil
}

// LogConfig 日志配置
type LogConfig struct {
	// Level 级别描述，格式同 EDGEPROXY_LOG_LEVEL，为空则使用环境变量
	Level string `json:"level,omitempty"`

	// Format 输出格式："text" 或 "json"
	Format string `json:"format,omitempty"`

	// FxEvents 是否输出依赖注入框架的事件日志
	FxEvents bool `json:"fx_events,omitempty"`
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{}
}

// Validate 验证日志配置
func (c LogConfig) Validate() error {
	switch c.Format {
	case "", "text", "json":
		return nil
	default:
		return errors.New("log: format must be \"text\" or \"json\"")
	}
}
