package registry

// Config 注册表配置
type Config struct {
	// MaxConnections 最大连接数，0 表示不限制
	MaxConnections int

	// BroadcastOptIn 为 true 时，新连接默认不接收 Global / Regional 广播，
	// 需由模拟进程通过 enable-broadcasts 事件开启
	BroadcastOptIn bool
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		MaxConnections: 10000,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.MaxConnections < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// WithMaxConnections 设置最大连接数
func (c Config) WithMaxConnections(n int) Config {
	c.MaxConnections = n
	return c
}

// WithBroadcastOptIn 设置广播是否需要显式开启
func (c Config) WithBroadcastOptIn(v bool) Config {
	c.BroadcastOptIn = v
	return c
}
