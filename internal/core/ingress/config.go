package ingress

import "github.com/dep2p/go-edgeproxy/config"

// Config 入站路径配置
type Config struct {
	// MaxFrameSize 玩家帧最大长度
	MaxFrameSize int

	// ReadBufferSize 每连接读缓冲大小
	ReadBufferSize int

	// PacketsPerSecond 每连接速率上限，0 表示不限制
	PacketsPerSecond float64

	// Burst 突发量
	Burst int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		MaxFrameSize:   config.MaxPlayerPacketSize,
		ReadBufferSize: 16 * 1024,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.MaxFrameSize <= 0 || c.ReadBufferSize <= 0 || c.PacketsPerSecond < 0 || c.Burst < 0 {
		return ErrInvalidConfig
	}
	if c.PacketsPerSecond > 0 && c.Burst == 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ConfigFromUnified 从统一配置创建入站配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return Config{
		MaxFrameSize:     cfg.Ingress.MaxFrameSize,
		ReadBufferSize:   cfg.Ingress.ReadBufferSize,
		PacketsPerSecond: cfg.Ingress.PacketsPerSecond,
		Burst:            cfg.Ingress.Burst,
	}
}
