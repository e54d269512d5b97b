// Package config 提供 edgeproxy 的统一配置管理
//
// 本包采用混合配置模式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义，带 DefaultXxxConfig 与 Validate
//   - 支持从 JSON 加载（Duration 支持 "50ms" 形式）
//
// 使用示例：
//
//	cfg := config.NewConfig()
//	cfg.ControlLink.Addr = "sim.internal:35565"
//	cfg.Dispatch.DropThreshold = 32
//
//	// 从文件加载
//	cfg, err := config.LoadFile("edgeproxy.json")
package config

// Config 是 edgeproxy 的完整配置结构
//
// 配置按照功能模块组织：
//   - Listen: 玩家侧监听地址（TCP / WebSocket）
//   - ControlLink: 到模拟进程的控制链路
//   - Registry: 连接注册表
//   - Queue: 每连接出站队列
//   - Dispatch: 广播分发与慢消费者驱逐
//   - Spatial: 空间索引重建节奏
//   - Ingress / Egress: 读写路径
//   - Metrics: Prometheus 指标
//   - Diagnostics: 本地自省服务
//   - Log: 日志
type Config struct {
	// Listen 玩家侧监听配置
	Listen ListenConfig `json:"listen"`

	// ControlLink 控制链路配置
	ControlLink ControlLinkConfig `json:"control_link"`

	// Registry 连接注册表配置
	Registry RegistryConfig `json:"registry"`

	// Queue 出站队列配置
	Queue QueueConfig `json:"queue"`

	// Dispatch 广播分发配置
	Dispatch DispatchConfig `json:"dispatch"`

	// Spatial 空间索引配置
	Spatial SpatialConfig `json:"spatial"`

	// Ingress 入站路径配置
	Ingress IngressConfig `json:"ingress"`

	// Egress 出站路径配置
	Egress EgressConfig `json:"egress"`

	// Metrics 指标配置
	Metrics MetricsConfig `json:"metrics"`

	// Diagnostics 诊断服务配置
	Diagnostics DiagnosticsConfig `json:"diagnostics"`

	// Log 日志配置
	Log LogConfig `json:"log"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Listen:      DefaultListenConfig(),
		ControlLink: DefaultControlLinkConfig(),
		Registry:    DefaultRegistryConfig(),
		Queue:       DefaultQueueConfig(),
		Dispatch:    DefaultDispatchConfig(),
		Spatial:     DefaultSpatialConfig(),
		Ingress:     DefaultIngressConfig(),
		Egress:      DefaultEgressConfig(),
		Metrics:     DefaultMetricsConfig(),
		Diagnostics: DefaultDiagnosticsConfig(),
		Log:         DefaultLogConfig(),
	}
}

// Validate 验证配置的有效性
//
// 依次检查所有子配置，返回第一个错误。Listen 最后检查。
func (c *Config) Validate() error {
	if err := c.ControlLink.Validate(); err != nil {
		return err
	}
	if err := c.Registry.Validate(); err != nil {
		return err
	}
	if err := c.Queue.Validate(); err != nil {
		return err
	}
	if err := c.Dispatch.Validate(); err != nil {
		return err
	}
	if err := c.Spatial.Validate(); err != nil {
		return err
	}
	if err := c.Ingress.Validate(); err != nil {
		return err
	}
	if err := c.Egress.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	if err := c.Diagnostics.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return c.Listen.Validate()
}

// Clone 返回配置的浅拷贝（子配置均为值类型）
func (c *Config) Clone() *Config {
	if c == nil {
		return NewConfig()
	}
	cp := *c
	return &cp
}
