// Package log 提供 edgeproxy 统一日志接口
//
// 基于 Go 标准库 log/slog 封装，按组件（子系统）输出结构化日志。
//
// 环境变量：
//   - EDGEPROXY_LOG_LEVEL: 日志级别，支持按组件配置
//     格式: 组件=级别,组件=级别,默认级别
//     示例: core/dispatch=debug,core/spatial=warn,info
//   - EDGEPROXY_LOG_FORMAT: text 或 json
//
// 使用方式：
//
//	var logger = log.Logger("core/dispatch")
//	logger.Info("广播完成", "mode", mode, "targets", n)
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// 日志级别常量（从 slog 导出，方便使用）
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// 环境变量名
const (
	EnvLogLevel  = "EDGEPROXY_LOG_LEVEL"
	EnvLogFormat = "EDGEPROXY_LOG_FORMAT"
)

// Format 日志输出格式
type Format int

const (
	// FormatText 文本格式（默认）
	FormatText Format = iota
	// FormatJSON JSON 格式
	FormatJSON
)

// levels 组件级别表
type levels struct {
	def       slog.Level
	perSubsys map[string]slog.Level
}

func (l *levels) forComponent(component string) slog.Level {
	if lvl, ok := l.perSubsys[component]; ok {
		return lvl
	}
	// 支持前缀匹配："core" 覆盖 "core/dispatch"
	best, bestLen := l.def, -1
	for name, lvl := range l.perSubsys {
		if strings.HasPrefix(component, name+"/") && len(name) > bestLen {
			best, bestLen = lvl, len(name)
		}
	}
	return best
}

var (
	current atomic.Pointer[levels]

	outputMu sync.Mutex
	base     atomic.Pointer[slog.Logger]
)

func init() {
	lv, format := parseEnv(os.Getenv(EnvLogLevel), os.Getenv(EnvLogFormat))
	current.Store(lv)
	setBase(os.Stderr, format)
}

// parseEnv 解析环境变量配置
func parseEnv(levelSpec, formatSpec string) (*levels, Format) {
	lv := &levels{
		def:       slog.LevelInfo,
		perSubsys: make(map[string]slog.Level),
	}
	for _, part := range strings.Split(levelSpec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if name, value, ok := strings.Cut(part, "="); ok {
			if lvl, ok := ParseLevel(value); ok {
				lv.perSubsys[strings.TrimSpace(name)] = lvl
			}
			continue
		}
		if lvl, ok := ParseLevel(part); ok {
			lv.def = lvl
		}
	}

	format := FormatText
	if strings.EqualFold(strings.TrimSpace(formatSpec), "json") {
		format = FormatJSON
	}
	return lv, format
}

// ParseLevel 解析级别字符串（debug/info/warn/error）
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return 0, false
}

func setBase(w io.Writer, format Format) {
	// 组件自身做级别过滤，handler 放行所有级别
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	var h slog.Handler
	if format == FormatJSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	base.Store(slog.New(h))
}

// SetOutput 设置日志输出目标和格式
//
// 已创建的 LazyLogger 会立即使用新的输出。
func SetOutput(w io.Writer, format Format) {
	outputMu.Lock()
	defer outputMu.Unlock()
	setBase(w, format)
}

// SetLevel 设置默认日志级别（保留组件级覆盖）
func SetLevel(level slog.Level) {
	old := current.Load()
	next := &levels{def: level, perSubsys: old.perSubsys}
	current.Store(next)
}

// SetComponentLevel 设置指定组件的日志级别
func SetComponentLevel(component string, level slog.Level) {
	old := current.Load()
	per := make(map[string]slog.Level, len(old.perSubsys)+1)
	for k, v := range old.perSubsys {
		per[k] = v
	}
	per[component] = level
	current.Store(&levels{def: old.def, perSubsys: per})
}

// Configure 使用级别描述字符串重新配置（格式同 EDGEPROXY_LOG_LEVEL）
func Configure(levelSpec string) {
	lv, _ := parseEnv(levelSpec, "")
	current.Store(lv)
}

// Discard 丢弃所有日志输出，主要用于测试
func Discard() {
	SetOutput(io.Discard, FormatText)
}

// ============================================================================
//                              LazyLogger
// ============================================================================

// LazyLogger 懒加载 logger
//
// 每次日志调用时读取当前输出和级别配置，支持运行时切换。
type LazyLogger struct {
	component string
}

// Logger 返回带组件名的 LazyLogger
func Logger(component string) *LazyLogger {
	return &LazyLogger{component: component}
}

// Enabled 判断指定级别是否会输出
func (l *LazyLogger) Enabled(level slog.Level) bool {
	return level >= current.Load().forComponent(l.component)
}

func (l *LazyLogger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	base.Load().With("component", l.component).Log(ctx, level, msg, args...)
}

// Debug 输出 Debug 级别日志
func (l *LazyLogger) Debug(msg string, args ...any) {
	l.log(context.Background(), slog.LevelDebug, msg, args...)
}

// Info 输出 Info 级别日志
func (l *LazyLogger) Info(msg string, args ...any) {
	l.log(context.Background(), slog.LevelInfo, msg, args...)
}

// Warn 输出 Warn 级别日志
func (l *LazyLogger) Warn(msg string, args ...any) {
	l.log(context.Background(), slog.LevelWarn, msg, args...)
}

// Error 输出 Error 级别日志
func (l *LazyLogger) Error(msg string, args ...any) {
	l.log(context.Background(), slog.LevelError, msg, args...)
}

// InfoContext 带 context 的 Info 日志
func (l *LazyLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelInfo, msg, args...)
}

// ErrorContext 带 context 的 Error 日志
func (l *LazyLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelError, msg, args...)
}

// With 返回带额外属性的 slog.Logger（绑定当前输出，不再跟随级别变更）
func (l *LazyLogger) With(args ...any) *slog.Logger {
	return base.Load().With("component", l.component).With(args...)
}

// ============================================================================
//                              工具函数
// ============================================================================

// TruncateID 安全截取 ID 用于日志显示
func TruncateID(id string, maxLen int) string {
	if len(id) <= maxLen {
		return id
	}
	return id[:maxLen]
}
