package transport

import "errors"

// ErrNoListener 没有配置任何监听器
var ErrNoListener = errors.New("transport: no listener configured")
