package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownKind 未知信封类型（可恢复）
	ErrUnknownKind = errors.New("codec: unknown envelope kind")

	// ErrMalformed 信封内容畸形（不可恢复）
	ErrMalformed = errors.New("codec: malformed envelope")

	// ErrFrameTooLarge 帧长度超过上限
	ErrFrameTooLarge = errors.New("codec: frame too large")
)

// UnknownKindError 未知信封类型
type UnknownKindError struct {
	Kind Kind
	Size int
}

// Error 实现 error
func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("codec: unknown envelope kind %d (%d bytes skipped)", e.Kind, e.Size)
}

// Unwrap 返回 ErrUnknownKind
func (e *UnknownKindError) Unwrap() error {
	return ErrUnknownKind
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrMalformed}, args...)...)
}
