package ingress

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/multiformats/go-varint"
)

// FrameReader 从玩家字节流中切分数据包
//
// 帧格式为 VarInt 长度前缀加数据包主体。读取跨越多次 socket 读时，
// 未完成的部分由 bufio 缓冲。
type FrameReader struct {
	br      *bufio.Reader
	maxSize int
}

// NewFrameReader 创建 FrameReader
func NewFrameReader(r io.Reader, maxSize, bufSize int) *FrameReader {
	if bufSize < 16 {
		bufSize = 16
	}
	return &FrameReader{
		br:      bufio.NewReaderSize(r, bufSize),
		maxSize: maxSize,
	}
}

// ReadFrame 读取下一个完整数据包
//
// 返回的切片为新分配的内存，可直接交给上游而不复制。空帧返回长度为 0 的切片。
// 在帧边界正常结束返回 io.EOF；帧中途结束返回 ErrTruncatedFrame。
func (f *FrameReader) ReadFrame() ([]byte, error) {
	size, err := varint.ReadUvarint(f.br)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return nil, ErrTruncatedFrame
	case errors.Is(err, varint.ErrOverflow), errors.Is(err, varint.ErrNotMinimal):
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	default:
		return nil, err
	}

	if size == 0 {
		return []byte{}, nil
	}
	if size > uint64(f.maxSize) {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, size, f.maxSize)
	}

	frame := make([]byte, size)
	if _, err := io.ReadFull(f.br, frame); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncatedFrame
		}
		return nil, err
	}
	return frame, nil
}
