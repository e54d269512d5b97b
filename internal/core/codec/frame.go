package codec

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/multiformats/go-varint"
)

// DefaultMaxFrameSize 默认最大帧长度：玩家最大数据包加 1 KiB 头部余量
const DefaultMaxFrameSize = 2097151 + 1024

// AppendEnvelope 将完整帧（长度前缀 + 主体）追加到 dst
func AppendEnvelope(dst []byte, env Envelope) []byte {
	body := AppendBody(nil, env)
	dst = append(dst, varint.ToUvarint(uint64(len(body)))...)
	return append(dst, body...)
}

// Reader 从字节流中读取信封
//
// 非并发安全，每条链路只应有一个读取者。
type Reader struct {
	br      *bufio.Reader
	maxSize int
	read    int64
}

// NewReader 创建 Reader，maxSize <= 0 时使用 DefaultMaxFrameSize
func NewReader(r io.Reader, maxSize int) *Reader {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, 64*1024)
	}
	return &Reader{br: br, maxSize: maxSize}
}

// ReadFrame 读取一帧的主体
//
// 每次调用分配新的缓冲区，返回值可被长期持有。
// 在帧边界遇到 EOF 返回 io.EOF，帧中途断开返回 io.ErrUnexpectedEOF。
func (r *Reader) ReadFrame() ([]byte, error) {
	size, err := varint.ReadUvarint(r.br)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: length prefix: %v", ErrMalformed, err)
	}
	if size > uint64(r.maxSize) {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, size, r.maxSize)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r.br, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	r.read += int64(varint.UvarintSize(size)) + int64(size)
	return body, nil
}

// ReadEnvelope 读取并解码下一个信封
//
// 未知类型返回 *UnknownKindError，此时整帧已被消费，可以继续读取。
func (r *Reader) ReadEnvelope() (Envelope, error) {
	body, err := r.ReadFrame()
	if err != nil {
		return nil, err
	}
	return DecodeBody(body)
}

// BytesRead 返回已读取的字节总数
func (r *Reader) BytesRead() int64 { return r.read }

// Writer 向字节流写入信封
//
// 非并发安全，每条链路只应有一个写入者。写入先进入缓冲区，需调用 Flush。
type Writer struct {
	bw      *bufio.Writer
	maxSize int
	scratch []byte
	hdr     [varint.MaxLenUvarint63]byte
	written int64
}

// NewWriter 创建 Writer，maxSize <= 0 时使用 DefaultMaxFrameSize
func NewWriter(w io.Writer, maxSize int) *Writer {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	return &Writer{
		bw:      bufio.NewWriterSize(w, 64*1024),
		maxSize: maxSize,
	}
}

// WriteEnvelope 编码并缓冲一个信封
func (w *Writer) WriteEnvelope(env Envelope) error {
	w.scratch = AppendBody(w.scratch[:0], env)
	if len(w.scratch) > w.maxSize {
		return fmt.Errorf("%w: %s %d > %d", ErrFrameTooLarge, env.Kind(), len(w.scratch), w.maxSize)
	}

	n := varint.PutUvarint(w.hdr[:], uint64(len(w.scratch)))
	if _, err := w.bw.Write(w.hdr[:n]); err != nil {
		return err
	}
	if _, err := w.bw.Write(w.scratch); err != nil {
		return err
	}
	w.written += int64(n + len(w.scratch))

	// 避免偶发的大数据包长期占用内存
	if cap(w.scratch) > 256*1024 {
		w.scratch = nil
	}
	return nil
}

// Flush 将缓冲数据写入底层流
func (w *Writer) Flush() error {
	return w.bw.Flush()
}

// Buffered 返回尚未写出的字节数
func (w *Writer) Buffered() int {
	return w.bw.Buffered()
}

// BytesWritten 返回已编码的字节总数
func (w *Writer) BytesWritten() int64 { return w.written }
