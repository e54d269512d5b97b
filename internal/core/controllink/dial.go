package controllink

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/quic-go/quic-go"

	"github.com/dep2p/go-edgeproxy/config"
)

// ALPN 控制链路应用层协议标识
const ALPN = "edgeproxy-link/1"

// LoadTLSConfig 加载双向认证的 TLS 客户端配置
func LoadTLSConfig(cfg Config) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("controllink: load key pair: %w", err)
	}

	pem, err := os.ReadFile(cfg.RootCAFile)
	if err != nil {
		return nil, fmt.Errorf("controllink: read root ca: %w", err)
	}
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(pem) {
		return nil, errors.New("controllink: no certificates in root ca file")
	}

	serverName := cfg.ServerName
	if serverName == "" {
		host, _, err := net.SplitHostPort(cfg.Addr)
		if err != nil {
			return nil, fmt.Errorf("controllink: invalid addr %q: %w", cfg.Addr, err)
		}
		serverName = host
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      roots,
		ServerName:   serverName,
		NextProtos:   []string{ALPN},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// Dial 建立到模拟进程的控制链路字节流
func Dial(ctx context.Context, cfg Config) (io.ReadWriteCloser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tlsConf, err := LoadTLSConfig(cfg)
	if err != nil {
		return nil, err
	}
	return DialTLS(ctx, cfg, tlsConf)
}

// DialTLS 使用给定 TLS 配置建立控制链路字节流
func DialTLS(ctx context.Context, cfg Config, tlsConf *tls.Config) (io.ReadWriteCloser, error) {
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}

	switch cfg.Network {
	case config.LinkNetworkQUIC:
		return dialQUIC(ctx, cfg, tlsConf)
	default:
		d := &tls.Dialer{
			NetDialer: &net.Dialer{},
			Config:    tlsConf,
		}
		conn, err := d.DialContext(ctx, "tcp", cfg.Addr)
		if err != nil {
			return nil, fmt.Errorf("controllink: dial tcp %s: %w", cfg.Addr, err)
		}
		if tc, ok := conn.(*tls.Conn); ok {
			if raw, ok := tc.NetConn().(*net.TCPConn); ok {
				_ = raw.SetNoDelay(true)
			}
		}
		return conn, nil
	}
}

// quicCloser QUIC 连接的关闭能力
type quicCloser interface {
	CloseWithError(quic.ApplicationErrorCode, string) error
}

// quicStream 把单条 QUIC 流和它所属的连接绑定在一起
type quicStream struct {
	io.ReadWriteCloser
	conn quicCloser
}

// Close 关闭流并关闭连接
func (s *quicStream) Close() error {
	err := s.ReadWriteCloser.Close()
	if cerr := s.conn.CloseWithError(0, "link closed"); err == nil {
		err = cerr
	}
	return err
}

func dialQUIC(ctx context.Context, cfg Config, tlsConf *tls.Config) (io.ReadWriteCloser, error) {
	conn, err := quic.DialAddr(ctx, cfg.Addr, tlsConf, &quic.Config{
		KeepAlivePeriod: cfg.KeepAlive,
	})
	if err != nil {
		return nil, fmt.Errorf("controllink: dial quic %s: %w", cfg.Addr, err)
	}
	str, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "open stream failed")
		return nil, fmt.Errorf("controllink: open stream: %w", err)
	}
	return &quicStream{ReadWriteCloser: str, conn: conn}, nil
}
