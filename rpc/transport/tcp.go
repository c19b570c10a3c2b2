package transport

import (
	"github.com/ValentinKolb/dRPC/rpc/aio"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/pkg/errors"
	"net"
	"net/url"
	"time"
)

// SchemeTCP is the only supported endpoint scheme
const SchemeTCP = "tcp"

// ParseURI validates a tcp://host:port endpoint and returns host:port
func ParseURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", errors.Wrapf(common.ErrInvalidURI, "%q: %v", uri, err)
	}
	if u.Scheme != SchemeTCP {
		return "", errors.Wrapf(common.ErrInvalidURI, "%q: unsupported scheme %q", uri, u.Scheme)
	}
	if u.Hostname() == "" || u.Port() == "" {
		return "", errors.Wrapf(common.ErrInvalidURI, "%q: expected tcp://host:port", uri)
	}
	if u.Path != "" && u.Path != "/" {
		return "", errors.Wrapf(common.ErrInvalidURI, "%q: unexpected path", uri)
	}
	return u.Host, nil
}

// FormatURI builds the endpoint URI of a network address
func FormatURI(addr net.Addr) string {
	return SchemeTCP + "://" + addr.String()
}

// UpgradeConnection applies the socket options of config to a TCP connection
func UpgradeConnection(conn *net.TCPConn, config common.TransportConfig) error {
	// Disable Nagle's algorithm (TCPNoDelay) if configured
	if err := conn.SetNoDelay(config.TCPNoDelay); err != nil {
		return err
	}

	if config.WriteBufferSize > 0 {
		if err := conn.SetWriteBuffer(config.WriteBufferSize); err != nil {
			return err
		}
	}

	if config.ReadBufferSize > 0 {
		if err := conn.SetReadBuffer(config.ReadBufferSize); err != nil {
			return err
		}
	}

	if config.TCPKeepAliveSec > 0 {
		if err := conn.SetKeepAlive(true); err != nil {
			return err
		}
		if err := conn.SetKeepAlivePeriod(time.Duration(config.TCPKeepAliveSec) * time.Second); err != nil {
			return err
		}
	}

	if config.TCPLingerSec >= 0 {
		if err := conn.SetLinger(config.TCPLingerSec); err != nil {
			return err
		}
	}

	return nil
}

// configurer binds config to UpgradeConnection for the aio layer
func configurer(config common.TransportConfig) aio.ConnConfigurer {
	return func(conn *net.TCPConn) error {
		return UpgradeConnection(conn, config)
	}
}
