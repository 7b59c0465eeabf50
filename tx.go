package mayus

import (
	"net"

	"github.com/pkg/errors"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

type setDSCP interface {
	SetDSCP(int) error
}

var xmitBuf = newBytePool(64, MaxDatagramSize)

// writeDatagram sends b as is. Sending is all-or-nothing.
func writeDatagram(conn net.PacketConn, b []byte, addr net.Addr) error {
	n, err := conn.WriteTo(b, addr)
	if err != nil {
		return errors.Wrapf(ErrTransport, "write to %s: %v", addr, err)
	}
	DefaultSnmp.OutPkts.Inc()
	DefaultSnmp.OutBytes.Add(uint64(n))
	return nil
}

// sendTerminator sends the zero-length end-of-session datagram.
func sendTerminator(conn net.PacketConn, addr net.Addr) error {
	return writeDatagram(conn, nil, addr)
}

// applyDSCP sets the 6bit DSCP field in IPv4 header, or 8bit Traffic Class in
// IPv6 header. dscp 0 leaves the socket untouched.
//
// if the underlying connection has implemented `func SetDSCP(int) error`,
// applyDSCP will invoke this function instead.
func applyDSCP(conn net.PacketConn, dscp int) error {
	if dscp == 0 {
		return nil
	}
	if ts, ok := conn.(setDSCP); ok {
		return ts.SetDSCP(dscp)
	}
	if nc, ok := conn.(net.Conn); ok {
		var succeed bool
		if err := ipv4.NewConn(nc).SetTOS(dscp << 2); err == nil {
			succeed = true
		}
		if err := ipv6.NewConn(nc).SetTrafficClass(dscp); err == nil {
			succeed = true
		}
		if succeed {
			return nil
		}
	}
	return errInvalidOperation
}
